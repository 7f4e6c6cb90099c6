package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nvandessel/mathmentor/internal/llm"
	"github.com/nvandessel/mathmentor/internal/models"
)

const verifierSystemPrompt = `You are a Verifier Agent for JEE-level mathematics.
Your critical job is to verify solution correctness and identify any issues.

You must check:
1. Mathematical correctness (substitution verification)
2. Domain validity:
   - √x requires x ≥ 0
   - log(x) requires x > 0
   - division requires denominator ≠ 0
   - tan(x) undefined at x = π/2 + nπ
3. Constraint satisfaction (from problem statement)
4. Common mistake patterns:
   - Sign errors
   - Inequality reversals
   - Domain violations
   - Incorrect formula application
5. Logical consistency of steps

Be STRICT and thorough. If unsure, flag for human review.

STRICT OUTPUT FORMAT (JSON only):
{
  "is_correct": true/false,
  "confidence": 0.95,
  "issues_found": ["issue1", "issue2"] or [],
  "requires_hitl": false,
  "verification_details": "detailed explanation of verification"
}

Set requires_hitl to true if:
- Confidence < 0.8
- Critical issues found
- Domain violations detected
- Cannot verify answer
`

// Verifier checks a solution for correctness and decides whether a human
// must review it.
type Verifier struct {
	client      llm.Client
	temperature float32
	threshold   float64
	log         *zap.Logger
}

// NewVerifier creates a Verifier. Verifications with confidence below
// threshold are forced to require human review regardless of what the
// model claims. A non-positive temperature selects the default.
func NewVerifier(client llm.Client, temperature float32, threshold float64, log *zap.Logger) *Verifier {
	if temperature <= 0 {
		temperature = verifierTemperature
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{client: client, temperature: temperature, threshold: threshold, log: log}
}

// Verify judges the solution. A response that cannot be decoded yields an
// incorrect, review-flagged fallback with confidence 0.3; only transport
// failures return an error. The confidence threshold is applied on every
// path.
func (v *Verifier) Verify(ctx context.Context, problem models.ParsedProblem, solution models.Solution) (models.Verification, error) {
	v.log.Info("verifying solution",
		zap.String("final_answer", truncate(solution.FinalAnswer, 100)))

	prompt := fmt.Sprintf(`Verify this solution:

Problem: %s
Constraints: %v

Solution Steps:
%s

Final Answer: %s

Perform thorough verification. Return ONLY the JSON output.`,
		problem.ProblemText, problem.Constraints,
		strings.Join(solution.Steps, "\n"), solution.FinalAnswer)

	var verification models.Verification
	raw, ok, err := runJSON(ctx, v.client, llm.CompletionRequest{
		System:      verifierSystemPrompt,
		Prompt:      prompt,
		Temperature: v.temperature,
	}, &verification)
	if err != nil {
		return models.Verification{}, fmt.Errorf("verifier completion: %w", err)
	}
	if !ok {
		v.log.Error("failed to decode verifier response, using fallback")
		verification = models.Verification{
			IsCorrect:    false,
			Confidence:   0.3,
			IssuesFound:  []string{"Failed to parse verification results"},
			RequiresHITL: true,
			Details:      truncate(raw, 500),
		}
	}

	if verification.Confidence < v.threshold {
		verification.RequiresHITL = true
	}

	return verification, nil
}
