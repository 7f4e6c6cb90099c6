package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nvandessel/mathmentor/internal/llm"
	"github.com/nvandessel/mathmentor/internal/models"
)

const explainerSystemPrompt = `You are an Explainer/Tutor Agent for JEE-level mathematics.
Your job is to create clear, student-friendly explanations that help students understand the solution.

You must:
1. Explain WHY each step is taken, not just WHAT
2. Highlight key concepts used
3. Point out common mistakes to avoid
4. Provide helpful tips and intuition
5. Use simple, encouraging language
6. Connect to known formulas and theorems

Your explanation should help a JEE student learn, not just copy the answer.

STRICT OUTPUT FORMAT (JSON only):
{
  "explanation": "detailed step-by-step explanation in friendly language",
  "key_concepts": ["concept1", "concept2"],
  "common_mistakes": ["mistake1 to avoid", "mistake2 to avoid"],
  "tips": ["helpful tip 1", "helpful tip 2"]
}
`

// Explainer turns a verified solution into a student-facing write-up.
type Explainer struct {
	client      llm.Client
	temperature float32
	log         *zap.Logger
}

// NewExplainer creates an Explainer. A non-positive temperature selects
// the default.
func NewExplainer(client llm.Client, temperature float32, log *zap.Logger) *Explainer {
	if temperature <= 0 {
		temperature = explainerTemperature
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Explainer{client: client, temperature: temperature, log: log}
}

// Explain writes up the solution for the student. A response that cannot
// be decoded degrades to the raw text as the explanation with the problem
// topic as the only key concept; only transport failures return an error.
func (e *Explainer) Explain(ctx context.Context, problem models.ParsedProblem, solution models.Solution) (models.Explanation, error) {
	e.log.Info("generating explanation", zap.String("topic", problem.Topic))

	prompt := fmt.Sprintf(`Create a student-friendly explanation for this solution:

Problem: %s
Topic: %s

Solution Steps:
%s

Final Answer: %s

Make it clear, encouraging, and educational. Return ONLY the JSON output.`,
		problem.ProblemText, problem.Topic,
		strings.Join(solution.Steps, "\n"), solution.FinalAnswer)

	var explanation models.Explanation
	raw, ok, err := runJSON(ctx, e.client, llm.CompletionRequest{
		System:      explainerSystemPrompt,
		Prompt:      prompt,
		Temperature: e.temperature,
	}, &explanation)
	if err != nil {
		return models.Explanation{}, fmt.Errorf("explainer completion: %w", err)
	}
	if !ok {
		e.log.Error("failed to decode explainer response, degrading to raw text")
		return models.Explanation{
			Explanation:    truncate(raw, 1000),
			KeyConcepts:    []string{problem.Topic},
			CommonMistakes: []string{},
			Tips:           []string{},
		}, nil
	}

	return explanation, nil
}
