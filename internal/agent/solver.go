package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nvandessel/mathmentor/internal/llm"
	"github.com/nvandessel/mathmentor/internal/models"
	"github.com/nvandessel/mathmentor/internal/symtool"
)

const solverSystemPromptFormat = `You are a Solver Agent for JEE-level mathematics.
You solve problems using ReAct-style reasoning: Thought -> Action -> Observation -> repeat.

Topic: %s
Strategy: %s

Reference Knowledge:
%s

You must:
1. Think through the problem step-by-step
2. Use the symbolic tool when helpful: a single call such as solve(x^2 + 5x + 6, x), diff(x^3, x), integrate(3x^2, x), limit(x^2, x, 2), or det([[1, 2], [3, 4]])
3. Verify each step
4. Provide clear reasoning
5. Give final answer

STRICT OUTPUT FORMAT (JSON only):
{
  "steps": [
    "Step 1: Identify the equation...",
    "Step 2: Apply quadratic formula...",
    ...
  ],
  "final_answer": "x = -2 or x = -3",
  "reasoning": "detailed explanation of solution process",
  "confidence": 0.95,
  "tool_code": "optional symbolic tool call used"
}
`

// snippetContextLimit and snippetContentLimit bound how much retrieved
// knowledge reaches the solver prompt.
const (
	snippetContextLimit = 2
	snippetContentLimit = 500
)

// Solver produces a step-by-step solution for a routed problem.
type Solver struct {
	client      llm.Client
	temperature float32
	log         *zap.Logger
}

// NewSolver creates a Solver. A non-positive temperature selects the
// default.
func NewSolver(client llm.Client, temperature float32, log *zap.Logger) *Solver {
	if temperature <= 0 {
		temperature = solverTemperature
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Solver{client: client, temperature: temperature, log: log}
}

// Solve produces a solution using the strategy and retrieved knowledge.
// If the solver requests a symbolic tool call, it is evaluated and the
// result (or the evaluation error) is recorded on the solution. A response
// that cannot be decoded yields an error-marked fallback solution with
// confidence 0.3; only transport failures return an error.
func (s *Solver) Solve(ctx context.Context, problem models.ParsedProblem, strategy models.Strategy, snippets []models.KnowledgeSnippet) (models.Solution, error) {
	s.log.Info("solving problem",
		zap.String("topic", problem.Topic),
		zap.String("problem", truncate(problem.ProblemText, 100)))

	approach := strategy.Approach
	if approach == "" {
		approach = "step-by-step solving"
	}

	system := fmt.Sprintf(solverSystemPromptFormat,
		problem.Topic, approach, formatSnippets(snippets))

	prompt := fmt.Sprintf(`Solve this problem:

Problem: %s
Variables: %v
Constraints: %v
Equations: %v

Provide step-by-step solution. Return ONLY the JSON output.`,
		problem.ProblemText, problem.Variables, problem.Constraints, problem.Equations)

	var solution models.Solution
	raw, ok, err := runJSON(ctx, s.client, llm.CompletionRequest{
		System:      system,
		Prompt:      prompt,
		Temperature: s.temperature,
	}, &solution)
	if err != nil {
		return models.Solution{}, fmt.Errorf("solver completion: %w", err)
	}
	if !ok {
		s.log.Error("failed to decode solver response, using fallback")
		return models.Solution{
			Steps:       []string{"Failed to parse solution steps"},
			FinalAnswer: "Error in solving",
			Reasoning:   truncate(raw, 500),
			Confidence:  0.3,
		}, nil
	}

	if solution.ToolCode != "" {
		result, evalErr := symtool.Eval(solution.ToolCode)
		if evalErr != nil {
			result = fmt.Sprintf("error evaluating tool call: %v", evalErr)
		}
		solution.ToolResult = result
		s.log.Info("evaluated symbolic tool call",
			zap.String("call", solution.ToolCode),
			zap.String("result", result))
	}

	return solution, nil
}

// formatSnippets renders retrieved knowledge for the solver prompt. Only
// the first snippetContextLimit snippets are used, each capped at
// snippetContentLimit runes.
func formatSnippets(snippets []models.KnowledgeSnippet) string {
	if len(snippets) > snippetContextLimit {
		snippets = snippets[:snippetContextLimit]
	}
	parts := make([]string, 0, len(snippets))
	for _, sn := range snippets {
		parts = append(parts, fmt.Sprintf("Reference from %s:\n%s",
			sn.Source, truncate(sn.Content, snippetContentLimit)))
	}
	return strings.Join(parts, "\n\n")
}
