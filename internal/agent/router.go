package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nvandessel/mathmentor/internal/llm"
	"github.com/nvandessel/mathmentor/internal/models"
)

const routerSystemPrompt = `You are an Intent Router Agent for a JEE-level math mentor.
Your job is to analyze a parsed problem and determine the best solution strategy and tools.

Available strategies:
- symbolic_manipulation: Algebraic manipulation with the symbolic tool
- numerical_computation: Direct numerical calculations
- step_by_step_derivation: Derivatives, limits, integrals
- probability_analysis: Combinatorics, probability calculations
- matrix_operations: Linear algebra computations

Available tools:
- symbolic: Symbolic mathematics (solve, simplify, expand, diff, integrate, limit, det)
- manual: Step-by-step manual solving

STRICT OUTPUT FORMAT (JSON only):
{
  "strategy": "name of primary strategy",
  "tools": ["tool1", "tool2"],
  "approach": "detailed approach description",
  "confidence": 0.9
}
`

// Router selects the solution strategy for a parsed problem.
type Router struct {
	client      llm.Client
	temperature float32
	log         *zap.Logger
}

// NewRouter creates a Router. A non-positive temperature selects the
// default.
func NewRouter(client llm.Client, temperature float32, log *zap.Logger) *Router {
	if temperature <= 0 {
		temperature = routerTemperature
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{client: client, temperature: temperature, log: log}
}

// Route selects a strategy for the problem. A response that cannot be
// decoded yields the manual fallback strategy with confidence 0.5; only
// transport failures return an error.
func (r *Router) Route(ctx context.Context, problem models.ParsedProblem) (models.Strategy, error) {
	r.log.Info("routing problem", zap.String("topic", problem.Topic))

	prompt := fmt.Sprintf(`Determine the solution strategy for this problem:

Topic: %s
Problem: %s
Variables: %v
Equations: %v

Return ONLY the JSON output.`, problem.Topic, problem.ProblemText, problem.Variables, problem.Equations)

	var strategy models.Strategy
	_, ok, err := runJSON(ctx, r.client, llm.CompletionRequest{
		System:      routerSystemPrompt,
		Prompt:      prompt,
		Temperature: r.temperature,
	}, &strategy)
	if err != nil {
		return models.Strategy{}, fmt.Errorf("router completion: %w", err)
	}
	if !ok {
		r.log.Error("failed to decode router response, using manual fallback")
		return models.Strategy{
			Strategy:   "manual",
			Tools:      []string{"manual"},
			Approach:   "Solve step-by-step manually",
			Confidence: 0.5,
		}, nil
	}

	return strategy, nil
}
