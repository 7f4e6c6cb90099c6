package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nvandessel/mathmentor/internal/llm"
	"github.com/nvandessel/mathmentor/internal/models"
)

const parserSystemPrompt = `You are a Parser Agent for a JEE-level math mentor system.
Your job is to analyze raw mathematical problem text and structure it into a standard format.

You must:
1. Clean OCR/ASR noise
2. Standardize mathematical notation
3. Identify the topic (algebra, calculus, probability, or linear_algebra)
4. Extract variables, constraints, and equations
5. Detect if the problem is ambiguous or needs clarification

STRICT OUTPUT FORMAT (JSON only):
{
  "problem_text": "cleaned problem statement",
  "topic": "algebra|calculus|probability|linear_algebra",
  "variables": ["x", "y"],
  "constraints": ["x > 0", "x is real"],
  "equations": ["x^2 + 5x + 6 = 0"],
  "needs_clarification": false,
  "confidence": 0.95,
  "reasoning": "brief explanation of parsing decisions"
}

If the problem is unclear, incomplete, or ambiguous, set needs_clarification to true.
Only work with JEE-level topics: algebra, calculus (basic), probability, linear algebra.
`

// Parser structures raw problem text into a ParsedProblem.
type Parser struct {
	client      llm.Client
	temperature float32
	log         *zap.Logger
}

// NewParser creates a Parser. A non-positive temperature selects the
// default.
func NewParser(client llm.Client, temperature float32, log *zap.Logger) *Parser {
	if temperature <= 0 {
		temperature = parserTemperature
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{client: client, temperature: temperature, log: log}
}

// Parse structures rawText into a ParsedProblem. inputType is one of the
// models input kinds. A response that cannot be decoded yields a fallback
// with topic "unknown", needs_clarification set, and confidence 0.3; only
// transport failures return an error.
func (p *Parser) Parse(ctx context.Context, rawText, inputType string) (models.ParsedProblem, error) {
	p.log.Info("parsing input",
		zap.String("input_type", inputType),
		zap.String("raw_text", truncate(rawText, 100)))

	prompt := fmt.Sprintf(`Parse this mathematical problem:

Raw Input: %s
Input Type: %s

Return ONLY the JSON output, no additional text.`, rawText, inputType)

	var parsed models.ParsedProblem
	_, ok, err := runJSON(ctx, p.client, llm.CompletionRequest{
		System:      parserSystemPrompt,
		Prompt:      prompt,
		Temperature: p.temperature,
	}, &parsed)
	if err != nil {
		return models.ParsedProblem{}, fmt.Errorf("parser completion: %w", err)
	}
	if !ok {
		p.log.Error("failed to decode parser response, using fallback")
		return models.ParsedProblem{
			ProblemText:        rawText,
			Topic:              models.TopicUnknown,
			Variables:          []string{},
			Constraints:        []string{},
			Equations:          []string{},
			NeedsClarification: true,
			Confidence:         0.3,
			Reasoning:          "Failed to parse problem structure",
		}, nil
	}

	return parsed, nil
}
