package agent

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/nvandessel/mathmentor/internal/llm"
	"github.com/nvandessel/mathmentor/internal/models"
)

// fakeClient returns canned responses in order and records requests.
type fakeClient struct {
	responses []string
	err       error
	requests  []llm.CompletionRequest
}

func (f *fakeClient) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", errors.New("no canned response left")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func TestParser_StructuresProblem(t *testing.T) {
	client := &fakeClient{responses: []string{`Here is the result:
{
  "problem_text": "Solve x^2 + 5x + 6 = 0",
  "topic": "algebra",
  "variables": ["x"],
  "constraints": [],
  "equations": ["x^2 + 5x + 6 = 0"],
  "needs_clarification": false,
  "confidence": 0.95,
  "reasoning": "Clear quadratic equation"
}`}}
	p := NewParser(client, 0, nil)

	parsed, err := p.Parse(context.Background(), "solve x2+5x+6=0", models.InputText)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if parsed.Topic != models.TopicAlgebra {
		t.Errorf("expected algebra, got %q", parsed.Topic)
	}
	if parsed.NeedsClarification {
		t.Error("expected no clarification needed")
	}
	if len(parsed.Equations) != 1 || parsed.Equations[0] != "x^2 + 5x + 6 = 0" {
		t.Errorf("unexpected equations: %v", parsed.Equations)
	}
	if client.requests[0].Temperature != 0.3 {
		t.Errorf("expected temperature 0.3, got %f", client.requests[0].Temperature)
	}
}

func TestParser_MalformedResponseFallsBack(t *testing.T) {
	client := &fakeClient{responses: []string{"I could not produce JSON"}}
	p := NewParser(client, 0, nil)

	parsed, err := p.Parse(context.Background(), "solve something", models.InputText)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if parsed.Topic != models.TopicUnknown {
		t.Errorf("expected unknown topic, got %q", parsed.Topic)
	}
	if !parsed.NeedsClarification {
		t.Error("expected needs_clarification on fallback")
	}
	if parsed.Confidence != 0.3 {
		t.Errorf("expected confidence 0.3, got %f", parsed.Confidence)
	}
	if parsed.ProblemText != "solve something" {
		t.Errorf("expected raw text preserved, got %q", parsed.ProblemText)
	}
}

func TestParser_TransportErrorPropagates(t *testing.T) {
	client := &fakeClient{err: errors.New("429 quota exceeded")}
	p := NewParser(client, 0, nil)

	_, err := p.Parse(context.Background(), "solve x", models.InputText)
	if err == nil {
		t.Fatal("expected transport error to propagate")
	}
	if !llm.IsQuota(err) {
		t.Errorf("expected quota classification to survive wrapping: %v", err)
	}
}

func TestRouter_MalformedResponseFallsBack(t *testing.T) {
	client := &fakeClient{responses: []string{"not json"}}
	r := NewRouter(client, 0, nil)

	strategy, err := r.Route(context.Background(), models.ParsedProblem{Topic: models.TopicAlgebra})
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if strategy.Strategy != "manual" {
		t.Errorf("expected manual fallback, got %q", strategy.Strategy)
	}
	if strategy.Confidence != 0.5 {
		t.Errorf("expected confidence 0.5, got %f", strategy.Confidence)
	}
}

func TestSolver_EvaluatesToolCall(t *testing.T) {
	client := &fakeClient{responses: []string{`{
  "steps": ["Step 1: Factor the quadratic", "Step 2: Read off the roots"],
  "final_answer": "x = -3 or x = -2",
  "reasoning": "Factoring gives (x+2)(x+3) = 0",
  "confidence": 0.95,
  "tool_code": "solve(x^2 + 5x + 6, x)"
}`}}
	s := NewSolver(client, 0, nil)

	solution, err := s.Solve(context.Background(),
		models.ParsedProblem{ProblemText: "Solve x^2 + 5x + 6 = 0", Topic: models.TopicAlgebra},
		models.Strategy{Approach: "factor the quadratic"},
		nil)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if solution.ToolResult != "x = -3, x = -2" {
		t.Errorf("unexpected tool result: %q", solution.ToolResult)
	}
	if len(solution.Steps) != 2 {
		t.Errorf("expected 2 steps, got %d", len(solution.Steps))
	}
}

func TestSolver_ToolErrorCapturedNotFatal(t *testing.T) {
	client := &fakeClient{responses: []string{`{
  "steps": ["Step 1"],
  "final_answer": "unknown",
  "reasoning": "tried a bad call",
  "confidence": 0.6,
  "tool_code": "frobnicate(x)"
}`}}
	s := NewSolver(client, 0, nil)

	solution, err := s.Solve(context.Background(), models.ParsedProblem{}, models.Strategy{}, nil)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if !strings.Contains(solution.ToolResult, "error evaluating tool call") {
		t.Errorf("expected captured evaluation error, got %q", solution.ToolResult)
	}
}

func TestSolver_FormatsSnippetContext(t *testing.T) {
	client := &fakeClient{responses: []string{`{
  "steps": ["Step 1"],
  "final_answer": "done",
  "reasoning": "used references",
  "confidence": 0.9
}`}}
	s := NewSolver(client, 0, nil)

	snippets := []models.KnowledgeSnippet{
		{Source: "algebra.md", Content: strings.Repeat("a", 600)},
		{Source: "calculus.md", Content: "short"},
		{Source: "geometry.md", Content: "should be dropped"},
	}
	if _, err := s.Solve(context.Background(), models.ParsedProblem{}, models.Strategy{}, snippets); err != nil {
		t.Fatalf("Solve failed: %v", err)
	}

	system := client.requests[0].System
	if !strings.Contains(system, "Reference from algebra.md:") {
		t.Error("expected first snippet in prompt")
	}
	if !strings.Contains(system, "Reference from calculus.md:") {
		t.Error("expected second snippet in prompt")
	}
	if strings.Contains(system, "geometry.md") {
		t.Error("expected third snippet to be dropped")
	}
	if strings.Contains(system, strings.Repeat("a", 501)) {
		t.Error("expected snippet content capped at 500 runes")
	}
}

func TestSolver_MalformedResponseFallsBack(t *testing.T) {
	client := &fakeClient{responses: []string{"the model rambled instead"}}
	s := NewSolver(client, 0, nil)

	solution, err := s.Solve(context.Background(), models.ParsedProblem{}, models.Strategy{}, nil)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if solution.FinalAnswer != "Error in solving" {
		t.Errorf("expected fallback answer, got %q", solution.FinalAnswer)
	}
	if solution.Reasoning != "the model rambled instead" {
		t.Errorf("expected raw response preserved, got %q", solution.Reasoning)
	}
	if solution.Confidence != 0.3 {
		t.Errorf("expected confidence 0.3, got %f", solution.Confidence)
	}
}

func TestVerifier_ThresholdForcesReview(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		claimed    bool
		wantHITL   bool
	}{
		{"high confidence trusted", 0.95, false, false},
		{"low confidence overridden", 0.6, false, true},
		{"claimed review kept", 0.95, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{responses: []string{`{
  "is_correct": true,
  "confidence": ` + confStr(tt.confidence) + `,
  "issues_found": [],
  "requires_hitl": ` + boolStr(tt.claimed) + `,
  "verification_details": "checked by substitution"
}`}}
			v := NewVerifier(client, 0, 0.8, nil)

			verification, err := v.Verify(context.Background(), models.ParsedProblem{}, models.Solution{})
			if err != nil {
				t.Fatalf("Verify failed: %v", err)
			}
			if verification.RequiresHITL != tt.wantHITL {
				t.Errorf("confidence %f: expected requires_hitl=%v, got %v",
					tt.confidence, tt.wantHITL, verification.RequiresHITL)
			}
		})
	}
}

func TestVerifier_DegradedJudgementFlagsReview(t *testing.T) {
	// "I think it's right" is not a verification.
	client := &fakeClient{responses: []string{"I think it's right"}}
	v := NewVerifier(client, 0, 0.8, nil)

	verification, err := v.Verify(context.Background(), models.ParsedProblem{}, models.Solution{})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if verification.IsCorrect {
		t.Error("expected fallback to mark solution not correct")
	}
	if !verification.RequiresHITL {
		t.Error("expected fallback to require review")
	}
	if verification.Details != "I think it's right" {
		t.Errorf("expected raw response in details, got %q", verification.Details)
	}
}

func TestExplainer_MalformedResponseDegrades(t *testing.T) {
	client := &fakeClient{responses: []string{"Just plain prose about quadratics."}}
	e := NewExplainer(client, 0, nil)

	explanation, err := e.Explain(context.Background(),
		models.ParsedProblem{Topic: models.TopicAlgebra}, models.Solution{})
	if err != nil {
		t.Fatalf("Explain failed: %v", err)
	}
	if explanation.Explanation != "Just plain prose about quadratics." {
		t.Errorf("expected raw text as explanation, got %q", explanation.Explanation)
	}
	if len(explanation.KeyConcepts) != 1 || explanation.KeyConcepts[0] != models.TopicAlgebra {
		t.Errorf("expected topic as only key concept, got %v", explanation.KeyConcepts)
	}
}

func confStr(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func boolStr(b bool) string {
	return strconv.FormatBool(b)
}
