package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/mathmentor/internal/agent"
	"github.com/nvandessel/mathmentor/internal/input"
	"github.com/nvandessel/mathmentor/internal/knowledge"
	"github.com/nvandessel/mathmentor/internal/llm"
	"github.com/nvandessel/mathmentor/internal/memory"
	"github.com/nvandessel/mathmentor/internal/models"
)

// scriptedClient returns canned responses in call order. If errAt is
// non-zero, the call with that 1-based index fails with err instead.
type scriptedClient struct {
	responses []string
	errAt     int
	err       error
	calls     int
}

func (c *scriptedClient) Complete(_ context.Context, _ llm.CompletionRequest) (string, error) {
	c.calls++
	if c.errAt != 0 && c.calls == c.errAt {
		return "", c.err
	}
	if len(c.responses) == 0 {
		return "", errors.New("no canned response left")
	}
	resp := c.responses[0]
	c.responses = c.responses[1:]
	return resp, nil
}

type constEmbedder struct{}

func (constEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return embedByKeyword(text), nil
}

func (constEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = embedByKeyword(t)
	}
	return out, nil
}

func (constEmbedder) ModelID() string { return "const-embedder" }

func embedByKeyword(text string) []float32 {
	return []float32{
		float32(strings.Count(strings.ToLower(text), "quadratic")),
		1,
	}
}

const (
	parserResponse = `{
  "problem_text": "Solve x^2 + 5x + 6 = 0",
  "topic": "algebra",
  "variables": ["x"],
  "constraints": [],
  "equations": ["x^2 + 5x + 6 = 0"],
  "needs_clarification": false,
  "confidence": 0.95,
  "reasoning": "Clear quadratic equation"
}`
	routerResponse = `{
  "strategy": "symbolic_manipulation",
  "tools": ["symbolic"],
  "approach": "Factor the quadratic",
  "confidence": 0.9
}`
	solverResponse = `{
  "steps": ["Step 1: Factor", "Step 2: Read off roots"],
  "final_answer": "x = -3 or x = -2",
  "reasoning": "Factoring gives (x+2)(x+3) = 0",
  "confidence": 0.95
}`
	verifierResponse = `{
  "is_correct": true,
  "confidence": 0.95,
  "issues_found": [],
  "requires_hitl": false,
  "verification_details": "Both roots check out by substitution"
}`
	explainerResponse = `{
  "explanation": "We factor the quadratic because the coefficients are small integers.",
  "key_concepts": ["factoring", "quadratic equations"],
  "common_mistakes": ["sign errors when factoring"],
  "tips": ["always substitute roots back"]
}`
)

func allResponses() []string {
	return []string{parserResponse, routerResponse, solverResponse, verifierResponse, explainerResponse}
}

func newTestOrchestrator(t *testing.T, client llm.Client) *Orchestrator {
	t.Helper()

	kbDir := t.TempDir()
	content := "The quadratic formula solves any quadratic equation. " + strings.Repeat("More on quadratic equations. ", 10)
	if err := os.WriteFile(filepath.Join(kbDir, "algebra.md"), []byte(content), 0o644); err != nil {
		t.Fatalf("writing knowledge base: %v", err)
	}

	retriever, err := knowledge.NewRetriever(knowledge.RetrieverConfig{
		KnowledgeDir: kbDir,
		ChunkSize:    400,
		ChunkOverlap: 40,
	}, constEmbedder{})
	if err != nil {
		t.Fatalf("NewRetriever failed: %v", err)
	}

	store, err := memory.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	orch := NewOrchestrator(Deps{
		Parser:     agent.NewParser(client, 0, nil),
		Router:     agent.NewRouter(client, 0, nil),
		Solver:     agent.NewSolver(client, 0, nil),
		Verifier:   agent.NewVerifier(client, 0, 0.8, nil),
		Explainer:  agent.NewExplainer(client, 0, nil),
		Retriever:  retriever,
		Store:      store,
		Normalizer: input.NewNormalizer(input.Config{}, nil, nil, nil),
		Clock: func() time.Time {
			return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		},
	})
	t.Cleanup(func() { orch.Close() })
	return orch
}

func stageStatuses(trace []TraceEntry, stage Stage) []Status {
	var out []Status
	for _, e := range trace {
		if e.Stage == stage {
			out = append(out, e.Status)
		}
	}
	return out
}

func TestSolve_SuccessTraceCoversEveryStage(t *testing.T) {
	client := &scriptedClient{responses: allResponses()}
	orch := newTestOrchestrator(t, client)
	ctx := context.Background()

	result := orch.Solve(ctx, "solve x^2 + 5x + 6 = 0", models.InputText)

	if result.Status != StatusSuccess {
		t.Fatalf("expected success, got %s (%s)", result.Status, result.Message)
	}
	if result.InteractionID == "" {
		t.Error("expected interaction ID")
	}
	if result.Solution == nil || result.Solution.FinalAnswer != "x = -3 or x = -2" {
		t.Errorf("unexpected solution: %+v", result.Solution)
	}
	if result.RequiresHITL {
		t.Error("expected no review for a confident verification")
	}

	for _, stage := range []Stage{
		StageParsing, StageMemoryLookup, StageRetrieval, StageRouting,
		StageSolving, StageVerifying, StageExplaining, StageStored,
	} {
		statuses := stageStatuses(result.Trace, stage)
		if len(statuses) == 0 {
			t.Errorf("stage %s missing from trace", stage)
			continue
		}
		if statuses[len(statuses)-1] != StatusCompleted {
			t.Errorf("stage %s not completed: %v", stage, statuses)
		}
	}

	// The solve is durable: the stored record matches the result.
	stored, err := orch.GetInteraction(ctx, result.InteractionID)
	if err != nil {
		t.Fatalf("GetInteraction failed: %v", err)
	}
	if stored == nil {
		t.Fatal("expected stored interaction")
	}
	if stored.Solution.FinalAnswer != "x = -3 or x = -2" {
		t.Errorf("stored solution mismatch: %q", stored.Solution.FinalAnswer)
	}

	for _, src := range result.RAGSources {
		if len([]rune(src.Content)) > ragSourceContentLimit {
			t.Errorf("RAG source content not truncated: %d runes", len([]rune(src.Content)))
		}
	}
}

func TestSolve_QuotaExhaustionDuringParsing(t *testing.T) {
	client := &scriptedClient{errAt: 1, err: errors.New("googleapi: Error 429: quota exceeded")}
	orch := newTestOrchestrator(t, client)
	ctx := context.Background()

	result := orch.Solve(ctx, "solve x^2 + 5x + 6 = 0", models.InputText)

	if result.Status != StatusQuotaExceeded {
		t.Fatalf("expected quota_exceeded, got %s", result.Status)
	}
	if !strings.Contains(result.Message, "quota") {
		t.Errorf("expected quota guidance in message, got %q", result.Message)
	}

	last := result.Trace[len(result.Trace)-1]
	if last.Stage != StageParsing || last.Status != StatusError {
		t.Errorf("expected trace to end with parsing error, got %+v", last)
	}

	// Nothing was committed.
	recent, err := orch.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 0 {
		t.Errorf("expected no stored interactions after failure, got %d", len(recent))
	}
}

func TestSolve_SolverFailureLeavesNoRecord(t *testing.T) {
	client := &scriptedClient{
		responses: allResponses(),
		errAt:     3,
		err:       errors.New("upstream connection reset"),
	}
	orch := newTestOrchestrator(t, client)
	ctx := context.Background()

	result := orch.Solve(ctx, "solve x^2 + 5x + 6 = 0", models.InputText)

	if result.Status != StatusFailed {
		t.Fatalf("expected error status, got %s", result.Status)
	}
	if !strings.Contains(result.Message, "connection reset") {
		t.Errorf("unexpected message: %q", result.Message)
	}

	last := result.Trace[len(result.Trace)-1]
	if last.Stage != StageSolving || last.Status != StatusError {
		t.Errorf("expected trace to end with solving error, got %+v", last)
	}

	recent, err := orch.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 0 {
		t.Errorf("expected no stored interactions after failure, got %d", len(recent))
	}
}

func TestSolve_ExplainerFailureDegradesButStores(t *testing.T) {
	client := &scriptedClient{
		responses: allResponses(),
		errAt:     5, // the explainer round trip
		err:       errors.New("upstream connection reset"),
	}
	orch := newTestOrchestrator(t, client)
	ctx := context.Background()

	result := orch.Solve(ctx, "solve x^2 + 5x + 6 = 0", models.InputText)

	if result.Status != StatusSuccess {
		t.Fatalf("expected explainer failure not to abort the solve, got %s (%s)",
			result.Status, result.Message)
	}
	if result.Explanation == nil || !strings.Contains(result.Explanation.Explanation, "Error generating explanation") {
		t.Errorf("expected stub explanation, got %+v", result.Explanation)
	}

	statuses := stageStatuses(result.Trace, StageExplaining)
	if len(statuses) == 0 || statuses[len(statuses)-1] != StatusWarning {
		t.Errorf("expected explaining to end in a warning, got %v", statuses)
	}

	// The verified solution is still committed.
	stored, err := orch.GetInteraction(ctx, result.InteractionID)
	if err != nil {
		t.Fatalf("GetInteraction failed: %v", err)
	}
	if stored == nil {
		t.Fatal("expected the solve to be stored despite the degraded explanation")
	}
	if stored.Solution.FinalAnswer != "x = -3 or x = -2" {
		t.Errorf("stored solution mismatch: %q", stored.Solution.FinalAnswer)
	}
}

func TestSolve_ClarificationWarnsAndContinues(t *testing.T) {
	ambiguous := strings.Replace(parserResponse,
		`"needs_clarification": false`, `"needs_clarification": true`, 1)
	client := &scriptedClient{responses: []string{
		ambiguous, routerResponse, solverResponse, verifierResponse, explainerResponse,
	}}
	orch := newTestOrchestrator(t, client)

	result := orch.Solve(context.Background(), "solve something quadratic-ish", models.InputText)

	if result.Status != StatusSuccess {
		t.Fatalf("expected clarification not to gate the solve, got %s", result.Status)
	}
	if !result.NeedsClarification {
		t.Error("expected needs_clarification surfaced in result")
	}

	statuses := stageStatuses(result.Trace, StageParsing)
	foundWarning := false
	for _, s := range statuses {
		if s == StatusWarning {
			foundWarning = true
		}
	}
	if !foundWarning {
		t.Errorf("expected a clarification warning in the trace, got %v", statuses)
	}
}

func TestSolve_FindsSimilarPastProblems(t *testing.T) {
	client := &scriptedClient{responses: append(allResponses(), allResponses()...)}
	orch := newTestOrchestrator(t, client)
	ctx := context.Background()

	first := orch.Solve(ctx, "solve x^2 + 5x + 6 = 0", models.InputText)
	if first.Status != StatusSuccess {
		t.Fatalf("first solve failed: %s", first.Message)
	}

	second := orch.Solve(ctx, "solve x^2 + 5x + 6 = 0", models.InputText)
	if second.Status != StatusSuccess {
		t.Fatalf("second solve failed: %s", second.Message)
	}
	if len(second.SimilarProblemIDs) != 1 {
		t.Fatalf("expected 1 similar problem, got %v", second.SimilarProblemIDs)
	}
	if second.SimilarProblemIDs[0] != first.InteractionID {
		t.Errorf("expected similar ID %q, got %q", first.InteractionID, second.SimilarProblemIDs[0])
	}
}

func TestSolve_VerifierReviewFlagSurfaces(t *testing.T) {
	lowConfidence := strings.Replace(verifierResponse, `"confidence": 0.95`, `"confidence": 0.5`, 1)
	client := &scriptedClient{responses: []string{
		parserResponse, routerResponse, solverResponse, lowConfidence, explainerResponse,
	}}
	orch := newTestOrchestrator(t, client)

	result := orch.Solve(context.Background(), "solve x^2 + 5x + 6 = 0", models.InputText)

	if result.Status != StatusSuccess {
		t.Fatalf("expected success, got %s", result.Status)
	}
	if !result.RequiresHITL {
		t.Error("expected low-confidence verification to require review")
	}
}
