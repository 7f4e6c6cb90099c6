// Package pipeline coordinates the agents, retriever, memory, and input
// normalizer into the end-to-end solve flow.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nvandessel/mathmentor/internal/agent"
	"github.com/nvandessel/mathmentor/internal/input"
	"github.com/nvandessel/mathmentor/internal/knowledge"
	"github.com/nvandessel/mathmentor/internal/llm"
	"github.com/nvandessel/mathmentor/internal/memory"
	"github.com/nvandessel/mathmentor/internal/models"
)

// Deps holds the orchestrator's collaborators. All fields except Logger,
// Clock, and RAGTopK are required.
type Deps struct {
	Parser    *agent.Parser
	Router    *agent.Router
	Solver    *agent.Solver
	Verifier  *agent.Verifier
	Explainer *agent.Explainer

	Retriever  *knowledge.Retriever
	Store      *memory.Store
	Normalizer *input.Normalizer

	Logger *zap.Logger

	// Clock supplies interaction timestamps. Default: time.Now.
	Clock func() time.Time

	// RAGTopK is the number of snippets retrieved per solve. Default: 3.
	RAGTopK int
}

// Orchestrator runs the solve pipeline: parse, memory lookup, retrieval,
// routing, solving, verification, explanation, and storage.
type Orchestrator struct {
	deps Deps
	log  *zap.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.RAGTopK <= 0 {
		deps.RAGTopK = 3
	}
	return &Orchestrator{deps: deps, log: deps.Logger}
}

// InitializeIndex builds the knowledge index up front so the first solve
// does not pay the embedding cost.
func (o *Orchestrator) InitializeIndex(ctx context.Context) error {
	return o.deps.Retriever.EnsureIndex(ctx)
}

// ProcessText normalizes typed input.
func (o *Orchestrator) ProcessText(text string) input.Result {
	return o.deps.Normalizer.FromText(text)
}

// ProcessImage extracts problem text from an image and applies learned
// OCR corrections.
func (o *Orchestrator) ProcessImage(ctx context.Context, data []byte, mimeType string) (input.Result, error) {
	res := o.deps.Normalizer.FromImage(ctx, data, mimeType)
	if res.Text == "" {
		return res, nil
	}
	corrected, err := o.deps.Store.ApplyCorrections(ctx, memory.CorrectionOCR, res.Text)
	if err != nil {
		return res, fmt.Errorf("applying learned corrections: %w", err)
	}
	res.Text = corrected
	return res, nil
}

// ProcessAudio transcribes spoken input and applies learned ASR
// corrections.
func (o *Orchestrator) ProcessAudio(ctx context.Context, data []byte, mimeType string) (input.Result, error) {
	res := o.deps.Normalizer.FromAudio(ctx, data, mimeType)
	if res.Text == "" {
		return res, nil
	}
	corrected, err := o.deps.Store.ApplyCorrections(ctx, memory.CorrectionASR, res.Text)
	if err != nil {
		return res, fmt.Errorf("applying learned corrections: %w", err)
	}
	res.Text = corrected
	return res, nil
}

// Solve runs the full pipeline on normalized problem text. inputType
// records where the text came from (one of the models input kinds).
// Failures are encoded in the result status, never returned as an error:
// quota exhaustion yields StatusQuotaExceeded, everything else
// StatusFailed, both with the trace up to the failure point.
func (o *Orchestrator) Solve(ctx context.Context, rawText, inputType string) SolveResult {
	tr := &trace{}
	timestamp := o.deps.Clock()

	// Stage 1: parse.
	o.log.Info("stage 1: parsing problem")
	tr.add(StageParsing, StatusStarted)
	parsed, err := o.deps.Parser.Parse(ctx, rawText, inputType)
	if err != nil {
		return o.fail(tr, StageParsing, err)
	}
	tr.addFields(StageParsing, StatusCompleted, map[string]any{
		"topic":      parsed.Topic,
		"confidence": parsed.Confidence,
	})

	// Ambiguity does not gate the pipeline; solve with the best
	// interpretation and surface the flag in the result.
	if parsed.NeedsClarification {
		o.log.Warn("problem flagged for clarification, attempting to solve anyway")
		tr.addMessage(StageParsing, StatusWarning,
			"Problem may be ambiguous but proceeding with best interpretation")
	}

	// Stage 2: memory lookup. Never gates the solve.
	o.log.Info("stage 2: checking memory for similar problems")
	similarIDs := o.findSimilar(ctx, tr, parsed)

	// Stage 3: knowledge retrieval.
	o.log.Info("stage 3: retrieving relevant knowledge")
	tr.add(StageRetrieval, StatusStarted)
	snippets, err := o.deps.Retriever.Retrieve(ctx, parsed.ProblemText, o.deps.RAGTopK)
	if err != nil {
		return o.fail(tr, StageRetrieval, err)
	}
	tr.addFields(StageRetrieval, StatusCompleted, map[string]any{
		"documents_retrieved": len(snippets),
	})

	// Stage 4: routing.
	o.log.Info("stage 4: determining solution strategy")
	tr.add(StageRouting, StatusStarted)
	strategy, err := o.deps.Router.Route(ctx, parsed)
	if err != nil {
		return o.fail(tr, StageRouting, err)
	}
	tr.addFields(StageRouting, StatusCompleted, map[string]any{
		"strategy": strategy.Strategy,
	})

	// Stage 5: solving.
	o.log.Info("stage 5: solving problem")
	tr.add(StageSolving, StatusStarted)
	solution, err := o.deps.Solver.Solve(ctx, parsed, strategy, snippets)
	if err != nil {
		return o.fail(tr, StageSolving, err)
	}
	tr.addFields(StageSolving, StatusCompleted, map[string]any{
		"confidence": solution.Confidence,
	})

	// Stage 6: verification.
	o.log.Info("stage 6: verifying solution")
	tr.add(StageVerifying, StatusStarted)
	verification, err := o.deps.Verifier.Verify(ctx, parsed, solution)
	if err != nil {
		return o.fail(tr, StageVerifying, err)
	}
	tr.addFields(StageVerifying, StatusCompleted, map[string]any{
		"is_correct":    verification.IsCorrect,
		"requires_hitl": verification.RequiresHITL,
	})

	// Stage 7: explanation. A verified solution is not discarded because
	// the write-up failed; the solve degrades to a stub explanation and
	// is stored anyway.
	o.log.Info("stage 7: generating explanation")
	tr.add(StageExplaining, StatusStarted)
	explanation, err := o.deps.Explainer.Explain(ctx, parsed, solution)
	if err != nil {
		o.log.Warn("explanation failed, continuing without a write-up", zap.Error(err))
		tr.addMessage(StageExplaining, StatusWarning, "Explanation unavailable: "+err.Error())
		explanation = models.Explanation{
			Explanation:    fmt.Sprintf("Error generating explanation: %v", err),
			KeyConcepts:    []string{},
			CommonMistakes: []string{},
			Tips:           []string{},
		}
	} else {
		tr.add(StageExplaining, StatusCompleted)
	}

	// The interaction is committed only once every stage has completed;
	// failed solves leave no record.
	interactionID, err := o.deps.Store.StoreInteraction(ctx, models.Interaction{
		Timestamp:         timestamp,
		RawInput:          rawText,
		InputType:         inputType,
		ParsedProblem:     parsed,
		RetrievedContext:  snippets,
		Solution:          solution,
		Verification:      verification,
		Explanation:       explanation,
		SimilarProblemIDs: similarIDs,
	})
	if err != nil {
		return o.fail(tr, StageStored, err)
	}
	tr.addFields(StageStored, StatusCompleted, map[string]any{
		"interaction_id": interactionID,
	})

	o.log.Info("problem solved", zap.String("interaction_id", interactionID))

	return SolveResult{
		Status:             StatusSuccess,
		InteractionID:      interactionID,
		ParsedProblem:      &parsed,
		Strategy:           &strategy,
		Solution:           &solution,
		Verification:       &verification,
		Explanation:        &explanation,
		RAGSources:         truncateSnippets(snippets),
		SimilarProblemIDs:  similarIDs,
		RequiresHITL:       verification.RequiresHITL,
		NeedsClarification: parsed.NeedsClarification,
		Trace:              tr.entries,
	}
}

// SubmitFeedback records user feedback on a past interaction.
func (o *Orchestrator) SubmitFeedback(ctx context.Context, fb models.Feedback) error {
	if err := o.deps.Store.StoreFeedback(ctx, fb); err != nil {
		return fmt.Errorf("storing feedback: %w", err)
	}
	o.log.Info("feedback submitted", zap.String("interaction_id", fb.InteractionID))
	return nil
}

// RecordCorrection stores a learned OCR or ASR fix for future inputs.
func (o *Orchestrator) RecordCorrection(ctx context.Context, kind, original, corrected string) error {
	if kind != memory.CorrectionOCR && kind != memory.CorrectionASR {
		return fmt.Errorf("unknown correction kind %q", kind)
	}
	if err := o.deps.Store.RecordCorrection(ctx, memory.Correction{
		Kind:      kind,
		Original:  original,
		Corrected: corrected,
	}); err != nil {
		return fmt.Errorf("recording correction: %w", err)
	}
	o.log.Info("correction recorded", zap.String("kind", kind))
	return nil
}

// GetInteraction returns a stored interaction, or nil when unknown.
func (o *Orchestrator) GetInteraction(ctx context.Context, id string) (*models.Interaction, error) {
	return o.deps.Store.GetInteraction(ctx, id)
}

// Recent returns the most recent n interactions in chronological order.
func (o *Orchestrator) Recent(ctx context.Context, n int) ([]models.Interaction, error) {
	return o.deps.Store.Recent(ctx, n)
}

// Close releases the retriever and store.
func (o *Orchestrator) Close() error {
	retErr := o.deps.Retriever.Close()
	if err := o.deps.Store.Close(); err != nil {
		return err
	}
	return retErr
}

// findSimilar looks up past problems on the same topic. Lookup failures
// are logged and traced as warnings; the solve continues without matches.
func (o *Orchestrator) findSimilar(ctx context.Context, tr *trace, parsed models.ParsedProblem) []string {
	matches, err := o.deps.Store.FindSimilar(ctx, parsed.ProblemText, parsed.Topic, 3)
	if err != nil {
		o.log.Warn("memory lookup failed, continuing without similar problems", zap.Error(err))
		tr.addMessage(StageMemoryLookup, StatusWarning, err.Error())
		return nil
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.Interaction.InteractionID)
	}
	tr.addFields(StageMemoryLookup, StatusCompleted, map[string]any{
		"similar_found": len(ids),
	})
	return ids
}

// fail finalizes a solve after a stage error. Quota exhaustion is
// distinguished so the caller can tell the user to retry later.
func (o *Orchestrator) fail(tr *trace, stage Stage, err error) SolveResult {
	o.log.Error("pipeline stage failed", zap.String("stage", string(stage)), zap.Error(err))

	if llm.IsQuota(err) {
		tr.addMessage(stage, StatusError, "API quota exceeded")
		return SolveResult{
			Status:  StatusQuotaExceeded,
			Message: quotaMessage,
			Trace:   tr.entries,
		}
	}

	tr.addMessage(stage, StatusError, err.Error())
	return SolveResult{
		Status:  StatusFailed,
		Message: err.Error(),
		Trace:   tr.entries,
	}
}

func truncateSnippets(snippets []models.KnowledgeSnippet) []models.KnowledgeSnippet {
	out := make([]models.KnowledgeSnippet, len(snippets))
	for i, sn := range snippets {
		out[i] = sn
		runes := []rune(sn.Content)
		if len(runes) > ragSourceContentLimit {
			out[i].Content = string(runes[:ragSourceContentLimit])
		}
	}
	return out
}
