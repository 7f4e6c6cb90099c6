package pipeline

import "github.com/nvandessel/mathmentor/internal/models"

// Solve result statuses.
const (
	StatusSuccess       = "success"
	StatusQuotaExceeded = "quota_exceeded"
	StatusFailed        = "error"
)

// quotaMessage is shown to the user when the provider reports quota
// exhaustion. The request can simply be retried after the quota resets.
const quotaMessage = `API quota exceeded.

You've reached the request limit for your API key.

Options:
1. Wait for the quota to reset (quotas reset automatically)
2. Get a new API key at https://aistudio.google.com/apikey
3. Upgrade to a paid plan at https://ai.google.dev/pricing`

// ragSourceContentLimit bounds how much snippet content is echoed back in
// the result; the full content lives in the stored interaction.
const ragSourceContentLimit = 200

// SolveResult is the complete outcome of one solve call. Status is always
// set; the artifact pointers are nil for stages that never ran.
type SolveResult struct {
	Status string `json:"status"`

	// Message carries the user-facing error text for non-success results.
	Message string `json:"message,omitempty"`

	// InteractionID of the stored record, set only on success.
	InteractionID string `json:"interaction_id,omitempty"`

	ParsedProblem *models.ParsedProblem `json:"parsed_problem,omitempty"`
	Strategy      *models.Strategy      `json:"strategy,omitempty"`
	Solution      *models.Solution      `json:"solution,omitempty"`
	Verification  *models.Verification  `json:"verification,omitempty"`
	Explanation   *models.Explanation   `json:"explanation,omitempty"`

	// RAGSources lists the retrieved snippets with content truncated for
	// display.
	RAGSources []models.KnowledgeSnippet `json:"rag_sources,omitempty"`

	// SimilarProblemIDs of past interactions found during memory lookup.
	SimilarProblemIDs []string `json:"similar_problem_ids,omitempty"`

	RequiresHITL bool `json:"requires_hitl"`

	NeedsClarification bool `json:"needs_clarification"`

	Trace []TraceEntry `json:"execution_trace"`
}
