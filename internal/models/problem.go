// Package models defines the data contracts passed between pipeline stages.
package models

// Supported problem topics. Parsing emits TopicUnknown when the problem
// does not clearly fall into one of the four supported domains.
const (
	TopicAlgebra       = "algebra"
	TopicCalculus      = "calculus"
	TopicProbability   = "probability"
	TopicLinearAlgebra = "linear_algebra"
	TopicUnknown       = "unknown"
)

// SupportedTopics lists the topics the pipeline positively identifies.
var SupportedTopics = []string{
	TopicAlgebra,
	TopicCalculus,
	TopicProbability,
	TopicLinearAlgebra,
}

// ParsedProblem is the structured form of a raw problem statement.
// Produced once per solve call and immutable afterward.
type ParsedProblem struct {
	// Cleaned problem statement
	ProblemText string `json:"problem_text"`

	// One of the supported topics, or "unknown"
	Topic string `json:"topic"`

	// Variables appearing in the problem
	Variables []string `json:"variables"`

	// Constraints stated or implied by the problem
	Constraints []string `json:"constraints"`

	// Equations extracted from the problem
	Equations []string `json:"equations"`

	// True when the input is ambiguous, incomplete, or contradictory
	NeedsClarification bool `json:"needs_clarification"`

	// Parser confidence in [0, 1]
	Confidence float64 `json:"confidence"`

	// Brief explanation of parsing decisions
	Reasoning string `json:"reasoning"`
}

// Strategy is the routing decision for a parsed problem.
type Strategy struct {
	// Primary strategy name from the fixed strategy set
	Strategy string `json:"strategy"`

	// Tool names from the fixed tool set
	Tools []string `json:"tools"`

	// Free-text justification of the chosen approach
	Approach string `json:"approach"`

	// Router confidence in [0, 1]
	Confidence float64 `json:"confidence"`
}

// Solution is the solver's step-by-step answer.
type Solution struct {
	// Ordered solution steps
	Steps []string `json:"steps"`

	// Final answer statement
	FinalAnswer string `json:"final_answer"`

	// Explanation of the solution process
	Reasoning string `json:"reasoning"`

	// Solver confidence in [0, 1]
	Confidence float64 `json:"confidence"`

	// Optional symbolic tool invocation requested by the solver
	ToolCode string `json:"tool_code,omitempty"`

	// Result of evaluating ToolCode; errors are captured here as text
	ToolResult string `json:"tool_result,omitempty"`
}

// Verification is the verifier's judgement of a solution.
type Verification struct {
	IsCorrect bool `json:"is_correct"`

	// Verifier confidence in [0, 1]
	Confidence float64 `json:"confidence"`

	// Specific problems found, empty when none
	IssuesFound []string `json:"issues_found"`

	// True when a human should review the result. Forced true whenever
	// Confidence falls below the configured threshold.
	RequiresHITL bool `json:"requires_hitl"`

	// Detailed explanation of the verification
	Details string `json:"verification_details"`
}

// Explanation is the student-facing write-up of a verified solution.
type Explanation struct {
	Explanation    string   `json:"explanation"`
	KeyConcepts    []string `json:"key_concepts"`
	CommonMistakes []string `json:"common_mistakes"`
	Tips           []string `json:"tips"`
}

// KnowledgeSnippet is one retrieved chunk of the knowledge base.
// Identity is (Source, chunk index); content is immutable.
type KnowledgeSnippet struct {
	Content string `json:"content"`
	Source  string `json:"source"`

	// Similarity score assigned at retrieval time, when available
	Score float64 `json:"score,omitempty"`
}
