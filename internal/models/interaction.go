package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Input kinds accepted by the pipeline.
const (
	InputText  = "text"
	InputImage = "image"
	InputAudio = "audio"
)

// Interaction is the durable record of one completed solve call.
// Created exactly once per solve that reaches the explanation stage
// and never mutated afterward.
type Interaction struct {
	InteractionID string `json:"interaction_id"`

	Timestamp time.Time `json:"timestamp"`

	// The problem text as received, before parsing
	RawInput string `json:"raw_input"`

	// "text", "image", or "audio"
	InputType string `json:"input_type"`

	ParsedProblem ParsedProblem `json:"parsed_problem"`

	RetrievedContext []KnowledgeSnippet `json:"retrieved_context"`

	Solution Solution `json:"solution"`

	Verification Verification `json:"verification"`

	Explanation Explanation `json:"explanation"`

	// IDs of similar past interactions found during memory lookup
	SimilarProblemIDs []string `json:"similar_problem_ids"`
}

// Feedback is one user judgement on a past interaction. Feedback is
// write-only from the pipeline's perspective and is never joined back
// into the interaction log.
type Feedback struct {
	InteractionID string    `json:"interaction_id"`
	Approved      bool      `json:"approved"`
	CorrectAnswer string    `json:"correct_answer,omitempty"`
	Comments      string    `json:"comments,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// InteractionID derives the stable identifier for an interaction from its
// timestamp and raw input. The same (timestamp, raw input) pair always
// yields the same ID: a 16-hex-digit content hash.
func InteractionID(timestamp time.Time, rawInput string) string {
	sum := sha256.Sum256([]byte(timestamp.Format(time.RFC3339Nano) + "_" + rawInput))
	return hex.EncodeToString(sum[:])[:16]
}
