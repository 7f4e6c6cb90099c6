// Package mcp exposes the solve pipeline over the Model Context Protocol
// so agent hosts can call it as a set of tools.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/mathmentor/internal/models"
	"github.com/nvandessel/mathmentor/internal/pipeline"
)

// Config holds MCP server configuration.
type Config struct {
	// Name is the server name reported to clients.
	Name string

	// Version is the server version reported to clients.
	Version string

	// Root is the project root containing the .mathmentor directory.
	Root string
}

// Server wraps an MCP server exposing the solve pipeline.
type Server struct {
	server *mcp.Server
	orch   *pipeline.Orchestrator
	root   string
	closed bool
}

// SolveInput is the math_solve tool input.
type SolveInput struct {
	Problem string `json:"problem" jsonschema:"the math problem to solve, as plain text"`
}

// FeedbackInput is the math_feedback tool input.
type FeedbackInput struct {
	InteractionID string `json:"interaction_id" jsonschema:"ID of the solved interaction"`
	Approved      bool   `json:"approved" jsonschema:"whether the solution was correct"`
	CorrectAnswer string `json:"correct_answer,omitempty" jsonschema:"the right answer, if the solution was wrong"`
	Comments      string `json:"comments,omitempty" jsonschema:"free-form comments"`
}

// CorrectionInput is the math_correct tool input.
type CorrectionInput struct {
	Kind      string `json:"kind" jsonschema:"correction kind, ocr or asr"`
	Original  string `json:"original" jsonschema:"the misrecognized text"`
	Corrected string `json:"corrected" jsonschema:"the corrected text"`
}

// HistoryInput is the math_history tool input.
type HistoryInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of interactions to return, default 5"`
}

// HistoryOutput is the math_history tool output.
type HistoryOutput struct {
	Interactions []models.Interaction `json:"interactions"`
}

// StatusOutput acknowledges a write-only tool call.
type StatusOutput struct {
	Status string `json:"status"`
}

// NewServer creates an MCP server over an already-wired orchestrator.
func NewServer(cfg *Config, orch *pipeline.Orchestrator) (*Server, error) {
	if orch == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		server: server,
		orch:   orch,
		root:   cfg.Root,
	}
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "math_solve",
		Description: "Solve a JEE-level math problem step by step, with verification and a student-friendly explanation",
	}, s.handleSolve)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "math_feedback",
		Description: "Record feedback on a previously solved problem",
	}, s.handleFeedback)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "math_correct",
		Description: "Teach the system a recurring OCR or ASR misrecognition fix",
	}, s.handleCorrection)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "math_history",
		Description: "List recently solved problems",
	}, s.handleHistory)
}

func (s *Server) handleSolve(ctx context.Context, _ *mcp.CallToolRequest, in SolveInput) (*mcp.CallToolResult, pipeline.SolveResult, error) {
	normalized := s.orch.ProcessText(in.Problem)
	if normalized.NeedsHITL {
		return nil, pipeline.SolveResult{}, fmt.Errorf("invalid problem text: %s", normalized.Message)
	}

	result := s.orch.Solve(ctx, normalized.Text, models.InputText)
	return nil, result, nil
}

func (s *Server) handleFeedback(ctx context.Context, _ *mcp.CallToolRequest, in FeedbackInput) (*mcp.CallToolResult, StatusOutput, error) {
	if in.InteractionID == "" {
		return nil, StatusOutput{}, fmt.Errorf("interaction_id is required")
	}

	err := s.orch.SubmitFeedback(ctx, models.Feedback{
		InteractionID: in.InteractionID,
		Approved:      in.Approved,
		CorrectAnswer: in.CorrectAnswer,
		Comments:      in.Comments,
	})
	if err != nil {
		return nil, StatusOutput{}, err
	}
	return nil, StatusOutput{Status: "recorded"}, nil
}

func (s *Server) handleCorrection(ctx context.Context, _ *mcp.CallToolRequest, in CorrectionInput) (*mcp.CallToolResult, StatusOutput, error) {
	if in.Original == "" || in.Corrected == "" {
		return nil, StatusOutput{}, fmt.Errorf("original and corrected are required")
	}

	if err := s.orch.RecordCorrection(ctx, in.Kind, in.Original, in.Corrected); err != nil {
		return nil, StatusOutput{}, err
	}
	return nil, StatusOutput{Status: "recorded"}, nil
}

func (s *Server) handleHistory(ctx context.Context, _ *mcp.CallToolRequest, in HistoryInput) (*mcp.CallToolResult, HistoryOutput, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = 5
	}

	interactions, err := s.orch.Recent(ctx, limit)
	if err != nil {
		return nil, HistoryOutput{}, err
	}
	return nil, HistoryOutput{Interactions: interactions}, nil
}

// Run serves MCP over stdio until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Close releases the orchestrator. Safe to call multiple times.
func (s *Server) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.orch.Close()
}
