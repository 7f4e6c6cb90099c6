// Package config loads and validates mathmentor configuration.
//
// Configuration lives in .mathmentor/config.yaml under the project root.
// Environment variables override file values for credentials and model
// selection so keys never need to be committed.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the configuration file inside the data directory.
const ConfigFileName = "config.yaml"

// Temperatures holds the per-agent sampling temperatures. Low values for
// parsing, routing, and verification favor determinism; the explainer runs
// warmer to favor fluency.
type Temperatures struct {
	Parser    float32 `yaml:"parser"`
	Router    float32 `yaml:"router"`
	Solver    float32 `yaml:"solver"`
	Verifier  float32 `yaml:"verifier"`
	Explainer float32 `yaml:"explainer"`
}

// Config holds all mathmentor tunables.
type Config struct {
	// GeminiAPIKey authenticates LLM, embedding, OCR, and ASR calls.
	// Set via the GEMINI_API_KEY environment variable; never stored in
	// the config file.
	GeminiAPIKey string `yaml:"-"`

	// GeminiModel is the chat model used by all five agents.
	GeminiModel string `yaml:"gemini_model"`

	// EmbeddingModel is the model used to embed knowledge chunks and
	// retrieval queries. Changing it invalidates the persisted index.
	EmbeddingModel string `yaml:"embedding_model"`

	// OCRConfidenceThreshold flags image input for human review below it.
	OCRConfidenceThreshold float64 `yaml:"ocr_confidence_threshold"`

	// ASRConfidenceThreshold flags audio input for human review below it.
	ASRConfidenceThreshold float64 `yaml:"asr_confidence_threshold"`

	// ASRFixedConfidence is assigned to transcripts; the transcription
	// collaborator does not expose per-segment confidence.
	ASRFixedConfidence float64 `yaml:"asr_fixed_confidence"`

	// VerifierConfidenceThreshold forces requires_hitl on verifications
	// reporting confidence below it.
	VerifierConfidenceThreshold float64 `yaml:"verifier_confidence_threshold"`

	// RAGTopK is the number of knowledge snippets retrieved per solve.
	RAGTopK int `yaml:"rag_top_k"`

	// ChunkSize is the knowledge-base chunk length in characters.
	ChunkSize int `yaml:"chunk_size"`

	// ChunkOverlap is the character overlap between adjacent chunks.
	ChunkOverlap int `yaml:"chunk_overlap"`

	// KnowledgeBaseDir is the directory of knowledge-base markdown files,
	// relative to the project root unless absolute.
	KnowledgeBaseDir string `yaml:"knowledge_base_dir"`

	// Temperatures are the per-agent sampling temperatures.
	Temperatures Temperatures `yaml:"temperatures"`
}

// Default returns the configuration used when no config file exists.
func Default() Config {
	return Config{
		GeminiModel:                 "gemini-2.0-flash",
		EmbeddingModel:              "gemini-embedding-001",
		OCRConfidenceThreshold:      0.7,
		ASRConfidenceThreshold:      0.7,
		ASRFixedConfidence:          0.85,
		VerifierConfidenceThreshold: 0.8,
		RAGTopK:                     3,
		ChunkSize:                   500,
		ChunkOverlap:                50,
		KnowledgeBaseDir:            "knowledge_base",
		Temperatures: Temperatures{
			Parser:    0.3,
			Router:    0.3,
			Solver:    0.3,
			Verifier:  0.2,
			Explainer: 0.5,
		},
	}
}

// Load reads configuration for the given data directory. Missing files are
// not an error: defaults apply. Environment variables are applied last.
func Load(dataDir string) (Config, error) {
	cfg := Default()

	path := filepath.Join(dataDir, ConfigFileName)
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides file values with environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.GeminiAPIKey = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		c.GeminiModel = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		c.EmbeddingModel = v
	}
}

// Save writes the configuration file into the data directory.
func (c Config) Save(dataDir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	path := filepath.Join(dataDir, ConfigFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration can drive a solve call.
func (c Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.RAGTopK <= 0 {
		return fmt.Errorf("rag_top_k must be positive, got %d", c.RAGTopK)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_size), got %d", c.ChunkOverlap)
	}
	if c.VerifierConfidenceThreshold < 0 || c.VerifierConfidenceThreshold > 1 {
		return fmt.Errorf("verifier_confidence_threshold must be in [0, 1], got %f", c.VerifierConfidenceThreshold)
	}
	return nil
}
