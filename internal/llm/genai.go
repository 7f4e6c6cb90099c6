package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GenAIConfig configures the Gemini-backed client.
type GenAIConfig struct {
	// APIKey authenticates against the Gemini API. Required.
	APIKey string

	// Model is the chat model. Default: "gemini-2.0-flash".
	Model string

	// EmbeddingModel is the embedding model. Default: "gemini-embedding-001".
	EmbeddingModel string
}

func (c *GenAIConfig) withDefaults() GenAIConfig {
	out := *c
	if out.Model == "" {
		out.Model = "gemini-2.0-flash"
	}
	if out.EmbeddingModel == "" {
		out.EmbeddingModel = "gemini-embedding-001"
	}
	return out
}

// GenAIClient implements Client and Embedder against the Gemini API.
// It also provides the multimodal image-reading and audio-transcription
// calls used for input normalization. Thread-safe.
type GenAIClient struct {
	client         *genai.Client
	model          string
	embeddingModel string
	log            *zap.Logger
}

// NewGenAIClient creates a GenAIClient. A nil logger is replaced by a no-op.
func NewGenAIClient(ctx context.Context, cfg GenAIConfig, log *zap.Logger) (*GenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	cfg = cfg.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &GenAIClient{
		client:         client,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		log:            log,
	}, nil
}

// Complete performs one chat completion round trip.
func (c *GenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSONResponse {
		cfg.ResponseMIMEType = "application/json"
	}

	contents := []*genai.Content{
		genai.NewContentFromText(req.Prompt, genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model %s", c.model)
	}
	return text, nil
}

// Embed returns the embedding of a single retrieval query.
func (c *GenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	result, err := c.client.Models.EmbedContent(ctx,
		c.embeddingModel,
		contents,
		&genai.EmbedContentConfig{
			TaskType: "RETRIEVAL_QUERY",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("embed failed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return result.Embeddings[0].Values, nil
}

// EmbedBatch returns embeddings for a batch of documents to be indexed.
func (c *GenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := c.client.Models.EmbedContent(ctx,
		c.embeddingModel,
		contents,
		&genai.EmbedContentConfig{
			TaskType: "RETRIEVAL_DOCUMENT",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("batch embed failed: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(result.Embeddings), len(texts))
	}

	embeddings := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		embeddings[i] = emb.Values
	}
	return embeddings, nil
}

// ModelID identifies the embedding model for index compatibility checks.
func (c *GenAIClient) ModelID() string {
	return c.embeddingModel
}

const readImagePrompt = `Extract the mathematical problem text from this image.

STRICT OUTPUT FORMAT (JSON only):
{
  "text": "the extracted problem text",
  "confidence": 0.9
}

confidence is your certainty in the extraction, between 0 and 1.
If the image contains no readable text, return an empty text with confidence 0.
Return ONLY the JSON output, no additional text.`

// ocrResponse is the payload returned by the image-reading call.
type ocrResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// ReadImage extracts problem text from an image and reports the model's
// confidence in the extraction.
func (c *GenAIClient) ReadImage(ctx context.Context, data []byte, mimeType string) (string, float64, error) {
	content := genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText(readImagePrompt),
		genai.NewPartFromBytes(data, mimeType),
	}, genai.RoleUser)

	resp, err := c.client.Models.GenerateContent(ctx, c.model, []*genai.Content{content}, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0)),
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", 0, fmt.Errorf("read image: %w", err)
	}

	var out ocrResponse
	if err := json.Unmarshal([]byte(ExtractJSON(resp.Text())), &out); err != nil {
		return "", 0, fmt.Errorf("decoding image read response: %w", err)
	}

	c.log.Debug("image read completed",
		zap.Float64("confidence", out.Confidence),
		zap.Int("text_length", len(out.Text)))
	return out.Text, out.Confidence, nil
}

const transcribePrompt = `Transcribe the spoken mathematical problem in this audio recording.
Return only the transcript text, nothing else.`

// Transcribe converts a spoken problem recording to text.
func (c *GenAIClient) Transcribe(ctx context.Context, data []byte, mimeType string) (string, error) {
	content := genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText(transcribePrompt),
		genai.NewPartFromBytes(data, mimeType),
	}, genai.RoleUser)

	resp, err := c.client.Models.GenerateContent(ctx, c.model, []*genai.Content{content}, &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0)),
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty transcript from model %s", c.model)
	}
	return text, nil
}

// Close is a no-op; the SDK client holds no resources that need explicit
// release. Kept so the client can sit in a close chain.
func (c *GenAIClient) Close() error {
	return nil
}

var (
	_ Client   = (*GenAIClient)(nil)
	_ Embedder = (*GenAIClient)(nil)
)
