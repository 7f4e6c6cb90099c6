// Package input normalizes text, image, and audio input into problem text
// ready for parsing.
package input

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// ImageReader extracts problem text from an image. Returns the text and an
// overall recognition confidence in [0, 1].
type ImageReader interface {
	ReadImage(ctx context.Context, data []byte, mimeType string) (string, float64, error)
}

// AudioTranscriber transcribes spoken problem audio.
type AudioTranscriber interface {
	Transcribe(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Result is the outcome of normalizing one input. Normalization never
// fails hard: recognition errors surface as a zero-confidence Result with
// NeedsHITL set, so the caller can route to human review instead of
// aborting.
type Result struct {
	// Text is the normalized problem text handed to the parser.
	Text string `json:"text"`

	// RawText is the text before math-phrase conversion and learned
	// corrections. Equal to Text for typed input.
	RawText string `json:"raw_text"`

	Confidence float64 `json:"confidence"`

	NeedsHITL bool `json:"needs_hitl"`

	Message string `json:"message"`
}

// Config holds confidence thresholds for the normalizer.
type Config struct {
	// OCRConfidenceThreshold flags image input below it. Default: 0.7.
	OCRConfidenceThreshold float64

	// ASRConfidenceThreshold flags audio input below it. Default: 0.7.
	ASRConfidenceThreshold float64

	// ASRFixedConfidence is assigned to every transcript, since the
	// transcription call reports no confidence of its own. Default: 0.85.
	ASRFixedConfidence float64
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.OCRConfidenceThreshold == 0 {
		out.OCRConfidenceThreshold = 0.7
	}
	if out.ASRConfidenceThreshold == 0 {
		out.ASRConfidenceThreshold = 0.7
	}
	if out.ASRFixedConfidence == 0 {
		out.ASRFixedConfidence = 0.85
	}
	return out
}

// Normalizer converts raw input of any supported kind into problem text.
type Normalizer struct {
	cfg Config
	ocr ImageReader
	asr AudioTranscriber
	log *zap.Logger
}

// NewNormalizer creates a Normalizer. ocr and asr may be nil when the
// corresponding input kind is not used; calls for that kind then produce
// an HITL-flagged Result.
func NewNormalizer(cfg Config, ocr ImageReader, asr AudioTranscriber, log *zap.Logger) *Normalizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Normalizer{cfg: cfg.withDefaults(), ocr: ocr, asr: asr, log: log}
}

// FromText normalizes typed input. Empty input is flagged for review.
func (n *Normalizer) FromText(text string) Result {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Result{NeedsHITL: true, Message: "Empty input"}
	}
	return Result{
		Text:       trimmed,
		RawText:    trimmed,
		Confidence: 1.0,
		Message:    "Text input processed successfully",
	}
}

// FromImage extracts problem text from an image. Low recognition confidence
// or a recognition failure flags the result for human review.
func (n *Normalizer) FromImage(ctx context.Context, data []byte, mimeType string) Result {
	if n.ocr == nil {
		return Result{NeedsHITL: true, Message: "Error: image input is not configured"}
	}

	text, confidence, err := n.ocr.ReadImage(ctx, data, mimeType)
	if err != nil {
		n.log.Error("image recognition failed", zap.Error(err))
		return Result{NeedsHITL: true, Message: fmt.Sprintf("Error: %v", err)}
	}
	if strings.TrimSpace(text) == "" {
		return Result{NeedsHITL: true, Message: "No text detected in image"}
	}

	needsHITL := confidence < n.cfg.OCRConfidenceThreshold
	n.log.Info("image recognition completed",
		zap.Float64("confidence", confidence),
		zap.Bool("needs_hitl", needsHITL))

	return Result{
		Text:       text,
		RawText:    text,
		Confidence: confidence,
		NeedsHITL:  needsHITL,
		Message:    "OCR completed successfully",
	}
}

// FromAudio transcribes spoken input and converts spoken math phrases to
// notation. The transcription call reports no confidence, so every
// transcript carries the configured fixed confidence.
func (n *Normalizer) FromAudio(ctx context.Context, data []byte, mimeType string) Result {
	if n.asr == nil {
		return Result{NeedsHITL: true, Message: "Error: audio input is not configured"}
	}

	raw, err := n.asr.Transcribe(ctx, data, mimeType)
	if err != nil {
		n.log.Error("audio transcription failed", zap.Error(err))
		return Result{NeedsHITL: true, Message: fmt.Sprintf("Error: %v", err)}
	}
	if strings.TrimSpace(raw) == "" {
		return Result{NeedsHITL: true, Message: "No speech detected in audio"}
	}

	confidence := n.cfg.ASRFixedConfidence
	needsHITL := confidence < n.cfg.ASRConfidenceThreshold
	n.log.Info("audio transcription completed",
		zap.Float64("confidence", confidence),
		zap.Bool("needs_hitl", needsHITL))

	return Result{
		Text:       ConvertMathPhrases(raw),
		RawText:    raw,
		Confidence: confidence,
		NeedsHITL:  needsHITL,
		Message:    "Audio transcription completed successfully",
	}
}

// mathPhrase is one spoken phrase and its notation.
type mathPhrase struct {
	spoken string
	symbol string
}

// mathPhrases is applied in order. Longer phrases come before their
// substrings so "x squared" wins over "squared" and "square root of" is
// never mangled by "squared". Matching is word-bounded so short names
// like "pi" never fire inside words such as "spin".
var mathPhrases = []mathPhrase{
	{"square root of", "√"},
	{"multiplied by", "×"},
	{"divided by", "÷"},
	{"x squared", "x²"},
	{"x cubed", "x³"},
	{"squared", "²"},
	{"cubed", "³"},
	{"plus", "+"},
	{"minus", "-"},
	{"times", "×"},
	{"equals", "="},
	{"theta", "θ"},
	{"alpha", "α"},
	{"beta", "β"},
	{"delta", "Δ"},
	{"sigma", "Σ"},
	{"pi", "π"},
}

// phrasePattern is a compiled, word-bounded form of one mathPhrase.
type phrasePattern struct {
	re     *regexp.Regexp
	symbol string
}

var phrasePatterns = func() []phrasePattern {
	out := make([]phrasePattern, len(mathPhrases))
	for i, p := range mathPhrases {
		out[i] = phrasePattern{
			re:     regexp.MustCompile(`\b` + regexp.QuoteMeta(p.spoken) + `\b`),
			symbol: p.symbol,
		}
	}
	return out
}()

// ConvertMathPhrases lowercases text and rewrites spoken math phrases to
// mathematical notation.
func ConvertMathPhrases(text string) string {
	result := strings.ToLower(text)
	for _, p := range phrasePatterns {
		result = p.re.ReplaceAllLiteralString(result, p.symbol)
	}
	return result
}
