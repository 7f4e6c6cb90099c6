package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nvandessel/mathmentor/internal/agent"
	"github.com/nvandessel/mathmentor/internal/config"
	"github.com/nvandessel/mathmentor/internal/input"
	"github.com/nvandessel/mathmentor/internal/knowledge"
	"github.com/nvandessel/mathmentor/internal/llm"
	"github.com/nvandessel/mathmentor/internal/memory"
	"github.com/nvandessel/mathmentor/internal/models"
	"github.com/nvandessel/mathmentor/internal/pipeline"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "mathmentor",
		Short: "AI math mentor - multi-agent JEE problem solving",
		Long: `mathmentor solves JEE-level math problems through a multi-agent
pipeline: parsing, strategy routing, step-by-step solving, verification,
and a student-friendly explanation, grounded in a local knowledge base.

Solved problems are remembered per project in .mathmentor/ so similar
problems and learned input corrections improve future answers.`,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging to stderr")

	// Add subcommands
	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newSolveCmd(),
		newHistoryCmd(),
		newFeedbackCmd(),
		newCorrectCmd(),
		newMCPServerCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]string{"version": version})
			} else {
				fmt.Printf("mathmentor version %s\n", version)
			}
		},
	}
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize math mentor tracking in current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")

			dataDir, err := memory.EnsureDataDir(root)
			if err != nil {
				return err
			}

			// Write the default config if none exists so the knobs are
			// discoverable.
			cfgPath := filepath.Join(dataDir, config.ConfigFileName)
			if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
				if err := config.Default().Save(dataDir); err != nil {
					return err
				}
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]string{
					"status": "initialized",
					"path":   dataDir,
				})
			} else {
				fmt.Printf("Initialized %s/ in %s\n", memory.DirName, root)
				fmt.Println("Set GEMINI_API_KEY to start solving problems.")
			}

			return nil
		},
	}
}

func newSolveCmd() *cobra.Command {
	var (
		imagePath string
		audioPath string
	)

	cmd := &cobra.Command{
		Use:   "solve [problem text]",
		Short: "Solve a math problem from text, an image, or an audio recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			orch, err := buildOrchestrator(cmd)
			if err != nil {
				return err
			}
			defer orch.Close()

			if err := orch.InitializeIndex(ctx); err != nil {
				return fmt.Errorf("building knowledge index: %w", err)
			}

			normalized, inputType, err := normalizeArgs(ctx, orch, args, imagePath, audioPath)
			if err != nil {
				return err
			}
			if normalized.NeedsHITL {
				return fmt.Errorf("input needs review before solving: %s", normalized.Message)
			}

			result := orch.Solve(ctx, normalized.Text, inputType)

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			printResult(result)
			if result.Status != pipeline.StatusSuccess {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "Read the problem from an image file")
	cmd.Flags().StringVar(&audioPath, "audio", "", "Read the problem from an audio file")
	return cmd
}

// normalizeArgs turns the solve command's arguments into problem text.
// Exactly one input source is allowed.
func normalizeArgs(ctx context.Context, orch *pipeline.Orchestrator, args []string, imagePath, audioPath string) (input.Result, string, error) {
	sources := 0
	if len(args) > 0 {
		sources++
	}
	if imagePath != "" {
		sources++
	}
	if audioPath != "" {
		sources++
	}
	if sources != 1 {
		return input.Result{}, "", fmt.Errorf("provide exactly one of: problem text, --image, or --audio")
	}

	switch {
	case imagePath != "":
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return input.Result{}, "", fmt.Errorf("reading image: %w", err)
		}
		res, err := orch.ProcessImage(ctx, data, mimeForFile(imagePath))
		return res, models.InputImage, err
	case audioPath != "":
		data, err := os.ReadFile(audioPath)
		if err != nil {
			return input.Result{}, "", fmt.Errorf("reading audio: %w", err)
		}
		res, err := orch.ProcessAudio(ctx, data, mimeForFile(audioPath))
		return res, models.InputAudio, err
	default:
		return orch.ProcessText(strings.Join(args, " ")), models.InputText, nil
	}
}

func mimeForFile(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mp3"
	case ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}

func printResult(result pipeline.SolveResult) {
	if result.Status != pipeline.StatusSuccess {
		fmt.Printf("Status: %s\n\n%s\n", result.Status, result.Message)
		return
	}

	if result.ParsedProblem != nil {
		fmt.Printf("Problem (%s): %s\n", result.ParsedProblem.Topic, result.ParsedProblem.ProblemText)
	}
	if result.NeedsClarification {
		fmt.Println("Note: the problem statement may be ambiguous; this is the best interpretation.")
	}
	fmt.Println()

	if result.Solution != nil {
		for _, step := range result.Solution.Steps {
			fmt.Printf("  %s\n", step)
		}
		fmt.Printf("\nAnswer: %s\n", result.Solution.FinalAnswer)
		if result.Solution.ToolResult != "" {
			fmt.Printf("Symbolic check: %s\n", result.Solution.ToolResult)
		}
	}

	if result.Verification != nil {
		fmt.Printf("\nVerified: %v (confidence %.2f)\n", result.Verification.IsCorrect, result.Verification.Confidence)
		for _, issue := range result.Verification.IssuesFound {
			fmt.Printf("  issue: %s\n", issue)
		}
	}
	if result.RequiresHITL {
		fmt.Println("\nThis solution needs human review before trusting it.")
	}

	if result.Explanation != nil && result.Explanation.Explanation != "" {
		fmt.Printf("\n%s\n", result.Explanation.Explanation)
		if len(result.Explanation.Tips) > 0 {
			fmt.Println("\nTips:")
			for _, tip := range result.Explanation.Tips {
				fmt.Printf("  - %s\n", tip)
			}
		}
	}

	fmt.Printf("\nInteraction: %s\n", result.InteractionID)
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently solved problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			store, err := openStore(root)
			if err != nil {
				return err
			}
			defer store.Close()

			interactions, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(interactions)
			}

			if len(interactions) == 0 {
				fmt.Println("No solved problems yet.")
				return nil
			}
			for _, in := range interactions {
				fmt.Printf("%s  [%s]  %s\n  %s\n",
					in.InteractionID,
					in.ParsedProblem.Topic,
					in.Timestamp.Format("2006-01-02 15:04"),
					in.ParsedProblem.ProblemText)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of interactions to show")
	return cmd
}

func newFeedbackCmd() *cobra.Command {
	var (
		approved      bool
		correctAnswer string
		comments      string
	)

	cmd := &cobra.Command{
		Use:   "feedback <interaction-id>",
		Short: "Record feedback on a solved problem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			store, err := openStore(root)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.StoreFeedback(cmd.Context(), models.Feedback{
				InteractionID: args[0],
				Approved:      approved,
				CorrectAnswer: correctAnswer,
				Comments:      comments,
			}); err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]string{"status": "recorded"})
			} else {
				fmt.Println("Feedback recorded.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&approved, "approved", false, "The solution was correct")
	cmd.Flags().StringVar(&correctAnswer, "correct-answer", "", "The right answer, if the solution was wrong")
	cmd.Flags().StringVar(&comments, "comments", "", "Free-form comments")
	return cmd
}

func newCorrectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "correct <ocr|asr> <original> <corrected>",
		Short: "Teach a recurring OCR or ASR misrecognition fix",
		Long: `Record a recurring input misrecognition so future image or audio
input is fixed automatically. For example:

  mathmentor correct ocr "x2" "x^2"
  mathmentor correct asr "eks" "x"`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := args[0]
			if kind != memory.CorrectionOCR && kind != memory.CorrectionASR {
				return fmt.Errorf("correction kind must be %q or %q, got %q",
					memory.CorrectionOCR, memory.CorrectionASR, kind)
			}

			root, _ := cmd.Flags().GetString("root")
			store, err := openStore(root)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.RecordCorrection(cmd.Context(), memory.Correction{
				Kind:      kind,
				Original:  args[1],
				Corrected: args[2],
			}); err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]string{"status": "recorded"})
			} else {
				fmt.Printf("Learned %s correction: %q -> %q\n", kind, args[1], args[2])
			}
			return nil
		},
	}
}

// openStore opens the per-project store, creating the data directory on
// first use.
func openStore(root string) (*memory.Store, error) {
	dataDir, err := memory.EnsureDataDir(root)
	if err != nil {
		return nil, err
	}
	return memory.NewStore(dataDir)
}

// buildOrchestrator wires the full pipeline from configuration. Requires
// GEMINI_API_KEY.
func buildOrchestrator(cmd *cobra.Command) (*pipeline.Orchestrator, error) {
	root, _ := cmd.Flags().GetString("root")
	verbose, _ := cmd.Flags().GetBool("verbose")

	log := zap.NewNop()
	if verbose {
		devLog, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		log = devLog
	}

	dataDir, err := memory.EnsureDataDir(root)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(dataDir)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := llm.NewGenAIClient(cmd.Context(), llm.GenAIConfig{
		APIKey:         cfg.GeminiAPIKey,
		Model:          cfg.GeminiModel,
		EmbeddingModel: cfg.EmbeddingModel,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("creating LLM client: %w", err)
	}

	kbDir := cfg.KnowledgeBaseDir
	if !filepath.IsAbs(kbDir) {
		kbDir = filepath.Join(root, kbDir)
	}

	retriever, err := knowledge.NewRetriever(knowledge.RetrieverConfig{
		KnowledgeDir: kbDir,
		IndexDir:     dataDir,
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		TopK:         cfg.RAGTopK,
		Logger:       log,
	}, client)
	if err != nil {
		return nil, fmt.Errorf("creating retriever: %w", err)
	}

	store, err := memory.NewStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	normalizer := input.NewNormalizer(input.Config{
		OCRConfidenceThreshold: cfg.OCRConfidenceThreshold,
		ASRConfidenceThreshold: cfg.ASRConfidenceThreshold,
		ASRFixedConfidence:     cfg.ASRFixedConfidence,
	}, client, client, log)

	return pipeline.NewOrchestrator(pipeline.Deps{
		Parser:     agent.NewParser(client, cfg.Temperatures.Parser, log),
		Router:     agent.NewRouter(client, cfg.Temperatures.Router, log),
		Solver:     agent.NewSolver(client, cfg.Temperatures.Solver, log),
		Verifier:   agent.NewVerifier(client, cfg.Temperatures.Verifier, cfg.VerifierConfidenceThreshold, log),
		Explainer:  agent.NewExplainer(client, cfg.Temperatures.Explainer, log),
		Retriever:  retriever,
		Store:      store,
		Normalizer: normalizer,
		Logger:     log,
		RAGTopK:    cfg.RAGTopK,
	}), nil
}
