package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nvandessel/mathmentor/internal/models"
)

// DBFileName is the SQLite database file inside the data directory.
const DBFileName = "mathmentor.db"

// Store is the append-only interaction log plus feedback and corrections,
// backed by SQLite. Interactions and feedback are never updated or deleted;
// corrections are keyed by (kind, original) and may be replaced in place.
type Store struct {
	db *sql.DB
}

// SimilarMatch is one past interaction matched by FindSimilar, with the
// token overlap that ranked it.
type SimilarMatch struct {
	Interaction models.Interaction
	Overlap     int
}

// Correction kinds. OCR corrections apply to image input, ASR corrections
// to audio input.
const (
	CorrectionOCR = "ocr"
	CorrectionASR = "asr"
)

// Correction is one learned input fix, applied to future raw inputs of the
// same kind before parsing.
type Correction struct {
	Kind      string // CorrectionOCR or CorrectionASR
	Original  string
	Corrected string
}

// NewStore opens (or creates) the database in dataDir and initializes the
// schema.
func NewStore(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, DBFileName)

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS interactions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		topic TEXT NOT NULL,
		raw_input TEXT NOT NULL,
		problem_text TEXT NOT NULL,
		body TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_interactions_id ON interactions(id);
	CREATE INDEX IF NOT EXISTS idx_interactions_topic ON interactions(topic);

	CREATE TABLE IF NOT EXISTS feedback (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		interaction_id TEXT NOT NULL,
		body TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_interaction ON feedback(interaction_id);

	CREATE TABLE IF NOT EXISTS corrections (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		original TEXT NOT NULL,
		corrected TEXT NOT NULL,
		UNIQUE(kind, original)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// StoreInteraction appends an interaction to the log. If the record has no
// ID yet, one is derived from its timestamp and raw input. Returns the ID.
// Appending a record with an existing ID never overwrites the earlier one.
func (s *Store) StoreInteraction(ctx context.Context, in models.Interaction) (string, error) {
	if in.InteractionID == "" {
		in.InteractionID = models.InteractionID(in.Timestamp, in.RawInput)
	}

	body, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("failed to marshal interaction: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO interactions (id, topic, raw_input, problem_text, body) VALUES (?, ?, ?, ?, ?)`,
		in.InteractionID, in.ParsedProblem.Topic, in.RawInput, in.ParsedProblem.ProblemText, string(body))
	if err != nil {
		return "", fmt.Errorf("failed to store interaction: %w", err)
	}
	return in.InteractionID, nil
}

// GetInteraction returns the interaction with the given ID, or (nil, nil)
// if none exists. If the log somehow holds multiple records with the same
// ID, the earliest wins.
func (s *Store) GetInteraction(ctx context.Context, id string) (*models.Interaction, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM interactions WHERE id = ? ORDER BY seq LIMIT 1`, id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get interaction: %w", err)
	}

	var in models.Interaction
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return nil, fmt.Errorf("failed to unmarshal interaction %s: %w", id, err)
	}
	return &in, nil
}

// Recent returns the most recent n interactions in chronological order.
func (s *Store) Recent(ctx context.Context, n int) ([]models.Interaction, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM (
			SELECT seq, body FROM interactions ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent interactions: %w", err)
	}
	defer rows.Close()

	var out []models.Interaction
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var in models.Interaction
		if err := json.Unmarshal([]byte(body), &in); err != nil {
			return nil, fmt.Errorf("failed to unmarshal interaction: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// FindSimilar returns past interactions on the same topic whose parsed
// problem text shares at least two lowercase whitespace tokens with text,
// best overlap first. Matching runs on the cleaned statement, not the raw
// input: for image and audio solves the raw text is recognizer output and
// diverges from the problem actually solved. Equal overlaps preserve log
// order.
func (s *Store) FindSimilar(ctx context.Context, text, topic string, limit int) ([]SimilarMatch, error) {
	if limit <= 0 {
		limit = 3
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT problem_text, body FROM interactions WHERE topic = ? ORDER BY seq`, topic)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions by topic: %w", err)
	}
	defer rows.Close()

	query := tokenSet(text)

	var matches []SimilarMatch
	for rows.Next() {
		var problemText, body string
		if err := rows.Scan(&problemText, &body); err != nil {
			return nil, err
		}

		overlap := 0
		for tok := range tokenSet(problemText) {
			if query[tok] {
				overlap++
			}
		}
		if overlap < 2 {
			continue
		}

		var in models.Interaction
		if err := json.Unmarshal([]byte(body), &in); err != nil {
			return nil, fmt.Errorf("failed to unmarshal interaction: %w", err)
		}
		matches = append(matches, SimilarMatch{Interaction: in, Overlap: overlap})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Overlap > matches[j].Overlap
	})

	if limit < len(matches) {
		matches = matches[:limit]
	}
	return matches, nil
}

// StoreFeedback appends a feedback record. The referenced interaction does
// not need to exist; feedback on unknown IDs is kept for audit.
func (s *Store) StoreFeedback(ctx context.Context, fb models.Feedback) error {
	if fb.Timestamp.IsZero() {
		fb.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO feedback (interaction_id, body) VALUES (?, ?)`,
		fb.InteractionID, string(body))
	if err != nil {
		return fmt.Errorf("failed to store feedback: %w", err)
	}
	return nil
}

// RecordCorrection stores a learned input fix. Re-recording the same
// (kind, original) replaces the corrected form but keeps the entry's
// position in application order.
func (s *Store) RecordCorrection(ctx context.Context, c Correction) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE corrections SET corrected = ? WHERE kind = ? AND original = ?`,
		c.Corrected, c.Kind, c.Original)
	if err != nil {
		return fmt.Errorf("failed to update correction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO corrections (kind, original, corrected) VALUES (?, ?, ?)`,
		c.Kind, c.Original, c.Corrected)
	if err != nil {
		return fmt.Errorf("failed to insert correction: %w", err)
	}
	return nil
}

// Corrections returns all learned fixes for the given kind in the order
// they were first recorded.
func (s *Store) Corrections(ctx context.Context, kind string) ([]Correction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, original, corrected FROM corrections WHERE kind = ? ORDER BY seq`, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to query corrections: %w", err)
	}
	defer rows.Close()

	var out []Correction
	for rows.Next() {
		var c Correction
		if err := rows.Scan(&c.Kind, &c.Original, &c.Corrected); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ApplyCorrections rewrites text through every learned fix for the given
// kind, applied in the order they were first recorded.
func (s *Store) ApplyCorrections(ctx context.Context, kind, text string) (string, error) {
	corrections, err := s.Corrections(ctx, kind)
	if err != nil {
		return text, err
	}
	for _, c := range corrections {
		text = strings.ReplaceAll(text, c.Original, c.Corrected)
	}
	return text, nil
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		set[tok] = true
	}
	return set
}
