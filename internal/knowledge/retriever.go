package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/nvandessel/mathmentor/internal/llm"
	"github.com/nvandessel/mathmentor/internal/models"
	"github.com/nvandessel/mathmentor/internal/vectorindex"
)

const metaFileName = "meta.json"

// indexMeta records what an on-disk index was built from. A mismatch on any
// field invalidates the index and forces a rebuild.
type indexMeta struct {
	EmbeddingModel string `json:"embedding_model"`
	ChunkSize      int    `json:"chunk_size"`
	ChunkOverlap   int    `json:"chunk_overlap"`
	ChunkCount     int    `json:"chunk_count"`
}

// RetrieverConfig holds configuration for Retriever.
type RetrieverConfig struct {
	// KnowledgeDir is the directory of markdown source documents.
	KnowledgeDir string

	// IndexDir is where the vector index and its metadata are persisted.
	// If empty, the index is in-memory only.
	IndexDir string

	// ChunkSize is the chunk length in runes. Default: 500.
	ChunkSize int

	// ChunkOverlap is the overlap between consecutive chunks. Default: 50.
	ChunkOverlap int

	// TopK is the default number of snippets returned. Default: 3.
	TopK int

	// Logger for index lifecycle events. Default: zap.NewNop().
	Logger *zap.Logger
}

func (c *RetrieverConfig) withDefaults() RetrieverConfig {
	out := *c
	if out.ChunkSize <= 0 {
		out.ChunkSize = 500
	}
	if out.ChunkOverlap == 0 {
		out.ChunkOverlap = 50
	}
	if out.TopK <= 0 {
		out.TopK = 3
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	return out
}

// Retriever serves similarity search over the chunked knowledge base.
// Thread-safe.
type Retriever struct {
	mu       sync.Mutex
	cfg      RetrieverConfig
	embedder llm.Embedder
	index    *vectorindex.TieredIndex
	chunks   map[string]Chunk
	ready    bool
	log      *zap.Logger
}

// NewRetriever creates a Retriever. The index is not built until
// EnsureIndex is called, or lazily on the first Retrieve.
func NewRetriever(cfg RetrieverConfig, embedder llm.Embedder) (*Retriever, error) {
	cfg = cfg.withDefaults()

	idx, err := vectorindex.NewTieredIndex(vectorindex.TieredConfig{
		HNSW: vectorindex.HNSWConfig{Dir: cfg.IndexDir},
	})
	if err != nil {
		return nil, fmt.Errorf("creating vector index: %w", err)
	}

	return &Retriever{
		cfg:      cfg,
		embedder: embedder,
		index:    idx,
		chunks:   make(map[string]Chunk),
		log:      cfg.Logger,
	}, nil
}

// EnsureIndex builds the vector index from the knowledge base if it is not
// already current. Idempotent: a persisted index built from the same
// embedding model and chunk parameters over the same chunk count is reused
// without re-embedding.
func (r *Retriever) EnsureIndex(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ensureIndexLocked(ctx)
}

func (r *Retriever) ensureIndexLocked(ctx context.Context) error {
	if r.ready {
		return nil
	}

	docs, err := LoadDocuments(r.cfg.KnowledgeDir)
	if err != nil {
		return err
	}
	chunks := ChunkDocuments(docs, r.cfg.ChunkSize, r.cfg.ChunkOverlap)

	r.chunks = make(map[string]Chunk, len(chunks))
	for _, c := range chunks {
		r.chunks[c.ID] = c
	}

	if len(chunks) == 0 {
		r.log.Warn("knowledge base is empty, retrieval will return no snippets",
			zap.String("dir", r.cfg.KnowledgeDir))
		r.ready = true
		return nil
	}

	// Reuse the persisted index when its metadata matches.
	if r.cfg.IndexDir != "" && r.metaMatches(len(chunks)) && r.index.Len() == len(chunks) {
		r.log.Info("reusing persisted knowledge index",
			zap.Int("chunks", len(chunks)))
		r.ready = true
		return nil
	}

	r.log.Info("building knowledge index",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)),
		zap.String("embedding_model", r.embedder.ModelID()))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding knowledge chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}

	for i, c := range chunks {
		if err := r.index.Add(ctx, c.ID, vectors[i]); err != nil {
			return fmt.Errorf("indexing chunk %s: %w", c.ID, err)
		}
	}

	if err := r.index.Save(ctx); err != nil {
		return fmt.Errorf("saving vector index: %w", err)
	}
	if err := r.writeMeta(len(chunks)); err != nil {
		return err
	}

	r.ready = true
	return nil
}

// Retrieve returns the snippets most similar to query, best first. Ties on
// score break toward the earlier chunk. If the index has not been built yet,
// it is built now; startup should prefer EnsureIndex so the first question
// does not pay the build cost.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]models.KnowledgeSnippet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ready {
		r.log.Warn("knowledge index not built, building lazily")
		if err := r.ensureIndexLocked(ctx); err != nil {
			return nil, err
		}
	}

	if topK <= 0 {
		topK = r.cfg.TopK
	}
	if len(r.chunks) == 0 {
		return nil, nil
	}

	qvec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := r.index.Search(ctx, qvec, topK)
	if err != nil {
		return nil, fmt.Errorf("searching knowledge index: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		ci, cj := r.chunks[results[i].ChunkID], r.chunks[results[j].ChunkID]
		if ci.Source != cj.Source {
			return ci.Source < cj.Source
		}
		return ci.Seq < cj.Seq
	})

	snippets := make([]models.KnowledgeSnippet, 0, len(results))
	for _, res := range results {
		chunk, ok := r.chunks[res.ChunkID]
		if !ok {
			continue
		}
		snippets = append(snippets, models.KnowledgeSnippet{
			Content: chunk.Content,
			Source:  chunk.Source,
			Score:   res.Score,
		})
	}
	return snippets, nil
}

// Close releases the underlying index.
func (r *Retriever) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index.Close()
}

func (r *Retriever) metaMatches(chunkCount int) bool {
	data, err := os.ReadFile(filepath.Join(r.cfg.IndexDir, metaFileName))
	if err != nil {
		return false
	}
	var meta indexMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return false
	}
	return meta.EmbeddingModel == r.embedder.ModelID() &&
		meta.ChunkSize == r.cfg.ChunkSize &&
		meta.ChunkOverlap == r.cfg.ChunkOverlap &&
		meta.ChunkCount == chunkCount
}

func (r *Retriever) writeMeta(chunkCount int) error {
	if r.cfg.IndexDir == "" {
		return nil
	}
	meta := indexMeta{
		EmbeddingModel: r.embedder.ModelID(),
		ChunkSize:      r.cfg.ChunkSize,
		ChunkOverlap:   r.cfg.ChunkOverlap,
		ChunkCount:     chunkCount,
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling index metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.cfg.IndexDir, metaFileName), data, 0o644); err != nil {
		return fmt.Errorf("writing index metadata: %w", err)
	}
	return nil
}
