package knowledge

import "fmt"

// Chunk is a fixed-size slice of a document, the unit of embedding and
// retrieval.
type Chunk struct {
	// ID is "<source>#<seq>", stable across rebuilds of the same corpus.
	ID string

	// Source is the originating document file name.
	Source string

	// Seq is the zero-based position of the chunk within its document.
	Seq int

	// Content is the chunk text.
	Content string
}

// ChunkDocument splits a document into overlapping chunks of size runes,
// stepping by size-overlap. Rune-based so multi-byte characters are never
// split. An empty document yields no chunks.
func ChunkDocument(doc Document, size, overlap int) []Chunk {
	if size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(doc.Content)
	if len(runes) == 0 {
		return nil
	}

	step := size - overlap
	var chunks []Chunk
	for start, seq := 0, 0; start < len(runes); start, seq = start+step, seq+1 {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			ID:      fmt.Sprintf("%s#%d", doc.Source, seq),
			Source:  doc.Source,
			Seq:     seq,
			Content: string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// ChunkDocuments chunks every document in order.
func ChunkDocuments(docs []Document, size, overlap int) []Chunk {
	var out []Chunk
	for _, doc := range docs {
		out = append(out, ChunkDocument(doc, size, overlap)...)
	}
	return out
}
