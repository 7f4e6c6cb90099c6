// Package knowledge loads the static knowledge base, chunks it, and serves
// similarity retrieval over chunk embeddings.
package knowledge

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Document is one knowledge-base source file.
type Document struct {
	// Source is the file name, used as the chunk identity prefix.
	Source string

	Content string
}

// LoadDocuments reads every markdown file in dir, sorted by file name so
// chunk identities and insertion order are stable across rebuilds.
// A missing directory yields zero documents, not an error.
func LoadDocuments(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading knowledge base dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".md" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	docs := make([]Document, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		docs = append(docs, Document{Source: name, Content: string(data)})
	}
	return docs, nil
}
