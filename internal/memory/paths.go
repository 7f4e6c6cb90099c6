// Package memory persists solved interactions, feedback, and learned
// corrections in a local SQLite database.
package memory

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the per-project data directory holding the database, config,
// and vector index.
const DirName = ".mathmentor"

// DataDir returns the path to the .mathmentor directory for the given
// project root.
func DataDir(projectRoot string) string {
	return filepath.Join(projectRoot, DirName)
}

// EnsureDataDir creates the .mathmentor directory if it doesn't exist and
// drops a .gitignore into it. Returns the directory path.
func EnsureDataDir(projectRoot string) (string, error) {
	dir := DataDir(projectRoot)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", DirName, err)
	}
	if err := EnsureGitignore(dir); err != nil {
		return "", err
	}
	return dir, nil
}

// dataGitignore is the default .gitignore content for .mathmentor directories.
const dataGitignore = `# SQLite database files (local learning state)
mathmentor.db
mathmentor.db-shm
mathmentor.db-wal

# Vector index (rebuilt from the knowledge base)
hnsw.bin
meta.json
`

// EnsureGitignore creates a .gitignore in the given data directory if one
// does not already exist. This prevents accidentally committing database files
// and index artifacts to version control.
func EnsureGitignore(dataDir string) error {
	gitignorePath := filepath.Join(dataDir, ".gitignore")
	if _, err := os.Stat(gitignorePath); err == nil {
		return nil // already exists, respect user customizations
	}
	if err := os.WriteFile(gitignorePath, []byte(dataGitignore), 0600); err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}
	return nil
}
