package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProofStorage is the boundary to the binary object store that holds
// uploaded payment proofs. Save returns the stored path used to retrieve
// the file later.
type ProofStorage interface {
	Save(ctx context.Context, dir, filename string, content io.Reader) (string, error)
	Delete(ctx context.Context, path string) error
}

// LocalStorage persists proof files on the local filesystem under a base
// directory. Stored names are randomized to avoid collisions and path
// traversal through user-controlled filenames.
type LocalStorage struct {
	baseDir string
}

func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{baseDir: baseDir}
}

func (s *LocalStorage) Save(ctx context.Context, dir, filename string, content io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	stored := fmt.Sprintf("%d_%s%s", time.Now().Unix(), uuid.NewString(), ext)
	relPath := filepath.Join(dir, stored)
	absPath := filepath.Join(s.baseDir, relPath)

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}

	f, err := os.Create(absPath)
	if err != nil {
		return "", fmt.Errorf("create proof file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		os.Remove(absPath)
		return "", fmt.Errorf("write proof file: %w", err)
	}

	return relPath, nil
}

func (s *LocalStorage) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.Remove(filepath.Join(s.baseDir, path))
}
