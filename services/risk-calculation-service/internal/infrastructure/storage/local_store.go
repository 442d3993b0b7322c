package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/port"
)

// LocalStore writes results documents under a directory. Used in development
// and when no bucket is configured.
type LocalStore struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

var _ port.ResultStore = (*LocalStore)(nil)

func NewLocalStore(dir string, logger *slog.Logger) *LocalStore {
	return &LocalStore{dir: dir, now: time.Now, logger: logger}
}

// Store writes the document to <dir>/calculated/calc_<batch>_<timestamp>.json
// and returns its file:// URI.
func (s *LocalStore) Store(ctx context.Context, result port.AnalysisResult) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	now := s.now()
	body, err := json.MarshalIndent(BuildResultsDocument(result, now), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode results document: %w", err)
	}

	path, err := filepath.Abs(filepath.Join(s.dir, filepath.FromSlash(ResultsObjectKey(result.Analysis.BatchID().String(), now))))
	if err != nil {
		return "", fmt.Errorf("failed to resolve results path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}

	// Write to a temp file first so readers never see a partial document.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return "", fmt.Errorf("failed to write results file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to move results file into place: %w", err)
	}

	uri := "file://" + filepath.ToSlash(path)
	s.logger.Info("results document stored", "batch_id", result.Analysis.BatchID().String(), "uri", uri)
	return uri, nil
}
