package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/checkin/internal/interfaces"
)

// FingerprintStorage keeps the balance fingerprint as a single-line text file
type FingerprintStorage struct {
	path   string
	logger arbor.ILogger
}

// NewFingerprintStorage creates a file-backed store at path
func NewFingerprintStorage(path string, logger arbor.ILogger) interfaces.FingerprintStore {
	return &FingerprintStorage{
		path:   path,
		logger: logger,
	}
}

// Load reads the stored fingerprint. A missing or empty file is a first run.
func (s *FingerprintStorage) Load(ctx context.Context) (string, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read fingerprint file: %w", err)
	}

	fingerprint := strings.TrimSpace(string(data))
	if fingerprint == "" {
		return "", false, nil
	}
	return fingerprint, true, nil
}

// Save overwrites the file with fingerprint
func (s *FingerprintStorage) Save(ctx context.Context, fingerprint string) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create fingerprint directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, []byte(fingerprint), 0644); err != nil {
		return fmt.Errorf("failed to write fingerprint file: %w", err)
	}

	s.logger.Debug().Str("path", s.path).Str("fingerprint", fingerprint).Msg("Fingerprint saved")
	return nil
}

// Close is a no-op for the file store
func (s *FingerprintStorage) Close() error {
	return nil
}
