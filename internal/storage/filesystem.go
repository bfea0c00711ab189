package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// FileSystemConfig contains configuration for file system storage
type FileSystemConfig struct {
	// BasePath is the root directory for exports. Default: ./exports
	BasePath string
	// Logger for operations
	Logger *zap.Logger
}

// FileSystemStore writes exports below a base directory
type FileSystemStore struct {
	config *FileSystemConfig
	logger *zap.Logger
}

// NewFileSystemStore creates the base directory if needed
func NewFileSystemStore(config *FileSystemConfig) (*FileSystemStore, error) {
	if config == nil {
		config = &FileSystemConfig{}
	}
	if config.BasePath == "" {
		config.BasePath = "exports"
	}
	if err := os.MkdirAll(config.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", config.BasePath, err)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSystemStore{config: config, logger: logger}, nil
}

// Save writes the document to {base}/{yyyy}/{mm}/{jobID}-{name}.pdf. The file
// only appears under its final name once completely written.
func (s *FileSystemStore) Save(ctx context.Context, req *SaveRequest) (*SaveResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("save cancelled: %w", err)
	}
	if req == nil || len(req.Data) == 0 {
		return nil, ErrEmptyDocument
	}

	key := objectKey(req)
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := writeAtomic(fullPath, req.Data); err != nil {
		return nil, err
	}

	s.logger.Info("export stored",
		zap.String("job_id", req.JobID.String()),
		zap.String("path", fullPath),
		zap.Int("size", len(req.Data)))

	return &SaveResult{
		JobID:    req.JobID,
		Key:      key,
		Location: fullPath,
		Size:     int64(len(req.Data)),
	}, nil
}

// resolve joins key to the base path and rejects anything escaping it
func (s *FileSystemStore) resolve(key string) (string, error) {
	if filepath.IsAbs(key) || containsDotDot(key) {
		s.logger.Warn("blocked potentially malicious path", zap.String("key", key))
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	absBase, err := filepath.Abs(s.config.BasePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}
	absPath := filepath.Join(absBase, filepath.FromSlash(key))
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		s.logger.Warn("path escape attempt blocked", zap.String("key", key), zap.String("absPath", absPath))
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return absPath, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write export: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close export: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("failed to set export permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to move export into place: %w", err)
	}
	return nil
}

// containsDotDot checks if a path contains ".." components
func containsDotDot(p string) bool {
	parts := strings.FieldsFunc(p, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	})
	for _, part := range parts {
		if part == ".." {
			return true
		}
	}
	return false
}

var _ Store = (*FileSystemStore)(nil)
