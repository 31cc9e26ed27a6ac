package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zero-day-ai/exercise-forge/parser"
)

// RelativePath is the audit file location under a state root.
const RelativePath = "audit/stage_rejections.jsonl"

// DefaultPath returns the audit file path under stateRoot.
func DefaultPath(stateRoot string) string {
	return filepath.Join(stateRoot, filepath.FromSlash(RelativePath))
}

// Recorder persists audit entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// FileLog appends entries to a JSONL file. The file is opened with O_APPEND
// for every record and each entry is written with a single write call, so
// concurrent writers, including other processes, never interleave partial
// lines.
type FileLog struct {
	path string
}

// NewFileLog returns a FileLog writing to path. Nothing is created until the
// first Record.
func NewFileLog(path string) *FileLog {
	return &FileLog{path: path}
}

// Path returns the audit file path.
func (l *FileLog) Path() string {
	return l.path
}

// Record appends e as one JSON line, creating the parent directory if needed.
func (l *FileLog) Record(_ context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log %s: %w", l.path, err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close audit log: %w", err)
	}
	return nil
}

// ReadFile returns every entry in the audit file at path, oldest first. A
// missing file yields no entries.
func ReadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read audit log %s: %w", path, err)
	}

	entries, err := parser.ParseJSONLines[Entry](data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse audit log %s: %w", path, err)
	}
	return entries, nil
}
