package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/koscakluka/ema-live/core/archive"
	"github.com/koscakluka/ema-live/core/conversations"
)

const (
	dirPermissions  = 0o755
	filePermissions = 0o600
)

// Archiver appends each transcript as one JSON line to a file.
type Archiver struct {
	path string
	mu   sync.Mutex
}

func New(path string) *Archiver {
	return &Archiver{path: path}
}

func (a *Archiver) Path() string { return a.path }

func (a *Archiver) Archive(ctx context.Context, transcript conversations.Transcript) error {
	if err := archive.Validate(transcript); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	line, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}
	line = append(line, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(a.path), dirPermissions); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, filePermissions)
	if err != nil {
		return fmt.Errorf("failed to open archive file: %w", err)
	}

	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to append transcript: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close archive file: %w", err)
	}
	return nil
}
