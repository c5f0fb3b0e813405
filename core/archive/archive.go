// Package archive holds the transcript archivers a session hands finished
// conversations to, plus helpers shared between them.
package archive

import (
	"context"
	"errors"
	"fmt"

	"github.com/koscakluka/ema-live/core/conversations"
)

var ErrMissingSessionID = errors.New("transcript has no session id")

type Archiver interface {
	Archive(ctx context.Context, transcript conversations.Transcript) error
}

// Validate rejects transcripts no archiver can key.
func Validate(transcript conversations.Transcript) error {
	if transcript.SessionID == "" {
		return ErrMissingSessionID
	}
	return nil
}

// Multi fans a transcript out to every archiver. All archivers are tried; the
// returned error joins their failures.
func Multi(archivers ...Archiver) Archiver {
	return multi(archivers)
}

type multi []Archiver

func (m multi) Archive(ctx context.Context, transcript conversations.Transcript) error {
	var errs error
	for i, archiver := range m {
		if err := archiver.Archive(ctx, transcript); err != nil {
			errs = errors.Join(errs, fmt.Errorf("archiver %d: %w", i, err))
		}
	}
	return errs
}
