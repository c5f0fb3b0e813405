package file

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/koscakluka/ema-live/core/archive"
	"github.com/koscakluka/ema-live/core/conversations"
)

func TestArchiveAppendsOneLinePerTranscript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "transcripts.jsonl")
	archiver := New(path)

	for _, id := range []string{"first", "second"} {
		transcript := conversations.Transcript{
			SessionID: id,
			StartedAt: time.Now(),
			EndedAt:   time.Now(),
			Messages:  []conversations.Message{conversations.NewMessage(conversations.RoleUser, "hello "+id)},
		}
		if err := archiver.Archive(context.Background(), transcript); err != nil {
			t.Fatalf("expected archive to succeed, got %v", err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("expected archive file, got %v", err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var transcript conversations.Transcript
		if err := json.Unmarshal(scanner.Bytes(), &transcript); err != nil {
			t.Fatalf("expected json line, got %v", err)
		}
		ids = append(ids, transcript.SessionID)
		if len(transcript.Messages) != 1 || transcript.Messages[0].Text != "hello "+transcript.SessionID {
			t.Fatalf("expected message to round trip, got %+v", transcript.Messages)
		}
	}

	if len(ids) != 2 || ids[0] != "first" || ids[1] != "second" {
		t.Fatalf("expected transcripts in append order, got %v", ids)
	}
}

func TestArchiveRejectsTranscriptWithoutSession(t *testing.T) {
	archiver := New(filepath.Join(t.TempDir(), "transcripts.jsonl"))

	err := archiver.Archive(context.Background(), conversations.Transcript{})
	if !errors.Is(err, archive.ErrMissingSessionID) {
		t.Fatalf("expected ErrMissingSessionID, got %v", err)
	}
	if _, err := os.Stat(archiver.Path()); !os.IsNotExist(err) {
		t.Fatalf("expected no file to be created, got %v", err)
	}
}
