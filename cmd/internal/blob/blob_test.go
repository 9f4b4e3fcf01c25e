package blob

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDiskStoreRoundTrip(t *testing.T) {
	t.Parallel()

	s, err := NewDiskStore(testLogger(), t.TempDir(), "/media/")
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}

	url, err := s.Upload(context.Background(), "doctor-1709290800000.webm", []byte("audio-bytes"), "audio/webm")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "/media/doctor-1709290800000.webm" {
		t.Fatalf("url = %q", url)
	}

	data, contentType, err := s.Open(context.Background(), "doctor-1709290800000.webm")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(data) != "audio-bytes" {
		t.Fatalf("data = %q", data)
	}
	if contentType != "audio/webm" {
		t.Fatalf("content type = %q", contentType)
	}
}

func TestDiskStoreRejectsPathNames(t *testing.T) {
	t.Parallel()

	s, err := NewDiskStore(testLogger(), t.TempDir(), "/media")
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}

	for _, name := range []string{"", "../escape.webm", "a/b.webm", "a\\b.webm", ".hidden"} {
		if _, err := s.Upload(context.Background(), name, []byte("x"), "audio/webm"); !chat.IsValidation(err) {
			t.Fatalf("Upload(%q): err = %v, want validation", name, err)
		}
		if _, _, err := s.Open(context.Background(), name); !chat.IsValidation(err) {
			t.Fatalf("Open(%q): err = %v, want validation", name, err)
		}
	}
}

func TestDiskStoreOpenMissing(t *testing.T) {
	t.Parallel()

	s, err := NewDiskStore(testLogger(), t.TempDir(), "/media")
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	if _, _, err := s.Open(context.Background(), "absent.webm"); !chat.IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
}
