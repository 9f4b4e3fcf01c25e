package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/blob"
	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"
)

func newServiceFixture(t *testing.T, opts ...Option) (*fixture, *ServiceClient) {
	t.Helper()

	f := newFixture(t, opts...)
	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)

	sc, err := NewServiceClient(srv.URL)
	if err != nil {
		t.Fatalf("NewServiceClient: %v", err)
	}
	return f, sc
}

func TestServiceClient_Translate(t *testing.T) {
	t.Parallel()

	_, sc := newServiceFixture(t)

	tr, err := sc.Translate(context.Background(), "I have a headache", chat.LangEnglish, chat.LangSpanish)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if tr.Text != "[es] I have a headache" || tr.Model != "fake" {
		t.Fatalf("unexpected translation: %+v", tr)
	}
}

func TestServiceClient_TranslateValidation(t *testing.T) {
	t.Parallel()

	_, sc := newServiceFixture(t)

	_, err := sc.Translate(context.Background(), "   ", chat.LangEnglish, chat.LangSpanish)
	if err == nil || !chat.IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestServiceClient_Transcribe(t *testing.T) {
	t.Parallel()

	_, sc := newServiceFixture(t)

	tr, err := sc.Transcribe(context.Background(), []byte("fake-webm"), "audio/webm", chat.LangEnglish)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "transcript" {
		t.Fatalf("unexpected transcription: %+v", tr)
	}
}

func TestServiceClient_SummarizeUsesServerConversation(t *testing.T) {
	t.Parallel()

	f, sc := newServiceFixture(t)

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		id, _ := chat.NewMessageID(base.Add(time.Duration(i) * time.Second))
		err := f.store.Insert(context.Background(), chat.Message{
			ID: id, CreatedAt: base.Add(time.Duration(i) * time.Second),
			SenderRole: chat.RoleDoctor, OriginalContent: "note", Language: chat.LangEnglish,
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	sum, err := sc.Summarize(context.Background(), nil, chat.LangEnglish)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.MessageCount != 3 || f.svc.summarized != 3 {
		t.Fatalf("summary over %d messages (server saw %d), want 3", sum.MessageCount, f.svc.summarized)
	}
	if len(sum.Symptoms) != 1 || sum.Symptoms[0] != "headache" {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestServiceClient_AssistUsesServerConversation(t *testing.T) {
	t.Parallel()

	f, sc := newServiceFixture(t)

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		id, _ := chat.NewMessageID(base.Add(time.Duration(i) * time.Second))
		err := f.store.Insert(context.Background(), chat.Message{
			ID: id, CreatedAt: base.Add(time.Duration(i) * time.Second),
			SenderRole: chat.RoleDoctor, OriginalContent: "one tablet daily", Language: chat.LangEnglish,
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	answer, err := sc.Assist(context.Background(), "what was prescribed?", nil, chat.LangSpanish)
	if err != nil {
		t.Fatalf("Assist: %v", err)
	}
	if answer != "[es] answer" {
		t.Fatalf("answer = %q", answer)
	}
	if f.svc.assisted != 2 {
		t.Fatalf("server saw %d history messages, want 2", f.svc.assisted)
	}
}

func TestServiceClient_AssistValidation(t *testing.T) {
	t.Parallel()

	_, sc := newServiceFixture(t)

	if _, err := sc.Assist(context.Background(), "   ", nil, chat.LangEnglish); !chat.IsValidation(err) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestServiceClient_UploadRoundTrip(t *testing.T) {
	t.Parallel()

	blobs, err := blob.NewDiskStore(testLogger(), t.TempDir(), "/media")
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	_, sc := newServiceFixture(t, WithBlobStore(blobs))

	url, err := sc.Upload(context.Background(), "patient-1700000000000.webm", []byte("opus-bytes"), "audio/webm")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !strings.Contains(url, "/media/patient-") {
		t.Fatalf("unexpected url: %q", url)
	}

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET media: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("media status: %d", resp.StatusCode)
	}
}

func TestServiceClient_UploadRejectsUnprefixedName(t *testing.T) {
	t.Parallel()

	_, sc := newServiceFixture(t)

	_, err := sc.Upload(context.Background(), "recording.webm", []byte("x"), "audio/webm")
	if err == nil || !chat.IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}
}
