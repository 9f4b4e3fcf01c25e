package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/blob"
	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"
	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/realtime"
	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeServices struct {
	summarized  int
	assisted    int
	lastAnswerQ string
}

func (f *fakeServices) Translate(ctx context.Context, text string, source, target chat.Language) (session.Translation, error) {
	return session.Translation{Text: "[" + string(target) + "] " + text, Model: "fake"}, nil
}

func (f *fakeServices) Transcribe(ctx context.Context, audio []byte, contentType string, hint chat.Language) (session.Transcription, error) {
	return session.Transcription{Text: "transcript"}, nil
}

func (f *fakeServices) Summarize(ctx context.Context, msgs []chat.Message, output chat.Language) (chat.Summary, error) {
	f.summarized = len(msgs)
	return chat.Summary{Symptoms: []string{"headache"}, Timestamp: time.Now().UTC(), MessageCount: len(msgs)}, nil
}

func (f *fakeServices) Assist(ctx context.Context, question string, history []chat.Message, output chat.Language) (string, error) {
	f.assisted = len(history)
	f.lastAnswerQ = question
	return "[" + string(output) + "] answer", nil
}

type fixture struct {
	router *mux.Router
	store  *chat.MemoryStore
	hub    *realtime.Hub
	feed   *realtime.Client
	svc    *fakeServices
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	store := chat.NewMemoryStore()
	hub := realtime.NewHub(testLogger(), nil)
	feed := realtime.NewClient("test-session", 64)
	hub.Join(feed)
	t.Cleanup(func() { hub.Leave("test-session") })

	svc := &fakeServices{}
	h := NewHandler(testLogger(), Config{RateRPS: 1000, RateBurst: 1000}, store, hub,
		Services{Translator: svc, Transcriber: svc, Summarizer: svc, Assistant: svc}, opts...)

	r := mux.NewRouter()
	h.Routes(r)
	return &fixture{router: r, store: store, hub: hub, feed: feed, svc: svc}
}

func (f *fixture) do(t *testing.T, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.RemoteAddr = "203.0.113.10:50000"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

// nextEvent pops one broadcast change from the test subscriber.
func (f *fixture) nextEvent(t *testing.T) realtime.ChangeEvent {
	t.Helper()
	select {
	case env := <-f.feed.Send:
		ev, err := realtime.DecodeChange(env)
		if err != nil {
			t.Fatalf("DecodeChange: %v", err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("no broadcast event")
		return realtime.ChangeEvent{}
	}
}

func TestCreateMessageBroadcastsInsert(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/v1/messages",
		`{"sender_role": "doctor", "original_content": "How are you?", "language": "en"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var created chat.Message
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Fatalf("row missing id/timestamp: %+v", created)
	}

	ev := f.nextEvent(t)
	if ev.Kind != realtime.KindInsert || ev.Message.ID != created.ID {
		t.Fatalf("event = %+v", ev)
	}
	if ev.Message.OriginalContent != "How are you?" {
		t.Fatalf("broadcast row = %+v", ev.Message)
	}
}

func TestCreateMessageHonorsClientID(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id, err := chat.NewMessageID(time.Now())
	if err != nil {
		t.Fatalf("NewMessageID: %v", err)
	}

	w := f.do(t, http.MethodPost, "/v1/messages",
		`{"id": "`+id+`", "sender_role": "patient", "original_content": "hola", "language": "es"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var created chat.Message
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	if created.ID != id {
		t.Fatalf("id = %s, want %s", created.ID, id)
	}

	// Same id again conflicts.
	w = f.do(t, http.MethodPost, "/v1/messages",
		`{"id": "`+id+`", "sender_role": "patient", "original_content": "hola", "language": "es"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("repeat status = %d", w.Code)
	}
}

func TestCreateMessageValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"bad role", `{"sender_role": "nurse", "original_content": "hi", "language": "en"}`},
		{"empty content", `{"sender_role": "doctor", "original_content": "  ", "language": "en"}`},
		{"bad language", `{"sender_role": "doctor", "original_content": "hi", "language": "xx"}`},
		{"bad id", `{"id": "nope", "sender_role": "doctor", "original_content": "hi", "language": "en"}`},
		{"long content", `{"sender_role": "doctor", "original_content": "` + strings.Repeat("x", session.MaxMessageChars+1) + `", "language": "en"}`},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			if w := f.do(t, http.MethodPost, "/v1/messages", tc.body); w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestPatchMessageBroadcastsUpdate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/v1/messages",
		`{"sender_role": "doctor", "original_content": "How are you?", "language": "en"}`)
	var created chat.Message
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	f.nextEvent(t) // consume the insert

	w = f.do(t, http.MethodPatch, "/v1/messages/"+created.ID, `{"translated_content": "¿Cómo está?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	ev := f.nextEvent(t)
	if ev.Kind != realtime.KindUpdate {
		t.Fatalf("kind = %s", ev.Kind)
	}
	if ev.Message.TranslatedContent == nil || *ev.Message.TranslatedContent != "¿Cómo está?" {
		t.Fatalf("broadcast row = %+v", ev.Message)
	}

	if w := f.do(t, http.MethodPatch, "/v1/messages/"+created.ID, `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("empty patch status = %d", w.Code)
	}
	if w := f.do(t, http.MethodPatch, "/v1/messages/01HUNKNOWN0000000000000000", `{"translated_content": "x"}`); w.Code != http.StatusNotFound {
		t.Fatalf("missing id status = %d", w.Code)
	}
}

func TestDeleteMessageBroadcastsFullRow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/v1/messages",
		`{"sender_role": "patient", "original_content": "me duele", "language": "es"}`)
	var created chat.Message
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	f.nextEvent(t)

	if w := f.do(t, http.MethodDelete, "/v1/messages/"+created.ID, ""); w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}

	ev := f.nextEvent(t)
	if ev.Kind != realtime.KindDelete {
		t.Fatalf("kind = %s", ev.Kind)
	}
	// Delete events carry the row as it was, not a bare id.
	if ev.Message.OriginalContent != "me duele" {
		t.Fatalf("broadcast row = %+v", ev.Message)
	}
}

func TestClearBroadcastsPerRow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	for _, body := range []string{
		`{"sender_role": "doctor", "original_content": "one", "language": "en"}`,
		`{"sender_role": "patient", "original_content": "dos", "language": "es"}`,
	} {
		if w := f.do(t, http.MethodPost, "/v1/messages", body); w.Code != http.StatusCreated {
			t.Fatalf("seed status = %d", w.Code)
		}
		f.nextEvent(t)
	}

	w := f.do(t, http.MethodDelete, "/v1/messages", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var out map[string]int
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out["deleted"] != 2 {
		t.Fatalf("deleted = %d", out["deleted"])
	}

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		ev := f.nextEvent(t)
		if ev.Kind != realtime.KindDelete {
			t.Fatalf("kind = %s", ev.Kind)
		}
		seen[ev.Message.OriginalContent] = true
	}
	if !seen["one"] || !seen["dos"] {
		t.Fatalf("rows = %v", seen)
	}
}

func TestListMessages(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/v1/messages", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Fatalf("empty list body = %q", got)
	}
}

func TestTranslateProxy(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/v1/translate", `{"text": "hello", "source": "en", "target": "es"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var out translateResponse
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.TranslatedText != "[es] hello" {
		t.Fatalf("translated = %q", out.TranslatedText)
	}

	if w := f.do(t, http.MethodPost, "/v1/translate", `{"text": "hi", "source": "xx", "target": "es"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad source status = %d", w.Code)
	}
}

func TestSummaryUsesTrailingWindow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < session.SummaryMessageLimit+3; i++ {
		id, _ := chat.NewMessageID(base.Add(time.Duration(i) * time.Second))
		err := f.store.Insert(context.Background(), chat.Message{
			ID: id, CreatedAt: base.Add(time.Duration(i) * time.Second),
			SenderRole: chat.RoleDoctor, OriginalContent: "note", Language: chat.LangEnglish,
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	w := f.do(t, http.MethodPost, "/v1/summary", `{"language": "en"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if f.svc.summarized != session.SummaryMessageLimit {
		t.Fatalf("summarized %d messages", f.svc.summarized)
	}
}

func TestAssistAnswersFromServerConversation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		id, _ := chat.NewMessageID(base.Add(time.Duration(i) * time.Second))
		err := f.store.Insert(context.Background(), chat.Message{
			ID: id, CreatedAt: base.Add(time.Duration(i) * time.Second),
			SenderRole: chat.RoleDoctor, OriginalContent: "take one tablet daily", Language: chat.LangEnglish,
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	w := f.do(t, http.MethodPost, "/v1/assist", `{"question": "when do I take my medicine?", "language": "es"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Answer != "[es] answer" {
		t.Fatalf("answer = %q", resp.Answer)
	}
	if f.svc.assisted != 3 {
		t.Fatalf("assistant saw %d history messages", f.svc.assisted)
	}
	if f.svc.lastAnswerQ != "when do I take my medicine?" {
		t.Fatalf("question = %q", f.svc.lastAnswerQ)
	}
}

func TestAssistValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	for name, body := range map[string]string{
		"empty question":       `{"question": "  "}`,
		"unsupported language": `{"question": "hi", "language": "xx"}`,
		"malformed body":       `{`,
	} {
		w := f.do(t, http.MethodPost, "/v1/assist", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", name, w.Code)
		}
	}
	if f.svc.lastAnswerQ != "" {
		t.Fatalf("assistant called with %q", f.svc.lastAnswerQ)
	}
}

func TestAssistDefaultsToEnglish(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/v1/assist", `{"question": "what did the doctor say?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "[en] answer") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestAssistUnconfigured(t *testing.T) {
	t.Parallel()

	store := chat.NewMemoryStore()
	h := NewHandler(testLogger(), Config{RateRPS: 1000, RateBurst: 1000}, store, nil, Services{})
	r := mux.NewRouter()
	h.Routes(r)

	req := httptest.NewRequest(http.MethodPost, "/v1/assist", strings.NewReader(`{"question": "hi"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestUploadAndServeMedia(t *testing.T) {
	t.Parallel()

	store, err := blob.NewDiskStore(testLogger(), t.TempDir(), "/media")
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	f := newFixture(t, WithBlobStore(store))

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="audio"; filename="rec.webm"`},
		"Content-Type":        {"audio/webm"},
	})
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	if _, err := part.Write([]byte("webm-bytes")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := form.WriteField("sender_role", "patient"); err != nil {
		t.Fatalf("WriteField: %v", err)
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/audio", &body)
	req.RemoteAddr = "203.0.113.10:50000"
	req.Header.Set("Content-Type", form.FormDataContentType())
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var out map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if !strings.HasPrefix(out["url"], "/media/patient-") || !strings.HasSuffix(out["url"], ".webm") {
		t.Fatalf("url = %q", out["url"])
	}

	got := f.do(t, http.MethodGet, out["url"], "")
	if got.Code != http.StatusOK {
		t.Fatalf("media status = %d", got.Code)
	}
	if got.Body.String() != "webm-bytes" {
		t.Fatalf("media body = %q", got.Body.String())
	}
	if ct := got.Header().Get("Content-Type"); ct != "audio/webm" {
		t.Fatalf("content type = %q", ct)
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	store := chat.NewMemoryStore()
	h := NewHandler(testLogger(), Config{RateRPS: 1, RateBurst: 2}, store, nil, Services{})
	r := mux.NewRouter()
	h.Routes(r)

	var last int
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/messages", nil)
		req.RemoteAddr = "203.0.113.99:40000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		last = w.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("status after burst = %d", last)
	}
}
