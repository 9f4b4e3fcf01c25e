package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gorilla/mux"
	"github.com/oklog/ulid/v2"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/blob"
	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"
	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/realtime"
	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/session"
)

const (
	defaultMaxBodyBytes = 64 << 10 // JSON bodies

	// multipart uploads get headroom over the audio cap for form overhead.
	maxUploadBytes = session.MaxAudioBytes + (1 << 20)
)

// Assistant answers a follow-up question about the conversation in the
// asker's language.
type Assistant interface {
	Assist(ctx context.Context, question string, history []chat.Message, output chat.Language) (string, error)
}

// Services are the language-service collaborators the proxy endpoints call.
type Services struct {
	Translator  session.Translator
	Transcriber session.Transcriber
	Summarizer  session.Summarizer
	Assistant   Assistant
}

// Config tunes the handler.
type Config struct {
	RateRPS      float64
	RateBurst    int
	MaxBodyBytes int64
}

// Handler serves the REST surface. Every accepted message mutation is also
// broadcast to the change-feed hub, full row payload, so WebSocket
// subscribers converge without polling.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	store    chat.Store
	hub      *realtime.Hub
	svc      Services
	blobs    blob.Store
	limiters *limiterPool
	metrics  *Metrics
}

// Option configures optional handler dependencies.
type Option func(*Handler)

// WithMetrics attaches mutation counters.
func WithMetrics(m *Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithBlobStore enables audio upload and media serving.
func WithBlobStore(b blob.Store) Option {
	return func(h *Handler) { h.blobs = b }
}

// NewHandler builds the REST handler. hub may be nil (no feed fanout) and
// any Services field may be nil (its endpoint then answers 503).
func NewHandler(log *slog.Logger, cfg Config, store chat.Store, hub *realtime.Hub, svc Services, opts ...Option) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	h := &Handler{
		log:      log,
		cfg:      cfg,
		store:    store,
		hub:      hub,
		svc:      svc,
		limiters: newLimiterPool(cfg.RateRPS, cfg.RateBurst),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts every endpoint on r.
func (h *Handler) Routes(r *mux.Router) {
	v1 := r.PathPrefix("/v1").Subrouter()

	v1.Handle("/languages", h.limit(http.HandlerFunc(h.handleLanguages))).Methods(http.MethodGet)

	v1.Handle("/messages", h.limit(http.HandlerFunc(h.handleListMessages))).Methods(http.MethodGet)
	v1.Handle("/messages", h.limit(http.HandlerFunc(h.handleCreateMessage))).Methods(http.MethodPost)
	v1.Handle("/messages", h.limit(http.HandlerFunc(h.handleClearMessages))).Methods(http.MethodDelete)
	v1.Handle("/messages/{id}", h.limit(http.HandlerFunc(h.handlePatchMessage))).Methods(http.MethodPatch)
	v1.Handle("/messages/{id}", h.limit(http.HandlerFunc(h.handleDeleteMessage))).Methods(http.MethodDelete)

	v1.Handle("/translate", h.limit(http.HandlerFunc(h.handleTranslate))).Methods(http.MethodPost)
	v1.Handle("/transcribe", h.limit(http.HandlerFunc(h.handleTranscribe))).Methods(http.MethodPost)
	v1.Handle("/summary", h.limit(http.HandlerFunc(h.handleSummary))).Methods(http.MethodPost)
	v1.Handle("/assist", h.limit(http.HandlerFunc(h.handleAssist))).Methods(http.MethodPost)

	v1.Handle("/audio", h.limit(http.HandlerFunc(h.handleUploadAudio))).Methods(http.MethodPost)

	r.Handle("/media/{name}", http.HandlerFunc(h.handleMedia)).Methods(http.MethodGet)
}

func (h *Handler) broadcast(kind realtime.EventKind, msg chat.Message) {
	if h.hub == nil {
		return
	}
	h.hub.BroadcastChange(realtime.ChangeEvent{Kind: kind, Message: msg})
}

// ---- languages ----

func (h *Handler) handleLanguages(w http.ResponseWriter, r *http.Request) {
	type languageEntry struct {
		Code       chat.Language `json:"code"`
		Label      string        `json:"label"`
		NativeName string        `json:"native_name"`
	}
	out := make([]languageEntry, 0, len(chat.SupportedLanguages))
	for _, opt := range chat.SupportedLanguages {
		out = append(out, languageEntry{Code: opt.Code, Label: opt.Label, NativeName: opt.NativeName})
	}
	writeJSON(w, http.StatusOK, out)
}

// ---- message CRUD ----

type createMessageRequest struct {
	ID                string          `json:"id"`
	CreatedAt         *time.Time      `json:"created_at"`
	SenderRole        chat.SenderRole `json:"sender_role"`
	OriginalContent   string          `json:"original_content"`
	TranslatedContent *string         `json:"translated_content"`
	AudioURL          *string         `json:"audio_url"`
	Language          chat.Language   `json:"language"`
	Metadata          *chat.Metadata  `json:"metadata"`
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.List(r.Context())
	if err != nil {
		h.log.Error("api.messages.list", "err", err)
		writeDomainError(w, err)
		return
	}
	if rows == nil {
		rows = []chat.Message{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	var req createMessageRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "malformed request body")
		return
	}

	content := strings.TrimSpace(req.OriginalContent)
	switch {
	case !req.SenderRole.Valid():
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid sender_role")
		return
	case content == "":
		writeError(w, http.StatusBadRequest, "validation_failed", "empty original_content")
		return
	case utf8.RuneCountInString(content) > session.MaxMessageChars:
		writeError(w, http.StatusBadRequest, "validation_failed", "original_content too long")
		return
	case !req.Language.Supported():
		writeError(w, http.StatusBadRequest, "validation_failed", "unsupported language")
		return
	}

	now := time.Now().UTC()

	// Client-assigned ids are honored so optimistic entries converge by id
	// with the feed echo; a missing id gets one here.
	id := req.ID
	if id == "" {
		var err error
		if id, err = chat.NewMessageID(now); err != nil {
			h.log.Error("api.messages.create.id", "err", err)
			writeDomainError(w, err)
			return
		}
	} else if _, err := ulid.ParseStrict(id); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "id is not a ULID")
		return
	}

	createdAt := now
	if req.CreatedAt != nil {
		createdAt = req.CreatedAt.UTC()
	}

	msg := chat.Message{
		ID:                id,
		CreatedAt:         createdAt,
		SenderRole:        req.SenderRole,
		OriginalContent:   content,
		TranslatedContent: req.TranslatedContent,
		AudioURL:          req.AudioURL,
		Language:          req.Language,
	}
	if req.Metadata != nil {
		msg.Metadata = *req.Metadata
	}

	if err := h.store.Insert(r.Context(), msg); err != nil {
		if !chat.IsConflict(err) {
			h.log.Error("api.messages.create", "id", msg.ID, "err", err)
		}
		writeDomainError(w, err)
		return
	}

	h.metrics.Stored()
	h.broadcast(realtime.KindInsert, msg)
	writeJSON(w, http.StatusCreated, msg)
}

type patchMessageRequest struct {
	TranslatedContent *string        `json:"translated_content"`
	AudioURL          *string        `json:"audio_url"`
	Metadata          *chat.Metadata `json:"metadata"`
}

func (h *Handler) handlePatchMessage(w http.ResponseWriter, r *http.Request) {
	var req patchMessageRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "malformed request body")
		return
	}

	patch := chat.Patch{
		TranslatedContent: req.TranslatedContent,
		AudioURL:          req.AudioURL,
		Metadata:          req.Metadata,
	}
	if patch.Empty() {
		writeError(w, http.StatusBadRequest, "validation_failed", "empty patch")
		return
	}

	id := mux.Vars(r)["id"]
	updated, err := h.store.Update(r.Context(), id, patch)
	if err != nil {
		if !chat.IsNotFound(err) {
			h.log.Error("api.messages.patch", "id", id, "err", err)
		}
		writeDomainError(w, err)
		return
	}

	h.broadcast(realtime.KindUpdate, updated)
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	removed, err := h.store.Delete(r.Context(), id)
	if err != nil {
		if !chat.IsNotFound(err) {
			h.log.Error("api.messages.delete", "id", id, "err", err)
		}
		writeDomainError(w, err)
		return
	}

	h.metrics.Deleted(1)
	h.broadcast(realtime.KindDelete, removed)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleClearMessages(w http.ResponseWriter, r *http.Request) {
	removed, err := h.store.DeleteAll(r.Context())
	if err != nil {
		h.log.Error("api.messages.clear", "err", err)
		writeDomainError(w, err)
		return
	}

	// One delete event per removed row, mirroring row-level change capture.
	h.metrics.Deleted(len(removed))
	for _, msg := range removed {
		h.broadcast(realtime.KindDelete, msg)
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": len(removed)})
}

// ---- language-service proxies ----

type translateRequest struct {
	Text   string        `json:"text"`
	Source chat.Language `json:"source"`
	Target chat.Language `json:"target"`
}

type translateResponse struct {
	TranslatedText string `json:"translated_text"`
	Model          string `json:"model"`
}

func (h *Handler) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if h.svc.Translator == nil {
		writeError(w, http.StatusServiceUnavailable, "unconfigured", "translation not configured")
		return
	}

	var req translateRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "malformed request body")
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" || utf8.RuneCountInString(text) > session.MaxMessageChars {
		writeError(w, http.StatusBadRequest, "validation_failed", "text empty or too long")
		return
	}
	if !req.Source.Supported() || !req.Target.Supported() {
		writeError(w, http.StatusBadRequest, "validation_failed", "unsupported language")
		return
	}

	tr, err := h.svc.Translator.Translate(r.Context(), text, req.Source, req.Target)
	if err != nil {
		h.log.Error("api.translate", "source", req.Source, "target", req.Target, "err", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, translateResponse{TranslatedText: tr.Text, Model: tr.Model})
}

type transcribeResponse struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if h.svc.Transcriber == nil {
		writeError(w, http.StatusServiceUnavailable, "unconfigured", "transcription not configured")
		return
	}

	audio, contentType, ok := h.readAudioForm(w, r)
	if !ok {
		return
	}
	hint := chat.Language(r.FormValue("language"))
	if hint != "" && !hint.Supported() {
		writeError(w, http.StatusBadRequest, "validation_failed", "unsupported language")
		return
	}

	tr, err := h.svc.Transcriber.Transcribe(r.Context(), audio, contentType, hint)
	if err != nil {
		h.log.Error("api.transcribe", "bytes", len(audio), "err", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transcribeResponse{Text: tr.Text, Confidence: tr.Confidence})
}

type summaryRequest struct {
	Language chat.Language `json:"language"`
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	if h.svc.Summarizer == nil {
		writeError(w, http.StatusServiceUnavailable, "unconfigured", "summary not configured")
		return
	}

	req := summaryRequest{Language: chat.DefaultDoctorLanguage}
	if r.ContentLength > 0 {
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json", "malformed request body")
			return
		}
	}
	if !req.Language.Supported() {
		writeError(w, http.StatusBadRequest, "validation_failed", "unsupported language")
		return
	}

	rows, err := h.store.List(r.Context())
	if err != nil {
		h.log.Error("api.summary.list", "err", err)
		writeDomainError(w, err)
		return
	}
	if len(rows) > session.SummaryMessageLimit {
		rows = rows[len(rows)-session.SummaryMessageLimit:]
	}

	sum, err := h.svc.Summarizer.Summarize(r.Context(), rows, req.Language)
	if err != nil {
		if !chat.IsValidation(err) {
			h.log.Error("api.summary", "err", err)
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type assistRequest struct {
	Question string        `json:"question"`
	Language chat.Language `json:"language"`
}

type assistResponse struct {
	Answer string `json:"answer"`
}

// handleAssist answers a follow-up question against the server's own view
// of the conversation, same trailing window as the summary.
func (h *Handler) handleAssist(w http.ResponseWriter, r *http.Request) {
	if h.svc.Assistant == nil {
		writeError(w, http.StatusServiceUnavailable, "unconfigured", "assistant not configured")
		return
	}

	var req assistRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "malformed request body")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" || utf8.RuneCountInString(question) > session.MaxMessageChars {
		writeError(w, http.StatusBadRequest, "validation_failed", "question empty or too long")
		return
	}
	if req.Language == "" {
		req.Language = chat.DefaultDoctorLanguage
	}
	if !req.Language.Supported() {
		writeError(w, http.StatusBadRequest, "validation_failed", "unsupported language")
		return
	}

	rows, err := h.store.List(r.Context())
	if err != nil {
		h.log.Error("api.assist.list", "err", err)
		writeDomainError(w, err)
		return
	}
	if len(rows) > session.SummaryMessageLimit {
		rows = rows[len(rows)-session.SummaryMessageLimit:]
	}

	answer, err := h.svc.Assistant.Assist(r.Context(), question, rows, req.Language)
	if err != nil {
		if !chat.IsValidation(err) {
			h.log.Error("api.assist", "err", err)
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assistResponse{Answer: answer})
}

// ---- audio upload and media ----

func (h *Handler) handleUploadAudio(w http.ResponseWriter, r *http.Request) {
	if h.blobs == nil {
		writeError(w, http.StatusServiceUnavailable, "unconfigured", "media storage not configured")
		return
	}

	audio, contentType, ok := h.readAudioForm(w, r)
	if !ok {
		return
	}

	role := chat.SenderRole(r.FormValue("sender_role"))
	if !role.Valid() {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid sender_role")
		return
	}

	name := string(role) + "-" + ulid.Make().String() + chat.AudioExt(contentType)
	url, err := h.blobs.Upload(r.Context(), name, audio, contentType)
	if err != nil {
		h.log.Error("api.audio.upload", "name", name, "err", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}

func (h *Handler) handleMedia(w http.ResponseWriter, r *http.Request) {
	if h.blobs == nil {
		http.NotFound(w, r)
		return
	}

	name := mux.Vars(r)["name"]
	data, contentType, err := h.blobs.Open(r.Context(), name)
	if err != nil {
		if chat.IsNotFound(err) || chat.IsValidation(err) {
			http.NotFound(w, r)
			return
		}
		h.log.Error("api.media", "name", name, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	_, _ = w.Write(data)
}

// readAudioForm pulls the "audio" part out of a multipart body, enforcing
// the size cap before anything is forwarded upstream.
func (h *Handler) readAudioForm(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "malformed multipart body")
		return nil, "", false
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing audio part")
		return nil, "", false
	}
	defer func() { _ = file.Close() }()

	if header.Size > session.MaxAudioBytes {
		writeError(w, http.StatusBadRequest, "validation_failed", "audio exceeds size cap")
		return nil, "", false
	}

	audio := make([]byte, 0, header.Size)
	buf := make([]byte, 32<<10)
	for {
		n, err := file.Read(buf)
		audio = append(audio, buf[:n]...)
		if err != nil {
			break
		}
		if len(audio) > session.MaxAudioBytes {
			writeError(w, http.StatusBadRequest, "validation_failed", "audio exceeds size cap")
			return nil, "", false
		}
	}
	if len(audio) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "empty audio")
		return nil, "", false
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return audio, contentType, true
}
