package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"
	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/session"
)

// ServiceClient consumes the language-service proxies of a translatord
// instance. It satisfies the session collaborator interfaces, so a remote
// client can run the full Composer pipeline without its own model
// credentials; the server fronts the upstream provider.
type ServiceClient struct {
	base   string
	client *http.Client
}

// ServiceClientOption configures ServiceClient behavior.
type ServiceClientOption func(*ServiceClient)

// WithServiceHTTPClient overrides the underlying http.Client.
func WithServiceHTTPClient(c *http.Client) ServiceClientOption {
	return func(s *ServiceClient) {
		if c != nil {
			s.client = c
		}
	}
}

// NewServiceClient builds a client rooted at the REST base URL.
func NewServiceClient(baseURL string, opts ...ServiceClientOption) (*ServiceClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("api: empty base url")
	}

	s := &ServiceClient{
		base:   baseURL,
		client: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Translate proxies POST /v1/translate.
func (s *ServiceClient) Translate(ctx context.Context, text string, source, target chat.Language) (session.Translation, error) {
	req := translateRequest{Text: text, Source: source, Target: target}
	var resp translateResponse
	if err := s.postJSON(ctx, "/v1/translate", req, &resp, "api.Translate"); err != nil {
		return session.Translation{}, err
	}
	return session.Translation{Text: resp.TranslatedText, Model: resp.Model}, nil
}

// Transcribe proxies POST /v1/transcribe as a multipart upload.
func (s *ServiceClient) Transcribe(ctx context.Context, audio []byte, contentType string, hint chat.Language) (session.Transcription, error) {
	const op = "api.Transcribe"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename="recording%s"`, chat.AudioExt(contentType)))
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return session.Transcription{}, chat.Opf(op, chat.ErrService, err)
	}
	if _, err := part.Write(audio); err != nil {
		return session.Transcription{}, chat.Opf(op, chat.ErrService, err)
	}
	if hint != "" {
		if err := mw.WriteField("language", string(hint)); err != nil {
			return session.Transcription{}, chat.Opf(op, chat.ErrService, err)
		}
	}
	if err := mw.Close(); err != nil {
		return session.Transcription{}, chat.Opf(op, chat.ErrService, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/v1/transcribe", &buf)
	if err != nil {
		return session.Transcription{}, chat.Opf(op, chat.ErrService, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp transcribeResponse
	if err := s.roundTrip(req, &resp, op); err != nil {
		return session.Transcription{}, err
	}
	return session.Transcription{Text: resp.Text, Confidence: resp.Confidence}, nil
}

// Summarize proxies POST /v1/summary. The server summarizes its own view
// of the conversation, so the msgs argument is not transmitted; it exists
// to satisfy the Summarizer contract.
func (s *ServiceClient) Summarize(ctx context.Context, _ []chat.Message, output chat.Language) (chat.Summary, error) {
	var sum chat.Summary
	if err := s.postJSON(ctx, "/v1/summary", summaryRequest{Language: output}, &sum, "api.Summarize"); err != nil {
		return chat.Summary{}, err
	}
	return sum, nil
}

// Assist proxies POST /v1/assist. Like Summarize, the server answers
// against its own view of the conversation, so the history argument is not
// transmitted.
func (s *ServiceClient) Assist(ctx context.Context, question string, _ []chat.Message, output chat.Language) (string, error) {
	var resp assistResponse
	if err := s.postJSON(ctx, "/v1/assist", assistRequest{Question: question, Language: output}, &resp, "api.Assist"); err != nil {
		return "", err
	}
	return resp.Answer, nil
}

// Upload proxies POST /v1/audio. The Composer names blobs
// "<role>-<stamp><ext>"; the role prefix is lifted out because the server
// derives its own storage name from sender_role.
func (s *ServiceClient) Upload(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	const op = "api.Upload"

	role, _, ok := strings.Cut(name, "-")
	if !ok || !chat.SenderRole(role).Valid() {
		return "", chat.Opf(op, chat.ErrValidation, fmt.Errorf("blob name %q has no role prefix", name))
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, name))
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return "", chat.Opf(op, chat.ErrService, err)
	}
	if _, err := part.Write(data); err != nil {
		return "", chat.Opf(op, chat.ErrService, err)
	}
	if err := mw.WriteField("sender_role", role); err != nil {
		return "", chat.Opf(op, chat.ErrService, err)
	}
	if err := mw.Close(); err != nil {
		return "", chat.Opf(op, chat.ErrService, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/v1/audio", &buf)
	if err != nil {
		return "", chat.Opf(op, chat.ErrService, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp struct {
		URL string `json:"url"`
	}
	if err := s.roundTrip(req, &resp, op); err != nil {
		return "", err
	}
	// Relative media paths come back rooted at the server.
	if strings.HasPrefix(resp.URL, "/") {
		return s.base + resp.URL, nil
	}
	return resp.URL, nil
}

func (s *ServiceClient) postJSON(ctx context.Context, path string, in, out any, op string) error {
	body, err := json.Marshal(in)
	if err != nil {
		return chat.Opf(op, chat.ErrService, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+path, bytes.NewReader(body))
	if err != nil {
		return chat.Opf(op, chat.ErrService, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return s.roundTrip(req, out, op)
}

func (s *ServiceClient) roundTrip(req *http.Request, out any, op string) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return chat.Opf(op, chat.ErrService, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		kind := chat.ErrService
		if resp.StatusCode == http.StatusBadRequest {
			kind = chat.ErrValidation
		}
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return chat.Opf(op, kind, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt))))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return chat.Opf(op, chat.ErrService, err)
		}
	}
	return nil
}
