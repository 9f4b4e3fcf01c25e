package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPStore is a Store implementation that talks to a translatord REST API.
// It is what remote clients embed to back their session engine; the wire
// contract is the /v1/messages surface served by cmd/internal/api.
type HTTPStore struct {
	base   string
	client *http.Client
}

// HTTPOption configures HTTPStore behavior.
type HTTPOption func(*HTTPStore)

// WithHTTPClient overrides the underlying http.Client (tests, custom TLS).
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPStore) {
		if c != nil {
			s.client = c
		}
	}
}

// NewHTTPStore constructs a REST-backed Store rooted at baseURL.
func NewHTTPStore(baseURL string, opts ...HTTPOption) (*HTTPStore, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("chat: empty base url")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("chat: invalid base url: %w", err)
	}

	s := &HTTPStore{
		base:   baseURL,
		client: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Close is a no-op; the http.Client has no resources to release here.
func (s *HTTPStore) Close() error { return nil }

// Insert POSTs a new message row.
func (s *HTTPStore) Insert(ctx context.Context, msg Message) error {
	return s.do(ctx, http.MethodPost, "/v1/messages", msg, nil, "chat.Insert", ErrPersistence)
}

// Update PATCHes the mutable fields of a row.
func (s *HTTPStore) Update(ctx context.Context, id string, patch Patch) (Message, error) {
	body := struct {
		TranslatedContent *string   `json:"translated_content,omitempty"`
		AudioURL          *string   `json:"audio_url,omitempty"`
		Metadata          *Metadata `json:"metadata,omitempty"`
	}{patch.TranslatedContent, patch.AudioURL, patch.Metadata}

	var out Message
	err := s.do(ctx, http.MethodPatch, "/v1/messages/"+url.PathEscape(id), body, &out, "chat.Update", ErrPersistence)
	return out, err
}

// Delete removes one row. The REST surface responds 204 without echoing
// the row, so the returned Message is always zero; the server broadcasts
// the full removed row on the change feed instead.
func (s *HTTPStore) Delete(ctx context.Context, id string) (Message, error) {
	err := s.do(ctx, http.MethodDelete, "/v1/messages/"+url.PathEscape(id), nil, nil, "chat.Delete", ErrPersistence)
	return Message{}, err
}

// DeleteAll removes every row. As with Delete, removed rows travel on the
// change feed, not the REST response.
func (s *HTTPStore) DeleteAll(ctx context.Context) ([]Message, error) {
	err := s.do(ctx, http.MethodDelete, "/v1/messages", nil, nil, "chat.DeleteAll", ErrPersistence)
	return nil, err
}

// List fetches the full ordered message set.
func (s *HTTPStore) List(ctx context.Context) ([]Message, error) {
	var out []Message
	err := s.do(ctx, http.MethodGet, "/v1/messages", nil, &out, "chat.List", ErrFetch)
	return out, err
}

// do runs one JSON round-trip. failKind is the sentinel used for transport
// and 5xx failures; 4xx statuses map to their taxonomy sentinels instead.
func (s *HTTPStore) do(ctx context.Context, method, path string, in, out any, op string, failKind error) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return Opf(op, failKind, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.base+path, body)
	if err != nil {
		return Opf(op, failKind, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Opf(op, failKind, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return Opf(op, kindForStatus(resp.StatusCode, failKind), fmt.Errorf("status %d", resp.StatusCode))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return Opf(op, failKind, err)
		}
	}
	return nil
}

func kindForStatus(status int, def error) error {
	switch status {
	case http.StatusBadRequest:
		return ErrValidation
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	default:
		return def
	}
}
