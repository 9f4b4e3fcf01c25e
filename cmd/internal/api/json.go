// Package api exposes the REST surface: message CRUD with change-feed
// broadcast, the language-service proxies, and audio upload.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: msg}})
}

// writeDomainError maps the error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case chat.IsValidation(err):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case chat.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", "message not found")
	case chat.IsConflict(err):
		writeError(w, http.StatusConflict, "conflict", "duplicate message id")
	case chat.IsService(err):
		writeError(w, http.StatusBadGateway, "service_unavailable", "upstream service failed")
	default:
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// Ensure there is no extra data after the first JSON value.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after JSON object")
	}
	return nil
}
