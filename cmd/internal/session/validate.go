package session

import (
	"errors"
	"fmt"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"
)

var (
	errEmptyContent   = errors.New("empty message content")
	errContentTooLong = fmt.Errorf("message exceeds %d characters", MaxMessageChars)
	errEmptyAudio     = errors.New("empty audio payload")
	errAudioTooLarge  = fmt.Errorf("audio exceeds %d bytes", MaxAudioBytes)
	errNoMessages     = errors.New("no messages to summarize")
)

func errInvalidRole(r chat.SenderRole) error {
	return fmt.Errorf("invalid sender role: %q", r)
}

func errUnsupportedLanguage(l chat.Language) error {
	return fmt.Errorf("unsupported language: %q", l)
}
