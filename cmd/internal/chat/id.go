package chat

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewMessageID returns a new ULID string (26 chars).
// ULIDs are lexicographically sortable, which keeps ids stable tiebreakers
// when two messages share a created_at timestamp.
func NewMessageID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
