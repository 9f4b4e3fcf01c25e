package chat

import "context"

// Patch carries the post-creation mutable fields of a message.
// A nil field means "leave unchanged"; SenderRole, OriginalContent, and
// Language are deliberately absent (immutable after creation).
type Patch struct {
	TranslatedContent *string
	AudioURL          *string
	Metadata          *Metadata
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.TranslatedContent == nil && p.AudioURL == nil && p.Metadata == nil
}

// Store persists and queries message rows.
//
// Requirements:
//   - Exactly one row per id; Insert of an existing id fails with ErrConflict.
//   - List is ordered by created_at ASC, id ASC as a tiebreaker.
//   - Update touches mutable fields only and returns the updated row.
//   - Delete and DeleteAll return the removed rows so callers can broadcast
//     row-level change events. Implementations that cannot echo removed rows
//     (HTTPStore) return zero values; their server broadcasts instead.
type Store interface {
	Insert(ctx context.Context, msg Message) error
	Update(ctx context.Context, id string, patch Patch) (Message, error)
	Delete(ctx context.Context, id string) (Message, error)
	DeleteAll(ctx context.Context) ([]Message, error)
	List(ctx context.Context) ([]Message, error)
	Close() error
}

// Less is the canonical ordering predicate for message rows:
// created_at ASC with id as a stable tiebreaker.
func Less(a, b Message) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}
