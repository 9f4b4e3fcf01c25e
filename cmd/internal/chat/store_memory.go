package chat

import (
	"context"
	"errors"
	"sort"
	"sync"
)

const memMaxMessages = 10_000

// MemoryStore is a dev-and-test fallback when no database is configured.
// Rows are kept ordered by (created_at, id) to match the List contract.
type MemoryStore struct {
	mu   sync.Mutex
	msgs []Message
	byID map[string]int
}

// NewMemoryStore constructs an in-memory Store implementation.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		msgs: make([]Message, 0, 256),
		byID: make(map[string]int),
	}
}

// Close closes the store (noop for in-memory).
func (s *MemoryStore) Close() error { return nil }

// Insert appends a row, rejecting duplicate ids.
func (s *MemoryStore) Insert(ctx context.Context, msg Message) error {
	if msg.ID == "" {
		return Opf("chat.Insert", ErrValidation, errors.New("empty id"))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[msg.ID]; ok {
		return Opf("chat.Insert", ErrConflict, nil)
	}

	// Insert keeping (created_at, id) order; events and retries may arrive
	// out of exact chronological order.
	at := sort.Search(len(s.msgs), func(i int) bool {
		return Less(msg, s.msgs[i])
	})
	s.msgs = append(s.msgs, Message{})
	copy(s.msgs[at+1:], s.msgs[at:])
	s.msgs[at] = msg
	s.reindex(at)

	// Bound memory to avoid unbounded growth in dev.
	if len(s.msgs) > memMaxMessages {
		drop := len(s.msgs) - memMaxMessages
		for _, m := range s.msgs[:drop] {
			delete(s.byID, m.ID)
		}
		s.msgs = append(s.msgs[:0], s.msgs[drop:]...)
		s.reindex(0)
	}
	return nil
}

// Update replaces the mutable fields of an existing row.
func (s *MemoryStore) Update(ctx context.Context, id string, patch Patch) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.byID[id]
	if !ok {
		return Message{}, Opf("chat.Update", ErrNotFound, nil)
	}

	m := s.msgs[i]
	if patch.TranslatedContent != nil {
		m.TranslatedContent = patch.TranslatedContent
	}
	if patch.AudioURL != nil {
		m.AudioURL = patch.AudioURL
	}
	if patch.Metadata != nil {
		m.Metadata = *patch.Metadata
	}
	s.msgs[i] = m
	return m, nil
}

// Delete removes a row and returns it.
func (s *MemoryStore) Delete(ctx context.Context, id string) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.byID[id]
	if !ok {
		return Message{}, Opf("chat.Delete", ErrNotFound, nil)
	}

	m := s.msgs[i]
	delete(s.byID, id)
	s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
	s.reindex(i)
	return m, nil
}

// DeleteAll empties the store and returns the removed rows in order.
func (s *MemoryStore) DeleteAll(ctx context.Context) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.msgs
	s.msgs = make([]Message, 0, 256)
	s.byID = make(map[string]int)
	return removed, nil
}

// List returns a snapshot ordered by (created_at, id).
func (s *MemoryStore) List(ctx context.Context) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Message(nil), s.msgs...), nil
}

// reindex rebuilds byID positions from i onward. Caller holds the lock.
func (s *MemoryStore) reindex(i int) {
	for ; i < len(s.msgs); i++ {
		s.byID[s.msgs[i].ID] = i
	}
}
