package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"
	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/realtime"
)

// MaxMessageChars caps the original content of a text message.
const MaxMessageChars = 1000

// AddInput is the author-side request for a new message. The store assigns
// id and timestamp itself.
type AddInput struct {
	SenderRole        chat.SenderRole
	OriginalContent   string
	TranslatedContent *string
	AudioURL          *string
	Language          chat.Language
	Metadata          chat.Metadata
}

// Store is the client-side conversation state: an ordered, id-deduplicated
// snapshot reconciling optimistic local writes with the remote change feed.
//
// Writes are optimistic: the entry is visible locally before the backend
// round-trip completes. Remote events flow in through Apply; convergence is
// keyed on message id, so the server echo of an optimistic add is a no-op.
type Store struct {
	log     *slog.Logger
	backend chat.Store

	mu      sync.Mutex
	msgs    []chat.Message
	subs    map[int]chan struct{}
	nextSub int
}

// NewStore builds an empty store over the given backend.
func NewStore(log *slog.Logger, backend chat.Store) *Store {
	return &Store{
		log:     log,
		backend: backend,
		subs:    make(map[int]chan struct{}),
	}
}

// InitialLoad replaces the snapshot wholesale with the backend's current
// rows. On failure the snapshot is left untouched and ErrFetch is returned;
// at session start that means the store simply stays empty.
func (s *Store) InitialLoad(ctx context.Context) error {
	rows, err := s.backend.List(ctx)
	if err != nil {
		if chat.IsFetch(err) {
			return err
		}
		return chat.Opf("session.load", chat.ErrFetch, err)
	}

	s.mu.Lock()
	s.msgs = rows
	s.mu.Unlock()
	s.notify()
	return nil
}

// Add validates the input, inserts the message optimistically, then persists
// it. The returned message is the locally visible entry.
//
// If the backend insert fails the optimistic entry stays visible and the
// error wraps ErrPersistence; a duplicate-id conflict is treated as the
// server echo winning the race and is not an error.
func (s *Store) Add(ctx context.Context, in AddInput) (chat.Message, error) {
	const op = "session.add"

	if !in.SenderRole.Valid() {
		return chat.Message{}, chat.Opf(op, chat.ErrValidation, errInvalidRole(in.SenderRole))
	}
	content := strings.TrimSpace(in.OriginalContent)
	if content == "" {
		return chat.Message{}, chat.Opf(op, chat.ErrValidation, errEmptyContent)
	}
	if utf8.RuneCountInString(content) > MaxMessageChars {
		return chat.Message{}, chat.Opf(op, chat.ErrValidation, errContentTooLong)
	}
	if !in.Language.Supported() {
		return chat.Message{}, chat.Opf(op, chat.ErrValidation, errUnsupportedLanguage(in.Language))
	}

	now := time.Now().UTC()
	id, err := chat.NewMessageID(now)
	if err != nil {
		return chat.Message{}, chat.Opf(op, chat.ErrPersistence, err)
	}

	msg := chat.Message{
		ID:                id,
		CreatedAt:         now,
		SenderRole:        in.SenderRole,
		OriginalContent:   content,
		TranslatedContent: in.TranslatedContent,
		AudioURL:          in.AudioURL,
		Language:          in.Language,
		Metadata:          in.Metadata,
	}

	s.applyLocked(realtime.ChangeEvent{Kind: realtime.KindInsert, Message: msg})

	if err := s.backend.Insert(ctx, msg); err != nil {
		if chat.IsConflict(err) {
			// The change feed delivered the row before our own round-trip
			// finished. The id matched, so local state already converged.
			return msg, nil
		}
		s.log.Error("session.add.persist", "id", msg.ID, "err", err)
		return msg, chat.Opf(op, chat.ErrPersistence, err)
	}
	return msg, nil
}

// Amend applies a patch to an existing message, optimistically first.
// Used by the composer when a translation or audio URL arrives after the
// initial insert.
func (s *Store) Amend(ctx context.Context, id string, patch chat.Patch) (chat.Message, error) {
	const op = "session.amend"

	s.mu.Lock()
	i := indexByID(s.msgs, id)
	if i < 0 {
		s.mu.Unlock()
		return chat.Message{}, chat.Opf(op, chat.ErrNotFound, nil)
	}
	next := append([]chat.Message(nil), s.msgs...)
	if patch.TranslatedContent != nil {
		next[i].TranslatedContent = patch.TranslatedContent
	}
	if patch.AudioURL != nil {
		next[i].AudioURL = patch.AudioURL
	}
	if patch.Metadata != nil {
		next[i].Metadata = *patch.Metadata
	}
	updated := next[i]
	s.msgs = next
	s.mu.Unlock()
	s.notify()

	if _, err := s.backend.Update(ctx, id, patch); err != nil {
		s.log.Error("session.amend.persist", "id", id, "err", err)
		return updated, chat.Opf(op, chat.ErrPersistence, err)
	}
	return updated, nil
}

// Delete removes the message locally and from the backend. A backend
// not-found is not an error: the row was already gone.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.applyLocked(realtime.ChangeEvent{Kind: realtime.KindDelete, Message: chat.Message{ID: id}})

	if _, err := s.backend.Delete(ctx, id); err != nil {
		if chat.IsNotFound(err) {
			return nil
		}
		s.log.Error("session.delete.persist", "id", id, "err", err)
		return chat.Opf("session.delete", chat.ErrPersistence, err)
	}
	return nil
}

// Clear empties the conversation locally and on the backend.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	changed := len(s.msgs) > 0
	s.msgs = nil
	s.mu.Unlock()
	if changed {
		s.notify()
	}

	if _, err := s.backend.DeleteAll(ctx); err != nil {
		s.log.Error("session.clear.persist", "err", err)
		return chat.Opf("session.clear", chat.ErrPersistence, err)
	}
	return nil
}

// Apply folds one remote change event into the snapshot.
// Updates for ids the store has never seen are dropped and logged; deletes
// for absent ids are a silent no-op of the reducer's making.
func (s *Store) Apply(ev realtime.ChangeEvent) {
	outcome := s.applyLocked(ev)
	if outcome == OutcomeUnknownID && ev.Kind == realtime.KindUpdate {
		s.log.Warn("reconcile.update.unknown_id", "id", ev.Message.ID)
	}
}

func (s *Store) applyLocked(ev realtime.ChangeEvent) Outcome {
	s.mu.Lock()
	next, outcome := Reduce(s.msgs, ev)
	if outcome == OutcomeApplied {
		s.msgs = next
	}
	s.mu.Unlock()

	if outcome == OutcomeApplied {
		s.notify()
	}
	return outcome
}

// Snapshot returns a copy of the current ordered message list.
func (s *Store) Snapshot() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.Message(nil), s.msgs...)
}

// Len returns the current message count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

// Get returns the message with the given id, if present.
func (s *Store) Get(id string) (chat.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexByID(s.msgs, id); i >= 0 {
		return s.msgs[i], true
	}
	return chat.Message{}, false
}

// Subscribe registers a change listener. The channel carries a coalesced
// signal (capacity one); the returned func unregisters it.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Store) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
