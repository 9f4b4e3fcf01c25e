package session

import (
	"context"
	"testing"
	"time"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"
	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/realtime"
)

type fakeSource struct {
	events chan realtime.ChangeEvent
	resets chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		events: make(chan realtime.ChangeEvent, 16),
		resets: make(chan struct{}, 1),
	}
}

func (f *fakeSource) Events() <-chan realtime.ChangeEvent { return f.events }
func (f *fakeSource) Resets() <-chan struct{}             { return f.resets }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestReconcilerAppliesEvents(t *testing.T) {
	t.Parallel()

	store := NewStore(testLogger(), chat.NewMemoryStore())
	src := newFakeSource()
	r := NewReconciler(testLogger(), store, src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	src.events <- insertEvent(msgAt("a", base))
	src.events <- insertEvent(msgAt("b", base.Add(time.Minute)))
	waitFor(t, func() bool { return store.Len() == 2 })

	src.events <- realtime.ChangeEvent{Kind: realtime.KindDelete, Message: chat.Message{ID: "a"}}
	waitFor(t, func() bool { return store.Len() == 1 })

	cancel()
	<-done
}

func TestReconcilerReloadsOnReset(t *testing.T) {
	t.Parallel()

	backend := chat.NewMemoryStore()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := backend.Insert(context.Background(), msgAt("server-row", base)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store := NewStore(testLogger(), backend)
	store.Apply(insertEvent(msgAt("stale-local", base.Add(-time.Hour))))

	src := newFakeSource()
	r := NewReconciler(testLogger(), store, src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	src.resets <- struct{}{}
	waitFor(t, func() bool {
		snap := store.Snapshot()
		return len(snap) == 1 && snap[0].ID == "server-row"
	})
}

// Convergence end to end: one side writes through its store, the other only
// sees feed events; both end with identical snapshots.
func TestReconcilerConvergence(t *testing.T) {
	t.Parallel()

	backend := chat.NewMemoryStore()
	writer := NewStore(testLogger(), backend)
	reader := NewStore(testLogger(), chat.NewMemoryStore())

	src := newFakeSource()
	r := NewReconciler(testLogger(), reader, src)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	a, err := writer.Add(context.Background(), AddInput{
		SenderRole:      chat.RoleDoctor,
		OriginalContent: "any allergies?",
		Language:        chat.LangEnglish,
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	b, err := writer.Add(context.Background(), AddInput{
		SenderRole:      chat.RolePatient,
		OriginalContent: "ninguna",
		Language:        chat.LangSpanish,
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	// The writer also receives its own echoes; both must be no-ops there.
	for _, m := range []chat.Message{a, b} {
		writer.Apply(insertEvent(m))
		src.events <- insertEvent(m)
	}
	waitFor(t, func() bool { return reader.Len() == 2 })

	ws, rs := writer.Snapshot(), reader.Snapshot()
	if len(ws) != len(rs) {
		t.Fatalf("len mismatch: %d vs %d", len(ws), len(rs))
	}
	for i := range ws {
		if ws[i].ID != rs[i].ID {
			t.Fatalf("divergence at %d: %s vs %s", i, ws[i].ID, rs[i].ID)
		}
	}
}
