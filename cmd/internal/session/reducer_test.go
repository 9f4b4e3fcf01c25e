package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"
	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/realtime"
)

func msgAt(id string, t time.Time) chat.Message {
	return chat.Message{
		ID:              id,
		CreatedAt:       t,
		SenderRole:      chat.RoleDoctor,
		OriginalContent: "hello",
		Language:        chat.LangEnglish,
	}
}

func strptr(s string) *string { return &s }

func insertEvent(m chat.Message) realtime.ChangeEvent {
	return realtime.ChangeEvent{Kind: realtime.KindInsert, Message: m}
}

// ulidLike yields fixed-width ids that sort in numeric order.
func ulidLike(i int) string {
	return fmt.Sprintf("%026d", i)
}

func TestReduceInsertKeepsOrder(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	var snap []chat.Message

	// Arrivals out of chronological order.
	for _, m := range []chat.Message{
		msgAt("b", base.Add(2*time.Minute)),
		msgAt("a", base),
		msgAt("c", base.Add(time.Minute)),
	} {
		var out Outcome
		snap, out = Reduce(snap, realtime.ChangeEvent{Kind: realtime.KindInsert, Message: m})
		if out != OutcomeApplied {
			t.Fatalf("insert %s: outcome = %v", m.ID, out)
		}
	}

	want := []string{"a", "c", "b"}
	for i, id := range want {
		if snap[i].ID != id {
			t.Fatalf("order[%d] = %s, want %s", i, snap[i].ID, id)
		}
	}
}

func TestReduceInsertDuplicateIsNoop(t *testing.T) {
	t.Parallel()

	m := msgAt("a", time.Now().UTC())
	snap, _ := Reduce(nil, realtime.ChangeEvent{Kind: realtime.KindInsert, Message: m})

	// Echo carries the same id but a different body; neither may change
	// anything.
	echo := m
	echo.OriginalContent = "altered"
	next, out := Reduce(snap, realtime.ChangeEvent{Kind: realtime.KindInsert, Message: echo})
	if out != OutcomeDuplicate {
		t.Fatalf("outcome = %v, want OutcomeDuplicate", out)
	}
	if len(next) != 1 || next[0].OriginalContent != "hello" {
		t.Fatalf("snapshot changed on duplicate insert: %+v", next)
	}
}

func TestReduceUpdateTouchesMutableFieldsOnly(t *testing.T) {
	t.Parallel()

	m := msgAt("a", time.Now().UTC())
	snap, _ := Reduce(nil, realtime.ChangeEvent{Kind: realtime.KindInsert, Message: m})

	patch := m
	patch.SenderRole = chat.RolePatient
	patch.OriginalContent = "rewritten"
	patch.Language = chat.LangSpanish
	patch.TranslatedContent = strptr("hola")
	patch.Metadata = chat.Metadata{TranslationModel: "test-model"}

	next, out := Reduce(snap, realtime.ChangeEvent{Kind: realtime.KindUpdate, Message: patch})
	if out != OutcomeApplied {
		t.Fatalf("outcome = %v", out)
	}

	got := next[0]
	if got.SenderRole != chat.RoleDoctor || got.OriginalContent != "hello" || got.Language != chat.LangEnglish {
		t.Fatalf("immutable fields changed: %+v", got)
	}
	if got.TranslatedContent == nil || *got.TranslatedContent != "hola" {
		t.Fatalf("translated content not applied: %+v", got)
	}
	if got.Metadata.TranslationModel != "test-model" {
		t.Fatalf("metadata not applied: %+v", got.Metadata)
	}
}

func TestReduceUpdateUnknownIDDropped(t *testing.T) {
	t.Parallel()

	snap, _ := Reduce(nil, realtime.ChangeEvent{Kind: realtime.KindInsert, Message: msgAt("a", time.Now().UTC())})
	next, out := Reduce(snap, realtime.ChangeEvent{Kind: realtime.KindUpdate, Message: msgAt("ghost", time.Now().UTC())})
	if out != OutcomeUnknownID {
		t.Fatalf("outcome = %v, want OutcomeUnknownID", out)
	}
	if len(next) != 1 || next[0].ID != "a" {
		t.Fatalf("snapshot changed: %+v", next)
	}
}

func TestReduceDeleteAbsentIsNoop(t *testing.T) {
	t.Parallel()

	snap, _ := Reduce(nil, realtime.ChangeEvent{Kind: realtime.KindInsert, Message: msgAt("a", time.Now().UTC())})
	next, out := Reduce(snap, realtime.ChangeEvent{Kind: realtime.KindDelete, Message: chat.Message{ID: "ghost"}})
	if out != OutcomeUnknownID {
		t.Fatalf("outcome = %v", out)
	}
	if len(next) != 1 {
		t.Fatalf("snapshot changed: %+v", next)
	}
}

func TestReduceIsIdempotent(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	events := []realtime.ChangeEvent{
		{Kind: realtime.KindInsert, Message: msgAt("a", base)},
		{Kind: realtime.KindInsert, Message: msgAt("b", base.Add(time.Minute))},
		{Kind: realtime.KindDelete, Message: chat.Message{ID: "a"}},
	}

	var once []chat.Message
	for _, ev := range events {
		once, _ = Reduce(once, ev)
	}

	// Replaying every event twice in a row must converge identically.
	var twice []chat.Message
	for _, ev := range events {
		twice, _ = Reduce(twice, ev)
		twice, _ = Reduce(twice, ev)
	}

	if len(once) != len(twice) {
		t.Fatalf("len mismatch: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].ID != twice[i].ID {
			t.Fatalf("divergence at %d: %s vs %s", i, once[i].ID, twice[i].ID)
		}
	}
}
