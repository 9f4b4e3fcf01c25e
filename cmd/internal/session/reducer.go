// Package session implements the client-side conversation engine: an
// in-memory message store reconciling optimistic local writes with the
// server change feed, plus the stateless presentation helpers (role-relative
// content selection, search, date-bucketed history) and the send pipelines.
package session

import (
	"sort"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"
	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/realtime"
)

// Outcome describes what a change event did to a snapshot.
type Outcome uint8

const (
	// OutcomeApplied means the snapshot changed.
	OutcomeApplied Outcome = iota
	// OutcomeDuplicate means an insert for an id that is already present
	// (typically the server echo of an optimistic add). No-op.
	OutcomeDuplicate
	// OutcomeUnknownID means an update or delete referenced an absent id.
	// Deletes are a silent no-op; updates are dropped and the caller is
	// expected to log the anomaly.
	OutcomeUnknownID
)

// Reduce applies one change event to a snapshot and returns the new snapshot.
//
// It is a pure function: the input slice is never mutated, convergence is
// keyed on Message.ID only (never content hashes or timestamps), and applying
// the same event twice yields the same snapshot as applying it once.
func Reduce(snapshot []chat.Message, ev realtime.ChangeEvent) ([]chat.Message, Outcome) {
	switch ev.Kind {
	case realtime.KindInsert:
		return reduceInsert(snapshot, ev.Message)
	case realtime.KindUpdate:
		return reduceUpdate(snapshot, ev.Message)
	case realtime.KindDelete:
		return reduceDelete(snapshot, ev.Message.ID)
	default:
		return snapshot, OutcomeUnknownID
	}
}

func reduceInsert(snapshot []chat.Message, msg chat.Message) ([]chat.Message, Outcome) {
	if indexByID(snapshot, msg.ID) >= 0 {
		return snapshot, OutcomeDuplicate
	}

	// Insert keeping (created_at, id) order; events may arrive out of exact
	// chronological order after reconnects.
	at := sort.Search(len(snapshot), func(i int) bool {
		return chat.Less(msg, snapshot[i])
	})

	next := make([]chat.Message, 0, len(snapshot)+1)
	next = append(next, snapshot[:at]...)
	next = append(next, msg)
	next = append(next, snapshot[at:]...)
	return next, OutcomeApplied
}

func reduceUpdate(snapshot []chat.Message, msg chat.Message) ([]chat.Message, Outcome) {
	i := indexByID(snapshot, msg.ID)
	if i < 0 {
		return snapshot, OutcomeUnknownID
	}

	// Only the post-creation mutable fields are taken from the event; the
	// immutable ones stay as first seen, whatever the payload claims.
	next := append([]chat.Message(nil), snapshot...)
	next[i].TranslatedContent = msg.TranslatedContent
	next[i].AudioURL = msg.AudioURL
	next[i].Metadata = msg.Metadata
	return next, OutcomeApplied
}

func reduceDelete(snapshot []chat.Message, id string) ([]chat.Message, Outcome) {
	i := indexByID(snapshot, id)
	if i < 0 {
		return snapshot, OutcomeUnknownID
	}

	next := make([]chat.Message, 0, len(snapshot)-1)
	next = append(next, snapshot[:i]...)
	next = append(next, snapshot[i+1:]...)
	return next, OutcomeApplied
}

func indexByID(snapshot []chat.Message, id string) int {
	for i := range snapshot {
		if snapshot[i].ID == id {
			return i
		}
	}
	return -1
}
