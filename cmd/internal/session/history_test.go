package session

import (
	"testing"
	"time"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"
)

func TestGroupByDayBucketsAndLabels(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	msgs := []chat.Message{
		msgAt("today-2", now.Add(-time.Hour)),
		msgAt("today-1", now.Add(-2*time.Hour)),
		msgAt("yesterday", now.AddDate(0, 0, -1)),
		msgAt("last-week", now.AddDate(0, 0, -7)),
		msgAt("last-year", now.AddDate(-1, 0, 0)),
	}

	groups := GroupByDay(msgs, now)
	if len(groups) != 4 {
		t.Fatalf("got %d groups, want 4", len(groups))
	}

	wantLabels := []string{"Today", "Yesterday", "Mon, Mar 3", "Sun, Mar 10, 2024"}
	for i, want := range wantLabels {
		if groups[i].Label != want {
			t.Fatalf("group[%d].Label = %q, want %q", i, groups[i].Label, want)
		}
	}

	// Buckets newest-first, messages oldest-first within a bucket.
	today := groups[0]
	if len(today.Messages) != 2 {
		t.Fatalf("today has %d messages", len(today.Messages))
	}
	if today.Messages[0].ID != "today-1" || today.Messages[1].ID != "today-2" {
		t.Fatalf("today order = %s, %s", today.Messages[0].ID, today.Messages[1].ID)
	}
}

func TestGroupByDayUsesUTCBoundary(t *testing.T) {
	t.Parallel()

	// 23:30 UTC on March 9 stays on March 9 even when expressed in a zone
	// where it is already March 10.
	loc := time.FixedZone("UTC+3", 3*60*60)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	msgs := []chat.Message{
		msgAt("late", time.Date(2025, 3, 10, 2, 30, 0, 0, loc)), // 23:30 Mar 9 UTC
	}

	groups := GroupByDay(msgs, now)
	if len(groups) != 1 || groups[0].Label != "Yesterday" {
		t.Fatalf("groups = %+v", groups)
	}
}

func TestGroupByDayEmpty(t *testing.T) {
	t.Parallel()

	if groups := GroupByDay(nil, time.Now().UTC()); len(groups) != 0 {
		t.Fatalf("got %d groups for empty input", len(groups))
	}
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	withAudio := msgAt("aud", now)
	withAudio.SenderRole = chat.RolePatient
	withAudio.AudioURL = strptr("/media/patient-1.webm")

	msgs := []chat.Message{
		msgAt("d1", now),
		msgAt("d2", now),
		withAudio,
	}

	got := Aggregate(msgs)
	want := Stats{Total: 3, Doctor: 2, Patient: 1, Audio: 1}
	if got != want {
		t.Fatalf("Aggregate = %+v, want %+v", got, want)
	}

	if got := Aggregate(nil); got != (Stats{}) {
		t.Fatalf("Aggregate(nil) = %+v", got)
	}
}
