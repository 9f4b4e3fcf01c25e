package session

import (
	"sort"
	"time"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"
)

// DayGroup is one calendar-day bucket of messages. Date is midnight UTC of
// that day; Messages are in chronological order within the bucket.
type DayGroup struct {
	Date     time.Time
	Label    string
	Messages []chat.Message
}

// Stats are whole-conversation aggregates.
type Stats struct {
	Total   int
	Doctor  int
	Patient int
	Audio   int
}

// GroupByDay buckets messages by their UTC calendar day, newest day first.
// Day boundaries and the Today/Yesterday labels are computed against now in
// UTC, never the machine's local zone.
func GroupByDay(msgs []chat.Message, now time.Time) []DayGroup {
	byDay := make(map[time.Time][]chat.Message)
	for _, m := range msgs {
		day := dayUTC(m.CreatedAt)
		byDay[day] = append(byDay[day], m)
	}

	groups := make([]DayGroup, 0, len(byDay))
	for day, ms := range byDay {
		sort.Slice(ms, func(i, j int) bool { return chat.Less(ms[i], ms[j]) })
		groups = append(groups, DayGroup{
			Date:     day,
			Label:    dayLabel(day, now),
			Messages: ms,
		})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Date.After(groups[j].Date) })
	return groups
}

// Aggregate computes conversation stats in one pass.
func Aggregate(msgs []chat.Message) Stats {
	var st Stats
	st.Total = len(msgs)
	for _, m := range msgs {
		switch m.SenderRole {
		case chat.RoleDoctor:
			st.Doctor++
		case chat.RolePatient:
			st.Patient++
		}
		if m.HasAudio() {
			st.Audio++
		}
	}
	return st
}

func dayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func dayLabel(day, now time.Time) string {
	today := dayUTC(now)
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	case day.Year() == today.Year():
		return day.Format("Mon, Jan 2")
	default:
		return day.Format("Mon, Jan 2, 2006")
	}
}
