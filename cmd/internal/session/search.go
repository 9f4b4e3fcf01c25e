package session

import (
	"sort"
	"strings"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"
)

const (
	// MinQueryChars is the floor under which Search returns nothing at all.
	MinQueryChars = 2

	// snippetWindow is how many characters of context surround a match.
	snippetWindow = 50

	// Ellipsis marks a truncated snippet edge.
	Ellipsis = "..."
)

// MatchType says which content field(s) of a message matched a query.
type MatchType string

const (
	MatchOriginal   MatchType = "original"
	MatchTranslated MatchType = "translated"
	MatchBoth       MatchType = "both"
)

// SearchResult is one hit with a snippet around the first occurrence.
// The snippet is cut from the original content when it matched, otherwise
// from the translation.
type SearchResult struct {
	Message   chat.Message
	MatchType MatchType

	Before  string
	Matched string
	After   string
}

// Snippet renders the context window as a single string.
func (r SearchResult) Snippet() string {
	return r.Before + r.Matched + r.After
}

// Search scans the snapshot for a case-insensitive substring match in either
// content field. Queries shorter than MinQueryChars (after trimming) yield no
// results; hits are ordered newest first.
func Search(msgs []chat.Message, query string) []SearchResult {
	q := strings.TrimSpace(query)
	if len([]rune(q)) < MinQueryChars {
		return nil
	}
	qLower := strings.ToLower(q)

	var results []SearchResult
	for _, msg := range msgs {
		origAt := indexFold(msg.OriginalContent, qLower)
		transAt := -1
		if msg.TranslatedContent != nil {
			transAt = indexFold(*msg.TranslatedContent, qLower)
		}
		if origAt < 0 && transAt < 0 {
			continue
		}

		r := SearchResult{Message: msg}
		switch {
		case origAt >= 0 && transAt >= 0:
			r.MatchType = MatchBoth
		case origAt >= 0:
			r.MatchType = MatchOriginal
		default:
			r.MatchType = MatchTranslated
		}

		if origAt >= 0 {
			r.Before, r.Matched, r.After = snippet(msg.OriginalContent, origAt, len([]rune(qLower)))
		} else {
			r.Before, r.Matched, r.After = snippet(*msg.TranslatedContent, transAt, len([]rune(qLower)))
		}
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return chat.Less(results[j].Message, results[i].Message)
	})
	return results
}

// indexFold returns the rune index of the first case-insensitive occurrence
// of qLower (already lowercased) in s, or -1.
func indexFold(s, qLower string) int {
	sr := []rune(strings.ToLower(s))
	qr := []rune(qLower)
	if len(qr) == 0 || len(qr) > len(sr) {
		return -1
	}
	for i := 0; i+len(qr) <= len(sr); i++ {
		match := true
		for j := range qr {
			if sr[i+j] != qr[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// snippet cuts a window of snippetWindow characters on each side of the
// match, prefixing/suffixing an Ellipsis where content was trimmed.
func snippet(s string, at, matchLen int) (before, matched, after string) {
	rs := []rune(s)
	if at+matchLen > len(rs) {
		matchLen = len(rs) - at
	}

	start := at - snippetWindow
	if start < 0 {
		start = 0
	}
	end := at + matchLen + snippetWindow
	if end > len(rs) {
		end = len(rs)
	}

	before = string(rs[start:at])
	matched = string(rs[at : at+matchLen])
	after = string(rs[at+matchLen : end])

	if start > 0 {
		before = Ellipsis + before
	}
	if end < len(rs) {
		after = after + Ellipsis
	}
	return before, matched, after
}

// Cursor steps through search results with clamped navigation: Next and
// Prev never move past either edge, and Selected on an empty cursor reports
// no selection.
type Cursor struct {
	results []SearchResult
	index   int
}

// NewCursor positions a cursor on the first (newest) result.
func NewCursor(results []SearchResult) *Cursor {
	return &Cursor{results: results}
}

// Len returns the number of results.
func (c *Cursor) Len() int { return len(c.results) }

// Index returns the zero-based position, meaningless when Len is zero.
func (c *Cursor) Index() int { return c.index }

// Selected returns the current result, if any.
func (c *Cursor) Selected() (SearchResult, bool) {
	if len(c.results) == 0 {
		return SearchResult{}, false
	}
	return c.results[c.index], true
}

// Next moves toward older results, clamping at the last one.
func (c *Cursor) Next() {
	if c.index < len(c.results)-1 {
		c.index++
	}
}

// Prev moves toward newer results, clamping at the first one.
func (c *Cursor) Prev() {
	if c.index > 0 {
		c.index--
	}
}
