package session

import "github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"

// DisplayContent is the viewer-relative rendering of one message: the
// primary line in the viewer's own language and an optional secondary line
// showing the other side of the translation.
type DisplayContent struct {
	Primary   string
	Secondary string
}

// HasSecondary reports whether a secondary line should be rendered.
func (d DisplayContent) HasSecondary() bool { return d.Secondary != "" }

// SelectContent decides which content a viewer sees for a message.
//
// The viewer's own messages show the original first with the translation
// underneath; the other party's messages show the translation first with the
// original underneath. A missing translation falls back to the original, and
// the secondary line is suppressed whenever it would repeat the primary.
func SelectContent(msg chat.Message, viewer chat.SenderRole) DisplayContent {
	var d DisplayContent
	if msg.SenderRole == viewer {
		d.Primary = msg.OriginalContent
		if msg.Translated() {
			d.Secondary = *msg.TranslatedContent
		}
	} else {
		if msg.Translated() {
			d.Primary = *msg.TranslatedContent
			d.Secondary = msg.OriginalContent
		} else {
			d.Primary = msg.OriginalContent
		}
	}
	if d.Secondary == d.Primary {
		d.Secondary = ""
	}
	return d
}
