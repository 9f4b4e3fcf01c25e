package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"
)

const summarySystemPrompt = "You are a clinical documentation assistant. " +
	"Given a doctor-patient conversation, extract the reported symptoms, the " +
	"medications mentioned or prescribed, and the follow-up actions agreed on. " +
	"Respond in %s. Respond with a single JSON object exactly of the form " +
	`{"symptoms": [], "medications": [], "follow_up_actions": []}` +
	" and nothing else. Use empty arrays for categories with no findings."

// summaryPayload is the strict shape the model must produce.
type summaryPayload struct {
	Symptoms        []string `json:"symptoms"`
	Medications     []string `json:"medications"`
	FollowUpActions []string `json:"follow_up_actions"`
}

// Summarize extracts a structured medical summary from the conversation
// slice. Implements session.Summarizer.
//
// The analysis text is the English side of the conversation: doctor messages
// contribute their original content, patient messages their translation when
// one exists. Malformed model output is an error; a guessed or partial
// summary is worse than none in this domain.
func (c *Client) Summarize(ctx context.Context, msgs []chat.Message, output chat.Language) (chat.Summary, error) {
	const op = "ai.summary"

	if len(msgs) == 0 {
		return chat.Summary{}, chat.Opf(op, chat.ErrValidation, fmt.Errorf("no messages"))
	}
	if !output.Supported() {
		return chat.Summary{}, chat.Opf(op, chat.ErrValidation, fmt.Errorf("unsupported language: %q", output))
	}

	system := fmt.Sprintf(summarySystemPrompt, output.Name())
	raw, err := c.complete(ctx, "summary", c.cfg.SummaryModel, system, transcript(msgs))
	if err != nil {
		return chat.Summary{}, err
	}

	var payload summaryPayload
	if err := json.Unmarshal([]byte(stripFences(raw)), &payload); err != nil {
		c.log.Warn("ai.summary.malformed", "err", err)
		return chat.Summary{}, chat.Opf(op, chat.ErrService, fmt.Errorf("malformed summary payload: %w", err))
	}

	return chat.Summary{
		Symptoms:        payload.Symptoms,
		Medications:     payload.Medications,
		FollowUpActions: payload.FollowUpActions,
		Timestamp:       time.Now().UTC(),
		MessageCount:    len(msgs),
	}, nil
}

// transcript renders the conversation with role labels, English side
// preferred.
func transcript(msgs []chat.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		text := m.OriginalContent
		if m.SenderRole == chat.RolePatient && m.Translated() {
			text = *m.TranslatedContent
		}
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(string(m.SenderRole)), text)
	}
	return b.String()
}

// stripFences removes a surrounding markdown code fence, which chat models
// add even when told not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
