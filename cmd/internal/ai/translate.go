package ai

import (
	"context"
	"fmt"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"
	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/session"
)

const translateSystemPrompt = "You are a professional medical interpreter. " +
	"Translate the user's message from %s to %s for a doctor-patient conversation. " +
	"Preserve medical terminology precisely, keep the register and tone, and do not " +
	"add explanations, notes, or quotation marks. Reply with the translation only."

// Translate renders text between two supported languages through the chat
// completions endpoint. Implements session.Translator.
func (c *Client) Translate(ctx context.Context, text string, source, target chat.Language) (session.Translation, error) {
	if !source.Supported() || !target.Supported() {
		return session.Translation{}, chat.Opf("ai.translate", chat.ErrValidation,
			fmt.Errorf("unsupported language pair %s -> %s", source, target))
	}
	if source == target {
		return session.Translation{Text: text, Model: c.cfg.TranslateModel}, nil
	}

	system := fmt.Sprintf(translateSystemPrompt, source.Name(), target.Name())
	out, err := c.complete(ctx, "translate", c.cfg.TranslateModel, system, text)
	if err != nil {
		return session.Translation{}, err
	}
	return session.Translation{Text: out, Model: c.cfg.TranslateModel}, nil
}
