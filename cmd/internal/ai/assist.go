package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"
)

const assistSystemPrompt = "You are a helpful, empathetic health assistant " +
	"with access to the patient's recent conversation with their doctor.\n\n" +
	"Previous doctor-patient conversation:\n%s\n" +
	"Your role:\n" +
	"1. Answer follow-up questions about the diagnosis, medications, or care instructions discussed\n" +
	"2. Explain medical terms in simple language\n" +
	"3. Provide general health information, but always recommend consulting the doctor for specific medical decisions\n" +
	"4. ALWAYS respond in %s\n" +
	"5. If asked something unrelated to health or the conversation, politely redirect\n\n" +
	"You are not a replacement for medical advice. Encourage contacting the " +
	"healthcare provider for serious concerns."

// Assist answers a follow-up question about the conversation, grounded in
// the supplied history and phrased in the asker's language. Unlike the
// summary there is no structured output to enforce; the model's prose is
// returned as-is.
func (c *Client) Assist(ctx context.Context, question string, history []chat.Message, output chat.Language) (string, error) {
	const op = "ai.assist"

	question = strings.TrimSpace(question)
	if question == "" {
		return "", chat.Opf(op, chat.ErrValidation, fmt.Errorf("empty question"))
	}
	if !output.Supported() {
		return "", chat.Opf(op, chat.ErrValidation, fmt.Errorf("unsupported language: %q", output))
	}

	convo := transcript(history)
	if convo == "" {
		convo = "No previous conversation available.\n"
	}

	system := fmt.Sprintf(assistSystemPrompt, convo, output.Name())
	return c.complete(ctx, "assist", c.cfg.AssistModel, system, question)
}
