package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"
)

func TestAssistGroundsPromptInConversation(t *testing.T) {
	t.Parallel()

	translated := "With every meal?"
	history := []chat.Message{
		{
			SenderRole:      chat.RoleDoctor,
			OriginalContent: "Take it with food",
			Language:        chat.LangEnglish,
			CreatedAt:       time.Now().UTC(),
		},
		{
			SenderRole:        chat.RolePatient,
			OriginalContent:   "¿Con cada comida?",
			TranslatedContent: &translated,
			Language:          chat.LangSpanish,
			CreatedAt:         time.Now().UTC(),
		},
	}

	var gotReq chatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode: %v", err)
		}
		io.WriteString(w, completionResponse("Tome la tableta con el desayuno."))
	})

	answer, err := c.Assist(context.Background(), "when do I take it?", history, chat.LangSpanish)
	if err != nil {
		t.Fatalf("Assist: %v", err)
	}
	if answer != "Tome la tableta con el desayuno." {
		t.Fatalf("answer = %q", answer)
	}

	system := gotReq.Messages[0].Content
	if !strings.Contains(system, "Take it with food") {
		t.Fatalf("system prompt missing doctor line: %q", system)
	}
	// The patient side contributes its English translation.
	if !strings.Contains(system, translated) {
		t.Fatalf("system prompt missing patient translation: %q", system)
	}
	if !strings.Contains(system, "Spanish") {
		t.Fatalf("system prompt missing answer language: %q", system)
	}
	if gotReq.Messages[1].Content != "when do I take it?" {
		t.Fatalf("user message = %q", gotReq.Messages[1].Content)
	}
	if gotReq.Model != DefaultAssistModel {
		t.Fatalf("model = %q", gotReq.Model)
	}
}

func TestAssistEmptyConversation(t *testing.T) {
	t.Parallel()

	var gotReq chatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode: %v", err)
		}
		io.WriteString(w, completionResponse("I don't have a conversation on file yet."))
	})

	if _, err := c.Assist(context.Background(), "what was my diagnosis?", nil, chat.LangEnglish); err != nil {
		t.Fatalf("Assist: %v", err)
	}
	if !strings.Contains(gotReq.Messages[0].Content, "No previous conversation available.") {
		t.Fatalf("system prompt = %q", gotReq.Messages[0].Content)
	}
}

func TestAssistRejectsBadInput(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected upstream call")
	})

	if _, err := c.Assist(context.Background(), "", nil, chat.LangEnglish); !chat.IsValidation(err) {
		t.Fatalf("empty question: err = %v", err)
	}
	if _, err := c.Assist(context.Background(), "hi", nil, "xx"); !chat.IsValidation(err) {
		t.Fatalf("unsupported language: err = %v", err)
	}
}

func TestAssistUpstreamFailure(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	if _, err := c.Assist(context.Background(), "hi", nil, chat.LangEnglish); !chat.IsService(err) {
		t.Fatalf("err = %v, want service", err)
	}
}
