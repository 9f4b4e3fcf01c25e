package realtime

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"
)

func TestEnvelopeValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		env     Envelope
		wantErr string
	}{
		{name: "hello_ack", env: Envelope{V: Version, Type: TypeHelloAck}},
		{name: "change", env: Envelope{V: Version, Type: TypeChange}},
		{name: "error", env: Envelope{V: Version, Type: TypeError}},
		{name: "missing v", env: Envelope{Type: TypeChange}, wantErr: "missing field: v"},
		{name: "bad version", env: Envelope{V: "v2", Type: TypeChange}, wantErr: "unsupported protocol version"},
		{name: "missing type", env: Envelope{V: Version}, wantErr: "missing field: type"},
		{name: "unknown type", env: Envelope{V: Version, Type: "message_send"}, wantErr: "unknown type"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.env.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate err=%v want contains %q", err, tc.wantErr)
			}
		})
	}
}

func TestChangeEnvelopeRoundTrip(t *testing.T) {
	t.Parallel()

	translated := "my head hurts"
	in := ChangeEvent{
		Kind: KindUpdate,
		Message: chat.Message{
			ID:                "m-42",
			CreatedAt:         time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC),
			SenderRole:        chat.RolePatient,
			OriginalContent:   "me duele la cabeza",
			TranslatedContent: &translated,
			Language:          chat.LangSpanish,
			Metadata:          chat.Metadata{TranslationModel: "llama-3.3-70b-versatile"},
		},
	}

	env, err := NewChangeEnvelope(in, time.Now().UTC())
	if err != nil {
		t.Fatalf("NewChangeEnvelope: %v", err)
	}
	if err := env.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if env.ID == "" {
		t.Fatal("envelope without id")
	}

	// Simulate the wire.
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back Envelope
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	out, err := DecodeChange(back)
	if err != nil {
		t.Fatalf("DecodeChange: %v", err)
	}
	if out.Kind != KindUpdate {
		t.Fatalf("kind=%q want=%q", out.Kind, KindUpdate)
	}
	if out.Message.ID != in.Message.ID || out.Message.OriginalContent != in.Message.OriginalContent {
		t.Fatalf("message=%+v", out.Message)
	}
	if out.Message.TranslatedContent == nil || *out.Message.TranslatedContent != translated {
		t.Fatalf("translated=%v", out.Message.TranslatedContent)
	}
	if out.Message.Metadata.TranslationModel != "llama-3.3-70b-versatile" {
		t.Fatalf("metadata=%+v", out.Message.Metadata)
	}
}

func TestNewChangeEnvelopeRejectsBadKind(t *testing.T) {
	t.Parallel()

	_, err := NewChangeEnvelope(ChangeEvent{Kind: EventKind("upsert")}, time.Now())
	if err == nil {
		t.Fatal("expected error for invalid kind")
	}
}

func TestDecodeChangeRejectsMissingID(t *testing.T) {
	t.Parallel()

	payload, _ := json.Marshal(ChangeEvent{Kind: KindInsert})
	env := Envelope{V: Version, Type: TypeChange, Payload: payload}
	if _, err := DecodeChange(env); err == nil {
		t.Fatal("expected error for change event without message id")
	}
}
