// Package chat contains the bilingual conversation domain model and the
// message persistence backends (Postgres, in-memory, HTTP client).
package chat

import (
	"encoding/json"
	"strings"
	"time"
)

// SenderRole identifies which side of the conversation authored a message.
type SenderRole string

const (
	RoleDoctor  SenderRole = "doctor"
	RolePatient SenderRole = "patient"
)

// Valid reports whether the role is one of the two known roles.
func (r SenderRole) Valid() bool {
	return r == RoleDoctor || r == RolePatient
}

// Other returns the opposite role.
func (r SenderRole) Other() SenderRole {
	if r == RoleDoctor {
		return RolePatient
	}
	return RoleDoctor
}

// Message is the canonical message row shared by the backend stores, the
// change feed, and the client session engine.
//
// Immutability contract:
//   - SenderRole, OriginalContent, and Language never change after creation.
//   - Only TranslatedContent, AudioURL, and Metadata may be amended by an
//     update event (e.g. a translation arriving after the fact).
type Message struct {
	ID                string     `json:"id"`
	CreatedAt         time.Time  `json:"created_at"`
	SenderRole        SenderRole `json:"sender_role"`
	OriginalContent   string     `json:"original_content"`
	TranslatedContent *string    `json:"translated_content"`
	AudioURL          *string    `json:"audio_url"`
	Language          Language   `json:"language"`
	Metadata          Metadata   `json:"metadata,omitempty"`
}

// Translated reports whether a translation is present and non-empty.
func (m Message) Translated() bool {
	return m.TranslatedContent != nil && strings.TrimSpace(*m.TranslatedContent) != ""
}

// HasAudio reports whether the message references an audio blob.
func (m Message) HasAudio() bool {
	return m.AudioURL != nil && *m.AudioURL != ""
}

// Metadata is an open extension record attached to a message.
//
// Known fields are typed; anything else a producer attaches survives a JSON
// round-trip through Extra. The core never interprets Extra.
type Metadata struct {
	TranscriptionConfidence *float64
	TranslationModel        string
	Error                   string

	Extra map[string]any
}

const (
	metaKeyConfidence = "transcription_confidence"
	metaKeyModel      = "translation_model"
	metaKeyError      = "error"
)

// IsZero reports whether the metadata carries nothing.
func (md Metadata) IsZero() bool {
	return md.TranscriptionConfidence == nil && md.TranslationModel == "" &&
		md.Error == "" && len(md.Extra) == 0
}

// MarshalJSON flattens typed fields and Extra into one JSON object.
// Typed fields win over colliding Extra keys.
func (md Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(md.Extra)+3)
	for k, v := range md.Extra {
		out[k] = v
	}
	if md.TranscriptionConfidence != nil {
		out[metaKeyConfidence] = *md.TranscriptionConfidence
	}
	if md.TranslationModel != "" {
		out[metaKeyModel] = md.TranslationModel
	}
	if md.Error != "" {
		out[metaKeyError] = md.Error
	}
	return json.Marshal(out)
}

// UnmarshalJSON lifts known keys into typed fields and keeps the rest in Extra.
func (md *Metadata) UnmarshalJSON(data []byte) error {
	*md = Metadata{}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	for k, v := range raw {
		switch k {
		case metaKeyConfidence:
			var f float64
			if err := json.Unmarshal(v, &f); err == nil {
				md.TranscriptionConfidence = &f
				continue
			}
		case metaKeyModel:
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				md.TranslationModel = s
				continue
			}
		case metaKeyError:
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				md.Error = s
				continue
			}
		}

		var anyv any
		if err := json.Unmarshal(v, &anyv); err != nil {
			return err
		}
		if md.Extra == nil {
			md.Extra = make(map[string]any)
		}
		md.Extra[k] = anyv
	}
	return nil
}

// Summary is the structured output of the medical summary service.
type Summary struct {
	Symptoms        []string  `json:"symptoms"`
	Medications     []string  `json:"medications"`
	FollowUpActions []string  `json:"follow_up_actions"`
	Timestamp       time.Time `json:"timestamp"`
	MessageCount    int       `json:"message_count"`
}
