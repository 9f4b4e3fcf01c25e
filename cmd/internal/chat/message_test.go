package chat

import (
	"encoding/json"
	"testing"
)

func TestMetadataRoundTripPreservesUnknownKeys(t *testing.T) {
	t.Parallel()

	in := []byte(`{"transcription_confidence":0.93,"translation_model":"llama-3.3-70b-versatile","source":"seed-demo","attempt":2}`)

	var md Metadata
	if err := json.Unmarshal(in, &md); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if md.TranscriptionConfidence == nil || *md.TranscriptionConfidence != 0.93 {
		t.Fatalf("TranscriptionConfidence=%v want=0.93", md.TranscriptionConfidence)
	}
	if md.TranslationModel != "llama-3.3-70b-versatile" {
		t.Fatalf("TranslationModel=%q", md.TranslationModel)
	}
	if md.Extra["source"] != "seed-demo" {
		t.Fatalf("Extra[source]=%v", md.Extra["source"])
	}

	out, err := json.Marshal(md)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var back map[string]any
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("Unmarshal round-trip: %v", err)
	}
	for _, key := range []string{"transcription_confidence", "translation_model", "source", "attempt"} {
		if _, ok := back[key]; !ok {
			t.Fatalf("round-trip lost key %q: %v", key, back)
		}
	}
}

func TestMetadataUnmarshalNull(t *testing.T) {
	t.Parallel()

	var md Metadata
	if err := json.Unmarshal([]byte(`null`), &md); err != nil {
		t.Fatalf("Unmarshal null: %v", err)
	}
	if !md.IsZero() {
		t.Fatalf("IsZero=false for %+v", md)
	}
}

func TestSenderRole(t *testing.T) {
	t.Parallel()

	cases := []struct {
		role  SenderRole
		valid bool
		other SenderRole
	}{
		{role: RoleDoctor, valid: true, other: RolePatient},
		{role: RolePatient, valid: true, other: RoleDoctor},
		{role: SenderRole("nurse"), valid: false, other: RoleDoctor},
	}
	for _, tc := range cases {
		if got := tc.role.Valid(); got != tc.valid {
			t.Fatalf("%q.Valid()=%v want=%v", tc.role, got, tc.valid)
		}
		if got := tc.role.Other(); got != tc.other {
			t.Fatalf("%q.Other()=%v want=%v", tc.role, got, tc.other)
		}
	}
}

func TestLanguage(t *testing.T) {
	t.Parallel()

	if !LangSpanish.Supported() {
		t.Fatal("es should be supported")
	}
	if Language("xx").Supported() {
		t.Fatal("xx should not be supported")
	}
	if got := LangHindi.Name(); got != "Hindi" {
		t.Fatalf("Name(hi)=%q", got)
	}
	if got := Language("xx").Name(); got != "xx" {
		t.Fatalf("Name(xx)=%q want raw code", got)
	}
}
