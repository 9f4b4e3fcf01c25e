package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"
	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/session"
)

type transcriptionResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Segments []struct {
		AvgLogprob float64 `json:"avg_logprob"`
	} `json:"segments"`
}

// Transcribe sends a recording to the Whisper endpoint. The language hint is
// only forwarded for English; for other languages the model's own detection
// is more reliable than a hard constraint. Implements session.Transcriber.
func (c *Client) Transcribe(ctx context.Context, audio []byte, contentType string, hint chat.Language) (session.Transcription, error) {
	const op = "ai.transcribe"

	if len(audio) == 0 {
		return session.Transcription{}, chat.Opf(op, chat.ErrValidation, fmt.Errorf("empty audio payload"))
	}
	if len(audio) > session.MaxAudioBytes {
		return session.Transcription{}, chat.Opf(op, chat.ErrValidation,
			fmt.Errorf("audio exceeds %d bytes", session.MaxAudioBytes))
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "recording"+chat.AudioExt(contentType))
	if err != nil {
		return session.Transcription{}, err
	}
	if _, err := part.Write(audio); err != nil {
		return session.Transcription{}, err
	}
	if err := form.WriteField("model", c.cfg.TranscribeModel); err != nil {
		return session.Transcription{}, err
	}
	if err := form.WriteField("response_format", "verbose_json"); err != nil {
		return session.Transcription{}, err
	}
	if hint == chat.LangEnglish {
		if err := form.WriteField("language", string(hint)); err != nil {
			return session.Transcription{}, err
		}
	}
	if err := form.Close(); err != nil {
		return session.Transcription{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/audio/transcriptions", &body)
	if err != nil {
		return session.Transcription{}, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.Request("transcribe", "error")
		return session.Transcription{}, chat.Opf(op, chat.ErrService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.Request("transcribe", "error")
		return session.Transcription{}, chat.Opf(op, chat.ErrService, upstreamError(resp))
	}

	var out transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.metrics.Request("transcribe", "error")
		return session.Transcription{}, chat.Opf(op, chat.ErrService, err)
	}

	text := strings.TrimSpace(out.Text)
	if text == "" {
		c.metrics.Request("transcribe", "error")
		return session.Transcription{}, chat.Opf(op, chat.ErrService, fmt.Errorf("empty transcript"))
	}

	c.metrics.Request("transcribe", "ok")
	return session.Transcription{Text: text, Confidence: confidenceFrom(out)}, nil
}

// confidenceFrom derives a 0..1 confidence from Whisper's per-segment
// average logprobs, when present.
func confidenceFrom(out transcriptionResponse) *float64 {
	if len(out.Segments) == 0 {
		return nil
	}
	var sum float64
	for _, seg := range out.Segments {
		sum += seg.AvgLogprob
	}
	avg := sum / float64(len(out.Segments))

	// avg_logprob is typically in [-1, 0]; clamp into a displayable ratio.
	conf := 1 + avg
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return &conf
}
