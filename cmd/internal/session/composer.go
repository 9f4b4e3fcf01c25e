package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"
)

const (
	// MaxAudioBytes caps an uploaded voice recording (25 MB).
	MaxAudioBytes = 25 << 20

	// SummaryMessageLimit is how many trailing messages feed the summary.
	SummaryMessageLimit = 20
)

// Translation is a translator's answer for one text.
type Translation struct {
	Text  string
	Model string
}

// Translator renders text between two supported languages.
type Translator interface {
	Translate(ctx context.Context, text string, source, target chat.Language) (Translation, error)
}

// Transcription is a transcriber's answer for one recording.
type Transcription struct {
	Text       string
	Confidence *float64
}

// Transcriber turns a voice recording into text. The hint names the
// language the speaker is expected to use.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, contentType string, hint chat.Language) (Transcription, error)
}

// Summarizer produces a structured medical summary of a conversation slice
// in the requested output language.
type Summarizer interface {
	Summarize(ctx context.Context, msgs []chat.Message, output chat.Language) (chat.Summary, error)
}

// Uploader stores an audio blob and returns its serving URL.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// Composer runs the authoring pipelines on top of a Store: text sends
// (translate then persist), audio sends (upload, transcribe, translate,
// persist), and on-demand summaries.
//
// Each pipeline kind has its own supersession line: starting a new send
// cancels the previous in-flight send, and a superseded result is discarded
// without touching the store.
type Composer struct {
	log   *slog.Logger
	store *Store

	translator  Translator
	transcriber Transcriber
	summarizer  Summarizer
	uploader    Uploader

	patientLanguage chat.Language

	sendLine    line
	summaryLine line
}

// NewComposer wires the pipelines. patientLanguage is the session-wide
// language of the patient side; the doctor side is always English.
func NewComposer(log *slog.Logger, store *Store, tr Translator, tc Transcriber, sm Summarizer, up Uploader, patientLanguage chat.Language) *Composer {
	return &Composer{
		log:             log,
		store:           store,
		translator:      tr,
		transcriber:     tc,
		summarizer:      sm,
		uploader:        up,
		patientLanguage: patientLanguage,
	}
}

// SetPatientLanguage switches the patient side's language for subsequent
// sends. Already-persisted messages keep their recorded language.
func (c *Composer) SetPatientLanguage(l chat.Language) error {
	if !l.Supported() {
		return chat.Opf("session.language", chat.ErrValidation, errUnsupportedLanguage(l))
	}
	c.patientLanguage = l
	return nil
}

// SendResult reports how a send landed.
type SendResult struct {
	Message chat.Message

	// Degraded is set when translation failed and the original content was
	// persisted in its place. The message is still delivered.
	Degraded bool

	// Superseded is set when a newer send started before this one finished;
	// nothing was applied.
	Superseded bool
}

// SendText translates the text for the other party and adds the message.
//
// A translation failure does not block delivery: the message is persisted
// with translated content equal to the original and the failure recorded in
// metadata, so the conversation keeps flowing while the service is down.
func (c *Composer) SendText(ctx context.Context, role chat.SenderRole, text string) (SendResult, error) {
	const op = "session.send"

	if !role.Valid() {
		return SendResult{}, chat.Opf(op, chat.ErrValidation, errInvalidRole(role))
	}

	// Reject bad input before the translator sees it; a blank send must not
	// cost a service call or cancel an in-flight one.
	text = strings.TrimSpace(text)
	if text == "" {
		return SendResult{}, chat.Opf(op, chat.ErrValidation, errEmptyContent)
	}
	if utf8.RuneCountInString(text) > MaxMessageChars {
		return SendResult{}, chat.Opf(op, chat.ErrValidation, errContentTooLong)
	}

	reqCtx, tok := c.sendLine.Begin(ctx)
	defer c.sendLine.End(tok)

	source, target := c.route(role)
	res := c.translate(reqCtx, text, source, target)
	if reqCtx.Err() != nil || !c.sendLine.Active(tok) {
		return SendResult{Superseded: true}, nil
	}

	// Persistence must not be torn down by a later send superseding this
	// one; the decision to apply has already been made.
	msg, err := c.store.Add(context.WithoutCancel(reqCtx), AddInput{
		SenderRole:        role,
		OriginalContent:   text,
		TranslatedContent: &res.text,
		Language:          source,
		Metadata:          res.metadata,
	})
	if err != nil {
		return SendResult{Message: msg, Degraded: res.degraded}, err
	}
	return SendResult{Message: msg, Degraded: res.degraded}, nil
}

// SendAudio uploads the recording, transcribes it, then runs the transcript
// through the text pipeline with the audio URL attached.
//
// Unlike translation, upload and transcription failures abort the send:
// without a transcript there is no message to deliver.
func (c *Composer) SendAudio(ctx context.Context, role chat.SenderRole, audio []byte, contentType string) (SendResult, error) {
	const op = "session.send_audio"

	if !role.Valid() {
		return SendResult{}, chat.Opf(op, chat.ErrValidation, errInvalidRole(role))
	}
	if len(audio) == 0 {
		return SendResult{}, chat.Opf(op, chat.ErrValidation, errEmptyAudio)
	}
	if len(audio) > MaxAudioBytes {
		return SendResult{}, chat.Opf(op, chat.ErrValidation, errAudioTooLarge)
	}

	reqCtx, tok := c.sendLine.Begin(ctx)
	defer c.sendLine.End(tok)

	source, target := c.route(role)

	name := fmt.Sprintf("%s-%d%s", role, time.Now().UTC().UnixMilli(), chat.AudioExt(contentType))
	url, err := c.uploader.Upload(reqCtx, name, audio, contentType)
	if err != nil {
		if reqCtx.Err() != nil {
			return SendResult{Superseded: true}, nil
		}
		return SendResult{}, chat.Opf(op, chat.ErrService, err)
	}

	tr, err := c.transcriber.Transcribe(reqCtx, audio, contentType, source)
	if err != nil {
		if reqCtx.Err() != nil {
			return SendResult{Superseded: true}, nil
		}
		return SendResult{}, chat.Opf(op, chat.ErrService, err)
	}

	res := c.translate(reqCtx, tr.Text, source, target)
	if reqCtx.Err() != nil || !c.sendLine.Active(tok) {
		return SendResult{Superseded: true}, nil
	}

	md := res.metadata
	md.TranscriptionConfidence = tr.Confidence

	msg, err := c.store.Add(context.WithoutCancel(reqCtx), AddInput{
		SenderRole:        role,
		OriginalContent:   tr.Text,
		TranslatedContent: &res.text,
		AudioURL:          &url,
		Language:          source,
		Metadata:          md,
	})
	if err != nil {
		return SendResult{Message: msg, Degraded: res.degraded}, err
	}
	return SendResult{Message: msg, Degraded: res.degraded}, nil
}

// Summarize builds a medical summary of the last SummaryMessageLimit
// messages in the viewer's language. Summary failures are fail-closed: no
// partial or guessed output is ever returned.
func (c *Composer) Summarize(ctx context.Context, viewer chat.SenderRole) (chat.Summary, error) {
	const op = "session.summary"

	snapshot := c.store.Snapshot()
	if len(snapshot) == 0 {
		return chat.Summary{}, chat.Opf(op, chat.ErrValidation, errNoMessages)
	}
	if len(snapshot) > SummaryMessageLimit {
		snapshot = snapshot[len(snapshot)-SummaryMessageLimit:]
	}

	output := chat.DefaultDoctorLanguage
	if viewer == chat.RolePatient {
		output = c.patientLanguage
	}

	reqCtx, tok := c.summaryLine.Begin(ctx)
	defer c.summaryLine.End(tok)

	sum, err := c.summarizer.Summarize(reqCtx, snapshot, output)
	if err != nil {
		if reqCtx.Err() != nil {
			return chat.Summary{}, reqCtx.Err()
		}
		return chat.Summary{}, chat.Opf(op, chat.ErrService, err)
	}
	if !c.summaryLine.Active(tok) {
		return chat.Summary{}, context.Canceled
	}
	return sum, nil
}

// route maps a sender role to (source, target) languages: doctors author in
// English toward the patient's language, patients the other way around.
func (c *Composer) route(role chat.SenderRole) (source, target chat.Language) {
	if role == chat.RoleDoctor {
		return chat.DefaultDoctorLanguage, c.patientLanguage
	}
	return c.patientLanguage, chat.DefaultDoctorLanguage
}

type translateResult struct {
	text     string
	metadata chat.Metadata
	degraded bool
}

func (c *Composer) translate(ctx context.Context, text string, source, target chat.Language) translateResult {
	tr, err := c.translator.Translate(ctx, text, source, target)
	if err != nil {
		if ctx.Err() == nil {
			c.log.Warn("session.translate.degraded", "source", source, "target", target, "err", err)
		}
		return translateResult{
			text:     text,
			metadata: chat.Metadata{Error: "translation unavailable"},
			degraded: true,
		}
	}
	return translateResult{
		text:     tr.Text,
		metadata: chat.Metadata{TranslationModel: tr.Model},
	}
}
