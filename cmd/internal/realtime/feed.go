package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
)

const (
	feedInitialBackoff = 500 * time.Millisecond
	feedMaxBackoff     = 30 * time.Second
)

// Feed is the client side of the change feed: it dials the gateway,
// decodes change envelopes, and hands them to a consumer.
//
// Delivery contract:
//   - Events() yields decoded change events in arrival order.
//   - Resets() fires once per successful (re)connect, after hello_ack and
//     before any event from that connection. The protocol carries no
//     sequence numbers, so a reset is the consumer's cue to reload state
//     wholesale rather than attempt gap-fill.
type Feed struct {
	log *slog.Logger
	url string

	dialTimeout time.Duration
	backoffMin  time.Duration
	backoffMax  time.Duration

	events chan ChangeEvent
	resets chan struct{}
}

// FeedOption configures Feed behavior.
type FeedOption func(*Feed)

// WithBackoff overrides reconnect backoff bounds.
func WithBackoff(min, max time.Duration) FeedOption {
	return func(f *Feed) {
		if min > 0 {
			f.backoffMin = min
		}
		if max >= min && max > 0 {
			f.backoffMax = max
		}
	}
}

// NewFeed constructs a Feed for the given ws:// or wss:// URL.
func NewFeed(log *slog.Logger, wsURL string, opts ...FeedOption) (*Feed, error) {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	wsURL = strings.TrimSpace(wsURL)
	if wsURL == "" {
		return nil, errors.New("realtime: empty feed url")
	}

	f := &Feed{
		log:         log,
		url:         wsURL,
		dialTimeout: 10 * time.Second,
		backoffMin:  feedInitialBackoff,
		backoffMax:  feedMaxBackoff,
		events:      make(chan ChangeEvent, 64),
		resets:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// Events returns the decoded change-event stream.
func (f *Feed) Events() <-chan ChangeEvent { return f.events }

// Resets returns the reconnect signal channel (capacity 1, coalescing).
func (f *Feed) Resets() <-chan struct{} { return f.resets }

// Run dials and reads until ctx is done, reconnecting with exponential
// backoff. It returns ctx.Err() on shutdown.
func (f *Feed) Run(ctx context.Context) error {
	backoff := f.backoffMin

	for {
		err := f.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.log.Info("feed.disconnect", "err", err, "retry_in", backoff.String())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > f.backoffMax {
			backoff = f.backoffMax
		}
	}
}

// runOnce performs one full connection lifecycle. A successful handshake
// resets nothing here; backoff handling belongs to Run.
func (f *Feed) runOnce(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, f.dialTimeout)
	conn, _, err := websocket.Dial(dialCtx, f.url, &websocket.DialOptions{
		Subprotocols: []string{wsSubprotocolV1},
		HTTPClient:   &http.Client{Timeout: 0},
	})
	cancel()
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	conn.SetReadLimit(-1) // change envelopes carry full rows; size is the server's concern

	env, err := f.readEnvelope(ctx, conn)
	if err != nil {
		return fmt.Errorf("handshake read: %w", err)
	}
	if err := env.Validate(); err != nil {
		return fmt.Errorf("handshake envelope: %w", err)
	}
	if env.Type != TypeHelloAck {
		return fmt.Errorf("handshake: unexpected type %q", env.Type)
	}

	var hello HelloAckPayload
	if err := json.Unmarshal(env.Payload, &hello); err != nil {
		return fmt.Errorf("handshake payload: %w", err)
	}
	f.log.Info("feed.connected", "session_id", hello.SessionID)

	f.signalReset()

	for {
		env, err := f.readEnvelope(ctx, conn)
		if err != nil {
			return err
		}
		if err := env.Validate(); err != nil {
			f.log.Warn("feed.envelope.invalid", "err", err)
			continue
		}

		switch env.Type {
		case TypeChange:
			ev, err := DecodeChange(env)
			if err != nil {
				f.log.Warn("feed.change.invalid", "err", err, "envelope_id", env.ID)
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case f.events <- ev:
			}
		case TypeError:
			var p ErrorPayload
			_ = json.Unmarshal(env.Payload, &p)
			f.log.Warn("feed.server_error", "code", p.Code, "message", p.Message)
		default:
			// hello_ack mid-stream or future types: ignore.
		}
	}
}

// signalReset delivers a coalesced reset notification.
func (f *Feed) signalReset() {
	select {
	case f.resets <- struct{}{}:
	default:
	}
}

func (f *Feed) readEnvelope(ctx context.Context, conn *websocket.Conn) (Envelope, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return Envelope{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return Envelope{}, fmt.Errorf("unsupported message type: %v", mt)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
