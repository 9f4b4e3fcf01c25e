// Package main provides a CI-friendly smoke test for the conversation
// change feed.
//
// It validates:
//   - handshake + subprotocol selection
//   - hello_ack session establishment
//   - REST insert -> change(insert) fanout
//   - REST patch -> change(update) fanout
//   - REST delete -> change(delete) fanout with the full prior row
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"
	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/realtime"
)

const (
	defaultSubprotocol = "translator.feed.v1"
	maxReadBytes       = 1 << 20 // 1MiB
)

type smokeClient struct {
	name      string
	conn      *websocket.Conn
	sessionID string

	inbox chan realtime.Envelope
	errCh chan error
}

func main() {
	var (
		wsURL   = flag.String("url", "ws://127.0.0.1:8080/ws", "WebSocket feed URL")
		apiURL  = flag.String("api", "http://127.0.0.1:8080", "REST base URL")
		origin  = flag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		text    = flag.String("text", "I have a headache", "Message text to send")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateWSURL(*wsURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}

	root := context.Background()

	a := mustConnect(root, "A", *wsURL, *origin, *timeout)
	defer closeWS(a.conn)

	b := mustConnect(root, "B", *wsURL, *origin, *timeout)
	defer closeWS(b.conn)

	if *verbose {
		fmt.Printf("connected: A=%s B=%s origin=%q\n", a.sessionID, b.sessionID, *origin)
	}

	api := &restClient{base: strings.TrimRight(*apiURL, "/"), timeout: *timeout}

	id := mustCreateMessage(root, api, *text)

	for _, c := range []*smokeClient{a, b} {
		ev := c.mustReadChange(root, realtime.KindInsert, id, *timeout)
		if ev.Message.OriginalContent != *text {
			fatalf("insert content mismatch (%s): got=%q want=%q", c.name, ev.Message.OriginalContent, *text)
		}
	}

	translated := "Tengo dolor de cabeza"
	mustPatchMessage(root, api, id, translated)

	for _, c := range []*smokeClient{a, b} {
		ev := c.mustReadChange(root, realtime.KindUpdate, id, *timeout)
		if !ev.Message.Translated() || *ev.Message.TranslatedContent != translated {
			fatalf("update translation mismatch (%s): got=%v want=%q", c.name, ev.Message.TranslatedContent, translated)
		}
	}

	mustDeleteMessage(root, api, id)

	for _, c := range []*smokeClient{a, b} {
		ev := c.mustReadChange(root, realtime.KindDelete, id, *timeout)
		if ev.Message.OriginalContent != *text {
			fatalf("delete should carry the prior row (%s): got=%q", c.name, ev.Message.OriginalContent)
		}
	}

	fmt.Printf("OK: A=%s B=%s message_id=%s\n", a.sessionID, b.sessionID, id)
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	if strings.TrimSpace(u.Path) == "" {
		return errors.New("missing path")
	}
	return nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func mustConnect(parent context.Context, name, wsURL, origin string, stepTimeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{defaultSubprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		fatalf("connect %s: %v", name, err)
	}

	assertSubprotocol(resp, defaultSubprotocol)

	conn.SetReadLimit(maxReadBytes)

	c := &smokeClient{
		name:  name,
		conn:  conn,
		inbox: make(chan realtime.Envelope, 512),
		errCh: make(chan error, 1),
	}
	c.startReadLoop()

	ack := c.mustReadUntilType(parent, realtime.TypeHelloAck, stepTimeout)

	var p realtime.HelloAckPayload
	if err := json.Unmarshal(ack.Payload, &p); err != nil {
		fatalf("unmarshal hello_ack payload (%s): %v", name, err)
	}
	if strings.TrimSpace(p.SessionID) == "" {
		fatalf("hello_ack missing session_id (%s)", name)
	}
	c.sessionID = p.SessionID

	return c
}

func assertSubprotocol(resp *http.Response, want string) {
	if resp == nil {
		return
	}
	got := strings.TrimSpace(resp.Header.Get("Sec-WebSocket-Protocol"))
	if got == "" {
		return
	}
	if got != want {
		fatalf("subprotocol mismatch: got=%q want=%q", got, want)
	}
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)

		for {
			mt, data, err := c.conn.Read(context.Background())
			if err != nil {
				select {
				case c.errCh <- err:
				default:
				}
				return
			}

			if mt != websocket.MessageText && mt != websocket.MessageBinary {
				select {
				case c.errCh <- fmt.Errorf("unsupported message type: %v", mt):
				default:
				}
				return
			}

			var env realtime.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				select {
				case c.errCh <- fmt.Errorf("bad json: %w", err):
				default:
				}
				return
			}
			if err := env.Validate(); err != nil {
				select {
				case c.errCh <- fmt.Errorf("bad envelope: %w", err):
				default:
				}
				return
			}

			select {
			case c.inbox <- env:
			default:
				select {
				case c.errCh <- errors.New("inbox overflow: consumer too slow"):
				default:
				}
				return
			}
		}
	}()
}

func (c *smokeClient) mustReadChange(parent context.Context, kind realtime.EventKind, id string, stepTimeout time.Duration) realtime.ChangeEvent {
	env := c.mustReadUntilType(parent, realtime.TypeChange, stepTimeout)

	ev, err := realtime.DecodeChange(env)
	if err != nil {
		fatalf("decode change (%s): %v", c.name, err)
	}
	if ev.Kind != kind {
		fatalf("change kind mismatch (%s): got=%q want=%q", c.name, ev.Kind, kind)
	}
	if ev.Message.ID != id {
		fatalf("change id mismatch (%s): got=%q want=%q", c.name, ev.Message.ID, id)
	}
	return ev
}

func (c *smokeClient) mustReadUntilType(parent context.Context, wantType string, stepTimeout time.Duration) realtime.Envelope {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for %q (%s): %v", wantType, c.name, ctx.Err())
		case err := <-c.errCh:
			if err == nil {
				fatalf("connection closed while waiting for %q (%s)", wantType, c.name)
			}
			fatalf("connection error while waiting for %q (%s): %v", wantType, c.name, err)
		case env, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed while waiting for %q (%s)", wantType, c.name)
			}
			if env.Type == wantType {
				return env
			}
			if env.Type == realtime.TypeError {
				var ep realtime.ErrorPayload
				_ = json.Unmarshal(env.Payload, &ep)
				fatalf("server error (%s): code=%q msg=%q", c.name, ep.Code, ep.Message)
			}
			fatalf("unexpected envelope type (%s): got=%q want=%q", c.name, env.Type, wantType)
		}
	}
}

type restClient struct {
	base    string
	timeout time.Duration
}

func (rc *restClient) do(parent context.Context, method, path string, body any) (int, []byte) {
	ctx, cancel := context.WithTimeout(parent, rc.timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			fatalf("marshal %s %s body: %v", method, path, err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, rc.base+path, rd)
	if err != nil {
		fatalf("build %s %s: %v", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		fatalf("read %s %s response: %v", method, path, err)
	}
	return resp.StatusCode, data
}

func mustCreateMessage(parent context.Context, api *restClient, text string) string {
	status, data := api.do(parent, http.MethodPost, "/v1/messages", map[string]any{
		"sender_role":      chat.RolePatient,
		"original_content": text,
		"language":         chat.LangSpanish,
	})
	if status != http.StatusCreated {
		fatalf("create message: status=%d body=%s", status, data)
	}

	var m chat.Message
	if err := json.Unmarshal(data, &m); err != nil {
		fatalf("unmarshal created message: %v", err)
	}
	if strings.TrimSpace(m.ID) == "" {
		fatalf("created message missing id")
	}
	return m.ID
}

func mustPatchMessage(parent context.Context, api *restClient, id, translated string) {
	status, data := api.do(parent, http.MethodPatch, "/v1/messages/"+id, map[string]any{
		"translated_content": translated,
	})
	if status != http.StatusOK {
		fatalf("patch message: status=%d body=%s", status, data)
	}
}

func mustDeleteMessage(parent context.Context, api *restClient, id string) {
	status, data := api.do(parent, http.MethodDelete, "/v1/messages/"+id, nil)
	if status != http.StatusNoContent {
		fatalf("delete message: status=%d body=%s", status, data)
	}
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
