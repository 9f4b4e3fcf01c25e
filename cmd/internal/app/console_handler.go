package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler renders one logfmt-style line per record, colorized for a
// development terminal. Production deployments run the JSON handler, so this
// one trades machine parsing for scanability of the request and feed logs.
type consoleHandler struct {
	out       io.Writer
	mu        *sync.Mutex
	level     slog.Leveler
	addSource bool
	color     bool

	attrs []slog.Attr
	scope string
}

func newConsoleHandler(out io.Writer, opts *slog.HandlerOptions, color bool) slog.Handler {
	h := &consoleHandler{out: out, mu: &sync.Mutex{}, color: color}
	if opts != nil {
		h.level = opts.Level
		h.addSource = opts.AddSource
	}
	return h
}

func (h *consoleHandler) Enabled(_ context.Context, l slog.Level) bool {
	min := slog.LevelInfo
	if h.level != nil {
		min = h.level.Level()
	}
	return l >= min
}

// WithAttrs scopes the new attrs under the group path at the time they are
// attached, so a later WithGroup does not retroactively re-key them.
func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	cp := *h
	cp.attrs = h.attrs[:len(h.attrs):len(h.attrs)]
	for _, a := range attrs {
		a.Key = scopedKey(h.scope, a.Key)
		cp.attrs = append(cp.attrs, a)
	}
	return &cp
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	name = strings.TrimSpace(name)
	if name == "" {
		return h
	}
	cp := *h
	cp.scope = scopedKey(h.scope, name)
	return &cp
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	buf := make([]byte, 0, 256)
	buf = appendField(buf, "ts", h.paint(ansiDim, ts.Format("15:04:05.000")))
	buf = appendField(buf, "lvl", h.levelTag(r.Level))
	buf = appendField(buf, "msg", h.paint(ansiBright, r.Message))
	if h.addSource && r.PC != 0 {
		if src := recordSource(r.PC); src != "" {
			buf = appendField(buf, "src", h.paint(ansiDim, src))
		}
	}

	for _, a := range h.attrs {
		buf = h.appendAttr(buf, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		buf = h.appendAttr(buf, h.scope, a)
		return true
	})
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf)
	return err
}

func (h *consoleHandler) appendAttr(buf []byte, scope string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}
	key := strings.TrimSpace(a.Key)
	if key == "" {
		return buf
	}
	key = scopedKey(scope, key)

	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			buf = h.appendAttr(buf, key, ga)
		}
		return buf
	}

	key, val := h.renderAttr(key, a.Value)
	return appendField(buf, key, val)
}

// renderAttr styles the well-known request log fields and falls back to
// plain logfmt for everything else. Matching is on the leaf key, so a
// grouped field like req.status picks up the same styling.
func (h *consoleHandler) renderAttr(key string, v slog.Value) (string, string) {
	switch leafKey(key) {
	case "method":
		m := v.String()
		return key, h.paint(methodColor(m), m)
	case "path":
		return key, h.paint(ansiCyan, v.String())
	case "status":
		if n, ok := numericValue(v); ok {
			return key, h.paint(statusColor(int(n)), strconv.FormatInt(n, 10))
		}
	case "status_class":
		class := v.String()
		return renameLeaf(key, "class"), h.paint(classColor(class), class)
	case "duration_ms":
		if n, ok := numericValue(v); ok {
			return renameLeaf(key, "duration"), h.paint(durationColor(n), strconv.FormatInt(n, 10)+"ms")
		}
	case "result":
		res := v.String()
		return key, h.paint(resultColor(res), res)
	case "err", "error":
		return key, h.paint(ansiRed, quoteValue(plainValue(v)))
	}
	return key, quoteValue(plainValue(v))
}

func (h *consoleHandler) paint(code, s string) string {
	if !h.color || code == "" {
		return s
	}
	return code + s + ansiReset
}

func (h *consoleHandler) levelTag(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return h.paint(ansiRed, "[ERROR]")
	case l >= slog.LevelWarn:
		return h.paint(ansiYellow, "[WARN]")
	case l < slog.LevelInfo:
		return h.paint(ansiMagenta, "[DEBUG]")
	default:
		return h.paint(ansiBlue, "[INFO]")
	}
}

func appendField(buf []byte, key, val string) []byte {
	if len(buf) > 0 {
		buf = append(buf, ' ')
	}
	buf = append(buf, key...)
	buf = append(buf, '=')
	return append(buf, val...)
}

func scopedKey(scope, key string) string {
	if scope == "" {
		return key
	}
	return scope + "." + key
}

func leafKey(key string) string {
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		return key[i+1:]
	}
	return key
}

func renameLeaf(key, leaf string) string {
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		return key[:i+1] + leaf
	}
	return leaf
}

func recordSource(pc uintptr) string {
	frames := runtime.CallersFrames([]uintptr{pc})
	frame, _ := frames.Next()
	if frame.File == "" {
		return ""
	}
	return filepath.Base(frame.File) + ":" + strconv.Itoa(frame.Line)
}

func methodColor(method string) string {
	switch method {
	case http.MethodGet:
		return ansiGreen
	case http.MethodPost:
		return ansiBlue
	case http.MethodPatch, http.MethodPut:
		return ansiYellow
	case http.MethodDelete:
		return ansiRed
	default:
		return ansiCyan
	}
}

func statusColor(code int) string {
	switch {
	case code >= 500:
		return ansiRed
	case code >= 400:
		return ansiYellow
	case code >= 300:
		return ansiCyan
	default:
		return ansiGreen
	}
}

func classColor(class string) string {
	switch class {
	case "5xx":
		return ansiRed
	case "4xx":
		return ansiYellow
	case "3xx":
		return ansiCyan
	default:
		return ansiGreen
	}
}

// resultColor follows requestLogMeta's vocabulary.
func resultColor(result string) string {
	switch result {
	case "success":
		return ansiGreen
	case "redirect":
		return ansiCyan
	case "client_error":
		return ansiYellow
	case "server_error":
		return ansiRed
	default:
		return ""
	}
}

func durationColor(ms int64) string {
	switch {
	case ms >= 1000:
		return ansiRed
	case ms >= 250:
		return ansiYellow
	default:
		return ansiDim
	}
}

func numericValue(v slog.Value) (int64, bool) {
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		return int64(v.Uint64()), true
	case slog.KindFloat64:
		return int64(v.Float64()), true
	}
	return 0, false
}

func plainValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	default:
		return fmt.Sprint(v.Any())
	}
}

func quoteValue(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\r\n\"=") {
		return strconv.Quote(s)
	}
	return s
}
