package app

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

// routes assembles the full HTTP surface: operational endpoints, the
// change-feed WebSocket, and the REST API with media serving.
func (a *App) routes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if a.cfg.ReadinessRequireDB && !a.dbEnabled {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}
		if a.dbEnabled && a.dbPool != nil {
			if err := PingDB(req.Context(), a.dbPool, 2*time.Second); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				a.log.Info("readyz.db.not_ready", "err", err)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	}).Methods(http.MethodGet)

	r.Handle("/metrics", metricsHandler(a.registry)).Methods(http.MethodGet)

	r.HandleFunc("/ws", a.ws.HandleWS)

	a.rest.Routes(r)
	return r
}

// runtimeBaseURL renders the HTTP bind address as a dialable base URL,
// substituting loopback for wildcard binds.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return "http://" + host + ":" + port
}

// wsBaseURL maps an http(s) base URL onto its ws(s) counterpart.
func wsBaseURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "ws://" + base
	}
}
