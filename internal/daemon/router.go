package daemon

import (
	"encoding/json"
	"io/fs"
	"log/slog"
	"net"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/adcondev/relay-daemon/internal/assets"
)

// routes builds the HTTP surface: health, WebSocket relay, admin API and the
// embedded test client.
func (p *Program) routes() http.Handler {
	logger := p.logger.With(slog.String("component", "http"))

	r := mux.NewRouter()
	r.Use(recovery(logger))
	r.Use(requestLogging(logger))

	// ── PUBLIC ROUTES ────────────────────────────────────────
	r.HandleFunc("/health", p.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ws", p.app.Server.HandleWebSocket).Methods(http.MethodGet)

	// ── ADMIN ROUTES (only when a token is configured) ───────
	if p.env.AdminToken != "" {
		admin := r.PathPrefix("/admin").Subrouter()
		admin.Use(requireAdmin(p.env.AdminToken, logger))
		admin.HandleFunc("/listener/start", p.handleListenerStart).Methods(http.MethodPost)
		admin.HandleFunc("/listener/stop", p.handleListenerStop).Methods(http.MethodPost)
		admin.HandleFunc("/credentials/clear", p.handleCredentialsClear).Methods(http.MethodPost)
		admin.HandleFunc("/logs/console/{state:on|off}", p.handleConsoleLogs).Methods(http.MethodPost)
		admin.HandleFunc("/logs/verbose/{state:on|off}", p.handleVerbose).Methods(http.MethodPost)
		admin.HandleFunc("/logs/clear", p.handleLogsClear).Methods(http.MethodPost)
	}

	// ── TEST CLIENT ──────────────────────────────────────────
	webFS, err := fs.Sub(assets.WebFiles, "web")
	if err != nil {
		logger.Error("error loading embedded web files", slog.String("error", err.Error()))
	} else {
		r.PathPrefix("/").Handler(http.FileServer(http.FS(webFS))).Methods(http.MethodGet)
	}

	return r
}

func (p *Program) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	writeJSON(w, http.StatusOK, p.Health(r.Context()))
}

func (p *Program) handleListenerStart(w http.ResponseWriter, _ *http.Request) {
	if err := p.StartAccepting(); err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AdminResponse{OK: true, Message: "accepting connections"})
}

func (p *Program) handleListenerStop(w http.ResponseWriter, _ *http.Request) {
	if err := p.StopAccepting(); err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AdminResponse{OK: true, Message: "stopped accepting connections"})
}

func (p *Program) handleCredentialsClear(w http.ResponseWriter, r *http.Request) {
	if err := p.ClearCredentials(r.Context()); err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AdminResponse{OK: true, Message: "credentials cleared"})
}

func (p *Program) handleConsoleLogs(w http.ResponseWriter, r *http.Request) {
	on := mux.Vars(r)["state"] == "on"
	p.SetConsoleLogs(on)
	msg := "console logs hidden"
	if on {
		msg = "console logs shown"
	}
	writeJSON(w, http.StatusOK, AdminResponse{OK: true, Message: msg})
}

func (p *Program) handleVerbose(w http.ResponseWriter, r *http.Request) {
	on := mux.Vars(r)["state"] == "on"
	p.SetVerbose(on)
	msg := "verbose logging off"
	if on {
		msg = "verbose logging on"
	}
	writeJSON(w, http.StatusOK, AdminResponse{OK: true, Message: msg})
}

func (p *Program) handleLogsClear(w http.ResponseWriter, _ *http.Request) {
	if err := p.ClearLogs(); err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AdminResponse{OK: true, Message: "log file cleared"})
}

func writeAdminError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, AdminResponse{OK: false, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func listenHTTP(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}
