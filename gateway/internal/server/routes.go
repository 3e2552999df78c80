package server

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"lan-gateway/gateway/internal/model"
)

func (l *listener) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(withClientIP)
	r.Use(requestLogger(l.logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if l.cfg.Mode == model.ModeRestricted {
		r.Group(l.registerAPI)
	}

	r.Get("/*", l.serveDocument)
	r.Head("/*", l.serveDocument)
	return r
}

// serveDocument serves bundle files directly and falls back to the
// single-page document for every other path.
func (l *listener) serveDocument(w http.ResponseWriter, r *http.Request) {
	if l.assets.serveFile(w, r) {
		return
	}

	doc, err := l.assets.index()
	if err != nil {
		l.logger.Error("read index document", "error", err)
		http.Error(w, "document unavailable", http.StatusInternalServerError)
		return
	}

	if l.cfg.Mode == model.ModeOpen {
		writeDocument(w, doc, true)
		return
	}

	ip := ClientIPFromContext(r.Context())
	if !l.isAuthorized(ip) {
		l.logger.Warn("unauthorized document request", "ip", ip, "path", r.URL.Path)
		l.record(r.Context(), ip, r.Method, r.URL.Path, model.DecisionDenied, http.StatusForbidden)
		renderForbidden(w, forbiddenPage{Name: l.cfg.Name, IP: ip})
		return
	}

	// HEAD only probes the document; a session nobody can read is not minted.
	if r.Method == http.MethodHead {
		writeDocument(w, nil, false)
		return
	}

	sess := l.sessions.mint(l.credentials())
	out, err := injectSession(doc, sessionState{SessionID: sess.ID, Name: l.cfg.Name})
	if err != nil {
		l.logger.Error("inject session", "error", err)
		http.Error(w, "document unavailable", http.StatusInternalServerError)
		return
	}
	l.record(r.Context(), ip, r.Method, r.URL.Path, model.DecisionAllowed, http.StatusOK)
	writeDocument(w, out, false)
}

func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start).Round(time.Millisecond),
				"ip", ClientIPFromContext(r.Context()),
			)
		})
	}
}
