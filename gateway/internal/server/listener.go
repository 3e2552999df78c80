package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"lan-gateway/gateway/internal/backend"
	"lan-gateway/gateway/internal/model"
)

type listenerState int

const (
	stateCreated listenerState = iota
	stateListening
	stateStopped
)

func (s listenerState) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateListening:
		return "listening"
	default:
		return "stopped"
	}
}

// listener is one HTTP server bound to one port. It moves
// created -> listening -> stopped and is never restarted.
type listener struct {
	cfg        model.ServerConfig
	authorized map[string]struct{}
	sessions   *sessionStore
	assets     *assets
	backend    backend.RPC
	recorder   AccessRecorder
	logger     *log.Logger

	mu         sync.Mutex
	state      listenerState
	port       int
	netLn      net.Listener
	httpServer *http.Server
}

func newListener(cfg model.ServerConfig, authorized map[string]struct{}, a *assets, rpc backend.RPC, rec AccessRecorder, logger *log.Logger) *listener {
	return &listener{
		cfg:        cfg,
		authorized: authorized,
		sessions:   newSessionStore(),
		assets:     a,
		backend:    rpc,
		recorder:   rec,
		logger:     logger.With("listener", cfg.Name, "mode", string(cfg.Mode)),
		port:       cfg.Port,
	}
}

func (l *listener) start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != stateCreated {
		return fmt.Errorf("listener %s is %s", l.cfg.Name, l.state)
	}

	netLn, err := net.Listen("tcp", fmt.Sprintf(":%d", l.cfg.Port))
	if err != nil {
		return err
	}
	if addr, ok := netLn.Addr().(*net.TCPAddr); ok {
		l.port = addr.Port
	}
	l.logger = l.logger.With("port", l.port)

	server := &http.Server{
		Handler:           l.routes(),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	l.netLn = netLn
	l.httpServer = server
	l.state = stateListening

	go func() {
		if err := server.Serve(netLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.logger.Error("serve error", "error", err)
		}
	}()
	return nil
}

// stop drains in-flight requests until ctx expires, then force-closes.
// Sessions die with the listener.
func (l *listener) stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != stateListening {
		l.state = stateStopped
		return nil
	}
	l.state = stateStopped
	defer l.sessions.clear()

	if err := l.httpServer.Shutdown(ctx); err != nil {
		_ = l.httpServer.Close()
		return fmt.Errorf("shutdown %s: %w", l.cfg.Name, err)
	}
	return nil
}

func (l *listener) boundPort() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port
}

func (l *listener) isAuthorized(ip string) bool {
	_, ok := l.authorized[model.NormalizeIP(ip)]
	return ok
}

func (l *listener) credentials() backend.Credentials {
	return backend.Credentials{Token: l.cfg.BackendToken, OrgID: l.cfg.OrgID}
}

func (l *listener) backendConfigured() bool {
	return l.backend != nil && l.credentials().Complete()
}

func (l *listener) record(ctx context.Context, ip, method, path, decision string, status int) {
	if l.recorder == nil {
		return
	}
	entry := model.NewAccessLogEntry(l.port, l.cfg.Name, ip, method, path, decision, status)
	if err := l.recorder.RecordAccess(context.WithoutCancel(ctx), entry); err != nil {
		l.logger.Warn("record access failed", "error", err)
	}
}
