// Package server runs the LAN listeners that deliver the bundled web app.
//
// A Manager owns every listener in the process. Restricted listeners only
// answer callers whose address is on the allow-list and keep the backend
// credentials server-side, handing each page visit an opaque session id
// instead. Open listeners serve the document to anyone.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"lan-gateway/gateway/internal/backend"
	"lan-gateway/gateway/internal/logging"
	"lan-gateway/gateway/internal/model"
)

const DefaultShutdownTimeout = 5 * time.Second

// AccessRecorder persists authorization decisions. Failures never affect the
// response.
type AccessRecorder interface {
	RecordAccess(ctx context.Context, entry model.AccessLogEntry) error
}

type Options struct {
	AssetsDir       string
	Backend         backend.RPC
	Recorder        AccessRecorder
	Logger          *log.Logger
	ShutdownTimeout time.Duration

	// InterfaceAddrs overrides net.InterfaceAddrs when building display URLs.
	InterfaceAddrs func() ([]net.Addr, error)
}

type StartError struct {
	Port  int    `json:"port"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

type StartResult struct {
	Success bool               `json:"success"`
	Started []model.ServerInfo `json:"started"`
	Errors  []StartError       `json:"errors"`
}

type Status struct {
	Running bool               `json:"running"`
	Servers []model.ServerInfo `json:"servers"`
}

type Manager struct {
	opts   Options
	logger *log.Logger

	mu      sync.Mutex
	servers map[int]*listener
}

func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	return &Manager{
		opts:    opts,
		logger:  opts.Logger.With("component", "server"),
		servers: make(map[int]*listener),
	}
}

// Start launches one listener per config. Per-config failures are reported in
// the result and leave the other listeners running; only a missing asset
// bundle aborts the whole call.
func (m *Manager) Start(configs []model.ServerConfig, authorizedIPs []string) (StartResult, error) {
	result := StartResult{Started: []model.ServerInfo{}, Errors: []StartError{}}

	a, err := newAssets(m.opts.AssetsDir)
	if err != nil {
		m.logger.Error("cannot start listeners", "assets", m.opts.AssetsDir, "error", err)
		return result, fmt.Errorf("%w: %s", err, m.opts.AssetsDir)
	}

	allowed := allowSet(authorizedIPs)
	host := lanHost(m.opts.InterfaceAddrs)

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, cfg := range configs {
		if err := validate.Struct(cfg); err != nil {
			result.Errors = append(result.Errors, StartError{Port: cfg.Port, Name: cfg.Name, Error: validationError(err).Error()})
			continue
		}
		if _, exists := m.servers[cfg.Port]; exists {
			m.logger.Warn("port already registered", "port", cfg.Port, "name", cfg.Name)
			result.Errors = append(result.Errors, StartError{Port: cfg.Port, Name: cfg.Name, Error: ErrPortInUse.Error()})
			continue
		}

		l := newListener(cfg, allowed, a, m.opts.Backend, m.opts.Recorder, m.logger)
		if err := l.start(); err != nil {
			m.logger.Error("listen failed", "port", cfg.Port, "name", cfg.Name, "error", err)
			result.Errors = append(result.Errors, StartError{Port: cfg.Port, Name: cfg.Name, Error: err.Error()})
			continue
		}

		port := l.boundPort()
		m.servers[port] = l
		info := model.ServerInfo{Port: port, Mode: cfg.Mode, Name: cfg.Name, URL: serverURL(host, port)}
		result.Started = append(result.Started, info)
		m.logger.Info("listener started", "port", port, "name", cfg.Name, "mode", string(cfg.Mode), "url", info.URL)
	}

	result.Success = len(result.Errors) == 0
	return result, nil
}

// Stop shuts every listener down concurrently and forgets them. It always
// succeeds from the caller's point of view.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.servers) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.ShutdownTimeout)
	defer cancel()

	var g errgroup.Group
	for port, l := range m.servers {
		g.Go(func() error {
			if err := l.stop(ctx); err != nil {
				m.logger.Warn("listener shutdown", "port", port, "error", err)
				return err
			}
			m.logger.Info("listener stopped", "port", port, "name", l.cfg.Name)
			return nil
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		m.logger.Warn("stop finished with errors", "error", err)
	}

	clear(m.servers)
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	host := lanHost(m.opts.InterfaceAddrs)
	servers := make([]model.ServerInfo, 0, len(m.servers))
	for port, l := range m.servers {
		servers = append(servers, model.ServerInfo{Port: port, Mode: l.cfg.Mode, Name: l.cfg.Name, URL: serverURL(host, port)})
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i].Port < servers[j].Port })
	return Status{Running: len(servers) > 0, Servers: servers}
}

func allowSet(ips []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ips))
	for _, ip := range ips {
		key := model.NormalizeIP(ip)
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	return set
}
