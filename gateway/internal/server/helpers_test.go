package server

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"lan-gateway/gateway/internal/backend"
	"lan-gateway/gateway/internal/logging"
	"lan-gateway/gateway/internal/model"
)

const testIndex = `<!DOCTYPE html><html><head><title>Inventario</title></head><body><div id="root"></div><script src="/assets/app.js"></script></body></html>`

var sessionIDPattern = regexp.MustCompile(`"sessionId":"([0-9a-f-]{36})"`)

func writeAssets(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, indexFile), []byte(testIndex), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte("console.log('app')"), 0o644))
	return dir
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func extractSessionID(t *testing.T, body string) string {
	t.Helper()
	m := sessionIDPattern.FindStringSubmatch(body)
	require.Len(t, m, 2, "no session in document: %s", body)
	return m[1]
}

type mermaCall struct {
	Creds backend.Credentials
	Merma backend.Merma
}

type fakeBackend struct {
	mu       sync.Mutex
	products []backend.Product
	err      error
	listed   []backend.Credentials
	mermas   []mermaCall
}

func (f *fakeBackend) ListProducts(ctx context.Context, creds backend.Credentials) ([]backend.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed = append(f.listed, creds)
	if f.err != nil {
		return nil, f.err
	}
	return f.products, nil
}

func (f *fakeBackend) RegisterMerma(ctx context.Context, creds backend.Credentials, m backend.Merma) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.mermas = append(f.mermas, mermaCall{Creds: creds, Merma: m})
	return nil
}

func (f *fakeBackend) calls() []mermaCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mermaCall(nil), f.mermas...)
}

type memoryRecorder struct {
	mu      sync.Mutex
	entries []model.AccessLogEntry
}

func (r *memoryRecorder) RecordAccess(ctx context.Context, entry model.AccessLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memoryRecorder) all() []model.AccessLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.AccessLogEntry(nil), r.entries...)
}

// testListener builds a listener without binding a socket so its routes can
// be driven through httptest.
func testListener(t *testing.T, cfg model.ServerConfig, ips []string, rpc backend.RPC, rec AccessRecorder) *listener {
	t.Helper()
	a, err := newAssets(writeAssets(t))
	require.NoError(t, err)
	return newListener(cfg, allowSet(ips), a, rpc, rec, logging.Discard())
}

func restrictedConfig(port int, name string) model.ServerConfig {
	return model.ServerConfig{
		Port:         port,
		Mode:         model.ModeRestricted,
		Name:         name,
		BackendToken: "secret-token",
		OrgID:        "org-1",
	}
}
