package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lan-gateway/gateway/internal/backend"
	"lan-gateway/gateway/internal/logging"
	"lan-gateway/gateway/internal/model"
)

func newTestManager(t *testing.T, rpc backend.RPC) *Manager {
	t.Helper()
	m := NewManager(Options{
		AssetsDir: writeAssets(t),
		Backend:   rpc,
		Logger:    logging.Discard(),
		InterfaceAddrs: func() ([]net.Addr, error) {
			return []net.Addr{&net.IPNet{IP: net.ParseIP("192.168.1.20"), Mask: net.CIDRMask(24, 32)}}, nil
		},
	})
	t.Cleanup(func() { m.Stop(context.Background()) })
	return m
}

type response struct {
	status int
	body   string
}

func request(t *testing.T, method string, port int, path, ip, body string) response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, fmt.Sprintf("http://127.0.0.1:%d%s", port, path), reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}
	// A pooled connection would outlive a stopped listener on the same port.
	client := &http.Client{
		Timeout:   5 * time.Second,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{status: resp.StatusCode, body: string(data)}
}

func TestStartWithoutAssetsFails(t *testing.T) {
	m := NewManager(Options{AssetsDir: t.TempDir() + "/missing"})

	res, err := m.Start([]model.ServerConfig{restrictedConfig(freePort(t), "Barra")}, nil)
	require.ErrorIs(t, err, ErrAssetsMissing)
	assert.False(t, res.Success)
	assert.Empty(t, res.Started)
	assert.False(t, m.Status().Running)
}

func TestTwoListenersAllowListAndBackend(t *testing.T) {
	port := freePort(t)
	ips := []string{"192.168.1.50"}

	withoutBackend := newTestManager(t, nil)
	res, err := withoutBackend.Start([]model.ServerConfig{restrictedConfig(port, "Barra")}, ips)
	require.NoError(t, err)
	require.True(t, res.Success, res.Errors)

	assert.Equal(t, http.StatusServiceUnavailable, request(t, http.MethodGet, port, "/api/products", "192.168.1.50", "").status)
	denied := request(t, http.MethodGet, port, "/", "10.0.0.9", "")
	assert.Equal(t, http.StatusForbidden, denied.status)
	assert.Contains(t, denied.body, "10.0.0.9")
	withoutBackend.Stop(context.Background())

	fb := &fakeBackend{products: []backend.Product{{"id": "p1", "name": "Tomate"}}}
	withBackend := newTestManager(t, fb)
	res, err = withBackend.Start([]model.ServerConfig{restrictedConfig(port, "Barra")}, ips)
	require.NoError(t, err)
	require.True(t, res.Success, res.Errors)

	ok := request(t, http.MethodGet, port, "/api/products", "192.168.1.50", "")
	assert.Equal(t, http.StatusOK, ok.status)
	assert.Contains(t, ok.body, "Tomate")
}

func TestStartReportsStartedServers(t *testing.T) {
	m := newTestManager(t, nil)
	p1, p2 := freePort(t), freePort(t)

	res, err := m.Start([]model.ServerConfig{
		restrictedConfig(p1, "Barra"),
		{Port: p2, Mode: model.ModeOpen, Name: "Sala"},
	}, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.Errors)
	assert.ElementsMatch(t, []model.ServerInfo{
		{Port: p1, Mode: model.ModeRestricted, Name: "Barra", URL: fmt.Sprintf("http://192.168.1.20:%d", p1)},
		{Port: p2, Mode: model.ModeOpen, Name: "Sala", URL: fmt.Sprintf("http://192.168.1.20:%d", p2)},
	}, res.Started)

	st := m.Status()
	assert.True(t, st.Running)
	assert.Len(t, st.Servers, 2)
}

func TestPortConflictWithinProcess(t *testing.T) {
	m := newTestManager(t, nil)
	port := freePort(t)

	_, err := m.Start([]model.ServerConfig{restrictedConfig(port, "Barra")}, []string{"192.168.1.50"})
	require.NoError(t, err)
	before := m.Status()

	res, err := m.Start([]model.ServerConfig{{Port: port, Mode: model.ModeOpen, Name: "Otra"}}, nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, port, res.Errors[0].Port)
	assert.Equal(t, ErrPortInUse.Error(), res.Errors[0].Error)

	assert.Equal(t, before, m.Status())
	// The original restricted listener is still the one answering.
	assert.Equal(t, http.StatusForbidden, request(t, http.MethodGet, port, "/", "10.0.0.9", "").status)
}

func TestBindFailureIsPartial(t *testing.T) {
	m := newTestManager(t, nil)

	busy, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer busy.Close()
	busyPort := busy.Addr().(*net.TCPAddr).Port
	okPort := freePort(t)

	res, err := m.Start([]model.ServerConfig{
		{Port: busyPort, Mode: model.ModeOpen, Name: "Ocupado"},
		{Port: okPort, Mode: model.ModeOpen, Name: "Libre"},
	}, nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "Ocupado", res.Errors[0].Name)
	require.Len(t, res.Started, 1)
	assert.Equal(t, okPort, res.Started[0].Port)
	assert.Equal(t, http.StatusOK, request(t, http.MethodGet, okPort, "/", "10.0.0.9", "").status)
}

func TestInvalidConfigRejected(t *testing.T) {
	m := newTestManager(t, nil)

	res, err := m.Start([]model.ServerConfig{
		{Port: freePort(t), Mode: "public", Name: "Barra"},
		{Port: 70000, Mode: model.ModeOpen, Name: "Barra"},
		{Port: freePort(t), Mode: model.ModeOpen},
	}, nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Len(t, res.Errors, 3)
	assert.Empty(t, res.Started)
}

func TestSessionsAreScopedToListener(t *testing.T) {
	fb := &fakeBackend{}
	m := newTestManager(t, fb)
	pa, pb := freePort(t), freePort(t)
	ips := []string{"192.168.1.50"}

	_, err := m.Start([]model.ServerConfig{restrictedConfig(pa, "A"), restrictedConfig(pb, "B")}, ips)
	require.NoError(t, err)

	doc := request(t, http.MethodGet, pa, "/", "192.168.1.50", "")
	require.Equal(t, http.StatusOK, doc.status)
	sid := extractSessionID(t, doc.body)
	body := `{"session_id":"` + sid + `","product_id":"p1","quantity":1,"motivo":"roto"}`

	assert.Equal(t, http.StatusUnauthorized, request(t, http.MethodPost, pb, "/api/merma", "192.168.1.50", body).status)
	assert.Equal(t, http.StatusOK, request(t, http.MethodPost, pa, "/api/merma", "192.168.1.50", body).status)
	assert.Len(t, fb.calls(), 1)
}

func TestStopClearsRegistryAndSessions(t *testing.T) {
	fb := &fakeBackend{}
	m := newTestManager(t, fb)
	port := freePort(t)

	_, err := m.Start([]model.ServerConfig{restrictedConfig(port, "Barra")}, []string{"192.168.1.50"})
	require.NoError(t, err)
	doc := request(t, http.MethodGet, port, "/", "192.168.1.50", "")
	sid := extractSessionID(t, doc.body)

	m.Stop(context.Background())
	m.Stop(context.Background())

	st := m.Status()
	assert.False(t, st.Running)
	assert.Empty(t, st.Servers)

	_, err = net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), time.Second)
	assert.Error(t, err)

	// A fresh listener on the same port does not know the old session.
	_, err = m.Start([]model.ServerConfig{restrictedConfig(port, "Barra")}, []string{"192.168.1.50"})
	require.NoError(t, err)
	body := `{"session_id":"` + sid + `","product_id":"p1","quantity":1,"motivo":"roto"}`
	assert.Equal(t, http.StatusUnauthorized, request(t, http.MethodPost, port, "/api/merma", "192.168.1.50", body).status)
}

func TestStatusFallsBackToLocalhost(t *testing.T) {
	m := NewManager(Options{
		AssetsDir:      writeAssets(t),
		InterfaceAddrs: func() ([]net.Addr, error) { return nil, nil },
	})
	t.Cleanup(func() { m.Stop(context.Background()) })
	port := freePort(t)

	res, err := m.Start([]model.ServerConfig{{Port: port, Mode: model.ModeOpen, Name: "Sala"}}, nil)
	require.NoError(t, err)
	require.Len(t, res.Started, 1)
	assert.Equal(t, fmt.Sprintf("http://localhost:%d", port), res.Started[0].URL)
}
