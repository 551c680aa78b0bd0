package agent

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"aw-watcher-mpv/internal/config"
	"aw-watcher-mpv/internal/logging"
	"aw-watcher-mpv/internal/model"
	"aw-watcher-mpv/internal/watcher"
)

type fakePlayer struct {
	listErr  error
	shutdown chan struct{}
	once     sync.Once
	closed   atomic.Bool
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{shutdown: make(chan struct{})}
}

func (p *fakePlayer) PropertyNames(context.Context) ([]string, error) {
	if p.listErr != nil {
		return nil, p.listErr
	}
	return []string{"core-idle", "media-title"}, nil
}

func (p *fakePlayer) Flag(context.Context, string) (bool, error) { return true, nil }

func (p *fakePlayer) String(context.Context, string) (string, error) { return "Sintel", nil }

func (p *fakePlayer) Shutdown() <-chan struct{} { return p.shutdown }

func (p *fakePlayer) Close() error {
	p.closed.Store(true)
	return nil
}

func (p *fakePlayer) quit() { p.once.Do(func() { close(p.shutdown) }) }

type fakeTransport struct {
	buckets atomic.Int32
	closed  atomic.Bool
}

func (t *fakeTransport) CreateBucket(context.Context, model.Bucket) error {
	t.buckets.Add(1)
	return nil
}

func (t *fakeTransport) SendHeartbeat(context.Context, model.Heartbeat) error { return nil }

func (t *fakeTransport) Close(context.Context) error {
	t.closed.Store(true)
	return nil
}

func testConfig() config.Config {
	return config.Config{
		PollInterval:      5 * time.Second,
		PulseTime:         11 * time.Second,
		URL:               "http://127.0.0.1:5600/api/0",
		LogLevel:          "error",
		TrackedProperties: []string{"media-title"},
		IdleProperty:      "core-idle",
		Transport:         config.TransportHTTP,
		RequestTimeout:    time.Second,
	}
}

func startAgent(t *testing.T, ctx context.Context, player *fakePlayer, tr *fakeTransport) (*Agent, <-chan error) {
	t.Helper()
	a := NewWithTransport(ctx, testConfig(), player, tr, logging.Discard())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()
	return a, errCh
}

func TestAgentStopsOnPlayerShutdown(t *testing.T) {
	player := newFakePlayer()
	tr := &fakeTransport{}
	a, errCh := startAgent(t, context.Background(), player, tr)

	require.Eventually(t, func() bool { return a.Health().State() == watcher.StateRunning }, 2*time.Second, 10*time.Millisecond)
	player.quit()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("agent did not stop")
	}
	assert.Equal(t, watcher.StateStopped, a.Health().State())
	assert.True(t, tr.closed.Load())
	assert.True(t, player.closed.Load())
	assert.EqualValues(t, 1, tr.buckets.Load())
}

func TestAgentWaitsForShutdownAfterAbort(t *testing.T) {
	player := newFakePlayer()
	player.listErr = errors.New("not ready")
	a, errCh := startAgent(t, context.Background(), player, &fakeTransport{})

	require.Eventually(t, func() bool { return a.Health().State() == watcher.StateAborted }, 2*time.Second, 10*time.Millisecond)

	select {
	case <-errCh:
		t.Fatal("agent returned before player shutdown")
	case <-time.After(100 * time.Millisecond):
	}

	player.quit()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("agent did not stop")
	}
}

func TestAgentStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	player := newFakePlayer()
	_, errCh := startAgent(t, ctx, player, &fakeTransport{})

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("agent did not stop")
	}
	assert.True(t, player.closed.Load())
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestAgentKeepsRunningWhenProbeCannotListen(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	cfg := testConfig()
	cfg.ProbeListenAddr = taken.Addr().String()
	logs := &syncBuffer{}
	player := newFakePlayer()
	a := NewWithTransport(context.Background(), cfg, player, &fakeTransport{}, logging.NewWithWriter(logs, slog.LevelError, false))
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		return a.Health().State() == watcher.StateRunning &&
			strings.Contains(logs.String(), "probe endpoint unavailable")
	}, 2*time.Second, 10*time.Millisecond)
	select {
	case <-errCh:
		t.Fatal("agent returned before player shutdown")
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, watcher.StateRunning, a.Health().State())

	player.quit()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("agent did not stop")
	}
	assert.Equal(t, watcher.StateStopped, a.Health().State())
}

func TestProbeReportsLoopState(t *testing.T) {
	a := NewWithTransport(context.Background(), testConfig(), newFakePlayer(), &fakeTransport{}, logging.Discard())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- a.serveProbe(ctx, ln) }()

	conn, err := grpc.NewClient(ln.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		callCtx, done := context.WithTimeout(context.Background(), time.Second)
		defer done()
		resp, err := client.Check(callCtx, &healthpb.HealthCheckRequest{Service: config.AgentName})
		require.NoError(t, err)
		return resp.GetStatus()
	}

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check())
	a.Health().StateChanged(watcher.StateRunning)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check())
	a.Health().StateChanged(watcher.StateAborted)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check())

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("probe did not stop")
	}
}

func TestHealthSnapshot(t *testing.T) {
	h := NewHealthStatus()
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	h.HeartbeatSent(at, nil)
	h.HeartbeatSent(at, errors.New("boom"))

	snap := h.Snapshot()
	assert.Equal(t, "initializing", snap["state"])
	assert.EqualValues(t, 1, snap["heartbeats_sent"])
	assert.EqualValues(t, 1, snap["heartbeat_errors"])
	assert.Equal(t, at, snap["last_heartbeat_at"])
}
