package agent

import (
	"sync/atomic"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"aw-watcher-mpv/internal/config"
	"aw-watcher-mpv/internal/watcher"
)

// HealthStatus tracks the heartbeat loop and mirrors it into a gRPC health
// server. It implements watcher.Observer.
type HealthStatus struct {
	state           atomic.Int32
	lastHeartbeatAt atomic.Int64
	heartbeatsSent  atomic.Int64
	heartbeatErrors atomic.Int64

	server *health.Server
}

func NewHealthStatus() *HealthStatus {
	h := &HealthStatus{server: health.NewServer()}
	h.state.Store(int32(watcher.StateInitializing))
	h.setServing(false)
	return h
}

func (h *HealthStatus) StateChanged(s watcher.State) {
	h.state.Store(int32(s))
	h.setServing(s == watcher.StateRunning)
}

func (h *HealthStatus) HeartbeatSent(at time.Time, err error) {
	if err != nil {
		h.heartbeatErrors.Add(1)
		return
	}
	h.heartbeatsSent.Add(1)
	h.lastHeartbeatAt.Store(at.UnixNano())
}

func (h *HealthStatus) State() watcher.State {
	return watcher.State(h.state.Load())
}

func (h *HealthStatus) Snapshot() map[string]any {
	out := map[string]any{
		"state":            h.State().String(),
		"heartbeats_sent":  h.heartbeatsSent.Load(),
		"heartbeat_errors": h.heartbeatErrors.Load(),
	}
	if v := h.lastHeartbeatAt.Load(); v > 0 {
		out["last_heartbeat_at"] = time.Unix(0, v).UTC()
	}
	return out
}

func (h *HealthStatus) setServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	h.server.SetServingStatus("", st)
	h.server.SetServingStatus(config.AgentName, st)
}
