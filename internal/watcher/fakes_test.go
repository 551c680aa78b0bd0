package watcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"aw-watcher-mpv/internal/model"
)

var errUnavailable = errors.New("property unavailable")

// fakeHost is a scripted player. idleFn, when set, decides each idle read
// from its 1-based call number.
type fakeHost struct {
	mu        sync.Mutex
	names     []string
	listErr   error
	values    map[string]string
	failing   map[string]bool
	idle      bool
	idleFn    func(call int) (bool, error)
	idleCalls int
	reads     map[string]int
}

func newFakeHost(values map[string]string) *fakeHost {
	h := &fakeHost{values: values, failing: map[string]bool{}, reads: map[string]int{}}
	h.names = append(h.names, "core-idle")
	for k := range values {
		h.names = append(h.names, k)
	}
	return h
}

func (h *fakeHost) PropertyNames(context.Context) ([]string, error) {
	if h.listErr != nil {
		return nil, h.listErr
	}
	return append([]string(nil), h.names...), nil
}

func (h *fakeHost) Flag(_ context.Context, name string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.idleCalls++
	if h.idleFn != nil {
		return h.idleFn(h.idleCalls)
	}
	return h.idle, nil
}

func (h *fakeHost) String(_ context.Context, name string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reads[name]++
	if h.failing[name] {
		return "", errUnavailable
	}
	v, ok := h.values[name]
	if !ok {
		return "", errUnavailable
	}
	return v, nil
}

type sentBeat struct {
	hb    model.Heartbeat
	sleep int
}

type fakeTransport struct {
	mu        sync.Mutex
	bucketErr error
	beatErr   error
	buckets   []model.Bucket
	beats     []sentBeat
	sleeps    *int
}

func (t *fakeTransport) CreateBucket(_ context.Context, b model.Bucket) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buckets = append(t.buckets, b)
	return t.bucketErr
}

func (t *fakeTransport) SendHeartbeat(_ context.Context, hb model.Heartbeat) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	if t.sleeps != nil {
		n = *t.sleeps
	}
	t.beats = append(t.beats, sentBeat{hb: hb, sleep: n})
	return t.beatErr
}

// countingSleeper never waits. It lets limit sleeps complete, then cancels.
type countingSleeper struct {
	n      int
	limit  int
	cancel context.CancelFunc
}

func (s *countingSleeper) sleep(ctx context.Context, _ time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	s.n++
	if s.n > s.limit {
		s.cancel()
		return false
	}
	return true
}

type recordingObserver struct {
	states []State
	beats  int
	errs   int
}

func (o *recordingObserver) StateChanged(s State) { o.states = append(o.states, s) }

func (o *recordingObserver) HeartbeatSent(_ time.Time, err error) {
	o.beats++
	if err != nil {
		o.errs++
	}
}
