package watcher

import "time"

type State int

const (
	StateInitializing State = iota
	StateRunning
	StateStopped
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Observer is notified of loop progress. Calls happen on the loop goroutine.
type Observer interface {
	StateChanged(s State)
	HeartbeatSent(at time.Time, err error)
}

type nopObserver struct{}

func (nopObserver) StateChanged(State) {}
func (nopObserver) HeartbeatSent(time.Time, error) {}
