package model

import "time"

// BucketTypeCurrentlyPlaying is the ActivityWatch bucket type for media
// watchers.
const BucketTypeCurrentlyPlaying = "currently-playing"

// Record maps a player property name to its value at one heartbeat tick.
type Record map[string]string

// Bucket describes the stream heartbeats accumulate in.
type Bucket struct {
	ID       string
	Type     string
	Client   string
	Hostname string
}

// Heartbeat is a timestamped snapshot; the server merges heartbeats that land
// within PulseTime of each other into one event.
type Heartbeat struct {
	BucketID  string
	Timestamp time.Time
	PulseTime float64
	Data      Record
}
