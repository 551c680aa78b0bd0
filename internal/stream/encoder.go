package stream

import (
	"context"
	"time"

	"aw-watcher-mpv/internal/model"
)

// timestampLayout is ISO-8601 in UTC with second precision.
const timestampLayout = "2006-01-02T15:04:05Z"

// Transport delivers buckets and heartbeats to the activity service.
type Transport interface {
	CreateBucket(ctx context.Context, b model.Bucket) error
	SendHeartbeat(ctx context.Context, hb model.Heartbeat) error
	Close(ctx context.Context) error
}

type BucketFrame struct {
	ID       string `json:"id,omitempty"`
	Client   string `json:"client"`
	Hostname string `json:"hostname"`
	Type     string `json:"type"`
}

type HeartbeatFrame struct {
	BucketID  string       `json:"bucket_id,omitempty"`
	PulseTime float64      `json:"pulsetime,omitempty"`
	Timestamp string       `json:"timestamp"`
	Data      model.Record `json:"data"`
}

type Ack struct {
	Message string `json:"message,omitempty"`
}

func NewBucketFrame(b model.Bucket) BucketFrame {
	return BucketFrame{Client: b.Client, Hostname: b.Hostname, Type: b.Type}
}

func NewHeartbeatFrame(hb model.Heartbeat) HeartbeatFrame {
	at := hb.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	data := make(model.Record, len(hb.Data))
	for k, v := range hb.Data {
		data[k] = v
	}
	return HeartbeatFrame{Timestamp: at.UTC().Format(timestampLayout), Data: data}
}
