package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"aw-watcher-mpv/internal/model"
)

type jsonCodec struct{}

func (jsonCodec) Name() string {
	return "json"
}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// GRPCClient relays buckets and heartbeats to a collector over unary gRPC
// calls with JSON-encoded frames.
type GRPCClient struct {
	mu sync.Mutex

	logger          *slog.Logger
	addr            string
	bucketMethod    string
	heartbeatMethod string
	callTimeout     time.Duration
	dialOpts        []grpc.DialOption
	conn            *grpc.ClientConn
}

func NewGRPCClient(addr, bucketMethod, heartbeatMethod string, callTimeout time.Duration, logger *slog.Logger, opts ...grpc.DialOption) *GRPCClient {
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}
	return &GRPCClient{
		logger:          logger,
		addr:            addr,
		bucketMethod:    bucketMethod,
		heartbeatMethod: heartbeatMethod,
		callTimeout:     callTimeout,
		dialOpts:        opts,
	}
}

// CreateBucket treats AlreadyExists as success.
func (c *GRPCClient) CreateBucket(ctx context.Context, b model.Bucket) error {
	frame := NewBucketFrame(b)
	frame.ID = b.ID
	err := c.invoke(ctx, c.bucketMethod, frame)
	if status.Code(err) == codes.AlreadyExists {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create bucket %s: %w", b.ID, err)
	}
	return nil
}

func (c *GRPCClient) SendHeartbeat(ctx context.Context, hb model.Heartbeat) error {
	frame := NewHeartbeatFrame(hb)
	frame.BucketID = hb.BucketID
	frame.PulseTime = hb.PulseTime
	if err := c.invoke(ctx, c.heartbeatMethod, frame); err != nil {
		return fmt.Errorf("heartbeat %s: %w", hb.BucketID, err)
	}
	return nil
}

func (c *GRPCClient) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *GRPCClient) invoke(ctx context.Context, method string, frame any) error {
	conn, err := c.ensureConn()
	if err != nil {
		return err
	}
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	var ack Ack
	if err := conn.Invoke(callCtx, method, frame, &ack); err != nil {
		return err
	}
	if ack.Message != "" {
		c.logger.Debug("grpc relay ack", "method", method, "message", ack.Message)
	}
	return nil
}

func (c *GRPCClient) ensureConn() (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	}, c.dialOpts...)

	conn, err := grpc.NewClient(c.addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc client %s: %w", c.addr, err)
	}
	c.conn = conn
	c.logger.Info("grpc relay configured", "addr", c.addr)
	return conn, nil
}
