package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"aw-watcher-mpv/internal/model"
)

// HTTPClient talks to the ActivityWatch REST API. It never retries: a failed
// call is reported once and the caller decides what to do.
type HTTPClient struct {
	logger  *slog.Logger
	baseURL string
	http    *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		logger:  logger,
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// CreateBucket is idempotent: 304 means the bucket already exists.
func (c *HTTPClient) CreateBucket(ctx context.Context, b model.Bucket) error {
	endpoint := fmt.Sprintf("%s/buckets/%s", c.baseURL, url.PathEscape(b.ID))
	code, status, err := c.post(ctx, endpoint, NewBucketFrame(b))
	if err != nil {
		return fmt.Errorf("create bucket %s: %w", b.ID, err)
	}
	if code != http.StatusOK && code != http.StatusNotModified {
		return &StatusError{Op: "create bucket " + b.ID, StatusCode: code, Status: status}
	}
	return nil
}

func (c *HTTPClient) SendHeartbeat(ctx context.Context, hb model.Heartbeat) error {
	q := url.Values{}
	q.Set("pulsetime", strconv.FormatFloat(hb.PulseTime, 'f', -1, 64))
	endpoint := fmt.Sprintf("%s/buckets/%s/heartbeat?%s", c.baseURL, url.PathEscape(hb.BucketID), q.Encode())
	code, status, err := c.post(ctx, endpoint, NewHeartbeatFrame(hb))
	if err != nil {
		return fmt.Errorf("heartbeat %s: %w", hb.BucketID, err)
	}
	if code != http.StatusOK {
		return &StatusError{Op: "heartbeat " + hb.BucketID, StatusCode: code, Status: status}
	}
	return nil
}

func (c *HTTPClient) Close(context.Context) error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) post(ctx context.Context, endpoint string, body any) (int, string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, "", fmt.Errorf("encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	c.logger.Debug("activity service response", "url", endpoint, "status", resp.StatusCode)
	return resp.StatusCode, resp.Status, nil
}
