package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

const (
	EventShutdown = "shutdown"

	maxLineSize = 4 << 20
)

// ErrClosed is returned for requests issued after, or pending during, the
// loss of the IPC connection.
var ErrClosed = errors.New("mpv: ipc connection closed")

// Error is a command that mpv answered with something other than "success".
type Error struct {
	Command string
	Code    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("mpv %s: %s", e.Command, e.Code)
}

type request struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

type message struct {
	Event     string          `json:"event,omitempty"`
	Error     string          `json:"error,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	RequestID *int64          `json:"request_id,omitempty"`
}

// Client speaks mpv's JSON IPC protocol. A reader goroutine demultiplexes
// replies by request_id; events are only used to detect shutdown.
type Client struct {
	conn   net.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan message
	closed  bool

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}
}

// Dial connects to the socket (or named pipe on Windows) given to mpv via
// --input-ipc-server.
func Dial(ctx context.Context, path string, logger *slog.Logger) (*Client, error) {
	conn, err := dialSocket(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("dial mpv ipc %s: %w", path, err)
	}
	logger.Info("mpv ipc connected", "socket", path)
	return NewClient(conn, logger), nil
}

func NewClient(conn net.Conn, logger *slog.Logger) *Client {
	c := &Client{
		conn:     conn,
		logger:   logger,
		pending:  make(map[int64]chan message),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// PropertyNames returns every property the player currently exposes.
func (c *Client) PropertyNames(ctx context.Context) ([]string, error) {
	data, err := c.Command(ctx, "get_property", "property-list")
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("decode property-list: %w", err)
	}
	return names, nil
}

func (c *Client) Flag(ctx context.Context, name string) (bool, error) {
	data, err := c.Command(ctx, "get_property", name)
	if err != nil {
		return false, err
	}
	var v bool
	if err := json.Unmarshal(data, &v); err != nil {
		return false, fmt.Errorf("decode %s as flag: %w", name, err)
	}
	return v, nil
}

// String reads a property in mpv's string representation, whatever its
// native type.
func (c *Client) String(ctx context.Context, name string) (string, error) {
	data, err := c.Command(ctx, "get_property_string", name)
	if err != nil {
		return "", err
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return "", fmt.Errorf("decode %s as string: %w", name, err)
	}
	return v, nil
}

// Command sends one IPC command and waits for its reply.
func (c *Client) Command(ctx context.Context, args ...any) (json.RawMessage, error) {
	if len(args) == 0 {
		return nil, errors.New("mpv: empty command")
	}
	name := fmt.Sprint(args[0])

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.nextID++
	id := c.nextID
	replyCh := make(chan message, 1)
	c.pending[id] = replyCh
	c.mu.Unlock()

	defer c.forget(id)

	line, err := json.Marshal(request{Command: args, RequestID: id})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	line = append(line, '\n')

	c.writeMu.Lock()
	_, err = c.conn.Write(line)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", name, err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	case msg := <-replyCh:
		if msg.Error != "success" {
			return nil, &Error{Command: name, Code: msg.Error}
		}
		return msg.Data, nil
	}
}

// Shutdown is closed when mpv announces shutdown or the connection drops.
func (c *Client) Shutdown() <-chan struct{} {
	return c.shutdown
}

func (c *Client) Close() error {
	err := c.conn.Close()
	<-c.done
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (c *Client) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer c.signalShutdown()
	defer func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
	}()

	sc := bufio.NewScanner(c.conn)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		var msg message
		if err := json.Unmarshal(sc.Bytes(), &msg); err != nil {
			c.logger.Warn("mpv ipc: undecodable line", "error", err)
			continue
		}
		if msg.Event != "" {
			c.logger.Debug("mpv event", "event", msg.Event)
			if msg.Event == EventShutdown {
				c.signalShutdown()
			}
			continue
		}
		if msg.RequestID == nil {
			continue
		}
		c.mu.Lock()
		replyCh, ok := c.pending[*msg.RequestID]
		c.mu.Unlock()
		if ok {
			replyCh <- msg
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		c.logger.Warn("mpv ipc read failed", "error", err)
	}
}

func (c *Client) signalShutdown() {
	c.shutdownOnce.Do(func() { close(c.shutdown) })
}
