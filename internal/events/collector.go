package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	clog "github.com/charmbracelet/log"
	"github.com/timvw/oscwatch/internal/logging"
)

const defaultMaxPayloadBytes = 8 * 1024

// Collector receives events as JSON datagrams on a unix socket and hands
// every valid one to a Sink.
type Collector struct {
	sink   Sink
	path   string
	logger *clog.Logger

	MaxPayloadBytes int

	dropped atomic.Int64

	mu     sync.Mutex
	conn   *net.UnixConn
	closed bool
}

func NewCollector(sink Sink, socketPath string, logger *clog.Logger) *Collector {
	return &Collector{
		sink:            sink,
		path:            socketPath,
		logger:          logging.OrDiscard(logger),
		MaxPayloadBytes: defaultMaxPayloadBytes,
	}
}

func (c *Collector) SocketPath() string {
	return c.path
}

// Dropped returns how many datagrams were rejected as oversized, malformed
// or invalid.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

// Start binds the socket and reads until ctx is cancelled or Close is called.
func (c *Collector) Start(ctx context.Context) error {
	if c.sink == nil {
		return fmt.Errorf("sink is required")
	}
	if c.path == "" {
		return fmt.Errorf("socket path is required")
	}
	if c.MaxPayloadBytes <= 0 {
		c.MaxPayloadBytes = defaultMaxPayloadBytes
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	if err := os.Chmod(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("chmod socket dir: %w", err)
	}
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	addr, err := net.ResolveUnixAddr("unixgram", c.path)
	if err != nil {
		return fmt.Errorf("resolve unix addr: %w", err)
	}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return fmt.Errorf("listen unixgram: %w", err)
	}
	if err := os.Chmod(c.path, 0o600); err != nil {
		_ = conn.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.closed = false
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.Close()
	}()

	go c.readLoop(conn)

	return nil
}

func (c *Collector) readLoop(conn *net.UnixConn) {
	// One spare byte so a datagram of exactly MaxPayloadBytes is detectable
	// as oversized rather than silently truncated.
	buf := make([]byte, c.MaxPayloadBytes+1)
	for {
		n, _, err := conn.ReadFromUnix(buf)
		if err != nil {
			if c.isClosed() {
				return
			}
			c.logger.Debug("event socket read failed", "err", err)
			continue
		}

		if n <= 0 || n > c.MaxPayloadBytes {
			c.reject("oversized or empty datagram", "bytes", n)
			continue
		}

		var e Event
		if err := json.Unmarshal(buf[:n], &e); err != nil {
			c.reject("malformed event", "err", err)
			continue
		}
		if err := e.Validate(); err != nil {
			c.reject("invalid event", "err", err)
			continue
		}
		c.sink.Publish(e)
	}
}

func (c *Collector) reject(msg string, keyvals ...interface{}) {
	c.dropped.Add(1)
	c.logger.Debug(msg, keyvals...)
}

func (c *Collector) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close stops reading and removes the socket file.
func (c *Collector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
		_ = os.Remove(c.path)
	}
}
