package events

import (
	"encoding/json"
	"errors"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/timvw/oscwatch/internal/logging"
)

const (
	defaultQueueSize    = 64
	defaultWriteTimeout = 20 * time.Millisecond
	closeGrace          = 250 * time.Millisecond
)

// Publisher sends events as JSON datagrams to a Collector socket.
//
// Publish never blocks: events are queued and written by one goroutine.
// When the queue is full, nobody listens, or the collector does not read
// in time, the event is dropped and counted.
type Publisher struct {
	path   string
	logger *clog.Logger

	WriteTimeout time.Duration

	queue   chan []byte
	stop    chan struct{}
	done    chan struct{}
	closed  atomic.Bool
	once    sync.Once
	dropped atomic.Int64

	// conn is owned by the sender goroutine.
	conn *net.UnixConn
}

func NewPublisher(socketPath string, logger *clog.Logger) *Publisher {
	p := &Publisher{
		path:         socketPath,
		logger:       logging.OrDiscard(logger),
		WriteTimeout: defaultWriteTimeout,
		queue:        make(chan []byte, defaultQueueSize),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	go p.run()
	return p
}

// Dropped returns how many events were not delivered.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

// Publish implements Sink.
func (p *Publisher) Publish(e Event) {
	if p.closed.Load() {
		return
	}
	payload, err := json.Marshal(e)
	if err != nil {
		p.logger.Debug("encode event", "err", err)
		return
	}
	if len(payload) > defaultMaxPayloadBytes {
		p.logger.Debug("event too large, dropped", "bytes", len(payload))
		p.dropped.Add(1)
		return
	}
	select {
	case p.queue <- payload:
	default:
		p.dropped.Add(1)
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	defer p.closeConn()
	for {
		select {
		case payload := <-p.queue:
			p.send(payload)
		case <-p.stop:
			// Flush what is queued, but never for longer than closeGrace.
			deadline := time.Now().Add(closeGrace)
			for time.Now().Before(deadline) {
				select {
				case payload := <-p.queue:
					p.send(payload)
				default:
					return
				}
			}
			return
		}
	}
}

func (p *Publisher) send(payload []byte) {
	if p.conn == nil {
		addr, err := net.ResolveUnixAddr("unixgram", p.path)
		if err != nil {
			p.logger.Debug("resolve event socket", "err", err)
			p.dropped.Add(1)
			return
		}
		conn, err := net.DialUnix("unixgram", nil, addr)
		if err != nil {
			p.logger.Debug("no event collector listening", "socket", p.path)
			p.dropped.Add(1)
			return
		}
		p.conn = conn
	}
	_ = p.conn.SetWriteDeadline(time.Now().Add(p.WriteTimeout))
	if _, err := p.conn.Write(payload); err != nil {
		p.dropped.Add(1)
		if errors.Is(err, os.ErrDeadlineExceeded) {
			p.logger.Debug("event collector not reading, event dropped")
			return
		}
		p.logger.Debug("publish event", "err", err)
		p.closeConn()
	}
}

func (p *Publisher) closeConn() {
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close flushes queued events for a short grace period and releases the
// socket. Later calls do nothing.
func (p *Publisher) Close() error {
	p.once.Do(func() {
		p.closed.Store(true)
		close(p.stop)
	})
	<-p.done
	return nil
}
