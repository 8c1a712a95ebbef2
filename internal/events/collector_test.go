package events

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCollector_StartBindsSocket(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore(5 * time.Minute)
	socketPath := shortSocketPath(t)
	c := NewCollector(store, socketPath, nil)

	if err := c.Start(ctx); err != nil {
		t.Fatalf("start collector: %v", err)
	}

	if _, err := os.Stat(socketPath); err != nil {
		t.Fatalf("expected socket at %s: %v", socketPath, err)
	}
}

func TestCollector_RequiresSinkAndPath(t *testing.T) {
	if err := NewCollector(nil, "/tmp/x.sock", nil).Start(context.Background()); err == nil {
		t.Fatalf("expected error without sink")
	}
	if err := NewCollector(NewStore(0), "", nil).Start(context.Background()); err == nil {
		t.Fatalf("expected error without socket path")
	}
}

func TestCollector_AcceptsValidEvent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore(5 * time.Minute)
	socketPath := shortSocketPath(t)
	c := NewCollector(store, socketPath, nil)
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start collector: %v", err)
	}

	payload := []byte(`{"session":"run-1","kind":"command_finished","state":"idle","ts":"2026-02-27T12:00:00Z","commands":1,"exit_code":3}`)
	if err := sendDatagram(socketPath, payload); err != nil {
		t.Fatalf("send datagram: %v", err)
	}

	waitFor(t, 1*time.Second, func() bool {
		return len(store.Snapshot(time.Now().UTC())) == 1
	})
	if got := store.SnapshotFailed(time.Now().UTC()); len(got) != 1 || got[0].ExitCode != 3 {
		t.Fatalf("expected failed session with exit 3, got %+v", got)
	}
}

func TestCollector_IgnoresMalformedEvent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore(5 * time.Minute)
	socketPath := shortSocketPath(t)
	c := NewCollector(store, socketPath, nil)
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start collector: %v", err)
	}

	if err := sendDatagram(socketPath, []byte(`not-json`)); err != nil {
		t.Fatalf("send datagram: %v", err)
	}
	if err := sendDatagram(socketPath, []byte(`{"session":"x","kind":"bogus","state":"idle","ts":"2026-02-27T12:00:00Z"}`)); err != nil {
		t.Fatalf("send datagram: %v", err)
	}

	waitFor(t, 1*time.Second, func() bool { return c.Dropped() == 2 })
	if got := len(store.Snapshot(time.Now().UTC())); got != 0 {
		t.Fatalf("expected 0 events for malformed payloads, got %d", got)
	}
}

func TestCollector_RejectsOversizedPayload(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore(5 * time.Minute)
	socketPath := shortSocketPath(t)
	c := NewCollector(store, socketPath, nil)
	c.MaxPayloadBytes = 64
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start collector: %v", err)
	}

	big := make([]byte, 128)
	for i := range big {
		big[i] = 'a'
	}
	if err := sendDatagram(socketPath, big); err != nil {
		t.Fatalf("send datagram: %v", err)
	}

	waitFor(t, 1*time.Second, func() bool { return c.Dropped() == 1 })
	if got := len(store.Snapshot(time.Now().UTC())); got != 0 {
		t.Fatalf("expected 0 events for oversized payload, got %d", got)
	}
}

func TestCollector_CloseRemovesSocket(t *testing.T) {
	store := NewStore(0)
	socketPath := shortSocketPath(t)
	c := NewCollector(store, socketPath, nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start collector: %v", err)
	}
	c.Close()
	c.Close()
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Fatalf("expected socket removed after close, stat err = %v", err)
	}
}

func TestPublisher_DeliversToCollector(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore(5 * time.Minute)
	socketPath := shortSocketPath(t)
	c := NewCollector(store, socketPath, nil)
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start collector: %v", err)
	}

	p := NewPublisher(socketPath, nil)
	defer p.Close()
	p.Publish(Event{Session: "run-7", Kind: KindCwdReported, State: StatePrompt, TS: time.Now().UTC(), Cwd: "/srv"})

	waitFor(t, 1*time.Second, func() bool {
		got := store.Snapshot(time.Now().UTC())
		return len(got) == 1 && got[0].Cwd == "/srv"
	})
}

func TestPublisher_NoCollectorIsNotAnError(t *testing.T) {
	p := NewPublisher(shortSocketPath(t), nil)
	p.Publish(Event{Session: "s", Kind: KindPromptStart, State: StatePrompt, TS: time.Now().UTC()})
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestPublisher_StalledCollectorDoesNotBlock(t *testing.T) {
	socketPath := shortSocketPath(t)
	addr, err := net.ResolveUnixAddr("unixgram", socketPath)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// Bound but never read from, so the socket buffer fills up.
	ln, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	p := NewPublisher(socketPath, nil)
	const n = 5000
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < n; i++ {
			p.Publish(Event{Session: "s", Kind: KindCwdReported, State: StatePrompt, TS: time.Now().UTC(), Cwd: fmt.Sprintf("/dir/%d", i)})
		}
		_ = p.Close()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish or Close blocked on a collector that does not read")
	}
	if p.Dropped() == 0 {
		t.Errorf("got 0 dropped events, want > 0")
	}
}

func TestPublisher_PublishAfterCloseIsIgnored(t *testing.T) {
	p := NewPublisher(shortSocketPath(t), nil)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	p.Publish(Event{Session: "s", Kind: KindPromptStart, State: StatePrompt, TS: time.Now().UTC()})
	if err := p.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func sendDatagram(socketPath string, payload []byte) error {
	addr, err := net.ResolveUnixAddr("unixgram", socketPath)
	if err != nil {
		return err
	}
	conn, err := net.DialUnix("unixgram", nil, addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Write(payload)
	return err
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func shortSocketPath(t *testing.T) string {
	t.Helper()
	base := filepath.Join(os.TempDir(), "oscw-events")
	if err := os.MkdirAll(base, 0o700); err != nil {
		t.Fatalf("mkdir temp base: %v", err)
	}
	p := filepath.Join(base, fmt.Sprintf("%d-%d.sock", time.Now().UnixNano(), os.Getpid()))
	t.Cleanup(func() {
		_ = os.Remove(p)
	})
	return p
}
