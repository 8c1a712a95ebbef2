package middleware

import (
	"bytes"
	"errors"
	"testing"
)

// recorder captures what reaches the end of a chain.
type recorder struct {
	chunks [][]byte
	closes int
}

func (r *recorder) FeedFromSession(data []byte) {
	r.chunks = append(r.chunks, append([]byte(nil), data...))
}

func (r *recorder) Close() { r.closes++ }

// upper is a link that overrides FeedFromSession only.
type upper struct {
	Base
}

func (u *upper) FeedFromSession(data []byte) {
	u.Base.FeedFromSession(bytes.ToUpper(data))
}

func TestBase_ForwardsByDefault(t *testing.T) {
	rec := &recorder{}
	b := &Base{Next: rec}

	b.FeedFromSession([]byte("abc"))
	b.Close()

	if len(rec.chunks) != 1 || string(rec.chunks[0]) != "abc" {
		t.Fatalf("got chunks %q, want [abc]", rec.chunks)
	}
	if rec.closes != 1 {
		t.Fatalf("got %d closes, want 1", rec.closes)
	}
}

func TestBase_NilNextIsNoop(t *testing.T) {
	b := &Base{}
	b.FeedFromSession([]byte("x"))
	b.Close()
}

func TestChain_OrdersLinks(t *testing.T) {
	rec := &recorder{}
	head, err := Chain(&Base{}, &upper{}, rec)
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}

	head.FeedFromSession([]byte("hello"))
	head.Close()

	if len(rec.chunks) != 1 || string(rec.chunks[0]) != "HELLO" {
		t.Fatalf("got %q, want [HELLO]", rec.chunks)
	}
	if rec.closes != 1 {
		t.Fatalf("close not propagated: got %d", rec.closes)
	}
}

func TestChain_RejectsUnlinkableMiddle(t *testing.T) {
	_, err := Chain(&recorder{}, &recorder{})
	if !errors.Is(err, ErrNotLinkable) {
		t.Fatalf("got %v, want ErrNotLinkable", err)
	}
	if _, err := Chain(); err == nil {
		t.Fatal("expected error for empty chain")
	}
}

type closingBuffer struct {
	bytes.Buffer
	closed bool
}

func (c *closingBuffer) Close() error {
	c.closed = true
	return nil
}

type failingWriter struct{ calls int }

func (f *failingWriter) Write(p []byte) (int, error) {
	f.calls++
	return 0, errors.New("broken pipe")
}

func TestWriterSink(t *testing.T) {
	buf := &closingBuffer{}
	s := NewWriterSink(buf, true, nil)
	s.FeedFromSession([]byte("one "))
	s.FeedFromSession(nil)
	s.FeedFromSession([]byte("two"))
	s.Close()
	s.Close()
	s.FeedFromSession([]byte(" three"))

	if got := buf.String(); got != "one two" {
		t.Errorf("got %q, want %q", got, "one two")
	}
	if !buf.closed {
		t.Error("owned writer was not closed")
	}
}

func TestWriterSink_NotOwnedStaysOpen(t *testing.T) {
	buf := &closingBuffer{}
	s := NewWriterSink(buf, false, nil)
	s.Close()
	if buf.closed {
		t.Error("writer not owned by the sink must not be closed")
	}
}

func TestWriterSink_StopsAfterWriteError(t *testing.T) {
	fw := &failingWriter{}
	s := NewWriterSink(fw, false, nil)
	s.FeedFromSession([]byte("a"))
	s.FeedFromSession([]byte("b"))
	if fw.calls != 1 {
		t.Errorf("got %d write attempts, want 1", fw.calls)
	}
}
