package middleware

import (
	"io"

	clog "github.com/charmbracelet/log"
	"github.com/timvw/oscwatch/internal/logging"
)

// WriterSink is the terminal link of a chain. It writes every chunk it
// receives to an io.Writer, usually the host terminal.
//
// The first write error is logged and the sink stops writing; the session
// keeps running so that events are still produced.
type WriterSink struct {
	w      io.Writer
	owned  bool
	logger *clog.Logger

	failed bool
	closed bool
}

// NewWriterSink returns a sink writing to w. When owned is true and w is an
// io.Closer, Close closes it.
func NewWriterSink(w io.Writer, owned bool, logger *clog.Logger) *WriterSink {
	return &WriterSink{w: w, owned: owned, logger: logging.OrDiscard(logger)}
}

// FeedFromSession writes data to the underlying writer.
func (s *WriterSink) FeedFromSession(data []byte) {
	if s.closed || s.failed || len(data) == 0 {
		return
	}
	if _, err := s.w.Write(data); err != nil {
		s.failed = true
		s.logger.Error("renderer write failed, dropping further output", "err", err)
	}
}

// Close closes an owned writer. Later calls do nothing.
func (s *WriterSink) Close() {
	if s.closed {
		return
	}
	s.closed = true
	if !s.owned {
		return
	}
	if c, ok := s.w.(io.Closer); ok {
		if err := c.Close(); err != nil {
			s.logger.Warn("closing renderer writer", "err", err)
		}
	}
}
