// Package record captures raw session output to a file and replays it later
// with the original chunk boundaries.
//
// A recording is a zstd stream holding a magic header followed by frames,
// each a uvarint length and that many bytes. Chunk boundaries matter because
// OSC sequences are only recognized within a single chunk.
package record

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	clog "github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"

	"github.com/timvw/oscwatch/internal/logging"
	"github.com/timvw/oscwatch/internal/middleware"
)

const (
	magic = "oscwatch-rec-v1\n"

	// MaxFrame bounds a single chunk; PTY reads are far smaller.
	MaxFrame = 1 << 20
)

// Recorder is a middleware link that appends every chunk to a recording and
// forwards it unchanged. Recording failures are logged once and never stop
// the session.
type Recorder struct {
	middleware.Base

	w      io.Writer
	enc    *zstd.Encoder
	logger *clog.Logger

	frames int
	failed bool
	closed bool
}

// Create opens path for writing and returns a Recorder that owns the file.
func Create(path string, logger *clog.Logger) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	r, err := NewRecorder(f, logger)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return r, nil
}

// NewRecorder writes a recording to w. If w is an io.Closer it is closed
// by Close.
func NewRecorder(w io.Writer, logger *clog.Logger) (*Recorder, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	r := &Recorder{w: w, enc: enc, logger: logging.OrDiscard(logger)}
	if _, err := io.WriteString(enc, magic); err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("write recording header: %w", err)
	}
	return r, nil
}

// Frames returns how many chunks were recorded.
func (r *Recorder) Frames() int {
	return r.frames
}

// FeedFromSession records data and forwards it.
func (r *Recorder) FeedFromSession(data []byte) {
	if !r.closed && !r.failed && len(data) > 0 {
		if err := r.writeFrame(data); err != nil {
			r.failed = true
			r.logger.Error("recording failed, session continues unrecorded", "err", err)
		} else {
			r.frames++
		}
	}
	r.Base.FeedFromSession(data)
}

func (r *Recorder) writeFrame(data []byte) error {
	if len(data) > MaxFrame {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooBig, len(data))
	}
	var hdr [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(hdr[:], uint64(len(data)))
	if _, err := r.enc.Write(hdr[:n]); err != nil {
		return err
	}
	_, err := r.enc.Write(data)
	return err
}

// Close finishes the recording, closes the underlying writer when it can be
// closed and then closes the next link.
func (r *Recorder) Close() {
	if r.closed {
		return
	}
	r.closed = true
	if err := r.enc.Close(); err != nil {
		r.logger.Warn("finishing recording", "err", err)
	}
	if c, ok := r.w.(io.Closer); ok {
		if err := c.Close(); err != nil {
			r.logger.Warn("closing recording", "err", err)
		}
	}
	r.Base.Close()
}
