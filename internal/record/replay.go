package record

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/timvw/oscwatch/internal/middleware"
)

// Replay feeds every frame of the recording in r to m, in order, and closes
// m when done. It returns the number of frames fed.
func Replay(ctx context.Context, r io.Reader, m middleware.Middleware) (int, error) {
	defer m.Close()

	dec, err := zstd.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("zstd decoder: %w", err)
	}
	defer dec.Close()
	br := bufio.NewReader(dec)

	head := make([]byte, len(magic))
	if _, err := io.ReadFull(br, head); err != nil || string(head) != magic {
		return 0, ErrNotRecording
	}

	frames := 0
	for {
		if err := ctx.Err(); err != nil {
			return frames, err
		}
		size, err := binary.ReadUvarint(br)
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return frames, readErr(err)
		}
		if size > MaxFrame {
			return frames, fmt.Errorf("%w: %d bytes", ErrFrameTooBig, size)
		}
		buf := make([]byte, size)
		if _, err := io.ReadFull(br, buf); err != nil {
			return frames, readErr(err)
		}
		m.FeedFromSession(buf)
		frames++
	}
}

func readErr(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return ErrTruncated
	}
	return fmt.Errorf("read recording: %w", err)
}
