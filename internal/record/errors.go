package record

import "errors"

var (
	ErrNotRecording = errors.New("not an oscwatch recording")
	ErrTruncated    = errors.New("recording is truncated")
	ErrFrameTooBig  = errors.New("recording frame exceeds limit")
)
