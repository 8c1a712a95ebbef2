package osc

import (
	"bytes"
	"strconv"
)

const (
	esc = 0x1b
	bel = 0x07
)

var (
	prefix = []byte{esc, ']'}
	st     = []byte{esc, '\\'}
)

// Sequence is one complete OSC sequence inside a chunk. Start and End are
// byte offsets into the chunk, End exclusive, covering the ESC ] prefix and
// the terminator.
type Sequence struct {
	Start  int
	End    int
	Params []byte
}

// Code parses the first ;-separated parameter as an unsigned integer.
func (s Sequence) Code() (uint64, bool) {
	tok := s.Params
	if i := bytes.IndexByte(tok, ';'); i >= 0 {
		tok = tok[:i]
	}
	code, err := strconv.ParseUint(string(tok), 10, 64)
	if err != nil {
		return 0, false
	}
	return code, true
}

// Scan finds every complete OSC sequence in data, left to right. Scanning
// stops at the first ESC ] that has no terminator in the rest of data; its
// offset is returned as partial, or -1 when there is none.
func Scan(data []byte) (seqs []Sequence, partial int) {
	partial = -1
	cursor := 0
	for cursor < len(data) {
		i := bytes.Index(data[cursor:], prefix)
		if i < 0 {
			break
		}
		start := cursor + i
		body := start + len(prefix)
		termAt, termLen := findTerminator(data[body:])
		if termAt < 0 {
			partial = start
			break
		}
		end := body + termAt + termLen
		seqs = append(seqs, Sequence{
			Start:  start,
			End:    end,
			Params: data[body : body+termAt],
		})
		cursor = end
	}
	return seqs, partial
}

// findTerminator returns the offset and length of whichever of BEL or ESC \
// comes first in b, or -1.
func findTerminator(b []byte) (int, int) {
	belAt := bytes.IndexByte(b, bel)
	search := b
	if belAt >= 0 {
		search = b[:belAt]
	}
	if stAt := bytes.Index(search, st); stAt >= 0 {
		return stAt, len(st)
	}
	if belAt >= 0 {
		return belAt, 1
	}
	return -1, 0
}
