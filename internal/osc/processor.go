// Package osc extracts shell integration events from raw session output.
//
// The Processor is a middleware link. It scans each chunk for OSC 133
// (prompt and command lifecycle) and OSC 1337 CurrentDir sequences, publishes
// an event per recognized sequence on one of five streams, removes the
// OSC 133 sequences, and forwards everything else unchanged. All other bytes,
// including unrelated escape sequences, are opaque.
package osc

import (
	"context"
	"strconv"
	"strings"

	clog "github.com/charmbracelet/log"
	"github.com/timvw/oscwatch/internal/logging"
	"github.com/timvw/oscwatch/internal/middleware"
	telem "github.com/timvw/oscwatch/internal/otel"
)

// DefaultMaxCarry bounds how many bytes of an unterminated sequence are held
// back between chunks when Config.CarryPartial is set.
const DefaultMaxCarry = 4096

const (
	codeShellIntegration = 133
	codeTerminalReport   = 1337

	currentDirParam = "CurrentDir="
)

// Config configures a Processor.
type Config struct {
	// HomeDir replaces a leading ~ in reported directories. Empty disables
	// expansion.
	HomeDir string

	// CarryPartial holds back an unterminated sequence at the end of a chunk
	// and retries it with the next chunk. When false, every chunk is scanned
	// on its own and a sequence split across chunks is forwarded as payload.
	CarryPartial bool

	// MaxCarry caps the held-back tail. Zero means DefaultMaxCarry.
	MaxCarry int

	Logger  *clog.Logger
	Metrics *telem.Metrics
}

// Processor is the OSC shell integration middleware. It is owned by a single
// session and must not be fed concurrently.
type Processor struct {
	middleware.Base

	home         string
	carryPartial bool
	maxCarry     int
	logger       *clog.Logger
	metrics      *telem.Metrics

	promptStart       *Stream[PromptStartEvent]
	commandInputStart *Stream[CommandInputStartEvent]
	commandExecuted   *Stream[CommandExecutedEvent]
	commandFinished   *Stream[CommandFinishedEvent]
	cwdReported       *Stream[CwdReportedEvent]

	carry  []byte
	closed bool
}

// NewProcessor returns a Processor with no successor. Use SetNext or
// middleware.Chain to connect it.
func NewProcessor(cfg Config) *Processor {
	maxCarry := cfg.MaxCarry
	if maxCarry <= 0 {
		maxCarry = DefaultMaxCarry
	}
	return &Processor{
		home:              cfg.HomeDir,
		carryPartial:      cfg.CarryPartial,
		maxCarry:          maxCarry,
		logger:            logging.OrDiscard(cfg.Logger),
		metrics:           cfg.Metrics,
		promptStart:       newStream[PromptStartEvent](),
		commandInputStart: newStream[CommandInputStartEvent](),
		commandExecuted:   newStream[CommandExecutedEvent](),
		commandFinished:   newStream[CommandFinishedEvent](),
		cwdReported:       newStream[CwdReportedEvent](),
	}
}

// PromptStart publishes OSC 133;A.
func (p *Processor) PromptStart() *Stream[PromptStartEvent] { return p.promptStart }

// CommandInputStart publishes OSC 133;B.
func (p *Processor) CommandInputStart() *Stream[CommandInputStartEvent] {
	return p.commandInputStart
}

// CommandExecuted publishes OSC 133;C.
func (p *Processor) CommandExecuted() *Stream[CommandExecutedEvent] { return p.commandExecuted }

// CommandFinished publishes OSC 133;D.
func (p *Processor) CommandFinished() *Stream[CommandFinishedEvent] { return p.commandFinished }

// CwdReported publishes OSC 1337;CurrentDir=.
func (p *Processor) CwdReported() *Stream[CwdReportedEvent] { return p.cwdReported }

type span struct {
	start, end int
}

// FeedFromSession scans one chunk of session output, publishes events for
// the sequences it recognizes and forwards the chunk without its OSC 133
// sequences. It never fails; anything it cannot make sense of is payload.
func (p *Processor) FeedFromSession(data []byte) {
	if p.closed {
		p.logger.Debug("chunk after close dropped", "bytes", len(data))
		return
	}
	if len(p.carry) > 0 {
		data = append(p.carry, data...)
		p.carry = nil
	}

	seqs, partial := Scan(data)

	var strips []span
	for _, seq := range seqs {
		if p.dispatch(seq) {
			strips = append(strips, span{seq.Start, seq.End})
		}
	}

	limit := len(data)
	if partial >= 0 {
		p.metrics.RecordPartial(context.Background())
		if p.carryPartial {
			if len(data)-partial <= p.maxCarry {
				p.carry = append([]byte(nil), data[partial:]...)
				limit = partial
			} else {
				p.logger.Debug("unterminated sequence exceeds carry limit, forwarding as payload",
					"bytes", len(data)-partial, "max", p.maxCarry)
			}
		}
	} else if p.carryPartial && limit > 0 && data[limit-1] == esc {
		// A trailing ESC may be the first half of the next chunk's prefix.
		p.carry = []byte{esc}
		limit--
	}

	out := filter(data[:limit], strips)
	if len(out) == 0 {
		return
	}
	p.metrics.RecordForwarded(context.Background(), len(out))
	p.Base.FeedFromSession(out)
}

// filter returns data without the strip spans. spans must be ascending and
// non-overlapping. With no spans, data itself is returned.
func filter(data []byte, spans []span) []byte {
	if len(spans) == 0 {
		return data
	}
	stripped := 0
	for _, s := range spans {
		stripped += s.end - s.start
	}
	out := make([]byte, 0, len(data)-stripped)
	prev := 0
	for _, s := range spans {
		out = append(out, data[prev:s.start]...)
		prev = s.end
	}
	return append(out, data[prev:]...)
}

// dispatch publishes the event for seq, if any, and reports whether seq must
// be stripped from the forwarded output.
func (p *Processor) dispatch(seq Sequence) bool {
	code, ok := seq.Code()
	if !ok {
		p.metrics.RecordSequence(context.Background(), -1)
		return false
	}
	p.metrics.RecordSequence(context.Background(), int64(code))

	switch code {
	case codeShellIntegration:
		p.dispatchShellIntegration(strings.Split(string(seq.Params), ";"))
		p.metrics.RecordStripped(context.Background(), seq.End-seq.Start)
		return true
	case codeTerminalReport:
		p.dispatchTerminalReport(string(seq.Params))
	}
	return false
}

func (p *Processor) dispatchShellIntegration(params []string) {
	if len(params) < 2 {
		p.logger.Debug("OSC 133 without sub-command")
		return
	}
	switch params[1] {
	case "A":
		p.publish(KindPromptStart, func() bool { return p.promptStart.emit(PromptStartEvent{}) })
	case "B":
		p.publish(KindCommandInputStart, func() bool {
			return p.commandInputStart.emit(CommandInputStartEvent{})
		})
	case "C":
		p.publish(KindCommandExecuted, func() bool { return p.commandExecuted.emit(CommandExecutedEvent{}) })
	case "D":
		exitCode := 0
		if len(params) >= 3 {
			if n, err := strconv.Atoi(params[2]); err == nil {
				exitCode = n
			} else {
				p.logger.Debug("OSC 133;D exit code not numeric, using 0", "value", params[2])
			}
		}
		p.publish(KindCommandFinished, func() bool {
			return p.commandFinished.emit(CommandFinishedEvent{ExitCode: exitCode})
		})
	default:
		p.logger.Debug("unknown OSC 133 sub-command", "sub", params[1])
	}
}

func (p *Processor) dispatchTerminalReport(params string) {
	i := strings.IndexByte(params, ';')
	if i < 0 {
		return
	}
	arg := params[i+1:]
	if !strings.HasPrefix(arg, currentDirParam) {
		p.logger.Debug("ignoring OSC 1337 parameter", "param", truncate(arg, 32))
		return
	}
	path := expandHome(arg[len(currentDirParam):], p.home)
	p.publish(KindCwdReported, func() bool { return p.cwdReported.emit(CwdReportedEvent{Path: path}) })
}

func (p *Processor) publish(kind string, emit func() bool) {
	if emit() {
		p.metrics.RecordEvent(context.Background(), kind)
		p.logger.Debug("shell integration event", "kind", kind)
	}
}

// expandHome replaces a leading ~ with home.
func expandHome(path, home string) string {
	if home == "" || !strings.HasPrefix(path, "~") {
		return path
	}
	return home + path[1:]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Close completes all event streams, forwards any held-back bytes and then
// closes the next link. Later calls do nothing.
func (p *Processor) Close() {
	if p.closed {
		return
	}
	p.closed = true

	p.promptStart.complete()
	p.commandInputStart.complete()
	p.commandExecuted.complete()
	p.commandFinished.complete()
	p.cwdReported.complete()

	if len(p.carry) > 0 {
		pending := p.carry
		p.carry = nil
		p.metrics.RecordForwarded(context.Background(), len(pending))
		p.Base.FeedFromSession(pending)
	}
	p.Base.Close()
}
