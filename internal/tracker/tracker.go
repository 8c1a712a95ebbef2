// Package tracker follows the prompt and command lifecycle of one shell
// session from the events of an osc.Processor.
//
// It keeps the session state, the working directory and a bounded history
// of finished commands, publishes a status event on every transition and
// records one span and one duration measurement per executed command.
package tracker

import (
	"context"
	"sync"
	"time"

	clog "github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/timvw/oscwatch/internal/events"
	"github.com/timvw/oscwatch/internal/logging"
	"github.com/timvw/oscwatch/internal/osc"
	telem "github.com/timvw/oscwatch/internal/otel"
)

const defaultHistory = 50

// Options configures a Tracker. Only Session is required.
type Options struct {
	Session string
	Sink    events.Sink
	History int
	Clock   func() time.Time

	Logger  *clog.Logger
	Metrics *telem.Metrics
	Tracer  trace.Tracer
}

// Command is one finished shell command.
type Command struct {
	// Started is zero when the shell reported the finish without an
	// execution mark.
	Started  time.Time
	Finished time.Time
	Duration time.Duration
	ExitCode int
	Cwd      string
}

// Tracker is attached to exactly one processor.
type Tracker struct {
	session string
	sink    events.Sink
	limit   int
	now     func() time.Time
	logger  *clog.Logger
	metrics *telem.Metrics
	tracer  trace.Tracer

	mu        sync.Mutex
	state     string
	cwd       string
	running   bool
	startedAt time.Time
	span      trace.Span
	commands  int
	last      Command
	history   []Command

	unsubs []func()
}

// Attach subscribes a new Tracker to all five streams of p.
func Attach(p *osc.Processor, opts Options) *Tracker {
	t := &Tracker{
		session: opts.Session,
		sink:    opts.Sink,
		limit:   opts.History,
		now:     opts.Clock,
		logger:  logging.OrDiscard(opts.Logger),
		metrics: opts.Metrics,
		tracer:  opts.Tracer,
		state:   events.StateIdle,
	}
	if t.limit <= 0 {
		t.limit = defaultHistory
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.tracer == nil {
		t.tracer = noop.NewTracerProvider().Tracer("")
	}

	t.unsubs = append(t.unsubs,
		p.PromptStart().Subscribe(func(osc.PromptStartEvent) { t.onPromptStart() }),
		p.CommandInputStart().Subscribe(func(osc.CommandInputStartEvent) {
			t.transition(events.KindCommandInputStart, events.StateInput)
		}),
		p.CommandExecuted().Subscribe(func(osc.CommandExecutedEvent) { t.onExecuted() }),
		p.CommandFinished().Subscribe(func(e osc.CommandFinishedEvent) { t.onFinished(e.ExitCode) }),
		p.CwdReported().Subscribe(func(e osc.CwdReportedEvent) { t.onCwd(e.Path) }),
	)
	return t
}

// Detach unsubscribes from the processor and ends a command span that is
// still open, e.g. because the shell exited mid-command.
func (t *Tracker) Detach() {
	for _, unsub := range t.unsubs {
		unsub()
	}
	t.unsubs = nil

	t.mu.Lock()
	defer t.mu.Unlock()
	t.endOpenSpanLocked("session ended")
}

// State returns the current lifecycle state (see events.State*).
func (t *Tracker) State() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Cwd returns the last reported working directory.
func (t *Tracker) Cwd() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cwd
}

// Running reports whether a command is executing.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// History returns finished commands, oldest first.
func (t *Tracker) History() []Command {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Command(nil), t.history...)
}

func (t *Tracker) onPromptStart() {
	t.mu.Lock()
	t.endOpenSpanLocked("prompt returned without finish mark")
	t.mu.Unlock()
	t.transition(events.KindPromptStart, events.StatePrompt)
}

func (t *Tracker) onExecuted() {
	t.mu.Lock()
	t.endOpenSpanLocked("new command started")
	t.running = true
	t.startedAt = t.now()
	_, t.span = t.tracer.Start(context.Background(), "shell.command",
		trace.WithTimestamp(t.startedAt),
		trace.WithAttributes(
			attribute.String("session.id", t.session),
			attribute.String("command.cwd", t.cwd),
		))
	t.mu.Unlock()
	t.transition(events.KindCommandExecuted, events.StateRunning)
}

func (t *Tracker) onFinished(exitCode int) {
	t.mu.Lock()
	finished := t.now()
	cmd := Command{Finished: finished, ExitCode: exitCode, Cwd: t.cwd}
	if t.running {
		cmd.Started = t.startedAt
		cmd.Duration = finished.Sub(t.startedAt)
		if cmd.Duration < 0 {
			cmd.Duration = 0
		}
	}
	if t.span != nil {
		t.span.SetAttributes(attribute.Int("command.exit_code", exitCode))
		if exitCode != 0 {
			t.span.SetStatus(codes.Error, "non-zero exit")
		}
		t.span.End(trace.WithTimestamp(finished))
		t.span = nil
	}
	t.running = false
	t.commands++
	t.last = cmd
	t.history = append(t.history, cmd)
	if len(t.history) > t.limit {
		t.history = append(t.history[:0:0], t.history[len(t.history)-t.limit:]...)
	}
	t.mu.Unlock()

	t.metrics.RecordCommand(context.Background(), exitCode, cmd.Duration.Milliseconds())
	t.logger.Debug("command finished", "exit", exitCode, "duration", cmd.Duration)
	t.transition(events.KindCommandFinished, events.StateIdle)
}

func (t *Tracker) onCwd(path string) {
	t.mu.Lock()
	t.cwd = path
	state := t.state
	t.mu.Unlock()
	t.transition(events.KindCwdReported, state)
}

// transition sets the new state and publishes the session status.
func (t *Tracker) transition(kind, state string) {
	t.mu.Lock()
	t.state = state
	e := events.Event{
		Session:  t.session,
		Kind:     kind,
		State:    state,
		TS:       t.now().UTC(),
		Cwd:      t.cwd,
		Commands: t.commands,
	}
	if t.commands > 0 {
		e.ExitCode = t.last.ExitCode
		e.DurationMs = t.last.Duration.Milliseconds()
	}
	t.mu.Unlock()

	if t.sink != nil {
		t.sink.Publish(e)
	}
}

func (t *Tracker) endOpenSpanLocked(reason string) {
	if t.span == nil {
		return
	}
	t.span.SetAttributes(attribute.Bool("command.interrupted", true))
	t.span.SetStatus(codes.Unset, reason)
	t.span.End()
	t.span = nil
	t.running = false
}
