package tracker

import (
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/timvw/oscwatch/internal/events"
	"github.com/timvw/oscwatch/internal/osc"
)

type recordingSink struct {
	got []events.Event
}

func (r *recordingSink) Publish(e events.Event) { r.got = append(r.got, e) }

// fakeClock advances by step on every read.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func setup(t *testing.T, opts Options) (*osc.Processor, *Tracker, *recordingSink) {
	t.Helper()
	p := osc.NewProcessor(osc.Config{HomeDir: "/home/u"})
	sink := &recordingSink{}
	opts.Sink = sink
	if opts.Session == "" {
		opts.Session = "s1"
	}
	return p, Attach(p, opts), sink
}

func feed(p *osc.Processor, s string) {
	p.FeedFromSession([]byte(s))
}

func TestTracker_FullLifecycle(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), step: 100 * time.Millisecond}
	p, tr, sink := setup(t, Options{Clock: clock.now})

	feed(p, "\x1b]1337;CurrentDir=~/proj\x07\x1b]133;A\x07$ \x1b]133;B\x07")
	if got := tr.State(); got != events.StateInput {
		t.Fatalf("state: got %q, want %q", got, events.StateInput)
	}
	feed(p, "make\r\n\x1b]133;C\x07")
	if !tr.Running() {
		t.Fatal("expected a running command after 133;C")
	}
	feed(p, "ok\r\n\x1b]133;D;0\x07")

	if got := tr.State(); got != events.StateIdle {
		t.Errorf("state: got %q, want %q", got, events.StateIdle)
	}
	if got := tr.Cwd(); got != "/home/u/proj" {
		t.Errorf("cwd: got %q, want %q", got, "/home/u/proj")
	}

	hist := tr.History()
	if len(hist) != 1 {
		t.Fatalf("history: got %d commands, want 1", len(hist))
	}
	if hist[0].Started.IsZero() || hist[0].Duration <= 0 {
		t.Errorf("expected a measured duration, got %+v", hist[0])
	}
	if hist[0].Cwd != "/home/u/proj" {
		t.Errorf("command cwd: got %q", hist[0].Cwd)
	}

	wantKinds := []string{
		events.KindCwdReported,
		events.KindPromptStart,
		events.KindCommandInputStart,
		events.KindCommandExecuted,
		events.KindCommandFinished,
	}
	if len(sink.got) != len(wantKinds) {
		t.Fatalf("published %d events, want %d", len(sink.got), len(wantKinds))
	}
	for i, k := range wantKinds {
		if sink.got[i].Kind != k {
			t.Errorf("event %d: got kind %q, want %q", i, sink.got[i].Kind, k)
		}
		if err := sink.got[i].Validate(); err != nil {
			t.Errorf("event %d invalid: %v", i, err)
		}
	}
	last := sink.got[len(sink.got)-1]
	if last.Commands != 1 || last.ExitCode != 0 || last.DurationMs != hist[0].Duration.Milliseconds() {
		t.Errorf("finished event: got %+v", last)
	}
	if sink.got[0].State != events.StateIdle {
		t.Errorf("cwd report should keep the current state, got %q", sink.got[0].State)
	}
}

func TestTracker_FinishWithoutExecute(t *testing.T) {
	p, tr, sink := setup(t, Options{})
	feed(p, "\x1b]133;D;130\x07")

	hist := tr.History()
	if len(hist) != 1 {
		t.Fatalf("history: got %d, want 1", len(hist))
	}
	if !hist[0].Started.IsZero() || hist[0].Duration != 0 {
		t.Errorf("expected zero duration without 133;C, got %+v", hist[0])
	}
	if got := sink.got[0]; got.ExitCode != 130 || !got.Failed() {
		t.Errorf("expected failed event with exit 130, got %+v", got)
	}
}

func TestTracker_HistoryIsBounded(t *testing.T) {
	p, tr, _ := setup(t, Options{History: 3})
	for i := 0; i < 5; i++ {
		feed(p, "\x1b]133;C\x07\x1b]133;D;"+string(rune('0'+i))+"\x07")
	}
	hist := tr.History()
	if len(hist) != 3 {
		t.Fatalf("history: got %d, want 3", len(hist))
	}
	for i, want := range []int{2, 3, 4} {
		if hist[i].ExitCode != want {
			t.Errorf("history[%d]: got exit %d, want %d", i, hist[i].ExitCode, want)
		}
	}
}

func TestTracker_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	p, tr, _ := setup(t, Options{Tracer: tp.Tracer("test")})

	feed(p, "\x1b]133;C\x07\x1b]133;D;2\x07")
	feed(p, "\x1b]133;C\x07\x1b]133;A\x07")
	feed(p, "\x1b]133;C\x07")
	tr.Detach()

	ended := sr.Ended()
	if len(ended) != 3 {
		t.Fatalf("ended spans: got %d, want 3", len(ended))
	}
	if ended[0].Name() != "shell.command" {
		t.Errorf("span name: got %q", ended[0].Name())
	}
	if ended[0].Status().Code != codes.Error {
		t.Errorf("failed command span status: got %v, want Error", ended[0].Status().Code)
	}
	for _, s := range ended[1:] {
		interrupted := false
		for _, kv := range s.Attributes() {
			if kv.Key == "command.interrupted" && kv.Value.AsBool() {
				interrupted = true
			}
		}
		if !interrupted {
			t.Errorf("span %q should be marked interrupted", s.Name())
		}
	}
	if tr.Running() {
		t.Error("Detach should clear the running command")
	}
}

func TestTracker_DetachStopsUpdates(t *testing.T) {
	p, tr, sink := setup(t, Options{})
	tr.Detach()
	feed(p, "\x1b]133;A\x07")
	if len(sink.got) != 0 {
		t.Fatalf("expected no events after detach, got %d", len(sink.got))
	}
}
