package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	clog "github.com/charmbracelet/log"
	"github.com/charmbracelet/x/ansi"
	"go.opentelemetry.io/otel/trace"

	"github.com/timvw/oscwatch/internal/config"
	"github.com/timvw/oscwatch/internal/events"
	"github.com/timvw/oscwatch/internal/middleware"
	"github.com/timvw/oscwatch/internal/osc"
	telem "github.com/timvw/oscwatch/internal/otel"
	"github.com/timvw/oscwatch/internal/tracker"
)

func telemetryParts(tel *telem.Telemetry) (*telem.Metrics, trace.Tracer) {
	if tel == nil {
		return nil, nil
	}
	return tel.Metrics, tel.Tracer
}

func newProcessor(cfg *config.Config, logger *clog.Logger, metrics *telem.Metrics) *osc.Processor {
	return osc.NewProcessor(osc.Config{
		HomeDir:      cfg.HomeDir,
		CarryPartial: cfg.CarryPartial,
		MaxCarry:     cfg.MaxCarry,
		Logger:       logger,
		Metrics:      metrics,
	})
}

// jsonLines is an events.Sink printing one JSON object per line.
type jsonLines struct {
	enc *json.Encoder
	err error
}

func newJSONLines(w io.Writer) *jsonLines {
	return &jsonLines{enc: json.NewEncoder(w)}
}

func (j *jsonLines) Publish(e events.Event) {
	if j.err != nil {
		return
	}
	j.err = j.enc.Encode(e)
}

// analysis is the offline pipeline used by scan and replay: a processor
// whose events are printed as JSON lines, and whose forwarded output goes
// to an optional file or a plain-text transcript.
type analysis struct {
	head    middleware.Middleware
	tracker *tracker.Tracker
	events  *jsonLines

	stdout     io.Writer
	forward    *os.File
	transcript *bytes.Buffer
}

type analysisOptions struct {
	session     string
	forwardPath string
	text        bool
}

func newAnalysis(cfg *config.Config, logger *clog.Logger, tel *telem.Telemetry, stdout io.Writer, opts analysisOptions) (*analysis, error) {
	metrics, tracer := telemetryParts(tel)
	a := &analysis{stdout: stdout}

	var writers []io.Writer
	if opts.forwardPath != "" {
		f, err := os.Create(opts.forwardPath)
		if err != nil {
			return nil, fmt.Errorf("forward output: %w", err)
		}
		a.forward = f
		writers = append(writers, f)
	}
	if opts.text {
		a.transcript = &bytes.Buffer{}
		writers = append(writers, a.transcript)
	}

	proc := newProcessor(cfg, logger, metrics)
	sink := middleware.NewWriterSink(io.MultiWriter(writers...), false, logger)
	head, err := middleware.Chain(proc, sink)
	if err != nil {
		return nil, err
	}
	a.head = head

	var sinkEvents events.Sink
	if !opts.text {
		a.events = newJSONLines(stdout)
		sinkEvents = a.events
	}
	a.tracker = tracker.Attach(proc, tracker.Options{
		Session: opts.session,
		Sink:    sinkEvents,
		Logger:  logger,
		Metrics: metrics,
		Tracer:  tracer,
	})
	return a, nil
}

// finish releases files and prints the transcript. The chain must already
// be closed.
func (a *analysis) finish() error {
	a.tracker.Detach()

	var errs []error
	if a.events != nil && a.events.err != nil {
		errs = append(errs, fmt.Errorf("write events: %w", a.events.err))
	}
	if a.forward != nil {
		if err := a.forward.Close(); err != nil {
			errs = append(errs, fmt.Errorf("forward output: %w", err))
		}
	}
	if a.transcript != nil {
		if _, err := io.WriteString(a.stdout, ansi.Strip(a.transcript.String())); err != nil {
			errs = append(errs, fmt.Errorf("write transcript: %w", err))
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
