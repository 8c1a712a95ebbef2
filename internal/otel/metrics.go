package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "oscwatch"

// Metrics holds all OTEL metric instruments for oscwatch.
// All methods are safe on a nil *Metrics, so components can record
// unconditionally.
type Metrics struct {
	// Stream scanning
	Sequences        metric.Int64Counter
	StrippedBytes    metric.Int64Counter
	PartialSequences metric.Int64Counter
	ForwardedBytes   metric.Int64Counter

	// Events published by the OSC processor (partitioned by kind)
	Events metric.Int64Counter

	// Command lifecycle
	CommandsFinished metric.Int64Counter
	CommandDuration  metric.Int64Histogram
}

// NewMetrics creates all metric instruments. Returns no-op instruments
// when no MeterProvider is registered (safe to call unconditionally).
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	// --- Stream counters ---

	m.Sequences, err = meter.Int64Counter("osc.sequences",
		metric.WithDescription("Complete OSC sequences seen in session output, partitioned by code"))
	if err != nil {
		return nil, err
	}

	m.StrippedBytes, err = meter.Int64Counter("osc.stripped_bytes",
		metric.WithDescription("Bytes removed from session output before rendering"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}

	m.PartialSequences, err = meter.Int64Counter("osc.partial_sequences",
		metric.WithDescription("OSC prefixes with no terminator in the same chunk"))
	if err != nil {
		return nil, err
	}

	m.ForwardedBytes, err = meter.Int64Counter("session.bytes_forwarded",
		metric.WithDescription("Bytes forwarded to the renderer"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}

	m.Events, err = meter.Int64Counter("osc.events",
		metric.WithDescription("Shell integration events emitted, partitioned by kind"))
	if err != nil {
		return nil, err
	}

	// --- Command counters ---

	m.CommandsFinished, err = meter.Int64Counter("commands.finished",
		metric.WithDescription("Finished shell commands partitioned by status (ok, failed)"))
	if err != nil {
		return nil, err
	}

	m.CommandDuration, err = meter.Int64Histogram("commands.duration",
		metric.WithDescription("Wall-clock duration of shell commands from execution to finish"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordSequence records one complete OSC sequence with its numeric code.
// Unparseable codes are recorded as -1.
func (m *Metrics) RecordSequence(ctx context.Context, code int64) {
	if m == nil {
		return
	}
	m.Sequences.Add(ctx, 1, metric.WithAttributes(attribute.Int64("osc.code", code)))
}

// RecordStripped records bytes removed from a chunk.
func (m *Metrics) RecordStripped(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.StrippedBytes.Add(ctx, int64(n))
}

// RecordPartial records an unterminated sequence at the end of a chunk.
func (m *Metrics) RecordPartial(ctx context.Context) {
	if m == nil {
		return
	}
	m.PartialSequences.Add(ctx, 1)
}

// RecordForwarded records bytes handed to the next link.
func (m *Metrics) RecordForwarded(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ForwardedBytes.Add(ctx, int64(n))
}

// RecordEvent records one emitted event of the given kind.
func (m *Metrics) RecordEvent(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.Events.Add(ctx, 1, metric.WithAttributes(attribute.String("osc.event", kind)))
}

// RecordCommand records a finished command and its duration in milliseconds.
func (m *Metrics) RecordCommand(ctx context.Context, exitCode int, durationMs int64) {
	if m == nil {
		return
	}
	status := "ok"
	if exitCode != 0 {
		status = "failed"
	}
	attrs := metric.WithAttributes(attribute.String("command.status", status))
	m.CommandsFinished.Add(ctx, 1, attrs)
	m.CommandDuration.Record(ctx, durationMs, attrs)
}
