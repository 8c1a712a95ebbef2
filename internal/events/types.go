package events

import (
	"fmt"
	"strings"
	"time"
)

// Event kinds, one per shell integration event.
const (
	KindPromptStart       = "prompt_start"
	KindCommandInputStart = "command_input_start"
	KindCommandExecuted   = "command_executed"
	KindCommandFinished   = "command_finished"
	KindCwdReported       = "cwd_reported"
)

// Session states derived from the prompt/command lifecycle.
const (
	StateIdle    = "idle"
	StatePrompt  = "prompt"
	StateInput   = "input"
	StateRunning = "running"
)

// Event is the status of one shell session right after a lifecycle
// transition. It is what oscwatch run publishes and oscwatch watch collects.
type Event struct {
	Session string    `json:"session"`
	Kind    string    `json:"kind"`
	State   string    `json:"state"`
	TS      time.Time `json:"ts"`
	Cwd     string    `json:"cwd,omitempty"`

	// Last finished command, if any.
	Commands   int   `json:"commands"`
	ExitCode   int   `json:"exit_code"`
	DurationMs int64 `json:"duration_ms,omitempty"`
}

func (e Event) Validate() error {
	if strings.TrimSpace(e.Session) == "" {
		return fmt.Errorf("session is required")
	}
	if !isValidKind(e.Kind) {
		return fmt.Errorf("invalid kind %q", e.Kind)
	}
	if !isValidState(e.State) {
		return fmt.Errorf("invalid state %q", e.State)
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	if e.Commands < 0 || e.DurationMs < 0 {
		return fmt.Errorf("negative counters")
	}
	return nil
}

// Failed reports whether the session's last finished command exited non-zero.
func (e Event) Failed() bool {
	return e.Commands > 0 && e.ExitCode != 0
}

func isValidKind(kind string) bool {
	switch kind {
	case KindPromptStart, KindCommandInputStart, KindCommandExecuted, KindCommandFinished, KindCwdReported:
		return true
	default:
		return false
	}
}

func isValidState(state string) bool {
	switch state {
	case StateIdle, StatePrompt, StateInput, StateRunning:
		return true
	default:
		return false
	}
}

// Sink receives session events.
type Sink interface {
	Publish(e Event)
}
