package osc

// PromptStartEvent marks the start of a shell prompt (OSC 133;A).
type PromptStartEvent struct{}

// CommandInputStartEvent marks the point where the user starts typing a
// command (OSC 133;B).
type CommandInputStartEvent struct{}

// CommandExecutedEvent marks the start of command output (OSC 133;C).
type CommandExecutedEvent struct{}

// CommandFinishedEvent marks the end of a command (OSC 133;D). ExitCode is 0
// when the shell did not report one or reported something non-numeric.
type CommandFinishedEvent struct {
	ExitCode int
}

// CwdReportedEvent carries the working directory reported through
// OSC 1337;CurrentDir=, with a leading ~ already expanded.
type CwdReportedEvent struct {
	Path string
}

// Event kind names used in logs and metrics.
const (
	KindPromptStart       = "prompt_start"
	KindCommandInputStart = "command_input_start"
	KindCommandExecuted   = "command_executed"
	KindCommandFinished   = "command_finished"
	KindCwdReported       = "cwd_reported"
)
