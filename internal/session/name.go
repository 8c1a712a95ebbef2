package session

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// EnvSessionID is exported into the shell so nested tools can find the
// session they run in. It also overrides the derived name.
const EnvSessionID = "OSCWATCH_SESSION"

// DefaultName derives a session identifier. Inside tmux it is the pane
// target ("session:window.pane"), otherwise the shell name and our pid.
func DefaultName(ctx context.Context, shell Shell) string {
	if id := os.Getenv(EnvSessionID); id != "" {
		return id
	}
	if os.Getenv("TMUX") != "" {
		if target, err := tmuxTarget(ctx); err == nil {
			return target
		}
	}
	return fmt.Sprintf("%s-%d", shell.Name(), os.Getpid())
}

// tmuxTarget asks tmux for the pane we are running in.
func tmuxTarget(ctx context.Context) (string, error) {
	args := []string{"display-message", "-p"}
	if pane := os.Getenv("TMUX_PANE"); pane != "" {
		args = append(args, "-t", pane)
	}
	args = append(args, "#{session_name}:#{window_index}.#{pane_index}")

	out, err := exec.CommandContext(ctx, "tmux", args...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("tmux display-message: %w: %s", err, string(exitErr.Stderr))
		}
		return "", fmt.Errorf("tmux display-message: %w", err)
	}
	target := strings.TrimSpace(string(out))
	if err := validTarget(target); err != nil {
		return "", err
	}
	return target, nil
}

// validTarget checks the "session:window.pane" shape.
func validTarget(target string) error {
	colonIdx := strings.LastIndex(target, ":")
	if colonIdx <= 0 {
		return fmt.Errorf("invalid target %q: missing session", target)
	}
	rest := target[colonIdx+1:]

	dotIdx := strings.LastIndex(rest, ".")
	if dotIdx < 0 {
		return fmt.Errorf("invalid target %q: missing '.'", target)
	}
	if _, err := strconv.Atoi(rest[:dotIdx]); err != nil {
		return fmt.Errorf("invalid window index in %q: %w", target, err)
	}
	if _, err := strconv.Atoi(rest[dotIdx+1:]); err != nil {
		return fmt.Errorf("invalid pane index in %q: %w", target, err)
	}
	return nil
}
