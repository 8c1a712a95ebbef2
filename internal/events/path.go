package events

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultSocketPath is where oscwatch watch listens and oscwatch run
// publishes when no socket is configured.
func DefaultSocketPath() string {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir != "" {
		return filepath.Join(runtimeDir, "oscwatch", "events.sock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("oscwatch-%d", os.Getuid()), "events.sock")
}
