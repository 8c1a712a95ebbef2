package session

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Shell is a shell binary and the arguments it is started with.
type Shell struct {
	Path string
	Args []string
}

// Name returns the base name of the shell binary, e.g. "zsh".
func (s Shell) Name() string {
	return filepath.Base(s.Path)
}

var fallbackShells = []string{"/bin/bash", "/bin/sh"}

// DetectShell picks the shell to run. An explicit preference wins, then
// $SHELL, then /bin/bash and /bin/sh. Shells are started as login shells.
func DetectShell(preferred string) (Shell, error) {
	if preferred != "" {
		path, err := exec.LookPath(preferred)
		if err != nil {
			return Shell{}, fmt.Errorf("shell %q: %w", preferred, ErrShellNotFound)
		}
		return loginShell(path), nil
	}

	if sh := os.Getenv("SHELL"); sh != "" {
		if path, err := exec.LookPath(sh); err == nil {
			return loginShell(path), nil
		}
	}

	for _, path := range fallbackShells {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return loginShell(path), nil
		}
	}
	return Shell{}, ErrShellNotFound
}

func loginShell(path string) Shell {
	return Shell{Path: path, Args: []string{"-l"}}
}
