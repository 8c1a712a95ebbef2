// Package title keeps the host terminal's window title in sync with the
// working directory and command state reported by the shell.
package title

import (
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/x/ansi"

	"github.com/timvw/oscwatch/internal/osc"
)

// Updater writes a window title sequence to the host terminal whenever the
// title it derives from the session changes.
type Updater struct {
	w      io.Writer
	prefix string

	mu      sync.Mutex
	cwd     string
	running bool
	last    string

	unsubs []func()
}

// Attach subscribes an Updater to p. Titles are written to w, normally the
// same writer the session output is rendered to.
func Attach(p *osc.Processor, w io.Writer, prefix string) *Updater {
	u := &Updater{w: w, prefix: prefix}
	u.unsubs = append(u.unsubs,
		p.CwdReported().Subscribe(func(e osc.CwdReportedEvent) {
			u.update(func() { u.cwd = e.Path })
		}),
		p.CommandExecuted().Subscribe(func(osc.CommandExecutedEvent) {
			u.update(func() { u.running = true })
		}),
		p.CommandFinished().Subscribe(func(osc.CommandFinishedEvent) {
			u.update(func() { u.running = false })
		}),
	)
	return u
}

// Detach stops following the processor.
func (u *Updater) Detach() {
	for _, unsub := range u.unsubs {
		unsub()
	}
	u.unsubs = nil
}

// Title returns the last title written, or "" if none yet.
func (u *Updater) Title() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.last
}

func (u *Updater) update(apply func()) {
	u.mu.Lock()
	defer u.mu.Unlock()
	apply()
	t := Format(u.prefix, u.cwd, u.running)
	if t == "" || t == u.last {
		return
	}
	u.last = t
	_, _ = io.WriteString(u.w, ansi.SetWindowTitle(t))
}

// Format builds a title from the last path element of cwd. Control
// characters are dropped so the title cannot end its own sequence early.
func Format(prefix, cwd string, running bool) string {
	name := ""
	if cwd != "" {
		name = filepath.Base(cwd)
	}
	if prefix != "" {
		if name != "" {
			name = prefix + ": " + name
		} else {
			name = prefix
		}
	}
	if name == "" {
		return ""
	}
	if running {
		name += " [running]"
	}
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || (r >= 0x80 && r <= 0x9f) {
			return -1
		}
		return r
	}, name)
}
