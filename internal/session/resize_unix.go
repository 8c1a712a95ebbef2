//go:build !windows

package session

import (
	"os"
	"os/signal"
	"syscall"

	clog "github.com/charmbracelet/log"
	"github.com/creack/pty"
)

// watchResize copies the host terminal size to the PTY now and on every
// SIGWINCH until stop is called.
func watchResize(host, ptmx *os.File, logger *clog.Logger) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGWINCH)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ch:
				if err := pty.InheritSize(host, ptmx); err != nil {
					logger.Debug("resize pty", "err", err)
				}
			case <-done:
				return
			}
		}
	}()
	ch <- syscall.SIGWINCH
	return func() {
		signal.Stop(ch)
		close(done)
	}
}
