//go:build windows

package session

import (
	"os"

	clog "github.com/charmbracelet/log"
)

func watchResize(_, _ *os.File, _ *clog.Logger) (stop func()) {
	return func() {}
}
