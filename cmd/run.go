package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/timvw/oscwatch/internal/events"
	"github.com/timvw/oscwatch/internal/middleware"
	"github.com/timvw/oscwatch/internal/record"
	"github.com/timvw/oscwatch/internal/session"
	"github.com/timvw/oscwatch/internal/title"
	"github.com/timvw/oscwatch/internal/tracker"
)

var (
	flagRunShell   string
	flagRunName    string
	flagRunRecord  string
	flagRunNoTitle bool
)

var runCmd = &cobra.Command{
	Use:   "run [-- shell args...]",
	Short: "Start your shell behind the shell integration filter",
	Long: `Start an interactive shell in a pseudo-terminal and pass its output
through the OSC processor on its way to this terminal.

OSC 133 prompt and command marks are removed from the output and turned
into session status events, published on the event socket for
"oscwatch watch". OSC 1337 CurrentDir reports update the window title.

The shell needs to emit the sequences; see "oscwatch init".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGHUP)
		defer stop()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if flagRunShell != "" {
			cfg.Shell = flagRunShell
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		tel := initTelemetry(ctx, cfg)
		defer shutdownTelemetry(tel)
		metrics, tracer := telemetryParts(tel)

		shell, err := session.DetectShell(cfg.Shell)
		if err != nil {
			return err
		}
		name := flagRunName
		if name == "" {
			name = session.DefaultName(ctx, shell)
		}

		proc := newProcessor(cfg, logger, metrics)
		links := []middleware.Middleware{}
		if path := recordingPath(flagRunRecord, cfg.RecordDir, name, time.Now()); path != "" {
			if dir := filepath.Dir(path); dir != "" {
				if err := os.MkdirAll(dir, 0o700); err != nil {
					return fmt.Errorf("record dir: %w", err)
				}
			}
			rec, err := record.Create(path, logger)
			if err != nil {
				return err
			}
			logger.Info("recording session", "file", path)
			links = append(links, rec)
		}
		links = append(links, proc, middleware.NewWriterSink(os.Stdout, false, logger))
		head, err := middleware.Chain(links...)
		if err != nil {
			return err
		}

		pub := events.NewPublisher(cfg.EventSocket, logger)
		defer pub.Close()
		tr := tracker.Attach(proc, tracker.Options{
			Session: name,
			Sink:    pub,
			Logger:  logger,
			Metrics: metrics,
			Tracer:  tracer,
		})
		defer tr.Detach()

		if cfg.TitleEnabled() && !flagRunNoTitle {
			u := title.Attach(proc, os.Stdout, cfg.TitlePrefix)
			defer u.Detach()
		}

		s, err := session.New(session.Options{
			Shell:  shell,
			Args:   args,
			Name:   name,
			Stdin:  os.Stdin,
			Host:   os.Stdin,
			Output: head,
			Logger: logger,
		})
		if err != nil {
			return err
		}

		code, err := s.Run(ctx)
		if err != nil && ctx.Err() == nil {
			return err
		}
		logger.Debug("session ended", "exit", code, "commands", len(tr.History()))
		if code != 0 {
			return &exitCodeError{code: exitStatus(code)}
		}
		return nil
	},
}

// recordingPath resolves where to record. An explicit file wins over the
// configured directory; neither means no recording.
func recordingPath(file, dir, name string, now time.Time) string {
	if file != "" {
		return file
	}
	if dir == "" {
		return ""
	}
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', ':', '\\', ' ':
			return '_'
		}
		return r
	}, name)
	return filepath.Join(dir, fmt.Sprintf("%s-%s.oscrec.zst", safe, now.Format("20060102-150405")))
}

// exitStatus maps a signal death (-1) to the conventional failure status.
func exitStatus(code int) int {
	if code < 0 {
		return 1
	}
	return code
}

func init() {
	runCmd.Flags().StringVar(&flagRunShell, "shell", "", "shell to run (default: $SHELL, then /bin/bash, then /bin/sh)")
	runCmd.Flags().StringVar(&flagRunName, "name", "", "session name in published events (default: tmux pane or shell-pid)")
	runCmd.Flags().StringVar(&flagRunRecord, "record", "", "record the raw session output to this file")
	runCmd.Flags().BoolVar(&flagRunNoTitle, "no-title", false, "do not update the terminal title")
	rootCmd.AddCommand(runCmd)
}
