package cmd

import (
	"fmt"
	"os"

	clog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/timvw/oscwatch/internal/events"
	"github.com/timvw/oscwatch/internal/logging"
	"github.com/timvw/oscwatch/internal/watch"
)

var (
	flagWatchTheme      string
	flagWatchFailedOnly bool
	flagWatchLogFile    string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live view of all shells started with \"oscwatch run\"",
	Long: `Listen on the event socket and show one row per session: its state,
working directory, and the exit code and duration of its last command.

Sessions whose last command failed are highlighted; press f to show only
those. Sessions that stop reporting disappear after event_ttl.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if flagWatchTheme != "" {
			cfg.Theme = flagWatchTheme
		}

		// The TUI owns the terminal, so logs go to a file or nowhere.
		logger := logging.Discard()
		if flagWatchLogFile != "" {
			f, err := os.OpenFile(flagWatchLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
			if err != nil {
				return fmt.Errorf("log file: %w", err)
			}
			defer f.Close()
			if logger, err = logging.New(f, cfg.LogLevel); err != nil {
				return err
			}
		}

		store := events.NewStore(cfg.EventTTLDuration)
		collector := events.NewCollector(store, cfg.EventSocket, logger)
		if err := collector.Start(ctx); err != nil {
			return fmt.Errorf("event collector: %w", err)
		}
		defer collector.Close()
		fmt.Fprintf(os.Stderr, "event collector: listening on %s\n", collector.SocketPath())

		tui := &watch.TUI{
			Store:           store,
			RefreshInterval: cfg.RefreshDuration,
			Theme:           watch.ThemeByName(cfg.Theme),
			FailedOnly:      flagWatchFailedOnly,
		}
		err = tui.Run(ctx)
		logDropped(logger, collector)
		return err
	},
}

func logDropped(logger *clog.Logger, c *events.Collector) {
	if n := c.Dropped(); n > 0 {
		logger.Warn("dropped malformed events", "count", n)
	}
}

func init() {
	watchCmd.Flags().StringVar(&flagWatchTheme, "theme", "", "color theme: dark, light")
	watchCmd.Flags().BoolVar(&flagWatchFailedOnly, "failed", false, "start with only failed sessions shown")
	watchCmd.Flags().StringVar(&flagWatchLogFile, "log-file", "", "write logs to this file while the TUI runs")
	rootCmd.AddCommand(watchCmd)
}
