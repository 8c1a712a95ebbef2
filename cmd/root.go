package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/timvw/oscwatch/internal/config"
	"github.com/timvw/oscwatch/internal/logging"
	telem "github.com/timvw/oscwatch/internal/otel"
)

// Version is injected at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var (
	// Global flags.
	flagLogLevel    string
	flagHome        string
	flagCarry       bool
	flagEventSocket string
)

var rootCmd = &cobra.Command{
	Use:   "oscwatch",
	Short: "Follow shell integration sequences in a terminal session",
	Long: `oscwatch runs your shell behind a small output filter that understands
shell integration escape sequences (OSC 133 prompt and command marks, and
OSC 1337 CurrentDir reports).

It strips the OSC 133 marks from what reaches your terminal, tracks the
prompt and command lifecycle, keeps the window title in sync with the
working directory, and publishes session status for "oscwatch watch".

Configuration is loaded from .oscwatch.yaml, ~/.config/oscwatch/config.yaml
and OSCWATCH_* environment variables. Flags override both.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// exitCodeError carries the shell's exit status out of a command so that
// deferred cleanup runs before the process exits.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitCodeError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", envOrDefault("OSCWATCH_LOG_LEVEL", ""), "log level: debug, info, warn, error (default: info)")
	rootCmd.PersistentFlags().StringVar(&flagHome, "home", envOrDefault("OSCWATCH_HOME", ""), "directory that replaces a leading ~ in reported paths (default: your home)")
	rootCmd.PersistentFlags().BoolVar(&flagCarry, "carry", envBool("OSCWATCH_CARRY_PARTIAL", false), "hold back sequences split across reads and retry them with the next read")
	rootCmd.PersistentFlags().StringVar(&flagEventSocket, "event-socket", envOrDefault("OSCWATCH_EVENT_SOCKET", ""), "unix datagram socket for session status events")
}

// loadConfig loads file and env configuration and applies global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagHome != "" {
		cfg.HomeDir = flagHome
	}
	if rootCmd.PersistentFlags().Changed("carry") {
		cfg.CarryPartial = flagCarry
	}
	if flagEventSocket != "" {
		cfg.EventSocket = flagEventSocket
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*clog.Logger, error) {
	logger, err := logging.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if cfg.ConfigFile != "" {
		logger.Debug("config loaded", "file", cfg.ConfigFile)
	}
	return logger, nil
}

// initTelemetry never fails the command; without telemetry the
// instruments are no-ops.
func initTelemetry(ctx context.Context, cfg *config.Config) *telem.Telemetry {
	// Wire build version into OTEL service metadata
	telem.Version = Version

	tel, err := telem.Init(ctx, telem.OTELConfig{
		Endpoint: cfg.OTELEndpoint,
		Headers:  cfg.OTELHeaders,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: otel init failed: %v\n", err)
		return nil
	}
	return tel
}

func shutdownTelemetry(tel *telem.Telemetry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tel.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: otel shutdown: %v\n", err)
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// envBool reports the boolean value of key. Unparsable values fall back to
// defaultValue here; config.Load reports them as errors.
func envBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}
