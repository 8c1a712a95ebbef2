package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagScanChunk   int
	flagScanForward string
	flagScanText    bool
	flagScanSession string
)

var scanCmd = &cobra.Command{
	Use:   "scan [file]",
	Short: "Extract shell integration events from captured terminal output",
	Long: `Read raw terminal output from a file (or stdin) and run it through the
same processor "oscwatch run" uses.

Input is fed in chunks of --chunk bytes. Sequences split across chunks are
only recognized with --carry. Events are printed as JSON lines on stdout.
Use --forward to save the output as it would reach the terminal, or --text
to print a plain-text transcript instead of events.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagScanChunk <= 0 {
			return fmt.Errorf("--chunk must be positive, got %d", flagScanChunk)
		}

		in := io.Reader(os.Stdin)
		source := "stdin"
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in, source = f, args[0]
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		tel := initTelemetry(cmd.Context(), cfg)
		defer shutdownTelemetry(tel)

		session := flagScanSession
		if session == "" {
			session = source
		}
		a, err := newAnalysis(cfg, logger, tel, cmd.OutOrStdout(), analysisOptions{
			session:     session,
			forwardPath: flagScanForward,
			text:        flagScanText,
		})
		if err != nil {
			return err
		}

		readErr := feedChunks(in, flagScanChunk, a.head.FeedFromSession)
		a.head.Close()
		if err := a.finish(); err != nil {
			return err
		}
		if readErr != nil {
			return fmt.Errorf("read %s: %w", source, readErr)
		}
		return nil
	},
}

// feedChunks reads r in chunks of exactly size bytes, except for the last.
func feedChunks(r io.Reader, size int, feed func([]byte)) error {
	buf := make([]byte, size)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			feed(buf[:n])
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func init() {
	scanCmd.Flags().IntVar(&flagScanChunk, "chunk", 4096, "bytes fed to the processor per call")
	scanCmd.Flags().StringVar(&flagScanForward, "forward", "", "write the forwarded output to this file")
	scanCmd.Flags().BoolVar(&flagScanText, "text", false, "print a plain-text transcript instead of events")
	scanCmd.Flags().StringVar(&flagScanSession, "session", "", "session name in emitted events (default: the input name)")
	rootCmd.AddCommand(scanCmd)
}
