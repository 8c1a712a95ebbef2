package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/timvw/oscwatch/internal/record"
)

var (
	flagReplayForward string
	flagReplayText    bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <recording>",
	Short: "Run a recording made by \"oscwatch run --record\" through the processor",
	Long: `Replay a session recording with its original read boundaries and print
the resulting events as JSON lines, exactly like "oscwatch scan".

Because chunk boundaries are preserved, replay reproduces how sequences
split across reads were handled during the live session. Try it with and
without --carry.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

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

		a, err := newAnalysis(cfg, logger, tel, cmd.OutOrStdout(), analysisOptions{
			session:     args[0],
			forwardPath: flagReplayForward,
			text:        flagReplayText,
		})
		if err != nil {
			return err
		}

		frames, replayErr := record.Replay(cmd.Context(), f, a.head)
		logger.Debug("replay finished", "frames", frames)
		if err := a.finish(); err != nil {
			return err
		}
		if replayErr != nil {
			return fmt.Errorf("replay %s after %d frames: %w", args[0], frames, replayErr)
		}
		return nil
	},
}

func init() {
	replayCmd.Flags().StringVar(&flagReplayForward, "forward", "", "write the forwarded output to this file")
	replayCmd.Flags().BoolVar(&flagReplayText, "text", false, "print a plain-text transcript instead of events")
	rootCmd.AddCommand(replayCmd)
}
