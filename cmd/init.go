package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/timvw/oscwatch/internal/shellinit"
)

var initCmd = &cobra.Command{
	Use:   "init [bash|zsh|fish]",
	Short: "Print the shell integration script for your shell",
	Long: `Print a snippet that makes your shell emit OSC 133 prompt and command
marks and OSC 1337 CurrentDir reports. Without an argument the shell is
taken from $SHELL.

  bash: eval "$(oscwatch init bash)"   in ~/.bashrc
  zsh:  eval "$(oscwatch init zsh)"    in ~/.zshrc
  fish: oscwatch init fish | source    in ~/.config/fish/config.fish`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: shellinit.Supported(),
	RunE: func(cmd *cobra.Command, args []string) error {
		shell := os.Getenv("SHELL")
		if len(args) == 1 {
			shell = args[0]
		}
		if shell == "" {
			return fmt.Errorf("no shell given and $SHELL is not set")
		}
		script, err := shellinit.Script(shell)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), script)
		return err
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the oscwatch version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "oscwatch %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}
