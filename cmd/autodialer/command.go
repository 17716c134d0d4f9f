package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/autodialer/internal/commands"
)

var commandCmd = &cobra.Command{
	Use:   "command <text>",
	Short: "Run a plain-English command",
	Long: `Parse and execute a natural-language command, for example:

  autodialer command "call all numbers"
  autodialer command "add 18001234567"
  autodialer command "show the last 10 failed calls"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

func init() {
	rootCmd.AddCommand(commandCmd)
}

func runCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	env := a.proc.Process(cmd.Context(), strings.Join(args, " "))
	if jsonOutput {
		if err := a.printJSON(env); err != nil {
			return err
		}
	} else {
		a.printer.PrintEnvelope(env)
	}
	if env.Status != commands.StatusSuccess {
		return errors.New(env.Error)
	}
	return nil
}
