package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/autodialer/internal/commands"
	"github.com/jonathan/autodialer/internal/pipeline"
	"github.com/jonathan/autodialer/internal/response"
	"github.com/jonathan/autodialer/internal/types"
)

var (
	importFile string
	clearYes   bool
)

var importCmd = &cobra.Command{
	Use:   "import [text]",
	Short: "Import phone numbers from text, a text file or a CSV file",
	Long: `Import every phone number found in the arguments, in --file, or on stdin
when --file is "-". Files ending in .csv are read cell by cell.`,
	RunE: runImport,
}

var numbersCmd = &cobra.Command{
	Use:   "numbers",
	Short: "Manage stored phone numbers",
}

var numbersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored phone numbers",
	Args:  cobra.NoArgs,
	RunE:  runNumbersList,
}

var numbersAddCmd = &cobra.Command{
	Use:   "add <number>",
	Short: "Store a phone number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNumberAction(cmd, types.ActionAddNumber, args[0])
	},
}

var numbersRemoveCmd = &cobra.Command{
	Use:   "remove <number>",
	Short: "Delete a stored phone number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNumberAction(cmd, types.ActionRemoveNumber, args[0])
	},
}

var numbersClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored phone number",
	Args:  cobra.NoArgs,
	RunE:  runNumbersClear,
}

func init() {
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", `File to import ("-" for stdin)`)
	numbersClearCmd.Flags().BoolVar(&clearYes, "yes", false, "Confirm deleting every number")

	numbersCmd.AddCommand(numbersListCmd, numbersAddCmd, numbersRemoveCmd, numbersClearCmd)
	rootCmd.AddCommand(importCmd, numbersCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	if importFile == "" && len(args) == 0 {
		return errors.New("provide numbers as arguments or use --file")
	}

	a, err := newApp(cmd.Context(), cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	var res pipeline.ImportResult
	switch {
	case importFile == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		res = a.proc.ImportNumbers(cmd.Context(), string(data))
	case importFile != "":
		f, err := os.Open(importFile)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", importFile, err)
		}
		defer f.Close()
		if strings.EqualFold(filepath.Ext(importFile), ".csv") {
			res = a.proc.ImportCSV(cmd.Context(), f)
		} else {
			data, err := io.ReadAll(f)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", importFile, err)
			}
			res = a.proc.ImportNumbers(cmd.Context(), string(data))
		}
	default:
		res = a.proc.ImportNumbers(cmd.Context(), strings.Join(args, "\n"))
	}

	if jsonOutput {
		if err := a.printJSON(res); err != nil {
			return err
		}
	} else {
		a.printer.PrintImport(res)
	}
	if !res.Succeeded() {
		return errors.New(res.Error)
	}
	return nil
}

func runNumbersList(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.store.GetAllNumbers(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list numbers: %w", err)
	}
	if jsonOutput {
		return a.printJSON(records)
	}
	a.printer.PrintNumbers(records)
	return nil
}

func runNumberAction(cmd *cobra.Command, action types.Action, number string) error {
	a, err := newApp(cmd.Context(), cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.proc.Execute(cmd.Context(), action, types.Parameters{types.ParamPhoneNumber: number})
	return a.printResult(res)
}

func runNumbersClear(cmd *cobra.Command, _ []string) error {
	if !clearYes {
		return errors.New("refusing to delete every number without --yes")
	}
	a, err := newApp(cmd.Context(), cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	removed, err := a.store.ClearNumbers(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to clear numbers: %w", err)
	}
	if jsonOutput {
		return a.printJSON(map[string]int64{"removed": removed})
	}
	_, err = fmt.Fprintf(a.out, "Removed %d phone numbers.\n", removed)
	return err
}

// printResult prints a direct command result and turns a failure into an error
func (a *app) printResult(res commands.Result) error {
	if jsonOutput {
		if err := a.printJSON(res); err != nil {
			return err
		}
	} else if res.Succeeded() {
		if _, err := fmt.Fprintln(a.out, response.Template(res)); err != nil {
			return err
		}
	}
	if !res.Succeeded() {
		msg := res.Error
		if res.Suggestion != "" {
			msg += ". " + res.Suggestion
		}
		return errors.New(msg)
	}
	return nil
}
