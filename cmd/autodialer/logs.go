package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/autodialer/internal/commands"
	"github.com/jonathan/autodialer/internal/types"
)

var (
	logsNumber string
	logsStatus string
	logsLimit  int
	statsDays  int
	logsYes    bool
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent call attempts",
	Args:  cobra.NoArgs,
	RunE:  runLogs,
}

var logsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every call log entry",
	Args:  cobra.NoArgs,
	RunE:  runLogsClear,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregated call statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	logsCmd.Flags().StringVar(&logsNumber, "number", "", "Only show calls to this number")
	logsCmd.Flags().StringVar(&logsStatus, "status", "", "Only show calls with this status (completed, failed, busy, ...)")
	logsCmd.Flags().IntVar(&logsLimit, "limit", 0, "Maximum entries to show (default 50)")
	logsClearCmd.Flags().BoolVar(&logsYes, "yes", false, "Confirm deleting every call log entry")
	statsCmd.Flags().StringVar(&logsNumber, "number", "", "Only count calls to this number")
	statsCmd.Flags().IntVar(&statsDays, "days", 0, "Only count calls from the last N days")

	logsCmd.AddCommand(logsClearCmd)
	rootCmd.AddCommand(logsCmd, statsCmd)
}

// numberFilter normalizes an optional --number flag
func (a *app) numberFilter(params types.Parameters) error {
	if logsNumber == "" {
		return nil
	}
	number, err := a.proc.Validator().Normalize(logsNumber)
	if err != nil {
		return err
	}
	params[types.ParamPhoneNumber] = number
	return nil
}

func runLogs(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	params := types.Parameters{}
	if err := a.numberFilter(params); err != nil {
		return err
	}
	if logsStatus != "" {
		params[types.ParamStatus] = logsStatus
	}
	if logsLimit > 0 {
		params[types.ParamLimit] = logsLimit
	}

	res := a.proc.Execute(cmd.Context(), types.ActionViewLogs, params)
	if payload, ok := res.Payload.(commands.LogsPayload); ok && !jsonOutput {
		a.printer.PrintCallLogs(payload.Logs)
		return nil
	}
	return a.printResult(res)
}

func runStats(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	params := types.Parameters{}
	if err := a.numberFilter(params); err != nil {
		return err
	}
	if statsDays > 0 {
		params[types.ParamDays] = statsDays
	}

	res := a.proc.Execute(cmd.Context(), types.ActionGetStatistics, params)
	if payload, ok := res.Payload.(commands.StatisticsPayload); ok && !jsonOutput {
		a.printer.PrintStatistics(payload.Statistics)
		return nil
	}
	return a.printResult(res)
}

func runLogsClear(cmd *cobra.Command, _ []string) error {
	if !logsYes {
		return errors.New("refusing to delete every call log without --yes")
	}
	a, err := newApp(cmd.Context(), cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	removed, err := a.store.ClearCallLogs(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to clear call logs: %w", err)
	}
	if jsonOutput {
		return a.printJSON(map[string]int64{"removed": removed})
	}
	_, err = fmt.Fprintf(a.out, "Removed %d call log entries.\n", removed)
	return err
}
