package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/autodialer/internal/commands"
	"github.com/jonathan/autodialer/internal/types"
)

var (
	callMessage   string
	callAllDelay  int
	refreshNumber string
)

var callCmd = &cobra.Command{
	Use:   "call <number>",
	Short: "Call one phone number",
	Args:  cobra.ExactArgs(1),
	RunE:  runCall,
}

var callAllCmd = &cobra.Command{
	Use:   "call-all",
	Short: "Call every stored phone number, one at a time",
	Args:  cobra.NoArgs,
	RunE:  runCallAll,
}

var refreshCmd = &cobra.Command{
	Use:   "refresh <call-id>",
	Short: "Fetch a call's current status from the provider and log it",
	Args:  cobra.ExactArgs(1),
	RunE:  runRefresh,
}

func init() {
	callCmd.Flags().StringVarP(&callMessage, "message", "m", "", "Message spoken to the callee")
	callAllCmd.Flags().StringVarP(&callMessage, "message", "m", "", "Message spoken to each callee")
	callAllCmd.Flags().IntVar(&callAllDelay, "delay", -1, "Seconds between calls (defaults to CALL_DELAY)")
	refreshCmd.Flags().StringVar(&refreshNumber, "number", "", "Phone number the call was placed to")

	rootCmd.AddCommand(callCmd, callAllCmd, refreshCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	params := types.Parameters{types.ParamPhoneNumber: args[0]}
	if callMessage != "" {
		params[types.ParamMessage] = callMessage
	}
	return a.printResult(a.proc.Execute(cmd.Context(), types.ActionCallSpecific, params))
}

func runCallAll(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	params := types.Parameters{}
	if callMessage != "" {
		params[types.ParamMessage] = callMessage
	}
	if callAllDelay >= 0 {
		params[types.ParamDelay] = callAllDelay
	}

	res := a.proc.Execute(cmd.Context(), types.ActionCallAll, params)
	if bulk, ok := res.Payload.(commands.BulkCallPayload); ok && !jsonOutput {
		a.printer.PrintBatchStatistics(bulk.Statistics)
	}
	return a.printResult(res)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	orch := a.proc.Orchestrator()
	if orch == nil {
		return errors.New("telephony provider not available. Check Twilio configuration")
	}

	number := refreshNumber
	if number != "" {
		if number, err = a.proc.Validator().Normalize(number); err != nil {
			return err
		}
	}

	info, err := orch.RefreshStatus(cmd.Context(), args[0], number)
	if err != nil {
		return fmt.Errorf("failed to refresh call %s: %w", args[0], err)
	}
	if jsonOutput {
		return a.printJSON(info)
	}
	_, err = fmt.Fprintf(a.out, "Call %s is %s (%ds)\n", info.ID, info.Status, info.Duration)
	return err
}

