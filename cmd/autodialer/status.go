package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/autodialer/internal/pipeline"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the language model, telephony provider and database",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(statusCmd, migrateCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	st := a.proc.SystemStatus(cmd.Context())
	if jsonOutput {
		if err := a.printJSON(st); err != nil {
			return err
		}
	} else {
		a.printer.PrintSystemStatus(st)
	}
	if st.Overall == pipeline.NotOperational {
		return fmt.Errorf("%s", st.Message)
	}
	return nil
}

// runMigrate opens the store, which applies any pending migrations
func runMigrate(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.Ping(cmd.Context()); err != nil {
		return fmt.Errorf("database not reachable: %w", err)
	}
	_, err = fmt.Fprintln(a.out, "Database schema is up to date.")
	return err
}
