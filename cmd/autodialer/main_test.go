package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/autodialer/internal/config"
	"github.com/jonathan/autodialer/internal/store"
)

// resetFlags restores every flag to its default so tests sharing rootCmd stay independent
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// cliEnv isolates the CLI from credentials in the developer's environment
func cliEnv(t *testing.T) string {
	t.Helper()
	for _, key := range []string{"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_PHONE_NUMBER", "GEMINI_API_KEY", "DATABASE_URL"} {
		t.Setenv(key, "")
	}
	t.Setenv("TEST_MODE", "true")
	t.Setenv("ENVIRONMENT", "development")
	return "sqlite://" + filepath.Join(t.TempDir(), "autodialer.db")
}

func runCLI(t *testing.T, dbURL string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--db-url", dbURL}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestNumbersLifecycle(t *testing.T) {
	db := cliEnv(t)

	out, err := runCLI(t, db, "numbers", "add", "1800 123 4567")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Added +9118001234567")

	_, err = runCLI(t, db, "numbers", "add", "18001234567")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	out, err = runCLI(t, db, "numbers", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "+91 1800 123 4567")

	out, err = runCLI(t, db, "--json", "numbers", "list")
	require.NoError(t, err)
	var records []store.NumberRecord
	require.NoError(t, json.Unmarshal([]byte(out), &records), out)
	require.Len(t, records, 1)
	assert.Equal(t, "+9118001234567", records[0].Number)

	out, err = runCLI(t, db, "numbers", "remove", "+9118001234567")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Removed")

	out, err = runCLI(t, db, "numbers", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No phone numbers stored")
}

func TestNumbersAdd_TestModeRejectsMobile(t *testing.T) {
	db := cliEnv(t)

	_, err := runCLI(t, db, "numbers", "add", "+919876543210")

	assert.Error(t, err)
}

func TestNumbersClear(t *testing.T) {
	db := cliEnv(t)
	_, err := runCLI(t, db, "import", "18001234567", "18007654321")
	require.NoError(t, err)

	_, err = runCLI(t, db, "numbers", "clear")
	assert.ErrorContains(t, err, "--yes")

	out, err := runCLI(t, db, "numbers", "clear", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 2 phone numbers.")
}

func TestImport_CSVFile(t *testing.T) {
	db := cliEnv(t)
	path := filepath.Join(t.TempDir(), "contacts.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,number\nhelpline,18001234567\nbad,1234567\n"), 0o600))

	out, err := runCLI(t, db, "import", "--file", path)

	require.NoError(t, err, out)
	assert.Contains(t, out, "Import completed: 1 added, 0 already existed, 1 invalid")
}

func TestImport_RequiresInput(t *testing.T) {
	db := cliEnv(t)

	_, err := runCLI(t, db, "import")

	assert.ErrorContains(t, err, "--file")
}

func TestCommand_AddNumber(t *testing.T) {
	db := cliEnv(t)

	out, err := runCLI(t, db, "command", "add", "18001234567")

	require.NoError(t, err, out)
	assert.Contains(t, out, "PARSED COMMAND")
	assert.Contains(t, out, "add_number")
	assert.Contains(t, out, "Added +9118001234567 to your contact list.")
}

func TestCommand_JSON(t *testing.T) {
	db := cliEnv(t)

	out, err := runCLI(t, db, "--json", "command", "show call logs")

	require.NoError(t, err, out)
	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &env), out)
	assert.Equal(t, "view_logs", env["action"])
}

func TestCall_WithoutTelephony(t *testing.T) {
	db := cliEnv(t)

	_, err := runCLI(t, db, "call", "18001234567")
	assert.ErrorContains(t, err, "Telephony provider not available")

	_, err = runCLI(t, db, "refresh", "CA123")
	assert.ErrorContains(t, err, "telephony provider not available")
}

func TestLogsAndStats(t *testing.T) {
	db := cliEnv(t)

	out, err := runCLI(t, db, "logs")
	require.NoError(t, err)
	assert.Contains(t, out, "No call logs found")

	_, err = runCLI(t, db, "logs", "--status", "exploded")
	assert.ErrorContains(t, err, "Invalid status filter")

	out, err = runCLI(t, db, "stats", "--days", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "CALL STATISTICS")
	assert.Contains(t, out, "Total calls:   0")
}

func TestLogsClear(t *testing.T) {
	db := cliEnv(t)

	_, err := runCLI(t, db, "logs", "clear")
	assert.ErrorContains(t, err, "--yes")

	out, err := runCLI(t, db, "logs", "clear", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 0 call log entries.")
}

func TestStatus_NotOperationalWithoutProviders(t *testing.T) {
	db := cliEnv(t)

	out, err := runCLI(t, db, "status")

	assert.ErrorContains(t, err, "not operational")
	assert.Contains(t, out, "SYSTEM STATUS")
}

func TestMigrate(t *testing.T) {
	db := cliEnv(t)

	out, err := runCLI(t, db, "migrate")

	require.NoError(t, err)
	assert.Contains(t, out, "up to date")
}

func TestCallingConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.MaxRetries = 4
	cfg.RetryBaseDelay = config.Duration(3 * time.Second)
	cfg.RetryMaxDelay = config.Duration(time.Minute)
	cfg.ProviderTimeout = config.Duration(10 * time.Second)
	cfg.DefaultMessage = "Hi"

	c := callingConfig(&cfg)

	assert.Equal(t, 4, c.MaxRetries)
	assert.Equal(t, 3*time.Second, c.BaseDelay)
	assert.Equal(t, time.Minute, c.MaxDelay)
	assert.Equal(t, 10*time.Second, c.ProviderTimeout)
	assert.Equal(t, "Hi", c.DefaultMessage)
}
