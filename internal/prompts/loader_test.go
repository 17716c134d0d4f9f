package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_CommandPrompts(t *testing.T) {
	parse, err := Get(CommandsFile, KeyParseCommand)
	require.NoError(t, err)
	assert.Contains(t, parse, "{{.Input}}")
	for _, action := range []string{"call_all", "call_specific", "add_number", "remove_number", "view_logs", "get_statistics", "unknown"} {
		assert.Contains(t, parse, action)
	}

	respond, err := Get(CommandsFile, KeyGenerateResponse)
	require.NoError(t, err)
	assert.Contains(t, respond, "{{.Command}}")
	assert.Contains(t, respond, "{{.Result}}")
}

func TestGet_InvalidFile(t *testing.T) {
	_, err := Get("nonexistent.json", "some-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "prompt file nonexistent.json not found")
}

func TestGet_InvalidKey(t *testing.T) {
	_, err := Get(CommandsFile, "nonexistent-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestMustGet(t *testing.T) {
	assert.Panics(t, func() {
		MustGet("nonexistent.json", "some-key")
	})
	assert.NotPanics(t, func() {
		assert.NotEmpty(t, MustGet(CommandsFile, KeyParseCommand))
	})
}

func TestFormat(t *testing.T) {
	template := "Command {{.Command}} gave {{.Result}}"
	result := Format(template, map[string]string{
		"Command": "call {{.Result}}",
		"Result":  "ok",
	})
	assert.Equal(t, "Command call {{.Result}} gave ok", result)
}

func TestFormat_MissingKeyLeftInPlace(t *testing.T) {
	assert.Equal(t, "Hi {{.Name}}", Format("Hi {{.Name}}", nil))
}

func TestRender(t *testing.T) {
	prompt, err := Render(CommandsFile, KeyParseCommand, map[string]string{"Input": "call all numbers"})
	require.NoError(t, err)
	assert.Contains(t, prompt, `User Input: "call all numbers"`)
	assert.NotContains(t, prompt, "{{.Input}}")
}
