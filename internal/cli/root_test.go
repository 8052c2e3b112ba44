package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "kompass", cmd.Use)
	assert.Contains(t, cmd.Long, "persistent")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"build", "prove", "prove-raw", "show", "view", "prune", "run", "history", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	for _, name := range []string{"debug", "engine", "trace-file", "metrics-file"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing --%s", name)
	}
}

func TestProveCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	proveCmd, _, err := cmd.Find([]string{"prove"})
	require.NoError(t, err)

	startFlag := proveCmd.Flags().Lookup("start-symbol")
	require.NotNil(t, startFlag)
	assert.Equal(t, "main", startFlag.DefValue)

	for _, name := range []string{"project-dir", "proof-dir", "bug-report", "max-depth", "max-iterations", "reload"} {
		assert.NotNil(t, proveCmd.Flags().Lookup(name), "missing --%s", name)
	}
	assert.Equal(t, "C", proveCmd.Flags().Lookup("project-dir").Shorthand)
}

func TestProveRawCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	rawCmd, _, err := cmd.Find([]string{"prove-raw"})
	require.NoError(t, err)

	require.NotNil(t, rawCmd.Flags().Lookup("include"))
	require.NotNil(t, rawCmd.Flags().Lookup("exclude"))
	require.NotNil(t, rawCmd.Flags().Lookup("max-iterations"))
}

func TestShowCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	showCmd, _, err := cmd.Find([]string{"show"})
	require.NoError(t, err)

	outputFlag := showCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)
	require.NotNil(t, showCmd.Flags().Lookup("full"))
}

func TestViewCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	viewCmd, _, err := cmd.Find([]string{"view"})
	require.NoError(t, err)

	watchFlag := viewCmd.Flags().Lookup("watch")
	require.NotNil(t, watchFlag)
	assert.Equal(t, "false", watchFlag.DefValue)
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	updateFlag := testCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	iterFlag := testCmd.Flags().Lookup("max-iterations")
	require.NotNil(t, iterFlag)
	assert.Equal(t, "2", iterFlag.DefValue)
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "invalid", "build"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestArgumentErrors(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"show", "a", "b"}, "accepts at most 1 arg"},
		{[]string{"prune", "p"}, "accepts 2 arg"},
		{[]string{"prove-raw"}, "accepts 1 arg"},
		{[]string{"test"}, "accepts 1 arg"},
		{[]string{"history", "a", "b"}, "accepts at most 1 arg"},
	}
	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			cmd := NewRootCommand()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}
