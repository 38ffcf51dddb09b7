package commands

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubcommandFlags(t *testing.T) {
	flags := &globalFlags{}
	commands := map[string]*cobra.Command{
		"apply":  Apply(flags),
		"status": Status(flags),
		"plan":   Plan(flags),
		"unlock": Unlock(flags),
		"init":   Init(),
	}

	tests := []struct {
		command   string
		flag      string
		shorthand string
		defValue  string
	}{
		{command: "apply", flag: "config", shorthand: "c"},
		{command: "apply", flag: "metrics-file"},
		{command: "status", flag: "config", shorthand: "c"},
		{command: "status", flag: "audit", defValue: "false"},
		{command: "status", flag: "output", shorthand: "o", defValue: "text"},
		{command: "plan", flag: "config", shorthand: "c"},
		{command: "unlock", flag: "config", shorthand: "c"},
		{command: "unlock", flag: "force", defValue: "false"},
		{command: "init", flag: "output", shorthand: "o", defValue: "splunkctl.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.command+" "+tt.flag, func(t *testing.T) {
			cmd := commands[tt.command]
			require.NotNil(t, cmd)
			assert.Equal(t, tt.command, cmd.Use)
			assert.NotNil(t, cmd.RunE)

			flag := cmd.Flags().Lookup(tt.flag)
			require.NotNil(t, flag, "flag %s should exist", tt.flag)
			assert.Equal(t, tt.shorthand, flag.Shorthand)
			assert.Equal(t, tt.defValue, flag.DefValue)
		})
	}
}

func TestUnlock_WithoutForceFails(t *testing.T) {
	root := Root()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"unlock", "-c", "does-not-matter.yaml"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")
}

func TestStatus_RejectsUnknownOutput(t *testing.T) {
	root := Root()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"status", "-o", "yaml"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
}
