package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "monitor")
	assert.Contains(t, names, "simulate")

	// the bare root command accepts the monitor flags
	assert.NotNil(t, root.Flags().Lookup("samples"))
	assert.NotNil(t, root.Flags().Lookup("listen"))
}

func TestMonitorCommand_FlagsOverrideConfig(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"subcommand samples", []string{"monitor", "--samples", "1"}, "training.samples"},
		{"root samples", []string{"--samples", "1"}, "training.samples"},
		{"zero duration", []string{"monitor", "--duration", "0s"}, "live.duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newRootCommand()
			root.SetArgs(tt.args)
			err := root.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSimulateCommand_ValidatesConfig(t *testing.T) {
	t.Setenv("BUSMON_SIMULATOR_SENSOR_INTERVAL", "0s")

	root := newRootCommand()
	root.SetArgs([]string{"simulate"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "simulator.sensor_interval")
}

func TestSimulateCommand_EmptyTarget(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"simulate", "--target", ""})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "simulator.target")
}
