package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/beatsim/internal/config"
	"github.com/san-kum/beatsim/internal/storage"
)

func TestCellFlagsKeepTheirDefaults(t *testing.T) {
	root := newRootCmd()

	cell, _, err := root.Find([]string{"cell"})
	require.NoError(t, err)
	assert.Equal(t, "100", cell.Flags().Lookup("end").DefValue)
	assert.Equal(t, "0.01", cell.Flags().Lookup("dt").DefValue)

	// Commands registered after cell must not overwrite its values.
	assert.Equal(t, 100.0, cellEnd)
	assert.Equal(t, 0.01, cellDt)
	assert.Equal(t, config.DefaultDuration, end)
	assert.Equal(t, config.DefaultDt, dt)
}

func TestCellCommand(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"cell", "passive", "--end", "1", "--dt", "0.1"})
	require.NoError(t, root.Execute())
	assert.Equal(t, 1.0, cellEnd)
}

func TestExportPrintsTracePath(t *testing.T) {
	dir := t.TempDir()

	root := newRootCmd()
	root.SetArgs([]string{"run", "passive_mode", "--data", dir})
	require.NoError(t, root.Execute())

	runs, err := storage.New(dir).List()
	require.NoError(t, err)
	require.Len(t, runs, 1)

	var out bytes.Buffer
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"export", runs[0].ID, "--data", dir})
	require.NoError(t, root.Execute())
	assert.Equal(t, filepath.Join(dir, runs[0].ID, "trace.csv")+"\n", out.String())

	root = newRootCmd()
	root.SetArgs([]string{"export", "missing", "--data", dir})
	assert.ErrorIs(t, root.Execute(), storage.ErrRunNotFound)
}
