package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sessionmesh/config"
	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/transcript"
	"github.com/hupe1980/sessionmesh/transcript/sqlite"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTranscriptCommand(t *testing.T) {
	t.Setenv("SESSIONMESH_SECRET", testSecret)
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "transcripts.db")

	cfg := config.Default()
	cfg.Store.Driver = config.DriverSQLite
	cfg.Store.Path = dbPath
	cfgPath := filepath.Join(dir, "sessionmesh.yaml")
	require.NoError(t, config.SaveConfig(cfg, cfgPath))

	sealer, err := transcript.NewSealer([]byte(testSecret))
	require.NoError(t, err)
	backend, err := sqlite.Open(dbPath)
	require.NoError(t, err)
	store := transcript.NewStore(sealer, backend)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "u1", "s1", core.Interaction{Input: "hi", Response: "hello"}))
	require.NoError(t, store.WriteSummary(ctx, "u1", "s1", "said hi"))
	require.NoError(t, store.Close())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"transcript", "u1", "--config", cfgPath})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		configPath = ""
		transcriptSession = ""
	})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), "Session s1 (1 turns)")
	assert.Contains(t, out.String(), "user: hi")
	assert.Contains(t, out.String(), "bot:  hello")
	assert.Contains(t, out.String(), "Latest summary: said hi")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "sessionmesh ")
}
