package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/tour-tracker/internal/config"
	"github.com/sakif/tour-tracker/internal/logging"
)

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "migrate", "ingest", "consume"}, names)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("db-driver"))
}

func TestMigrate_SQLiteIsNoop(t *testing.T) {
	t.Setenv("JWT_SECRET", "cmd-test-secret-0123456789")

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"migrate", "--db-path", filepath.Join(t.TempDir(), "tours.db")})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "nothing to do")
}

func TestIngest_RequiresKey(t *testing.T) {
	t.Setenv("JWT_SECRET", "cmd-test-secret-0123456789")
	t.Setenv("TM_API_KEY", "")

	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"ingest", "--dma", "222"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TM_API_KEY")
}

func TestOpenStore_SQLiteCreatesDirectory(t *testing.T) {
	cfg := &config.Config{DB: config.DBConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "nested", "tours.db"),
	}}

	store, err := openStore(context.Background(), cfg, logging.Discard(), false)
	require.NoError(t, err)
	defer store.Close()

	assert.NoError(t, store.Ping(context.Background()))
}
