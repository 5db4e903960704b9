package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port":":9090","store":"file","autosave":"30s"}`), 0o600))

	o := Default()
	require.NoError(t, LoadFile(path, o))
	assert.Equal(t, ":9090", o.Port)
	assert.Equal(t, StoreFile, o.Store)
	assert.Equal(t, 30*time.Second, o.AutoSave.Duration)
	assert.Equal(t, "sqlite", o.Driver)
}

func TestLoadFile_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "driver = \"postgres\"\ndatabase_dsn = \"postgres://localhost/creds\"\nautosave = \"0s\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	o := Default()
	require.NoError(t, LoadFile(path, o))
	assert.Equal(t, "postgres", o.Driver)
	assert.Equal(t, "postgres://localhost/creds", o.DatabaseDSN)
	assert.Zero(t, o.AutoSave.Duration)
}

func TestLoadFile_MissingAndInvalid(t *testing.T) {
	dir := t.TempDir()
	o := Default()
	require.NoError(t, LoadFile(filepath.Join(dir, "absent.json"), o))
	assert.Equal(t, Default(), o)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"port":`), 0o600))
	err := LoadFile(bad, o)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", ":7070")
	t.Setenv("MASTER_PASSWORD", "pw")
	t.Setenv("LOG_LEVEL", "")

	o := Default()
	ApplyEnv(o)
	assert.Equal(t, ":7070", o.Port)
	assert.Equal(t, "pw", o.MasterPassword)
	assert.Equal(t, "info", o.LogLevel)
}
