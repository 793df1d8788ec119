package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithoutAFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "./www", cfg.Storage.DocRoot)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
}

func TestLoadMergesYAMLFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emberweb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\nstorage:\n  doc_root: /srv/www\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/srv/www", cfg.Storage.DocRoot)
	assert.Equal(t, 100, cfg.Limits.MaxHeaderCount) // untouched default survives
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadEnvOverridesFileAndDefaults(t *testing.T) {
	t.Setenv("EMBERWEB_SERVER_PORT", "7000")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
}
