package route

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDirectivesParsesRouteLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.conf")
	content := "# comment\n" +
		"user name=alice password=pw format=cleartext\n" +
		"route prefix=/admin/ methods=GET,POST abilities=admin auth=basic handlers=file,auth\n" +
		"route prefix=/ auth=none\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tbl := New()
	require.NoError(t, LoadDirectives(path, tbl))

	all := tbl.All()
	require.Len(t, all, 2)
	// Longer prefix sorts first.
	assert.Equal(t, "/admin/", all[0].Prefix)
	assert.Equal(t, AuthBasic, all[0].AuthType)
	assert.True(t, all[0].Methods["GET"])
	assert.True(t, all[0].Methods["POST"])
	assert.Equal(t, []string{"admin"}, all[0].Abilities)
	assert.Equal(t, []string{"file", "auth"}, all[0].Handlers)

	assert.Equal(t, "/", all[1].Prefix)
	assert.Equal(t, AuthNone, all[1].AuthType)
}

func TestLoadDirectivesMissingFileIsNoop(t *testing.T) {
	tbl := New()
	err := LoadDirectives(filepath.Join(t.TempDir(), "missing.conf"), tbl)
	require.NoError(t, err)
	assert.Empty(t, tbl.All())
}

func TestLoadDirectivesRejectsMissingPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.conf")
	require.NoError(t, os.WriteFile(path, []byte("route auth=none\n"), 0o644))

	tbl := New()
	err := LoadDirectives(path, tbl)
	assert.Error(t, err)
}
