package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreLoadMissingFileReturnsEmptyTables(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "does-not-exist.conf"))
	tbl, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, tbl.Users)
	assert.Empty(t, tbl.Roles)
}

func TestFileStoreLoadParsesUserAndRoleDirectives(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.conf")
	content := "# comment line\n" +
		"role name=admin abilities=shutdown,configure\n" +
		"user name=alice password=deadbeef format=ha1 roles=admin\n"
	require.NoError(t, writeFile(path, content))

	s := NewFileStore(path)
	tbl, err := s.Load()
	require.NoError(t, err)

	require.Contains(t, tbl.Roles, "admin")
	assert.ElementsMatch(t, []string{"shutdown", "configure"}, tbl.Roles["admin"].Abilities)

	require.Contains(t, tbl.Users, "alice")
	u := tbl.Users["alice"]
	assert.Equal(t, "deadbeef", u.Password)
	assert.Equal(t, PasswordHA1, u.Format)
	assert.Equal(t, []string{"admin"}, u.Roles)
}

func TestFileStoreLoadRejectsUnknownDirective(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.conf")
	require.NoError(t, writeFile(path, "bogus name=x\n"))

	s := NewFileStore(path)
	_, err := s.Load()
	assert.Error(t, err)
}

func TestFileStoreLoadSkipsRouteDirectives(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.conf")
	require.NoError(t, writeFile(path, "route prefix=/admin/ auth=basic\n"))

	s := NewFileStore(path)
	tbl, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, tbl.Users)
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.conf")
	s := NewFileStore(path)

	original := NewTables()
	original.Roles["admin"] = &Role{Name: "admin", Abilities: []string{"shutdown", "configure"}}
	original.Users["alice"] = &User{Username: "alice", Password: "deadbeef", Format: PasswordHA1, Roles: []string{"admin"}}
	original.Users["bob"] = &User{Username: "bob", Password: "hunter2", Format: PasswordCleartext, Roles: nil}

	require.NoError(t, s.Write(original))
	reloaded, err := s.Load()
	require.NoError(t, err)

	assert.Equal(t, original.Roles["admin"].Abilities, reloaded.Roles["admin"].Abilities)
	assert.Equal(t, original.Users["alice"].Password, reloaded.Users["alice"].Password)
	assert.Equal(t, original.Users["alice"].Format, reloaded.Users["alice"].Format)
	assert.Equal(t, original.Users["bob"].Password, reloaded.Users["bob"].Password)
}

func TestFileStoreWritePreservesExistingRouteLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.conf")
	require.NoError(t, writeFile(path, "route prefix=/ auth=none\n"))

	s := NewFileStore(path)
	tbl, err := s.Load()
	require.NoError(t, err)

	tbl.Roles["admin"] = &Role{Name: "admin", Abilities: []string{"shutdown"}}
	require.NoError(t, s.Write(tbl))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "route prefix=/ auth=none")
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
