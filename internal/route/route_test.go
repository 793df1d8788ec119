package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectPicksLongestPrefix(t *testing.T) {
	tbl := New()
	tbl.Add(&Route{Prefix: "/"})
	tbl.Add(&Route{Prefix: "/admin"})
	tbl.Add(&Route{Prefix: "/admin/users"})

	got := tbl.Select("/admin/users/1", "GET", "")
	require.NotNil(t, got)
	assert.Equal(t, "/admin/users", got.Prefix)
}

func TestSelectTiesBreakByInsertionOrder(t *testing.T) {
	tbl := New()
	first := &Route{Prefix: "/api"}
	second := &Route{Prefix: "/api"}
	tbl.Add(first)
	tbl.Add(second)

	got := tbl.Select("/api/widgets", "GET", "")
	require.NotNil(t, got)
	assert.Same(t, first, got)
}

func TestSelectRejectsMethodAndExtensionFilters(t *testing.T) {
	tbl := New()
	tbl.Add(&Route{
		Prefix:     "/upload",
		Methods:    map[string]bool{"PUT": true, "POST": true},
		Extensions: map[string]bool{"bin": true},
	})

	assert.Nil(t, tbl.Select("/upload/x.bin", "GET", "bin"))
	assert.Nil(t, tbl.Select("/upload/x.txt", "PUT", "txt"))
	assert.NotNil(t, tbl.Select("/upload/x.bin", "PUT", "bin"))
}

func TestRemove(t *testing.T) {
	tbl := New()
	tbl.Add(&Route{Prefix: "/admin"})
	require.True(t, tbl.Remove("/admin"))
	assert.Nil(t, tbl.Select("/admin", "GET", ""))
	assert.False(t, tbl.Remove("/admin"))
}
