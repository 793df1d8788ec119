package auth

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUsersFixture() *userTable {
	tbl := newUserTable(20, nil)
	tbl.addUser(&User{Username: "alice", Password: "pw", Format: PasswordCleartext})
	return tbl
}

func TestBasicAuthChallengeAndSuccess(t *testing.T) {
	p := &BasicProtocol{Realm: "site", Users: newUsersFixture()}

	creds, ok, err := p.ParseAuth("", nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, `Basic realm="site"`, p.AskLogin())

	token := base64.StdEncoding.EncodeToString([]byte("alice:pw"))
	creds, ok, err = p.ParseAuth("Basic "+token, nil)
	require.NoError(t, err)
	require.True(t, ok)

	vr := p.Verify(creds, "GET", "/admin/")
	assert.True(t, vr.OK)
	assert.Equal(t, "alice", vr.Username)
}

func TestBasicAuthWrongPassword(t *testing.T) {
	p := &BasicProtocol{Realm: "site", Users: newUsersFixture()}
	token := base64.StdEncoding.EncodeToString([]byte("alice:wrong"))
	creds, ok, err := p.ParseAuth("Basic "+token, nil)
	require.NoError(t, err)
	require.True(t, ok)

	vr := p.Verify(creds, "GET", "/")
	assert.False(t, vr.OK)
}

func TestBasicAuthMalformed(t *testing.T) {
	p := &BasicProtocol{Realm: "site", Users: newUsersFixture()}
	_, _, err := p.ParseAuth("Basic not-base64!!", nil)
	assert.Error(t, err)
}

func TestBasicAuthHA1Storage(t *testing.T) {
	tbl := newUserTable(20, nil)
	tbl.addUser(&User{Username: "alice", Password: HA1("alice", "site", "pw"), Format: PasswordHA1})
	p := &BasicProtocol{Realm: "site", Users: tbl}

	token := base64.StdEncoding.EncodeToString([]byte("alice:pw"))
	creds, _, _ := p.ParseAuth("Basic "+token, nil)
	vr := p.Verify(creds, "GET", "/")
	assert.True(t, vr.OK)
}
