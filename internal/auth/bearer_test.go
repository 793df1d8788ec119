package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBearerFixture(t *testing.T) *BearerProtocol {
	t.Helper()
	tbl := newUserTable(20, nil)
	tbl.addUser(&User{Username: "alice", Password: "pw", Format: PasswordCleartext})
	return &BearerProtocol{Secret: []byte("test-secret-key-material"), Issuer: "emberweb", Users: tbl, Lifetime: time.Hour}
}

func TestBearerIssueAndVerify(t *testing.T) {
	p := newBearerFixture(t)
	token, err := p.Issue("alice")
	require.NoError(t, err)

	creds, ok, err := p.ParseAuth("Bearer "+token, nil)
	require.NoError(t, err)
	require.True(t, ok)

	vr := p.Verify(creds, "GET", "/")
	assert.True(t, vr.OK)
	assert.Equal(t, "alice", vr.Username)
}

func TestBearerRejectsUnknownUser(t *testing.T) {
	p := newBearerFixture(t)
	token, err := p.Issue("ghost")
	require.NoError(t, err)

	creds, _, _ := p.ParseAuth("Bearer "+token, nil)
	vr := p.Verify(creds, "GET", "/")
	assert.False(t, vr.OK)
}

func TestBearerRejectsExpiredToken(t *testing.T) {
	p := newBearerFixture(t)
	p.Lifetime = -time.Minute
	token, err := p.Issue("alice")
	require.NoError(t, err)

	creds, _, _ := p.ParseAuth("Bearer "+token, nil)
	vr := p.Verify(creds, "GET", "/")
	assert.False(t, vr.OK)
}

func TestBearerRejectsForeignSecret(t *testing.T) {
	p := newBearerFixture(t)
	token, err := p.Issue("alice")
	require.NoError(t, err)

	foreign := newBearerFixture(t)
	foreign.Secret = []byte("a-completely-different-secret")

	creds, _, _ := foreign.ParseAuth("Bearer "+token, nil)
	vr := foreign.Verify(creds, "GET", "/")
	assert.False(t, vr.OK)
}

func TestBearerParseAuthRejectsMissingHeader(t *testing.T) {
	p := newBearerFixture(t)
	_, ok, err := p.ParseAuth("", nil)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestBearerAskLogin(t *testing.T) {
	p := newBearerFixture(t)
	assert.Equal(t, "Bearer", p.AskLogin())
}
