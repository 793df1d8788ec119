package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormAuthCleartextSuccess(t *testing.T) {
	tbl := newUserTable(20, nil)
	tbl.addUser(&User{Username: "alice", Password: "pw", Format: PasswordCleartext})
	p := &FormProtocol{Users: tbl, LoginPage: "/login.html"}

	creds, ok, err := p.ParseAuth("", map[string]string{"username": "alice", "password": "pw"})
	assert.NoError(t, err)
	assert.True(t, ok)

	vr := p.Verify(creds, "POST", "/action/login")
	assert.True(t, vr.OK)
	assert.Equal(t, "alice", vr.Username)
}

func TestFormAuthBcryptSuccess(t *testing.T) {
	hash, err := HashBcrypt("s3cret")
	assert.NoError(t, err)
	tbl := newUserTable(20, nil)
	tbl.addUser(&User{Username: "bob", Password: hash, Format: PasswordBcrypt})
	p := &FormProtocol{Users: tbl}

	creds, _, _ := p.ParseAuth("", map[string]string{"username": "bob", "password": "s3cret"})
	vr := p.Verify(creds, "POST", "/action/login")
	assert.True(t, vr.OK)
}

func TestFormAuthRejectsHA1Storage(t *testing.T) {
	tbl := newUserTable(20, nil)
	tbl.addUser(&User{Username: "carol", Password: HA1("carol", "site", "pw"), Format: PasswordHA1})
	p := &FormProtocol{Users: tbl}

	creds, _, _ := p.ParseAuth("", map[string]string{"username": "carol", "password": "pw"})
	vr := p.Verify(creds, "POST", "/action/login")
	assert.False(t, vr.OK)
}

func TestFormAuthMissingFieldIsError(t *testing.T) {
	p := &FormProtocol{Users: newUsersFixture()}
	_, ok, err := p.ParseAuth("", map[string]string{"username": "alice"})
	assert.True(t, ok)
	assert.ErrorIs(t, err, errMissingFormField)
}

func TestFormAuthNoCredentialsPresent(t *testing.T) {
	p := &FormProtocol{Users: newUsersFixture()}
	_, ok, err := p.ParseAuth("", map[string]string{})
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestFormAuthAskLoginReturnsLoginPage(t *testing.T) {
	p := &FormProtocol{Users: newUsersFixture(), LoginPage: "/login.html"}
	assert.Equal(t, "/login.html", p.AskLogin())
}
