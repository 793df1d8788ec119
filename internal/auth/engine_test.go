package auth

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aras-services/emberweb/internal/route"
	"github.com/aras-services/emberweb/internal/session"
)

func newEngineFixture(t *testing.T) (*Engine, *session.Store) {
	t.Helper()
	sessions := session.New(time.Minute, 0, nil)
	t.Cleanup(sessions.Close)
	e := New(sessions, Options{AbilityDepth: 20})
	e.RegisterProtocol(route.AuthBasic, &BasicProtocol{Realm: "site", Users: e.users})
	e.AddUser(&User{Username: "alice", Password: "pw", Format: PasswordCleartext})
	return e, sessions
}

func TestAuthenticateNoRouteIsOK(t *testing.T) {
	e, _ := newEngineFixture(t)
	result := e.Authenticate(AuthRequest{})
	assert.Equal(t, DecisionOK, result.Decision)
}

func TestAuthenticateAuthNoneRouteIsOK(t *testing.T) {
	e, _ := newEngineFixture(t)
	r := &route.Route{Prefix: "/", AuthType: route.AuthNone}
	result := e.Authenticate(AuthRequest{Route: r})
	assert.Equal(t, DecisionOK, result.Decision)
}

func TestAuthenticateMissingCredentialsChallenges(t *testing.T) {
	e, _ := newEngineFixture(t)
	r := &route.Route{Prefix: "/admin/", AuthType: route.AuthBasic}
	result := e.Authenticate(AuthRequest{Route: r})
	assert.Equal(t, DecisionMissing, result.Decision)
	assert.Contains(t, result.Challenge, "Basic realm=")
}

func TestAuthenticateSuccessMintsSessionAndCachesOnReplay(t *testing.T) {
	e, _ := newEngineFixture(t)
	r := &route.Route{Prefix: "/admin/", AuthType: route.AuthBasic}

	header := basicHeader(t, "alice", "pw")
	result := e.Authenticate(AuthRequest{Route: r, Method: "GET", URI: "/admin/", AuthHeader: header})
	require.Equal(t, DecisionOK, result.Decision)
	require.NotEmpty(t, result.SessionID)

	// Idempotence: a second request on the same session is accepted from
	// the cache without re-parsing the Authorization header.
	cached := e.Authenticate(AuthRequest{Route: r, Method: "GET", URI: "/admin/", ExistingSession: result.SessionID})
	assert.Equal(t, DecisionOK, cached.Decision)
	assert.Equal(t, "alice", cached.Username)
}

func TestAuthenticateWrongPasswordIsDenied(t *testing.T) {
	e, _ := newEngineFixture(t)
	r := &route.Route{Prefix: "/admin/", AuthType: route.AuthBasic}

	header := basicHeader(t, "alice", "wrong")
	result := e.Authenticate(AuthRequest{Route: r, Method: "GET", URI: "/admin/", AuthHeader: header})
	assert.Equal(t, DecisionDenied, result.Decision)
}

func TestAuthenticateUnregisteredProtocolIsBadProtocol(t *testing.T) {
	e, _ := newEngineFixture(t)
	r := &route.Route{Prefix: "/admin/", AuthType: route.AuthDigest}
	result := e.Authenticate(AuthRequest{Route: r})
	assert.Equal(t, DecisionBadProtocol, result.Decision)
}

func TestAuthenticateAutoLoginBypassesEverything(t *testing.T) {
	sessions := session.New(time.Minute, 0, nil)
	t.Cleanup(sessions.Close)
	e := New(sessions, Options{AutoLogin: true})
	r := &route.Route{Prefix: "/admin/", AuthType: route.AuthBasic}
	result := e.Authenticate(AuthRequest{Route: r})
	assert.Equal(t, DecisionOK, result.Decision)
	assert.Equal(t, "dev", result.Username)
}

func TestAuthorizeReportsFirstMissingAbility(t *testing.T) {
	e, _ := newEngineFixture(t)
	e.AddRole(&Role{Name: "viewer", Abilities: []string{"read"}})
	e.SetUserRoles("alice", []string{"viewer"})

	r := &route.Route{Abilities: []string{"read", "shutdown"}}
	missing, ok := e.Authorize("alice", r)
	assert.False(t, ok)
	assert.Equal(t, "shutdown", missing)
}

func TestLoginAndLogoutRoundTrip(t *testing.T) {
	e, sessions := newEngineFixture(t)
	sid := e.Login("", "alice")
	sess, ok := sessions.Get(sid)
	require.True(t, ok)
	v, ok := sess.Get(sessionAuthVar)
	require.True(t, ok)
	assert.Equal(t, "alice", v)

	e.Logout(sid)
	_, ok = sess.Get(sessionAuthVar)
	assert.False(t, ok)
}

func basicHeader(t *testing.T, username, password string) string {
	t.Helper()
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}
