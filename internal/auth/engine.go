package auth

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aras-services/emberweb/internal/route"
	"github.com/aras-services/emberweb/internal/session"
)

// sessionAuthVar is the session variable the Engine stores an authenticated
// username under, giving §4.D's "cooperate to cache an authenticated
// identity across requests on the same session cookie" its concrete shape.
const sessionAuthVar = "auth_user"

// Options configures an Engine.
type Options struct {
	AbilityDepth int
	AutoLogin    bool // development mode: skip authentication entirely
	Log          *zap.Logger
}

// Engine is the process-wide auth/authorization subsystem of spec.md §4.D:
// user/role CRUD, ability expansion, per-protocol credential verification,
// and session-backed authentication caching.
type Engine struct {
	users     *userTable
	sessions  *session.Store
	protocols map[route.AuthType]Protocol
	autoLogin bool
	log       *zap.Logger
}

// New constructs an Engine. Register protocol implementations with
// RegisterProtocol before serving traffic.
func New(sessions *session.Store, opts Options) *Engine {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		users:     newUserTable(opts.AbilityDepth, log),
		sessions:  sessions,
		protocols: map[route.AuthType]Protocol{},
		autoLogin: opts.AutoLogin,
		log:       log,
	}
}

// RegisterProtocol wires a Protocol implementation for an AuthType.
func (e *Engine) RegisterProtocol(t route.AuthType, p Protocol) {
	e.protocols[t] = p
}

// NewBasicProtocol builds a BasicProtocol bound to this Engine's user table.
// userTable is unexported, so callers outside this package must go through
// this constructor rather than building a BasicProtocol literal.
func (e *Engine) NewBasicProtocol(realm string) *BasicProtocol {
	return &BasicProtocol{Realm: realm, Users: e.users}
}

// NewDigestProtocol builds a DigestProtocol bound to this Engine's user
// table, minting a fresh server secret.
func (e *Engine) NewDigestProtocol(realm string) (*DigestProtocol, error) {
	secret, err := NewServerSecret()
	if err != nil {
		return nil, err
	}
	return &DigestProtocol{Realm: realm, Secret: secret, Users: e.users}, nil
}

// NewFormProtocol builds a FormProtocol bound to this Engine's user table.
func (e *Engine) NewFormProtocol(loginPage string) *FormProtocol {
	return &FormProtocol{Users: e.users, LoginPage: loginPage}
}

// NewBearerProtocol builds a BearerProtocol bound to this Engine's user
// table.
func (e *Engine) NewBearerProtocol(secret []byte, issuer string, lifetime time.Duration) *BearerProtocol {
	return &BearerProtocol{Secret: secret, Issuer: issuer, Users: e.users, Lifetime: lifetime}
}

// --- user/role CRUD (mutated only between requests, per spec.md §5) ---

func (e *Engine) AddUser(u *User) { e.users.addUser(u) }

func (e *Engine) RemoveUser(username string) { e.users.removeUser(username) }

func (e *Engine) AddRole(r *Role) { e.users.addRole(r) }

func (e *Engine) SetUserRoles(username string, roles []string) bool {
	return e.users.setUserRoles(username, roles)
}

func (e *Engine) GetUser(username string) (*User, bool) { return e.users.getUser(username) }

// LoadTables replaces the live user/role state, e.g. on startup from the
// auth file or an AuthStore.
func (e *Engine) LoadTables(tbl *Tables) { e.users.loadTables(tbl) }

// Snapshot returns the live user/role state for write-back.
func (e *Engine) Snapshot() *Tables { return e.users.snapshot() }

// AuthRequest is the subset of request state Authenticate needs, kept free
// of any reqstate import so that auth does not depend on the request
// parser.
type AuthRequest struct {
	Route           *route.Route
	Method          string
	URI             string
	AuthHeader      string
	Form            map[string]string
	ExistingSession string // session cookie value, if any
}

// Result is the outcome of Authenticate.
type Result struct {
	Decision  Decision
	Username  string
	Challenge string // WWW-Authenticate value or login redirect target
	Stale     bool   // digest-specific: nonce aged out, not a bad password
	SessionID string // set (and a new cookie owed) when a new session is minted
}

// Authenticate runs the state machine of spec.md §4.D:
//
//	cached session hit   -> AUTHENTICATED, no mutation
//	autoLogin             -> AUTHENTICATED (dev mode)
//	no route auth         -> AUTHENTICATED
//	parse fails            -> AuthBadProtocol (400)
//	no credentials          -> AuthRequired (401 + challenge)
//	verify fails            -> AuthRequired (401 + challenge), stale flagged for digest
//	verify succeeds          -> session-cache the username, AUTHENTICATED
//
// It is idempotent: a second call against a request already holding a
// session with a cached auth_user returns the identical decision without
// touching the session again (spec.md §8 invariant).
func (e *Engine) Authenticate(req AuthRequest) Result {
	if e.autoLogin {
		return Result{Decision: DecisionOK, Username: "dev"}
	}
	if req.Route == nil || req.Route.AuthType == route.AuthNone {
		return Result{Decision: DecisionOK}
	}

	if sess, ok := e.sessions.Get(req.ExistingSession); ok {
		if v, ok := sess.Get(sessionAuthVar); ok {
			if username, ok := v.(string); ok && username != "" {
				return Result{Decision: DecisionOK, Username: username}
			}
		}
	}

	proto, ok := e.protocols[req.Route.AuthType]
	if !ok {
		return Result{Decision: DecisionBadProtocol}
	}

	creds, present, err := proto.ParseAuth(req.AuthHeader, req.Form)
	if err != nil {
		return Result{Decision: DecisionBadProtocol}
	}
	if !present {
		return Result{Decision: DecisionMissing, Challenge: proto.AskLogin()}
	}

	vr := proto.Verify(creds, req.Method, req.URI)
	if !vr.OK {
		challenge := proto.AskLogin()
		if vr.Stale {
			if dp, ok := proto.(*DigestProtocol); ok {
				challenge = dp.AskLoginStale()
			}
		}
		return Result{Decision: DecisionDenied, Challenge: challenge, Stale: vr.Stale}
	}

	sess := e.sessions.Create()
	sess.Set(sessionAuthVar, vr.Username)
	return Result{Decision: DecisionOK, Username: vr.Username, SessionID: sess.ID}
}

// VerifyCredentials runs a protocol's Verify step directly, bypassing
// session-cache shortcutting, and mints no session. Nothing in this module
// calls it: emberweb.Open registers no login action.
func (e *Engine) VerifyCredentials(t route.AuthType, creds Credentials, method, uri string) (string, bool) {
	proto, ok := e.protocols[t]
	if !ok {
		return "", false
	}
	vr := proto.Verify(creds, method, uri)
	return vr.Username, vr.OK
}

// Login stores username in a (possibly new) session and returns the
// session id, used after a successful form login.
func (e *Engine) Login(existingSessionID, username string) string {
	sess, ok := e.sessions.Get(existingSessionID)
	if !ok {
		sess = e.sessions.Create()
	}
	sess.Set(sessionAuthVar, username)
	return sess.ID
}

// Logout clears the cached identity from a session without destroying the
// whole variable bag (other session vars, e.g. shopping-cart-style state,
// survive).
func (e *Engine) Logout(sessionID string) {
	if sess, ok := e.sessions.Get(sessionID); ok {
		sess.Remove(sessionAuthVar)
	}
}

// HasAbility reports whether username can satisfy ability, used by the
// route dispatch to enforce Route.Abilities after authentication succeeds.
func (e *Engine) HasAbility(username, ability string) bool {
	u, ok := e.users.getUser(username)
	if !ok {
		return false
	}
	return u.HasAbility(ability)
}

// Authorize checks every required ability on r against username, returning
// the first missing ability (empty string if all are satisfied).
func (e *Engine) Authorize(username string, r *route.Route) (missing string, ok bool) {
	for _, ability := range r.Abilities {
		if !e.HasAbility(username, ability) {
			return ability, false
		}
	}
	return "", true
}

// ErrNoSuchUser is returned by lookups against an unknown username.
func ErrNoSuchUser(username string) error {
	return fmt.Errorf("auth: no such user %q", username)
}
