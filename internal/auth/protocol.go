package auth

import "github.com/aras-services/emberweb/internal/route"

// Credentials is the protocol-parsed form of whatever the client sent in
// the Authorization header or request body, filled in by ParseAuth and
// consumed by Verify.
type Credentials struct {
	Username string
	Password string // cleartext, Basic and Form

	// Digest fields, RFC 2617 §3.2.2.
	Realm    string
	Nonce    string
	URI      string
	QOP      string
	NC       string
	CNonce   string
	Opaque   string
	Response string

	// Bearer field.
	Token string
}

// VerifyResult is the outcome of Protocol.Verify.
type VerifyResult struct {
	Username string
	OK       bool
	// Stale is set by DigestProtocol when credentials fail solely because
	// the nonce aged out (§8 scenario 4: "401 with stale=TRUE"), letting
	// the caller re-challenge with a fresh nonce instead of treating it as
	// a bad-password denial.
	Stale bool
}

// Decision is the outcome of authenticating a single request.
type Decision int

const (
	// DecisionOK: credentials verified, Username is populated.
	DecisionOK Decision = iota
	// DecisionMissing: no credentials presented; challenge and 401.
	DecisionMissing
	// DecisionBadProtocol: credentials present but malformed for this
	// route's authType; 400.
	DecisionBadProtocol
	// DecisionDenied: credentials presented but wrong; 401, message does
	// not distinguish unknown-user from bad-password (spec.md §4.D).
	DecisionDenied
)

// Protocol is the per-authType behavior spec.md §9 suggests modeling as "a
// sum type over {Basic, Digest, Form, None} with a dispatch function, or as
// an interface with three operations" — this is the interface form.
type Protocol interface {
	// ParseAuth extracts Credentials from the raw Authorization header
	// value (Basic/Digest/Bearer) or from decoded form fields (Form).
	// ok is false when the request carries no credentials at all for this
	// protocol (DecisionMissing); err is non-nil when what is present is
	// malformed for the protocol (DecisionBadProtocol).
	ParseAuth(authHeader string, form map[string]string) (creds Credentials, ok bool, err error)

	// Verify checks the parsed Credentials against the user table.
	Verify(creds Credentials, method, uri string) VerifyResult

	// AskLogin renders the challenge a 401 response should carry (the
	// WWW-Authenticate header value for Basic/Digest/Bearer, or the
	// login-page redirect target for Form).
	AskLogin() string
}

// typed reports the route.AuthType a Protocol implements. Engine selects a
// protocol by the route's AuthType and does not consult this interface.
type typed interface {
	Type() route.AuthType
}
