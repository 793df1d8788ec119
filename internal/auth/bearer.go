package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/aras-services/emberweb/internal/route"
)

// bearerClaims is the JWT payload minted by BearerProtocol.Issue.
type bearerClaims struct {
	jwt.RegisteredClaims
}

// BearerProtocol implements the supplemented stateless-session authType
// (SPEC_FULL.md §10): a client presents "Authorization: Bearer <token>"
// instead of relying on the cookie-backed Session, useful for embedded
// devices fronted by a native app rather than a browser.
type BearerProtocol struct {
	Secret   []byte
	Issuer   string
	Users    *userTable
	Lifetime time.Duration
}

func (p *BearerProtocol) Type() route.AuthType { return route.AuthBearer }

// Issue mints a bearer token for an already-authenticated username. It
// does not verify the username; only tests in this module call it.
func (p *BearerProtocol) Issue(username string) (string, error) {
	lifetime := p.Lifetime
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	claims := bearerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    p.Issuer,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(lifetime)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(p.Secret)
}

func (p *BearerProtocol) ParseAuth(authHeader string, _ map[string]string) (Credentials, bool, error) {
	if authHeader == "" {
		return Credentials{}, false, nil
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return Credentials{}, false, nil
	}
	token := strings.TrimPrefix(authHeader, prefix)
	if token == "" {
		return Credentials{}, true, fmt.Errorf("auth: empty bearer token")
	}
	return Credentials{Token: token}, true, nil
}

func (p *BearerProtocol) Verify(creds Credentials, _, _ string) VerifyResult {
	claims := &bearerClaims{}
	tok, err := jwt.ParseWithClaims(creds.Token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return p.Secret, nil
	}, jwt.WithIssuer(p.Issuer))
	if err != nil || !tok.Valid {
		return VerifyResult{}
	}
	if _, ok := p.Users.getUser(claims.Subject); !ok {
		return VerifyResult{}
	}
	return VerifyResult{Username: claims.Subject, OK: true}
}

func (p *BearerProtocol) AskLogin() string {
	return "Bearer"
}
