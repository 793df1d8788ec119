package auth

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aras-services/emberweb/internal/route"
)

// BasicProtocol implements HTTP Basic authentication (spec.md §4.D).
type BasicProtocol struct {
	Realm string
	Users *userTable
}

func (p *BasicProtocol) Type() route.AuthType { return route.AuthBasic }

func (p *BasicProtocol) ParseAuth(authHeader string, _ map[string]string) (Credentials, bool, error) {
	if authHeader == "" {
		return Credentials{}, false, nil
	}
	const prefix = "Basic "
	if !strings.HasPrefix(authHeader, prefix) {
		return Credentials{}, false, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(authHeader, prefix))
	if err != nil {
		return Credentials{}, true, fmt.Errorf("auth: malformed basic credentials: %w", err)
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return Credentials{}, true, fmt.Errorf("auth: malformed basic credentials: missing colon")
	}
	return Credentials{Username: parts[0], Password: parts[1]}, true, nil
}

func (p *BasicProtocol) Verify(creds Credentials, _, _ string) VerifyResult {
	u, ok := p.Users.getUser(creds.Username)
	if !ok || !verifyCleartextOrHA1(u, p.Realm, creds.Password) {
		return VerifyResult{}
	}
	return VerifyResult{Username: u.Username, OK: true}
}

func (p *BasicProtocol) AskLogin() string {
	return fmt.Sprintf(`Basic realm="%s"`, p.Realm)
}
