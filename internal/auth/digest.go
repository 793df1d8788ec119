package auth

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aras-services/emberweb/internal/route"
)

// MaxNonceAge is the window spec.md §4.D allows a digest nonce to remain
// valid: "nonce age > 5 minutes" is rejected.
const MaxNonceAge = 5 * time.Minute

// DigestProtocol implements RFC 2617 Digest authentication (spec.md §4.D).
// It relies on time-bound nonces without a server-side seen-nonce cache,
// which spec.md §9 notes permits limited replay within the validity window;
// an implementer wanting one-time enforcement can layer a (nonce, nc) set
// on top without changing this type's public surface.
type DigestProtocol struct {
	Realm  string
	Secret []byte // cryptographically random, generated once at startup
	Users  *userTable

	counter atomic.Uint64
}

func (p *DigestProtocol) Type() route.AuthType { return route.AuthDigest }

// NewServerSecret draws a 256-bit server secret from crypto/rand. spec.md
// §9 explicitly calls out the source's time-seeded rand() as inadequate;
// this must never be replaced with math/rand.
func NewServerSecret() ([]byte, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("auth: failed to draw server secret: %w", err)
	}
	return b, nil
}

// nonce returns base64(secret:realm:unix-time:counter), per spec.md §4.D.
// The secret is hex-encoded first since it is raw random bytes that may
// otherwise contain the ':' separator.
func (p *DigestProtocol) nonce() string {
	n := p.counter.Add(1)
	raw := fmt.Sprintf("%s:%s:%d:%d", hex.EncodeToString(p.Secret), p.Realm, time.Now().Unix(), n)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

func (p *DigestProtocol) AskLogin() string {
	return p.challenge(false)
}

// AskLoginStale renders the challenge with stale=TRUE, used when a request
// is rejected solely because its nonce aged out (spec.md §8 scenario 4).
func (p *DigestProtocol) AskLoginStale() string {
	return p.challenge(true)
}

func (p *DigestProtocol) challenge(stale bool) string {
	s := fmt.Sprintf(`Digest realm="%s", qop="auth", nonce="%s", opaque="%s"`,
		p.Realm, p.nonce(), hex.EncodeToString(p.Secret[:8]))
	if stale {
		s += `, stale=TRUE`
	}
	return s
}

func (p *DigestProtocol) ParseAuth(authHeader string, _ map[string]string) (Credentials, bool, error) {
	if authHeader == "" {
		return Credentials{}, false, nil
	}
	const prefix = "Digest "
	if !strings.HasPrefix(authHeader, prefix) {
		return Credentials{}, false, nil
	}
	fields := parseDigestFields(strings.TrimPrefix(authHeader, prefix))
	creds := Credentials{
		Username: fields["username"],
		Realm:    fields["realm"],
		Nonce:    fields["nonce"],
		URI:      fields["uri"],
		QOP:      fields["qop"],
		NC:       fields["nc"],
		CNonce:   fields["cnonce"],
		Opaque:   fields["opaque"],
		Response: fields["response"],
	}
	if creds.Username == "" || creds.Nonce == "" || creds.Response == "" {
		return Credentials{}, true, fmt.Errorf("auth: malformed digest credentials")
	}
	if creds.QOP != "" && (creds.NC == "" || creds.CNonce == "") {
		return Credentials{}, true, fmt.Errorf("auth: digest qop present but nc/cnonce missing")
	}
	return creds, true, nil
}

// parseDigestFields splits a comma-separated list of key=value or
// key="value" pairs as they appear in a Digest Authorization header.
func parseDigestFields(s string) map[string]string {
	out := map[string]string{}
	for _, part := range splitDigestParts(s) {
		part = strings.TrimSpace(part)
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(part[:eq])
		val := strings.TrimSpace(part[eq+1:])
		val = strings.Trim(val, `"`)
		out[key] = val
	}
	return out
}

// splitDigestParts splits on commas that are not inside a quoted value.
func splitDigestParts(s string) []string {
	var parts []string
	inQuotes := false
	start := 0
	for i, c := range s {
		switch c {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func (p *DigestProtocol) Verify(creds Credentials, method, _ string) VerifyResult {
	if creds.Realm != "" && creds.Realm != p.Realm {
		return VerifyResult{}
	}
	if creds.QOP != "" && creds.QOP != "auth" {
		return VerifyResult{}
	}

	nonceSecret, nonceRealm, nonceUnix, ok := p.decodeNonce(creds.Nonce)
	if !ok {
		return VerifyResult{}
	}
	// The nonce-embedded secret must equal the server secret. spec.md §9
	// flags the original source's bug of comparing the secret to itself in
	// one branch; this compares against p.Secret as RFC 2617 intends.
	if !constantTimeEqual(nonceSecret, hex.EncodeToString(p.Secret)) {
		return VerifyResult{}
	}
	if nonceRealm != p.Realm {
		return VerifyResult{}
	}

	age := time.Since(time.Unix(nonceUnix, 0))
	if age > MaxNonceAge {
		return VerifyResult{Stale: true}
	}

	u, ok := p.Users.getUser(creds.Username)
	if !ok {
		return VerifyResult{}
	}
	ha1, err := ha1For(u, p.Realm)
	if err != nil {
		return VerifyResult{}
	}
	ha2 := HA2(method, creds.URI)

	var expected string
	if creds.QOP != "" {
		sum := md5.Sum([]byte(ha1 + ":" + creds.Nonce + ":" + creds.NC + ":" + creds.CNonce + ":" + creds.QOP + ":" + ha2))
		expected = hex.EncodeToString(sum[:])
	} else {
		sum := md5.Sum([]byte(ha1 + ":" + creds.Nonce + ":" + ha2))
		expected = hex.EncodeToString(sum[:])
	}

	if !constantTimeEqual(expected, creds.Response) {
		return VerifyResult{}
	}
	return VerifyResult{Username: u.Username, OK: true}
}

// decodeNonce splits a nonce back into its secret/realm/unix-time
// components. The counter suffix is not needed for validation.
func (p *DigestProtocol) decodeNonce(nonce string) (secret, realm string, unixTime int64, ok bool) {
	raw, err := base64.StdEncoding.DecodeString(nonce)
	if err != nil {
		return "", "", 0, false
	}
	parts := strings.SplitN(string(raw), ":", 4)
	if len(parts) != 4 {
		return "", "", 0, false
	}
	ts, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", "", 0, false
	}
	return parts[0], parts[1], ts, true
}
