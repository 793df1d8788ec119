package auth

import "github.com/aras-services/emberweb/internal/route"

// FormProtocol implements form-based login (spec.md §4.D): credentials
// arrive as username/password form fields (typically POSTed to the login
// action), verified against the user table, with a session-stored
// authenticated username on success.
type FormProtocol struct {
	Users     *userTable
	LoginPage string
}

func (p *FormProtocol) Type() route.AuthType { return route.AuthForm }

func (p *FormProtocol) ParseAuth(_ string, form map[string]string) (Credentials, bool, error) {
	username, hasUser := form["username"]
	password, hasPass := form["password"]
	if !hasUser && !hasPass {
		return Credentials{}, false, nil
	}
	if !hasUser || !hasPass {
		return Credentials{}, true, errMissingFormField
	}
	return Credentials{Username: username, Password: password}, true, nil
}

func (p *FormProtocol) Verify(creds Credentials, _, _ string) VerifyResult {
	u, ok := p.Users.getUser(creds.Username)
	if !ok {
		return VerifyResult{}
	}
	var valid bool
	switch u.Format {
	case PasswordBcrypt:
		valid = verifyBcrypt(u, creds.Password)
	case PasswordCleartext, PasswordHA1:
		valid = verifyCleartextOrHA1(u, "form", creds.Password) && u.Format == PasswordCleartext
		if u.Format == PasswordHA1 {
			// HA1 storage has no realm-free form to compare against; Form
			// auth on an HA1-stored user is only possible if the realm used
			// to compute HA1 is fixed and known, which this library does
			// not assume. Such users should authenticate via Basic/Digest.
			valid = false
		}
	}
	if !valid {
		return VerifyResult{}
	}
	return VerifyResult{Username: u.Username, OK: true}
}

func (p *FormProtocol) AskLogin() string {
	return p.LoginPage
}

var errMissingFormField = formError("auth: form login requires both username and password fields")

type formError string

func (e formError) Error() string { return string(e) }
