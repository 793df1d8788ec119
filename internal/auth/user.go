// Package auth implements the user/role/ability model and the
// Basic/Digest/Form/Bearer verifiers described in spec.md §4.D.
package auth

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// PasswordFormat names how User.Password is encoded.
type PasswordFormat string

const (
	// PasswordCleartext stores the password verbatim. Required for Digest
	// (HA1 computation needs the raw password unless HA1 is pre-hashed)
	// when HA1 precomputation isn't used.
	PasswordCleartext PasswordFormat = "cleartext"
	// PasswordHA1 stores MD5(username:realm:password) hex-encoded, the
	// RFC 2617 HA1 intermediate, as spec.md §3 allows ("pre-hashed HA1
	// depending on authType").
	PasswordHA1 PasswordFormat = "ha1"
	// PasswordBcrypt stores a bcrypt hash. Valid for Form/Bearer auth only
	// — Basic/Digest need either cleartext or HA1 to reproduce the RFC 2617
	// MD5 arithmetic, which a bcrypt hash cannot supply.
	PasswordBcrypt PasswordFormat = "bcrypt"
)

// DefaultAbilityDepth is the default recursion cap on role→role expansion
// (spec.md §3).
const DefaultAbilityDepth = 20

// User is keyed by username. Abilities are computed from Roles whenever the
// role list changes (see userTable.recomputeLocked).
type User struct {
	Username string         `validate:"required"`
	Password string         `validate:"required"`
	Format   PasswordFormat `validate:"required,oneof=cleartext ha1 bcrypt"`
	Roles    []string

	abilities map[string]bool
}

// HasAbility reports whether the user's computed ability set contains
// ability.
func (u *User) HasAbility(ability string) bool {
	return u.abilities[ability]
}

// Abilities returns a sorted snapshot of the user's computed ability set.
func (u *User) Abilities() []string {
	out := make([]string, 0, len(u.abilities))
	for a := range u.abilities {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Role bundles abilities under a name; roles may reference other roles by
// name, expanded recursively with cycle protection.
type Role struct {
	Name      string `validate:"required"`
	Abilities []string
}

// Tokenize splits a comma/whitespace separated role list into tokens, the
// way spec.md §4.D describes ability-list parsing.
func Tokenize(list string) []string {
	fields := strings.FieldsFunc(list, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Tables is the in-memory user/role state the Engine mutates; AuthStore
// implementations Load/Write a Tables snapshot.
type Tables struct {
	Users map[string]*User
	Roles map[string]*Role
}

// NewTables returns an empty Tables.
func NewTables() *Tables {
	return &Tables{Users: map[string]*User{}, Roles: map[string]*Role{}}
}

// userTable owns the live, mutex-guarded User/Role maps plus ability
// expansion. Mutated only between requests per spec.md §5 (the public
// mutators on Engine are not re-entrant with request dispatch).
type userTable struct {
	mu         sync.RWMutex
	users      map[string]*User
	roles      map[string]*Role
	abilityCap int
	log        *zap.Logger
}

func newUserTable(abilityCap int, log *zap.Logger) *userTable {
	if abilityCap <= 0 {
		abilityCap = DefaultAbilityDepth
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &userTable{
		users:      map[string]*User{},
		roles:      map[string]*Role{},
		abilityCap: abilityCap,
		log:        log,
	}
}

func (t *userTable) loadTables(tbl *Tables) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.users = map[string]*User{}
	t.roles = map[string]*Role{}
	for name, r := range tbl.Roles {
		cp := *r
		t.roles[name] = &cp
	}
	for name, u := range tbl.Users {
		cp := *u
		t.users[name] = &cp
	}
	t.recomputeAllLocked()
}

func (t *userTable) snapshot() *Tables {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := NewTables()
	for name, u := range t.users {
		cp := *u
		out.Users[name] = &cp
	}
	for name, r := range t.roles {
		cp := *r
		out.Roles[name] = &cp
	}
	return out
}

func (t *userTable) addUser(u *User) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.users[u.Username] = u
	t.recomputeLocked(u)
}

func (t *userTable) removeUser(username string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.users, username)
}

func (t *userTable) getUser(username string) (*User, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	u, ok := t.users[username]
	return u, ok
}

func (t *userTable) addRole(r *Role) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.roles[r.Name] = r
	t.recomputeAllLocked()
}

func (t *userTable) setUserRoles(username string, roles []string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	u, ok := t.users[username]
	if !ok {
		return false
	}
	u.Roles = roles
	t.recomputeLocked(u)
	return true
}

func (t *userTable) recomputeAllLocked() {
	for _, u := range t.users {
		t.recomputeLocked(u)
	}
}

// recomputeLocked expands u.Roles into u.abilities: for each token, either
// the token names a role (recursively expanded with depth protection) or it
// is treated directly as an ability, per spec.md §4.D.
func (t *userTable) recomputeLocked(u *User) {
	result := map[string]bool{}
	for _, roleList := range u.Roles {
		for _, tok := range Tokenize(roleList) {
			t.expandLocked(tok, result, 0)
		}
	}
	u.abilities = result
}

func (t *userTable) expandLocked(token string, out map[string]bool, depth int) {
	if depth > t.abilityCap {
		t.log.Error("ability expansion exceeded recursion cap",
			zap.String("token", token), zap.Int("cap", t.abilityCap))
		return
	}
	role, ok := t.roles[token]
	if !ok {
		// Not a known role name: treat the token directly as an ability
		// (self-edge for unknown tokens, spec.md §8 invariant).
		out[token] = true
		return
	}
	for _, a := range role.Abilities {
		t.expandLocked(a, out, depth+1)
	}
}
