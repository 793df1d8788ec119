package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAbilityExpansionTransitiveClosure(t *testing.T) {
	tbl := newUserTable(20, nil)
	tbl.addRole(&Role{Name: "viewer", Abilities: []string{"read"}})
	tbl.addRole(&Role{Name: "editor", Abilities: []string{"viewer", "write"}})
	tbl.addUser(&User{Username: "alice", Password: "x", Format: PasswordCleartext, Roles: []string{"editor"}})

	u, ok := tbl.getUser("alice")
	assert.True(t, ok)
	assert.True(t, u.HasAbility("read"))
	assert.True(t, u.HasAbility("write"))
	assert.False(t, u.HasAbility("shutdown"))
}

func TestUnknownRoleTokenBecomesAbilitySelfEdge(t *testing.T) {
	tbl := newUserTable(20, nil)
	tbl.addUser(&User{Username: "bob", Password: "x", Format: PasswordCleartext, Roles: []string{"deploy, shutdown"}})

	u, _ := tbl.getUser("bob")
	assert.True(t, u.HasAbility("deploy"))
	assert.True(t, u.HasAbility("shutdown"))
}

func TestAbilityExpansionCycleProtection(t *testing.T) {
	tbl := newUserTable(5, nil)
	tbl.addRole(&Role{Name: "a", Abilities: []string{"b"}})
	tbl.addRole(&Role{Name: "b", Abilities: []string{"a"}})
	tbl.addUser(&User{Username: "cyclic", Password: "x", Format: PasswordCleartext, Roles: []string{"a"}})

	// Must return without hanging or panicking; the cap bounds recursion.
	u, _ := tbl.getUser("cyclic")
	assert.NotNil(t, u)
}

func TestSetUserRolesRecomputesAbilities(t *testing.T) {
	tbl := newUserTable(20, nil)
	tbl.addRole(&Role{Name: "admin", Abilities: []string{"shutdown"}})
	tbl.addUser(&User{Username: "carol", Password: "x", Format: PasswordCleartext, Roles: []string{"none"}})

	assert.False(t, tbl.users["carol"].HasAbility("shutdown"))
	ok := tbl.setUserRoles("carol", []string{"admin"})
	assert.True(t, ok)
	assert.True(t, tbl.users["carol"].HasAbility("shutdown"))
}
