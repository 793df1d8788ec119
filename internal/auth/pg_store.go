package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is a supplemented AuthStore (SPEC_FULL.md §10) backing the
// user/role tables with Postgres instead of the flat auth file, for
// deployments that centralize auth state across a fleet of embedded
// devices. It satisfies the same AuthStore interface as FileStore and is
// wired in exactly the same place; the flat file remains the default.
// Schema shape mirrors the teacher's repository/postgres package:
// straight-line SQL, no ORM, pgxpool for connection pooling.
type PgStore struct {
	db *pgxpool.Pool
}

func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) Load() (*Tables, error) {
	tbl := NewTables()

	roleRows, err := s.db.Query(context.Background(),
		`SELECT name, abilities FROM emberweb_roles`)
	if err != nil {
		return nil, fmt.Errorf("auth: loading roles: %w", err)
	}
	for roleRows.Next() {
		var name, abilities string
		if err := roleRows.Scan(&name, &abilities); err != nil {
			roleRows.Close()
			return nil, fmt.Errorf("auth: scanning role row: %w", err)
		}
		tbl.Roles[name] = &Role{Name: name, Abilities: splitCSV(abilities)}
	}
	roleRows.Close()

	userRows, err := s.db.Query(context.Background(),
		`SELECT username, password, format, roles FROM emberweb_users`)
	if err != nil {
		return nil, fmt.Errorf("auth: loading users: %w", err)
	}
	for userRows.Next() {
		var username, password, format, roles string
		if err := userRows.Scan(&username, &password, &format, &roles); err != nil {
			userRows.Close()
			return nil, fmt.Errorf("auth: scanning user row: %w", err)
		}
		tbl.Users[username] = &User{
			Username: username,
			Password: password,
			Format:   PasswordFormat(format),
			Roles:    splitCSV(roles),
		}
	}
	userRows.Close()

	return tbl, nil
}

func (s *PgStore) Write(tbl *Tables) error {
	ctx := context.Background()
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("auth: beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM emberweb_users`); err != nil {
		return fmt.Errorf("auth: clearing users: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM emberweb_roles`); err != nil {
		return fmt.Errorf("auth: clearing roles: %w", err)
	}

	for _, r := range tbl.Roles {
		_, err := tx.Exec(ctx,
			`INSERT INTO emberweb_roles (name, abilities) VALUES ($1, $2)`,
			r.Name, strings.Join(r.Abilities, ","))
		if err != nil {
			return fmt.Errorf("auth: writing role %s: %w", r.Name, err)
		}
	}
	for _, u := range tbl.Users {
		_, err := tx.Exec(ctx,
			`INSERT INTO emberweb_users (username, password, format, roles) VALUES ($1, $2, $3, $4)`,
			u.Username, u.Password, string(u.Format), strings.Join(u.Roles, ","))
		if err != nil {
			return fmt.Errorf("auth: writing user %s: %w", u.Username, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("auth: committing transaction: %w", err)
	}
	return nil
}

// GetUser fetches a single user row directly, a point lookup without a
// full table reload.
func (s *PgStore) GetUser(username string) (*User, error) {
	var password, format, roles string
	err := s.db.QueryRow(context.Background(),
		`SELECT password, format, roles FROM emberweb_users WHERE username = $1`, username,
	).Scan(&password, &format, &roles)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("auth: user %q not found", username)
		}
		return nil, err
	}
	return &User{Username: username, Password: password, Format: PasswordFormat(format), Roles: splitCSV(roles)}, nil
}
