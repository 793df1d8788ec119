package auth

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/aras-services/emberweb/internal/route"
)

// AuthStore persists and reloads the user/role Tables. FileStore is the
// spec-mandated default (spec.md §6); PgStore is a supplemented
// alternative (SPEC_FULL.md §10).
type AuthStore interface {
	Load() (*Tables, error)
	Write(*Tables) error
}

// FileStore implements the line-oriented auth/route directive file format
// of spec.md §6: each line is `directive key=value key=value ...`, lines
// starting with '#' are comments, write-back is atomic via temp-file +
// rename.
type FileStore struct {
	Path string
	// Routes, when set, is the live route table sharing Path with the
	// auth/role directives. Write re-emits it alongside user/role lines so
	// persisting auth state never drops route configuration. When nil,
	// Write falls back to preserving whatever `route` lines already exist
	// on Path verbatim.
	Routes *route.Table

	validate *validator.Validate
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path, validate: validator.New()}
}

// Load parses `user` and `role` directives into a Tables. `route` directives
// are handled by the caller (route.Table has no file-format dependency of
// its own); FileStore only owns the auth-relevant lines.
func (s *FileStore) Load() (*Tables, error) {
	f, err := os.Open(s.Path)
	if os.IsNotExist(err) {
		return NewTables(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("auth: opening %s: %w", s.Path, err)
	}
	defer f.Close()

	tbl := NewTables()
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		directive, fields := parseDirectiveLine(line)
		switch directive {
		case "user":
			u := &User{
				Username: fields["name"],
				Password: fields["password"],
				Format:   PasswordFormat(orDefault(fields["format"], string(PasswordHA1))),
				Roles:    splitCSV(fields["roles"]),
			}
			if err := s.validate.Struct(u); err != nil {
				return nil, fmt.Errorf("auth: %s:%d: invalid user directive: %w", s.Path, lineNo, err)
			}
			tbl.Users[u.Username] = u
		case "role":
			r := &Role{
				Name:      fields["name"],
				Abilities: splitCSV(fields["abilities"]),
			}
			if err := s.validate.Struct(r); err != nil {
				return nil, fmt.Errorf("auth: %s:%d: invalid role directive: %w", s.Path, lineNo, err)
			}
			tbl.Roles[r.Name] = r
		case "route":
			// Route directives are consumed by route.LoadDirectives, not
			// here; skip without error so a combined auth+route file parses
			// cleanly.
		default:
			return nil, fmt.Errorf("auth: %s:%d: unknown directive %q", s.Path, lineNo, directive)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("auth: reading %s: %w", s.Path, err)
	}
	return tbl, nil
}

// Write serializes tbl back to Path using temp-file + rename for atomicity,
// satisfying the round-trip invariant of spec.md §8 (load(write(T)) == T
// modulo iteration order, which Write guarantees by emitting sorted keys).
// It also re-emits the `route` directive lines sharing Path (from s.Routes
// if wired, else whatever is already on disk) so persisting auth state
// never destroys route configuration — spec.md §6's "write-back produces a
// file in the same shape" covers the whole file, not just the lines this
// store owns.
func (s *FileStore) Write(tbl *Tables) error {
	routeLines, err := s.routeLines()
	if err != nil {
		return err
	}

	tmp := s.Path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("auth: creating temp file: %w", err)
	}

	var names []string
	for name := range tbl.Roles {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r := tbl.Roles[name]
		fmt.Fprintf(f, "role name=%s abilities=%s\n", r.Name, strings.Join(r.Abilities, ","))
	}

	names = names[:0]
	for name := range tbl.Users {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		u := tbl.Users[name]
		fmt.Fprintf(f, "user name=%s password=%s format=%s roles=%s\n",
			u.Username, u.Password, u.Format, strings.Join(u.Roles, ","))
	}

	for _, line := range routeLines {
		fmt.Fprintf(f, "%s\n", line)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("auth: closing temp file: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("auth: renaming temp file into place: %w", err)
	}
	return nil
}

// routeLines returns the `route` directive lines Write should re-emit:
// s.Routes's live state if wired, else whatever `route` lines already sit
// on Path, read verbatim before the temp file is created.
func (s *FileStore) routeLines() ([]string, error) {
	if s.Routes != nil {
		return route.FormatDirectives(s.Routes), nil
	}

	f, err := os.Open(s.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("auth: opening %s: %w", s.Path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		directive, _ := parseDirectiveLine(line)
		if directive == "route" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("auth: reading %s: %w", s.Path, err)
	}
	return lines, nil
}

// parseDirectiveLine splits "directive key=value key=value ..." into the
// directive name and a key/value map.
func parseDirectiveLine(line string) (string, map[string]string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	out := map[string]string{}
	for _, kv := range fields[1:] {
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			continue
		}
		out[kv[:eq]] = kv[eq+1:]
	}
	return fields[0], out
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
