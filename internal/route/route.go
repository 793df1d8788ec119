// Package route implements the ordered, longest-prefix route table of
// spec.md §4.C: routes are kept in descending prefix-length order, ties
// broken by insertion order, and Select returns the first admissible route
// for a given request path/method/extension.
package route

import "strings"

// AuthType names the authentication protocol a route requires.
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthBasic  AuthType = "basic"
	AuthDigest AuthType = "digest"
	AuthForm   AuthType = "form"
	// AuthBearer is a supplemented authType (SPEC_FULL.md §10): a stateless
	// JWT session token presented as "Authorization: Bearer <token>".
	AuthBearer AuthType = "bearer"
)

// Route is immutable once installed into a Table.
type Route struct {
	Prefix     string
	Methods    map[string]bool // nil means "all methods admitted"
	Extensions map[string]bool // nil means "all extensions admitted"
	Abilities  []string        // required abilities; authorization is checked after authentication
	AuthType   AuthType
	Handlers   []string // names of handlers (from the handler registry) this route dispatches to

	seq int // insertion order, used to break prefix-length ties
}

// admitsMethod reports whether m is allowed by this route's method filter.
func (r *Route) admitsMethod(m string) bool {
	if len(r.Methods) == 0 {
		return true
	}
	return r.Methods[strings.ToUpper(m)]
}

// admitsExtension reports whether the file extension of path (without the
// leading dot) is allowed by this route's extension filter.
func (r *Route) admitsExtension(ext string) bool {
	if len(r.Extensions) == 0 {
		return true
	}
	return r.Extensions[strings.ToLower(ext)]
}

// RequiresAbility reports whether ability is among this route's required
// abilities.
func (r *Route) RequiresAbility(ability string) bool {
	for _, a := range r.Abilities {
		if a == ability {
			return true
		}
	}
	return false
}

// Table is the process-wide ordered route list. Mutation (Add/Remove) is
// only safe between requests per spec.md §5; Select is read-only and may be
// called from any connection goroutine concurrently once the table is no
// longer being mutated.
type Table struct {
	routes  []*Route
	nextSeq int
}

// New returns an empty route table.
func New() *Table {
	return &Table{}
}

// Add installs a route, keeping the table sorted by descending prefix
// length with ties resolved by insertion order.
func (t *Table) Add(r *Route) {
	r.seq = t.nextSeq
	t.nextSeq++
	t.routes = append(t.routes, r)
	t.resort()
}

// resort performs a stable sort so that equal-length prefixes retain
// relative insertion order (stable sort on the already-assigned seq field
// guarantees this regardless of sort algorithm details).
func (t *Table) resort() {
	// Simple insertion sort: route tables are small (tens of entries) and
	// mutated only at setup/admin time, never during dispatch.
	for i := 1; i < len(t.routes); i++ {
		j := i
		for j > 0 && less(t.routes[j], t.routes[j-1]) {
			t.routes[j], t.routes[j-1] = t.routes[j-1], t.routes[j]
			j--
		}
	}
}

func less(a, b *Route) bool {
	if len(a.Prefix) != len(b.Prefix) {
		return len(a.Prefix) > len(b.Prefix)
	}
	return a.seq < b.seq
}

// Remove deletes the first route with the given prefix, if any.
func (t *Table) Remove(prefix string) bool {
	for i, r := range t.routes {
		if r.Prefix == prefix {
			t.routes = append(t.routes[:i], t.routes[i+1:]...)
			return true
		}
	}
	return false
}

// Select returns the first admissible route for path/method/extension, or
// nil if none match. Admissibility here covers prefix, method, and
// extension only; required-ability authorization is deferred to the auth
// engine after authentication per spec.md §4.C.
func (t *Table) Select(path, method, extension string) *Route {
	for _, r := range t.routes {
		if !strings.HasPrefix(path, r.Prefix) {
			continue
		}
		if !r.admitsMethod(method) {
			continue
		}
		if !r.admitsExtension(extension) {
			continue
		}
		return r
	}
	return nil
}

// All returns a snapshot of the installed routes in dispatch order, used by
// the admin introspection surface.
func (t *Table) All() []*Route {
	out := make([]*Route, len(t.routes))
	copy(out, t.routes)
	return out
}
