package route

import (
	"fmt"
	"sort"
	"strings"
)

// FormatDirectives renders t's routes back into `route key=value ...`
// directive lines, in the same format LoadDirectives parses, in dispatch
// order. auth.FileStore uses this to re-emit route configuration when it
// persists the combined auth/route file, so a Server.AddUser/AddRole/
// SetUserRoles write-back doesn't drop the routes sharing that file
// (spec.md §6: "Write-back produces a file in the same shape with the
// current in-memory state").
func FormatDirectives(t *Table) []string {
	all := t.All()
	lines := make([]string, 0, len(all))
	for _, r := range all {
		line := fmt.Sprintf(
			"route prefix=%s methods=%s extensions=%s abilities=%s auth=%s handlers=%s",
			r.Prefix,
			strings.Join(sortedKeys(r.Methods), ","),
			strings.Join(sortedKeys(r.Extensions), ","),
			strings.Join(r.Abilities, ","),
			r.AuthType,
			strings.Join(r.Handlers, ","),
		)
		// Keys with an empty value are left out, as LoadDirectives reads a
		// missing key and an empty one alike.
		var kept []string
		for _, f := range strings.Fields(line) {
			if !strings.HasSuffix(f, "=") {
				kept = append(kept, f)
			}
		}
		lines = append(lines, strings.Join(kept, " "))
	}
	return lines
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
