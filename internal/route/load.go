package route

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadDirectives parses the `route` directives out of the combined
// auth/route file format of spec.md §6 (one line per directive: `route
// prefix=... methods=... extensions=... abilities=... auth=... handlers=...`)
// and appends them to t in file order, preserving insertion-order tie
// breaking. `user` and `role` lines (and comments/blank lines) are skipped;
// they are consumed separately by auth.FileStore against the same path.
func LoadDirectives(path string, t *Table) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("route: opening %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if fields[0] != "route" {
			continue
		}
		kv := map[string]string{}
		for _, f := range fields[1:] {
			eq := strings.IndexByte(f, '=')
			if eq < 0 {
				continue
			}
			kv[f[:eq]] = f[eq+1:]
		}
		if kv["prefix"] == "" {
			return fmt.Errorf("route: %s:%d: route directive missing prefix", path, lineNo)
		}
		t.Add(&Route{
			Prefix:     kv["prefix"],
			Methods:    setOf(upperAll(splitCSV(kv["methods"]))),
			Extensions: setOf(lowerAll(splitCSV(kv["extensions"]))),
			Abilities:  splitCSV(kv["abilities"]),
			AuthType:   AuthType(orDefault(kv["auth"], string(AuthNone))),
			Handlers:   splitCSV(kv["handlers"]),
		})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("route: reading %s: %w", path, err)
	}
	return nil
}

func upperAll(vals []string) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = strings.ToUpper(v)
	}
	return out
}

func lowerAll(vals []string) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = strings.ToLower(v)
	}
	return out
}

func setOf(vals []string) map[string]bool {
	if len(vals) == 0 {
		return nil
	}
	out := make(map[string]bool, len(vals))
	for _, v := range vals {
		out[v] = true
	}
	return out
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
