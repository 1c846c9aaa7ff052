package prompts

import (
	"regexp"
	"strings"
)

// Placeholder represents a single {{VAR:...}} occurrence with parsed options.
type Placeholder struct {
	Raw     string
	Name    string
	Options map[string]string // e.g., join, default
}

var (
	// Matches {{VAR:name|key=value|key2="quoted value"}}
	// Capture 1 = name, Capture 2 = options (may be empty)
	varPattern = regexp.MustCompile(`\{\{VAR:([a-zA-Z0-9_\-]+)((?:\|[^}]+)?)}}`)
	optPattern = regexp.MustCompile(`\|([^=|]+)=([^|]+)`) // key=value segments
)

// ParsePlaceholders returns all placeholder occurrences in order of appearance.
func ParsePlaceholders(body string) []Placeholder {
	matches := varPattern.FindAllStringSubmatch(body, -1)
	out := make([]Placeholder, 0, len(matches))
	for _, m := range matches {
		opts := map[string]string{}
		for _, seg := range optPattern.FindAllStringSubmatch(m[2], -1) {
			key := strings.ToLower(strings.TrimSpace(seg[1]))
			opts[key] = decodeEscapes(unquote(strings.TrimSpace(seg[2])))
		}
		out = append(out, Placeholder{Raw: m[0], Name: m[1], Options: opts})
	}
	return out
}

// HasPlaceholder reports whether body references the named variable
func HasPlaceholder(body, name string) bool {
	for _, ph := range ParsePlaceholders(body) {
		if ph.Name == name {
			return true
		}
	}
	return false
}

// RenderVars replaces every placeholder with its value. A list value
// (newline separated) is joined with the join option when present; an
// empty value falls back to the default option, else to "".
func RenderVars(body string, vars map[string]string) string {
	phs := ParsePlaceholders(body)
	if len(phs) == 0 {
		return body
	}
	pairs := make([]string, 0, len(phs)*2)
	seen := map[string]bool{}
	for _, ph := range phs {
		if seen[ph.Raw] {
			continue
		}
		seen[ph.Raw] = true

		val := vars[ph.Name]
		if sep, ok := ph.Options["join"]; ok && val != "" {
			val = strings.Join(strings.Split(val, "\n"), sep)
		}
		if val == "" {
			val = ph.Options["default"]
		}
		pairs = append(pairs, ph.Raw, val)
	}
	return strings.NewReplacer(pairs...).Replace(body)
}

func unquote(val string) string {
	if len(val) >= 2 && ((val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'')) {
		return val[1 : len(val)-1]
	}
	return val
}

// escapeReplacer decodes \n, \t, \r and \\ in option values; other
// backslash sequences are left as written.
var escapeReplacer = strings.NewReplacer(`\\`, `\`, `\n`, "\n", `\t`, "\t", `\r`, "\r")

func decodeEscapes(s string) string {
	return escapeReplacer.Replace(s)
}
