// internal/privacy/filter.go

// Package privacy decides whether a candidate history line may be counted.
// Anything that looks like code, a quoted string, or a path is rejected so
// only bare command names ever leave this package.
package privacy

import "strings"

// codeChars are characters whose presence marks a line as code-like.
// A line containing any of them is rejected wholesale.
const codeChars = "()[]=.:\"'"

// denylist holds shell keywords and interpreter noise that surface in
// history files but are not commands a person ran.
var denylist = map[string]struct{}{
	"if": {}, "then": {}, "else": {}, "elif": {}, "fi": {},
	"for": {}, "while": {}, "until": {}, "do": {}, "done": {},
	"case": {}, "esac": {}, "function": {}, "return": {},
	"echo": {}, "export": {}, "local": {}, "set": {}, "unset": {},
	"true": {}, "false": {}, "in": {},
}

// elevationPrefix is stripped before the command name is taken.
const elevationPrefix = "sudo"

// Accept classifies one line of history. If the line is countable it returns
// the command name (first whitespace-delimited token, privilege-elevation
// marker stripped) and true; otherwise it returns "", false. It never panics:
// malformed input degrades to a rejection.
func Accept(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", false
	}
	if strings.HasPrefix(trimmed, "#") {
		return "", false
	}
	if strings.ContainsAny(trimmed, codeChars) {
		return "", false
	}

	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return "", false
	}
	if fields[0] == elevationPrefix {
		fields = fields[1:]
		if len(fields) == 0 {
			return "", false
		}
	}

	token := fields[0]
	if _, denied := denylist[token]; denied {
		return "", false
	}
	return token, true
}

// Tally runs every line through Accept and counts the surviving tokens.
func Tally(lines []string) map[string]int {
	counts := make(map[string]int)
	for _, line := range lines {
		if token, ok := Accept(line); ok {
			counts[token]++
		}
	}
	return counts
}
