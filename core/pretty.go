package core

import (
	"strings"
)

const indent = "  "

// prettify indents a compiled statement by block depth. The compiler emits
// one clause per line so only lines opening or closing a CALL subquery or a
// FOREACH body change the depth. Braces inside map literals always balance
// on the same line and are left alone.
func prettify(query string) string {
	var prettified strings.Builder
	// estimated size
	prettified.Grow(len(query) + 200)

	depth := 0
	for i, line := range strings.Split(query, "\n") {
		l := strings.TrimSpace(line)

		if closesBlock(l) && depth > 0 {
			depth--
		}

		if i != 0 {
			prettified.WriteByte('\n')
		}
		if l != "" {
			prettified.WriteString(strings.Repeat(indent, depth))
			prettified.WriteString(l)
		}

		if opensBlock(l) {
			depth++
		}
	}
	return prettified.String()
}

func opensBlock(l string) bool {
	return (strings.HasSuffix(l, "{") && !inString(l, len(l)-1)) ||
		(strings.HasPrefix(l, "FOREACH(") && strings.HasSuffix(l, "|"))
}

func closesBlock(l string) bool {
	return l == "}" || l == ")"
}

// inString reports whether the byte at pos sits inside a quoted string
func inString(l string, pos int) bool {
	var quote byte
	for i := 0; i < pos; i++ {
		c := l[i]
		switch {
		case quote != 0 && c == '\\':
			i++
		case quote != 0 && c == quote:
			quote = 0
		case quote == 0 && (c == '"' || c == '\''):
			quote = c
		}
	}
	return quote != 0
}
