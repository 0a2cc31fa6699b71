package nl2sql

import (
	"fmt"
	"strings"
)

// CaseInsensitiveLike rewrites every LIKE operator in a statement to ILIKE so
// engines whose LIKE ignores collations still match text case-insensitively.
// String literals and quoted identifiers are left untouched.
func CaseInsensitiveLike(sql string) (string, error) {
	tokens, err := lex(sql)
	if err != nil {
		return "", fmt.Errorf("rewrite like: %w", err)
	}
	runes := []rune(sql)
	var b strings.Builder
	b.Grow(len(sql) + 8)
	last := 0
	for _, tok := range tokens {
		if !tok.isKeyword("LIKE") {
			continue
		}
		b.WriteString(string(runes[last:tok.start]))
		b.WriteString("ILIKE")
		last = tok.end
	}
	b.WriteString(string(runes[last:]))
	return b.String(), nil
}
