package nl2sql

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenQuotedIdent
	tokenString
	tokenNumber
	tokenSymbol
)

type token struct {
	kind  tokenKind
	text  string
	upper string
	// start and end are rune offsets into the lexed statement.
	start, end int
}

func (t token) is(kind tokenKind, upper string) bool {
	return t.kind == kind && t.upper == upper
}

func (t token) isKeyword(upper string) bool {
	return t.is(tokenWord, upper)
}

func (t token) isSymbol(symbol string) bool {
	return t.is(tokenSymbol, symbol)
}

var twoCharSymbols = []string{"<=", ">=", "<>", "!=", "==", "||"}

// lex splits a statement into tokens. String literals and quoted identifiers
// are single tokens so keywords inside them are never seen as keywords.
func lex(sql string) ([]token, error) {
	runes := []rune(sql)
	tokens := make([]token, 0, len(runes)/3)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			return nil, fmt.Errorf("comments are not allowed")
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			return nil, fmt.Errorf("comments are not allowed")
		case r == '\'':
			end, text, err := scanQuoted(runes, i, '\'')
			if err != nil {
				return nil, fmt.Errorf("unterminated string literal")
			}
			tokens = append(tokens, token{kind: tokenString, text: text, start: i, end: end})
			i = end
		case r == '"' || r == '`':
			end, text, err := scanQuoted(runes, i, r)
			if err != nil {
				return nil, fmt.Errorf("unterminated quoted identifier")
			}
			tokens = append(tokens, token{kind: tokenQuotedIdent, text: text, upper: strings.ToUpper(text), start: i, end: end})
			i = end
		case r == '_' || unicode.IsLetter(r):
			start := i
			for i < len(runes) && (runes[i] == '_' || runes[i] == '$' || unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i])) {
				i++
			}
			text := string(runes[start:i])
			tokens = append(tokens, token{kind: tokenWord, text: text, upper: strings.ToUpper(text), start: start, end: i})
		case unicode.IsDigit(r) || (r == '.' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			start := i
			for i < len(runes) && (runes[i] == '.' || unicode.IsDigit(runes[i]) || unicode.IsLetter(runes[i])) {
				i++
			}
			text := string(runes[start:i])
			tokens = append(tokens, token{kind: tokenNumber, text: text, upper: strings.ToUpper(text), start: start, end: i})
		default:
			symbol := string(r)
			if i+1 < len(runes) {
				pair := string(runes[i : i+2])
				for _, candidate := range twoCharSymbols {
					if pair == candidate {
						symbol = pair
						break
					}
				}
			}
			width := len([]rune(symbol))
			tokens = append(tokens, token{kind: tokenSymbol, text: symbol, upper: symbol, start: i, end: i + width})
			i += width
		}
	}
	return tokens, nil
}

// scanQuoted reads a quoted run starting at runes[start] where a doubled quote
// is an escaped quote. It returns the index after the closing quote and the
// unescaped content.
func scanQuoted(runes []rune, start int, quote rune) (int, string, error) {
	var b strings.Builder
	for i := start + 1; i < len(runes); i++ {
		if runes[i] != quote {
			b.WriteRune(runes[i])
			continue
		}
		if i+1 < len(runes) && runes[i+1] == quote {
			b.WriteRune(quote)
			i++
			continue
		}
		return i + 1, b.String(), nil
	}
	return 0, "", fmt.Errorf("unterminated")
}
