package nl2sql

import (
	"regexp"
	"strings"

	"github.com/shopassist/shopassist/internal/catalog"
)

var markerPattern = regexp.MustCompile(`(?is)<sql>(.*?)</sql>`)

var forbiddenKeywords = map[string]struct{}{
	"INSERT": {}, "UPDATE": {}, "DELETE": {}, "DROP": {}, "ALTER": {}, "CREATE": {},
	"ATTACH": {}, "DETACH": {}, "PRAGMA": {}, "REPLACE": {}, "TRUNCATE": {}, "GRANT": {},
	"REVOKE": {}, "COPY": {}, "VACUUM": {}, "INTO": {}, "CALL": {}, "EXEC": {},
	"EXECUTE": {}, "LOAD": {}, "INSTALL": {}, "SET": {},
}

// compoundKeywords reach a second relation or introspect the catalog.
var compoundKeywords = map[string]struct{}{
	"JOIN": {}, "UNION": {}, "INTERSECT": {}, "EXCEPT": {}, "WITH": {},
	"TABLE": {}, "PIVOT": {}, "UNPIVOT": {}, "SUMMARIZE": {}, "DESCRIBE": {}, "SHOW": {},
}

// clauseKeywords may follow the table reference; anything else in that
// position is taken as a table alias.
var clauseKeywords = map[string]struct{}{
	"WHERE": {}, "ORDER": {}, "GROUP": {}, "HAVING": {}, "LIMIT": {}, "OFFSET": {},
	"JOIN": {}, "INNER": {}, "LEFT": {}, "RIGHT": {}, "FULL": {}, "CROSS": {}, "NATURAL": {},
	"UNION": {}, "INTERSECT": {}, "EXCEPT": {}, "WINDOW": {},
}

// sqlKeywords are the words a strict column check accepts besides fields,
// aliases and function names.
var sqlKeywords = map[string]struct{}{
	"SELECT": {}, "FROM": {}, "WHERE": {}, "AND": {}, "OR": {}, "NOT": {}, "LIKE": {},
	"IN": {}, "IS": {}, "NULL": {}, "BETWEEN": {}, "ORDER": {}, "BY": {}, "ASC": {},
	"DESC": {}, "LIMIT": {}, "OFFSET": {}, "GROUP": {}, "HAVING": {}, "AS": {},
	"DISTINCT": {}, "CASE": {}, "WHEN": {}, "THEN": {}, "ELSE": {}, "END": {},
	"COLLATE": {}, "NOCASE": {}, "TRUE": {}, "FALSE": {}, "ESCAPE": {}, "NULLS": {},
	"FIRST": {}, "LAST": {},
}

type ValidatorOptions struct {
	// StrictColumns rejects identifiers that are not product fields. When
	// off, unknown columns are left for the engine to report.
	StrictColumns bool
}

// Validator pulls the delimited statement out of generated text and checks it
// is a single read-only SELECT * over the product table.
type Validator struct {
	schema        catalog.Schema
	strictColumns bool
}

func NewValidator(opts ValidatorOptions) *Validator {
	return &Validator{schema: catalog.ProductSchema(), strictColumns: opts.StrictColumns}
}

var defaultValidator = NewValidator(ValidatorOptions{})

// Extract runs the default validator.
func Extract(raw RawOutput) (Statement, error) {
	return defaultValidator.Extract(raw)
}

func (v *Validator) Extract(raw RawOutput) (Statement, error) {
	spans := make([]string, 0, 1)
	for _, match := range markerPattern.FindAllStringSubmatch(string(raw), -1) {
		if span := stripMarkdownSQL(match[1]); span != "" {
			spans = append(spans, span)
		}
	}
	if len(spans) == 0 {
		return "", ErrNoStatementFound
	}
	if len(spans) > 1 {
		return "", invalidf("found %d delimited statements, expected one", len(spans))
	}
	return v.Validate(spans[0])
}

// Validate checks a bare statement and returns it without a trailing
// semicolon.
func (v *Validator) Validate(sql string) (Statement, error) {
	sql = strings.TrimSpace(sql)
	tokens, err := lex(sql)
	if err != nil {
		return "", invalidf("%s", err.Error())
	}
	if n := len(tokens); n > 0 && tokens[n-1].isSymbol(";") {
		tokens = tokens[:n-1]
		sql = strings.TrimSpace(strings.TrimSuffix(sql, ";"))
	}
	if len(tokens) == 0 {
		return "", ErrNoStatementFound
	}

	if len(tokens) < 4 || !tokens[0].isKeyword("SELECT") || !tokens[1].isSymbol("*") {
		return "", invalidf("statement must start with SELECT *")
	}
	if !tokens[2].isKeyword("FROM") {
		return "", invalidf("statement must select every field with SELECT * FROM %s", v.schema.Table)
	}
	table := tokens[3]
	if (table.kind != tokenWord && table.kind != tokenQuotedIdent) || !strings.EqualFold(table.text, v.schema.Table) {
		return "", invalidf("statement must read from %s", v.schema.Table)
	}

	aliases := map[string]struct{}{strings.ToUpper(v.schema.Table): {}}
	rest := tokens[4:]
	if len(rest) > 0 && rest[0].isSymbol(".") {
		return "", invalidf("qualified table names are not allowed")
	}
	if len(rest) > 0 && rest[0].isKeyword("AS") {
		rest = rest[1:]
		if len(rest) == 0 {
			return "", invalidf("missing table alias")
		}
	}
	if len(rest) > 0 && rest[0].kind == tokenWord && isAliasCandidate(rest[0].upper) {
		aliases[rest[0].upper] = struct{}{}
		rest = rest[1:]
	}
	if len(rest) > 0 && rest[0].isSymbol(",") {
		return "", invalidf("reading from more than one table is not allowed")
	}

	for i, tok := range rest {
		if tok.isSymbol(";") {
			return "", invalidf("multiple statements are not allowed")
		}
		if tok.kind != tokenWord {
			continue
		}
		if _, forbidden := forbiddenKeywords[tok.upper]; forbidden {
			return "", invalidf("keyword %s is not allowed", tok.upper)
		}
		if _, compound := compoundKeywords[tok.upper]; compound {
			return "", invalidf("%s is not allowed, only a single table may be read", tok.upper)
		}
		switch tok.upper {
		case "ILIKE":
			return "", invalidf("ILIKE is not allowed, use LIKE")
		case "SELECT", "FROM":
			return "", invalidf("subqueries are not allowed")
		case "AS":
			if i+1 < len(rest) && (rest[i+1].kind == tokenWord || rest[i+1].kind == tokenQuotedIdent) {
				aliases[rest[i+1].upper] = struct{}{}
			}
		}
	}

	if v.strictColumns {
		if err := v.checkColumns(rest, aliases); err != nil {
			return "", err
		}
	}
	return Statement(sql), nil
}

// isAliasCandidate reports whether a word after the table can be its alias.
// Reserved words are left for the keyword checks.
func isAliasCandidate(upper string) bool {
	for _, reserved := range []map[string]struct{}{clauseKeywords, compoundKeywords, forbiddenKeywords} {
		if _, ok := reserved[upper]; ok {
			return false
		}
	}
	return true
}

func (v *Validator) checkColumns(tokens []token, aliases map[string]struct{}) error {
	for i, tok := range tokens {
		if tok.kind != tokenWord && tok.kind != tokenQuotedIdent {
			continue
		}
		if tok.kind == tokenWord {
			if _, keyword := sqlKeywords[tok.upper]; keyword {
				continue
			}
			if i+1 < len(tokens) && tokens[i+1].isSymbol("(") {
				continue
			}
			if i+1 < len(tokens) && tokens[i+1].isSymbol(".") {
				if _, known := aliases[tok.upper]; known {
					continue
				}
			}
		}
		if _, alias := aliases[tok.upper]; alias {
			continue
		}
		if !v.schema.HasField(tok.text) {
			return invalidf("unknown field %s", tok.text)
		}
	}
	return nil
}

func stripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if len(trimmed) >= 3 && strings.EqualFold(trimmed[:3], "sql") {
		trimmed = trimmed[3:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
