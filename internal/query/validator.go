package query

import (
	"fmt"
	"regexp"
	"strings"
)

// Verdict is the outcome of static validation of a candidate query.
type Verdict struct {
	Accepted bool
	Reason   string
}

func accepted() Verdict {
	return Verdict{Accepted: true}
}

func rejected(format string, args ...interface{}) Verdict {
	return Verdict{Reason: fmt.Sprintf(format, args...)}
}

// String renders the verdict the way records store it.
func (v Verdict) String() string {
	if v.Accepted {
		return "accepted"
	}
	return "rejected: " + v.Reason
}

// Keywords that take a candidate outside the single-table aggregate-read
// subset. The check is an allow-list at heart: anything suggesting writes,
// DDL, multiple tables, or engine-level side effects is out.
var forbiddenKeywords = map[string]bool{
	"insert": true, "update": true, "delete": true, "replace": true,
	"drop": true, "create": true, "alter": true, "truncate": true,
	"attach": true, "detach": true, "pragma": true, "vacuum": true,
	"reindex": true, "grant": true, "revoke": true, "into": true,
	"join": true, "union": true, "intersect": true, "except": true,
	"with": true,
}

// Aggregate-shape functions SQLite supports over the value column.
var allowedFunctions = map[string]bool{
	"count": true, "sum": true, "avg": true, "min": true, "max": true,
	"total": true, "round": true, "abs": true,
}

// Dialect aggregates MySQL-trained output likes to emit that the embedded
// engine has no built-ins for. Rejection routes the caller to the
// deterministic fallback instead of a guaranteed engine error.
var unsupportedFunctions = map[string]bool{
	"stddev": true, "stddev_pop": true, "stddev_samp": true, "std": true,
	"variance": true, "var_pop": true, "var_samp": true, "median": true,
}

// Structural keywords a plain filtered aggregate may contain.
var allowedKeywords = map[string]bool{
	"select": true, "from": true, "where": true, "and": true, "or": true,
	"as": true, "is": true, "not": true, "null": true, "distinct": true,
	"limit": true,
}

// Column identifiers of the fixed table.
var tableColumns = map[string]bool{
	"user_id": true, "column_name": true, "value": true,
}

var (
	lineComment   = regexp.MustCompile(`--[^\n]*`)
	blockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	stringLiteral = regexp.MustCompile(`'[^']*'`)
	identifier    = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
	functionCall  = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	fromTable     = regexp.MustCompile(`(?i)\bfrom\s+([A-Za-z_][A-Za-z0-9_.]*)`)
	columnFilter  = regexp.MustCompile(`(?i)\bcolumn_name\s*=\s*'([^']*)'`)
)

// Validate statically inspects a candidate statement before it may reach
// the execution engine. It never executes anything; a false rejection is
// acceptable, an unsafe acceptance is not.
func Validate(candidate string, schema Schema) Verdict {
	stripped := blockComment.ReplaceAllString(candidate, " ")
	stripped = lineComment.ReplaceAllString(stripped, " ")
	stmt := strings.TrimSpace(stripped)
	stmt = strings.TrimSuffix(stmt, ";")

	if stmt == "" {
		return rejected("empty statement")
	}
	if strings.Contains(stmt, ";") {
		return rejected("multiple statements")
	}

	// Literal contents must not leak into the identifier scan.
	masked := stringLiteral.ReplaceAllString(stmt, "''")

	tokens := identifier.FindAllString(masked, -1)
	if len(tokens) == 0 || strings.ToLower(tokens[0]) != "select" {
		return rejected("statement must be a single SELECT")
	}

	selects := 0
	for i, tok := range tokens {
		word := strings.ToLower(tok)
		if word == "select" {
			selects++
			continue
		}
		// An identifier right after AS is an output alias, not a reference.
		if i > 0 && strings.ToLower(tokens[i-1]) == "as" {
			continue
		}
		if forbiddenKeywords[word] {
			return rejected("disallowed keyword %q", word)
		}
		if unsupportedFunctions[word] {
			return rejected("function %q is not supported by the execution engine", word)
		}
		if allowedKeywords[word] || allowedFunctions[word] || tableColumns[word] || word == Table {
			continue
		}
		return rejected("unknown identifier %q", word)
	}
	if selects > 1 {
		return rejected("nested SELECT")
	}

	for _, m := range functionCall.FindAllStringSubmatch(masked, -1) {
		fn := strings.ToLower(m[1])
		if !allowedFunctions[fn] {
			return rejected("function %q is not allowed", fn)
		}
	}

	from := fromTable.FindStringSubmatch(masked)
	if from == nil {
		return rejected("missing FROM clause")
	}
	if from[1] != schema.Table {
		return rejected("unknown table %q", from[1])
	}

	filters := columnFilter.FindAllStringSubmatch(stmt, -1)
	if len(filters) == 0 {
		return rejected("query does not filter on column_name")
	}
	for _, m := range filters {
		if !schema.HasColumn(m[1]) {
			return rejected("unknown column %q", m[1])
		}
	}

	return accepted()
}
