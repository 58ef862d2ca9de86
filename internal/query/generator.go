package query

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrGenerationUnavailable means the provider could not be reached,
	// timed out, or is not configured at all.
	ErrGenerationUnavailable = errors.New("generation provider unavailable")
	// ErrGenerationEmpty means the provider answered but no usable
	// statement could be extracted from the text. Expected and non-fatal.
	ErrGenerationEmpty = errors.New("no usable query in provider output")
)

// Table is the single table name the engine exposes to generated queries.
const Table = "uploaded_values"

// Schema is the hint handed to generation and validation: the fixed table
// plus the column names present in the caller's current dataset.
type Schema struct {
	Table   string
	Columns []string
}

func NewSchema(columns []string) Schema {
	return Schema{Table: Table, Columns: columns}
}

// HasColumn reports whether name is one of the dataset's columns.
func (s Schema) HasColumn(name string) bool {
	for _, c := range s.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// TextGenerator is the opaque prompt -> text boundary.
type TextGenerator interface {
	ChatCompletion(ctx context.Context, system, user string) (string, error)
	IsConfigured() bool
}

// Generator turns a column + free-text operation into a candidate SQL
// statement. The provider is treated as untrusted text input: its answer
// goes through a deterministic extraction rule, never straight to the
// engine.
type Generator struct {
	provider TextGenerator
	timeout  time.Duration
}

func NewGenerator(provider TextGenerator, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Generator{provider: provider, timeout: timeout}
}

// Generate asks the provider for one SELECT aggregate over the fixed table
// and extracts the statement from its answer. Fails with
// ErrGenerationUnavailable or ErrGenerationEmpty.
func (g *Generator) Generate(ctx context.Context, ownerID, column, operation string) (string, error) {
	if g.provider == nil || !g.provider.IsConfigured() {
		return "", ErrGenerationUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	system := "SQL code only, no explanation or other text."
	user := fmt.Sprintf(
		"Your task is to write a SQLite query. "+
			"The query must compute the %s of the column '%s' from the table '%s' having user_id : %s. "+
			"The table has the following columns: user_id, column_name, value. "+
			"Return ONLY the SQLite query and nothing else, with no additional text or explanation. "+
			"The query must start with SELECT.",
		operation, column, Table, ownerID)

	raw, err := g.provider.ChatCompletion(ctx, system, user)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}

	stmt, ok := ExtractStatement(raw)
	if !ok {
		return "", ErrGenerationEmpty
	}
	return stmt, nil
}

var selectWord = regexp.MustCompile(`(?i)\bselect\b`)

// ExtractStatement applies the deterministic extraction rule to a raw
// provider response: drop code-fence markers, take the first contiguous
// block starting at SELECT and ending at a semicolon (or a blank line, or
// the end of the text), and normalise its whitespace. ok is false when no
// SELECT-shaped statement is present.
func ExtractStatement(raw string) (string, bool) {
	var b strings.Builder
	for _, line := range strings.Split(raw, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			// Fence markers end the line but keep line structure intact.
			b.WriteString("\n")
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	text := b.String()

	loc := selectWord.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	rest := text[loc[0]:]

	if end := strings.Index(rest, ";"); end >= 0 {
		rest = rest[:end]
	} else if end := strings.Index(rest, "\n\n"); end >= 0 {
		rest = rest[:end]
	}

	stmt := strings.Join(strings.Fields(rest), " ")
	upper := strings.ToUpper(stmt)
	if !strings.HasPrefix(upper, "SELECT ") || !strings.Contains(upper, " FROM ") {
		return "", false
	}
	return stmt + ";", true
}
