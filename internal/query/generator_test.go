package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	reply      string
	err        error
	configured bool
}

func (s *stubProvider) ChatCompletion(ctx context.Context, system, user string) (string, error) {
	return s.reply, s.err
}

func (s *stubProvider) IsConfigured() bool {
	return s.configured
}

func TestExtractStatementPlain(t *testing.T) {
	stmt, ok := ExtractStatement("SELECT AVG(value) FROM uploaded_values WHERE column_name = 'price';")
	require.True(t, ok)
	assert.Equal(t, "SELECT AVG(value) FROM uploaded_values WHERE column_name = 'price';", stmt)
}

func TestExtractStatementFenced(t *testing.T) {
	raw := "Here is the query you asked for:\n```sql\nSELECT SUM(value)\nFROM uploaded_values\nWHERE column_name = 'qty';\n```\nLet me know if you need anything else."

	stmt, ok := ExtractStatement(raw)
	require.True(t, ok)
	assert.Equal(t, "SELECT SUM(value) FROM uploaded_values WHERE column_name = 'qty';", stmt)
}

func TestExtractStatementProseWrapped(t *testing.T) {
	raw := "Sure! The statement below computes the average.\n\nSELECT AVG(value) FROM uploaded_values WHERE column_name = 'price'\n\nIt filters on the column name."

	stmt, ok := ExtractStatement(raw)
	require.True(t, ok)
	assert.Equal(t, "SELECT AVG(value) FROM uploaded_values WHERE column_name = 'price';", stmt)
}

func TestExtractStatementTakesFirst(t *testing.T) {
	raw := "SELECT COUNT(value) FROM uploaded_values WHERE column_name = 'a'; SELECT 1;"

	stmt, ok := ExtractStatement(raw)
	require.True(t, ok)
	assert.Equal(t, "SELECT COUNT(value) FROM uploaded_values WHERE column_name = 'a';", stmt)
}

func TestExtractStatementNoQuery(t *testing.T) {
	for _, raw := range []string{
		"",
		"I cannot help with that.",
		"select without a source table",
	} {
		_, ok := ExtractStatement(raw)
		assert.False(t, ok, "raw: %q", raw)
	}
}

func TestGenerateUnconfiguredProvider(t *testing.T) {
	gen := NewGenerator(&stubProvider{configured: false}, time.Second)

	_, err := gen.Generate(context.Background(), "alice", "price", "average")
	assert.ErrorIs(t, err, ErrGenerationUnavailable)
}

func TestGenerateNilProvider(t *testing.T) {
	gen := NewGenerator(nil, time.Second)

	_, err := gen.Generate(context.Background(), "alice", "price", "average")
	assert.ErrorIs(t, err, ErrGenerationUnavailable)
}

func TestGenerateProviderError(t *testing.T) {
	gen := NewGenerator(&stubProvider{configured: true, err: errors.New("rate limited")}, time.Second)

	_, err := gen.Generate(context.Background(), "alice", "price", "average")
	assert.ErrorIs(t, err, ErrGenerationUnavailable)
}

func TestGenerateEmptyAnswer(t *testing.T) {
	gen := NewGenerator(&stubProvider{configured: true, reply: "I am unable to write SQL today."}, time.Second)

	_, err := gen.Generate(context.Background(), "alice", "price", "average")
	assert.ErrorIs(t, err, ErrGenerationEmpty)
}

func TestGenerateExtractsStatement(t *testing.T) {
	reply := "```sql\nSELECT AVG(value) FROM uploaded_values WHERE column_name = 'price' AND user_id = 'alice';\n```"
	gen := NewGenerator(&stubProvider{configured: true, reply: reply}, time.Second)

	stmt, err := gen.Generate(context.Background(), "alice", "price", "average")
	require.NoError(t, err)
	assert.Equal(t, "SELECT AVG(value) FROM uploaded_values WHERE column_name = 'price' AND user_id = 'alice';", stmt)
}
