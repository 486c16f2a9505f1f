package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maruel/bibliodb/internal/storage/storagetest"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func writeConfig(t *testing.T, secret string) string {
	t.Helper()
	t.Setenv("BIBLIODB_JWT_SECRET", "")
	dir := t.TempDir()
	storagetest.Write(t, dir, storagetest.NewData(now))
	cfg := `JsonPaths:
  Authors: authors.json
  Books: books.json
  BookItems: bookitems.json
  Patrons: patrons.json
  Loans: loans.json
Auth:
  JWTSecret: "` + secret + `"
`
	path := filepath.Join(dir, "bibliodb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	a := &app{out: &buf, now: func() time.Time { return now }}
	cmd := newRootCmd(a)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.ExecuteContext(t.Context())
	return buf.String(), err
}

func TestPatronsCommands(t *testing.T) {
	cfg := writeConfig(t, "")

	out, err := run(t, cfg, "patrons", "search", "J")
	require.NoError(t, err)
	assert.Contains(t, out, `2 patrons matching "J"`)
	assert.Contains(t, out, "#2 Jane Smith (expired 2024-05-02, 1 loans)")
	assert.Less(t, strings.Index(out, "Jane Smith"), strings.Index(out, "John Doe"))

	out, err = run(t, cfg, "patrons", "show", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "#1 John Doe (member until 2025-06-01, 1 loans)")
	assert.Contains(t, out, "Loan #1, due 2024-06-08")
	assert.Contains(t, out, `"Test Book 1" ISBN 1234567890 by Test Author 1`)

	_, err = run(t, cfg, "patrons", "show", "99")
	assert.ErrorContains(t, err, "Patron not found.")

	_, err = run(t, cfg, "patrons", "show", "abc")
	assert.ErrorContains(t, err, `invalid id "abc"`)

	_, err = run(t, cfg, "patrons", "renew", "1")
	assert.EqualError(t, err, "It is too early to renew the membership.")

	out, err = run(t, cfg, "patrons", "renew", "2")
	require.NoError(t, err)
	assert.Equal(t, "Membership renewal was successful. Membership ends 2025-06-01.\n", out)
}

func TestLoansCommands(t *testing.T) {
	cfg := writeConfig(t, "")

	out, err := run(t, cfg, "loans", "show", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Loan #2, returned 2024-05-27")
	assert.Contains(t, out, "Patron #2 Jane Smith")

	out, err = run(t, cfg, "loans", "extend", "1")
	require.NoError(t, err)
	assert.Equal(t, "Book loan extension was successful. Due 2024-06-22.\n", out)

	_, err = run(t, cfg, "loans", "return", "2")
	assert.EqualError(t, err, "Cannot return book as the book is already returned.")

	out, err = run(t, cfg, "loans", "return", "1")
	require.NoError(t, err)
	assert.Equal(t, "Book was successfully returned.\n", out)

	_, err = run(t, cfg, "loans", "extend", "1")
	assert.EqualError(t, err, "Cannot extend book loan as the book is already returned.")

	_, err = run(t, cfg, "loans", "show", "42")
	assert.ErrorContains(t, err, "Loan not found.")
}

func TestSchemaCommand(t *testing.T) {
	cfg := writeConfig(t, "")
	out, err := run(t, cfg, "schema", "loans")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "loans\n"), out)
	assert.Contains(t, out, "Id number required")
	assert.Contains(t, out, "ReturnDate date")
	assert.NotContains(t, out, "Patron ")

	out, err = run(t, cfg, "schema")
	require.NoError(t, err)
	for _, name := range []string{"authors", "books", "bookItems", "patrons", "loans"} {
		assert.Contains(t, out, name+"\n")
	}

	_, err = run(t, cfg, "schema", "members")
	assert.Error(t, err)
}

func TestExportCommand(t *testing.T) {
	cfg := writeConfig(t, "")
	path := filepath.Join(t.TempDir(), "snapshot.db")
	out, err := run(t, cfg, "export", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Snapshot ")
	assert.Contains(t, out, "loans: 2 rows")
	assert.FileExists(t, path)
}

func TestTokenCommand(t *testing.T) {
	out, err := run(t, writeConfig(t, "s3cret"), "token", "--subject", "alice", "--ttl", "1h")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "."), 3)

	_, err = run(t, writeConfig(t, ""), "token", "--subject", "alice")
	assert.ErrorContains(t, err, "no JWT secret configured")

	_, err = run(t, writeConfig(t, "s3cret"), "token")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abcdef", truncate("abcdef", 0))
	assert.Equal(t, "abcdef", truncate("abcdef", 6))
	assert.Equal(t, "abc…", truncate("abcdef", 4))
	assert.Equal(t, "…", truncate("abcdef", 1))
	assert.Equal(t, "├──…", truncate("├── item", 4))
}

func TestPrintTruncates(t *testing.T) {
	var buf bytes.Buffer
	a := &app{out: &buf, width: 10, configPath: writeConfig(t, ""), now: func() time.Time { return now }}
	require.NoError(t, a.open(t.Context()))
	p, err := a.patrons.GetPatron(t.Context(), 1)
	require.NoError(t, err)
	a.print(a.patronTree(p))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Greater(t, len(lines), 3)
	for _, line := range lines {
		assert.LessOrEqual(t, len([]rune(line)), 10, line)
	}
}
