package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-lending/library"
)

type runner struct {
	t  *testing.T
	db string
}

func newRunner(t *testing.T) *runner {
	t.Setenv("LENDING_LOGGER_LEVEL", "error")
	return &runner{t: t, db: filepath.Join(t.TempDir(), "cli.db")}
}

func (r *runner) run(stdin string, args ...string) (string, error) {
	r.t.Helper()
	var out bytes.Buffer
	args = append([]string{"--db", r.db}, args...)
	err := Execute(context.Background(), args, strings.NewReader(stdin), &out)
	return out.String(), err
}

func (r *runner) mustRun(args ...string) string {
	r.t.Helper()
	out, err := r.run("", args...)
	require.NoError(r.t, err, out)
	return out
}

func TestLendingFlow(t *testing.T) {
	r := newRunner(t)

	out := r.mustRun("item", "add", "book", "--title", "Clean Code", "--creator", "Robert C. Martin", "--isbn", "9780132350884", "--pages", "464")
	assert.Contains(t, out, "Added book ID 1")
	out = r.mustRun("member", "add", "--name", "Alice", "--email", "alice@example.com")
	assert.Contains(t, out, "ID 1")
	out = r.mustRun("member", "add", "--name", "Bob", "--email", "bob@example.com", "--plan", "premium", "--expiry", "2999-01-01")
	assert.Contains(t, out, "ID 2")

	out = r.mustRun("borrow", "1", "1")
	assert.Contains(t, out, "Borrowed: record 1")

	_, err := r.run("", "borrow", "2", "1")
	assert.ErrorIs(t, err, library.ErrItemUnavailable)

	out = r.mustRun("waitlist", "join", "2", "1")
	assert.Contains(t, out, "Member 2 is waiting for item 1")
	out = r.mustRun("return", "1", "1")
	assert.Contains(t, out, "Returned")

	out = r.mustRun("notifications", "list", "2", "--unread")
	assert.Contains(t, out, "Clean Code is now available")

	out = r.mustRun("item", "history", "1")
	assert.Contains(t, out, "returned")

	out = r.mustRun("member", "show", "2")
	assert.Contains(t, out, "Plan: premium (limit 5)")
}

func TestJSONOutput(t *testing.T) {
	r := newRunner(t)
	r.mustRun("item", "add", "media", "--title", "Alien", "--creator", "Ridley Scott", "--duration", "117", "--genre", "Sci-Fi", "--copies", "2")

	out := r.mustRun("-o", "json", "item", "list")
	var items []struct {
		ID              int64  `json:"id"`
		Title           string `json:"title"`
		Kind            string `json:"kind"`
		AvailableCopies int    `json:"available_copies"`
		Details         struct {
			Genre string `json:"genre"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Alien", items[0].Title)
	assert.Equal(t, "media", items[0].Kind)
	assert.Equal(t, 2, items[0].AvailableCopies)
	assert.Equal(t, "Sci-Fi", items[0].Details.Genre)
}

func TestCommandErrors(t *testing.T) {
	r := newRunner(t)

	_, err := r.run("", "item", "show", "abc")
	assert.ErrorIs(t, err, library.ErrValidation)

	_, err = r.run("", "item", "show", "5")
	assert.ErrorIs(t, err, library.ErrNotFound)

	_, err = r.run("", "member", "add", "--name", "Carol", "--email", "carol@example.com", "--plan", "premium")
	assert.ErrorIs(t, err, library.ErrValidation)

	_, err = r.run("", "-o", "yaml", "item", "list")
	assert.Error(t, err)
}

func TestShell(t *testing.T) {
	r := newRunner(t)
	script := strings.Join([]string{
		"add book", "Dune", "Frank Herbert", "1", "9780441013593", "412",
		"add member", "Paul", "paul@example.com", "regular",
		"borrow", "1", "1",
		"list items",
		"bogus",
		"exit",
	}, "\n") + "\n"

	out, err := r.run(script, "shell")
	require.NoError(t, err)
	assert.Contains(t, out, "Added book ID 1")
	assert.Contains(t, out, "Added member 'Paul' with ID 1")
	assert.Contains(t, out, "Borrowed: record 1")
	assert.Contains(t, out, "Dune")
	assert.Contains(t, out, "Unknown command")
	assert.Contains(t, out, "Goodbye!")
}
