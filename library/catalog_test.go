package library

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) (*LibraryManager, *testClock) {
	t.Helper()
	db, clock := tempDB(t)
	return NewLibraryManagerFromDatabase(db), clock
}

func addBook(t *testing.T, lm *LibraryManager, title, author, isbn string, copies int) *Item {
	t.Helper()
	item, err := lm.Catalog.AddItem(context.Background(), NewItem{
		Title: title, Creator: author, Copies: copies,
		Details: &BookDetails{ISBN: isbn, NumPages: 300},
	})
	require.NoError(t, err)
	return item
}

func TestAddItem(t *testing.T) {
	lm, _ := newManager(t)
	ctx := context.Background()

	book := addBook(t, lm, "Clean Code", "Robert C. Martin", "9780132350884", 2)
	assert.NotZero(t, book.ID)
	assert.Equal(t, KindBook, book.Kind)
	assert.Equal(t, 2, book.TotalCopies)
	assert.Equal(t, 2, book.AvailableCopies)
	assert.Equal(t, testNow, book.CreatedAt)

	film, err := lm.Catalog.AddItem(ctx, NewItem{
		Title: "Alien", Creator: "Ridley Scott", Copies: 1,
		Details: &MediaDetails{DurationMinutes: 117, Genre: "Sci-Fi"},
	})
	require.NoError(t, err)
	assert.Equal(t, KindMedia, film.Kind)

	got, err := lm.Catalog.GetItem(ctx, film.ID)
	require.NoError(t, err)
	assert.Equal(t, &MediaDetails{DurationMinutes: 117, Genre: "Sci-Fi"}, got.Details)
	assert.Contains(t, got.Describe(), "Director: Ridley Scott")
	assert.Contains(t, got.Describe(), "Type: Media")
}

func TestAddItemValidation(t *testing.T) {
	lm, _ := newManager(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   NewItem
	}{
		{"zero copies", NewItem{Title: "A", Creator: "B", Copies: 0, Details: &BookDetails{ISBN: "1", NumPages: 1}}},
		{"blank title", NewItem{Title: "  ", Creator: "B", Copies: 1, Details: &BookDetails{ISBN: "1", NumPages: 1}}},
		{"missing details", NewItem{Title: "A", Creator: "B", Copies: 1}},
		{"long isbn", NewItem{Title: "A", Creator: "B", Copies: 1, Details: &BookDetails{ISBN: strings.Repeat("9", 21), NumPages: 1}}},
		{"no pages", NewItem{Title: "A", Creator: "B", Copies: 1, Details: &BookDetails{ISBN: "1", NumPages: 0}}},
		{"no duration", NewItem{Title: "A", Creator: "B", Copies: 1, Details: &MediaDetails{Genre: "Jazz"}}},
		{"long genre", NewItem{Title: "A", Creator: "B", Copies: 1, Details: &MediaDetails{DurationMinutes: 3, Genre: strings.Repeat("g", 51)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := lm.Catalog.AddItem(ctx, tt.in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	items, err := lm.Catalog.ListItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestAddItemDuplicateISBN(t *testing.T) {
	lm, _ := newManager(t)
	addBook(t, lm, "First", "Author", "12345", 1)

	_, err := lm.Catalog.AddItem(context.Background(), NewItem{
		Title: "Second", Creator: "Author", Copies: 1,
		Details: &BookDetails{ISBN: "12345", NumPages: 10},
	})
	assert.ErrorIs(t, err, ErrValidation)

	items, err := lm.Catalog.ListItems(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestGetItemNotFound(t *testing.T) {
	lm, _ := newManager(t)
	_, err := lm.Catalog.GetItem(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchItems(t *testing.T) {
	lm, _ := newManager(t)
	ctx := context.Background()
	addBook(t, lm, "The Go Programming Language", "Alan Donovan", "1", 1)
	addBook(t, lm, "Refactoring", "Martin Fowler", "2", 1)
	addBook(t, lm, "Clean Code", "Robert C. Martin", "3", 1)

	res, err := lm.Catalog.SearchItems(ctx, "MARTIN")
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "Refactoring", res[0].Title)
	assert.Equal(t, "Clean Code", res[1].Title)

	res, err = lm.Catalog.SearchItems(ctx, "go prog")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "Alan Donovan", res[0].Creator)

	res, err = lm.Catalog.SearchItems(ctx, "")
	require.NoError(t, err)
	assert.Len(t, res, 3)

	res, err = lm.Catalog.SearchItems(ctx, "tolkien")
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestRemoveItemCascades(t *testing.T) {
	lm, _ := newManager(t)
	ctx := context.Background()
	item := addBook(t, lm, "Clean Code", "Robert C. Martin", "9780132350884", 1)
	alice := registerRegular(t, lm, "Alice", "alice@example.com")
	bob := registerRegular(t, lm, "Bob", "bob@example.com")

	_, err := lm.Lending.Borrow(ctx, alice.ID, item.ID)
	require.NoError(t, err)
	joined, err := lm.WaitingList.Join(ctx, bob.ID, item.ID)
	require.NoError(t, err)
	require.True(t, joined)

	removed, err := lm.Catalog.RemoveItem(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = lm.Catalog.GetItem(ctx, item.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	db := lm.Database()
	for _, table := range []string{"book_details", "borrow_records", "waiting_list_entries"} {
		var n int
		require.NoError(t, db.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+table))
		assert.Zero(t, n, table)
	}

	count, err := lm.Lending.ActiveBorrowCount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	removed, err = lm.Catalog.RemoveItem(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestDescribeBook(t *testing.T) {
	item := &Item{Title: "Clean Code", Creator: "Robert C. Martin", Kind: KindBook,
		TotalCopies: 2, AvailableCopies: 0,
		Details: &BookDetails{ISBN: "9780132350884", NumPages: 464}}

	out := item.Describe()
	assert.Contains(t, out, "Author: Robert C. Martin")
	assert.Contains(t, out, "ISBN: 9780132350884")
	assert.Contains(t, out, "Available: 0/2")
	assert.Contains(t, out, "Can be borrowed: false")
	assert.False(t, (&Catalog{}).IsAvailable(item))
}
