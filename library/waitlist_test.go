package library

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinRules(t *testing.T) {
	lm, _ := newManager(t)
	ctx := context.Background()
	item := addBook(t, lm, "Solo", "Author", "1", 1)
	alice := registerRegular(t, lm, "Alice", "alice@example.com")
	bob := registerRegular(t, lm, "Bob", "bob@example.com")

	joined, err := lm.WaitingList.Join(ctx, bob.ID, item.ID)
	require.NoError(t, err)
	assert.False(t, joined, "available items have no queue")

	_, err = lm.Lending.Borrow(ctx, alice.ID, item.ID)
	require.NoError(t, err)

	joined, err = lm.WaitingList.Join(ctx, bob.ID, item.ID)
	require.NoError(t, err)
	assert.True(t, joined)

	joined, err = lm.WaitingList.Join(ctx, bob.ID, item.ID)
	require.NoError(t, err)
	assert.False(t, joined, "second join is refused")

	_, err = lm.WaitingList.Join(ctx, 999, item.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = lm.WaitingList.Join(ctx, bob.ID, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	waiting, err := lm.WaitingList.ListWaiting(ctx, item.ID)
	require.NoError(t, err)
	assert.Len(t, waiting, 1)
}

func TestWaitingListIsFIFO(t *testing.T) {
	lm, clock := newManager(t)
	ctx := context.Background()
	item := addBook(t, lm, "Solo", "Author", "1", 1)
	holder := registerRegular(t, lm, "Holder", "holder@example.com")
	_, err := lm.Lending.Borrow(ctx, holder.ID, item.ID)
	require.NoError(t, err)

	first := registerRegular(t, lm, "First", "first@example.com")
	second := registerRegular(t, lm, "Second", "second@example.com")
	third := registerRegular(t, lm, "Third", "third@example.com")

	// second and third share a timestamp, so insertion order breaks the tie;
	// first is stored last but with the earliest timestamp.
	_, err = lm.WaitingList.Join(ctx, second.ID, item.ID)
	require.NoError(t, err)
	_, err = lm.WaitingList.Join(ctx, third.ID, item.ID)
	require.NoError(t, err)
	clock.Set(testNow.Add(-time.Hour))
	_, err = lm.WaitingList.Join(ctx, first.ID, item.ID)
	require.NoError(t, err)

	waiting, err := lm.WaitingList.ListWaiting(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, waiting, 3)
	assert.Equal(t, []int64{first.ID, second.ID, third.ID},
		[]int64{waiting[0].ID, waiting[1].ID, waiting[2].ID})
	assert.Equal(t, "Second", waiting[1].Name)

	left, err := lm.WaitingList.Leave(ctx, second.ID, item.ID)
	require.NoError(t, err)
	assert.True(t, left)
	left, err = lm.WaitingList.Leave(ctx, second.ID, item.ID)
	require.NoError(t, err)
	assert.False(t, left)

	waiting, err = lm.WaitingList.ListWaiting(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, waiting, 2)
	assert.Equal(t, third.ID, waiting[1].ID)
}

func TestListWaitingUnknownItem(t *testing.T) {
	lm, _ := newManager(t)
	_, err := lm.WaitingList.ListWaiting(context.Background(), 5)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertWaitingListEntryDuplicate(t *testing.T) {
	lm, _ := newManager(t)
	ctx := context.Background()
	item := addBook(t, lm, "Solo", "Author", "1", 1)
	m := registerRegular(t, lm, "Alice", "alice@example.com")

	insert := func() error {
		return lm.Database().RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
			_, err := tx.InsertWaitingListEntry(ctx, m.ID, item.ID)
			return err
		})
	}
	require.NoError(t, insert())
	assert.ErrorIs(t, insert(), ErrDuplicateWaitingListEntry)
}
