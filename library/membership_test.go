package library

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerRegular(t *testing.T, lm *LibraryManager, name, email string) *Member {
	t.Helper()
	ms, err := lm.Memberships.CreateMembership(PlanRegular, nil)
	require.NoError(t, err)
	m, err := lm.Memberships.RegisterMember(context.Background(), NewMember{Name: name, Email: email}, ms)
	require.NoError(t, err)
	return m
}

func registerPremium(t *testing.T, lm *LibraryManager, name, email string, expiry time.Time) *Member {
	t.Helper()
	ms, err := lm.Memberships.CreateMembership(PlanPremium, &expiry)
	require.NoError(t, err)
	m, err := lm.Memberships.RegisterMember(context.Background(), NewMember{Name: name, Email: email}, ms)
	require.NoError(t, err)
	return m
}

func TestCreateMembership(t *testing.T) {
	lm, _ := newManager(t)
	svc := lm.Memberships
	expiry := date(2025, 6, 1)

	regular, err := svc.CreateMembership(PlanRegular, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, svc.BorrowLimit(regular))
	assert.Nil(t, regular.ExpiryDate)

	premium, err := svc.CreateMembership(PlanPremium, &expiry)
	require.NoError(t, err)
	assert.Equal(t, 5, svc.BorrowLimit(premium))
	assert.Equal(t, expiry, *premium.ExpiryDate)

	_, err = svc.CreateMembership(PlanPremium, nil)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.CreateMembership(PlanRegular, &expiry)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.CreateMembership(Plan("gold"), nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParsePlan(t *testing.T) {
	p, err := ParsePlan(" Premium ")
	require.NoError(t, err)
	assert.Equal(t, PlanPremium, p)

	_, err = ParsePlan("platinum")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestIsExpired(t *testing.T) {
	lm, clock := newManager(t)
	svc := lm.Memberships
	clock.Set(time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC))

	tests := []struct {
		name   string
		expiry time.Time
		want   bool
	}{
		{"yesterday", date(2025, 3, 9), true},
		{"today", date(2025, 3, 10), false},
		{"tomorrow", date(2025, 3, 11), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms, err := svc.CreateMembership(PlanPremium, &tt.expiry)
			require.NoError(t, err)
			assert.Equal(t, tt.want, svc.IsExpired(ms))
		})
	}

	regular, err := svc.CreateMembership(PlanRegular, nil)
	require.NoError(t, err)
	assert.False(t, svc.IsExpired(regular))
}

func TestRenew(t *testing.T) {
	lm, clock := newManager(t)
	svc := lm.Memberships

	t.Run("extends from current expiry", func(t *testing.T) {
		clock.Set(date(2025, 1, 1))
		expiry := date(2025, 1, 10)
		ms, err := svc.CreateMembership(PlanPremium, &expiry)
		require.NoError(t, err)

		require.NoError(t, svc.Renew(ms, 30))
		assert.Equal(t, date(2025, 2, 9), *ms.ExpiryDate)
	})

	t.Run("restarts from today when lapsed", func(t *testing.T) {
		clock.Set(date(2025, 3, 1))
		expiry := date(2025, 1, 10)
		ms, err := svc.CreateMembership(PlanPremium, &expiry)
		require.NoError(t, err)

		require.NoError(t, svc.Renew(ms, 30))
		assert.Equal(t, date(2025, 3, 31), *ms.ExpiryDate)
	})

	t.Run("regular is untouched", func(t *testing.T) {
		ms, err := svc.CreateMembership(PlanRegular, nil)
		require.NoError(t, err)
		require.NoError(t, svc.Renew(ms, 30))
		assert.Nil(t, ms.ExpiryDate)
	})

	t.Run("days must be positive", func(t *testing.T) {
		expiry := date(2025, 1, 10)
		ms, err := svc.CreateMembership(PlanPremium, &expiry)
		require.NoError(t, err)
		assert.ErrorIs(t, svc.Renew(ms, 0), ErrValidation)
		assert.Equal(t, expiry, *ms.ExpiryDate)
	})
}

func TestDaysUntilExpiry(t *testing.T) {
	lm, clock := newManager(t)
	svc := lm.Memberships
	clock.Set(time.Date(2025, 1, 1, 18, 0, 0, 0, time.UTC))

	regular, err := svc.CreateMembership(PlanRegular, nil)
	require.NoError(t, err)
	assert.Equal(t, -1, svc.DaysUntilExpiry(regular))

	future := date(2025, 1, 11)
	premium, err := svc.CreateMembership(PlanPremium, &future)
	require.NoError(t, err)
	assert.Equal(t, 10, svc.DaysUntilExpiry(premium))

	past := date(2024, 12, 1)
	lapsed, err := svc.CreateMembership(PlanPremium, &past)
	require.NoError(t, err)
	assert.Equal(t, 0, svc.DaysUntilExpiry(lapsed))
}

func TestRegisterMember(t *testing.T) {
	lm, _ := newManager(t)
	ctx := context.Background()

	m := registerPremium(t, lm, "Grace", "Grace@Example.com", date(2025, 12, 31))
	assert.NotZero(t, m.ID)
	assert.Equal(t, "grace@example.com", m.Email)
	require.NotNil(t, m.Membership.MemberID)
	assert.Equal(t, m.ID, *m.Membership.MemberID)

	got, err := lm.Memberships.GetMember(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Grace", got.Name)
	assert.Equal(t, PlanPremium, got.Membership.Plan)
	assert.Equal(t, 5, got.Membership.BorrowLimit)
	require.NotNil(t, got.Membership.ExpiryDate)
	assert.True(t, date(2025, 12, 31).Equal(*got.Membership.ExpiryDate))

	regular, err := lm.Memberships.CreateMembership(PlanRegular, nil)
	require.NoError(t, err)
	_, err = lm.Memberships.RegisterMember(ctx, NewMember{Name: "Other", Email: "grace@example.com"}, regular)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = lm.Memberships.RegisterMember(ctx, NewMember{Name: "Bad", Email: "not-an-email"}, regular)
	assert.ErrorIs(t, err, ErrValidation)

	members, err := lm.Memberships.ListMembers(ctx)
	require.NoError(t, err)
	assert.Len(t, members, 1)

	var memberships int
	require.NoError(t, lm.Database().db.GetContext(ctx, &memberships, "SELECT COUNT(*) FROM memberships"))
	assert.Equal(t, 1, memberships)
}

func TestGetMemberNotFound(t *testing.T) {
	lm, _ := newManager(t)
	_, err := lm.Memberships.GetMember(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveMemberCascades(t *testing.T) {
	lm, _ := newManager(t)
	ctx := context.Background()
	held := addBook(t, lm, "Held", "Author", "1", 1)
	wanted := addBook(t, lm, "Wanted", "Author", "2", 1)
	alice := registerRegular(t, lm, "Alice", "alice@example.com")
	bob := registerRegular(t, lm, "Bob", "bob@example.com")

	_, err := lm.Lending.Borrow(ctx, alice.ID, held.ID)
	require.NoError(t, err)
	_, err = lm.Lending.Borrow(ctx, bob.ID, wanted.ID)
	require.NoError(t, err)
	joined, err := lm.WaitingList.Join(ctx, alice.ID, wanted.ID)
	require.NoError(t, err)
	require.True(t, joined)
	_, err = lm.Notifications.CreateNotification(ctx, alice.ID, "hello")
	require.NoError(t, err)

	removed, err := lm.Memberships.RemoveMember(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = lm.Memberships.GetMember(ctx, alice.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	db := lm.Database()
	counts := map[string]int{}
	for _, table := range []string{"memberships", "borrow_records", "waiting_list_entries", "notifications"} {
		var n int
		require.NoError(t, db.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+table))
		counts[table] = n
	}
	assert.Equal(t, map[string]int{
		"memberships":          1,
		"borrow_records":       1,
		"waiting_list_entries": 0,
		"notifications":        0,
	}, counts)

	item, err := lm.Catalog.GetItem(ctx, held.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, item.AvailableCopies)

	removed, err = lm.Memberships.RemoveMember(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRenewMembership(t *testing.T) {
	lm, _ := newManager(t)
	ctx := context.Background()
	m := registerPremium(t, lm, "Grace", "grace@example.com", date(2025, 1, 10))

	updated, err := lm.Memberships.RenewMembership(ctx, m.ID, 30)
	require.NoError(t, err)
	assert.Equal(t, date(2025, 2, 9), *updated.Membership.ExpiryDate)

	got, err := lm.Memberships.GetMember(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, date(2025, 2, 9).Equal(*got.Membership.ExpiryDate))

	_, err = lm.Memberships.RenewMembership(ctx, m.ID, -5)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = lm.Memberships.RenewMembership(ctx, 999, 30)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChangePlan(t *testing.T) {
	lm, _ := newManager(t)
	ctx := context.Background()
	m := registerRegular(t, lm, "Alice", "alice@example.com")
	expiry := date(2025, 6, 30)

	up, err := lm.Memberships.ChangePlan(ctx, m.ID, PlanPremium, &expiry)
	require.NoError(t, err)
	assert.Equal(t, PlanPremium, up.Membership.Plan)
	assert.Equal(t, 5, up.Membership.BorrowLimit)

	for i, isbn := range []string{"a", "b", "c", "d"} {
		item := addBook(t, lm, "Book "+isbn, "Author", isbn, 1)
		_, err := lm.Lending.Borrow(ctx, m.ID, item.ID)
		require.NoError(t, err, "borrow %d", i)
	}

	_, err = lm.Memberships.ChangePlan(ctx, m.ID, PlanRegular, nil)
	assert.ErrorIs(t, err, ErrBorrowLimitExceeded)

	got, err := lm.Memberships.GetMember(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, PlanPremium, got.Membership.Plan)

	_, err = lm.Memberships.ChangePlan(ctx, m.ID, PlanRegular, &expiry)
	assert.ErrorIs(t, err, ErrValidation)
}
