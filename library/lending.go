package library

import (
	"context"
	"log/slog"
)

// LendingEngine runs borrow and return transactions.
type LendingEngine struct {
	db          *Database
	memberships *MembershipService
	notifier    *NotificationDispatcher
	logger      *slog.Logger
}

func NewLendingEngine(db *Database, memberships *MembershipService, notifier *NotificationDispatcher) *LendingEngine {
	return &LendingEngine{
		db:          db,
		memberships: memberships,
		notifier:    notifier,
		logger:      db.Logger("lending"),
	}
}

// Borrow lends one copy of the item to the member. Checks run in a fixed
// order: existence, copies on the shelf, membership expiry, the plan's
// borrow limit, then an existing active borrow of the same item.
func (e *LendingEngine) Borrow(ctx context.Context, memberID, itemID int64) (*BorrowRecord, error) {
	var rec *BorrowRecord
	err := e.db.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		member, err := tx.GetMember(ctx, memberID)
		if err != nil {
			return err
		}
		item, err := tx.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if !item.IsAvailable() {
			return newError(ErrorTypeItemUnavailable, "%q has no copies available", item.Title)
		}
		if e.memberships.IsExpired(&member.Membership) {
			return newError(ErrorTypeMembershipExpired, "membership of member %d expired on %s",
				memberID, member.Membership.ExpiryDate.Format("2006-01-02"))
		}
		active, err := tx.CountActiveBorrows(ctx, memberID)
		if err != nil {
			return err
		}
		if limit := e.memberships.BorrowLimit(&member.Membership); active >= limit {
			return newError(ErrorTypeBorrowLimitExceeded, "member %d already holds %d of %d items", memberID, active, limit)
		}

		if rec, err = tx.InsertBorrowRecord(ctx, memberID, itemID); err != nil {
			return err
		}
		return tx.AdjustAvailableCopies(ctx, itemID, -1)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("item borrowed", "member_id", memberID, "item_id", itemID, "record_id", rec.ID)
	return rec, nil
}

// Return closes the member's active borrow of the item and puts the copy back.
// Once the return is committed, queued members are notified; a failure there
// is logged and does not affect the return.
func (e *LendingEngine) Return(ctx context.Context, memberID, itemID int64) (*BorrowRecord, error) {
	var rec *BorrowRecord
	err := e.db.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		var err error
		if rec, err = tx.FindActiveBorrow(ctx, memberID, itemID); err != nil {
			return err
		}
		if err := tx.MarkReturned(ctx, rec); err != nil {
			return err
		}
		return tx.AdjustAvailableCopies(ctx, itemID, 1)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("item returned", "member_id", memberID, "item_id", itemID, "record_id", rec.ID)

	if e.notifier != nil {
		sent, err := e.notifier.NotifyWaitingMembers(context.WithoutCancel(ctx), itemID)
		if err != nil {
			e.logger.Warn("notify waiting members failed", "item_id", itemID, "error", err)
		} else if sent > 0 {
			e.logger.Debug("waiting members notified", "item_id", itemID, "count", sent)
		}
	}
	return rec, nil
}

// ActiveBorrowCount returns how many items the member currently holds.
func (e *LendingEngine) ActiveBorrowCount(ctx context.Context, memberID int64) (int, error) {
	var n int
	err := e.db.Read(ctx, func(ctx context.Context, tx *Tx) error {
		if ok, err := tx.exists(ctx, "members", memberID); err != nil {
			return err
		} else if !ok {
			return notFound("member", memberID)
		}
		var err error
		n, err = tx.CountActiveBorrows(ctx, memberID)
		return err
	})
	return n, err
}

// CanBorrow reports whether the membership is current and below its limit.
func (e *LendingEngine) CanBorrow(ctx context.Context, memberID int64) (bool, error) {
	var ok bool
	err := e.db.Read(ctx, func(ctx context.Context, tx *Tx) error {
		member, err := tx.GetMember(ctx, memberID)
		if err != nil {
			return err
		}
		active, err := tx.CountActiveBorrows(ctx, memberID)
		if err != nil {
			return err
		}
		ok = !e.memberships.IsExpired(&member.Membership) &&
			active < e.memberships.BorrowLimit(&member.Membership)
		return nil
	})
	return ok, err
}

// BorrowedItems lists the items the member holds right now.
func (e *LendingEngine) BorrowedItems(ctx context.Context, memberID int64) ([]*Item, error) {
	var items []*Item
	err := e.db.Read(ctx, func(ctx context.Context, tx *Tx) error {
		if ok, err := tx.exists(ctx, "members", memberID); err != nil {
			return err
		} else if !ok {
			return notFound("member", memberID)
		}
		var err error
		items, err = tx.ListBorrowedItems(ctx, memberID)
		return err
	})
	return items, err
}

// ItemHistory returns every borrow record of the item, newest first.
func (e *LendingEngine) ItemHistory(ctx context.Context, itemID int64) ([]*BorrowRecord, error) {
	var recs []*BorrowRecord
	err := e.db.Read(ctx, func(ctx context.Context, tx *Tx) error {
		if ok, err := tx.exists(ctx, "items", itemID); err != nil {
			return err
		} else if !ok {
			return notFound("item", itemID)
		}
		var err error
		recs, err = tx.ListBorrowRecords(ctx, itemID)
		return err
	})
	return recs, err
}
