package library

import (
	"context"
	"log/slog"
)

// WaitingList keeps a FIFO queue of members per item.
type WaitingList struct {
	db     *Database
	logger *slog.Logger
}

func NewWaitingList(db *Database) *WaitingList {
	return &WaitingList{db: db, logger: db.Logger("waitlist")}
}

// Join queues the member for the item. It returns false without queueing
// when the item has copies available or the member is already waiting.
func (w *WaitingList) Join(ctx context.Context, memberID, itemID int64) (bool, error) {
	var joined bool
	err := w.db.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		if ok, err := tx.exists(ctx, "members", memberID); err != nil {
			return err
		} else if !ok {
			return notFound("member", memberID)
		}
		item, err := tx.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if item.IsAvailable() {
			return nil
		}
		waiting, err := tx.WaitingListEntryExists(ctx, memberID, itemID)
		if err != nil || waiting {
			return err
		}
		if _, err := tx.InsertWaitingListEntry(ctx, memberID, itemID); err != nil {
			return err
		}
		joined = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if joined {
		w.logger.Info("member joined waiting list", "member_id", memberID, "item_id", itemID)
	}
	return joined, nil
}

// Leave removes the member from the item's queue. It reports whether an
// entry was removed.
func (w *WaitingList) Leave(ctx context.Context, memberID, itemID int64) (bool, error) {
	var left bool
	err := w.db.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		var err error
		left, err = tx.DeleteWaitingListEntry(ctx, memberID, itemID)
		return err
	})
	if err != nil {
		return false, err
	}
	if left {
		w.logger.Info("member left waiting list", "member_id", memberID, "item_id", itemID)
	}
	return left, nil
}

// ListWaiting returns the queued members, longest waiting first.
func (w *WaitingList) ListWaiting(ctx context.Context, itemID int64) ([]*Member, error) {
	var members []*Member
	err := w.db.Read(ctx, func(ctx context.Context, tx *Tx) error {
		if ok, err := tx.exists(ctx, "items", itemID); err != nil {
			return err
		} else if !ok {
			return notFound("item", itemID)
		}
		var err error
		members, err = tx.ListWaitingMembers(ctx, itemID)
		return err
	})
	return members, err
}
