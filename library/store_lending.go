package library

import (
	"context"

	"github.com/doug-martin/goqu/v9"
)

var (
	borrowRecordColumns = []interface{}{"id", "member_id", "item_id", "borrow_date", "return_date", "status"}
	waitingListColumns  = []interface{}{"id", "member_id", "item_id", "joined_at"}
	notificationColumns = []interface{}{"id", "member_id", "message", "is_read", "created_at"}
)

// ---------------------------------------------------------------------------
// Borrow records
// ---------------------------------------------------------------------------

// InsertBorrowRecord appends an active record. A second active record for the
// same member and item is rejected by the partial unique index.
func (t *Tx) InsertBorrowRecord(ctx context.Context, memberID, itemID int64) (*BorrowRecord, error) {
	rec := &BorrowRecord{
		MemberID:   memberID,
		ItemID:     itemID,
		BorrowDate: t.now().UTC(),
		Status:     StatusBorrowed,
	}
	id, err := t.insert(ctx, insertInto("borrow_records").Rows(goqu.Record{
		"member_id":   rec.MemberID,
		"item_id":     rec.ItemID,
		"borrow_date": rec.BorrowDate,
		"status":      string(rec.Status),
	}))
	if isUniqueViolation(err) {
		return nil, newError(ErrorTypeAlreadyBorrowed, "member %d already has item %d", memberID, itemID)
	}
	if err != nil {
		return nil, err
	}
	rec.ID = id
	return rec, nil
}

// FindActiveBorrow returns the member's open record for the item.
func (t *Tx) FindActiveBorrow(ctx context.Context, memberID, itemID int64) (*BorrowRecord, error) {
	var rec BorrowRecord
	err := t.get(ctx, &rec, from("borrow_records").Select(borrowRecordColumns...).Where(
		goqu.C("member_id").Eq(memberID),
		goqu.C("item_id").Eq(itemID),
		goqu.C("status").Eq(string(StatusBorrowed)),
	))
	if isNoRows(err) {
		return nil, newError(ErrorTypeNoActiveBorrow, "member %d has no active borrow of item %d", memberID, itemID)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarkReturned closes an active record. Records that are already returned
// are left alone and reported as NoActiveBorrow.
func (t *Tx) MarkReturned(ctx context.Context, rec *BorrowRecord) error {
	returned := t.now().UTC()
	n, err := t.affected(ctx, update("borrow_records").
		Set(goqu.Record{"status": string(StatusReturned), "return_date": returned}).
		Where(goqu.C("id").Eq(rec.ID), goqu.C("status").Eq(string(StatusBorrowed))))
	if err != nil {
		return err
	}
	if n == 0 {
		return newError(ErrorTypeNoActiveBorrow, "borrow record %d is not active", rec.ID)
	}
	rec.Status = StatusReturned
	rec.ReturnDate = &returned
	return nil
}

// CountActiveBorrows counts the member's open records.
func (t *Tx) CountActiveBorrows(ctx context.Context, memberID int64) (int, error) {
	return t.count(ctx, "borrow_records",
		goqu.C("member_id").Eq(memberID),
		goqu.C("status").Eq(string(StatusBorrowed)))
}

// CountActiveBorrowsForItem counts open records against the item.
func (t *Tx) CountActiveBorrowsForItem(ctx context.Context, itemID int64) (int, error) {
	return t.count(ctx, "borrow_records",
		goqu.C("item_id").Eq(itemID),
		goqu.C("status").Eq(string(StatusBorrowed)))
}

// ListBorrowRecords returns the item's full history, newest first.
func (t *Tx) ListBorrowRecords(ctx context.Context, itemID int64) ([]*BorrowRecord, error) {
	var recs []*BorrowRecord
	err := t.selectAll(ctx, &recs, from("borrow_records").
		Select(borrowRecordColumns...).
		Where(goqu.C("item_id").Eq(itemID)).
		Order(goqu.C("borrow_date").Desc(), goqu.C("id").Desc()))
	return recs, err
}

// ListBorrowedItems returns the items the member currently holds, in borrow order.
func (t *Tx) ListBorrowedItems(ctx context.Context, memberID int64) ([]*Item, error) {
	return t.queryItems(ctx, itemsQuery().
		InnerJoin(goqu.T("borrow_records").As("br"), goqu.On(goqu.I("br.item_id").Eq(goqu.I("i.id")))).
		Where(
			goqu.I("br.member_id").Eq(memberID),
			goqu.I("br.status").Eq(string(StatusBorrowed)),
		).
		Order(goqu.I("br.borrow_date").Asc(), goqu.I("br.id").Asc()))
}

// ---------------------------------------------------------------------------
// Waiting list
// ---------------------------------------------------------------------------

// InsertWaitingListEntry queues the member for the item.
func (t *Tx) InsertWaitingListEntry(ctx context.Context, memberID, itemID int64) (*WaitingListEntry, error) {
	entry := &WaitingListEntry{MemberID: memberID, ItemID: itemID, JoinedAt: t.now().UTC()}
	id, err := t.insert(ctx, insertInto("waiting_list_entries").Rows(goqu.Record{
		"member_id": entry.MemberID,
		"item_id":   entry.ItemID,
		"joined_at": entry.JoinedAt,
	}))
	if isUniqueViolation(err) {
		return nil, newError(ErrorTypeDuplicateWaitingListEntry, "member %d is already waiting for item %d", memberID, itemID)
	}
	if err != nil {
		return nil, err
	}
	entry.ID = id
	return entry, nil
}

func (t *Tx) WaitingListEntryExists(ctx context.Context, memberID, itemID int64) (bool, error) {
	n, err := t.count(ctx, "waiting_list_entries",
		goqu.C("member_id").Eq(memberID),
		goqu.C("item_id").Eq(itemID))
	return n > 0, err
}

func (t *Tx) DeleteWaitingListEntry(ctx context.Context, memberID, itemID int64) (bool, error) {
	n, err := t.affected(ctx, deleteFrom("waiting_list_entries").Where(
		goqu.C("member_id").Eq(memberID),
		goqu.C("item_id").Eq(itemID)))
	return n > 0, err
}

// ListWaitingListEntries returns the item's queue in FIFO order.
func (t *Tx) ListWaitingListEntries(ctx context.Context, itemID int64) ([]*WaitingListEntry, error) {
	var entries []*WaitingListEntry
	err := t.selectAll(ctx, &entries, from("waiting_list_entries").
		Select(waitingListColumns...).
		Where(goqu.C("item_id").Eq(itemID)).
		Order(goqu.C("joined_at").Asc(), goqu.C("id").Asc()))
	return entries, err
}

// ListWaitingMembers returns the members queued for the item in FIFO order.
func (t *Tx) ListWaitingMembers(ctx context.Context, itemID int64) ([]*Member, error) {
	return t.queryMembers(ctx, membersQuery().
		InnerJoin(goqu.T("waiting_list_entries").As("w"), goqu.On(goqu.I("w.member_id").Eq(goqu.I("mb.id")))).
		Where(goqu.I("w.item_id").Eq(itemID)).
		Order(goqu.I("w.joined_at").Asc(), goqu.I("w.id").Asc()))
}

// ---------------------------------------------------------------------------
// Notifications
// ---------------------------------------------------------------------------

func (t *Tx) InsertNotification(ctx context.Context, memberID int64, message string) (*Notification, error) {
	n := &Notification{MemberID: memberID, Message: message, CreatedAt: t.now().UTC()}
	id, err := t.insert(ctx, insertInto("notifications").Rows(goqu.Record{
		"member_id":  n.MemberID,
		"message":    n.Message,
		"is_read":    false,
		"created_at": n.CreatedAt,
	}))
	if err != nil {
		return nil, err
	}
	n.ID = id
	return n, nil
}

// ListNotifications returns the member's notifications, newest first.
func (t *Tx) ListNotifications(ctx context.Context, memberID int64, unreadOnly bool) ([]*Notification, error) {
	ds := from("notifications").
		Select(notificationColumns...).
		Where(goqu.C("member_id").Eq(memberID)).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc())
	if unreadOnly {
		ds = ds.Where(goqu.C("is_read").IsFalse())
	}
	var out []*Notification
	err := t.selectAll(ctx, &out, ds)
	return out, err
}

func (t *Tx) MarkNotificationRead(ctx context.Context, id int64) (bool, error) {
	n, err := t.affected(ctx, update("notifications").
		Set(goqu.Record{"is_read": true}).
		Where(goqu.C("id").Eq(id)))
	return n > 0, err
}
