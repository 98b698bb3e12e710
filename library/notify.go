package library

import (
	"context"
	"log/slog"
	"strings"
)

// NotificationDispatcher persists notifications for members.
type NotificationDispatcher struct {
	db     *Database
	logger *slog.Logger
}

func NewNotificationDispatcher(db *Database) *NotificationDispatcher {
	return &NotificationDispatcher{db: db, logger: db.Logger("notify")}
}

func availabilityMessage(title string) string { return title + " is now available" }

// NotifyWaitingMembers sends one notification to every member queued for the
// item and returns how many were sent. The queue itself is left intact.
func (n *NotificationDispatcher) NotifyWaitingMembers(ctx context.Context, itemID int64) (int, error) {
	var sent int
	err := n.db.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		sent = 0
		item, err := tx.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if !item.IsAvailable() {
			return newError(ErrorTypeItemUnavailable, "%q has no copies available", item.Title)
		}
		entries, err := tx.ListWaitingListEntries(ctx, itemID)
		if err != nil {
			return err
		}
		msg := availabilityMessage(item.Title)
		for _, entry := range entries {
			if _, err := tx.InsertNotification(ctx, entry.MemberID, msg); err != nil {
				return err
			}
			sent++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return sent, nil
}

// CreateNotification stores a free-form message for the member.
func (n *NotificationDispatcher) CreateNotification(ctx context.Context, memberID int64, message string) (*Notification, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, NewValidationError("notification message is required")
	}
	var note *Notification
	err := n.db.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		if ok, err := tx.exists(ctx, "members", memberID); err != nil {
			return err
		} else if !ok {
			return notFound("member", memberID)
		}
		var err error
		note, err = tx.InsertNotification(ctx, memberID, message)
		return err
	})
	if err != nil {
		return nil, err
	}
	n.logger.Debug("notification created", "member_id", memberID, "notification_id", note.ID)
	return note, nil
}

// ListNotifications returns the member's notifications, newest first.
func (n *NotificationDispatcher) ListNotifications(ctx context.Context, memberID int64, unreadOnly bool) ([]*Notification, error) {
	var out []*Notification
	err := n.db.Read(ctx, func(ctx context.Context, tx *Tx) error {
		var err error
		out, err = tx.ListNotifications(ctx, memberID, unreadOnly)
		return err
	})
	return out, err
}

// MarkRead flags the notification as read. It reports false for unknown ids.
func (n *NotificationDispatcher) MarkRead(ctx context.Context, notificationID int64) (bool, error) {
	var ok bool
	err := n.db.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		var err error
		ok, err = tx.MarkNotificationRead(ctx, notificationID)
		return err
	})
	return ok, err
}
