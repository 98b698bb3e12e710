package library

import (
	"context"
	"fmt"
)

// LibraryManager wires every engine component to one store handle, keeping
// CLI code simple.
type LibraryManager struct {
	db *Database

	Catalog       *Catalog
	Memberships   *MembershipService
	Lending       *LendingEngine
	WaitingList   *WaitingList
	Notifications *NotificationDispatcher
}

// NewLibraryManager opens (or creates) the SQLite database described by cfg.
func NewLibraryManager(ctx context.Context, cfg StoreConfig, opts ...Option) (*LibraryManager, error) {
	db, err := NewDatabase(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return NewLibraryManagerFromDatabase(db), nil
}

// NewLibraryManagerFromDatabase builds the components on an already open store.
func NewLibraryManagerFromDatabase(db *Database) *LibraryManager {
	memberships := NewMembershipService(db)
	notifications := NewNotificationDispatcher(db)
	return &LibraryManager{
		db:            db,
		Catalog:       NewCatalog(db),
		Memberships:   memberships,
		Lending:       NewLendingEngine(db, memberships, notifications),
		WaitingList:   NewWaitingList(db),
		Notifications: notifications,
	}
}

// Database exposes the underlying store.
func (lm *LibraryManager) Database() *Database { return lm.db }

// Close closes the underlying database.
func (lm *LibraryManager) Close() error { return lm.db.Close() }

// ------------------ Utilities ------------------

// PrettyItem formats an item for lists.
func PrettyItem(i *Item) string {
	return fmt.Sprintf("%-5d %-30s %-25s %-6s %3d/%-3d", i.ID, i.Title, i.Creator, i.Kind, i.AvailableCopies, i.TotalCopies)
}

// PrettyMember formats a member for lists.
func PrettyMember(m *Member) string {
	expiry := "-"
	if m.Membership.ExpiryDate != nil {
		expiry = m.Membership.ExpiryDate.Format("2006-01-02")
	}
	return fmt.Sprintf("%-5d %-25s %-30s %-8s %-10s", m.ID, m.Name, m.Email, m.Membership.Plan, expiry)
}
