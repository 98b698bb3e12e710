package library

import (
	"fmt"
	"strings"
	"time"
)

// ItemKind tags the variant of a catalog item. The kind decides which
// subtype table holds the item's details.
type ItemKind string

const (
	KindBook  ItemKind = "book"
	KindMedia ItemKind = "media"
)

// ItemDetails is the capability every kind-specific record provides.
type ItemDetails interface {
	Kind() ItemKind
	TypeName() string
	DescribeItem(item *Item) string
}

// Item is a borrowable catalog entry together with its copy counts.
type Item struct {
	ID              int64       `db:"id" json:"id"`
	Title           string      `db:"title" json:"title"`
	Creator         string      `db:"creator" json:"creator"`
	Kind            ItemKind    `db:"kind" json:"kind"`
	TotalCopies     int         `db:"total_copies" json:"total_copies"`
	AvailableCopies int         `db:"available_copies" json:"available_copies"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	Details         ItemDetails `db:"-" json:"details,omitempty"`
}

// IsAvailable reports whether at least one copy can be lent out.
func (i *Item) IsAvailable() bool { return i.AvailableCopies > 0 }

// Describe renders the item through its kind-specific details.
func (i *Item) Describe() string {
	if i.Details == nil {
		return fmt.Sprintf("Title: %s\nCreator: %s\nType: %s\nAvailable: %d/%d",
			i.Title, i.Creator, i.Kind, i.AvailableCopies, i.TotalCopies)
	}
	return i.Details.DescribeItem(i)
}

// BookDetails is the subtype record for printed books.
type BookDetails struct {
	ISBN     string `db:"isbn" json:"isbn" validate:"required,max=20"`
	NumPages int    `db:"num_pages" json:"num_pages" validate:"min=1"`
}

func (*BookDetails) Kind() ItemKind   { return KindBook }
func (*BookDetails) TypeName() string { return "Book" }

func (b *BookDetails) DescribeItem(item *Item) string {
	return fmt.Sprintf("Title: %s\nAuthor: %s\nISBN: %s\nPages: %d\nType: %s\nAvailable: %d/%d\nCan be borrowed: %t",
		item.Title, item.Creator, b.ISBN, b.NumPages, b.TypeName(),
		item.AvailableCopies, item.TotalCopies, item.IsAvailable())
}

// MediaDetails is the subtype record for audio/video media.
type MediaDetails struct {
	DurationMinutes int    `db:"duration_minutes" json:"duration_minutes" validate:"min=1"`
	Genre           string `db:"genre" json:"genre" validate:"required,max=50"`
}

func (*MediaDetails) Kind() ItemKind   { return KindMedia }
func (*MediaDetails) TypeName() string { return "Media" }

func (m *MediaDetails) DescribeItem(item *Item) string {
	return fmt.Sprintf("Title: %s\nDirector: %s\nDuration: %d minutes\nGenre: %s\nType: %s\nAvailable: %d/%d\nCan be borrowed: %t",
		item.Title, item.Creator, m.DurationMinutes, m.Genre, m.TypeName(),
		item.AvailableCopies, item.TotalCopies, item.IsAvailable())
}

// Plan is the membership tier.
type Plan string

const (
	PlanRegular Plan = "regular"
	PlanPremium Plan = "premium"
)

// BorrowLimit is the fixed number of concurrent borrows the plan allows.
func (p Plan) BorrowLimit() int {
	switch p {
	case PlanPremium:
		return 5
	case PlanRegular:
		return 3
	default:
		return 0
	}
}

func (p Plan) Valid() bool { return p == PlanRegular || p == PlanPremium }

// ParsePlan accepts the plan name in any case.
func ParsePlan(s string) (Plan, error) {
	p := Plan(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", NewValidationError("unknown membership plan", s)
	}
	return p, nil
}

// Membership is owned 1:1 by a Member. ExpiryDate is set iff Plan is Premium.
type Membership struct {
	ID          int64      `db:"id" json:"id"`
	MemberID    *int64     `db:"member_id" json:"member_id,omitempty"`
	Plan        Plan       `db:"plan" json:"plan"`
	BorrowLimit int        `db:"borrow_limit" json:"borrow_limit"`
	ExpiryDate  *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Member represents a registered library member. It carries no db tags: the
// store scans members into memberRow and builds a Member from it.
type Member struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	CreatedAt  time.Time  `json:"created_at"`
	Membership Membership `json:"membership"`
}

// BorrowStatus is the state of a single borrow event.
type BorrowStatus string

const (
	StatusBorrowed BorrowStatus = "borrowed"
	StatusReturned BorrowStatus = "returned"
)

// BorrowRecord is one borrow event. Records are never deleted on return.
type BorrowRecord struct {
	ID         int64        `db:"id" json:"id"`
	MemberID   int64        `db:"member_id" json:"member_id"`
	ItemID     int64        `db:"item_id" json:"item_id"`
	BorrowDate time.Time    `db:"borrow_date" json:"borrow_date"`
	ReturnDate *time.Time   `db:"return_date" json:"return_date,omitempty"`
	Status     BorrowStatus `db:"status" json:"status"`
}

// WaitingListEntry queues a member for an item that has no copies left.
type WaitingListEntry struct {
	ID       int64     `db:"id" json:"id"`
	MemberID int64     `db:"member_id" json:"member_id"`
	ItemID   int64     `db:"item_id" json:"item_id"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

// Notification is a persisted message for a member.
type Notification struct {
	ID        int64     `db:"id" json:"id"`
	MemberID  int64     `db:"member_id" json:"member_id"`
	Message   string    `db:"message" json:"message"`
	IsRead    bool      `db:"is_read" json:"is_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
