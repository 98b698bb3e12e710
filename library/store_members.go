package library

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
)

type memberRow struct {
	ID                  int64      `db:"id"`
	Name                string     `db:"name"`
	Email               string     `db:"email"`
	CreatedAt           time.Time  `db:"created_at"`
	MembershipID        int64      `db:"membership_id"`
	Plan                Plan       `db:"plan"`
	BorrowLimit         int        `db:"borrow_limit"`
	ExpiryDate          *time.Time `db:"expiry_date"`
	MembershipCreatedAt time.Time  `db:"membership_created_at"`
	MembershipUpdatedAt time.Time  `db:"membership_updated_at"`
}

func (r *memberRow) toMember() *Member {
	memberID := r.ID
	return &Member{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		CreatedAt: r.CreatedAt,
		Membership: Membership{
			ID:          r.MembershipID,
			MemberID:    &memberID,
			Plan:        r.Plan,
			BorrowLimit: r.BorrowLimit,
			ExpiryDate:  r.ExpiryDate,
			CreatedAt:   r.MembershipCreatedAt,
			UpdatedAt:   r.MembershipUpdatedAt,
		},
	}
}

func membersQuery() *goqu.SelectDataset {
	return from(goqu.T("members").As("mb")).
		InnerJoin(goqu.T("memberships").As("ms"), goqu.On(goqu.I("ms.id").Eq(goqu.I("mb.membership_id")))).
		Select(
			goqu.I("mb.id").As("id"),
			goqu.I("mb.name").As("name"),
			goqu.I("mb.email").As("email"),
			goqu.I("mb.created_at").As("created_at"),
			goqu.I("ms.id").As("membership_id"),
			goqu.I("ms.plan").As("plan"),
			goqu.I("ms.borrow_limit").As("borrow_limit"),
			goqu.I("ms.expiry_date").As("expiry_date"),
			goqu.I("ms.created_at").As("membership_created_at"),
			goqu.I("ms.updated_at").As("membership_updated_at"),
		)
}

func (t *Tx) queryMembers(ctx context.Context, ds *goqu.SelectDataset) ([]*Member, error) {
	var rows []memberRow
	if err := t.selectAll(ctx, &rows, ds); err != nil {
		return nil, err
	}
	members := make([]*Member, 0, len(rows))
	for i := range rows {
		members = append(members, rows[i].toMember())
	}
	return members, nil
}

// InsertMember creates the member and its membership. The membership row goes
// in first with no owner, the member row references it, and the back-reference
// is patched last; callers must run this inside RunTransaction so nobody sees
// one half without the other.
func (t *Tx) InsertMember(ctx context.Context, m *Member) error {
	now := t.now().UTC()
	ms := &m.Membership

	msID, err := t.insert(ctx, insertInto("memberships").Rows(goqu.Record{
		"member_id":    nil,
		"plan":         string(ms.Plan),
		"borrow_limit": ms.BorrowLimit,
		"expiry_date":  nullable(ms.ExpiryDate),
		"created_at":   now,
		"updated_at":   now,
	}))
	if err != nil {
		return err
	}

	memberID, err := t.insert(ctx, insertInto("members").Rows(goqu.Record{
		"name":          m.Name,
		"email":         m.Email,
		"membership_id": msID,
		"created_at":    now,
	}))
	if isUniqueViolation(err) {
		return NewValidationError("email already registered", m.Email)
	}
	if err != nil {
		return err
	}

	if _, err := t.exec(ctx, update("memberships").
		Set(goqu.Record{"member_id": memberID}).
		Where(goqu.C("id").Eq(msID))); err != nil {
		return err
	}

	m.ID = memberID
	m.CreatedAt = now
	ms.ID = msID
	ms.MemberID = &memberID
	ms.CreatedAt = now
	ms.UpdatedAt = now
	return nil
}

// GetMember loads a member with its membership.
func (t *Tx) GetMember(ctx context.Context, id int64) (*Member, error) {
	var row memberRow
	err := t.get(ctx, &row, membersQuery().Where(goqu.I("mb.id").Eq(id)))
	if isNoRows(err) {
		return nil, notFound("member", id)
	}
	if err != nil {
		return nil, err
	}
	return row.toMember(), nil
}

// ListMembers returns every member ordered by id.
func (t *Tx) ListMembers(ctx context.Context) ([]*Member, error) {
	return t.queryMembers(ctx, membersQuery().Order(goqu.I("mb.id").Asc()))
}

// UpdateMembership persists plan, limit and expiry and stamps updated_at.
func (t *Tx) UpdateMembership(ctx context.Context, ms *Membership) error {
	ms.UpdatedAt = t.now().UTC()
	n, err := t.affected(ctx, update("memberships").
		Set(goqu.Record{
			"plan":         string(ms.Plan),
			"borrow_limit": ms.BorrowLimit,
			"expiry_date":  nullable(ms.ExpiryDate),
			"updated_at":   ms.UpdatedAt,
		}).
		Where(goqu.C("id").Eq(ms.ID)))
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound("membership", ms.ID)
	}
	return nil
}

// DeleteMember removes the member. Its membership, borrow records, waiting
// list entries and notifications cascade.
func (t *Tx) DeleteMember(ctx context.Context, id int64) (bool, error) {
	n, err := t.affected(ctx, deleteFrom("members").Where(goqu.C("id").Eq(id)))
	return n > 0, err
}
