package library

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// NewMember is the input to MembershipService.RegisterMember.
type NewMember struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email,max=255"`
}

// MembershipService applies plan policy and manages members together with
// the membership each one owns.
type MembershipService struct {
	db     *Database
	logger *slog.Logger
}

func NewMembershipService(db *Database) *MembershipService {
	return &MembershipService{db: db, logger: db.Logger("membership")}
}

// civilDate truncates t to its calendar day at midnight UTC.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *MembershipService) today() time.Time { return civilDate(s.db.Now()) }

// CreateMembership builds a membership for plan. Premium plans need an
// expiry date and Regular plans must not have one.
func (s *MembershipService) CreateMembership(plan Plan, expiry *time.Time) (*Membership, error) {
	if !plan.Valid() {
		return nil, NewValidationError("unknown membership plan", string(plan))
	}
	switch {
	case plan == PlanPremium && expiry == nil:
		return nil, NewValidationError("premium membership requires an expiry date")
	case plan == PlanRegular && expiry != nil:
		return nil, NewValidationError("regular membership cannot have an expiry date")
	}

	ms := &Membership{Plan: plan, BorrowLimit: plan.BorrowLimit()}
	if expiry != nil {
		d := civilDate(*expiry)
		ms.ExpiryDate = &d
	}
	return ms, nil
}

// IsExpired is true only for Premium memberships whose expiry date lies
// strictly before today.
func (s *MembershipService) IsExpired(ms *Membership) bool {
	if ms.Plan != PlanPremium || ms.ExpiryDate == nil {
		return false
	}
	return civilDate(*ms.ExpiryDate).Before(s.today())
}

// Renew extends a Premium membership by days. A lapsed membership restarts
// from today; a current one extends from its existing expiry date. Regular
// memberships are left untouched.
func (s *MembershipService) Renew(ms *Membership, days int) error {
	if days <= 0 {
		return NewValidationError("renewal days must be positive")
	}
	if ms.Plan != PlanPremium {
		return nil
	}
	base := s.today()
	if ms.ExpiryDate != nil && !s.IsExpired(ms) {
		base = civilDate(*ms.ExpiryDate)
	}
	next := base.AddDate(0, 0, days)
	ms.ExpiryDate = &next
	return nil
}

func (s *MembershipService) BorrowLimit(ms *Membership) int { return ms.BorrowLimit }

// DaysUntilExpiry returns -1 for Regular memberships and zero once a Premium
// membership has lapsed.
func (s *MembershipService) DaysUntilExpiry(ms *Membership) int {
	if ms.Plan != PlanPremium || ms.ExpiryDate == nil {
		return -1
	}
	days := int(civilDate(*ms.ExpiryDate).Sub(s.today()).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// RegisterMember stores the member and its membership atomically.
func (s *MembershipService) RegisterMember(ctx context.Context, in NewMember, ms *Membership) (*Member, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if ms == nil {
		return nil, NewValidationError("membership is required")
	}
	// Re-run plan rules in case the caller built the membership by hand.
	checked, err := s.CreateMembership(ms.Plan, ms.ExpiryDate)
	if err != nil {
		return nil, err
	}

	m := &Member{Name: in.Name, Email: in.Email, Membership: *checked}
	err = s.db.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		return tx.InsertMember(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("member registered", "member_id", m.ID, "plan", m.Membership.Plan)
	return m, nil
}

func (s *MembershipService) GetMember(ctx context.Context, memberID int64) (*Member, error) {
	var m *Member
	err := s.db.Read(ctx, func(ctx context.Context, tx *Tx) error {
		var err error
		m, err = tx.GetMember(ctx, memberID)
		return err
	})
	return m, err
}

func (s *MembershipService) ListMembers(ctx context.Context) ([]*Member, error) {
	var members []*Member
	err := s.db.Read(ctx, func(ctx context.Context, tx *Tx) error {
		var err error
		members, err = tx.ListMembers(ctx)
		return err
	})
	return members, err
}

// RemoveMember deletes the member along with its membership, borrow history,
// queue entries and notifications. Copies the member still holds are put
// back on the shelf first.
func (s *MembershipService) RemoveMember(ctx context.Context, memberID int64) (bool, error) {
	var removed bool
	err := s.db.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		held, err := tx.ListBorrowedItems(ctx, memberID)
		if err != nil {
			return err
		}
		for _, item := range held {
			if err := tx.AdjustAvailableCopies(ctx, item.ID, 1); err != nil {
				return err
			}
		}
		removed, err = tx.DeleteMember(ctx, memberID)
		return err
	})
	if err != nil {
		return false, err
	}
	if removed {
		s.logger.Info("member removed", "member_id", memberID)
	}
	return removed, nil
}

// RenewMembership applies Renew to the stored membership and persists it.
func (s *MembershipService) RenewMembership(ctx context.Context, memberID int64, days int) (*Member, error) {
	var m *Member
	err := s.db.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		var err error
		if m, err = tx.GetMember(ctx, memberID); err != nil {
			return err
		}
		if err := s.Renew(&m.Membership, days); err != nil {
			return err
		}
		return tx.UpdateMembership(ctx, &m.Membership)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("membership renewed", "member_id", memberID, "days", days)
	return m, nil
}

// ChangePlan moves the member to plan. A downgrade is refused while the
// member holds more items than the new plan allows.
func (s *MembershipService) ChangePlan(ctx context.Context, memberID int64, plan Plan, expiry *time.Time) (*Member, error) {
	next, err := s.CreateMembership(plan, expiry)
	if err != nil {
		return nil, err
	}

	var m *Member
	err = s.db.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		var err error
		if m, err = tx.GetMember(ctx, memberID); err != nil {
			return err
		}
		active, err := tx.CountActiveBorrows(ctx, memberID)
		if err != nil {
			return err
		}
		if active > next.BorrowLimit {
			return newError(ErrorTypeBorrowLimitExceeded,
				"member %d holds %d items, %s plan allows %d", memberID, active, plan, next.BorrowLimit)
		}
		m.Membership.Plan = next.Plan
		m.Membership.BorrowLimit = next.BorrowLimit
		m.Membership.ExpiryDate = next.ExpiryDate
		return tx.UpdateMembership(ctx, &m.Membership)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("membership plan changed", "member_id", memberID, "plan", plan)
	return m, nil
}
