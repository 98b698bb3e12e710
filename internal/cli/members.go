package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"library-lending/library"
)

func newMemberCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Member and membership management",
	}
	cmd.AddCommand(
		newMemberAddCommand(a),
		&cobra.Command{
			Use:   "list",
			Short: "List members",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				members, err := a.mgr.Memberships.ListMembers(cmd.Context())
				if err != nil {
					return err
				}
				return a.render(cmd, members, func(w io.Writer) { printMembers(w, members) })
			},
		},
		&cobra.Command{
			Use:   "show <member-id>",
			Short: "Show a member, their membership and borrowed items",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.showMember(cmd, args[0])
			},
		},
		&cobra.Command{
			Use:   "remove <member-id>",
			Short: "Remove a member and everything they own",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0], "member")
				if err != nil {
					return err
				}
				removed, err := a.mgr.Memberships.RemoveMember(cmd.Context(), id)
				if err != nil {
					return err
				}
				return a.render(cmd, map[string]bool{"removed": removed}, func(w io.Writer) {
					if removed {
						fmt.Fprintf(w, "Removed member %d\n", id)
					} else {
						fmt.Fprintf(w, "Member %d not found\n", id)
					}
				})
			},
		},
		&cobra.Command{
			Use:   "renew <member-id> <days>",
			Short: "Extend a premium membership",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0], "member")
				if err != nil {
					return err
				}
				days, err := strconv.Atoi(args[1])
				if err != nil {
					return library.NewValidationError("days must be a number", args[1])
				}
				m, err := a.mgr.Memberships.RenewMembership(cmd.Context(), id, days)
				if err != nil {
					return err
				}
				return a.render(cmd, m, func(w io.Writer) {
					fmt.Fprintf(w, "Membership of %s now expires %s\n", m.Name, formatDate(m.Membership.ExpiryDate))
				})
			},
		},
		newMemberPlanCommand(a),
	)
	return cmd
}

func newMemberAddCommand(a *app) *cobra.Command {
	var name, email, plan, expiry string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := library.ParsePlan(plan)
			if err != nil {
				return err
			}
			exp, err := parseDate(expiry)
			if err != nil {
				return err
			}
			ms, err := a.mgr.Memberships.CreateMembership(p, exp)
			if err != nil {
				return err
			}
			m, err := a.mgr.Memberships.RegisterMember(cmd.Context(), library.NewMember{Name: name, Email: email}, ms)
			if err != nil {
				return err
			}
			return a.render(cmd, m, func(w io.Writer) {
				fmt.Fprintf(w, "Added member '%s' with ID %d\n", m.Name, m.ID)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Full name (required)")
	cmd.Flags().StringVar(&email, "email", "", "Email address (required, unique)")
	cmd.Flags().StringVar(&plan, "plan", string(library.PlanRegular), "Membership plan: regular or premium")
	cmd.Flags().StringVar(&expiry, "expiry", "", "Premium expiry date (YYYY-MM-DD)")
	return cmd
}

func newMemberPlanCommand(a *app) *cobra.Command {
	var expiry string
	cmd := &cobra.Command{
		Use:   "plan <member-id> <regular|premium>",
		Short: "Switch a member to another plan",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "member")
			if err != nil {
				return err
			}
			p, err := library.ParsePlan(args[1])
			if err != nil {
				return err
			}
			exp, err := parseDate(expiry)
			if err != nil {
				return err
			}
			m, err := a.mgr.Memberships.ChangePlan(cmd.Context(), id, p, exp)
			if err != nil {
				return err
			}
			return a.render(cmd, m, func(w io.Writer) {
				fmt.Fprintf(w, "%s is now on the %s plan (limit %d)\n", m.Name, m.Membership.Plan, m.Membership.BorrowLimit)
			})
		},
	}
	cmd.Flags().StringVar(&expiry, "expiry", "", "Expiry date for premium plans (YYYY-MM-DD)")
	return cmd
}

type memberView struct {
	*library.Member
	Expired         bool            `json:"expired"`
	DaysUntilExpiry int             `json:"days_until_expiry"`
	Borrowed        []*library.Item `json:"borrowed"`
}

func (a *app) showMember(cmd *cobra.Command, arg string) error {
	id, err := parseID(arg, "member")
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	m, err := a.mgr.Memberships.GetMember(ctx, id)
	if err != nil {
		return err
	}
	items, err := a.mgr.Lending.BorrowedItems(ctx, id)
	if err != nil {
		return err
	}
	svc := a.mgr.Memberships
	view := memberView{
		Member:          m,
		Expired:         svc.IsExpired(&m.Membership),
		DaysUntilExpiry: svc.DaysUntilExpiry(&m.Membership),
		Borrowed:        items,
	}
	return a.render(cmd, view, func(w io.Writer) {
		fmt.Fprintf(w, "Member %d: %s <%s>\n", m.ID, m.Name, m.Email)
		fmt.Fprintf(w, "Plan: %s (limit %d), expires %s", m.Membership.Plan, m.Membership.BorrowLimit, formatDate(m.Membership.ExpiryDate))
		if view.Expired {
			fmt.Fprint(w, " [expired]")
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Borrowed (%d/%d):\n", len(items), m.Membership.BorrowLimit)
		for _, item := range items {
			fmt.Fprintf(w, "  %d  %s\n", item.ID, item.Title)
		}
	})
}
