package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newBorrowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "borrow <member-id> <item-id>",
		Short: "Lend one copy of an item to a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			memberID, itemID, err := parseMemberItem(args)
			if err != nil {
				return err
			}
			rec, err := a.mgr.Lending.Borrow(cmd.Context(), memberID, itemID)
			if err != nil {
				return err
			}
			return a.render(cmd, rec, func(w io.Writer) { printRecord(w, "Borrowed", rec) })
		},
	}
}

func newReturnCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "return <member-id> <item-id>",
		Short: "Return a borrowed item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			memberID, itemID, err := parseMemberItem(args)
			if err != nil {
				return err
			}
			rec, err := a.mgr.Lending.Return(cmd.Context(), memberID, itemID)
			if err != nil {
				return err
			}
			return a.render(cmd, rec, func(w io.Writer) { printRecord(w, "Returned", rec) })
		},
	}
}

func newWaitlistCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "waitlist",
		Short: "Waiting lists for unavailable items",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "join <member-id> <item-id>",
			Short: "Queue a member for an item with no copies left",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				memberID, itemID, err := parseMemberItem(args)
				if err != nil {
					return err
				}
				joined, err := a.mgr.WaitingList.Join(cmd.Context(), memberID, itemID)
				if err != nil {
					return err
				}
				return a.render(cmd, map[string]bool{"joined": joined}, func(w io.Writer) {
					if joined {
						fmt.Fprintf(w, "Member %d is waiting for item %d\n", memberID, itemID)
					} else {
						fmt.Fprintln(w, "Not queued: the item is available or the member is already waiting.")
					}
				})
			},
		},
		&cobra.Command{
			Use:   "leave <member-id> <item-id>",
			Short: "Remove a member from an item's queue",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				memberID, itemID, err := parseMemberItem(args)
				if err != nil {
					return err
				}
				left, err := a.mgr.WaitingList.Leave(cmd.Context(), memberID, itemID)
				if err != nil {
					return err
				}
				return a.render(cmd, map[string]bool{"left": left}, func(w io.Writer) {
					if left {
						fmt.Fprintf(w, "Member %d left the queue for item %d\n", memberID, itemID)
					} else {
						fmt.Fprintln(w, "Member was not waiting for that item.")
					}
				})
			},
		},
		&cobra.Command{
			Use:   "show <item-id>",
			Short: "Show the queue for an item",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				itemID, err := parseID(args[0], "item")
				if err != nil {
					return err
				}
				members, err := a.mgr.WaitingList.ListWaiting(cmd.Context(), itemID)
				if err != nil {
					return err
				}
				return a.render(cmd, members, func(w io.Writer) {
					if len(members) == 0 {
						fmt.Fprintln(w, "Nobody is waiting.")
						return
					}
					for i, m := range members {
						fmt.Fprintf(w, "%d. %s (ID %d)\n", i+1, m.Name, m.ID)
					}
				})
			},
		},
	)
	return cmd
}

func newNotificationsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notify"},
		Short:   "Member notifications",
	}

	var unread bool
	list := &cobra.Command{
		Use:   "list <member-id>",
		Short: "List a member's notifications, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			memberID, err := parseID(args[0], "member")
			if err != nil {
				return err
			}
			notes, err := a.mgr.Notifications.ListNotifications(cmd.Context(), memberID, unread)
			if err != nil {
				return err
			}
			return a.render(cmd, notes, func(w io.Writer) {
				if len(notes) == 0 {
					fmt.Fprintln(w, "No notifications.")
					return
				}
				for _, n := range notes {
					mark := " "
					if !n.IsRead {
						mark = "*"
					}
					fmt.Fprintf(w, "%s %-5d %s  %s\n", mark, n.ID, n.CreatedAt.Format("2006-01-02 15:04"), n.Message)
				}
			})
		},
	}
	list.Flags().BoolVar(&unread, "unread", false, "Only show unread notifications")

	cmd.AddCommand(
		list,
		&cobra.Command{
			Use:   "read <notification-id>",
			Short: "Mark a notification as read",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0], "notification")
				if err != nil {
					return err
				}
				ok, err := a.mgr.Notifications.MarkRead(cmd.Context(), id)
				if err != nil {
					return err
				}
				return a.render(cmd, map[string]bool{"updated": ok}, func(w io.Writer) {
					if ok {
						fmt.Fprintf(w, "Notification %d marked as read\n", id)
					} else {
						fmt.Fprintf(w, "Notification %d not found\n", id)
					}
				})
			},
		},
		&cobra.Command{
			Use:   "send <member-id> <message>",
			Short: "Send a message to a member",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				memberID, err := parseID(args[0], "member")
				if err != nil {
					return err
				}
				n, err := a.mgr.Notifications.CreateNotification(cmd.Context(), memberID, strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				return a.render(cmd, n, func(w io.Writer) {
					fmt.Fprintf(w, "Sent notification %d\n", n.ID)
				})
			},
		},
	)
	return cmd
}

func parseMemberItem(args []string) (memberID, itemID int64, err error) {
	if memberID, err = parseID(args[0], "member"); err != nil {
		return 0, 0, err
	}
	if itemID, err = parseID(args[1], "item"); err != nil {
		return 0, 0, err
	}
	return memberID, itemID, nil
}
