package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"library-lending/library"
)

func newShellCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := &shell{
				ctx: cmd.Context(),
				mgr: a.mgr,
				sc:  bufio.NewScanner(cmd.InOrStdin()),
				w:   cmd.OutOrStdout(),
			}
			s.run()
			return nil
		},
	}
}

// shell is the prompt loop; every handler reads its arguments line by line.
type shell struct {
	ctx context.Context
	mgr *library.LibraryManager
	sc  *bufio.Scanner
	w   io.Writer
}

func (s *shell) run() {
	fmt.Fprintln(s.w, "Welcome to the Library Lending System!")
	fmt.Fprintln(s.w, "Available commands:")
	fmt.Fprintln(s.w, "  Catalog: add book, add media, list items, search items, show item, remove item")
	fmt.Fprintln(s.w, "  Members: add member, list members, show member, renew membership")
	fmt.Fprintln(s.w, "  Lending: borrow, return, history")
	fmt.Fprintln(s.w, "  Waiting list: join waitlist, leave waitlist, show waitlist")
	fmt.Fprintln(s.w, "  Notifications: notifications, mark read")
	fmt.Fprintln(s.w, "  System: exit")

	handlers := map[string]func(){
		"add book":         s.handleAddBook,
		"add media":        s.handleAddMedia,
		"list items":       s.handleListItems,
		"search items":     s.handleSearchItems,
		"show item":        s.handleShowItem,
		"remove item":      s.handleRemoveItem,
		"add member":       s.handleAddMember,
		"list members":     s.handleListMembers,
		"show member":      s.handleShowMember,
		"renew membership": s.handleRenew,
		"borrow":           s.handleBorrow,
		"return":           s.handleReturn,
		"history":          s.handleHistory,
		"join waitlist":    s.handleJoin,
		"leave waitlist":   s.handleLeave,
		"show waitlist":    s.handleShowWaitlist,
		"notifications":    s.handleNotifications,
		"mark read":        s.handleMarkRead,
	}

	for {
		fmt.Fprint(s.w, "\n> ")
		if !s.sc.Scan() {
			return
		}
		cmd := strings.ToLower(strings.TrimSpace(s.sc.Text()))
		switch cmd {
		case "":
			continue
		case "exit", "quit":
			fmt.Fprintln(s.w, "Goodbye!")
			return
		}
		if h, ok := handlers[cmd]; ok {
			h()
		} else {
			fmt.Fprintln(s.w, "Unknown command. Type one of the available commands listed above.")
		}
	}
}

func (s *shell) ask(label string) (string, bool) {
	fmt.Fprintf(s.w, "%s: ", label)
	if !s.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.sc.Text()), true
}

func (s *shell) askInt(label string) (int, bool) {
	v, ok := s.ask(label)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Fprintf(s.w, "Invalid %s: %s\n", strings.ToLower(label), v)
		return 0, false
	}
	return n, true
}

func (s *shell) askID(label string) (int64, bool) {
	v, ok := s.ask(label)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		fmt.Fprintf(s.w, "Invalid %s: %s\n", label, v)
		return 0, false
	}
	return id, true
}

func (s *shell) fail(what string, err error) {
	fmt.Fprintf(s.w, "Error %s: %v\n", what, err)
}

func (s *shell) addItem(details func() (library.ItemDetails, bool)) {
	title, ok := s.ask("Title")
	if !ok {
		return
	}
	creator, ok := s.ask("Creator")
	if !ok {
		return
	}
	copies, ok := s.askInt("Copies")
	if !ok {
		return
	}
	d, ok := details()
	if !ok {
		return
	}
	item, err := s.mgr.Catalog.AddItem(s.ctx, library.NewItem{Title: title, Creator: creator, Copies: copies, Details: d})
	if err != nil {
		s.fail("adding item", err)
		return
	}
	fmt.Fprintf(s.w, "Added %s ID %d\n", strings.ToLower(d.TypeName()), item.ID)
}

func (s *shell) handleAddBook() {
	s.addItem(func() (library.ItemDetails, bool) {
		isbn, ok := s.ask("ISBN")
		if !ok {
			return nil, false
		}
		pages, ok := s.askInt("Pages")
		return &library.BookDetails{ISBN: isbn, NumPages: pages}, ok
	})
}

func (s *shell) handleAddMedia() {
	s.addItem(func() (library.ItemDetails, bool) {
		minutes, ok := s.askInt("Duration (minutes)")
		if !ok {
			return nil, false
		}
		genre, ok := s.ask("Genre")
		return &library.MediaDetails{DurationMinutes: minutes, Genre: genre}, ok
	})
}

func (s *shell) handleListItems() {
	items, err := s.mgr.Catalog.ListItems(s.ctx)
	if err != nil {
		s.fail("listing items", err)
		return
	}
	printItems(s.w, items)
}

func (s *shell) handleSearchItems() {
	q, ok := s.ask("Query")
	if !ok {
		return
	}
	items, err := s.mgr.Catalog.SearchItems(s.ctx, q)
	if err != nil {
		s.fail("searching", err)
		return
	}
	if len(items) == 0 {
		fmt.Fprintf(s.w, "No items found matching '%s'.\n", q)
		return
	}
	fmt.Fprintf(s.w, "Found %d item(s) matching '%s':\n", len(items), q)
	printItems(s.w, items)
}

func (s *shell) handleShowItem() {
	id, ok := s.askID("Item ID")
	if !ok {
		return
	}
	item, err := s.mgr.Catalog.GetItem(s.ctx, id)
	if err != nil {
		s.fail("loading item", err)
		return
	}
	fmt.Fprintln(s.w, item.Describe())
}

func (s *shell) handleRemoveItem() {
	id, ok := s.askID("Item ID")
	if !ok {
		return
	}
	removed, err := s.mgr.Catalog.RemoveItem(s.ctx, id)
	switch {
	case err != nil:
		s.fail("removing item", err)
	case removed:
		fmt.Fprintf(s.w, "Removed item %d\n", id)
	default:
		fmt.Fprintf(s.w, "Item %d not found\n", id)
	}
}

func (s *shell) handleAddMember() {
	name, ok := s.ask("Name")
	if !ok {
		return
	}
	email, ok := s.ask("Email")
	if !ok {
		return
	}
	planName, ok := s.ask("Plan (regular/premium)")
	if !ok {
		return
	}
	plan, err := library.ParsePlan(planName)
	if err != nil {
		s.fail("reading plan", err)
		return
	}
	var expiry string
	if plan == library.PlanPremium {
		if expiry, ok = s.ask("Expiry date (YYYY-MM-DD)"); !ok {
			return
		}
	}
	exp, err := parseDate(expiry)
	if err != nil {
		s.fail("reading expiry", err)
		return
	}
	ms, err := s.mgr.Memberships.CreateMembership(plan, exp)
	if err != nil {
		s.fail("creating membership", err)
		return
	}
	m, err := s.mgr.Memberships.RegisterMember(s.ctx, library.NewMember{Name: name, Email: email}, ms)
	if err != nil {
		s.fail("adding member", err)
		return
	}
	fmt.Fprintf(s.w, "Added member '%s' with ID %d\n", m.Name, m.ID)
}

func (s *shell) handleListMembers() {
	members, err := s.mgr.Memberships.ListMembers(s.ctx)
	if err != nil {
		s.fail("listing members", err)
		return
	}
	printMembers(s.w, members)
}

func (s *shell) handleShowMember() {
	id, ok := s.askID("Member ID")
	if !ok {
		return
	}
	m, err := s.mgr.Memberships.GetMember(s.ctx, id)
	if err != nil {
		s.fail("loading member", err)
		return
	}
	items, err := s.mgr.Lending.BorrowedItems(s.ctx, id)
	if err != nil {
		s.fail("loading borrowed items", err)
		return
	}
	fmt.Fprintln(s.w, library.PrettyMember(m))
	for _, item := range items {
		fmt.Fprintf(s.w, "  borrowed: %d  %s\n", item.ID, item.Title)
	}
}

func (s *shell) handleRenew() {
	id, ok := s.askID("Member ID")
	if !ok {
		return
	}
	days, ok := s.askInt("Days")
	if !ok {
		return
	}
	m, err := s.mgr.Memberships.RenewMembership(s.ctx, id, days)
	if err != nil {
		s.fail("renewing membership", err)
		return
	}
	fmt.Fprintf(s.w, "Membership of %s now expires %s\n", m.Name, formatDate(m.Membership.ExpiryDate))
}

func (s *shell) askMemberItem() (memberID, itemID int64, ok bool) {
	if memberID, ok = s.askID("Member ID"); !ok {
		return 0, 0, false
	}
	if itemID, ok = s.askID("Item ID"); !ok {
		return 0, 0, false
	}
	return memberID, itemID, true
}

func (s *shell) handleBorrow() {
	memberID, itemID, ok := s.askMemberItem()
	if !ok {
		return
	}
	rec, err := s.mgr.Lending.Borrow(s.ctx, memberID, itemID)
	if err != nil {
		s.fail("borrowing item", err)
		if library.TypeOf(err) == library.ErrorTypeItemUnavailable {
			fmt.Fprintln(s.w, "Use 'join waitlist' to be notified when a copy comes back.")
		}
		return
	}
	printRecord(s.w, "Borrowed", rec)
}

func (s *shell) handleReturn() {
	memberID, itemID, ok := s.askMemberItem()
	if !ok {
		return
	}
	rec, err := s.mgr.Lending.Return(s.ctx, memberID, itemID)
	if err != nil {
		s.fail("returning item", err)
		return
	}
	printRecord(s.w, "Returned", rec)
}

func (s *shell) handleHistory() {
	id, ok := s.askID("Item ID")
	if !ok {
		return
	}
	recs, err := s.mgr.Lending.ItemHistory(s.ctx, id)
	if err != nil {
		s.fail("loading history", err)
		return
	}
	if len(recs) == 0 {
		fmt.Fprintln(s.w, "No borrow history.")
		return
	}
	for _, r := range recs {
		fmt.Fprintf(s.w, "%-5d member %-5d %s returned %s\n", r.ID, r.MemberID, r.Status, formatDate(r.ReturnDate))
	}
}

func (s *shell) handleJoin() {
	memberID, itemID, ok := s.askMemberItem()
	if !ok {
		return
	}
	joined, err := s.mgr.WaitingList.Join(s.ctx, memberID, itemID)
	switch {
	case err != nil:
		s.fail("joining waiting list", err)
	case joined:
		fmt.Fprintln(s.w, "Added to the waiting list.")
	default:
		fmt.Fprintln(s.w, "Not queued: the item is available or the member is already waiting.")
	}
}

func (s *shell) handleLeave() {
	memberID, itemID, ok := s.askMemberItem()
	if !ok {
		return
	}
	left, err := s.mgr.WaitingList.Leave(s.ctx, memberID, itemID)
	switch {
	case err != nil:
		s.fail("leaving waiting list", err)
	case left:
		fmt.Fprintln(s.w, "Removed from the waiting list.")
	default:
		fmt.Fprintln(s.w, "Member was not waiting for that item.")
	}
}

func (s *shell) handleShowWaitlist() {
	id, ok := s.askID("Item ID")
	if !ok {
		return
	}
	members, err := s.mgr.WaitingList.ListWaiting(s.ctx, id)
	if err != nil {
		s.fail("loading waiting list", err)
		return
	}
	if len(members) == 0 {
		fmt.Fprintln(s.w, "Nobody is waiting.")
		return
	}
	for i, m := range members {
		fmt.Fprintf(s.w, "%d. %s (ID: %d)\n", i+1, m.Name, m.ID)
	}
}

func (s *shell) handleNotifications() {
	id, ok := s.askID("Member ID")
	if !ok {
		return
	}
	notes, err := s.mgr.Notifications.ListNotifications(s.ctx, id, false)
	if err != nil {
		s.fail("loading notifications", err)
		return
	}
	if len(notes) == 0 {
		fmt.Fprintln(s.w, "No notifications.")
		return
	}
	for _, n := range notes {
		state := "unread"
		if n.IsRead {
			state = "read"
		}
		fmt.Fprintf(s.w, "%-5d [%s] %s\n", n.ID, state, n.Message)
	}
}

func (s *shell) handleMarkRead() {
	id, ok := s.askID("Notification ID")
	if !ok {
		return
	}
	updated, err := s.mgr.Notifications.MarkRead(s.ctx, id)
	switch {
	case err != nil:
		s.fail("marking notification", err)
	case updated:
		fmt.Fprintln(s.w, "Marked as read.")
	default:
		fmt.Fprintf(s.w, "Notification %d not found\n", id)
	}
}
