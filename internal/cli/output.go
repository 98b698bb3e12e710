package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"library-lending/library"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// render writes v as indented JSON when --output=json, otherwise calls text.
func (a *app) render(cmd *cobra.Command, v interface{}, text func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	if a.output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func printItems(w io.Writer, items []*library.Item) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No items found.")
		return
	}
	fmt.Fprintf(w, "%-5s %-30s %-25s %-6s %s\n", "ID", "Title", "Creator", "Kind", "Avail")
	fmt.Fprintln(w, strings.Repeat("-", 78))
	for _, item := range items {
		fmt.Fprintln(w, library.PrettyItem(item))
	}
}

func printMembers(w io.Writer, members []*library.Member) {
	if len(members) == 0 {
		fmt.Fprintln(w, "No members found.")
		return
	}
	fmt.Fprintf(w, "%-5s %-25s %-30s %-8s %s\n", "ID", "Name", "Email", "Plan", "Expires")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, m := range members {
		fmt.Fprintln(w, library.PrettyMember(m))
	}
}

func printRecord(w io.Writer, verb string, rec *library.BorrowRecord) {
	fmt.Fprintf(w, "%s: record %d, member %d, item %d, status %s\n",
		verb, rec.ID, rec.MemberID, rec.ItemID, rec.Status)
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, library.NewValidationError("invalid "+what+" id", s)
	}
	return id, nil
}

// parseDate reads a YYYY-MM-DD date; an empty string means no date.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, library.NewValidationError("dates must look like 2006-01-02", s)
	}
	return &d, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}
