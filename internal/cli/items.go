package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"library-lending/library"
)

func newItemCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Catalog management",
	}
	cmd.AddCommand(
		newItemAddCommand(a),
		&cobra.Command{
			Use:   "list",
			Short: "List every item",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				items, err := a.mgr.Catalog.ListItems(cmd.Context())
				if err != nil {
					return err
				}
				return a.render(cmd, items, func(w io.Writer) { printItems(w, items) })
			},
		},
		&cobra.Command{
			Use:   "search <query>",
			Short: "Search titles and creators",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				items, err := a.mgr.Catalog.SearchItems(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				return a.render(cmd, items, func(w io.Writer) { printItems(w, items) })
			},
		},
		&cobra.Command{
			Use:   "show <item-id>",
			Short: "Show one item",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0], "item")
				if err != nil {
					return err
				}
				item, err := a.mgr.Catalog.GetItem(cmd.Context(), id)
				if err != nil {
					return err
				}
				return a.render(cmd, item, func(w io.Writer) { fmt.Fprintln(w, item.Describe()) })
			},
		},
		&cobra.Command{
			Use:   "remove <item-id>",
			Short: "Remove an item with its history and waiting list",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0], "item")
				if err != nil {
					return err
				}
				removed, err := a.mgr.Catalog.RemoveItem(cmd.Context(), id)
				if err != nil {
					return err
				}
				return a.render(cmd, map[string]bool{"removed": removed}, func(w io.Writer) {
					if removed {
						fmt.Fprintf(w, "Removed item %d\n", id)
					} else {
						fmt.Fprintf(w, "Item %d not found\n", id)
					}
				})
			},
		},
		&cobra.Command{
			Use:   "history <item-id>",
			Short: "Show the borrow history of an item",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0], "item")
				if err != nil {
					return err
				}
				recs, err := a.mgr.Lending.ItemHistory(cmd.Context(), id)
				if err != nil {
					return err
				}
				return a.render(cmd, recs, func(w io.Writer) {
					if len(recs) == 0 {
						fmt.Fprintln(w, "No borrow history.")
						return
					}
					for _, r := range recs {
						fmt.Fprintf(w, "%-5d member %-5d borrowed %s returned %s (%s)\n",
							r.ID, r.MemberID, r.BorrowDate.Format("2006-01-02 15:04"), formatDate(r.ReturnDate), r.Status)
					}
				})
			},
		},
	)
	return cmd
}

func newItemAddCommand(a *app) *cobra.Command {
	var (
		title, creator string
		copies         int
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book or media item",
	}
	cmd.PersistentFlags().StringVar(&title, "title", "", "Title (required)")
	cmd.PersistentFlags().StringVar(&creator, "creator", "", "Author or director (required)")
	cmd.PersistentFlags().IntVar(&copies, "copies", 1, "Number of copies")

	add := func(cmd *cobra.Command, details library.ItemDetails) error {
		item, err := a.mgr.Catalog.AddItem(cmd.Context(), library.NewItem{
			Title: title, Creator: creator, Copies: copies, Details: details,
		})
		if err != nil {
			return err
		}
		return a.render(cmd, item, func(w io.Writer) {
			fmt.Fprintf(w, "Added %s ID %d\n", strings.ToLower(details.TypeName()), item.ID)
		})
	}

	var (
		isbn  string
		pages int
	)
	book := &cobra.Command{
		Use:   "book",
		Short: "Add a book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return add(cmd, &library.BookDetails{ISBN: isbn, NumPages: pages})
		},
	}
	book.Flags().StringVar(&isbn, "isbn", "", "ISBN (required, unique)")
	book.Flags().IntVar(&pages, "pages", 0, "Number of pages")

	var (
		minutes int
		genre   string
	)
	media := &cobra.Command{
		Use:   "media",
		Short: "Add an audio or video item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return add(cmd, &library.MediaDetails{DurationMinutes: minutes, Genre: genre})
		},
	}
	media.Flags().IntVar(&minutes, "duration", 0, "Duration in minutes")
	media.Flags().StringVar(&genre, "genre", "", "Genre (required)")

	cmd.AddCommand(book, media)
	return cmd
}
