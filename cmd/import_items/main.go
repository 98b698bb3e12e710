package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"library-lending/internal/config"
	"library-lending/internal/logger"
	"library-lending/library"
)

// itemRecord is one entry of the import file.
type itemRecord struct {
	Kind            string `json:"kind"`
	Title           string `json:"title"`
	Creator         string `json:"creator"`
	Copies          *int   `json:"copies"`
	ISBN            string `json:"isbn"`
	NumPages        int    `json:"num_pages"`
	DurationMinutes int    `json:"duration_minutes"`
	Genre           string `json:"genre"`
}

func (r itemRecord) toNewItem() (library.NewItem, error) {
	// A record without a copies key is a single copy.
	in := library.NewItem{Title: r.Title, Creator: r.Creator, Copies: 1}
	if r.Copies != nil {
		in.Copies = *r.Copies
	}
	switch library.ItemKind(strings.ToLower(r.Kind)) {
	case library.KindBook:
		in.Details = &library.BookDetails{ISBN: r.ISBN, NumPages: r.NumPages}
	case library.KindMedia:
		in.Details = &library.MediaDetails{DurationMinutes: r.DurationMinutes, Genre: r.Genre}
	default:
		return in, library.NewValidationError("unknown item kind", r.Kind)
	}
	return in, nil
}

type importResult struct {
	Imported int
	Failed   int
}

// importItems adds every record in r to the catalog. Bad records are
// reported to w and skipped.
func importItems(ctx context.Context, catalog *library.Catalog, r io.Reader, w io.Writer) (importResult, error) {
	var records []itemRecord
	if err := jsoniter.NewDecoder(r).Decode(&records); err != nil {
		return importResult{}, fmt.Errorf("decode import file: %w", err)
	}

	var res importResult
	for i, rec := range records {
		fmt.Fprintf(w, "Importing: %s by %s... ", rec.Title, rec.Creator)
		in, err := rec.toNewItem()
		if err == nil {
			var item *library.Item
			if item, err = catalog.AddItem(ctx, in); err == nil {
				fmt.Fprintf(w, "SUCCESS (ID: %d)\n", item.ID)
				res.Imported++
				continue
			}
		}
		if library.TypeOf(err) != library.ErrorTypeValidation {
			return res, fmt.Errorf("record %d: %w", i+1, err)
		}
		fmt.Fprintf(w, "ERROR - %v\n", err)
		res.Failed++
	}
	return res, nil
}

func removeDatabaseFiles(path string, w io.Writer) {
	for _, file := range []string{path, path + "-shm", path + "-wal"} {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(w, "Warning: Could not remove %s: %v\n", file, err)
		}
	}
}

func newCommand() *cobra.Command {
	var (
		configFile string
		dbPath     string
		reset      bool
	)
	cmd := &cobra.Command{
		Use:          "import_items <file.json>",
		Short:        "Bulk-load catalog items from a JSON file",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if dbPath != "" {
				cfg.Database.Path = dbPath
			}
			log, closer, err := logger.New(cfg.Logger)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer closer.Close()

			if reset {
				fmt.Fprintln(out, "Cleaning up existing database files...")
				removeDatabaseFiles(cfg.Database.Path, out)
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			mgr, err := library.NewLibraryManager(cmd.Context(), cfg.Database.StoreConfig(), library.WithLogger(log))
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer mgr.Close()

			res, err := importItems(cmd.Context(), mgr.Catalog, f, out)
			fmt.Fprintf(out, "\nImport complete!\n")
			fmt.Fprintf(out, "Successfully imported: %d items\n", res.Imported)
			fmt.Fprintf(out, "Errors: %d\n", res.Failed)
			return err
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database file (overrides database.path)")
	cmd.Flags().BoolVar(&reset, "reset", false, "Delete the existing database before importing")
	return cmd
}

func main() {
	if err := newCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
