package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"library-lending/internal/config"
	"library-lending/internal/logger"
	"library-lending/library"
)

// app carries state shared by every command of one invocation.
type app struct {
	configFile string
	dbPath     string
	output     string

	mgr       *library.LibraryManager
	logCloser io.Closer
}

// Execute runs the command line in args against a fresh app and releases the
// database afterwards, whether or not the command failed.
func Execute(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	a := &app{}
	defer a.close()

	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(out)
	return root.ExecuteContext(ctx)
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "lending",
		Short:         "Library lending engine",
		Long:          `Manage a catalog of books and media, members with tiered plans, borrowing, waiting lists and notifications.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "Path to config file (default: ./configs/config.yaml)")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database file (overrides database.path)")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", "text", "Output format: text or json")

	root.AddCommand(
		newItemCommand(a),
		newMemberCommand(a),
		newBorrowCommand(a),
		newReturnCommand(a),
		newWaitlistCommand(a),
		newNotificationsCommand(a),
		newShellCommand(a),
	)
	return root
}

func (a *app) open(cmd *cobra.Command) error {
	if a.output != "text" && a.output != "json" {
		return fmt.Errorf("unknown output format %q", a.output)
	}

	cfg, err := config.Load(a.configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.dbPath != "" {
		cfg.Database.Path = a.dbPath
	}

	log, closer, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	slog.SetDefault(log)
	a.logCloser = closer

	mgr, err := library.NewLibraryManager(cmd.Context(), cfg.Database.StoreConfig(), library.WithLogger(log))
	if err != nil {
		closer.Close()
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.mgr = mgr
	return nil
}

func (a *app) close() error {
	var err error
	if a.mgr != nil {
		err = a.mgr.Close()
		a.mgr = nil
	}
	if a.logCloser != nil {
		a.logCloser.Close()
		a.logCloser = nil
	}
	return err
}
