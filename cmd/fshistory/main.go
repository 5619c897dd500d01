package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/aman-raj/fs-history/internal/config"
	"github.com/aman-raj/fs-history/internal/models"
	"github.com/aman-raj/fs-history/internal/repository"
	"github.com/aman-raj/fs-history/internal/schema"
	"github.com/aman-raj/fs-history/internal/service"
	"github.com/aman-raj/fs-history/pkg/database/postgresql"
	"github.com/aman-raj/fs-history/pkg/logging"
	"github.com/aman-raj/fs-history/pkg/logging/slogpretty"
	"github.com/charmbracelet/fang"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

type app struct {
	cfg     *config.Config
	pool    *pgxpool.Pool
	schema  *schema.Manager
	history service.HistoryService
}

func newApp(ctx context.Context) (*app, error) {
	cfg := config.MustLoad(configPath)

	pool, err := postgresql.New(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	history := service.NewHistoryService(
		postgresql.NewTxManager(pool),
		repository.NewPathRepository(pool),
		repository.NewVersionRepository(pool),
		repository.NewEntryRepository(pool),
		service.WithUpsertRetries(cfg.App.UpsertRetries),
	)

	return &app{
		cfg:     cfg,
		pool:    pool,
		schema:  schema.NewManager(pool),
		history: history,
	}, nil
}

// opCtx bounds a single command's database work with the configured timeout.
func (a *app) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.cfg.App.DefaultTimeout)
}

func (a *app) close() {
	a.pool.Close()
}

var rootCmd = &cobra.Command{
	Use:   "fshistory",
	Short: "Versioned attribute history of filesystem entries, backed by PostgreSQL",
	Long: `fshistory records filesystem entries (parent directory + name) as gapless,
append-only sequences of numbered versions. Each version carries an opaque
JSON attribute payload. Version numbers are assigned by the store, never by
the caller, and stay dense even under concurrent writers.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Flags are parsed by now, so the log level honors --verbose.
		ctx := logging.MakeContextWithLogger(cmd.Context(), setupPrettySlog())
		ctx = logging.MakeContextWithNewRequestID(ctx)
		cmd.SetContext(ctx)
	},
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the paths and versions tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := a.opCtx(cmd.Context())
		defer cancel()

		return a.schema.Setup(ctx)
	},
}

var dropForce bool

var dropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Drop both tables and all recorded history",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !dropForce {
			return fmt.Errorf("refusing to drop without --force")
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := a.opCtx(cmd.Context())
		defer cancel()

		return a.schema.Drop(ctx)
	},
}

var upsertAttrs string

var upsertCmd = &cobra.Command{
	Use:   "upsert PARENT NAME",
	Short: "Record the next version of an entry's attributes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var attrs models.Attrs
		if err := json.Unmarshal([]byte(upsertAttrs), &attrs); err != nil {
			return fmt.Errorf("invalid --attrs payload: %w", err)
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := a.opCtx(cmd.Context())
		defer cancel()

		version, err := a.history.UpsertVersion(ctx, args[0], args[1], attrs)
		if err != nil {
			return err
		}

		fmt.Printf("%s/%s -> version %d\n", args[0], args[1], version.VersionNo)
		return nil
	},
}

var (
	pathsParent string
	pathsName   string
)

var pathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "List recorded paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		var filter repository.PathFilter
		if cmd.Flags().Changed("parent") {
			filter.Parent = &pathsParent
		}
		if cmd.Flags().Changed("name") {
			filter.Name = &pathsName
		}

		ctx, cancel := a.opCtx(cmd.Context())
		defer cancel()

		paths, err := a.history.SelectPaths(ctx, filter)
		if err != nil {
			return err
		}

		for _, p := range paths {
			fmt.Printf("%d\t%s\t%s\n", p.ID, p.Parent, p.Name)
		}
		return nil
	},
}

var (
	versionsPathID int64
	versionsNo     int
)

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List recorded versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		var filter repository.VersionFilter
		if cmd.Flags().Changed("path-id") {
			filter.PathID = &versionsPathID
		}
		if cmd.Flags().Changed("version-no") {
			filter.VersionNo = &versionsNo
		}

		ctx, cancel := a.opCtx(cmd.Context())
		defer cancel()

		versions, err := a.history.SelectVersions(ctx, filter)
		if err != nil {
			return err
		}

		for _, v := range versions {
			attrs, err := json.Marshal(v.Attrs)
			if err != nil {
				return err
			}
			fmt.Printf("%d\t%d\t%d\t%s\n", v.ID, v.PathID, v.VersionNo, attrs)
		}
		return nil
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump every version joined with its path",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := a.opCtx(cmd.Context())
		defer cancel()

		for entry, err := range a.history.SelectAll(ctx) {
			if err != nil {
				return err
			}
			attrs, err := json.Marshal(entry.Version.Attrs)
			if err != nil {
				return err
			}
			fmt.Printf("%s/%s\tv%d\t%s\n",
				entry.Path.Parent,
				entry.Path.Name,
				entry.Version.VersionNo,
				attrs,
			)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	dropCmd.Flags().BoolVar(&dropForce, "force", false, "actually drop the tables")
	upsertCmd.Flags().StringVar(&upsertAttrs, "attrs", "{}", "JSON attribute payload")
	pathsCmd.Flags().StringVar(&pathsParent, "parent", "", "filter by parent directory")
	pathsCmd.Flags().StringVar(&pathsName, "name", "", "filter by entry name")
	versionsCmd.Flags().Int64Var(&versionsPathID, "path-id", 0, "filter by path id")
	versionsCmd.Flags().IntVar(&versionsNo, "version-no", 0, "filter by version number")

	rootCmd.AddCommand(setupCmd, dropCmd, upsertCmd, pathsCmd, versionsCmd, dumpCmd)
}

func setupPrettySlog() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: level,
		},
	}

	handler := opts.NewPrettyHandler(os.Stderr)

	return slog.New(handler)
}

func main() {
	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		os.Exit(1)
	}
}
