package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/criteria-atlas/server/internal/data/csvstore"
	"github.com/criteria-atlas/server/internal/data/sqlstore"
	"github.com/criteria-atlas/server/internal/plot"
)

type importOptions struct {
	list   bool
	delete bool
	db     string
	key    string
	points string
	labels string
	ranks  string
}

func newImportCommand(opts *rootOptions) *cobra.Command {
	iopts := &importOptions{}
	cmd := &cobra.Command{
		Use:   "import PLOT",
		Short: "Copy a plot's CSV files into a SQLite database",
		Long: "Reads the points, labels and ranks CSV files of PLOT (from the configuration,\n" +
			"or from --points/--labels/--ranks) and stores them under --key in --db.\n" +
			"An existing plot with the same key is replaced.\n\n" +
			"--list prints the plots stored in --db; --delete removes PLOT (or --key).",
		Args: func(cmd *cobra.Command, args []string) error {
			if iopts.list {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case iopts.list:
				return runList(cmd, iopts.db)
			case iopts.delete:
				return runDelete(cmd, opts, iopts.db, pick(iopts.key, args[0]))
			}
			return runImport(cmd.Context(), opts, iopts, args[0])
		},
	}
	cmd.Flags().BoolVar(&iopts.list, "list", false, "List plots stored in --db")
	cmd.Flags().BoolVar(&iopts.delete, "delete", false, "Delete PLOT from --db")
	cmd.MarkFlagsMutuallyExclusive("list", "delete")
	cmd.Flags().StringVar(&iopts.db, "db", "./data/atlas.sqlite", "SQLite database to write")
	cmd.Flags().StringVar(&iopts.key, "key", "", "Plot key in the database (default: PLOT)")
	cmd.Flags().StringVar(&iopts.points, "points", "", "Points CSV (overrides the configuration)")
	cmd.Flags().StringVar(&iopts.labels, "labels", "", "Labels CSV (overrides the configuration)")
	cmd.Flags().StringVar(&iopts.ranks, "ranks", "", "Ranks CSV (overrides the configuration)")
	return cmd
}

func runImport(ctx context.Context, opts *rootOptions, iopts *importOptions, name string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return err
	}
	defer logger.Sync()

	pc := cfg.Data.Plots[name]
	points, labels, ranks := pick(iopts.points, pc.Points), pick(iopts.labels, pc.Labels), pick(iopts.ranks, pc.Ranks)
	if points == "" {
		return fmt.Errorf("plot %q has no points CSV; pass --points", name)
	}

	reader := csvstore.NewReader(name, points, labels, ranks)
	ds := &plot.Dataset{Name: name}
	if ds.Points, err = reader.Points(ctx); err != nil {
		return err
	}
	// Labels and ranks are optional for a plot.
	if ds.Labels, err = reader.Labels(ctx); err != nil && !errors.Is(err, csvstore.ErrNoFile) {
		return err
	}
	if ds.Ranks, err = reader.Ranks(ctx); err != nil && !errors.Is(err, csvstore.ErrNoFile) {
		return err
	}
	if dups := plot.DuplicateRankClusters(ds.Ranks); len(dups) > 0 {
		logger.Warn("clusters ranked more than once", zap.Ints("clusters", dups))
	}

	store, err := sqlstore.Open(iopts.db)
	if err != nil {
		return err
	}
	defer store.Close()

	key := pick(iopts.key, name)
	if err := store.Import(ctx, key, ds); err != nil {
		return err
	}
	logger.Info("plot imported",
		zap.String("plot", name),
		zap.String("key", key),
		zap.String("db", store.Path()),
		zap.Int("points", len(ds.Points)),
		zap.Int("labels", len(ds.Labels)),
		zap.Int("ranks", len(ds.Ranks)))
	return nil
}

func runList(cmd *cobra.Command, db string) error {
	store, err := sqlstore.Open(db)
	if err != nil {
		return err
	}
	defer store.Close()

	plots, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tPOINTS\tLABELS\tRANKS\tIMPORTED")
	for _, p := range plots {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", p.Key, p.Points, p.Labels, p.Ranks, p.ImportedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func runDelete(cmd *cobra.Command, opts *rootOptions, db, key string) error {
	_, logger, err := loadConfig(opts)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := sqlstore.Open(db)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(cmd.Context(), key); err != nil {
		return err
	}
	logger.Info("plot deleted", zap.String("key", key), zap.String("db", store.Path()))
	return nil
}

func pick(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}
