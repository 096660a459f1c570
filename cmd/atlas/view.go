package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/criteria-atlas/server/internal/logging"
	"github.com/criteria-atlas/server/internal/plot"
	"github.com/criteria-atlas/server/internal/tui"
	"github.com/criteria-atlas/server/internal/view"
	"github.com/criteria-atlas/server/pkg/client"
	"github.com/criteria-atlas/server/pkg/colormap"
)

// plotFetcher adapts the HTTP client to view.Fetcher.
type plotFetcher struct {
	c *client.Client
}

func (f plotFetcher) Points(ctx context.Context, name string) ([]plot.DataPoint, error) {
	return f.c.Points(ctx, name)
}

func (f plotFetcher) Labels(ctx context.Context, name string) ([]plot.LabelPoint, error) {
	return f.c.Labels(ctx, name)
}

func (f plotFetcher) Ranks(ctx context.Context, name string) ([]plot.RankEntry, error) {
	return f.c.Ranks(ctx, name)
}

func newViewCommand(opts *rootOptions) *cobra.Command {
	var (
		server  string
		timeout time.Duration
		logFile string
	)
	cmd := &cobra.Command{
		Use:   "view [PLOT...]",
		Short: "Browse a running server's plots in the terminal",
		Long: "Opens an interactive terminal viewer against --server. Without PLOT\n" +
			"arguments every plot the server lists is available; tab cycles them.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			// The alternate screen owns the terminal, so logs go to a file.
			logger := zap.NewNop()
			if logFile != "" {
				logger, err = logging.New(logging.Config{Level: cfg.Log.Level, Format: "console", OutputPaths: []string{logFile}})
				if err != nil {
					return err
				}
				defer logger.Sync()
			}

			c, err := client.New(server)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			plots := args
			if len(plots) == 0 {
				list, err := c.Plots(ctx)
				if err != nil {
					return fmt.Errorf("list plots: %w", err)
				}
				plots = append(plots, list.Default)
				for _, p := range list.Plots {
					if p.ID != list.Default {
						plots = append(plots, p.ID)
					}
				}
			}

			state := view.NewState(view.Config{
				Options: plot.Options{
					Palette: colormap.Named(cfg.Render.Palette),
					Bands:   cfg.View.Bands,
					Decades: cfg.View.Decades,
				},
				BinWidth: cfg.View.BinWidth,
				Padding:  cfg.View.Padding,
				Margin:   cfg.View.MarginFactor,
				Logger:   logger,
			})
			model := tui.New(ctx, state, view.NewLoader(plotFetcher{c: c}, timeout), plots)
			_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}
	cmd.Flags().StringVarP(&server, "server", "s", "http://localhost:8080", "Server base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Per-resource fetch timeout")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Write viewer logs to this file")
	return cmd
}
