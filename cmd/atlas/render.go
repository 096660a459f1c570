package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/criteria-atlas/server/internal/plot"
	"github.com/criteria-atlas/server/internal/service"
	"github.com/criteria-atlas/server/pkg/client"
)

type renderOptions struct {
	server string
	output string
	mode   string
	lo     int
	hi     int
	hover  int
	width  int
	height int
}

func newRenderCommand(opts *rootOptions) *cobra.Command {
	ro := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render [PLOT]",
		Short: "Render a plot snapshot to a PNG file",
		Long: "Renders PLOT (default: the default plot) from the configured data, or asks\n" +
			"a running server for it when --server is set.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) == 1 {
				name = args[0]
			}
			return runRender(cmd, opts, ro, name)
		},
	}
	cmd.Flags().StringVarP(&ro.server, "server", "s", "", "Fetch the snapshot from this server instead of rendering locally")
	cmd.Flags().StringVarP(&ro.output, "output", "o", "snapshot.png", "Output PNG file")
	cmd.Flags().StringVar(&ro.mode, "mode", "clusters", "Color mode: clusters or years")
	cmd.Flags().IntVar(&ro.lo, "lo", math.MinInt, "First year shown (default: earliest)")
	cmd.Flags().IntVar(&ro.hi, "hi", math.MaxInt, "Last year shown (default: latest)")
	cmd.Flags().IntVar(&ro.hover, "hover", -1, "Cluster to highlight")
	cmd.Flags().IntVar(&ro.width, "width", 0, "Image width (default: render.width)")
	cmd.Flags().IntVar(&ro.height, "height", 0, "Image height (default: render.height)")
	return cmd
}

func runRender(cmd *cobra.Command, opts *rootOptions, ro *renderOptions, name string) error {
	mode, err := plot.ParseMode(ro.mode)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		data   []byte
		id     string
		logger *zap.Logger
	)
	if ro.server != "" {
		_, logger, err = loadConfig(opts)
		if err != nil {
			return err
		}
		defer logger.Sync()
		data, id, err = fetchSnapshot(ctx, ro, mode, name)
	} else {
		var a *app
		a, err = newApp(opts)
		if err != nil {
			return err
		}
		defer a.Close()
		logger = a.logger

		svc, resolved := a.registry.Resolve(name)
		if svc == nil {
			return fmt.Errorf("unknown plot %q; configured: %v", name, a.registry.PlotIDs())
		}
		id = resolved
		q := service.Query{Mode: mode, Range: plot.Range{Lo: ro.lo, Hi: ro.hi}, Hover: ro.hover}
		data, err = svc.RenderSnapshot(ctx, q, ro.width, ro.height)
	}
	if err != nil {
		return fmt.Errorf("render %q: %w", pick(id, name), err)
	}

	if err := os.WriteFile(ro.output, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	logger.Info("snapshot written",
		zap.String("plot", id),
		zap.String("file", ro.output),
		zap.Int("bytes", len(data)))
	fmt.Fprintln(cmd.OutOrStdout(), ro.output)
	return nil
}

// fetchSnapshot asks the server for the PNG. An empty name resolves to the
// server's default plot.
func fetchSnapshot(ctx context.Context, ro *renderOptions, mode plot.Mode, name string) ([]byte, string, error) {
	c, err := client.New(ro.server)
	if err != nil {
		return nil, name, err
	}
	if name == "" {
		list, err := c.Plots(ctx)
		if err != nil {
			return nil, name, fmt.Errorf("list plots: %w", err)
		}
		name = list.Default
	}

	params := map[string]string{"mode": string(mode)}
	if ro.lo != math.MinInt {
		params["lo"] = strconv.Itoa(ro.lo)
	}
	if ro.hi != math.MaxInt {
		params["hi"] = strconv.Itoa(ro.hi)
	}
	if ro.hover >= 0 {
		params["hover"] = strconv.Itoa(ro.hover)
	}
	if ro.width > 0 {
		params["width"] = strconv.Itoa(ro.width)
	}
	if ro.height > 0 {
		params["height"] = strconv.Itoa(ro.height)
	}
	data, err := c.Snapshot(ctx, name, params)
	return data, name, err
}
