// Package api provides HTTP handlers for the criteria atlas server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/criteria-atlas/server/internal/cache"
	"github.com/criteria-atlas/server/internal/data/sqlstore"
	"github.com/criteria-atlas/server/internal/logging"
	"github.com/criteria-atlas/server/internal/metrics"
	"github.com/criteria-atlas/server/internal/plot"
	"github.com/criteria-atlas/server/internal/service"
)

// Default /fit viewport and the largest snapshot side accepted.
const (
	defaultFitWidth  = 800
	defaultFitHeight = 600
	maxSnapshotSide  = 4096
)

// RouterConfig contains router configuration.
type RouterConfig struct {
	Registry    *PlotRegistry
	CORSOrigins []string
	Metrics     *metrics.Metrics
	// Cache, when set, has its statistics reported by /health.
	Cache       *cache.Manager
	Logger      *zap.Logger
}

// errBadRequest marks errors caused by malformed query parameters.
var errBadRequest = errors.New("bad request")

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(logging.RequestLogger(logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5, "application/json"))

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", healthHandler(cfg.Registry, cfg.Cache))
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/plots", plotsHandler(cfg.Registry))

		// Raw collections; ?plot= selects the plot, default when omitted.
		r.Get("/points", rawHandler(cfg.Registry, logger, func(ctx context.Context, svc *service.PlotService) (interface{}, error) {
			return svc.Points(ctx)
		}))
		r.Get("/labels", rawHandler(cfg.Registry, logger, func(ctx context.Context, svc *service.PlotService) (interface{}, error) {
			return svc.Labels(ctx)
		}))
		r.Get("/ranks", rawHandler(cfg.Registry, logger, func(ctx context.Context, svc *service.PlotService) (interface{}, error) {
			return svc.Ranks(ctx)
		}))

		r.Route("/plots/{plot}", func(r chi.Router) {
			r.Use(plotMiddleware(cfg.Registry))
			r.Get("/groups", groupsHandler(logger))
			r.Get("/histogram", histogramHandler(logger))
			r.Get("/sidebar", sidebarHandler(logger))
			r.Get("/fit", fitHandler(logger))
			r.Get("/snapshot.png", snapshotHandler(logger))
		})
	})

	return r
}

// Context key for plot service
type ctxKey string

const plotServiceKey ctxKey = "plotService"

// plotMiddleware resolves the plot from URL and injects its service into context.
func plotMiddleware(registry *PlotRegistry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			plotID := chi.URLParam(r, "plot")
			svc := registry.Get(plotID)
			if svc == nil {
				writeError(w, http.StatusNotFound, "plot not found: "+plotID)
				return
			}
			ctx := context.WithValue(r.Context(), plotServiceKey, svc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func getPlotService(r *http.Request) *service.PlotService {
	if svc, ok := r.Context().Value(plotServiceKey).(*service.PlotService); ok {
		return svc
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeRawJSON(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, errBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, sqlstore.ErrPlotNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// plotsHandler returns the list of available plots.
type healthResponse struct {
	Status string                 `json:"status"`
	Plots  int                    `json:"plots"`
	Cache  map[string]interface{} `json:"cache,omitempty"`
}

func healthHandler(registry *PlotRegistry, cm *cache.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Plots: len(registry.PlotIDs())}
		if cm != nil {
			resp.Cache = cm.Stats()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func plotsHandler(registry *PlotRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"default": registry.DefaultPlotID(),
			"plots":   registry.Plots(),
			"title":   registry.Title(),
		})
	}
}

func rawHandler(registry *PlotRegistry, logger *zap.Logger, get func(context.Context, *service.PlotService) (interface{}, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc, plotID := registry.Resolve(strings.TrimSpace(r.URL.Query().Get("plot")))
		if svc == nil {
			writeError(w, http.StatusNotFound, "plot not found: "+plotID)
			return
		}
		v, err := get(r.Context(), svc)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// parseQuery reads mode, lo, hi and hover. Missing lo/hi select the whole
// year extent; the service clamps out-of-range values.
func parseQuery(q url.Values) (service.Query, error) {
	mode, err := plot.ParseMode(q.Get("mode"))
	if err != nil {
		return service.Query{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	out := service.FullQuery(mode)
	if out.Range.Lo, err = intParam(q, "lo", math.MinInt); err != nil {
		return service.Query{}, err
	}
	if out.Range.Hi, err = intParam(q, "hi", math.MaxInt); err != nil {
		return service.Query{}, err
	}
	if out.Hover, err = intParam(q, "hover", -1); err != nil {
		return service.Query{}, err
	}
	return out, nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	s := strings.TrimSpace(q.Get(name))
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, s)
	}
	return v, nil
}

func sizeParam(q url.Values, name string, def float64) (float64, error) {
	s := strings.TrimSpace(q.Get(name))
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || v <= 0 || v > 16384 {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, s)
	}
	return v, nil
}

type groupsResponse struct {
	Mode   plot.Mode    `json:"mode"`
	Range  plot.Range   `json:"range"`
	Total  int          `json:"total"`
	Groups []plot.Group `json:"groups"`
}

func groupsHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc := getPlotService(r)
		q, err := parseQuery(r.URL.Query())
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		data, err := svc.DerivedJSON(r.Context(), "groups", q, func(f plot.Frame) interface{} {
			return groupsResponse{Mode: f.Mode, Range: f.Range, Total: len(f.Filtered), Groups: f.Groups}
		})
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeRawJSON(w, data)
	}
}

type histogramResponse struct {
	MinYear int                 `json:"min_year"`
	MaxYear int                 `json:"max_year"`
	Bins    []plot.HistogramBin `json:"bins"`
}

func histogramHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc := getPlotService(r)
		data, err := svc.DerivedJSON(r.Context(), "histogram", service.FullQuery(plot.ModeClusters), func(f plot.Frame) interface{} {
			return histogramResponse{MinYear: f.MinYear, MaxYear: f.MaxYear, Bins: f.Histogram}
		})
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeRawJSON(w, data)
	}
}

func sidebarHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc := getPlotService(r)
		q, err := parseQuery(r.URL.Query())
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		// Grouping mode does not affect the list.
		q.Mode = plot.ModeClusters
		data, err := svc.DerivedJSON(r.Context(), "sidebar", q, func(f plot.Frame) interface{} {
			return f.Sidebar
		})
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeRawJSON(w, data)
	}
}

type fitResponse struct {
	Fit       plot.Fit    `json:"fit"`
	Bounds    plot.Bounds `json:"bounds"`
	HasBounds bool        `json:"has_bounds"`
	Width     float64     `json:"width"`
	Height    float64     `json:"height"`
}

func fitHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc := getPlotService(r)
		query := r.URL.Query()
		q, err := parseQuery(query)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		width, err := sizeParam(query, "width", defaultFitWidth)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		height, err := sizeParam(query, "height", defaultFitHeight)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		fit, bounds, ok, err := svc.Fit(r.Context(), q, width, height)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, fitResponse{Fit: fit, Bounds: bounds, HasBounds: ok, Width: width, Height: height})
	}
}

func snapshotHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc := getPlotService(r)
		query := r.URL.Query()
		q, err := parseQuery(query)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		width, err := intParam(query, "width", 0)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		height, err := intParam(query, "height", 0)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		if width < 0 || height < 0 || width > maxSnapshotSide || height > maxSnapshotSide {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("snapshot size must be within 0..%d", maxSnapshotSide))
			return
		}
		// Zero selects the renderer's default size.
		data, err := svc.RenderSnapshot(r.Context(), q, width, height)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(data)
	}
}
