// Package sqlstore keeps imported plots in a SQLite database so the server
// can start without re-parsing large CSV exports.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/criteria-atlas/server/internal/plot"
)

// ErrPlotNotFound is returned when the database holds no plot with the key.
var ErrPlotNotFound = errors.New("plot not found")

// PlotInfo summarizes one imported plot.
type PlotInfo struct {
	Key        string    `json:"key"`
	Points     int       `json:"points"`
	Labels     int       `json:"labels"`
	Ranks      int       `json:"ranks"`
	ImportedAt time.Time `json:"imported_at"`
}

// Store provides persistent storage for plots using SQLite.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens (or creates) the database at dbPath.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for sqlite: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS plots (
		plot_key TEXT PRIMARY KEY,
		imported_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS points (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		plot_key TEXT NOT NULL,
		cluster INTEGER NOT NULL,
		year INTEGER NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		FOREIGN KEY (plot_key) REFERENCES plots(plot_key) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_points_plot ON points(plot_key);

	CREATE TABLE IF NOT EXISTS labels (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		plot_key TEXT NOT NULL,
		cluster INTEGER NOT NULL,
		label TEXT NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		FOREIGN KEY (plot_key) REFERENCES plots(plot_key) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_labels_plot ON labels(plot_key);

	CREATE TABLE IF NOT EXISTS ranks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		plot_key TEXT NOT NULL,
		cluster INTEGER NOT NULL,
		label TEXT NOT NULL,
		rank INTEGER NOT NULL,
		FOREIGN KEY (plot_key) REFERENCES plots(plot_key) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_ranks_plot ON ranks(plot_key);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Import replaces the plot stored under key in a single transaction.
func (s *Store) Import(ctx context.Context, key string, ds *plot.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"points", "labels", "ranks", "plots"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE plot_key = ?", key); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO plots (plot_key, imported_at) VALUES (?, ?)`,
		key, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO points (plot_key, cluster, year, x, y) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	for _, p := range ds.Points {
		if _, err := stmt.ExecContext(ctx, key, p.Cluster, p.Year, p.X, p.Y); err != nil {
			stmt.Close()
			return fmt.Errorf("insert point: %w", err)
		}
	}
	stmt.Close()

	stmt, err = tx.PrepareContext(ctx, `INSERT INTO labels (plot_key, cluster, label, x, y) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	for _, l := range ds.Labels {
		if _, err := stmt.ExecContext(ctx, key, l.Cluster, l.Text, l.X, l.Y); err != nil {
			stmt.Close()
			return fmt.Errorf("insert label: %w", err)
		}
	}
	stmt.Close()

	stmt, err = tx.PrepareContext(ctx, `INSERT INTO ranks (plot_key, cluster, label, rank) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	for _, r := range ds.Ranks {
		if _, err := stmt.ExecContext(ctx, key, r.Cluster, r.Text, r.Rank); err != nil {
			stmt.Close()
			return fmt.Errorf("insert rank: %w", err)
		}
	}
	stmt.Close()

	return tx.Commit()
}

// Delete removes a plot. Deleting an unknown key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, table := range []string{"points", "labels", "ranks", "plots"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE plot_key = ?", key); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// List returns every imported plot ordered by key.
func (s *Store) List(ctx context.Context) ([]PlotInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.plot_key, p.imported_at,
			(SELECT COUNT(*) FROM points WHERE plot_key = p.plot_key),
			(SELECT COUNT(*) FROM labels WHERE plot_key = p.plot_key),
			(SELECT COUNT(*) FROM ranks WHERE plot_key = p.plot_key)
		FROM plots p ORDER BY p.plot_key
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PlotInfo
	for rows.Next() {
		var info PlotInfo
		var importedAt string
		if err := rows.Scan(&info.Key, &importedAt, &info.Points, &info.Labels, &info.Ranks); err != nil {
			return nil, err
		}
		info.ImportedAt, _ = time.Parse(time.RFC3339, importedAt)
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *Store) exists(ctx context.Context, key string) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plots WHERE plot_key = ?`, key).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", key, ErrPlotNotFound)
	}
	return nil
}

// Points returns the plot's points in import order.
func (s *Store) Points(ctx context.Context, key string) ([]plot.DataPoint, error) {
	if err := s.exists(ctx, key); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT cluster, year, x, y FROM points WHERE plot_key = ? ORDER BY id`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]plot.DataPoint, 0)
	for rows.Next() {
		var p plot.DataPoint
		if err := rows.Scan(&p.Cluster, &p.Year, &p.X, &p.Y); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Labels returns the plot's cluster labels in import order.
func (s *Store) Labels(ctx context.Context, key string) ([]plot.LabelPoint, error) {
	if err := s.exists(ctx, key); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT cluster, label, x, y FROM labels WHERE plot_key = ? ORDER BY id`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]plot.LabelPoint, 0)
	for rows.Next() {
		var l plot.LabelPoint
		if err := rows.Scan(&l.Cluster, &l.Text, &l.X, &l.Y); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Ranks returns the plot's rank table in import order.
func (s *Store) Ranks(ctx context.Context, key string) ([]plot.RankEntry, error) {
	if err := s.exists(ctx, key); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT cluster, label, rank FROM ranks WHERE plot_key = ? ORDER BY id`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]plot.RankEntry, 0)
	for rows.Next() {
		var r plot.RankEntry
		if err := rows.Scan(&r.Cluster, &r.Text, &r.Rank); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Source adapts one stored plot to the loader interface used by the service.
type Source struct {
	store *Store
	name  string
	key   string
}

// Source returns a loader for the plot stored under key, served as name.
func (s *Store) Source(name, key string) *Source {
	if key == "" {
		key = name
	}
	return &Source{store: s, name: name, key: key}
}

// Name returns the plot name.
func (src *Source) Name() string { return src.name }

// Paths returns the database file so writes to it trigger a reload.
func (src *Source) Paths() []string { return []string{src.store.path} }

func (src *Source) Points(ctx context.Context) ([]plot.DataPoint, error) {
	return src.store.Points(ctx, src.key)
}

func (src *Source) Labels(ctx context.Context) ([]plot.LabelPoint, error) {
	return src.store.Labels(ctx, src.key)
}

func (src *Source) Ranks(ctx context.Context) ([]plot.RankEntry, error) {
	return src.store.Ranks(ctx, src.key)
}
