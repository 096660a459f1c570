// Package csvstore reads plot resources from CSV files exported by the
// clustering pipeline. Files ending in .zst or .gz are decompressed on the fly.
package csvstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/criteria-atlas/server/internal/plot"
)

// ErrNoFile is returned for a resource with no configured path.
var ErrNoFile = errors.New("no file configured")

// Reader loads one plot's points, labels and ranks.
type Reader struct {
	name   string
	points string
	labels string
	ranks  string
}

// NewReader creates a reader for the given file paths. Empty paths are
// allowed; the corresponding resource then fails with ErrNoFile.
func NewReader(name, points, labels, ranks string) *Reader {
	return &Reader{name: name, points: points, labels: labels, ranks: ranks}
}

// Name returns the plot name.
func (r *Reader) Name() string { return r.name }

// Paths returns the configured files, skipping empty ones.
func (r *Reader) Paths() []string {
	var out []string
	for _, p := range []string{r.points, r.labels, r.ranks} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Points reads the CLUSTER, YEAR, X and Y columns.
func (r *Reader) Points(ctx context.Context) ([]plot.DataPoint, error) {
	out := make([]plot.DataPoint, 0)
	err := readTable(ctx, r.points, []string{"CLUSTER", "YEAR", "X", "Y"}, func(row []string, line int) error {
		cluster, err := parseInt(row[0])
		if err != nil {
			return fmt.Errorf("line %d: CLUSTER: %w", line, err)
		}
		year, err := parseInt(row[1])
		if err != nil {
			return fmt.Errorf("line %d: YEAR: %w", line, err)
		}
		x, err := parseFloat(row[2])
		if err != nil {
			return fmt.Errorf("line %d: X: %w", line, err)
		}
		y, err := parseFloat(row[3])
		if err != nil {
			return fmt.Errorf("line %d: Y: %w", line, err)
		}
		out = append(out, plot.DataPoint{Cluster: cluster, Year: year, X: x, Y: y})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read points %s: %w", r.points, err)
	}
	return out, nil
}

// Labels reads the CLUSTER, LABEL, X and Y columns.
func (r *Reader) Labels(ctx context.Context) ([]plot.LabelPoint, error) {
	out := make([]plot.LabelPoint, 0)
	err := readTable(ctx, r.labels, []string{"CLUSTER", "LABEL", "X", "Y"}, func(row []string, line int) error {
		cluster, err := parseInt(row[0])
		if err != nil {
			return fmt.Errorf("line %d: CLUSTER: %w", line, err)
		}
		x, err := parseFloat(row[2])
		if err != nil {
			return fmt.Errorf("line %d: X: %w", line, err)
		}
		y, err := parseFloat(row[3])
		if err != nil {
			return fmt.Errorf("line %d: Y: %w", line, err)
		}
		out = append(out, plot.LabelPoint{Cluster: cluster, Text: strings.TrimSpace(row[1]), X: x, Y: y})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read labels %s: %w", r.labels, err)
	}
	return out, nil
}

// Ranks reads the CLUSTER, LABEL and RANK columns.
func (r *Reader) Ranks(ctx context.Context) ([]plot.RankEntry, error) {
	out := make([]plot.RankEntry, 0)
	err := readTable(ctx, r.ranks, []string{"CLUSTER", "LABEL", "RANK"}, func(row []string, line int) error {
		cluster, err := parseInt(row[0])
		if err != nil {
			return fmt.Errorf("line %d: CLUSTER: %w", line, err)
		}
		rank, err := parseInt(row[2])
		if err != nil {
			return fmt.Errorf("line %d: RANK: %w", line, err)
		}
		if rank <= 0 {
			return fmt.Errorf("line %d: RANK must be positive, got %d", line, rank)
		}
		out = append(out, plot.RankEntry{Cluster: cluster, Text: strings.TrimSpace(row[1]), Rank: rank})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read ranks %s: %w", r.ranks, err)
	}
	return out, nil
}

// readTable opens path, maps the wanted columns by header name and calls fn
// with the selected cells of every data row.
func readTable(ctx context.Context, path string, columns []string, fn func(row []string, line int) error) error {
	if path == "" {
		return ErrNoFile
	}
	rc, err := open(path)
	if err != nil {
		return err
	}
	defer rc.Close()

	cr := csv.NewReader(rc)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("header: %w", err)
	}
	idx, err := columnIndex(header, columns)
	if err != nil {
		return err
	}

	selected := make([]string, len(columns))
	for line := 2; ; line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		for i, c := range idx {
			if c >= len(rec) {
				return fmt.Errorf("line %d: missing column %s", line, columns[i])
			}
			selected[i] = rec[c]
		}
		if err := fn(selected, line); err != nil {
			return err
		}
	}
}

func columnIndex(header, columns []string) ([]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")
		pos[strings.ToUpper(h)] = i
	}
	idx := make([]int, len(columns))
	for i, c := range columns {
		p, ok := pos[c]
		if !ok {
			return nil, fmt.Errorf("missing column %s", c)
		}
		idx[i] = p
	}
	return idx, nil
}

type multiCloser struct {
	io.Reader
	closers []func() error
}

func (m *multiCloser) Close() error {
	var first error
	for _, c := range m.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".zstd":
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return &multiCloser{Reader: dec, closers: []func() error{
			func() error { dec.Close(); return nil },
			f.Close,
		}}, nil
	case ".gz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return &multiCloser{Reader: gz, closers: []func() error{gz.Close, f.Close}}, nil
	}
	return f, nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

// parseInt accepts "1995" as well as "1995.0" from float-typed exports.
func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := parseFloat(s)
	if err != nil {
		return 0, err
	}
	return int(math.Round(f)), nil
}
