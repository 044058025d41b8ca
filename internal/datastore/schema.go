package datastore

import (
	"context"
	"slices"
	"strings"

	"github.com/tphakala/strainbot/internal/errors"
	"github.com/tphakala/strainbot/internal/ident"
	"github.com/tphakala/strainbot/internal/logger"
	"github.com/tphakala/strainbot/internal/observability/metrics"
	"github.com/tphakala/strainbot/internal/sheetdb"
)

type tableSpec struct {
	name   string
	header []string
}

var schema = []tableSpec{
	{TableStrains, StrainsHeader},
	{TableRatings, RatingsHeader},
	{TableSubmissions, SubmissionsHeader},
	{TableProducers, ProducersHeader},
}

// EnsureSchema creates missing tables, repairs short header rows in place
// and seeds an empty producer registry. Data rows are never cleared.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.do(ctx, "ensure_schema", func(ctx context.Context) error {
		for _, t := range schema {
			if err := s.ensureTable(ctx, t); err != nil {
				return err
			}
		}
		return s.seedProducers(ctx)
	})
}

func (s *Store) ensureTable(ctx context.Context, t tableSpec) error {
	rows, err := s.backend.ReadRows(ctx, t.name)
	switch {
	case errors.Is(err, sheetdb.ErrTableNotFound):
		getLogger().Info("creating missing table", logger.String("table", t.name))
		return s.call(metrics.OpCreateTable, t.name, func() error {
			return s.backend.CreateTable(ctx, t.name, t.header)
		})
	case err != nil:
		return s.backendError(err, metrics.OpRead, t.name, 0)
	}

	if len(rows) == 0 {
		return s.appendRow(ctx, t.name, t.header)
	}
	current := rows[0]
	if len(current) > 0 && !strings.EqualFold(strings.TrimSpace(current[0]), t.header[0]) {
		// the first row holds data; rebuild the table around it
		return s.rebuildTable(ctx, t, rows)
	}
	if len(current) >= len(t.header) {
		return nil
	}

	getLogger().Info("repairing table header",
		logger.String("table", t.name),
		logger.Int("columns", len(current)),
		logger.Int("expected", len(t.header)))
	return s.updateCells(ctx, t.name, 1, 1, t.header)
}

// rebuildTable rewrites a table that lost its header: the header goes on
// top and the old non-empty rows follow in their original order
func (s *Store) rebuildTable(ctx context.Context, t tableSpec, rows [][]string) error {
	getLogger().Warn("table has no header row, rebuilding",
		logger.String("table", t.name),
		logger.Int("rows", len(rows)))
	rebuilt := make([][]string, 0, len(rows)+1)
	rebuilt = append(rebuilt, t.header)
	for _, row := range rows {
		if slices.IndexFunc(row, func(c string) bool { return strings.TrimSpace(c) != "" }) < 0 {
			continue
		}
		if t.name == TableProducers && len(row) < len(ProducersHeader) {
			row = append(slices.Clone(row), s.now().Format(ident.SortableDateLayout))
		}
		rebuilt = append(rebuilt, row)
	}
	return s.call(metrics.OpReplace, t.name, func() error {
		return s.backend.ReplaceRows(ctx, t.name, rebuilt)
	})
}

func (s *Store) seedProducers(ctx context.Context) error {
	rows, err := s.readRows(ctx, TableProducers)
	if err != nil {
		return err
	}
	if len(dataRows(rows)) > 0 {
		return nil
	}
	today := s.now().Format(ident.SortableDateLayout)
	for _, name := range DefaultProducers {
		if err := s.appendRow(ctx, TableProducers, []string{name, today}); err != nil {
			return err
		}
	}
	getLogger().Info("seeded producer registry", logger.Int("producers", len(DefaultProducers)))
	return nil
}
