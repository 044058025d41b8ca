package datastore

import (
	"context"
	"slices"
	"strings"

	"github.com/tphakala/strainbot/internal/ident"
	"github.com/tphakala/strainbot/internal/logger"
)

// AddProducer appends a producer unless one with the same name, ignoring
// case, is registered
func (s *Store) AddProducer(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalidInput("producer", name)
	}
	name = ident.SanitizeProducer(name)

	err := s.do(ctx, "add_producer", func(ctx context.Context) error {
		rows, err := s.readRows(ctx, TableProducers)
		if err != nil {
			return err
		}
		for _, row := range dataRows(rows) {
			if strings.EqualFold(cell(row, 0), name) {
				return conflict(ErrAlreadyExists, name)
			}
		}
		return s.appendRow(ctx, TableProducers, []string{name, s.now().Format(ident.SortableDateLayout)})
	})
	if err != nil {
		return "", err
	}
	getLogger().Info("producer added", logger.String("producer", name))
	return name, nil
}

// RemoveProducer deletes the first producer row matching name, ignoring
// case. Items referring to the producer are left untouched.
func (s *Store) RemoveProducer(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	err := s.do(ctx, "remove_producer", func(ctx context.Context) error {
		rows, err := s.readRows(ctx, TableProducers)
		if err != nil {
			return err
		}
		for i, row := range rows {
			// row 1 is the header and is never deleted
			if i == 0 || !strings.EqualFold(cell(row, 0), name) {
				continue
			}
			return s.deleteRow(ctx, TableProducers, i+1)
		}
		return notFound("producer", name)
	})
	if err != nil {
		return err
	}
	getLogger().Info("producer removed", logger.String("producer", name))
	return nil
}

// ListProducers returns producer names in registry order without
// duplicates. An empty registry yields DefaultProducers.
func (s *Store) ListProducers(ctx context.Context) ([]string, error) {
	var names []string
	err := s.do(ctx, "list_producers", func(ctx context.Context) error {
		rows, err := s.readRows(ctx, TableProducers)
		if err != nil {
			return err
		}
		seen := make(map[string]bool)
		for _, row := range dataRows(rows) {
			name := cell(row, 0)
			key := strings.ToLower(name)
			if name == "" || seen[key] {
				continue
			}
			seen[key] = true
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		getLogger().Warn("producer registry is empty, using defaults")
		return slices.Clone(DefaultProducers), nil
	}
	return names, nil
}
