package sheetdb

import (
	"context"
	"slices"
	"sync"
)

// Memory is an in-process Backend used for tests and dry runs
type Memory struct {
	mu     sync.RWMutex
	order  []string
	tables map[string][][]string
	closed bool
}

// NewMemory returns an empty in-memory backend
func NewMemory() *Memory {
	return &Memory{tables: make(map[string][][]string)}
}

func (m *Memory) Tables(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order), nil
}

func (m *Memory) CreateTable(_ context.Context, name string, header []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[name]; !ok {
		m.order = append(m.order, name)
	}
	m.tables[name] = [][]string{slices.Clone(header)}
	return nil
}

func (m *Memory) ReadRows(_ context.Context, table string) ([][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows, ok := m.tables[table]
	if !ok {
		return nil, tableNotFound(table)
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = slices.Clone(r)
	}
	return out, nil
}

func (m *Memory) AppendRow(_ context.Context, table string, row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.tables[table]
	if !ok {
		return tableNotFound(table)
	}
	m.tables[table] = append(rows, slices.Clone(row))
	return nil
}

func (m *Memory) UpdateCells(_ context.Context, table string, row, col int, values []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.tables[table]
	if !ok {
		return tableNotFound(table)
	}
	if row < 1 || row > len(rows) || col < 1 {
		return rowOutOfRange(table, row)
	}
	rows[row-1] = setCells(rows[row-1], col, values)
	return nil
}

func (m *Memory) DeleteRow(_ context.Context, table string, row int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.tables[table]
	if !ok {
		return tableNotFound(table)
	}
	if row < 1 || row > len(rows) {
		return rowOutOfRange(table, row)
	}
	m.tables[table] = slices.Delete(rows, row-1, row)
	return nil
}

func (m *Memory) ReplaceRows(_ context.Context, table string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[table]; !ok {
		return tableNotFound(table)
	}
	replaced := make([][]string, len(rows))
	for i, r := range rows {
		replaced[i] = slices.Clone(r)
	}
	m.tables[table] = replaced
	return nil
}

func (m *Memory) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ Backend = (*Memory)(nil)
