package stubs

import (
	"context"
	"fmt"
	"sync"
)

// MockTable is an in-memory implementation of the TableStore interface for
// testing and local development (USE_MOCK_DB mode). It mirrors the sheet
// semantics: a header row, 1-based row numbers starting at 2 for data, and
// empty strings for cells never written.
type MockTable struct {
	mu     sync.Mutex
	header []string
	rows   [][]string

	// FailNext makes the next operation return an error, for testing the
	// hard-failure contract.
	FailNext error
}

// NewMockTable creates an empty table with the given header row.
func NewMockTable(header ...string) *MockTable {
	h := make([]string, len(header))
	copy(h, header)
	return &MockTable{header: h}
}

func (m *MockTable) takeErr() error {
	err := m.FailNext
	m.FailNext = nil
	return err
}

// EnsureColumn appends name to the header if absent.
func (m *MockTable) EnsureColumn(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}

	for _, h := range m.header {
		if h == name {
			return nil
		}
	}
	m.header = append(m.header, name)
	return nil
}

// FindRowByKey returns the first matching data row index, or 0.
func (m *MockTable) FindRowByKey(ctx context.Context, column, value string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return 0, err
	}

	col := m.indexOf(column)
	if col < 0 {
		return 0, nil
	}
	for i, row := range m.rows {
		if cell(row, col) == value {
			return i + 2, nil
		}
	}
	return 0, nil
}

// ReadRow returns the row keyed by column name.
func (m *MockTable) ReadRow(ctx context.Context, row int) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return nil, err
	}

	i := row - 2
	if i < 0 || i >= len(m.rows) {
		return nil, fmt.Errorf("row %d out of range", row)
	}
	return m.toMap(m.rows[i]), nil
}

// ReadAllRows returns every data row in table order.
func (m *MockTable) ReadAllRows(ctx context.Context) ([]map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return nil, err
	}

	out := make([]map[string]string, 0, len(m.rows))
	for _, row := range m.rows {
		out = append(out, m.toMap(row))
	}
	return out, nil
}

// AppendRow appends a new data row.
func (m *MockTable) AppendRow(ctx context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}

	row := make([]string, len(m.header))
	for i, h := range m.header {
		row[i] = values[h]
	}
	m.rows = append(m.rows, row)
	return nil
}

// UpdateCell overwrites a single cell.
func (m *MockTable) UpdateCell(ctx context.Context, row int, column, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	return m.set(row, map[string]string{column: value})
}

// UpdateRow overwrites the named cells of a row.
func (m *MockTable) UpdateRow(ctx context.Context, row int, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	return m.set(row, values)
}

// Close does nothing for the mock table.
func (m *MockTable) Close() error { return nil }

// RowCount reports the number of data rows, for test assertions.
func (m *MockTable) RowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *MockTable) set(row int, values map[string]string) error {
	i := row - 2
	if i < 0 || i >= len(m.rows) {
		return fmt.Errorf("row %d out of range", row)
	}
	for column, value := range values {
		col := m.indexOf(column)
		if col < 0 {
			return fmt.Errorf("unknown column %q", column)
		}
		for len(m.rows[i]) <= col {
			m.rows[i] = append(m.rows[i], "")
		}
		m.rows[i][col] = value
	}
	return nil
}

func (m *MockTable) toMap(row []string) map[string]string {
	out := make(map[string]string, len(m.header))
	for i, h := range m.header {
		out[h] = cell(row, i)
	}
	return out
}

func (m *MockTable) indexOf(column string) int {
	for i, h := range m.header {
		if h == column {
			return i
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
