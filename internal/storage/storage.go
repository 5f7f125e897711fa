package storage

import "context"

// TableStore is a row-oriented table addressed by a header row (column name
// to index) and 1-based row numbers. Row 1 is reserved for headers; data rows
// start at row 2. Cells of columns absent from a row read as "".
//
// Implementations backed by a remote table must serialize all operations
// through a single process-wide lock (the remote table has no transactions)
// and retry each remote call a bounded number of times before surfacing the
// error. Callers must treat a returned error as a hard failure with no
// assumption of partial success.
type TableStore interface {
	// EnsureColumn appends name to the header row if it is not present.
	EnsureColumn(ctx context.Context, name string) error

	// FindRowByKey scans data rows in order and returns the 1-based index of
	// the first row whose cell in column equals value, or 0 if none matches.
	FindRowByKey(ctx context.Context, column, value string) (int, error)

	// ReadRow returns the row's cells keyed by column name.
	ReadRow(ctx context.Context, row int) (map[string]string, error)

	// ReadAllRows returns every data row in table order, each keyed by
	// column name. Row N of the table is element N-2 of the result.
	ReadAllRows(ctx context.Context) ([]map[string]string, error)

	// AppendRow appends a new row. Columns missing from values are written
	// as empty; keys naming unknown columns are ignored.
	AppendRow(ctx context.Context, values map[string]string) error

	// UpdateCell overwrites a single cell.
	UpdateCell(ctx context.Context, row int, column, value string) error

	// UpdateRow overwrites the named cells of a row, leaving the rest alone.
	UpdateRow(ctx context.Context, row int, values map[string]string) error

	// Close releases the underlying connection, if any.
	Close() error
}
