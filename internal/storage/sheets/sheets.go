package sheets

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

const (
	maxAttempts    = 3
	initialBackoff = 500 * time.Millisecond
)

// Store provides serialized access to one worksheet of a Google spreadsheet.
// A single mutex is held for the duration of every operation: the Sheets API
// has no transactions, so this is the only safety net against interleaved
// writers in the same process. Every remote call is retried up to maxAttempts
// times with exponential backoff before the error is surfaced.
type Store struct {
	mu            sync.Mutex
	svc           *sheetsapi.Service
	spreadsheetID string
	sheetName     string
	logger        *zap.Logger
}

// NewStore connects to the spreadsheet using service-account credentials JSON
// and binds to the named worksheet.
func NewStore(ctx context.Context, spreadsheetID, sheetName string, credentialsJSON []byte, logger *zap.Logger) (*Store, error) {
	svc, err := sheetsapi.NewService(ctx, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &Store{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger,
	}, nil
}

// retry runs op up to maxAttempts times with exponential backoff. After
// exhausting retries the last error propagates to the caller.
func (s *Store) retry(ctx context.Context, what string, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialBackoff
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if err := op(); err != nil {
			s.logger.Warn("Sheets call failed",
				zap.String("op", what),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, maxAttempts-1), ctx))
	if err != nil {
		return fmt.Errorf("sheets %s failed after %d attempts: %w", what, attempt, err)
	}
	return nil
}

// header returns the header row. Must be called with s.mu held.
func (s *Store) header(ctx context.Context) ([]string, error) {
	var resp *sheetsapi.ValueRange
	err := s.retry(ctx, "read header", func() error {
		var err error
		resp, err = s.svc.Spreadsheets.Values.
			Get(s.spreadsheetID, fmt.Sprintf("%s!1:1", s.sheetName)).
			Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}
	header := make([]string, 0, len(resp.Values[0]))
	for _, v := range resp.Values[0] {
		header = append(header, fmt.Sprint(v))
	}
	return header, nil
}

// EnsureColumn appends name to the header row if it is not already present.
func (s *Store) EnsureColumn(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	header, err := s.header(ctx)
	if err != nil {
		return err
	}
	for _, h := range header {
		if h == name {
			return nil
		}
	}

	cell := fmt.Sprintf("%s!%s1", s.sheetName, columnLetter(len(header)+1))
	vr := &sheetsapi.ValueRange{Values: [][]interface{}{{name}}}
	err = s.retry(ctx, "ensure column", func() error {
		_, err := s.svc.Spreadsheets.Values.
			Update(s.spreadsheetID, cell, vr).
			ValueInputOption("RAW").
			Context(ctx).Do()
		return err
	})
	if err != nil {
		return err
	}
	s.logger.Info("Added column to sheet",
		zap.String("sheet", s.sheetName),
		zap.String("column", name),
	)
	return nil
}

// FindRowByKey returns the 1-based index of the first data row whose cell in
// column equals value, or 0 if no row matches. Linear scan: acceptable for
// promo-audience table sizes.
func (s *Store) FindRowByKey(ctx context.Context, column, value string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	header, rows, err := s.readAll(ctx)
	if err != nil {
		return 0, err
	}
	col := indexOf(header, column)
	if col < 0 {
		return 0, nil
	}
	for i, row := range rows {
		if cellAt(row, col) == value {
			return i + 2, nil
		}
	}
	return 0, nil
}

// ReadRow returns the row's cells keyed by column name.
func (s *Store) ReadRow(ctx context.Context, row int) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	header, err := s.header(ctx)
	if err != nil {
		return nil, err
	}

	var resp *sheetsapi.ValueRange
	err = s.retry(ctx, "read row", func() error {
		var err error
		resp, err = s.svc.Spreadsheets.Values.
			Get(s.spreadsheetID, fmt.Sprintf("%s!%d:%d", s.sheetName, row, row)).
			Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	var cells []interface{}
	if len(resp.Values) > 0 {
		cells = resp.Values[0]
	}
	return rowToMap(header, cells), nil
}

// ReadAllRows returns every data row in table order.
func (s *Store) ReadAllRows(ctx context.Context) ([]map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	header, rows, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowToMap(header, row))
	}
	return out, nil
}

// readAll fetches the whole sheet. Must be called with s.mu held.
func (s *Store) readAll(ctx context.Context) (header []string, rows [][]interface{}, err error) {
	var resp *sheetsapi.ValueRange
	err = s.retry(ctx, "read all", func() error {
		var err error
		resp, err = s.svc.Spreadsheets.Values.
			Get(s.spreadsheetID, s.sheetName).
			Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if len(resp.Values) == 0 {
		return nil, nil, nil
	}
	for _, v := range resp.Values[0] {
		header = append(header, fmt.Sprint(v))
	}
	return header, resp.Values[1:], nil
}

// AppendRow appends a new row, placing values under their header columns.
// Columns missing from values are written as empty strings.
func (s *Store) AppendRow(ctx context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	header, err := s.header(ctx)
	if err != nil {
		return err
	}
	row := make([]interface{}, len(header))
	for i, h := range header {
		row[i] = values[h]
	}

	vr := &sheetsapi.ValueRange{Values: [][]interface{}{row}}
	return s.retry(ctx, "append row", func() error {
		_, err := s.svc.Spreadsheets.Values.
			Append(s.spreadsheetID, s.sheetName, vr).
			ValueInputOption("RAW").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		return err
	})
}

// UpdateCell overwrites a single cell addressed by row number and column name.
func (s *Store) UpdateCell(ctx context.Context, row int, column, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateCells(ctx, row, map[string]string{column: value})
}

// UpdateRow overwrites the named cells of a row in one batched call, leaving
// every other cell untouched.
func (s *Store) UpdateRow(ctx context.Context, row int, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateCells(ctx, row, values)
}

// updateCells writes the named cells of a row via a values batch update.
// Must be called with s.mu held.
func (s *Store) updateCells(ctx context.Context, row int, values map[string]string) error {
	header, err := s.header(ctx)
	if err != nil {
		return err
	}

	var data []*sheetsapi.ValueRange
	for column, value := range values {
		col := indexOf(header, column)
		if col < 0 {
			return fmt.Errorf("unknown column %q in sheet %s", column, s.sheetName)
		}
		data = append(data, &sheetsapi.ValueRange{
			Range:  fmt.Sprintf("%s!%s%d", s.sheetName, columnLetter(col+1), row),
			Values: [][]interface{}{{value}},
		})
	}
	if len(data) == 0 {
		return nil
	}

	req := &sheetsapi.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}
	return s.retry(ctx, "update row", func() error {
		_, err := s.svc.Spreadsheets.Values.
			BatchUpdate(s.spreadsheetID, req).
			Context(ctx).Do()
		return err
	})
}

// Close is a no-op: the Sheets client holds no connection to release.
func (s *Store) Close() error { return nil }

func rowToMap(header []string, cells []interface{}) map[string]string {
	m := make(map[string]string, len(header))
	for i, h := range header {
		m[h] = cellAt(cells, i)
	}
	return m
}

func cellAt(cells []interface{}, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return fmt.Sprint(cells[i])
}

func indexOf(header []string, column string) int {
	for i, h := range header {
		if h == column {
			return i
		}
	}
	return -1
}

// columnLetter converts a 1-based column index to its A1-notation letters.
func columnLetter(n int) string {
	letters := ""
	for n > 0 {
		n--
		letters = string(rune('A'+n%26)) + letters
		n /= 26
	}
	return letters
}
