package promo

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"promobot/internal/models"
	"promobot/internal/storage"
)

// FeedbackLog appends user feedback to its own table. Pure append-only form
// capture: no invariants beyond column existence.
type FeedbackLog struct {
	table storage.TableStore
	now   func() time.Time
}

// NewFeedbackLog creates a feedback log over the feedback table.
func NewFeedbackLog(table storage.TableStore) *FeedbackLog {
	return &FeedbackLog{table: table, now: time.Now}
}

// Initialize makes sure every feedback column exists in the header row.
func (f *FeedbackLog) Initialize(ctx context.Context) error {
	for _, col := range models.FeedbackColumns {
		if err := f.table.EnsureColumn(ctx, col); err != nil {
			return fmt.Errorf("failed to ensure column %s: %w", col, err)
		}
	}
	return nil
}

// Append records one feedback entry. Photo references are joined with commas
// into a single cell.
func (f *FeedbackLog) Append(ctx context.Context, fb models.Feedback) error {
	date := fb.Date
	if date.IsZero() {
		date = f.now()
	}
	return f.table.AppendRow(ctx, map[string]string{
		models.ColUserID:   strconv.FormatInt(fb.UserID, 10),
		models.ColUsername: fb.Username,
		models.ColRating:   strconv.Itoa(fb.Rating),
		models.ColText:     fb.Text,
		models.ColPhotos:   strings.Join(fb.Photos, ","),
		models.ColDate:     date.Format(models.TimeLayout),
	})
}
