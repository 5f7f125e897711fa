package promo

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"promobot/internal/models"
	"promobot/internal/storage/stubs"
)

func seedRow(t *testing.T, table *stubs.MockTable, userID int64, source string, values map[string]string) {
	t.Helper()
	row := map[string]string{
		models.ColUserID: strconv.FormatInt(userID, 10),
		models.ColSource: source,
	}
	for k, v := range values {
		row[k] = v
	}
	require.NoError(t, table.AppendRow(context.Background(), row))
}

func TestSourceReport(t *testing.T) {
	table := stubs.NewMockTable(models.PromoColumns...)
	ledger := NewLedger(table, "7%", zap.NewNop())

	in := "2026-08-10 09:00:00"
	out := "2026-07-31 23:59:59"

	seedRow(t, table, 1, "vk", map[string]string{
		models.ColSubscribedSince: in,
		models.ColDateIssued:      in,
		models.ColDateRedeemed:    in,
	})
	seedRow(t, table, 2, "vk", map[string]string{
		models.ColSubscribedSince: in,
		models.ColUnsubscribedAt:  in,
	})
	seedRow(t, table, 3, "fb", map[string]string{
		models.ColSubscribedSince: in,
	})
	// Outside the window on both ends.
	seedRow(t, table, 4, "vk", map[string]string{
		models.ColSubscribedSince: out,
	})
	seedRow(t, table, 5, "fb", map[string]string{
		models.ColSubscribedSince: "2026-09-01 00:00:00",
	})
	// Empty source lands in the "(none)" bucket.
	seedRow(t, table, 6, "", map[string]string{
		models.ColSubscribedSince: in,
	})
	// Header junk: a row without a user id is skipped.
	seedRow(t, table, 0, "vk", map[string]string{
		models.ColSubscribedSince: in,
	})

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.Local)
	to := from.AddDate(0, 1, 0)
	stats, err := ledger.SourceReport(context.Background(), from, to)
	require.NoError(t, err)

	require.Len(t, stats, 3)
	assert.Equal(t, models.SourceStat{Source: "vk", Subscribed: 2, Unsubscribed: 1, Issued: 1, Redeemed: 1}, stats[0])
	// Equal counts sort by source name.
	assert.Equal(t, "(none)", stats[1].Source)
	assert.Equal(t, "fb", stats[2].Source)
	assert.Equal(t, 1, stats[1].Subscribed)
	assert.Equal(t, 1, stats[2].Subscribed)
}

func TestSourceReportEmptyWindow(t *testing.T) {
	table := stubs.NewMockTable(models.PromoColumns...)
	ledger := NewLedger(table, "7%", zap.NewNop())
	seedRow(t, table, 1, "vk", map[string]string{
		models.ColSubscribedSince: "2026-07-01 10:00:00",
	})

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.Local)
	stats, err := ledger.SourceReport(context.Background(), from, from.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Empty(t, stats, "sources with no activity in the window are dropped")
}

func TestSourceReportWindowBounds(t *testing.T) {
	table := stubs.NewMockTable(models.PromoColumns...)
	ledger := NewLedger(table, "7%", zap.NewNop())

	// Exactly at start is in, exactly at end is out.
	seedRow(t, table, 1, "a", map[string]string{models.ColSubscribedSince: "2026-08-01 00:00:00"})
	seedRow(t, table, 2, "b", map[string]string{models.ColSubscribedSince: "2026-09-01 00:00:00"})

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.Local)
	stats, err := ledger.SourceReport(context.Background(), from, from.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "a", stats[0].Source)
}

func TestMonthWindow(t *testing.T) {
	from, to := MonthWindow(time.Date(2026, 8, 15, 13, 45, 0, 0, time.Local))
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.Local), from)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.Local), to)

	// December rolls over the year.
	from, to = MonthWindow(time.Date(2026, 12, 31, 23, 59, 59, 0, time.Local))
	assert.Equal(t, time.Date(2026, 12, 1, 0, 0, 0, 0, time.Local), from)
	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.Local), to)
}
