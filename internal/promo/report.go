package promo

import (
	"context"
	"sort"
	"time"

	"promobot/internal/models"
)

// SourceReport scans the full ledger and aggregates activity per acquisition
// source within [from, to): users whose subscription anchor falls in the
// window, users observed unsubscribed in the window, and codes issued and
// redeemed in the window. Records with no source land in the "(none)" bucket.
func (l *Ledger) SourceReport(ctx context.Context, from, to time.Time) ([]models.SourceStat, error) {
	rows, err := l.table.ReadAllRows(ctx)
	if err != nil {
		return nil, err
	}

	buckets := make(map[string]*models.SourceStat)
	bucket := func(source string) *models.SourceStat {
		if source == "" {
			source = "(none)"
		}
		if s, ok := buckets[source]; ok {
			return s
		}
		s := &models.SourceStat{Source: source}
		buckets[source] = s
		return s
	}
	inWindow := func(t time.Time) bool {
		return !t.IsZero() && !t.Before(from) && t.Before(to)
	}

	for _, raw := range rows {
		rec := recordFromRow(raw)
		if rec.UserID == 0 {
			continue
		}
		s := bucket(rec.Source)
		if inWindow(rec.SubscribedSince) {
			s.Subscribed++
		}
		if inWindow(rec.UnsubscribedAt) {
			s.Unsubscribed++
		}
		if inWindow(rec.DateIssued) {
			s.Issued++
		}
		if inWindow(rec.DateRedeemed) {
			s.Redeemed++
		}
	}

	stats := make([]models.SourceStat, 0, len(buckets))
	for _, s := range buckets {
		if s.Subscribed == 0 && s.Unsubscribed == 0 && s.Issued == 0 && s.Redeemed == 0 {
			continue
		}
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Subscribed != stats[j].Subscribed {
			return stats[i].Subscribed > stats[j].Subscribed
		}
		return stats[i].Source < stats[j].Source
	})
	return stats, nil
}

// MonthWindow returns the [start, end) bounds of the calendar month holding t.
func MonthWindow(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}
