package promo

import (
	"context"
	"time"

	"go.uber.org/zap"

	"promobot/internal/metrics"
	"promobot/internal/models"
)

// MembershipChecker answers whether a user is currently subscribed to the
// channel. An error means the answer is unknown, not that the user left.
type MembershipChecker interface {
	IsMember(ctx context.Context, userID int64) (bool, error)
}

// RefreshUnsubscribed probes users that have a subscription anchor but no
// departure mark, and stamps UnsubscribedAt for those the oracle reports as
// gone. Best-effort: a failed per-user query is skipped, never fatal. limit
// bounds how many users are probed in one invocation; limit <= 0 probes all.
//
// The ledger mutex is NOT held across the sweep: it would block issuance for
// the duration of many oracle round-trips. Each cell write is still
// serialized by the store, and the sweep touches only UnsubscribedAt.
func (l *Ledger) RefreshUnsubscribed(ctx context.Context, oracle MembershipChecker, limit int) (checked, updated int, err error) {
	rows, err := l.table.ReadAllRows(ctx)
	if err != nil {
		return 0, 0, err
	}

	for i, raw := range rows {
		if limit > 0 && checked >= limit {
			break
		}
		rec := recordFromRow(raw)
		if rec.UserID == 0 || rec.SubscribedSince.IsZero() || !rec.UnsubscribedAt.IsZero() {
			continue
		}
		checked++

		member, oerr := oracle.IsMember(ctx, rec.UserID)
		if oerr != nil {
			l.logger.Debug("Membership probe failed, skipping user",
				zap.Int64("user_id", rec.UserID),
				zap.Error(oerr),
			)
			continue
		}
		if member {
			continue
		}

		row := i + 2
		stamp := l.now().Format(models.TimeLayout)
		if werr := l.table.UpdateCell(ctx, row, models.ColUnsubscribedAt, stamp); werr != nil {
			l.logger.Warn("Failed to stamp unsubscribed user",
				zap.Int64("user_id", rec.UserID),
				zap.Error(werr),
			)
			continue
		}
		updated++
		metrics.SweepUnsubscribed.Inc()
	}

	l.logger.Info("Reconciliation sweep finished",
		zap.Int("checked", checked),
		zap.Int("updated", updated),
	)
	return checked, updated, nil
}

// RunSweeper runs RefreshUnsubscribed on a fixed interval until the context
// is cancelled. Sweep errors are logged, never fatal.
func (l *Ledger) RunSweeper(ctx context.Context, oracle MembershipChecker, interval time.Duration, limit int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := l.RefreshUnsubscribed(ctx, oracle, limit); err != nil {
				l.logger.Warn("Reconciliation sweep failed", zap.Error(err))
			}
		}
	}
}
