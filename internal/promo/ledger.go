package promo

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"promobot/internal/metrics"
	"promobot/internal/models"
	"promobot/internal/storage"
)

// maxGenerateAttempts bounds the regenerate-on-collision loop. With ~1.67M
// usable codes a promo table would have to be nearly full to get anywhere
// close.
const maxGenerateAttempts = 100

// Ledger is the promo-code lifecycle state machine. Per-user states are
// derived from the record, never stored: no record, record without a code,
// code issued, code redeemed (terminal).
//
// The ledger mutex is held across every operation so that check-then-set
// sequences (issuance idempotency, at-most-once redemption) are atomic with
// respect to other in-process callers. The table's own per-call lock does not
// cover multi-call sequences. Multi-instance deployments are out of scope:
// there is no cross-process lock.
type Ledger struct {
	mu       sync.Mutex
	table    storage.TableStore
	discount string
	logger   *zap.Logger
	now      func() time.Time
}

// NewLedger creates a ledger over the promo table. The discount label is
// copied into each record at issuance time and frozen there.
func NewLedger(table storage.TableStore, discount string, logger *zap.Logger) *Ledger {
	return &Ledger{
		table:    table,
		discount: discount,
		logger:   logger,
		now:      time.Now,
	}
}

// Initialize makes sure every promo column exists in the header row. Safe to
// run on every start; existing data is never touched.
func (l *Ledger) Initialize(ctx context.Context) error {
	for _, col := range models.PromoColumns {
		if err := l.table.EnsureColumn(ctx, col); err != nil {
			return fmt.Errorf("failed to ensure column %s: %w", col, err)
		}
	}
	return nil
}

// RecordSubscriptionClick ensures a record exists for the user and stamps the
// click. Source is first-write-wins; LastClickAt is deliberately overwritten
// on every click.
func (l *Ledger) RecordSubscriptionClick(ctx context.Context, userID int64, username, source string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().Format(models.TimeLayout)
	row, rec, err := l.findRecord(ctx, userID)
	if err != nil {
		return err
	}
	if row == 0 {
		return l.table.AppendRow(ctx, map[string]string{
			models.ColUserID:      strconv.FormatInt(userID, 10),
			models.ColUsername:    username,
			models.ColSource:      source,
			models.ColLastClickAt: now,
		})
	}

	updates := map[string]string{models.ColLastClickAt: now}
	if rec.Source == "" && source != "" {
		updates[models.ColSource] = source
	}
	if rec.Username == "" && username != "" {
		updates[models.ColUsername] = username
	}
	return l.table.UpdateRow(ctx, row, updates)
}

// MarkSubscribedSince anchors the first-observed-subscription timestamp. The
// first call writes now and returns it; every later call returns the stored
// value unchanged.
func (l *Ledger) MarkSubscribedSince(ctx context.Context, userID int64) (time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.markSubscribedSince(ctx, userID)
}

func (l *Ledger) markSubscribedSince(ctx context.Context, userID int64) (time.Time, error) {
	row, rec, err := l.findRecord(ctx, userID)
	if err != nil {
		return time.Time{}, err
	}
	if row != 0 && !rec.SubscribedSince.IsZero() {
		return rec.SubscribedSince, nil
	}

	now := l.now()
	stamp := now.Format(models.TimeLayout)
	if row != 0 {
		if err := l.table.UpdateCell(ctx, row, models.ColSubscribedSince, stamp); err != nil {
			return time.Time{}, err
		}
		return now, nil
	}

	// Lazy record creation on first eligibility check.
	err = l.table.AppendRow(ctx, map[string]string{
		models.ColUserID:          strconv.FormatInt(userID, 10),
		models.ColSource:          "subscribe_check",
		models.ColSubscribedSince: stamp,
	})
	if err != nil {
		return time.Time{}, err
	}
	return now, nil
}

// IsEligible reports whether the user's subscription is old enough for a
// code. minDays <= 0 disables the gate. The check anchors the subscription
// clock as a side effect, so the first call starts the countdown.
func (l *Ledger) IsEligible(ctx context.Context, userID int64, minDays int) (bool, error) {
	if minDays <= 0 {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	since, err := l.markSubscribedSince(ctx, userID)
	if err != nil {
		return false, err
	}
	days := int(l.now().Sub(since).Hours() / 24)
	return days >= minDays, nil
}

// IssueCode returns the user's promo code, creating one if needed. A user is
// issued at most one code ever; repeat calls return the stored code with
// created=false and never touch the stored Source. New codes are checked for
// uniqueness against every existing record and regenerated on collision.
func (l *Ledger) IssueCode(ctx context.Context, userID int64, username, source string) (code string, created bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	row, rec, err := l.findRecord(ctx, userID)
	if err != nil {
		return "", false, err
	}
	if row != 0 && rec.Issued() {
		return rec.PromoCode, false, nil
	}

	code, err = l.uniqueCode(ctx)
	if err != nil {
		return "", false, err
	}

	now := l.now().Format(models.TimeLayout)
	if row != 0 {
		updates := map[string]string{
			models.ColPromoCode:  code,
			models.ColDateIssued: now,
			models.ColDiscount:   l.discount,
		}
		if rec.Username == "" && username != "" {
			updates[models.ColUsername] = username
		}
		if rec.Source == "" && source != "" {
			updates[models.ColSource] = source
		}
		if err := l.table.UpdateRow(ctx, row, updates); err != nil {
			return "", false, err
		}
	} else {
		err := l.table.AppendRow(ctx, map[string]string{
			models.ColUserID:     strconv.FormatInt(userID, 10),
			models.ColUsername:   username,
			models.ColPromoCode:  code,
			models.ColDateIssued: now,
			models.ColSource:     source,
			models.ColDiscount:   l.discount,
		})
		if err != nil {
			return "", false, err
		}
	}

	// The store is eventually consistent at best; verify the write is
	// readable before promising the code to the user.
	verify, err := l.table.FindRowByKey(ctx, models.ColPromoCode, code)
	if err != nil {
		return "", false, err
	}
	if verify == 0 {
		l.logger.Error("Issued code is not readable back from the store",
			zap.Int64("user_id", userID),
			zap.String("code", code),
		)
		return "", false, ErrRecordInvariant
	}

	metrics.CodesIssued.Inc()
	l.logger.Info("Promo code issued",
		zap.Int64("user_id", userID),
		zap.String("code", code),
		zap.String("source", source),
	)
	return code, true, nil
}

// uniqueCode generates a code absent from every existing record.
func (l *Ledger) uniqueCode(ctx context.Context) (string, error) {
	rows, err := l.table.ReadAllRows(ctx)
	if err != nil {
		return "", err
	}
	taken := make(map[string]bool, len(rows))
	for _, row := range rows {
		if c := row[models.ColPromoCode]; c != "" {
			taken[c] = true
		}
	}
	for i := 0; i < maxGenerateAttempts; i++ {
		code := GenerateCode()
		if !taken[code] {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique code in %d attempts", maxGenerateAttempts)
}

// Receipt describes a successful redemption.
type Receipt struct {
	Code         string
	Discount     string
	Source       string
	DateIssued   time.Time
	DateRedeemed time.Time
	RedeemedBy   string
}

// RedeemCode marks the code as used by the given staff member. Outcomes:
// success with the record's metadata, ErrCodeNotFound, or
// *AlreadyRedeemedError carrying the original redemption. The transition is
// terminal; a redeemed record is never mutated again.
func (l *Ledger) RedeemCode(ctx context.Context, code, staff string) (*Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	row, err := l.table.FindRowByKey(ctx, models.ColPromoCode, code)
	if err != nil {
		return nil, err
	}
	if row == 0 {
		metrics.RedemptionsRejected.WithLabelValues("not_found").Inc()
		return nil, ErrCodeNotFound
	}

	raw, err := l.table.ReadRow(ctx, row)
	if err != nil {
		return nil, err
	}
	rec := recordFromRow(raw)
	if rec.Redeemed() {
		metrics.RedemptionsRejected.WithLabelValues("already_redeemed").Inc()
		return nil, &AlreadyRedeemedError{
			Code:         code,
			Discount:     rec.Discount,
			Source:       rec.Source,
			DateIssued:   rec.DateIssued,
			DateRedeemed: rec.DateRedeemed,
			RedeemedBy:   rec.RedeemedBy,
		}
	}

	now := l.now()
	err = l.table.UpdateRow(ctx, row, map[string]string{
		models.ColDateRedeemed: now.Format(models.TimeLayout),
		models.ColRedeemedBy:   staff,
	})
	if err != nil {
		return nil, err
	}

	metrics.CodesRedeemed.Inc()
	l.logger.Info("Promo code redeemed",
		zap.String("code", code),
		zap.String("staff", staff),
	)
	return &Receipt{
		Code:         code,
		Discount:     rec.Discount,
		Source:       rec.Source,
		DateIssued:   rec.DateIssued,
		DateRedeemed: now,
		RedeemedBy:   staff,
	}, nil
}

// HasCode returns the user's code if one was issued. Used by the delayed
// re-checks to stay idempotent.
func (l *Ledger) HasCode(ctx context.Context, userID int64) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	row, rec, err := l.findRecord(ctx, userID)
	if err != nil {
		return "", false, err
	}
	if row == 0 || !rec.Issued() {
		return "", false, nil
	}
	return rec.PromoCode, true, nil
}

// findRecord locates the user's row. Must be called with l.mu held.
func (l *Ledger) findRecord(ctx context.Context, userID int64) (int, models.PromoRecord, error) {
	row, err := l.table.FindRowByKey(ctx, models.ColUserID, strconv.FormatInt(userID, 10))
	if err != nil {
		return 0, models.PromoRecord{}, err
	}
	if row == 0 {
		return 0, models.PromoRecord{}, nil
	}
	raw, err := l.table.ReadRow(ctx, row)
	if err != nil {
		return 0, models.PromoRecord{}, err
	}
	return row, recordFromRow(raw), nil
}

// recordFromRow maps a raw table row onto a PromoRecord. Unparseable cells
// read as zero values; the sheet is hand-editable and must not crash the bot.
func recordFromRow(raw map[string]string) models.PromoRecord {
	userID, _ := strconv.ParseInt(raw[models.ColUserID], 10, 64)
	return models.PromoRecord{
		UserID:          userID,
		Username:        raw[models.ColUsername],
		PromoCode:       raw[models.ColPromoCode],
		DateIssued:      parseTime(raw[models.ColDateIssued]),
		DateRedeemed:    parseTime(raw[models.ColDateRedeemed]),
		RedeemedBy:      raw[models.ColRedeemedBy],
		Source:          raw[models.ColSource],
		SubscribedSince: parseTime(raw[models.ColSubscribedSince]),
		Discount:        raw[models.ColDiscount],
		UnsubscribedAt:  parseTime(raw[models.ColUnsubscribedAt]),
		LastClickAt:     parseTime(raw[models.ColLastClickAt]),
	}
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(models.TimeLayout, s, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}
