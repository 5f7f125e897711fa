package promo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"promobot/internal/models"
	"promobot/internal/storage/stubs"
)

func newTestLedger(t *testing.T) (*Ledger, *stubs.MockTable, *time.Time) {
	t.Helper()
	table := stubs.NewMockTable(models.PromoColumns...)
	ledger := NewLedger(table, "7%", zap.NewNop())
	clock := time.Date(2026, 8, 15, 12, 0, 0, 0, time.Local)
	ledger.now = func() time.Time { return clock }
	return ledger, table, &clock
}

func TestRecordSubscriptionClickCreatesRecord(t *testing.T) {
	ledger, table, clock := newTestLedger(t)
	ctx := context.Background()

	err := ledger.RecordSubscriptionClick(ctx, 123, "alice", "vk")
	require.NoError(t, err)
	assert.Equal(t, 1, table.RowCount())

	row, err := table.ReadRow(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "123", row[models.ColUserID])
	assert.Equal(t, "alice", row[models.ColUsername])
	assert.Equal(t, "vk", row[models.ColSource])
	assert.Equal(t, clock.Format(models.TimeLayout), row[models.ColLastClickAt])
	assert.Empty(t, row[models.ColPromoCode])
}

func TestRecordSubscriptionClickSourceFirstWriteWins(t *testing.T) {
	ledger, table, clock := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.RecordSubscriptionClick(ctx, 123, "alice", "vk"))
	firstClick := *clock

	*clock = clock.Add(time.Hour)
	require.NoError(t, ledger.RecordSubscriptionClick(ctx, 123, "alice", "fb"))

	assert.Equal(t, 1, table.RowCount(), "repeat clicks must not create new rows")
	row, err := table.ReadRow(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "vk", row[models.ColSource], "source must keep its first value")
	assert.Equal(t, clock.Format(models.TimeLayout), row[models.ColLastClickAt], "last click must move forward")
	assert.NotEqual(t, firstClick.Format(models.TimeLayout), row[models.ColLastClickAt])
}

func TestRecordSubscriptionClickBackfillsUsername(t *testing.T) {
	ledger, table, _ := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.RecordSubscriptionClick(ctx, 123, "", "vk"))
	require.NoError(t, ledger.RecordSubscriptionClick(ctx, 123, "alice", "vk"))

	row, err := table.ReadRow(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "alice", row[models.ColUsername])
}

func TestMarkSubscribedSinceFirstWriteWins(t *testing.T) {
	ledger, _, clock := newTestLedger(t)
	ctx := context.Background()

	first, err := ledger.MarkSubscribedSince(ctx, 123)
	require.NoError(t, err)
	assert.Equal(t, *clock, first)

	*clock = clock.Add(48 * time.Hour)
	second, err := ledger.MarkSubscribedSince(ctx, 123)
	require.NoError(t, err)
	assert.Equal(t, first.Format(models.TimeLayout), second.Format(models.TimeLayout),
		"anchor must never move once set")
}

func TestIsEligible(t *testing.T) {
	ledger, _, clock := newTestLedger(t)
	ctx := context.Background()

	eligible, err := ledger.IsEligible(ctx, 123, 0)
	require.NoError(t, err)
	assert.True(t, eligible, "minDays 0 disables the gate")

	// First gated check anchors the clock and fails.
	eligible, err = ledger.IsEligible(ctx, 123, 3)
	require.NoError(t, err)
	assert.False(t, eligible)

	*clock = clock.Add(2 * 24 * time.Hour)
	eligible, err = ledger.IsEligible(ctx, 123, 3)
	require.NoError(t, err)
	assert.False(t, eligible, "2 days is not 3")

	*clock = clock.Add(24 * time.Hour)
	eligible, err = ledger.IsEligible(ctx, 123, 3)
	require.NoError(t, err)
	assert.True(t, eligible, "3 full days have passed")
}

func TestIssueCodeIdempotent(t *testing.T) {
	ledger, table, _ := newTestLedger(t)
	ctx := context.Background()

	code, created, err := ledger.IssueCode(ctx, 123, "alice", "vk")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, ValidCodeFormat(code))

	again, created, err := ledger.IssueCode(ctx, 123, "alice", "fb")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, code, again, "repeat issuance must return the stored code")

	assert.Equal(t, 1, table.RowCount())
	row, err := table.ReadRow(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "vk", row[models.ColSource], "re-issue must not touch the stored source")
	assert.Equal(t, "7%", row[models.ColDiscount])
	assert.NotEmpty(t, row[models.ColDateIssued])
}

func TestIssueCodeReusesClickRecord(t *testing.T) {
	ledger, table, _ := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.RecordSubscriptionClick(ctx, 123, "alice", "vk"))
	code, created, err := ledger.IssueCode(ctx, 123, "alice", "fb")
	require.NoError(t, err)
	assert.True(t, created)

	assert.Equal(t, 1, table.RowCount(), "issuance must complete the existing row")
	row, err := table.ReadRow(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, code, row[models.ColPromoCode])
	assert.Equal(t, "vk", row[models.ColSource], "click-time source wins over issue-time source")
}

func TestIssueCodeGloballyUnique(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for id := int64(1); id <= 50; id++ {
		code, created, err := ledger.IssueCode(ctx, id, "", "test")
		require.NoError(t, err)
		assert.True(t, created)
		assert.False(t, seen[code], "code %q issued twice", code)
		seen[code] = true
	}
}

func TestIssueCodeStoreFailure(t *testing.T) {
	ledger, table, _ := newTestLedger(t)
	ctx := context.Background()

	table.FailNext = errors.New("quota exceeded")
	_, _, err := ledger.IssueCode(ctx, 123, "alice", "vk")
	assert.Error(t, err)
	assert.Equal(t, 0, table.RowCount(), "nothing may be written on failure")
}

func TestRedeemCodeSuccess(t *testing.T) {
	ledger, table, clock := newTestLedger(t)
	ctx := context.Background()

	code, _, err := ledger.IssueCode(ctx, 123, "alice", "vk")
	require.NoError(t, err)
	issuedAt := *clock

	*clock = clock.Add(time.Hour)
	receipt, err := ledger.RedeemCode(ctx, code, "bob")
	require.NoError(t, err)
	assert.Equal(t, code, receipt.Code)
	assert.Equal(t, "7%", receipt.Discount)
	assert.Equal(t, "vk", receipt.Source)
	assert.Equal(t, issuedAt.Format(models.TimeLayout), receipt.DateIssued.Format(models.TimeLayout))
	assert.Equal(t, clock.Format(models.TimeLayout), receipt.DateRedeemed.Format(models.TimeLayout))
	assert.Equal(t, "bob", receipt.RedeemedBy)

	row, err := table.ReadRow(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "bob", row[models.ColRedeemedBy])
	assert.Equal(t, clock.Format(models.TimeLayout), row[models.ColDateRedeemed])
}

func TestRedeemCodeNotFound(t *testing.T) {
	ledger, _, _ := newTestLedger(t)

	_, err := ledger.RedeemCode(context.Background(), "ZZ99", "bob")
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestRedeemCodeTerminal(t *testing.T) {
	ledger, table, clock := newTestLedger(t)
	ctx := context.Background()

	code, _, err := ledger.IssueCode(ctx, 123, "alice", "vk")
	require.NoError(t, err)

	*clock = clock.Add(time.Hour)
	_, err = ledger.RedeemCode(ctx, code, "bob")
	require.NoError(t, err)
	firstRedeem := *clock

	*clock = clock.Add(time.Hour)
	_, err = ledger.RedeemCode(ctx, code, "carol")
	require.Error(t, err)

	var redeemed *AlreadyRedeemedError
	require.ErrorAs(t, err, &redeemed)
	assert.Equal(t, code, redeemed.Code)
	assert.Equal(t, "bob", redeemed.RedeemedBy, "original redeemer must be reported")
	assert.Equal(t, firstRedeem.Format(models.TimeLayout), redeemed.DateRedeemed.Format(models.TimeLayout))

	row, err := table.ReadRow(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "bob", row[models.ColRedeemedBy], "redeemed record must never be mutated again")
	assert.Equal(t, firstRedeem.Format(models.TimeLayout), row[models.ColDateRedeemed])
}

func TestHasCode(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	ctx := context.Background()

	_, issued, err := ledger.HasCode(ctx, 123)
	require.NoError(t, err)
	assert.False(t, issued)

	require.NoError(t, ledger.RecordSubscriptionClick(ctx, 123, "alice", "vk"))
	_, issued, err = ledger.HasCode(ctx, 123)
	require.NoError(t, err)
	assert.False(t, issued, "a click record without a code is not issuance")

	code, _, err := ledger.IssueCode(ctx, 123, "alice", "vk")
	require.NoError(t, err)

	got, issued, err := ledger.HasCode(ctx, 123)
	require.NoError(t, err)
	assert.True(t, issued)
	assert.Equal(t, code, got)
}

func TestInitializeCreatesColumns(t *testing.T) {
	table := stubs.NewMockTable()
	ledger := NewLedger(table, "7%", zap.NewNop())
	ctx := context.Background()

	require.NoError(t, ledger.Initialize(ctx))
	// A write keyed by every column must succeed afterwards.
	require.NoError(t, table.AppendRow(ctx, map[string]string{
		models.ColUserID:         "1",
		models.ColLastClickAt:    "2026-08-15 12:00:00",
		models.ColUnsubscribedAt: "2026-08-16 12:00:00",
	}))
	row, err := table.ReadRow(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "1", row[models.ColUserID])
}

func TestParseTimeToleratesGarbage(t *testing.T) {
	assert.True(t, parseTime("").IsZero())
	assert.True(t, parseTime("not a date").IsZero())
	assert.Equal(t, 2026, parseTime("2026-08-15 12:00:00").Year())
}
