package bot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// recheckDelays are the deferred membership probes fired after a subscribe
// prompt, so the user gets their code without pressing anything once they
// actually subscribe.
var recheckDelays = []time.Duration{
	20 * time.Second,
	2 * time.Minute,
	10 * time.Minute,
}

// scheduleRechecks arms the deferred probes. Each firing is independent and
// idempotent, so overlapping schedules for the same user are safe no-ops.
func (b *Bot) scheduleRechecks(userID int64, username string, chatID int64) {
	for _, d := range recheckDelays {
		time.AfterFunc(d, func() {
			b.recheckMembership(userID, username, chatID)
		})
	}
}

// recheckMembership issues and delivers a code if the user has subscribed in
// the meantime. Bails out silently unless this exact firing created the code:
// a later probe must not re-announce it.
func (b *Bot) recheckMembership(userID int64, username string, chatID int64) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in recheck", zap.Any("panic", r))
		}
	}()
	ctx := context.Background()

	if _, issued, err := b.ledger.HasCode(ctx, userID); err != nil || issued {
		return
	}
	if !b.oracle.IsSubscribed(ctx, userID) {
		return
	}

	eligible, err := b.ledger.IsEligible(ctx, userID, b.minDays)
	if err != nil || !eligible {
		return
	}

	source := b.sourceOf(userID, "subscribe")
	code, created, err := b.ledger.IssueCode(ctx, userID, username, source)
	if err != nil || !created {
		return
	}
	b.forgetSource(userID)

	b.logger.Info("Deferred re-check issued a code",
		zap.Int64("user_id", userID),
		zap.String("code", code),
	)
	b.replyHTML(chatID, fmt.Sprintf(
		"You're subscribed now, thanks! 🎉\nYour promo code: <b>%s</b>", code))
}
