package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"promobot/internal/promo"
	"promobot/internal/session"
)

const maxSourceLen = 32

// handleStart greets the user and captures the deep-link acquisition source
// from the /start payload, if any.
func (b *Bot) handleStart(message *tgbotapi.Message) {
	userID := message.From.ID

	if payload := strings.TrimSpace(message.CommandArguments()); payload != "" {
		source := strings.ToLower(payload)
		if len(source) > maxSourceLen {
			source = source[:maxSourceLen]
		}
		b.rememberSource(userID, source)
		b.logger.Info("Deep-link source captured",
			zap.Int64("user_id", userID),
			zap.String("source", source),
		)
	}

	welcome := fmt.Sprintf("Hi! 👋 This is the promo bot.\n\n"+
		"Subscribe to our channel: %s\n"+
		"Then press “%s” or “%s”.", b.channel, btnCheckSub, btnGetPromo)
	b.replyKeyboard(message.Chat.ID, welcome, b.mainKeyboard(userID))
	b.replyKeyboard(message.Chat.ID, "Channel link and subscription check:", b.subscribeKeyboard())
}

// handleCheckSubscription handles the "check subscription" button.
func (b *Bot) handleCheckSubscription(ctx context.Context, message *tgbotapi.Message) {
	b.sessions.Clear(message.From.ID)
	b.runSubscriptionCheck(ctx, message.From, message.Chat.ID)
}

// runSubscriptionCheck is the shared subscribe-click flow behind both the
// reply button and the inline callback: record the click, verify membership,
// gate on subscription age, then issue.
func (b *Bot) runSubscriptionCheck(ctx context.Context, from *tgbotapi.User, chatID int64) {
	userID := from.ID
	source := b.sourceOf(userID, "subscribe")

	if !b.oracle.IsSubscribed(ctx, userID) {
		b.replyKeyboard(chatID,
			fmt.Sprintf("Subscribe to %s, then press “%s”.", b.channel, btnCheckSub),
			b.subscribeKeyboard())
		b.scheduleRechecks(userID, from.UserName, chatID)
		return
	}

	if err := b.ledger.RecordSubscriptionClick(ctx, userID, from.UserName, source); err != nil {
		b.storeFailure(chatID, "record subscription click", err)
		return
	}

	eligible, err := b.ledger.IsEligible(ctx, userID, b.minDays)
	if err != nil {
		b.storeFailure(chatID, "eligibility check", err)
		return
	}
	if !eligible {
		b.reply(chatID, "Thanks for subscribing! Your promo code will unlock a bit later.")
		return
	}

	b.issueAndSend(ctx, userID, from.UserName, source, chatID,
		fmt.Sprintf("Thanks for subscribing to %s! 🎉\nYour promo code: <b>%%s</b>", b.channel))
}

// handleGetPromo handles the "get promo code" button.
func (b *Bot) handleGetPromo(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	b.sessions.Clear(userID)

	if !b.oracle.IsSubscribed(ctx, userID) {
		b.replyKeyboard(message.Chat.ID,
			fmt.Sprintf("Subscribe to %s, then press “%s”.", b.channel, btnCheckSub),
			b.subscribeKeyboard())
		return
	}

	eligible, err := b.ledger.IsEligible(ctx, userID, b.minDays)
	if err != nil {
		b.storeFailure(message.Chat.ID, "eligibility check", err)
		return
	}
	if !eligible {
		b.reply(message.Chat.ID, "Thanks for subscribing! Your promo code will unlock a bit later.")
		return
	}

	source := b.sourceOf(userID, "promo_btn")
	b.issueAndSend(ctx, userID, message.From.UserName, source, message.Chat.ID,
		"Your personal promo code: <b>%s</b> 🎁")
}

// issueAndSend issues (or re-reads) the user's code and delivers it using the
// given HTML format string with one %s verb for the code.
func (b *Bot) issueAndSend(ctx context.Context, userID int64, username, source string, chatID int64, format string) {
	code, created, err := b.ledger.IssueCode(ctx, userID, username, source)
	if err != nil {
		if errors.Is(err, promo.ErrRecordInvariant) {
			b.reply(chatID, "Something went wrong while saving your code. Please try again.")
			return
		}
		b.storeFailure(chatID, "issue code", err)
		return
	}
	if created {
		b.forgetSource(userID)
	}
	b.replyHTML(chatID, fmt.Sprintf(format, code))
}

// handleStaffVerifyStart begins the redemption conversation for staff.
func (b *Bot) handleStaffVerifyStart(message *tgbotapi.Message) {
	userID := message.From.ID
	if !b.isStaff(userID) {
		b.reply(message.Chat.ID, "This action is for staff only.")
		return
	}
	b.sessions.Set(userID, session.AwaitingRedemptionCode)
	b.replyKeyboard(message.Chat.ID,
		fmt.Sprintf("Enter the promo code to verify/redeem (%d characters), or press “%s”.", promo.CodeLength, btnCancel),
		cancelKeyboard())
}

// handleAddStaffStart begins the staff-enrollment conversation for the admin.
func (b *Bot) handleAddStaffStart(message *tgbotapi.Message) {
	userID := message.From.ID
	if !b.isAdmin(userID) {
		b.reply(message.Chat.ID, "This action is for the administrator only.")
		return
	}
	b.sessions.Set(userID, session.AwaitingStaffID)
	b.replyKeyboard(message.Chat.ID,
		fmt.Sprintf("Send the staff member's numeric user ID, or forward any of their messages. Or press “%s”.", btnCancel),
		cancelKeyboard())
}

// handleFeedbackStart begins the feedback conversation.
func (b *Bot) handleFeedbackStart(message *tgbotapi.Message) {
	userID := message.From.ID
	b.sessions.Clear(userID)
	b.sessions.Set(userID, session.AwaitingFeedbackRating)
	b.replyKeyboard(message.Chat.ID, "How would you rate us?", ratingKeyboard())
}

// handleReportStart begins the month-selection conversation for the admin.
func (b *Bot) handleReportStart(message *tgbotapi.Message) {
	userID := message.From.ID
	if !b.isAdmin(userID) {
		b.reply(message.Chat.ID, "This action is for the administrator only.")
		return
	}
	b.sessions.Set(userID, session.AwaitingMonthSelection)
	b.replyKeyboard(message.Chat.ID,
		"Which month? Send it as YYYY-MM, e.g. 2026-08.",
		cancelKeyboard())
}

// storeFailure tells the user the action did not complete. No partial success
// is assumed; details go to the log only.
func (b *Bot) storeFailure(chatID int64, op string, err error) {
	b.logger.Error("Store operation failed",
		zap.String("op", op),
		zap.Error(err),
	)
	b.reply(chatID, "The storage is unavailable right now, nothing was changed. Please try again in a minute.")
}
