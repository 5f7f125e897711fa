package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"promobot/internal/models"
	"promobot/internal/promo"
	"promobot/internal/session"
)

// handleRedemptionInput consumes the staff member's code entry. Invalid
// format re-prompts without leaving the state; any valid-format code resolves
// the conversation.
func (b *Bot) handleRedemptionInput(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	code := strings.ToUpper(strings.TrimSpace(message.Text))

	if !promo.ValidCodeFormat(code) {
		b.reply(message.Chat.ID,
			fmt.Sprintf("Invalid format. Enter %d characters A–Z/0–9.", promo.CodeLength))
		return
	}

	staff := message.From.UserName
	if staff == "" {
		staff = "Staff"
	}

	receipt, err := b.ledger.RedeemCode(ctx, code, staff)
	b.sessions.Clear(userID)

	switch {
	case err == nil:
		b.replyHTML(message.Chat.ID, fmt.Sprintf(
			"✅ Code is valid and has been marked as used.\n\n"+
				"Code: <b>%s</b>\n"+
				"Discount: <b>%s</b>\n"+
				"Issued: %s\n"+
				"Source: %s\n"+
				"Staff: @%s",
			receipt.Code, receipt.Discount,
			formatTime(receipt.DateIssued), receipt.Source, receipt.RedeemedBy))
	case errors.Is(err, promo.ErrCodeNotFound):
		b.reply(message.Chat.ID, "Promo code not found ❌")
	default:
		var redeemed *promo.AlreadyRedeemedError
		if errors.As(err, &redeemed) {
			b.reply(message.Chat.ID, fmt.Sprintf(
				"❌ This code was already redeemed.\n"+
					"Discount: %s\n"+
					"Issued: %s\n"+
					"Redeemed: %s\n"+
					"Redeemed by: %s",
				redeemed.Discount, formatTime(redeemed.DateIssued),
				formatTime(redeemed.DateRedeemed), redeemed.RedeemedBy))
		} else {
			b.storeFailure(message.Chat.ID, "redeem code", err)
		}
	}
	b.replyKeyboard(message.Chat.ID, "Anything else?", b.mainKeyboard(userID))
}

// handleStaffIDInput consumes the admin's staff-enrollment entry: a numeric
// id or a forwarded message from the new staff member.
func (b *Bot) handleStaffIDInput(message *tgbotapi.Message) {
	userID := message.From.ID

	var newID int64
	if message.ForwardFrom != nil {
		newID = message.ForwardFrom.ID
	} else if n, err := strconv.ParseInt(strings.TrimSpace(message.Text), 10, 64); err == nil && n > 0 {
		newID = n
	}

	if newID == 0 {
		b.reply(message.Chat.ID, "Could not determine the ID. Send a number or forward a message from the user.")
		return
	}

	b.addStaff(newID)
	b.sessions.Clear(userID)
	b.replyKeyboard(message.Chat.ID,
		fmt.Sprintf("Staff member added: %d ✅", newID),
		b.mainKeyboard(userID))
}

// handleFeedbackRatingInput accepts a typed 1-5 rating as an alternative to
// the inline buttons.
func (b *Bot) handleFeedbackRatingInput(message *tgbotapi.Message) {
	rating, err := strconv.Atoi(strings.TrimSpace(message.Text))
	if err != nil || rating < 1 || rating > 5 {
		b.replyKeyboard(message.Chat.ID, "Please rate from 1 to 5.", ratingKeyboard())
		return
	}
	b.applyFeedbackRating(message.From.ID, message.Chat.ID, rating)
}

// applyFeedbackRating records the rating and moves to the text step. Shared
// by the inline rating buttons and typed input.
func (b *Bot) applyFeedbackRating(userID, chatID int64, rating int) {
	if b.sessions.State(userID) != session.AwaitingFeedbackRating {
		return // stale button press
	}
	b.sessions.Draft(userID).Rating = rating
	b.sessions.Set(userID, session.AwaitingFeedbackText)
	b.replyKeyboard(chatID, "Thanks! Now tell us a few words:", cancelKeyboard())
}

func (b *Bot) handleFeedbackTextInput(message *tgbotapi.Message) {
	userID := message.From.ID
	text := strings.TrimSpace(message.Text)
	if text == "" {
		b.reply(message.Chat.ID, "Please send your feedback as text.")
		return
	}

	b.sessions.Draft(userID).Text = text
	b.sessions.Set(userID, session.AwaitingFeedbackPhotos)
	b.replyKeyboard(message.Chat.ID,
		fmt.Sprintf("You can attach photos now, or press “%s”.", btnDone),
		photosKeyboard())
}

func (b *Bot) handleFeedbackPhotosInput(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID

	if len(message.Photo) > 0 {
		// Telegram sends several sizes; keep the largest.
		photo := message.Photo[len(message.Photo)-1]
		draft := b.sessions.Draft(userID)
		draft.Photos = append(draft.Photos, photo.FileID)
		b.reply(message.Chat.ID, fmt.Sprintf("Photo added (%d). Send more or press “%s”.", len(draft.Photos), btnDone))
		return
	}

	if message.Text != btnDone {
		b.reply(message.Chat.ID, fmt.Sprintf("Send a photo or press “%s”.", btnDone))
		return
	}

	draft := b.sessions.Draft(userID)
	err := b.feedback.Append(ctx, models.Feedback{
		UserID:   userID,
		Username: message.From.UserName,
		Rating:   draft.Rating,
		Text:     draft.Text,
		Photos:   draft.Photos,
	})
	b.sessions.Clear(userID)
	if err != nil {
		b.storeFailure(message.Chat.ID, "append feedback", err)
		return
	}
	b.replyKeyboard(message.Chat.ID, "Thanks for your feedback! 🙏", b.mainKeyboard(userID))
}

// handleMonthInput consumes the admin's YYYY-MM report month and renders the
// per-source report.
func (b *Bot) handleMonthInput(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID

	month, err := time.Parse("2006-01", strings.TrimSpace(message.Text))
	if err != nil {
		b.reply(message.Chat.ID, "❌ Invalid month format. Please use YYYY-MM\n\nExample: 2026-08")
		return
	}

	from, to := promo.MonthWindow(month)
	stats, err := b.ledger.SourceReport(ctx, from, to)
	b.sessions.Clear(userID)
	if err != nil {
		b.storeFailure(message.Chat.ID, "source report", err)
		return
	}

	b.replyKeyboard(message.Chat.ID, formatSourceReport(month, stats), b.mainKeyboard(userID))
}

func formatSourceReport(month time.Time, stats []models.SourceStat) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Report for %s\n\n", month.Format("January 2006"))

	if len(stats) == 0 {
		sb.WriteString("No activity in this month.")
		return sb.String()
	}

	var total models.SourceStat
	for _, s := range stats {
		fmt.Fprintf(&sb, "%s: +%d / -%d (issued %d, redeemed %d)\n",
			s.Source, s.Subscribed, s.Unsubscribed, s.Issued, s.Redeemed)
		total.Subscribed += s.Subscribed
		total.Unsubscribed += s.Unsubscribed
		total.Issued += s.Issued
		total.Redeemed += s.Redeemed
	}
	fmt.Fprintf(&sb, "\nTotal: +%d / -%d, issued %d, redeemed %d",
		total.Subscribed, total.Unsubscribed, total.Issued, total.Redeemed)
	return sb.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(models.TimeLayout)
}
