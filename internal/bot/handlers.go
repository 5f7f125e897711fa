package bot

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"promobot/internal/session"
)

// handleMessage processes a single inbound message: commands first, then
// keyboard buttons, then free text interpreted by the user's conversation
// state.
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	// Recover from panics to prevent bot crashes
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleMessage", zap.Any("panic", r))
			b.reply(message.Chat.ID, "An error occurred while processing your request. Please try again.")
		}
	}()

	userID := message.From.ID
	ctx := context.Background()

	if message.IsCommand() {
		// Any command interrupts an ongoing conversation.
		b.sessions.Clear(userID)
		switch message.Command() {
		case "start", "help":
			b.handleStart(message)
		default:
			b.replyKeyboard(message.Chat.ID, "Use the buttons below 👇", b.mainKeyboard(userID))
		}
		return
	}

	switch message.Text {
	case btnCancel:
		b.handleCancel(message)
		return
	case btnCheckSub:
		b.handleCheckSubscription(ctx, message)
		return
	case btnGetPromo:
		b.handleGetPromo(ctx, message)
		return
	case btnStaffVerify:
		b.handleStaffVerifyStart(message)
		return
	case btnAdminAddStaff:
		b.handleAddStaffStart(message)
		return
	case btnFeedback:
		b.handleFeedbackStart(message)
		return
	case btnReport:
		b.handleReportStart(message)
		return
	}

	switch b.sessions.State(userID) {
	case session.AwaitingRedemptionCode:
		b.handleRedemptionInput(ctx, message)
	case session.AwaitingStaffID:
		b.handleStaffIDInput(message)
	case session.AwaitingFeedbackRating:
		b.handleFeedbackRatingInput(message)
	case session.AwaitingFeedbackText:
		b.handleFeedbackTextInput(message)
	case session.AwaitingFeedbackPhotos:
		b.handleFeedbackPhotosInput(ctx, message)
	case session.AwaitingMonthSelection:
		b.handleMonthInput(ctx, message)
	default:
		b.replyKeyboard(message.Chat.ID, "Pick an action on the keyboard below 👇", b.mainKeyboard(userID))
	}
}

// handleCallbackQuery processes inline keyboard button clicks.
func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	// Recover from panics
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleCallbackQuery", zap.Any("panic", r))
		}
	}()

	ctx := context.Background()

	// Answer the callback query to remove loading state
	if b.api != nil {
		b.api.Request(tgbotapi.NewCallback(query.ID, ""))
	}
	if query.Message == nil {
		return
	}
	chatID := query.Message.Chat.ID

	data := query.Data
	switch {
	case data == "check_sub":
		b.runSubscriptionCheck(ctx, query.From, chatID)
	case strings.HasPrefix(data, "rate:"):
		rating, err := strconv.Atoi(strings.TrimPrefix(data, "rate:"))
		if err != nil || rating < 1 || rating > 5 {
			return
		}
		b.applyFeedbackRating(query.From.ID, chatID, rating)
	}
}

// handleCancel is the explicit cancel transition: back to idle from any
// state, any in-progress draft discarded.
func (b *Bot) handleCancel(message *tgbotapi.Message) {
	b.sessions.Clear(message.From.ID)
	b.replyKeyboard(message.Chat.ID, "Cancelled.", b.mainKeyboard(message.From.ID))
}
