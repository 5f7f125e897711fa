// Package subs answers "is this user subscribed to the channel" against the
// Telegram API. Pure external read, no local state.
package subs

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// ChatMemberGetter is the one Telegram call the oracle needs. *tgbotapi.BotAPI
// satisfies it; tests substitute a stub.
type ChatMemberGetter interface {
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// Oracle queries channel membership. The outbound request timeout is the
// HTTP client timeout of the BotAPI it wraps.
type Oracle struct {
	api     ChatMemberGetter
	channel string
	logger  *zap.Logger
}

// NewOracle creates an oracle for the configured channel ("@name" form).
func NewOracle(api ChatMemberGetter, channel string, logger *zap.Logger) *Oracle {
	return &Oracle{api: api, channel: channel, logger: logger}
}

// IsMember reports current membership. Statuses member, administrator and
// creator count as subscribed. A returned error means the status is unknown;
// it is never a membership verdict.
func (o *Oracle) IsMember(ctx context.Context, userID int64) (bool, error) {
	member, err := o.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: o.channel,
			UserID:             userID,
		},
	})
	if err != nil {
		return false, err
	}

	switch member.Status {
	case "member", "administrator", "creator":
		return true, nil
	default:
		return false, nil
	}
}

// IsSubscribed is the fail-closed form used on the issuance path: an error
// talking to the platform must never grant eligibility, so it reads as "not
// subscribed".
func (o *Oracle) IsSubscribed(ctx context.Context, userID int64) bool {
	ok, err := o.IsMember(ctx, userID)
	if err != nil {
		o.logger.Warn("Membership query failed, treating as not subscribed",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return false
	}
	return ok
}
