package bot

import (
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"promobot/internal/promo"
	"promobot/internal/session"
	"promobot/internal/subs"
)

// telegramTimeout bounds every outbound Telegram API call, including the
// subscription oracle's membership queries.
const telegramTimeout = 15 * time.Second

// Options carries everything the bot needs besides its collaborators.
type Options struct {
	Token    string
	Channel  string // "@name" form
	MinDays  int
	StaffIDs []int64
	AdminID  int64
}

// NewBot creates the Telegram bot and its subscription oracle.
func NewBot(opts Options, ledger *promo.Ledger, feedback *promo.FeedbackLog, sessions *session.Manager, logger *zap.Logger) (*Bot, error) {
	client := &http.Client{Timeout: telegramTimeout}
	api, err := tgbotapi.NewBotAPIWithClient(opts.Token, tgbotapi.APIEndpoint, client)
	if err != nil {
		logger.Error("Failed to create bot API", zap.Error(err))
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	staff := make(map[int64]bool)
	for _, id := range opts.StaffIDs {
		staff[id] = true
	}

	logger.Info("Bot created",
		zap.String("bot_username", api.Self.UserName),
		zap.String("channel", opts.Channel),
		zap.Int("staff", len(staff)),
	)

	return &Bot{
		api:      api,
		ledger:   ledger,
		feedback: feedback,
		oracle:   subs.NewOracle(api, opts.Channel, logger),
		sessions: sessions,
		logger:   logger,
		channel:  opts.Channel,
		minDays:  opts.MinDays,
		staff:    staff,
		adminID:  opts.AdminID,
		sources:  make(map[int64]string),
	}, nil
}

// Oracle exposes the subscription oracle for the reconciliation sweep.
func (b *Bot) Oracle() *subs.Oracle {
	return b.oracle
}

// isStaff reports whether the user may redeem codes. An empty staff set means
// everyone may, matching the open default of a freshly configured bot.
func (b *Bot) isStaff(userID int64) bool {
	b.staffMu.RLock()
	defer b.staffMu.RUnlock()
	return len(b.staff) == 0 || b.staff[userID]
}

// addStaff enrolls a staff member. In-memory only: the set resets on restart.
func (b *Bot) addStaff(userID int64) {
	b.staffMu.Lock()
	b.staff[userID] = true
	n := len(b.staff)
	b.staffMu.Unlock()
	b.logger.Info("Staff member added (in-memory, resets on restart)",
		zap.Int64("user_id", userID),
		zap.Int("staff", n),
	)
}

func (b *Bot) isAdmin(userID int64) bool {
	return b.adminID != 0 && userID == b.adminID
}

// rememberSource stores a deep-link acquisition source until issuance.
func (b *Bot) rememberSource(userID int64, source string) {
	b.sourceMu.Lock()
	b.sources[userID] = source
	b.sourceMu.Unlock()
}

// sourceOf returns the user's pending deep-link source or the fallback.
func (b *Bot) sourceOf(userID int64, fallback string) string {
	b.sourceMu.Lock()
	defer b.sourceMu.Unlock()
	if s, ok := b.sources[userID]; ok && s != "" {
		return s
	}
	return fallback
}

// forgetSource drops the pending source once it has been persisted.
func (b *Bot) forgetSource(userID int64) {
	b.sourceMu.Lock()
	delete(b.sources, userID)
	b.sourceMu.Unlock()
}
