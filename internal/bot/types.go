package bot

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"promobot/internal/promo"
	"promobot/internal/session"
	"promobot/internal/subs"
)

// Bot wires the Telegram transport to the promo ledger.
type Bot struct {
	api      *tgbotapi.BotAPI
	ledger   *promo.Ledger
	feedback *promo.FeedbackLog
	oracle   *subs.Oracle
	sessions *session.Manager
	logger   *zap.Logger

	channel string // "@name" form
	minDays int

	staffMu sync.RWMutex
	staff   map[int64]bool
	adminID int64

	// Deep-link acquisition sources captured from /start payloads, consumed
	// at issuance time.
	sourceMu sync.Mutex
	sources  map[int64]string
}

// Reply keyboard button labels. Free-text input is matched against these
// before any conversation state is consulted.
const (
	btnSubscribe     = "✅ Subscribe"
	btnCheckSub      = "🔄 Check subscription"
	btnGetPromo      = "🎁 Get promo code"
	btnFeedback      = "💬 Leave feedback"
	btnStaffVerify   = "✅ Verify/redeem code"
	btnAdminAddStaff = "➕ Add staff member"
	btnReport        = "📊 Monthly report"
	btnDone          = "✅ Done"
	btnCancel        = "❌ Cancel"
)
