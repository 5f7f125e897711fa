package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	TelegramToken   string
	ChannelUsername string // "@name" form

	// Bot mode configuration
	WebhookMode bool   // If true, use webhook mode; if false, use polling mode
	WebhookURL  string // URL for webhook (required if WebhookMode is true)

	// Google Sheets configuration
	SpreadsheetID      string
	PromoSheetName     string
	FeedbackSheetName  string
	ServiceAccountJSON string

	// Promo configuration
	StaffIDs            []int64
	AdminID             int64
	MinSubscriptionDays int // 0 disables the subscription-age gate
	DiscountLabel       string

	SweepInterval time.Duration // 0 disables the reconciliation sweep
	SweepLimit    int           // max users probed per sweep, 0 = all
	SessionTTL    time.Duration

	UseMockDB bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{}

	// Telegram Bot Token (required)
	config.TelegramToken = os.Getenv("BOT_TOKEN")
	if config.TelegramToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is required")
	}

	// Channel the users must subscribe to (required)
	config.ChannelUsername = os.Getenv("CHANNEL_USERNAME")
	if config.ChannelUsername == "" {
		return nil, fmt.Errorf("CHANNEL_USERNAME is required")
	}
	if !strings.HasPrefix(config.ChannelUsername, "@") {
		config.ChannelUsername = "@" + config.ChannelUsername
	}

	// Staff and admin identities (optional; empty staff set allows everyone)
	staffIDs, err := parseIDList(os.Getenv("STAFF_IDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid STAFF_IDS: %w", err)
	}
	config.StaffIDs = staffIDs

	if adminStr := os.Getenv("ADMIN_ID"); adminStr != "" {
		id, err := strconv.ParseInt(adminStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_ID: %w", err)
		}
		config.AdminID = id
	}

	config.MinSubscriptionDays = 0
	if daysStr := os.Getenv("SUBSCRIPTION_MIN_DAYS"); daysStr != "" {
		days, err := strconv.Atoi(daysStr)
		if err != nil {
			return nil, fmt.Errorf("invalid SUBSCRIPTION_MIN_DAYS: %w", err)
		}
		config.MinSubscriptionDays = days
	}

	config.DiscountLabel = os.Getenv("DISCOUNT_LABEL")
	if config.DiscountLabel == "" {
		config.DiscountLabel = "7%"
	}

	// Bot mode configuration
	config.WebhookMode = os.Getenv("WEBHOOK_MODE") == "true"
	if config.WebhookMode {
		config.WebhookURL = os.Getenv("WEBHOOK_URL")
		if config.WebhookURL == "" {
			return nil, fmt.Errorf("WEBHOOK_URL is required when WEBHOOK_MODE is true")
		}
	}

	// Use Mock DB (default: false)
	config.UseMockDB = os.Getenv("USE_MOCK_DB") == "true"

	// Google Sheets configuration (required if not using mock)
	if !config.UseMockDB {
		config.SpreadsheetID = os.Getenv("SPREADSHEET_ID")
		if config.SpreadsheetID == "" {
			return nil, fmt.Errorf("SPREADSHEET_ID is required when USE_MOCK_DB is not set")
		}

		config.ServiceAccountJSON = strings.TrimSpace(os.Getenv("SERVICE_ACCOUNT_JSON"))
		if config.ServiceAccountJSON == "" {
			return nil, fmt.Errorf("SERVICE_ACCOUNT_JSON is required when USE_MOCK_DB is not set")
		}
	}

	config.PromoSheetName = os.Getenv("PROMO_SHEET_NAME")
	if config.PromoSheetName == "" {
		config.PromoSheetName = "Sheet1"
	}
	config.FeedbackSheetName = os.Getenv("FEEDBACK_SHEET_NAME")
	if config.FeedbackSheetName == "" {
		config.FeedbackSheetName = "Feedback"
	}

	config.SweepInterval = time.Hour
	if intervalStr := os.Getenv("SWEEP_INTERVAL"); intervalStr != "" {
		interval, err := time.ParseDuration(intervalStr)
		if err != nil {
			return nil, fmt.Errorf("invalid SWEEP_INTERVAL: %w", err)
		}
		config.SweepInterval = interval
	}
	if limitStr := os.Getenv("SWEEP_LIMIT"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, fmt.Errorf("invalid SWEEP_LIMIT: %w", err)
		}
		config.SweepLimit = limit
	}

	config.SessionTTL = 30 * time.Minute
	if ttlStr := os.Getenv("SESSION_TTL"); ttlStr != "" {
		ttl, err := time.ParseDuration(ttlStr)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
		}
		config.SessionTTL = ttl
	}

	return config, nil
}

func parseIDList(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
