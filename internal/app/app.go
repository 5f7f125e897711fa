package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"promobot/internal/bot"
	"promobot/internal/config"
	"promobot/internal/metrics"
	"promobot/internal/models"
	"promobot/internal/promo"
	"promobot/internal/session"
	"promobot/internal/storage"
	"promobot/internal/storage/sheets"
	"promobot/internal/storage/stubs"
)

// App represents the application
type App struct {
	config   *config.Config
	logger   *zap.Logger
	promoTbl storage.TableStore
	fbTbl    storage.TableStore
	ledger   *promo.Ledger
	feedback *promo.FeedbackLog
	sessions *session.Manager
	bot      *bot.Bot
	server   *http.Server
}

// New creates and initializes a new application instance
func New() (*App, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Load configuration from environment variables
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	app := &App{config: cfg, logger: logger}
	logger.Info("Starting promo bot...")

	if err := app.initStorage(); err != nil {
		return nil, err
	}
	if err := app.initLedger(); err != nil {
		return nil, err
	}
	if err := app.initBot(); err != nil {
		return nil, err
	}
	app.initHTTPServer()

	return app, nil
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("DEBUG") == "true" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// initStorage connects the promo and feedback tables.
func (a *App) initStorage() error {
	if a.config.UseMockDB {
		a.logger.Info("Using in-memory tables")
		a.promoTbl = stubs.NewMockTable(models.PromoColumns...)
		a.fbTbl = stubs.NewMockTable(models.FeedbackColumns...)
		return nil
	}

	ctx := context.Background()
	a.logger.Info("Connecting to Google Sheets",
		zap.String("spreadsheet_id", a.config.SpreadsheetID),
		zap.String("promo_sheet", a.config.PromoSheetName),
		zap.String("feedback_sheet", a.config.FeedbackSheetName),
	)

	creds := []byte(a.config.ServiceAccountJSON)
	promoTbl, err := sheets.NewStore(ctx, a.config.SpreadsheetID, a.config.PromoSheetName, creds, a.logger)
	if err != nil {
		return fmt.Errorf("failed to open promo sheet: %w", err)
	}
	fbTbl, err := sheets.NewStore(ctx, a.config.SpreadsheetID, a.config.FeedbackSheetName, creds, a.logger)
	if err != nil {
		return fmt.Errorf("failed to open feedback sheet: %w", err)
	}

	a.promoTbl = promoTbl
	a.fbTbl = fbTbl
	return nil
}

// initLedger bootstraps the table headers and builds the ledger, feedback log
// and session manager.
func (a *App) initLedger() error {
	ctx := context.Background()

	a.ledger = promo.NewLedger(a.promoTbl, a.config.DiscountLabel, a.logger)
	if err := a.ledger.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize promo table: %w", err)
	}

	a.feedback = promo.NewFeedbackLog(a.fbTbl)
	if err := a.feedback.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize feedback table: %w", err)
	}

	a.sessions = session.NewManager(a.config.SessionTTL)
	a.logger.Info("Tables initialized successfully")
	return nil
}

// initBot initializes the Telegram bot
func (a *App) initBot() error {
	telegramBot, err := bot.NewBot(bot.Options{
		Token:    a.config.TelegramToken,
		Channel:  a.config.ChannelUsername,
		MinDays:  a.config.MinSubscriptionDays,
		StaffIDs: a.config.StaffIDs,
		AdminID:  a.config.AdminID,
	}, a.ledger, a.feedback, a.sessions, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	a.bot = telegramBot
	return nil
}

// initHTTPServer initializes the HTTP server for health checks, metrics and
// the webhook endpoint.
func (a *App) initHTTPServer() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080" // Default port
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		mode := "polling"
		if a.config.WebhookMode {
			mode = "webhook"
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "Promo bot is running (mode: %s)", mode)
	})

	mux.Handle("/metrics", metrics.Handler())

	// Webhook endpoint (only used in webhook mode)
	mux.HandleFunc("/telegram-webhook", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			a.logger.Warn("Error decoding webhook update", zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		// Process update in background to respond quickly to Telegram
		go a.bot.HandleUpdate(update)

		w.WriteHeader(http.StatusOK)
	})

	a.server = &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Starting HTTP server", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	if a.config.WebhookMode {
		a.logger.Info("Starting bot in WEBHOOK mode", zap.String("webhook_url", a.config.WebhookURL))
		if err := a.bot.StartWebhook(a.config.WebhookURL); err != nil {
			return fmt.Errorf("failed to setup webhook: %w", err)
		}
	} else {
		g.Go(func() error {
			a.logger.Info("Starting bot in POLLING mode...")
			return a.bot.Start()
		})
	}

	if a.config.SweepInterval > 0 {
		g.Go(func() error {
			a.ledger.RunSweeper(ctx, a.bot.Oracle(), a.config.SweepInterval, a.config.SweepLimit)
			return nil
		})
	}

	// Session janitor: expired conversations are also evicted lazily, the
	// ticker just keeps the map from holding abandoned entries.
	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n := a.sessions.EvictExpired(); n > 0 {
					a.logger.Debug("Evicted expired sessions", zap.Int("count", n))
				}
			}
		}
	})

	<-ctx.Done()
	a.logger.Info("Shutting down...")
	a.shutdown()
	return g.Wait()
}

// shutdown stops the transports and closes the tables.
func (a *App) shutdown() {
	a.bot.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	if err := a.promoTbl.Close(); err != nil {
		a.logger.Warn("Error closing promo table", zap.Error(err))
	}
	if err := a.fbTbl.Close(); err != nil {
		a.logger.Warn("Error closing feedback table", zap.Error(err))
	}

	a.logger.Info("Shutdown complete")
	_ = a.logger.Sync()
}
