package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lmittmann/tint"

	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/cache"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/config"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/crypto"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/db"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/handlers"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/mapper"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/payment"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/payment/googlepay"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/payment/mollie"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/payment/stripeadapter"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/seed"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/services"
	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/token"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	DB            *pgxpool.Pool
	CacheProvider cache.Provider
	Handlers      *handlers.Handlers
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.1,
		}); err != nil {
			return nil, fmt.Errorf("failed to initialize sentry: %w", err)
		}
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	database, err := db.Connect(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	cacheProvider, err := cache.NewProvider(cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}

	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	signer, err := token.NewSigner(cfg.ReturnTokenSecret)
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize return token signer: %w", err)
	}

	sessionStore := db.NewSessionStore(database)
	configStore, err := db.NewHandlerConfigStore(database, encryptor)
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize handler config store: %w", err)
	}

	if cfg.HandlerConfigFile != "" {
		if err := seedHandlerConfigs(startupCtx, cfg.HandlerConfigFile, configStore); err != nil {
			closeCacheProvider(logger, cacheProvider)
			database.Close()
			return nil, err
		}
		logger.Info("seeded handler configs", "file", cfg.HandlerConfigFile)
	}

	mollieAdapter := mollie.New(mollie.Config{
		APIKey:        cfg.MollieAPIKey,
		APIBase:       cfg.MollieAPIBase,
		PublicBaseURL: cfg.PublicBaseURL,
		Mock:          cfg.PaymentMock,
	}, signer)
	googlePayAdapter := googlepay.New(googlepay.Config{
		MerchantID:        cfg.GooglePayMerchantID,
		GatewayMerchantID: cfg.GooglePayGatewayMerchantID,
		GatewayAPIKey:     cfg.GooglePayGatewayAPIKey,
		GatewayBase:       cfg.GooglePayGatewayBase,
		PublicBaseURL:     cfg.PublicBaseURL,
		Mock:              cfg.PaymentMock,
	})
	stripeAdapter := stripeadapter.New(stripeadapter.Config{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		PublicBaseURL: cfg.PublicBaseURL,
		Mock:          cfg.PaymentMock,
	})

	registry, err := payment.NewRegistry(mollieAdapter, googlePayAdapter, stripeAdapter)
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to build payment registry: %w", err)
	}

	checkout := services.NewCheckoutService(
		sessionStore,
		configStore,
		registry,
		mapper.New(),
		cacheProvider,
		logger.With("component", "checkout_service"),
	)

	h, err := handlers.New(handlers.Dependencies{
		Config:       cfg,
		DB:           database,
		Checkout:     checkout,
		Registry:     registry,
		Signer:       signer,
		StripeEvents: stripeAdapter,
		Logger:       logger,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		DB:            database,
		CacheProvider: cacheProvider,
		Handlers:      h,
	}, nil
}

func seedHandlerConfigs(ctx context.Context, path string, store *db.HandlerConfigStore) error {
	configs, err := seed.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load handler config seed: %w", err)
	}
	for i := range configs {
		if err := store.Upsert(ctx, &configs[i]); err != nil {
			return fmt.Errorf("failed to seed handler config %s/%s: %w",
				configs[i].ShopID, configs[i].HandlerID, err)
		}
	}
	return nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
	sentry.Flush(2 * time.Second)
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	format := strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	default:
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level: cfg.LogLevel,
		}))
	}
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}
