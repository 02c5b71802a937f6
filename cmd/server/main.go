package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/redraftlabs/redraft/httpapi"
	"github.com/redraftlabs/redraft/migrations"
	"github.com/redraftlabs/redraft/pkg/catalog"
	"github.com/redraftlabs/redraft/pkg/config"
	"github.com/redraftlabs/redraft/pkg/httpserver"
	"github.com/redraftlabs/redraft/pkg/ledger"
	"github.com/redraftlabs/redraft/pkg/logger"
	"github.com/redraftlabs/redraft/pkg/pg"
	"github.com/redraftlabs/redraft/pkg/ratelimiter"
	"github.com/redraftlabs/redraft/pkg/redis"
	"github.com/redraftlabs/redraft/svc/billing"
	"github.com/redraftlabs/redraft/svc/rewrite"
)

type appConfig struct {
	Environment   string `env:"APP_ENV" envDefault:"development"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required,notEmpty"`
	CatalogPath   string `env:"CATALOG_PATH"`

	RateLimitBurst  int `env:"REWRITE_RATE_BURST" envDefault:"5"`
	RateLimitPerMin int `env:"REWRITE_RATE_PER_MINUTE" envDefault:"10"`
}

func main() {
	ctx := context.Background()

	var (
		appCfg    appConfig
		serverCfg httpserver.Config
		pgCfg     pg.Config
		redisCfg  redis.Config
		paddleCfg billing.PaddleConfig
		engineCfg rewrite.EngineConfig
	)
	config.MustLoad(&appCfg)
	config.MustLoad(&serverCfg)
	config.MustLoad(&pgCfg)
	config.MustLoad(&redisCfg)
	config.MustLoad(&paddleCfg)
	config.MustLoad(&engineCfg)

	log := logger.New(
		logger.WithEnvironment(appCfg.Environment, "redraft"),
		logger.WithContextValue("request_id", middleware.RequestIDKey),
	)
	logger.SetAsDefault(log)

	if err := run(ctx, log, appCfg, serverCfg, pgCfg, redisCfg, paddleCfg, engineCfg); err != nil {
		log.Error("server exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(
	ctx context.Context,
	log *slog.Logger,
	appCfg appConfig,
	serverCfg httpserver.Config,
	pgCfg pg.Config,
	redisCfg redis.Config,
	paddleCfg billing.PaddleConfig,
	engineCfg rewrite.EngineConfig,
) error {
	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, migrations.FS, ".", pgCfg, log); err != nil {
		return err
	}

	redisClient, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	cat, err := loadCatalog(appCfg.CatalogPath)
	if err != nil {
		return err
	}
	log.Info("catalog loaded", slog.String("version", cat.Version()))

	store := ledger.NewPGStore(pool)

	portal, err := billing.NewPaddlePortal(paddleCfg)
	if err != nil {
		return err
	}
	billingSvc, err := billing.New(store, cat, appCfg.WebhookSecret,
		billing.WithLogger(log),
		billing.WithPortalProvider(portal),
	)
	if err != nil {
		return err
	}

	engine, err := rewrite.NewHTTPEngine(engineCfg)
	if err != nil {
		return err
	}

	limiter, err := ratelimiter.New(
		ratelimiter.NewRedisStore(redisClient, "ratelimit"),
		ratelimiter.Config{
			Capacity:       appCfg.RateLimitBurst,
			RefillRate:     appCfg.RateLimitPerMin,
			RefillInterval: time.Minute,
		},
	)
	if err != nil {
		return err
	}

	rewriteSvc, err := rewrite.New(store, engine, nil,
		rewrite.WithLogger(log),
		rewrite.WithLimiter(limiter),
	)
	if err != nil {
		return err
	}

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Billing: httpapi.NewBillingHandlers(billingSvc, log),
		Rewrite: httpapi.NewRewriteHandlers(rewriteSvc, log),
		Logger:  log,
		HealthProbes: []func(context.Context) error{
			pg.Healthcheck(pool),
			redis.Healthcheck(redisClient),
		},
	})

	srv := httpserver.NewFromConfig(serverCfg,
		httpserver.WithLogger(log),
		httpserver.WithStopHook(func(ctx context.Context) {
			if err := rewriteSvc.Shutdown(ctx); err != nil {
				log.Error("job broker shutdown", logger.Error(err))
			}
		}),
	)
	return srv.Run(ctx, router)
}

// loadCatalog reads the price table from CATALOG_PATH when set, and
// otherwise falls back to the built-in table.
func loadCatalog(path string) (*catalog.Catalog, error) {
	if path != "" {
		return catalog.LoadFile(path)
	}
	return catalog.New("builtin", map[string]catalog.PlanPrice{
		"pri_basic_monthly": {Tier: catalog.TierBasic, Period: catalog.PeriodMonthly},
		"pri_basic_annual":  {Tier: catalog.TierBasic, Period: catalog.PeriodAnnual},
		"pri_pro_monthly":   {Tier: catalog.TierPro, Period: catalog.PeriodMonthly},
		"pri_pro_annual":    {Tier: catalog.TierPro, Period: catalog.PeriodAnnual},
		"pri_ultra_monthly": {Tier: catalog.TierUltra, Period: catalog.PeriodMonthly},
		"pri_ultra_annual":  {Tier: catalog.TierUltra, Period: catalog.PeriodAnnual},
	})
}
