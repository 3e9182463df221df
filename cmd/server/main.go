// Command server runs the bus-ledger engine process: it wires storage,
// the payment gateway, and the event bus, builds the ledger workflows via
// internal/app, then exposes a liveness/metrics surface. Routing HTTP
// requests onto the ledger workflows themselves is out of scope here;
// callers (an API gateway, a job, a test) drive app.Workflows directly
// against the object graph this file builds.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/richxcame/bus-ledger/internal/app"
	"github.com/richxcame/bus-ledger/internal/auth"
	"github.com/richxcame/bus-ledger/internal/gateway"
	"github.com/richxcame/bus-ledger/pkg/common"
	"github.com/richxcame/bus-ledger/pkg/config"
	"github.com/richxcame/bus-ledger/pkg/database"
	"github.com/richxcame/bus-ledger/pkg/eventbus"
	"github.com/richxcame/bus-ledger/pkg/health"
	"github.com/richxcame/bus-ledger/pkg/logger"
	"github.com/richxcame/bus-ledger/pkg/middleware"
	"github.com/richxcame/bus-ledger/pkg/redis"
	"github.com/richxcame/bus-ledger/pkg/secrets"
)

const serviceName = "bus-ledger"

func main() {
	ctx := context.Background()

	cfg, err := config.Load(serviceName)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	if err := database.Migrate(cfg.Database.DSN(), "file://migrations"); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	pool, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(pool)
	logger.Info("connected to postgres")

	redisClient, err := redis.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("connected to redis")

	var bus *eventbus.Bus
	if cfg.NATS.Enabled {
		bus, err = eventbus.Connect(cfg.NATS.URL)
		if err != nil {
			logger.Fatal("failed to connect to nats", zap.Error(err))
		}
		defer bus.Close()
		subscribeLedgerEvents(bus)
		logger.Info("connected to nats event bus")
	}

	gw, err := buildGateway(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to build payment gateway", zap.Error(err))
	}

	admins := auth.NewCompanyScopedAuthorizer(nil)
	workflows := app.Build(cfg, pool, gw, admins)
	logger.Info("ledger workflows wired",
		zap.Bool("sale", workflows.Sale != nil),
		zap.Bool("purchase", workflows.Purchase != nil),
		zap.Bool("refund", workflows.Refund != nil),
	)

	router := buildRouter(cfg, pool, redisClient)

	addr := ":" + cfg.Server.Port
	logger.Info("bus-ledger starting", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func buildGateway(ctx context.Context, cfg *config.Config) (gateway.Gateway, error) {
	if cfg.Gateway.Mode != "stripe" {
		logger.Info("gateway running in mock mode")
		return gateway.NewMockGateway(), nil
	}

	secretKey, err := resolveStripeSecret(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve stripe secret: %w", err)
	}

	return gateway.NewStripeGateway(gateway.StripeConfig{
		SecretKey:         secretKey,
		MinChargeCents:    cfg.Gateway.MinChargeCents,
		MicroCeilingCents: 500,
		StandardFeeBps:    290,
		StandardFeeFixed:  30,
		LocalFeeBps:       150,
		LocalFeeFixed:     15,
		MerchantCountry:   "US",
	}), nil
}

// resolveStripeSecret turns cfg.Gateway.StripeSecretKeyRef into the actual
// Stripe API key. With no secrets backend configured (local/mock-mode runs)
// the ref is already the literal key. Otherwise it's a pkg/secrets
// reference string resolved through the configured provider.
func resolveStripeSecret(ctx context.Context, cfg *config.Config) (string, error) {
	if cfg.Secrets.Provider == "" {
		return cfg.Gateway.StripeSecretKeyRef, nil
	}

	mgr, err := secrets.NewManager(secrets.Config{
		Provider: secrets.ProviderType(cfg.Secrets.Provider),
		Vault: secrets.VaultConfig{
			Address:   cfg.Secrets.VaultAddress,
			Token:     cfg.Secrets.VaultToken,
			MountPath: cfg.Secrets.VaultMountPath,
		},
		AWS:        secrets.AWSConfig{Region: cfg.Secrets.AWSRegion},
		GCP:        secrets.GCPConfig{ProjectID: cfg.Secrets.GCPProjectID},
		Kubernetes: secrets.KubernetesConfig{BasePath: cfg.Secrets.KubernetesBasePath},
	})
	if err != nil {
		return "", fmt.Errorf("build secrets manager: %w", err)
	}
	defer mgr.Close()

	ref, err := secrets.ParseReference("stripe-secret-key", secrets.SecretStripe, cfg.Gateway.StripeSecretKeyRef)
	if err != nil {
		return "", fmt.Errorf("parse stripe secret reference: %w", err)
	}
	return mgr.GetString(ctx, ref)
}

func buildRouter(cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.Metrics(serviceName))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = []string{cfg.Server.CORSOrigins}
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", middleware.CorrelationIDHeader}
	router.Use(cors.New(corsCfg))

	router.GET("/healthz", common.HealthCheckWithDeps(serviceName, "v1", map[string]func() error{
		"postgres": health.PgxPoolChecker(pool),
		"redis":    health.RedisChecker(redisClient.Client),
	}))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

func subscribeLedgerEvents(bus *eventbus.Bus) {
	ctx := context.Background()
	_ = bus.Subscribe(ctx, eventbus.SubjectTransactionCommitted, serviceName, func(ctx context.Context, event *eventbus.Event) error {
		logger.Info("transaction committed", zap.String("payload", string(event.Data)))
		return nil
	})
	_ = bus.Subscribe(ctx, eventbus.SubjectTransactionUndone, serviceName, func(ctx context.Context, event *eventbus.Event) error {
		logger.Info("transaction undone", zap.String("payload", string(event.Data)))
		return nil
	})
}
