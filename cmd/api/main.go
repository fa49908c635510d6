package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/cache"
	"storefront/internal/config"
	"storefront/internal/handler"
	infracache "storefront/internal/infra/cache"
	"storefront/internal/infra/db"
	"storefront/internal/infra/events"
	"storefront/internal/infra/payment"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/pkg/retry"
	"storefront/internal/server"
	"storefront/internal/usecase"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	//.envは無くてもよい（本番は環境変数だけ）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.IsDev() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	shutdownTracer, err := initTracer(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	//Repository（GORM実装）生成
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	orderItemRepo := infraRepo.NewOrderItemGormRepository(gormDB)
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	store := cache.NewStore(newCacheBackend(ctx, cfg, logger), logger.Named("cache"), cfg.Cache.TTL)

	payments := payment.NewClient(
		cfg.Payment.BaseURL,
		cfg.Payment.Timeout,
		retry.Policy{
			Retries:      cfg.Payment.RetryCount,
			Base:         cfg.Payment.RetryBase,
			Max:          cfg.Payment.RetryMaxWait,
			JitterFactor: cfg.Payment.RetryJitter,
		},
		logger.Named("payment"),
	)

	publisher := newPublisher(cfg, logger)
	defer func() { _ = publisher.Close() }()

	//Usecase生成
	productUC := usecase.NewProductUsecase(productRepo, store, logger.Named("product"))
	orderUC := usecase.NewOrderUsecase(txm, orderRepo, orderItemRepo, payments, publisher, logger.Named("order"))
	reconcileUC := usecase.NewReconcileUsecase(orderRepo, payments, publisher, logger.Named("reconcile"),
		cfg.Reconcile.StaleAfter, cfg.Reconcile.BatchSize)

	//PENDINGのまま残った注文を定期的に回収
	go reconcileUC.Run(ctx, cfg.Reconcile.Interval)

	e := server.New(server.Deps{
		JWTSecret:     cfg.JWTSecret,
		Users:         userRepo,
		Products:      handler.NewProductHandler(productUC),
		AdminProducts: handler.NewAdminProductHandler(productUC),
		Orders:        handler.NewOrderHandler(orderUC),
		Ping:          pinger(gormDB),
	}, logger)

	//決済の最悪時間までは処理中のリクエストを待つ
	return server.Start(ctx, e, listenAddr(cfg.Port), cfg.Payment.WorstCase()+5*time.Second, logger)
}

// redisに繋がらなければプロセス内キャッシュで動かす
func newCacheBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) cache.Backend {
	if cfg.Cache.Backend == "redis" {
		client, err := infracache.DialRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPass, cfg.Cache.RedisDB)
		if err == nil {
			logger.Info("cache backend: redis", zap.String("addr", cfg.Cache.RedisAddr))
			return infracache.NewRedisBackend(client)
		}
		logger.Warn("redis unavailable, falling back to in-memory cache", zap.Error(err))
	}

	mem, err := infracache.NewMemoryBackend(cfg.Cache.MemorySize)
	if err != nil {
		logger.Fatal("memory cache init failed", zap.Error(err))
	}
	logger.Info("cache backend: memory", zap.Int("size", cfg.Cache.MemorySize))
	return mem
}

type settlementPublisher interface {
	usecase.SettlementPublisher
	Close() error
}

func newPublisher(cfg config.Config, logger *zap.Logger) settlementPublisher {
	if len(cfg.Kafka.Brokers) == 0 {
		return events.NopPublisher{}
	}
	logger.Info("publishing settlements to kafka",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
	)
	return events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
}

func pinger(gormDB *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := gormDB.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

func listenAddr(port string) string {
	if port != "" && port[0] == ':' {
		return port
	}
	return ":" + port
}
