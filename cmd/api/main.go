package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/azizikri/round-robin-coupon/internal/config"
	httphandler "github.com/azizikri/round-robin-coupon/internal/delivery/http"
	"github.com/azizikri/round-robin-coupon/internal/delivery/kafka"
	"github.com/azizikri/round-robin-coupon/internal/logger"
	"github.com/azizikri/round-robin-coupon/internal/repository"
	"github.com/azizikri/round-robin-coupon/internal/stats"
	"github.com/azizikri/round-robin-coupon/internal/usecase"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init(cfg.LogMode, cfg.Log)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal("failed to open store", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	defer store.Close()

	recorder, closeStats := newStatsRecorder(ctx, cfg)
	defer closeStats()

	engine := usecase.NewAllocationEngine(store, cfg.ClaimCooldown,
		usecase.WithMaxRetries(cfg.ClaimMaxRetries),
		usecase.WithStats(recorder),
		usecase.WithLogger(log.Named("engine")),
	)

	var gateway usecase.ClaimGateway
	var kafkaClient *kgo.Client
	var replyClient *kgo.Client
	var retryClient *kgo.Client

	if cfg.EventDrivenEnabled {
		brokers := strings.Split(cfg.KafkaBrokers, ",")
		kafkaClient, err = newConsumerClient(brokers, cfg.KafkaClientID, cfg.KafkaGroupID, kafka.TopicClaimRequest)
		if err != nil {
			log.Fatal("failed to create kafka client", zap.Error(err))
		}

		if err := kafka.EnsureTopics(ctx, kafkaClient, cfg); err != nil {
			log.Warn("failed to ensure topics", zap.Error(err))
		}

		kgateway := kafka.NewGateway(kafkaClient, cfg.KafkaInstanceID)
		gateway = kgateway

		consumer := kafka.NewConsumer(cfg, kafkaClient, engine)
		go consumer.Start(ctx)

		retryClient, err = newConsumerClient(brokers, cfg.KafkaClientID+"-retry", cfg.KafkaRetryGroupID, kafka.TopicClaimRetry)
		if err != nil {
			log.Fatal("failed to create retry kafka client", zap.Error(err))
		}
		retryConsumer := kafka.NewConsumer(cfg, retryClient, engine)
		go retryConsumer.StartRetry(ctx)

		replyClient, err = newReplyClient(brokers, cfg.KafkaClientID+"-reply", kafka.ReplyTopic(cfg.KafkaInstanceID))
		if err != nil {
			log.Fatal("failed to create reply kafka client", zap.Error(err))
		}
		go kgateway.ConsumeReplies(ctx, replyClient)
	} else {
		gateway = kafka.NewDirectGateway(engine)
	}

	opts := httphandler.Options{
		Gateway: gateway,
		KeyFn:   httphandler.DefaultKeyFunc(cfg.IdentityHeader, cfg.TrustXFF),
		Logger:  log.Named("http"),
	}
	if cfg.ThrottleRPS > 0 && cfg.ThrottleBurst > 0 {
		throttle := httphandler.NewThrottleStore(cfg.ThrottleRPS, cfg.ThrottleBurst)
		throttle.StartJanitor(ctx)
		opts.Throttle = throttle
	}
	auth, err := usecase.NewAdminAuth(cfg.AdminUsername, cfg.AdminPassword, cfg.JWTSecret, cfg.JWTExpire, nil)
	if err != nil {
		log.Warn("admin routes disabled", zap.Error(err))
	} else {
		opts.Auth = auth
		opts.Admin = usecase.NewCouponAdmin(store, recorder, nil)
	}
	r := httphandler.NewRouter(httphandler.NewHandler(opts))

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("starting server", zap.String("port", cfg.AppPort), zap.String("driver", cfg.DBDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", zap.Error(err))
	}

	if kafkaClient != nil {
		kafkaClient.Close()
	}
	if replyClient != nil {
		replyClient.Close()
	}
	if retryClient != nil {
		retryClient.Close()
	}

	wg.Wait()
	log.Info("shutdown complete")
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		store, err := repository.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverMemory:
		return repository.NewMemoryStore(), nil
	default:
		pool, err := initDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := repository.RunMigrations(ctx, pool, "db/migrations"); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		return repository.New(pool), nil
	}
}

func initDB(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN())
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return pool, nil
}

// newStatsRecorder prefers Redis so every instance shares counters, and falls
// back to in-process counters when Redis is off or unreachable.
func newStatsRecorder(ctx context.Context, cfg *config.Config) (stats.Recorder, func()) {
	if !cfg.RedisEnabled {
		return stats.NewMemoryStore(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warnw("redis unavailable, using in-memory stats", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return stats.NewMemoryStore(), func() {}
	}
	return stats.NewRedisStore(client, cfg.RedisStatsPrefix, cfg.RedisStatsTTL), func() { _ = client.Close() }
}

func newConsumerClient(brokers []string, clientID, groupID string, topics ...string) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
}

func newReplyClient(brokers []string, clientID, topic string) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.ConsumeTopics(topic),
	)
}
