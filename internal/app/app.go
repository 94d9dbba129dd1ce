package app

import (
	"context"
	"fmt"
	"time"

	"github.com/athebyme/listing-publisher/config"
	"github.com/athebyme/listing-publisher/internal/adapters/cache"
	"github.com/athebyme/listing-publisher/internal/adapters/crypto"
	"github.com/athebyme/listing-publisher/internal/adapters/ebay"
	"github.com/athebyme/listing-publisher/internal/adapters/messaging"
	"github.com/athebyme/listing-publisher/internal/adapters/queue"
	postgres "github.com/athebyme/listing-publisher/internal/adapters/storage"
	"github.com/athebyme/listing-publisher/internal/domain/marketplace"
	"github.com/athebyme/listing-publisher/internal/domain/services"
	"github.com/athebyme/listing-publisher/internal/utils"
	"github.com/athebyme/listing-publisher/pkg/interfaces"
	"github.com/athebyme/listing-publisher/pkg/tx"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
)

// App общие для API и воркера зависимости
type App struct {
	Config *config.Config
	Logger interfaces.LoggerPort

	Storage   *postgres.Storage
	Cache     *cache.RedisCache
	Messaging interfaces.MessagingPort
	RedisOpt  asynq.RedisClientOpt
	Queue     *queue.AsynqQueue
	Registry  *marketplace.Registry
	Metrics   *services.PublishMetrics

	Orchestrator *services.PublishOrchestrator
	Admin        *services.MetricsService

	closers []func() error
}

// New подключается к хранилищам и собирает доменные сервисы.
// Метрики регистрируются в reg.
func New(ctx context.Context, cfg *config.Config, log interfaces.LoggerPort, reg prometheus.Registerer) (*App, error) {
	a := &App{Config: cfg, Logger: log}

	if err := a.connect(ctx); err != nil {
		a.Close()
		return nil, err
	}

	ebayClient := ebay.NewClient(ebay.Config{
		APIBaseURL:    cfg.Ebay.APIBaseURL,
		TokenURL:      cfg.Ebay.TokenURL,
		ClientID:      cfg.Ebay.ClientID,
		ClientSecret:  cfg.Ebay.ClientSecret,
		Scopes:        cfg.Ebay.Scopes,
		Timeout:       cfg.Ebay.Timeout,
		TokenCacheTTL: cfg.Ebay.TokenCacheTTL,
	}, a.Storage, log)

	registry, err := marketplace.NewRegistry(
		marketplace.NewEbayAdapter(ebayClient, a.Storage, marketplace.EbayDefaults{
			MarketplaceID:       cfg.Ebay.MarketplaceID,
			Currency:            cfg.Ebay.Currency,
			PaymentPolicyID:     cfg.Ebay.PaymentPolicyID,
			FulfillmentPolicyID: cfg.Ebay.FulfillmentPolicyID,
			ReturnPolicyID:      cfg.Ebay.ReturnPolicyID,
			MerchantLocationKey: cfg.Ebay.MerchantLocationKey,
		}),
		marketplace.NewFacebookMarketplaceAdapter(a.Storage),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("ошибка регистрации адаптеров: %w", err)
	}
	a.Registry = registry

	a.Metrics = services.NewPublishMetrics(reg)
	a.Admin = services.NewMetricsService(
		a.Queue,
		a.Storage,
		tx.NewTxManager(a.Storage.Pool(), log),
		a.Cache,
		a.Messaging,
		cfg.Kafka.ArchiveTopic,
		a.Metrics,
		log,
	)
	a.Orchestrator = services.NewPublishOrchestrator(a.Storage, registry, a.Queue, a.Admin, services.QueueSettings{
		MaxRetry:           cfg.Queue.MaxRetry,
		CompletedRetention: cfg.Queue.CompletedRetention,
		TaskTimeout:        cfg.Queue.TaskTimeout,
		DedupWindow:        cfg.Queue.DedupWindow,
	}, log)

	return a, nil
}

func (a *App) connect(ctx context.Context) error {
	cfg := a.Config

	connStr, err := utils.GenerateConnectionString(
		cfg.Postgres.Host,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
		cfg.Postgres.Port,
		cfg.Postgres.PoolSize,
		cfg.Postgres.Timeout,
	)
	if err != nil {
		return fmt.Errorf("ошибка генерации строки подключения к PostgreSQL: %w", err)
	}

	storage, err := postgres.NewPostgresStorage(ctx, connStr)
	if err != nil {
		return fmt.Errorf("ошибка инициализации хранилища: %w", err)
	}
	a.Storage = storage
	a.closers = append(a.closers, storage.Close)
	a.Logger.Info("Хранилище инициализировано")

	redisCache, err := cache.NewRedisCache(ctx, cache.Options{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.ConnectTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		KeyPrefix:    cfg.Redis.KeyPrefix,
	})
	if err != nil {
		return fmt.Errorf("ошибка инициализации кэша: %w", err)
	}
	a.Cache = redisCache
	a.closers = append(a.closers, redisCache.Close)
	a.Logger.Info("Кэш инициализирован")

	if cfg.Kafka.Enabled {
		kafkaClient, err := messaging.NewKafkaMessaging(messaging.KafkaConfig{
			Brokers:         cfg.Kafka.Brokers,
			GroupID:         cfg.Kafka.GroupID,
			ClientID:        cfg.Kafka.ClientID,
			AutoOffsetReset: cfg.Kafka.AutoOffsetReset,
			SessionTimeout:  cfg.Kafka.SessionTimeout,
			CompressionType: cfg.Kafka.CompressionType,
		}, a.Logger)
		if err != nil {
			return fmt.Errorf("ошибка инициализации системы обмена сообщениями: %w", err)
		}
		a.Messaging = kafkaClient
		a.closers = append(a.closers, kafkaClient.Close)

		topicsCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if err := kafkaClient.EnsureTopics(topicsCtx, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor,
			cfg.Kafka.EventsTopic, cfg.Kafka.CommandsTopic, cfg.Kafka.ArchiveTopic); err != nil {
			a.Logger.Warn("Не удалось создать топики Kafka",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
		a.Logger.Info("Система обмена сообщениями инициализирована")
	} else {
		a.Logger.Warn("Kafka отключена: события публикации и команды воркера недоступны")
	}

	a.RedisOpt = asynq.RedisClientOpt{
		Addr:         fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  cfg.Redis.ConnectTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	}
	a.Queue = queue.NewAsynqQueue(a.RedisOpt, queue.Options{
		Queue:   cfg.Queue.Name,
		MetaTTL: cfg.Queue.FailedRetention,
	}, redisCache, a.Logger)
	a.closers = append(a.closers, a.Queue.Close)

	return nil
}

// NewProcessor собирает обработчик задач воркера. Требует ключ шифрования учетных данных
func (a *App) NewProcessor() (*services.PublishProcessor, error) {
	box, err := crypto.NewSecretBox(a.Config.Credentials.EncryptionKey, a.Config.Credentials.Salt)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации шифрования учетных данных: %w", err)
	}

	return services.NewPublishProcessor(services.ProcessorDeps{
		Listings:    a.Storage,
		Registry:    a.Registry,
		Credentials: services.NewCredentialResolver(a.Storage, box, a.Logger),
		Progress:    a.Queue,
		Cache:       a.Cache,
		Messaging:   a.Messaging,
		Metrics:     a.Metrics,
		Refresher:   a.Admin,
		EventsTopic: a.Config.Kafka.EventsTopic,
	}, a.Logger), nil
}

// NewJanitor собирает фоновую очистку очереди
func (a *App) NewJanitor() *services.Janitor {
	return services.NewJanitor(a.Queue, a.Admin, services.JanitorSettings{
		Interval:        a.Config.Queue.JanitorInterval,
		FailedRetention: a.Config.Queue.FailedRetention,
		MaxRetained:     a.Config.Queue.MaxRetained,
	}, a.Logger)
}

// Ping проверяет доступность PostgreSQL и Redis
func (a *App) Ping(ctx context.Context) error {
	if err := a.Storage.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if err := a.Cache.Ping(ctx); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// Close закрывает соединения в обратном порядке
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Error("Ошибка при закрытии зависимости",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}
	a.closers = nil
}
