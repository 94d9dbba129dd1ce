package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config содержит все настройки сервиса
type Config struct {
	AppName  string
	Version  string
	LogLevel string
	ENV      string

	Server struct {
		Host            string
		Port            int
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		BodyLimit       int // максимальный размер запроса в МБ
	}

	Postgres struct {
		Host     string
		Port     int
		User     string
		Password string
		DBName   string
		SSLMode  string
		Timeout  time.Duration
		PoolSize int // размер пула соединений
	}

	Redis struct {
		Host           string
		Port           int
		Password       string
		DB             int
		PoolSize       int           // размер пула соединений
		MinIdleConns   int           // минимальное количество неактивных соединений
		ConnectTimeout time.Duration // таймаут соединения
		ReadTimeout    time.Duration // таймаут чтения
		WriteTimeout   time.Duration // таймаут записи
		MaxRetries     int           // максимальное количество повторных попыток
		KeyPrefix      string        // префикс ключей кэша, отделяет их от ключей очереди
	}

	Kafka struct {
		Enabled           bool
		Brokers           []string
		GroupID           string
		ClientID          string
		AutoOffsetReset   string
		SessionTimeout    time.Duration
		CompressionType   string
		EventsTopic       string // итоги попыток публикации
		CommandsTopic     string // команды воркеру
		ArchiveTopic      string // выгрузка архивированных задач
		Partitions        int
		ReplicationFactor int
	}

	Queue struct {
		Name               string
		Concurrency        int
		MaxRetry           int
		CompletedRetention time.Duration // сколько хранить успешные задачи
		FailedRetention    time.Duration // сколько хранить упавшие задачи
		MaxRetained        int           // предел задач в каждом завершенном состоянии
		DedupWindow        time.Duration // окно дедупликации повторных запросов
		JanitorInterval    time.Duration
		TaskTimeout        time.Duration // ограничение одной попытки
		ShutdownTimeout    time.Duration
	}

	Ebay struct {
		Environment         string // sandbox или production
		APIBaseURL          string
		TokenURL            string
		ClientID            string
		ClientSecret        string
		Scopes              []string
		MarketplaceID       string
		Currency            string
		PaymentPolicyID     string
		FulfillmentPolicyID string
		ReturnPolicyID      string
		MerchantLocationKey string
		Timeout             time.Duration
		TokenCacheTTL       time.Duration
	}

	Credentials struct {
		EncryptionKey string
		Salt          string
	}

	Metrics struct {
		Enabled bool
		Port    int
	}

	Security struct {
		JWTSecret        string
		JWTIssuer        string
		CORSAllowOrigins []string
		RateLimit        float64 // запросов в секунду на клиента
		RateBurst        int
		AdminRoles       []string // роли, которым доступны административные операции
	}

	Keycloak KeycloakConfig
}

var ebayEnvironments = map[string]struct{ api, token string }{
	"sandbox":    {api: "https://api.sandbox.ebay.com", token: "https://api.sandbox.ebay.com/identity/v1/oauth2/token"},
	"production": {api: "https://api.ebay.com", token: "https://api.ebay.com/identity/v1/oauth2/token"},
}

// Load загружает конфигурацию из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	configFile := "config"
	if configPath != "" {
		configFile = configPath
	}

	var cfg Config

	// Настройка Viper
	viper.SetConfigName(configFile)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("../config")
	viper.AddConfigPath("../../config")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Чтение конфигурационного файла
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
		}
		// Продолжаем, если файл не найден, будем использовать только переменные окружения
	}

	setDefaults()
	bindEnvVariables()

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка десериализации конфигурации: %w", err)
	}

	cfg.ENV = viper.GetString("env")
	if cfg.ENV == "" {
		cfg.ENV = "development"
		if envVar := os.Getenv("APP_ENV"); envVar != "" {
			cfg.ENV = envVar
		}
	}

	if err := cfg.resolveEbayEndpoints(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// resolveEbayEndpoints подставляет адреса API по окружению, если они не заданы явно
func (c *Config) resolveEbayEndpoints() error {
	env := strings.ToLower(c.Ebay.Environment)
	endpoints, ok := ebayEnvironments[env]
	if !ok {
		return fmt.Errorf("неизвестное окружение eBay: %q", c.Ebay.Environment)
	}
	c.Ebay.Environment = env
	if c.Ebay.APIBaseURL == "" {
		c.Ebay.APIBaseURL = endpoints.api
	}
	if c.Ebay.TokenURL == "" {
		c.Ebay.TokenURL = endpoints.token
	}
	return nil
}

// setDefaults устанавливает значения по умолчанию
func setDefaults() {
	// Основные настройки
	viper.SetDefault("appName", "listing-publisher")
	viper.SetDefault("version", "1.0.0")
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("env", "development")

	// Настройки сервера
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", "10s")
	viper.SetDefault("server.writeTimeout", "10s")
	viper.SetDefault("server.shutdownTimeout", "5s")
	viper.SetDefault("server.bodyLimit", 1)

	// Настройки Postgres
	viper.SetDefault("postgres.host", "localhost")
	viper.SetDefault("postgres.port", 5432)
	viper.SetDefault("postgres.user", "postgres")
	viper.SetDefault("postgres.password", "postgres")
	viper.SetDefault("postgres.dbname", "reseller")
	viper.SetDefault("postgres.sslmode", "disable")
	viper.SetDefault("postgres.timeout", "5s")
	viper.SetDefault("postgres.poolSize", 10)

	// Настройки Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.poolSize", 10)
	viper.SetDefault("redis.minIdleConns", 2)
	viper.SetDefault("redis.connectTimeout", "1s")
	viper.SetDefault("redis.readTimeout", "1s")
	viper.SetDefault("redis.writeTimeout", "1s")
	viper.SetDefault("redis.maxRetries", 3)
	viper.SetDefault("redis.keyPrefix", "listing-publisher")

	// Настройки Kafka
	viper.SetDefault("kafka.enabled", true)
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.groupID", "listing-publisher")
	viper.SetDefault("kafka.clientID", "listing-publisher")
	viper.SetDefault("kafka.autoOffsetReset", "latest")
	viper.SetDefault("kafka.sessionTimeout", "10s")
	viper.SetDefault("kafka.compressionType", "snappy")
	viper.SetDefault("kafka.eventsTopic", "listing-publish-events")
	viper.SetDefault("kafka.commandsTopic", "listing-publish-commands")
	viper.SetDefault("kafka.archiveTopic", "listing-publish-archive")
	viper.SetDefault("kafka.partitions", 3)
	viper.SetDefault("kafka.replicationFactor", 1)

	// Настройки очереди
	viper.SetDefault("queue.name", "listing-publish")
	viper.SetDefault("queue.concurrency", 5)
	viper.SetDefault("queue.maxRetry", 3)
	viper.SetDefault("queue.completedRetention", "1h")
	viper.SetDefault("queue.failedRetention", "24h")
	viper.SetDefault("queue.maxRetained", 1000)
	viper.SetDefault("queue.dedupWindow", "30s")
	viper.SetDefault("queue.janitorInterval", "5m")
	viper.SetDefault("queue.taskTimeout", "2m")
	viper.SetDefault("queue.shutdownTimeout", "30s")

	// Настройки eBay
	viper.SetDefault("ebay.environment", "sandbox")
	viper.SetDefault("ebay.scopes", []string{
		"https://api.ebay.com/oauth/api_scope",
		"https://api.ebay.com/oauth/api_scope/sell.inventory",
		"https://api.ebay.com/oauth/api_scope/sell.account",
	})
	viper.SetDefault("ebay.marketplaceId", "EBAY_US")
	viper.SetDefault("ebay.currency", "USD")
	viper.SetDefault("ebay.merchantLocationKey", "DEFAULT")
	viper.SetDefault("ebay.timeout", "30s")
	viper.SetDefault("ebay.tokenCacheTTL", "1h")

	// Шифрование учетных данных
	viper.SetDefault("credentials.salt", "listing-publisher")

	// Настройки метрик
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)

	// Настройки безопасности
	viper.SetDefault("security.jwtSecret", "your-secret-key")
	viper.SetDefault("security.jwtIssuer", "reseller-platform")
	viper.SetDefault("security.corsAllowOrigins", []string{"*"})
	viper.SetDefault("security.rateLimit", 20)
	viper.SetDefault("security.rateBurst", 40)
	viper.SetDefault("security.adminRoles", []string{"admin"})

	// Keycloak
	viper.SetDefault("keycloak.enabled", false)
	viper.SetDefault("keycloak.realm", "reseller")
	viper.SetDefault("keycloak.clientId", "listing-publisher")
}

// bindEnvVariables привязывает переменные окружения к конфигурации
func bindEnvVariables() {
	// Основные настройки
	viper.BindEnv("appName", "APP_NAME")
	viper.BindEnv("version", "APP_VERSION")
	viper.BindEnv("logLevel", "LOG_LEVEL")
	viper.BindEnv("env", "APP_ENV")

	// Настройки сервера
	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.readTimeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.writeTimeout", "SERVER_WRITE_TIMEOUT")
	viper.BindEnv("server.shutdownTimeout", "SERVER_SHUTDOWN_TIMEOUT")
	viper.BindEnv("server.bodyLimit", "SERVER_BODY_LIMIT")

	// Настройки Postgres
	viper.BindEnv("postgres.host", "POSTGRES_HOST")
	viper.BindEnv("postgres.port", "POSTGRES_PORT")
	viper.BindEnv("postgres.user", "POSTGRES_USER")
	viper.BindEnv("postgres.password", "POSTGRES_PASSWORD")
	viper.BindEnv("postgres.dbname", "POSTGRES_DBNAME")
	viper.BindEnv("postgres.sslmode", "POSTGRES_SSLMODE")
	viper.BindEnv("postgres.timeout", "POSTGRES_TIMEOUT")
	viper.BindEnv("postgres.poolSize", "POSTGRES_POOL_SIZE")

	// Настройки Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
	viper.BindEnv("redis.poolSize", "REDIS_POOL_SIZE")
	viper.BindEnv("redis.keyPrefix", "REDIS_KEY_PREFIX")

	// Настройки Kafka
	viper.BindEnv("kafka.enabled", "KAFKA_ENABLED")
	viper.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	viper.BindEnv("kafka.groupID", "KAFKA_GROUP_ID")
	viper.BindEnv("kafka.eventsTopic", "KAFKA_EVENTS_TOPIC")
	viper.BindEnv("kafka.commandsTopic", "KAFKA_COMMANDS_TOPIC")
	viper.BindEnv("kafka.archiveTopic", "KAFKA_ARCHIVE_TOPIC")

	// Настройки очереди
	viper.BindEnv("queue.name", "QUEUE_NAME")
	viper.BindEnv("queue.concurrency", "QUEUE_CONCURRENCY")
	viper.BindEnv("queue.maxRetry", "QUEUE_MAX_RETRY")
	viper.BindEnv("queue.completedRetention", "QUEUE_COMPLETED_RETENTION")
	viper.BindEnv("queue.failedRetention", "QUEUE_FAILED_RETENTION")
	viper.BindEnv("queue.dedupWindow", "QUEUE_DEDUP_WINDOW")

	// Настройки eBay
	viper.BindEnv("ebay.environment", "EBAY_ENVIRONMENT")
	viper.BindEnv("ebay.apiBaseUrl", "EBAY_API_BASE_URL")
	viper.BindEnv("ebay.tokenUrl", "EBAY_TOKEN_URL")
	viper.BindEnv("ebay.clientId", "EBAY_CLIENT_ID")
	viper.BindEnv("ebay.clientSecret", "EBAY_CLIENT_SECRET")
	viper.BindEnv("ebay.scopes", "EBAY_SCOPES")
	viper.BindEnv("ebay.marketplaceId", "EBAY_MARKETPLACE_ID")
	viper.BindEnv("ebay.paymentPolicyId", "EBAY_PAYMENT_POLICY_ID")
	viper.BindEnv("ebay.fulfillmentPolicyId", "EBAY_FULFILLMENT_POLICY_ID")
	viper.BindEnv("ebay.returnPolicyId", "EBAY_RETURN_POLICY_ID")

	// Шифрование учетных данных
	viper.BindEnv("credentials.encryptionKey", "CREDENTIALS_ENCRYPTION_KEY")
	viper.BindEnv("credentials.salt", "CREDENTIALS_SALT")

	// Настройки метрик
	viper.BindEnv("metrics.enabled", "METRICS_ENABLED")
	viper.BindEnv("metrics.port", "METRICS_PORT")

	// Настройки безопасности
	viper.BindEnv("security.jwtSecret", "JWT_SECRET")
	viper.BindEnv("security.corsAllowOrigins", "CORS_ALLOW_ORIGINS")
	viper.BindEnv("security.rateLimit", "RATE_LIMIT")

	// Keycloak
	viper.BindEnv("keycloak.enabled", "KEYCLOAK_ENABLED")
	viper.BindEnv("keycloak.serverUrl", "KEYCLOAK_SERVER_URL")
	viper.BindEnv("keycloak.realm", "KEYCLOAK_REALM")
	viper.BindEnv("keycloak.clientId", "KEYCLOAK_CLIENT_ID")
	viper.BindEnv("keycloak.clientSecret", "KEYCLOAK_CLIENT_SECRET")
}
