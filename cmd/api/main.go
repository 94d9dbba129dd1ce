package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/athebyme/listing-publisher/config"
	"github.com/athebyme/listing-publisher/internal/adapters/logger"
	"github.com/athebyme/listing-publisher/internal/api"
	"github.com/athebyme/listing-publisher/internal/api/middleware"
	"github.com/athebyme/listing-publisher/internal/app"
	"github.com/athebyme/listing-publisher/internal/security"
	"github.com/athebyme/listing-publisher/pkg/auth"
	"github.com/athebyme/listing-publisher/pkg/interfaces"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//	@title						Listing Publisher API
//	@version					1.0
//	@description				Публикация листингов на маркетплейсы и управление очередью задач
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log, err := logger.NewZapLogger(cfg.LogLevel, cfg.ENV == "production")
	if err != nil {
		fmt.Printf("Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Инициализация сервиса",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
	)

	application, err := app.New(ctx, cfg, log, prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal("Ошибка инициализации приложения", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer application.Close()

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := application.Ping(pingCtx); err != nil {
		pingCancel()
		log.Fatal("Ошибка подключения к зависимостям", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	pingCancel()
	log.Info("Соединения с PostgreSQL и Redis проверены")

	authenticator, err := newAuthenticator(ctx, cfg)
	if err != nil {
		log.Fatal("Ошибка инициализации аутентификации", interfaces.LogField{Key: "error", Value: err.Error()})
	}

	router := api.SetupRouter(api.RouterDeps{
		Publisher:          application.Orchestrator,
		Admin:              application.Admin,
		SyncLogs:           application.Storage,
		Authenticator:      authenticator,
		AdminRoles:         cfg.Security.AdminRoles,
		CORSAllowedOrigins: cfg.Security.CORSAllowOrigins,
		RateLimit:          cfg.Security.RateLimit,
		RateBurst:          cfg.Security.RateBurst,
		RequestTimeout:     cfg.Server.WriteTimeout,
		HTTPMetrics:        middleware.NewHTTPMetrics(prometheus.DefaultRegisterer),
		MetricsHandler:     promhttp.Handler(),
		Health:             application.Ping,
	}, log)
	log.Info("Маршрутизатор настроен")

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      http.MaxBytesHandler(router, int64(cfg.Server.BodyLimit)<<20),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Сервер запущен", interfaces.LogField{Key: "address", Value: server.Addr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-quit:
		log.Info("Получен сигнал завершения, выполняется graceful shutdown...")
	case err := <-serverErr:
		log.Error("Ошибка запуска сервера", interfaces.LogField{Key: "error", Value: err.Error()})
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Ошибка при graceful shutdown", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	log.Info("HTTP сервер остановлен")
}

// newAuthenticator выбирает проверку токенов: Keycloak или HMAC JWT
func newAuthenticator(ctx context.Context, cfg *config.Config) (interfaces.AuthPort, error) {
	if cfg.Keycloak.Enabled {
		return auth.NewKeycloakClient(ctx, cfg.Keycloak.GetKeycloakConfig())
	}
	return security.NewJWTManager(cfg.Security.JWTSecret, time.Hour, cfg.Security.JWTIssuer)
}
