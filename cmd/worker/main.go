package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/athebyme/listing-publisher/config"
	"github.com/athebyme/listing-publisher/internal/adapters/logger"
	"github.com/athebyme/listing-publisher/internal/adapters/queue"
	"github.com/athebyme/listing-publisher/internal/app"
	"github.com/athebyme/listing-publisher/internal/domain/services"
	"github.com/athebyme/listing-publisher/internal/worker"
	"github.com/athebyme/listing-publisher/pkg/interfaces"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

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
	log.Info("Инициализация воркера",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName + "-worker"},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
	)

	application, err := app.New(ctx, cfg, log, prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal("Ошибка инициализации приложения", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer application.Close()

	processor, err := application.NewProcessor()
	if err != nil {
		log.Fatal("Ошибка инициализации обработчика публикаций", interfaces.LogField{Key: "error", Value: err.Error()})
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = startMetricsServer(cfg.Metrics.Port, application, log)
	}

	server := queue.NewServer(application.RedisOpt, queue.ServerConfig{
		Queue:           cfg.Queue.Name,
		Concurrency:     cfg.Queue.Concurrency,
		ShutdownTimeout: cfg.Queue.ShutdownTimeout,
		MetaTTL:         cfg.Queue.FailedRetention,
	}, application.Cache, log)
	server.Handle(services.PublishJobType, processor.Handle)

	if err := server.Start(); err != nil {
		log.Fatal("Ошибка запуска воркера очереди", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	log.Info("Воркер очереди запущен",
		interfaces.LogField{Key: "queue", Value: cfg.Queue.Name},
		interfaces.LogField{Key: "concurrency", Value: cfg.Queue.Concurrency},
	)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		application.NewJanitor().Run(ctx)
	}()

	if application.Messaging != nil {
		commands := worker.NewCommandHandler(application.Orchestrator, application.Admin, prometheus.DefaultRegisterer, log)
		subscribeToCommands(ctx, application.Messaging, cfg.Kafka.CommandsTopic, commands, log, &wg)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Info("Воркер запущен и готов к обработке задач")
	<-quit
	log.Info("Получен сигнал завершения, выполняется graceful shutdown...")

	cancel()
	server.Shutdown()
	wg.Wait()

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("Ошибка остановки HTTP сервера метрик", interfaces.LogField{Key: "error", Value: err.Error()})
		}
		shutdownCancel()
	}

	log.Info("Воркер корректно завершил работу")
}

func startMetricsServer(port int, application *app.App, log interfaces.LoggerPort) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := application.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(err.Error()))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("Запуск HTTP сервера для метрик", interfaces.LogField{Key: "addr", Value: srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Ошибка запуска HTTP сервера для метрик",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}()

	return srv
}

// Подписка на команды воркера
func subscribeToCommands(ctx context.Context, bus interfaces.MessagingPort, topic string,
	commands *worker.CommandHandler, logger interfaces.LoggerPort, wg *sync.WaitGroup) {

	wg.Add(1)

	go func() {
		defer wg.Done()

		unsubscribe, err := bus.Subscribe(ctx, topic, commands.Handle)
		if err != nil {
			logger.Error("Ошибка подписки на команды воркера",
				interfaces.LogField{Key: "topic", Value: topic},
				interfaces.LogField{Key: "error", Value: err.Error()})
			return
		}
		defer unsubscribe()

		logger.Info("Подписка на команды воркера установлена", interfaces.LogField{Key: "topic", Value: topic})

		<-ctx.Done()
		logger.Info("Отмена подписки на команды воркера")
	}()
}
