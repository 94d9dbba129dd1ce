package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/athebyme/listing-publisher/internal/adapters/logger"
	pkgerrors "github.com/athebyme/listing-publisher/pkg/errors"
	"github.com/athebyme/listing-publisher/pkg/interfaces"
	"github.com/hibiken/asynq"
)

// ServerConfig параметры воркера очереди
type ServerConfig struct {
	Queue           string
	Concurrency     int
	ShutdownTimeout time.Duration
	MetaTTL         time.Duration
}

// Server воркер asynq, вызывающий обработчики задач по типу
type Server struct {
	srv    *asynq.Server
	mux    *asynq.ServeMux
	cache  interfaces.CachePort
	cfg    ServerConfig
	logger interfaces.LoggerPort
}

// NewServer создает воркер; обработка начинается после Start
func NewServer(redis asynq.RedisConnOpt, cfg ServerConfig, cache interfaces.CachePort, log interfaces.LoggerPort) *Server {
	if cfg.Queue == "" {
		cfg.Queue = "default"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.MetaTTL <= 0 {
		cfg.MetaTTL = 24 * time.Hour
	}

	s := &Server{
		mux:    asynq.NewServeMux(),
		cache:  cache,
		cfg:    cfg,
		logger: log.WithField("component", "queue-worker"),
	}

	s.srv = asynq.NewServer(redis, asynq.Config{
		Concurrency:     cfg.Concurrency,
		Queues:          map[string]int{cfg.Queue: 1},
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          logger.NewAsynqLogger(log),
		ErrorHandler:    asynq.ErrorHandlerFunc(s.handleError),
	})

	return s
}

// Handle регистрирует обработчик типа задачи
func (s *Server) Handle(jobType string, handler interfaces.JobHandler) {
	s.mux.HandleFunc(jobType, func(ctx context.Context, task *asynq.Task) error {
		job := &interfaces.Job{Type: task.Type(), Payload: task.Payload()}
		job.ID, _ = asynq.GetTaskID(ctx)
		job.Retried, _ = asynq.GetRetryCount(ctx)
		job.MaxRetry, _ = asynq.GetMaxRetry(ctx)

		s.recordAttempt(ctx, job.ID)

		result, err := handler(ctx, job)
		if result != nil {
			if _, werr := task.ResultWriter().Write(result); werr != nil {
				s.logger.Warn("Не удалось сохранить результат задачи",
					interfaces.LogField{Key: "job_id", Value: job.ID},
					interfaces.LogField{Key: "error", Value: werr.Error()})
			}
		}

		if err != nil && pkgerrors.IsPermanent(err) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	})
}

// recordAttempt считает запуски обработчика; asynq не увеличивает Retried при архивации
func (s *Server) recordAttempt(ctx context.Context, jobID string) {
	if jobID == "" {
		return
	}
	key := attemptsKey(jobID)
	if _, err := s.cache.Increment(ctx, key, 1); err != nil {
		s.logger.Warn("Не удалось учесть попытку задачи",
			interfaces.LogField{Key: "job_id", Value: jobID},
			interfaces.LogField{Key: "error", Value: err.Error()})
		return
	}
	_ = s.cache.Expire(ctx, key, s.cfg.MetaTTL)
}

func (s *Server) handleError(ctx context.Context, task *asynq.Task, err error) {
	id, _ := asynq.GetTaskID(ctx)
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	s.logger.Warn("Задача завершилась с ошибкой",
		interfaces.LogField{Key: "job_id", Value: id},
		interfaces.LogField{Key: "type", Value: task.Type()},
		interfaces.LogField{Key: "retried", Value: retried},
		interfaces.LogField{Key: "max_retry", Value: maxRetry},
		interfaces.LogField{Key: "permanent", Value: pkgerrors.IsPermanent(err)},
		interfaces.LogField{Key: "error", Value: err.Error()},
	)
}

// Start запускает обработку в фоне
func (s *Server) Start() error {
	if err := s.srv.Start(s.mux); err != nil {
		return fmt.Errorf("ошибка запуска воркера очереди: %w", err)
	}
	return nil
}

// Shutdown дожидается активных задач не дольше ShutdownTimeout
func (s *Server) Shutdown() {
	s.srv.Shutdown()
}
