package services

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/athebyme/listing-publisher/pkg/errors"
	"github.com/athebyme/listing-publisher/pkg/interfaces"
)

// JanitorSettings политика хранения завершенных задач
type JanitorSettings struct {
	Interval time.Duration
	// FailedRetention сколько хранить упавшие задачи
	FailedRetention time.Duration
	// MaxRetained верхняя граница числа задач в каждом завершенном состоянии
	MaxRetained int
}

// Janitor периодически очищает очередь от старых завершенных задач
type Janitor struct {
	queue    interfaces.JobQueuePort
	metrics  *MetricsService
	settings JanitorSettings
	logger   interfaces.LoggerPort
}

// NewJanitor создает новый экземпляр Janitor
func NewJanitor(queue interfaces.JobQueuePort, metrics *MetricsService, settings JanitorSettings, logger interfaces.LoggerPort) *Janitor {
	if settings.Interval <= 0 {
		settings.Interval = 5 * time.Minute
	}
	if settings.FailedRetention <= 0 {
		settings.FailedRetention = 24 * time.Hour
	}
	if settings.MaxRetained <= 0 {
		settings.MaxRetained = 1000
	}
	return &Janitor{
		queue:    queue,
		metrics:  metrics,
		settings: settings,
		logger:   logger.WithField("component", "queue-janitor"),
	}
}

// Run выполняет проход сразу и затем по таймеру до отмены ctx
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.settings.Interval)
	defer ticker.Stop()

	for {
		j.Sweep(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep один проход очистки; ошибки логируются, следующий проход повторит работу
func (j *Janitor) Sweep(ctx context.Context) {
	removed, err := j.queue.Clean(ctx, interfaces.JobStateFailed, j.settings.FailedRetention, 0)
	if err != nil {
		j.logger.Warn("Не удалось удалить старые упавшие задачи",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	total := len(removed)

	counts, err := j.queue.CountByState(ctx)
	if err != nil {
		j.logger.Warn("Не удалось прочитать глубину очереди",
			interfaces.LogField{Key: "error", Value: err.Error()})
		return
	}

	// очередь отдает завершенные задачи от старых к новым
	for _, state := range []interfaces.JobState{interfaces.JobStateCompleted, interfaces.JobStateFailed} {
		excess := counts[state] - j.settings.MaxRetained
		if excess <= 0 {
			continue
		}
		jobs, err := j.queue.ListJobs(ctx, state, 0, excess)
		if err != nil {
			j.logger.Warn("Не удалось прочитать задачи для сокращения",
				interfaces.LogField{Key: "state", Value: state},
				interfaces.LogField{Key: "error", Value: err.Error()})
			continue
		}
		for _, job := range jobs {
			if err := j.queue.RemoveJob(ctx, job.ID); err != nil && !errors.Is(err, pkgerrors.ErrJobNotFound) {
				j.logger.Warn("Не удалось удалить задачу",
					interfaces.LogField{Key: "job_id", Value: job.ID},
					interfaces.LogField{Key: "error", Value: err.Error()})
				continue
			}
			total++
		}
	}

	if total > 0 {
		j.logger.Info("Очередь очищена", interfaces.LogField{Key: "removed", Value: total})
	}

	if j.metrics != nil {
		if err := j.metrics.RefreshQueueMetrics(ctx); err != nil {
			j.logger.Warn("Не удалось обновить метрики очереди",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
		if err := j.metrics.RefreshPlatformMetrics(ctx); err != nil {
			j.logger.Warn("Не удалось обновить метрики по платформам",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}
}
