package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/listing-publisher/internal/adapters/messaging"
	postgres "github.com/athebyme/listing-publisher/internal/adapters/storage"
	"github.com/athebyme/listing-publisher/internal/domain/models"
	"github.com/athebyme/listing-publisher/internal/utils"
	pkgerrors "github.com/athebyme/listing-publisher/pkg/errors"
	"github.com/athebyme/listing-publisher/pkg/interfaces"
	"github.com/athebyme/listing-publisher/pkg/tx"
	"github.com/google/uuid"
)

const (
	defaultRetryFailedLimit = 10
	defaultCleanOlderThan   = time.Hour

	// statsSampleSize сколько задач каждого состояния просматривается для разбивки по платформам
	statsSampleSize = 1000
	scanPageSize    = 100
)

// MetricsService метрики очереди публикации и административные операции над ней
type MetricsService struct {
	queue        interfaces.JobQueuePort
	archive      postgres.JobArchiveRepository
	txManager    tx.TxManager
	cache        interfaces.CachePort
	messaging    interfaces.MessagingPort
	archiveTopic string
	metrics      *PublishMetrics
	logger       interfaces.LoggerPort
	now          func() time.Time
}

// NewMetricsService создает новый экземпляр MetricsService.
// messaging может быть nil: тогда архивация не отправляет событие.
func NewMetricsService(
	queue interfaces.JobQueuePort,
	archive postgres.JobArchiveRepository,
	txManager tx.TxManager,
	cache interfaces.CachePort,
	messaging interfaces.MessagingPort,
	archiveTopic string,
	metrics *PublishMetrics,
	logger interfaces.LoggerPort,
) *MetricsService {
	return &MetricsService{
		queue:        queue,
		archive:      archive,
		txManager:    txManager,
		cache:        cache,
		messaging:    messaging,
		archiveTopic: archiveTopic,
		metrics:      metrics,
		logger:       logger.WithField("component", "publish-metrics"),
		now:          time.Now,
	}
}

var _ QueueMetricsRefresher = (*MetricsService)(nil)

// RefreshQueueMetrics обновляет gauge глубины очереди по состояниям
func (s *MetricsService) RefreshQueueMetrics(ctx context.Context) error {
	counts, err := s.queue.CountByState(ctx)
	if err != nil {
		return err
	}
	s.metrics.setQueueDepth(counts)
	return nil
}

// RefreshPlatformMetrics обновляет разбивку по платформам; дороже RefreshQueueMetrics
func (s *MetricsService) RefreshPlatformMetrics(ctx context.Context) error {
	byPlatform, err := s.platformBreakdown(ctx)
	if err != nil {
		return err
	}
	s.metrics.setPlatformDepth(byPlatform)
	return nil
}

// GetQueueStats глубина очереди по состояниям и платформам
func (s *MetricsService) GetQueueStats(ctx context.Context) (*models.QueueStats, error) {
	counts, err := s.queue.CountByState(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.setQueueDepth(counts)

	byPlatform, err := s.platformBreakdown(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.setPlatformDepth(byPlatform)

	total := 0
	for _, n := range counts {
		total += n
	}
	return &models.QueueStats{Total: total, ByState: counts, ByPlatform: byPlatform}, nil
}

// GetPlatformStats итоги публикаций одной платформы: по задачам в очереди и накопительные
func (s *MetricsService) GetPlatformStats(ctx context.Context, platform models.Platform) (*models.PlatformStats, error) {
	byPlatform, err := s.platformBreakdown(ctx)
	if err != nil {
		return nil, err
	}

	stats := &models.PlatformStats{Platform: platform}
	for state, n := range byPlatform[platform] {
		stats.Total += n
		switch state {
		case interfaces.JobStateCompleted:
			stats.Completed += n
		case interfaces.JobStateFailed:
			stats.Failed += n
		default:
			stats.Pending += n
		}
	}
	if finished := stats.Completed + stats.Failed; finished > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(finished)
	}

	succeeded, failed, err := readPlatformCounters(ctx, s.cache, platform)
	if err != nil {
		s.logger.WarnWithContext(ctx, "Накопительные счетчики недоступны",
			interfaces.LogField{Key: "error", Value: err.Error()})
	} else {
		stats.SucceededTotal, stats.FailedTotal = succeeded, failed
		if succeeded+failed > 0 {
			stats.LifetimeRate = float64(succeeded) / float64(succeeded+failed)
		}
	}
	return stats, nil
}

func (s *MetricsService) platformBreakdown(ctx context.Context) (map[models.Platform]map[interfaces.JobState]int, error) {
	byPlatform := make(map[models.Platform]map[interfaces.JobState]int)
	for _, state := range interfaces.JobStates {
		jobs, err := s.queue.ListJobs(ctx, state, 0, statsSampleSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s jobs: %w", state, err)
		}
		for _, job := range jobs {
			payload, _ := decodeJob(job)
			platform := payload.Platform
			if platform == "" {
				platform = "unknown"
			}
			if byPlatform[platform] == nil {
				byPlatform[platform] = make(map[interfaces.JobState]int)
			}
			byPlatform[platform][state]++
		}
	}
	return byPlatform, nil
}

// RetryJob ручной повтор одной задачи
func (s *MetricsService) RetryJob(ctx context.Context, jobID string) (*models.RetryJobResult, error) {
	if err := s.queue.RetryJob(ctx, jobID); err != nil {
		return nil, err
	}

	state := interfaces.JobStateWaiting
	if info, err := s.queue.GetJob(ctx, jobID); err == nil {
		state = info.State
	}

	s.logger.InfoWithContext(ctx, "Задача отправлена на повтор",
		interfaces.LogField{Key: "job_id", Value: jobID})
	s.refresh(ctx)
	return &models.RetryJobResult{JobID: jobID, State: state}, nil
}

// RetryFailedJobs повторяет до Limit упавших задач, при необходимости одной платформы
func (s *MetricsService) RetryFailedJobs(ctx context.Context, filter models.RetryFailedFilter) (*models.RetryFailedResult, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultRetryFailedLimit
	}

	var candidates []string
	for offset := 0; offset < statsSampleSize && len(candidates) < limit; offset += scanPageSize {
		jobs, err := s.queue.ListJobs(ctx, interfaces.JobStateFailed, offset, scanPageSize)
		if err != nil {
			return nil, err
		}
		for _, job := range jobs {
			if filter.Platform != "" {
				if payload, _ := decodeJob(job); payload.Platform != filter.Platform {
					continue
				}
			}
			candidates = append(candidates, job.ID)
			if len(candidates) == limit {
				break
			}
		}
		if len(jobs) < scanPageSize {
			break
		}
	}

	retried := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if err := s.queue.RetryJob(ctx, id); err != nil {
			// задачу успели удалить или повторить параллельно
			if errors.Is(err, pkgerrors.ErrJobNotFound) || errors.Is(err, pkgerrors.ErrJobNotRetryable) {
				continue
			}
			return nil, err
		}
		retried = append(retried, id)
	}

	s.logger.InfoWithContext(ctx, "Упавшие задачи отправлены на повтор",
		interfaces.LogField{Key: "platform", Value: filter.Platform},
		interfaces.LogField{Key: "retried", Value: len(retried)})
	s.refresh(ctx)
	return &models.RetryFailedResult{Retried: len(retried), JobIDs: retried}, nil
}

// CleanJobs удаляет завершенные задачи старше OlderThan; активные и ожидающие не трогает
func (s *MetricsService) CleanJobs(ctx context.Context, filter models.CleanJobsFilter) (*models.CleanJobsResult, error) {
	state := filter.State
	if state == "" {
		state = interfaces.JobStateCompleted
	}
	if !state.IsTerminal() {
		return nil, utils.ErrInvalidCleanState
	}
	olderThan := defaultCleanOlderThan
	if filter.OlderThan != nil {
		if *filter.OlderThan < 0 {
			return nil, fmt.Errorf("%w: olderThan must not be negative", utils.ErrInvalidArgument)
		}
		olderThan = *filter.OlderThan
	}

	removed, err := s.queue.Clean(ctx, state, olderThan, 0)
	if err != nil {
		return nil, err
	}

	s.logger.InfoWithContext(ctx, "Очистка задач выполнена",
		interfaces.LogField{Key: "state", Value: state},
		interfaces.LogField{Key: "older_than", Value: olderThan.String()},
		interfaces.LogField{Key: "removed", Value: len(removed)})
	s.refresh(ctx)
	return &models.CleanJobsResult{Removed: len(removed)}, nil
}

// ArchiveOldJobs выгружает завершенные задачи, поставленные раньше cutoff, в архивную
// таблицу одной транзакцией, отправляет событие и удаляет их из очереди
func (s *MetricsService) ArchiveOldJobs(ctx context.Context, olderThanDays int) (*models.ArchiveResult, error) {
	if olderThanDays <= 0 {
		return nil, fmt.Errorf("%w: olderThanDays must be positive", utils.ErrInvalidArgument)
	}
	cutoff := s.now().UTC().Add(-time.Duration(olderThanDays) * 24 * time.Hour)

	result := &models.ArchiveResult{
		BatchID:    uuid.New().String(),
		CutoffDate: cutoff,
		Jobs:       []models.ArchivedJob{},
	}

	for _, state := range []interfaces.JobState{interfaces.JobStateCompleted, interfaces.JobStateFailed} {
		jobs, err := s.queue.ListJobs(ctx, state, 0, statsSampleSize)
		if err != nil {
			return nil, err
		}
		for _, job := range jobs {
			archived := toArchivedJob(job)
			if archived.QueuedAt.Before(cutoff) {
				result.Jobs = append(result.Jobs, archived)
			}
		}
	}
	if len(result.Jobs) == 0 {
		return result, nil
	}

	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		return s.archive.ArchiveJobs(ctx, result.BatchID, result.Jobs)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to archive jobs: %w", err)
	}

	s.publishArchiveEvent(ctx, result)

	for _, job := range result.Jobs {
		if err := s.queue.RemoveJob(ctx, job.JobID); err != nil && !errors.Is(err, pkgerrors.ErrJobNotFound) {
			s.logger.WarnWithContext(ctx, "Не удалось удалить архивированную задачу",
				interfaces.LogField{Key: "job_id", Value: job.JobID},
				interfaces.LogField{Key: "error", Value: err.Error()})
			continue
		}
		result.Archived++
	}

	s.logger.InfoWithContext(ctx, "Старые задачи архивированы",
		interfaces.LogField{Key: "batch_id", Value: result.BatchID},
		interfaces.LogField{Key: "archived", Value: result.Archived})
	s.refresh(ctx)
	return result, nil
}

func (s *MetricsService) publishArchiveEvent(ctx context.Context, result *models.ArchiveResult) {
	if s.messaging == nil || s.archiveTopic == "" {
		return
	}

	data, err := json.Marshal(models.JobsArchivedEvent{
		EventID:    uuid.New().String(),
		Type:       messaging.PublishJobsArchivedEvent,
		BatchID:    result.BatchID,
		CutoffDate: result.CutoffDate,
		Jobs:       result.Jobs,
		OccurredAt: s.now().UTC(),
	})
	if err != nil {
		return
	}
	// архив уже в БД, поэтому сбой брокера не отменяет удаление
	if err := s.messaging.PublishWithKey(ctx, s.archiveTopic, result.BatchID, data); err != nil {
		s.logger.WarnWithContext(ctx, "Не удалось отправить событие архивации",
			interfaces.LogField{Key: "batch_id", Value: result.BatchID},
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
}

func (s *MetricsService) refresh(ctx context.Context) {
	if err := s.RefreshQueueMetrics(ctx); err != nil {
		s.logger.WarnWithContext(ctx, "Не удалось обновить метрики очереди",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
}
