package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	postgres "github.com/athebyme/listing-publisher/internal/adapters/storage"
	"github.com/athebyme/listing-publisher/internal/domain/marketplace"
	"github.com/athebyme/listing-publisher/internal/domain/models"
	"github.com/athebyme/listing-publisher/internal/utils"
	pkgerrors "github.com/athebyme/listing-publisher/pkg/errors"
	"github.com/athebyme/listing-publisher/pkg/interfaces"
)

const (
	defaultRecentJobs = 20
	maxRecentJobs     = 100

	unknownListingTitle = "Unknown listing"
)

// QueueSettings политика постановки задач публикации
type QueueSettings struct {
	MaxRetry int
	// CompletedRetention сколько очередь хранит успешную задачу
	CompletedRetention time.Duration
	TaskTimeout        time.Duration
	// DedupWindow окно, в котором повторный запрос для пары листинг/платформа не создает новую задачу
	DedupWindow time.Duration
}

// QueueMetricsRefresher обновляет метрики глубины очереди после ее изменения
type QueueMetricsRefresher interface {
	RefreshQueueMetrics(ctx context.Context) error
}

// PublishOrchestrator синхронная точка входа публикации: проверяет листинг и ставит задачи
type PublishOrchestrator struct {
	listings postgres.ListingRepository
	registry *marketplace.Registry
	queue    interfaces.JobQueuePort
	metrics  QueueMetricsRefresher
	settings QueueSettings
	logger   interfaces.LoggerPort
	now      func() time.Time
}

// NewPublishOrchestrator создает новый экземпляр PublishOrchestrator
func NewPublishOrchestrator(
	listings postgres.ListingRepository,
	registry *marketplace.Registry,
	queue interfaces.JobQueuePort,
	metrics QueueMetricsRefresher,
	settings QueueSettings,
	logger interfaces.LoggerPort,
) *PublishOrchestrator {
	return &PublishOrchestrator{
		listings: listings,
		registry: registry,
		queue:    queue,
		metrics:  metrics,
		settings: settings,
		logger:   logger.WithField("component", "publish-orchestrator"),
		now:      time.Now,
	}
}

// PublishListing ставит по задаче на каждую целевую платформу. Листинг без
// адаптера, не прошедший проверку или без аккаунта в очередь не попадает:
// такие платформы возвращаются в Failures.
// Приоритет отказов: skipped, затем missing_credential (с ошибками проверки), затем validation_failed.
// Повторный запрос в окне дедупликации возвращает еще не завершенную задачу;
// если она уже completed или failed, ставится новая.
func (o *PublishOrchestrator) PublishListing(ctx context.Context, listingID string, platforms []models.Platform) (*models.PublishListingResult, error) {
	listing, err := o.listings.FindListingWithRelations(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load listing: %w", err)
	}
	if listing == nil {
		return nil, utils.ErrListingNotFound
	}

	if len(platforms) == 0 {
		platforms = []models.Platform{listing.Platform}
	}

	result := &models.PublishListingResult{
		ListingID: listing.ID,
		Queued:    []models.QueuedJob{},
		Failures:  []models.PublishResult{},
	}
	requestedAt := o.now().UTC()

	for _, platform := range uniquePlatforms(platforms) {
		failure := o.preflight(listing, platform)
		if failure != nil {
			o.logger.InfoWithContext(ctx, "Публикация отклонена до постановки в очередь",
				interfaces.LogField{Key: "listing_id", Value: listing.ID},
				interfaces.LogField{Key: "platform", Value: platform},
				interfaces.LogField{Key: "status", Value: failure.Status},
			)
			result.Failures = append(result.Failures, *failure)
			continue
		}

		jobID, err := o.enqueue(ctx, listing.ID, platform, requestedAt)
		if err != nil {
			return nil, err
		}
		result.Queued = append(result.Queued, models.QueuedJob{Platform: platform, JobID: jobID})
	}

	o.refreshMetrics(ctx)
	return result, nil
}

// preflight возвращает nil, если задачу можно ставить
func (o *PublishOrchestrator) preflight(listing *models.Listing, platform models.Platform) *models.PublishResult {
	adapter, ok := o.registry.Resolve(platform)
	if !ok {
		return &models.PublishResult{
			Platform: platform,
			Success:  false,
			Status:   models.PublishStatusSkipped,
			Message:  fmt.Sprintf("No adapter registered for %s.", platform),
		}
	}

	validation := adapter.Validate(listing)

	// без аккаунта публикация невозможна, даже если остальные требования выполнены
	if !listing.HasCredential() {
		return &models.PublishResult{
			Platform: platform,
			Success:  false,
			Status:   models.PublishStatusMissingCredential,
			Message:  "Listing must have an assigned platform credential before publishing.",
			Errors:   validation.Errors,
		}
	}

	if !validation.Success {
		message := validation.Message
		if message == "" {
			message = "Listing failed validation."
		}
		return &models.PublishResult{
			Platform: platform,
			Success:  false,
			Status:   models.PublishStatusValidationFailed,
			Message:  message,
			Errors:   validation.Errors,
		}
	}
	return nil
}

func (o *PublishOrchestrator) enqueue(ctx context.Context, listingID string, platform models.Platform, requestedAt time.Time) (string, error) {
	payload, err := json.Marshal(models.PublishJobPayload{
		ListingID:   listingID,
		Platform:    platform,
		RequestedAt: requestedAt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode job payload: %w", err)
	}

	opts := interfaces.EnqueueOptions{
		JobID:     publishJobID(listingID, platform, requestedAt, o.settings.DedupWindow),
		MaxRetry:  o.settings.MaxRetry,
		Retention: o.settings.CompletedRetention,
		Timeout:   o.settings.TaskTimeout,
	}
	jobID, err := o.queue.Enqueue(ctx, PublishJobType, payload, opts)
	if errors.Is(err, pkgerrors.ErrJobExists) {
		existing, getErr := o.queue.GetJob(ctx, jobID)
		switch {
		case getErr == nil && !existing.State.IsTerminal():
			o.logger.InfoWithContext(ctx, "Повторный запрос публикации, используется существующая задача",
				interfaces.LogField{Key: "job_id", Value: jobID},
				interfaces.LogField{Key: "state", Value: existing.State},
			)
			return jobID, nil
		case getErr != nil && !errors.Is(getErr, pkgerrors.ErrJobNotFound):
			return "", fmt.Errorf("failed to inspect existing publish job: %w", getErr)
		}

		// задача окна уже завершилась, новый запрос получает свою задачу
		opts.JobID = fmt.Sprintf("%s:%d", opts.JobID, requestedAt.UnixNano())
		jobID, err = o.queue.Enqueue(ctx, PublishJobType, payload, opts)
		if errors.Is(err, pkgerrors.ErrJobExists) {
			return jobID, nil
		}
	}
	if err != nil {
		return "", fmt.Errorf("failed to enqueue publish job: %w", err)
	}

	o.logger.InfoWithContext(ctx, "Задача публикации поставлена в очередь",
		interfaces.LogField{Key: "job_id", Value: jobID},
		interfaces.LogField{Key: "listing_id", Value: listingID},
		interfaces.LogField{Key: "platform", Value: platform},
	)
	return jobID, nil
}

// GetJobStatus подробное состояние задачи
func (o *PublishOrchestrator) GetJobStatus(ctx context.Context, jobID string) (*models.JobStatus, error) {
	info, err := o.queue.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return toJobStatus(info), nil
}

// ListRecentJobs последние задачи во всех состояниях с текущими названием и
// статусом листинга; удаленные листинги заменяются заглушкой
func (o *PublishOrchestrator) ListRecentJobs(ctx context.Context, limit int) ([]models.JobSummary, error) {
	if limit <= 0 {
		limit = defaultRecentJobs
	}
	if limit > maxRecentJobs {
		limit = maxRecentJobs
	}

	var jobs []*interfaces.JobInfo
	for _, state := range interfaces.JobStates {
		batch, err := o.queue.ListJobs(ctx, state, 0, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s jobs: %w", state, err)
		}
		jobs = append(jobs, batch...)
	}
	if len(jobs) == 0 {
		return []models.JobSummary{}, nil
	}

	sortByQueuedAtDesc(jobs)
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}

	ids := make([]string, 0, len(jobs))
	seen := make(map[string]struct{}, len(jobs))
	for _, job := range jobs {
		payload, _ := decodeJob(job)
		if _, ok := seen[payload.ListingID]; ok || payload.ListingID == "" {
			continue
		}
		seen[payload.ListingID] = struct{}{}
		ids = append(ids, payload.ListingID)
	}

	listings, err := o.listings.FindListingSummaries(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load listing summaries: %w", err)
	}

	summaries := make([]models.JobSummary, 0, len(jobs))
	for _, job := range jobs {
		payload, result := decodeJob(job)
		summary := models.JobSummary{
			JobID:         job.ID,
			ListingID:     payload.ListingID,
			ListingTitle:  unknownListingTitle,
			ListingStatus: models.ListingStatusDraft,
			Platform:      payload.Platform,
			State:         job.State,
			QueuedAt:      payload.RequestedAt,
			FinishedOn:    finishedOn(job),
			FailedReason:  job.LastError,
			AttemptsMade:  job.AttemptsMade(),
			ReturnValue:   result,
		}
		if listing, ok := listings[payload.ListingID]; ok && listing != nil {
			summary.ListingTitle = listing.Title
			summary.ListingStatus = listing.Status
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (o *PublishOrchestrator) refreshMetrics(ctx context.Context) {
	if o.metrics == nil {
		return
	}
	if err := o.metrics.RefreshQueueMetrics(ctx); err != nil {
		o.logger.WarnWithContext(ctx, "Не удалось обновить метрики очереди",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
}

func uniquePlatforms(platforms []models.Platform) []models.Platform {
	seen := make(map[models.Platform]struct{}, len(platforms))
	out := make([]models.Platform, 0, len(platforms))
	for _, p := range platforms {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
