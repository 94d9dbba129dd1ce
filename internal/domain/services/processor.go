package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/athebyme/listing-publisher/internal/adapters/messaging"
	postgres "github.com/athebyme/listing-publisher/internal/adapters/storage"
	"github.com/athebyme/listing-publisher/internal/domain/marketplace"
	"github.com/athebyme/listing-publisher/internal/domain/models"
	"github.com/athebyme/listing-publisher/internal/utils"
	pkgerrors "github.com/athebyme/listing-publisher/pkg/errors"
	"github.com/athebyme/listing-publisher/pkg/interfaces"
	"github.com/google/uuid"
)

// ProgressReporter сохраняет прогресс выполнения задачи
type ProgressReporter interface {
	SetProgress(ctx context.Context, jobID string, progress int) error
}

// ProcessorDeps зависимости обработчика задач публикации
type ProcessorDeps struct {
	Listings    postgres.ListingRepository
	Registry    *marketplace.Registry
	Credentials CredentialSource
	Progress    ProgressReporter
	Cache       interfaces.CachePort
	Messaging   interfaces.MessagingPort
	Metrics     *PublishMetrics
	Refresher   QueueMetricsRefresher
	// EventsTopic топик событий об итогах публикации; пустой отключает события
	EventsTopic string
	// CounterTTL срок жизни накопительных счетчиков; 0 хранит их бессрочно
	CounterTTL time.Duration
}

// PublishProcessor обработчик задач публикации на стороне воркера
type PublishProcessor struct {
	deps   ProcessorDeps
	logger interfaces.LoggerPort
	now    func() time.Time
}

// NewPublishProcessor создает новый экземпляр PublishProcessor
func NewPublishProcessor(deps ProcessorDeps, logger interfaces.LoggerPort) *PublishProcessor {
	return &PublishProcessor{
		deps:   deps,
		logger: logger.WithField("component", "publish-processor"),
		now:    time.Now,
	}
}

// jobFailure ошибка задачи с понятной пользователю причиной и классом для errors.Is
type jobFailure struct {
	reason string
	kind   error
}

func (e *jobFailure) Error() string { return e.reason }

func (e *jobFailure) Unwrap() error { return e.kind }

func failure(kind error, format string, args ...interface{}) error {
	return &jobFailure{reason: fmt.Sprintf(format, args...), kind: kind}
}

// attempt состояние одной попытки обработки
type attempt struct {
	job      *interfaces.Job
	payload  models.PublishJobPayload
	adapter  marketplace.Adapter
	duration time.Duration
}

// Handle выполняет одну попытку публикации. Листинг, адаптер, проверка и аккаунт
// перепроверяются на каждой попытке; после разрешения адаптера UpdateStatus
// вызывается ровно один раз при любом исходе.
func (p *PublishProcessor) Handle(ctx context.Context, job *interfaces.Job) (result []byte, err error) {
	a := &attempt{job: job}
	if err := json.Unmarshal(job.Payload, &a.payload); err != nil || a.payload.ListingID == "" {
		return nil, pkgerrors.Permanent(failure(utils.ErrInvalidJobPayload, "Invalid publish job payload"))
	}

	ctx = interfaces.ContextWithLogFields(ctx,
		interfaces.LogField{Key: "job_id", Value: job.ID},
		interfaces.LogField{Key: "listing_id", Value: a.payload.ListingID},
		interfaces.LogField{Key: "platform", Value: a.payload.Platform},
	)

	defer func() {
		if r := recover(); r != nil {
			p.logger.ErrorWithContext(ctx, "Паника при обработке задачи публикации",
				interfaces.LogField{Key: "panic", Value: fmt.Sprint(r)})
			result, err = nil, fmt.Errorf("publish job panicked: %v", r)
		}
	}()

	p.setProgress(ctx, job.ID, 5)

	publishResult, cause := p.safeRun(ctx, a)
	return p.finish(ctx, a, publishResult, cause)
}

// safeRun превращает панику при проверке или разрешении аккаунта в неуспешную попытку,
// чтобы результат попал в листинг через finish
func (p *PublishProcessor) safeRun(ctx context.Context, a *attempt) (result *models.PublishResult, cause error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.ErrorWithContext(ctx, "Паника при обработке задачи публикации",
				interfaces.LogField{Key: "panic", Value: fmt.Sprint(r)})
			cause = fmt.Errorf("publish job panicked: %v", r)
			result = models.FailedResult(a.payload.Platform, cause.Error())
		}
	}()
	return p.run(ctx, a)
}

// run доводит попытку до результата публикации. cause != nil означает, что
// результат построен процессором, а не получен от маркетплейса.
func (p *PublishProcessor) run(ctx context.Context, a *attempt) (*models.PublishResult, error) {
	listingID, platform := a.payload.ListingID, a.payload.Platform

	listing, err := p.deps.Listings.FindListingWithRelations(ctx, listingID)
	if err != nil {
		return models.FailedResult(platform, err.Error()), fmt.Errorf("failed to load listing: %w", err)
	}
	if listing == nil {
		cause := pkgerrors.Permanent(failure(utils.ErrListingNotFound, "Listing %s not found", listingID))
		return models.FailedResult(platform, cause.Error()), cause
	}

	adapter, ok := p.deps.Registry.Resolve(platform)
	if !ok {
		cause := pkgerrors.Permanent(failure(utils.ErrAdapterNotRegistered, "No adapter registered for %s", platform))
		return models.FailedResult(platform, cause.Error()), cause
	}
	a.adapter = adapter

	// листинг мог измениться между запросом и обработкой
	validation := adapter.Validate(listing)
	if !validation.Success {
		message := validation.Message
		if message == "" {
			message = fmt.Sprintf("Listing %s failed validation for %s", listingID, platform)
		}
		reason := message
		if len(validation.Errors) > 0 {
			reason = message + ": " + strings.Join(validation.Errors, ", ")
		}
		return &models.PublishResult{
			Platform: platform,
			Success:  false,
			Status:   models.PublishStatusValidationFailed,
			Message:  message,
			Errors:   validation.Errors,
		}, pkgerrors.Permanent(failure(utils.ErrValidationFailed, "%s", reason))
	}

	if !listing.HasCredential() {
		cause := pkgerrors.Permanent(failure(utils.ErrMissingCredential, "Listing %s missing credential for %s", listingID, platform))
		return &models.PublishResult{
			Platform: platform,
			Success:  false,
			Status:   models.PublishStatusMissingCredential,
			Message:  cause.Error(),
		}, cause
	}

	credential, err := p.deps.Credentials.GetDecryptedCredential(ctx, listing.PlatformCredentialID)
	if err != nil {
		if errors.Is(err, utils.ErrCredentialNotFound) || errors.Is(err, utils.ErrCredentialSecretUnavailable) {
			err = pkgerrors.Permanent(err)
		}
		return models.FailedResult(platform, err.Error()), err
	}
	if !credential.IsActive {
		cause := pkgerrors.Permanent(failure(utils.ErrCredentialInactive, "Platform credential %s is inactive", credential.AccountName))
		return models.FailedResult(platform, cause.Error()), cause
	}

	p.setProgress(ctx, a.job.ID, 25)

	started := p.now()
	result, err := p.publish(ctx, adapter, listing, credential, a.job.ID)
	a.duration = p.now().Sub(started)
	if err != nil {
		return models.FailedResult(platform, err.Error()), err
	}
	if result == nil {
		cause := failure(utils.ErrExternalAPI, "%s adapter returned no result", platform)
		return models.FailedResult(platform, cause.Error()), cause
	}
	result.Platform = platform

	p.setProgress(ctx, a.job.ID, 75)
	return result, nil
}

// publish перехватывает панику адаптера, чтобы она стала обычным отказом попытки
func (p *PublishProcessor) publish(ctx context.Context, adapter marketplace.Adapter, listing *models.Listing, credential *models.DecryptedCredential, jobID string) (result *models.PublishResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("%s adapter panicked: %v", adapter.Platform(), r)
		}
	}()
	return adapter.Publish(ctx, listing, credential, marketplace.PublishContext{JobID: jobID})
}

// finish сохраняет результат, обновляет счетчики и переводит неуспех в ошибку задачи
func (p *PublishProcessor) finish(ctx context.Context, a *attempt, result *models.PublishResult, cause error) ([]byte, error) {
	if a.adapter != nil {
		if err := a.adapter.UpdateStatus(ctx, a.payload.ListingID, result); err != nil {
			p.logger.ErrorWithContext(ctx, "Не удалось сохранить результат публикации в листинг",
				interfaces.LogField{Key: "error", Value: err.Error()})
			if cause == nil || pkgerrors.IsPermanent(cause) {
				// без сохраненного результата попытку нужно повторить
				cause = fmt.Errorf("failed to persist publish result: %w", err)
			}
		}
	}
	p.setProgress(ctx, a.job.ID, 100)

	if cause == nil && !result.Success {
		if result.Status == models.PublishStatusDraft {
			// повтор вернет тот же черновик
			cause = pkgerrors.Permanent(failure(utils.ErrExternalAPI, "%s", messageOr(result, "Listing requires manual posting")))
		} else {
			cause = failure(utils.ErrExternalAPI, "%s", messageOr(result, "Listing publish reported failure"))
		}
	}

	p.record(ctx, a, result)

	encoded, err := json.Marshal(result)
	if err != nil {
		encoded = nil
	}

	if cause != nil {
		p.logger.WarnWithContext(ctx, "Попытка публикации завершилась неуспешно",
			interfaces.LogField{Key: "status", Value: result.Status},
			interfaces.LogField{Key: "attempt", Value: a.job.Retried + 1},
			interfaces.LogField{Key: "permanent", Value: pkgerrors.IsPermanent(cause)},
			interfaces.LogField{Key: "error", Value: cause.Error()},
		)
		return encoded, cause
	}

	p.logger.InfoWithContext(ctx, "Листинг опубликован",
		interfaces.LogField{Key: "external_id", Value: result.ExternalID},
		interfaces.LogField{Key: "url", Value: result.URL},
	)
	return encoded, nil
}

// record обновляет метрики и отправляет событие; сбои здесь не влияют на исход задачи
func (p *PublishProcessor) record(ctx context.Context, a *attempt, result *models.PublishResult) {
	platform := a.payload.Platform

	if p.deps.Metrics != nil {
		p.deps.Metrics.observeAttempt(platform, result.Success, a.duration.Seconds())
	}

	if p.deps.Cache != nil {
		key := platformCounterKey(platform, result.Success)
		if _, err := p.deps.Cache.Increment(ctx, key, 1); err != nil {
			p.logger.WarnWithContext(ctx, "Не удалось обновить счетчик публикаций",
				interfaces.LogField{Key: "error", Value: err.Error()})
		} else if p.deps.CounterTTL > 0 {
			_ = p.deps.Cache.Expire(ctx, key, p.deps.CounterTTL)
		}
	}

	if p.deps.Messaging != nil && p.deps.EventsTopic != "" {
		p.publishEvent(ctx, a, result)
	}

	if p.deps.Refresher != nil {
		if err := p.deps.Refresher.RefreshQueueMetrics(ctx); err != nil {
			p.logger.WarnWithContext(ctx, "Не удалось обновить метрики очереди",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}
}

func (p *PublishProcessor) publishEvent(ctx context.Context, a *attempt, result *models.PublishResult) {
	eventType := messaging.ListingPublishFailedEvent
	if result.Success {
		eventType = messaging.ListingPublishCompletedEvent
	}

	event := models.PublishOutcomeEvent{
		EventID:    uuid.New().String(),
		Type:       eventType,
		JobID:      a.job.ID,
		ListingID:  a.payload.ListingID,
		Platform:   a.payload.Platform,
		Attempt:    a.job.Retried + 1,
		Success:    result.Success,
		Status:     result.Status,
		ExternalID: result.ExternalID,
		URL:        result.URL,
		Message:    result.Message,
		OccurredAt: p.now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := p.deps.Messaging.PublishWithKey(ctx, p.deps.EventsTopic, a.payload.ListingID, data); err != nil {
		p.logger.WarnWithContext(ctx, "Не удалось отправить событие публикации",
			interfaces.LogField{Key: "event_type", Value: eventType},
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
}

func (p *PublishProcessor) setProgress(ctx context.Context, jobID string, progress int) {
	if p.deps.Progress == nil || jobID == "" {
		return
	}
	if err := p.deps.Progress.SetProgress(ctx, jobID, progress); err != nil {
		p.logger.DebugWithContext(ctx, "Не удалось сохранить прогресс задачи",
			interfaces.LogField{Key: "progress", Value: progress},
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
}

func messageOr(result *models.PublishResult, fallback string) string {
	if result.Message != "" {
		return result.Message
	}
	return fallback
}
