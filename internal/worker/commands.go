package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/athebyme/listing-publisher/internal/adapters/messaging"
	"github.com/athebyme/listing-publisher/internal/domain/models"
	"github.com/athebyme/listing-publisher/internal/utils"
	"github.com/athebyme/listing-publisher/pkg/interfaces"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Publisher постановка задач публикации
type Publisher interface {
	PublishListing(ctx context.Context, listingID string, platforms []models.Platform) (*models.PublishListingResult, error)
}

// JobAdmin административные операции, доступные через команды
type JobAdmin interface {
	RetryFailedJobs(ctx context.Context, filter models.RetryFailedFilter) (*models.RetryFailedResult, error)
	CleanJobs(ctx context.Context, filter models.CleanJobsFilter) (*models.CleanJobsResult, error)
}

// CommandHandler выполняет команды из топика команд воркера.
// Некорректные команды пропускаются; ошибка возвращается только для сбоев,
// после которых команду имеет смысл прочитать повторно.
type CommandHandler struct {
	publisher Publisher
	admin     JobAdmin
	logger    interfaces.LoggerPort

	processed *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	active    prometheus.Gauge
}

// NewCommandHandler создает обработчик команд
func NewCommandHandler(publisher Publisher, admin JobAdmin, reg prometheus.Registerer, logger interfaces.LoggerPort) *CommandHandler {
	factory := promauto.With(reg)
	return &CommandHandler{
		publisher: publisher,
		admin:     admin,
		logger:    logger.WithField("component", "worker-commands"),
		processed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_messages_processed_total",
			Help: "Общее количество обработанных сообщений",
		}, []string{"topic", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "worker_message_processing_duration_seconds",
			Help:    "Длительность обработки сообщений",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Name: "worker_active_goroutines",
			Help: "Количество активных горутин-обработчиков",
		}),
	}
}

// Handle реализует interfaces.MessageHandler
func (h *CommandHandler) Handle(ctx context.Context, msg *interfaces.Message) error {
	startTime := time.Now()
	h.active.Inc()
	defer h.active.Dec()

	var command models.WorkerCommand
	if err := json.Unmarshal(msg.Value, &command); err != nil {
		h.logger.ErrorWithContext(ctx, "Ошибка декодирования команды",
			interfaces.LogField{Key: "message_id", Value: msg.ID},
			interfaces.LogField{Key: "error", Value: err.Error()})
		h.processed.WithLabelValues(msg.Topic, "invalid").Inc()
		return nil
	}

	ctx = interfaces.ContextWithLogFields(ctx,
		interfaces.LogField{Key: "message_id", Value: msg.ID},
		interfaces.LogField{Key: "command_type", Value: command.CommandType})

	var err error
	switch messaging.KafkaCommand(command.CommandType) {
	case messaging.PublishListingCommand:
		err = h.publishListing(ctx, command)
	case messaging.RetryFailedJobsCommand:
		err = h.retryFailed(ctx, command)
	case messaging.CleanJobsCommand:
		err = h.clean(ctx, command)
	default:
		h.logger.WarnWithContext(ctx, "Неизвестный тип команды")
		h.processed.WithLabelValues(msg.Topic, "unknown").Inc()
		return nil
	}

	if err != nil {
		if isRejected(err) {
			h.logger.WarnWithContext(ctx, "Команда отклонена",
				interfaces.LogField{Key: "error", Value: err.Error()})
			h.processed.WithLabelValues(msg.Topic, "rejected").Inc()
			return nil
		}
		h.logger.ErrorWithContext(ctx, "Ошибка обработки команды",
			interfaces.LogField{Key: "error", Value: err.Error()})
		h.processed.WithLabelValues(msg.Topic, "error").Inc()
		return err
	}

	duration := time.Since(startTime).Seconds()
	h.duration.WithLabelValues(msg.Topic).Observe(duration)
	h.processed.WithLabelValues(msg.Topic, "success").Inc()

	h.logger.InfoWithContext(ctx, "Команда успешно обработана",
		interfaces.LogField{Key: "duration", Value: duration})
	return nil
}

// isRejected ошибки самой команды: повторное чтение ничего не изменит
func isRejected(err error) bool {
	return errors.Is(err, utils.ErrInvalidArgument) ||
		errors.Is(err, utils.ErrListingNotFound) ||
		errors.Is(err, utils.ErrInvalidCleanState)
}

func (h *CommandHandler) publishListing(ctx context.Context, command models.WorkerCommand) error {
	if command.ListingID == "" {
		return fmt.Errorf("%w: listing_id is required", utils.ErrInvalidArgument)
	}

	platforms := make([]models.Platform, 0, len(command.Platforms))
	for _, raw := range command.Platforms {
		platform, err := parsePlatform(raw)
		if err != nil {
			return err
		}
		platforms = append(platforms, platform)
	}

	result, err := h.publisher.PublishListing(ctx, command.ListingID, platforms)
	if err != nil {
		return err
	}

	h.logger.InfoWithContext(ctx, "Публикация по команде поставлена",
		interfaces.LogField{Key: "listing_id", Value: command.ListingID},
		interfaces.LogField{Key: "queued", Value: len(result.Queued)},
		interfaces.LogField{Key: "rejected", Value: len(result.Failures)})
	return nil
}

func (h *CommandHandler) retryFailed(ctx context.Context, command models.WorkerCommand) error {
	filter := models.RetryFailedFilter{Limit: command.Limit}
	if command.Platform != "" {
		platform, err := parsePlatform(command.Platform)
		if err != nil {
			return err
		}
		filter.Platform = platform
	}

	_, err := h.admin.RetryFailedJobs(ctx, filter)
	return err
}

func (h *CommandHandler) clean(ctx context.Context, command models.WorkerCommand) error {
	filter := models.CleanJobsFilter{State: interfaces.JobState(command.State)}
	if command.OlderThan != nil {
		if *command.OlderThan < 0 {
			return fmt.Errorf("%w: older_than must not be negative", utils.ErrInvalidArgument)
		}
		olderThan := time.Duration(*command.OlderThan) * time.Second
		filter.OlderThan = &olderThan
	}

	_, err := h.admin.CleanJobs(ctx, filter)
	return err
}

func parsePlatform(raw string) (models.Platform, error) {
	platform, err := models.ParsePlatform(strings.ToUpper(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", utils.ErrInvalidArgument, err)
	}
	return platform, nil
}
