package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/athebyme/listing-publisher/internal/domain/models"
	"github.com/athebyme/listing-publisher/pkg/interfaces"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PublishMetrics метрики Prometheus подсистемы публикации
type PublishMetrics struct {
	jobsByState    *prometheus.GaugeVec
	jobsByPlatform *prometheus.GaugeVec
	attempts       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
}

// NewPublishMetrics регистрирует метрики в reg
func NewPublishMetrics(reg prometheus.Registerer) *PublishMetrics {
	factory := promauto.With(reg)

	return &PublishMetrics{
		jobsByState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "listing_publish_jobs_total",
			Help: "Количество задач публикации в очереди по состояниям",
		}, []string{"state"}),

		jobsByPlatform: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "listing_publish_jobs_by_platform",
			Help: "Количество задач публикации по состояниям и платформам (выборка)",
		}, []string{"state", "platform"}),

		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "listing_publish_attempts_total",
			Help: "Попытки публикации по платформам и итогу",
		}, []string{"platform", "result"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "listing_publish_duration_seconds",
			Help:    "Длительность вызова адаптера маркетплейса",
			Buckets: prometheus.DefBuckets,
		}, []string{"platform"}),
	}
}

func (m *PublishMetrics) observeAttempt(platform models.Platform, success bool, seconds float64) {
	result := "failure"
	if success {
		result = "success"
	}
	m.attempts.WithLabelValues(string(platform), result).Inc()
	m.duration.WithLabelValues(string(platform)).Observe(seconds)
}

func (m *PublishMetrics) setQueueDepth(counts map[interfaces.JobState]int) {
	for state, n := range counts {
		m.jobsByState.WithLabelValues(string(state)).Set(float64(n))
	}
}

func (m *PublishMetrics) setPlatformDepth(byPlatform map[models.Platform]map[interfaces.JobState]int) {
	m.jobsByPlatform.Reset()
	for platform, counts := range byPlatform {
		for state, n := range counts {
			m.jobsByPlatform.WithLabelValues(string(state), string(platform)).Set(float64(n))
		}
	}
}

// Накопительные счетчики попыток в кэше: переживают перезапуск процессов
const platformCounterPrefix = "publish:stats:"

func platformCounterKey(platform models.Platform, success bool) string {
	outcome := "failed"
	if success {
		outcome = "succeeded"
	}
	return platformCounterPrefix + string(platform) + ":" + outcome
}

func readPlatformCounters(ctx context.Context, cache interfaces.CachePort, platform models.Platform) (succeeded, failed int64, err error) {
	okKey, failKey := platformCounterKey(platform, true), platformCounterKey(platform, false)
	values, err := cache.GetMulti(ctx, []string{okKey, failKey})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read platform counters: %w", err)
	}
	succeeded, _ = strconv.ParseInt(string(values[okKey]), 10, 64)
	failed, _ = strconv.ParseInt(string(values[failKey]), 10, 64)
	return succeeded, failed, nil
}
