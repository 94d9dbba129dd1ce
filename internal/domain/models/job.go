package models

import (
	"time"

	"github.com/athebyme/listing-publisher/pkg/interfaces"
)

// JobStatus подробное состояние задачи публикации
type JobStatus struct {
	JobID        string              `json:"jobId"`
	ListingID    string              `json:"listingId"`
	Platform     Platform            `json:"platform"`
	State        interfaces.JobState `json:"state"`
	Progress     int                 `json:"progress"`
	AttemptsMade int                 `json:"attemptsMade"`
	FailedReason string              `json:"failedReason,omitempty"`
	ReturnValue  *PublishResult      `json:"returnValue,omitempty"`
	QueuedAt     time.Time           `json:"queuedAt"`
	FinishedOn   *time.Time          `json:"finishedOn,omitempty"`
}

// JobSummary строка списка последних задач
type JobSummary struct {
	JobID         string              `json:"jobId"`
	ListingID     string              `json:"listingId"`
	ListingTitle  string              `json:"listingTitle"`
	ListingStatus ListingStatus       `json:"listingStatus"`
	Platform      Platform            `json:"platform"`
	State         interfaces.JobState `json:"state"`
	QueuedAt      time.Time           `json:"queuedAt"`
	FinishedOn    *time.Time          `json:"finishedOn,omitempty"`
	FailedReason  string              `json:"failedReason,omitempty"`
	AttemptsMade  int                 `json:"attemptsMade"`
	ReturnValue   *PublishResult      `json:"returnValue,omitempty"`
}

// RetryJobResult ответ на ручной повтор задачи
type RetryJobResult struct {
	JobID string              `json:"jobId"`
	State interfaces.JobState `json:"state"`
}

// CleanJobsFilter параметры очистки завершенных задач
type CleanJobsFilter struct {
	State interfaces.JobState `json:"state"`
	// OlderThan порог по времени завершения; nil - порог по умолчанию, 0 - все задачи состояния
	OlderThan *time.Duration `json:"olderThan,omitempty"`
}

// CleanJobsResult итог очистки
type CleanJobsResult struct {
	Removed int `json:"removed"`
}

// RetryFailedFilter параметры массового повтора
type RetryFailedFilter struct {
	Platform Platform `json:"platform,omitempty"`
	Limit    int      `json:"limit"`
}

// RetryFailedResult итог массового повтора
type RetryFailedResult struct {
	Retried int      `json:"retried"`
	JobIDs  []string `json:"jobIds"`
}

// ArchivedJob выгрузка задачи перед удалением из очереди
type ArchivedJob struct {
	JobID        string              `json:"jobId"`
	ListingID    string              `json:"listingId"`
	Platform     Platform            `json:"platform"`
	State        interfaces.JobState `json:"state"`
	AttemptsMade int                 `json:"attemptsMade"`
	FailedReason string              `json:"failedReason,omitempty"`
	Result       *PublishResult      `json:"result,omitempty"`
	QueuedAt     time.Time           `json:"queuedAt"`
	FinishedOn   time.Time           `json:"finishedOn"`
}

// ArchiveResult итог архивации
type ArchiveResult struct {
	BatchID    string        `json:"batchId"`
	Archived   int           `json:"archived"`
	CutoffDate time.Time     `json:"cutoffDate"`
	Jobs       []ArchivedJob `json:"jobs"`
}

// QueueStats глубина очереди по состояниям и платформам
type QueueStats struct {
	Total      int                                      `json:"total"`
	ByState    map[interfaces.JobState]int              `json:"byState"`
	ByPlatform map[Platform]map[interfaces.JobState]int `json:"byPlatform"`
}

// PlatformStats статистика публикаций одной платформы
type PlatformStats struct {
	Platform    Platform `json:"platform"`
	Total       int      `json:"total"`
	Completed   int      `json:"completed"`
	Failed      int      `json:"failed"`
	Pending     int      `json:"pending"`
	SuccessRate float64  `json:"successRate"`

	// Накопительные счетчики попыток с момента запуска системы
	SucceededTotal int64   `json:"succeededTotal"`
	FailedTotal    int64   `json:"failedTotal"`
	LifetimeRate   float64 `json:"lifetimeSuccessRate"`
}
