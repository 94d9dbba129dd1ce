package models

import "time"

// PublishStatus итог попытки публикации на одной платформе
type PublishStatus string

const (
	PublishStatusLive              PublishStatus = "live"
	PublishStatusDraft             PublishStatus = "draft"
	PublishStatusSkipped           PublishStatus = "skipped"
	PublishStatusFailed            PublishStatus = "failed"
	PublishStatusValidationFailed  PublishStatus = "validation_failed"
	PublishStatusMissingCredential PublishStatus = "missing_credential"
)

// PublishResult результат публикации; сохраняется в Listing.Metadata и возвращается клиентам
type PublishResult struct {
	Platform   Platform               `json:"platform"`
	Success    bool                   `json:"success"`
	Status     PublishStatus          `json:"status"`
	ExternalID string                 `json:"externalId,omitempty"`
	URL        string                 `json:"url,omitempty"`
	Message    string                 `json:"message,omitempty"`
	Errors     []string               `json:"errors,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// FailedResult строит результат для ошибки, возникшей вне адаптера
func FailedResult(platform Platform, message string) *PublishResult {
	return &PublishResult{
		Platform: platform,
		Success:  false,
		Status:   PublishStatusFailed,
		Message:  message,
	}
}

// ValidationResult итог проверки листинга адаптером
type ValidationResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// PublishJobPayload полезная нагрузка задачи публикации
type PublishJobPayload struct {
	ListingID   string    `json:"listingId"`
	Platform    Platform  `json:"platform"`
	RequestedAt time.Time `json:"requestedAt"`
}

// QueuedJob задача, поставленная в очередь в ответ на запрос публикации
type QueuedJob struct {
	Platform Platform `json:"platform"`
	JobID    string   `json:"jobId"`
}

// PublishListingResult ответ на запрос публикации
type PublishListingResult struct {
	ListingID string          `json:"listingId"`
	Queued    []QueuedJob     `json:"queued"`
	Failures  []PublishResult `json:"failures"`
}
