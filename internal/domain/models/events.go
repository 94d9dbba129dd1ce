package models

import "time"

// PublishOutcomeEvent событие об итоге попытки публикации
type PublishOutcomeEvent struct {
	EventID    string        `json:"event_id"`
	Type       string        `json:"type"`
	JobID      string        `json:"job_id"`
	ListingID  string        `json:"listing_id"`
	Platform   Platform      `json:"platform"`
	Attempt    int           `json:"attempt"`
	Success    bool          `json:"success"`
	Status     PublishStatus `json:"status"`
	ExternalID string        `json:"external_id,omitempty"`
	URL        string        `json:"url,omitempty"`
	Message    string        `json:"message,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// JobsArchivedEvent выгрузка архивированных задач
type JobsArchivedEvent struct {
	EventID    string        `json:"event_id"`
	Type       string        `json:"type"`
	BatchID    string        `json:"batch_id"`
	CutoffDate time.Time     `json:"cutoff_date"`
	Jobs       []ArchivedJob `json:"jobs"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// WorkerCommand команда, которую воркер принимает из топика команд
type WorkerCommand struct {
	CommandType string   `json:"command_type"`
	ListingID   string   `json:"listing_id,omitempty"`
	Platforms   []string `json:"platforms,omitempty"`
	Platform    string   `json:"platform,omitempty"`
	Limit       int      `json:"limit,omitempty"`
	State       string   `json:"state,omitempty"`
	// OlderThan возраст в секундах
	OlderThan *int `json:"older_than,omitempty"`
}
