package services

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/athebyme/listing-publisher/internal/domain/models"
	"github.com/athebyme/listing-publisher/pkg/interfaces"
)

// PublishJobType тип задачи публикации в очереди
const PublishJobType = "listing:publish"

// publishJobID ключ дедупликации: повторный запрос в пределах окна попадает в ту же задачу
func publishJobID(listingID string, platform models.Platform, requestedAt time.Time, window time.Duration) string {
	epoch := requestedAt.Unix()
	if window > 0 {
		epoch = requestedAt.Truncate(window).Unix()
	}
	return "publish:" + listingID + ":" + string(platform) + ":" + strconv.FormatInt(epoch, 10)
}

// decodeJob разбирает полезную нагрузку и сохраненный результат задачи.
// Поврежденный результат не мешает отдать остальные поля.
func decodeJob(info *interfaces.JobInfo) (models.PublishJobPayload, *models.PublishResult) {
	var payload models.PublishJobPayload
	_ = json.Unmarshal(info.Payload, &payload)

	if len(info.Result) == 0 {
		return payload, nil
	}
	var result models.PublishResult
	if err := json.Unmarshal(info.Result, &result); err != nil {
		return payload, nil
	}
	return payload, &result
}

func finishedOn(info *interfaces.JobInfo) *time.Time {
	if info.FinishedAt.IsZero() {
		return nil
	}
	t := info.FinishedAt
	return &t
}

func toJobStatus(info *interfaces.JobInfo) *models.JobStatus {
	payload, result := decodeJob(info)
	return &models.JobStatus{
		JobID:        info.ID,
		ListingID:    payload.ListingID,
		Platform:     payload.Platform,
		State:        info.State,
		Progress:     info.Progress,
		AttemptsMade: info.AttemptsMade(),
		FailedReason: info.LastError,
		ReturnValue:  result,
		QueuedAt:     payload.RequestedAt,
		FinishedOn:   finishedOn(info),
	}
}

func toArchivedJob(info *interfaces.JobInfo) models.ArchivedJob {
	payload, result := decodeJob(info)
	return models.ArchivedJob{
		JobID:        info.ID,
		ListingID:    payload.ListingID,
		Platform:     payload.Platform,
		State:        info.State,
		AttemptsMade: info.AttemptsMade(),
		FailedReason: info.LastError,
		Result:       result,
		QueuedAt:     payload.RequestedAt,
		FinishedOn:   info.FinishedAt,
	}
}

// sortByQueuedAtDesc новые задачи первыми
func sortByQueuedAtDesc(jobs []*interfaces.JobInfo) {
	queuedAt := make(map[string]time.Time, len(jobs))
	for _, job := range jobs {
		payload, _ := decodeJob(job)
		queuedAt[job.ID] = payload.RequestedAt
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		return queuedAt[jobs[i].ID].After(queuedAt[jobs[j].ID])
	})
}
