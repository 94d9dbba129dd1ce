// Package queue очередь задач публикации поверх hibiken/asynq.
//
// Состояния asynq сводятся к пяти каноническим: pending -> waiting,
// active -> active, scheduled/retry -> delayed, archived -> failed,
// completed -> completed. Прогресс и число запусков хранятся в кэше
// рядом с очередью, потому что asynq их не ведет.
package queue

import (
	"strings"
	"time"

	"github.com/athebyme/listing-publisher/pkg/interfaces"
	"github.com/hibiken/asynq"
)

const (
	progressKeyPrefix = "publish:progress:"
	attemptsKeyPrefix = "publish:attempts:"
)

func progressKey(jobID string) string { return progressKeyPrefix + jobID }

func attemptsKey(jobID string) string { return attemptsKeyPrefix + jobID }

var skipRetrySuffix = ": " + asynq.SkipRetry.Error()

// canonicalState переводит состояние asynq в каноническое
func canonicalState(state asynq.TaskState) interfaces.JobState {
	switch state {
	case asynq.TaskStateActive:
		return interfaces.JobStateActive
	case asynq.TaskStateScheduled, asynq.TaskStateRetry:
		return interfaces.JobStateDelayed
	case asynq.TaskStateArchived:
		return interfaces.JobStateFailed
	case asynq.TaskStateCompleted:
		return interfaces.JobStateCompleted
	default:
		return interfaces.JobStateWaiting
	}
}

// finishedAt время завершения задачи в терминальном состоянии
func finishedAt(info *asynq.TaskInfo) time.Time {
	switch info.State {
	case asynq.TaskStateCompleted:
		return info.CompletedAt
	case asynq.TaskStateArchived:
		return info.LastFailedAt
	default:
		return time.Time{}
	}
}

// toJobInfo снимок задачи без прогресса и счетчика запусков
func toJobInfo(info *asynq.TaskInfo) *interfaces.JobInfo {
	job := &interfaces.JobInfo{
		ID:         info.ID,
		Type:       info.Type,
		Payload:    info.Payload,
		State:      canonicalState(info.State),
		Retried:    info.Retried,
		MaxRetry:   info.MaxRetry,
		LastError:  strings.TrimSuffix(info.LastErr, skipRetrySuffix),
		Result:     info.Result,
		FinishedAt: finishedAt(info),
	}
	if job.State == interfaces.JobStateDelayed {
		job.NextProcessAt = info.NextProcessAt
	}
	return job
}
