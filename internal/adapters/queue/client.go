package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/athebyme/listing-publisher/internal/utils"
	pkgerrors "github.com/athebyme/listing-publisher/pkg/errors"
	"github.com/athebyme/listing-publisher/pkg/interfaces"
	"github.com/hibiken/asynq"
)

const listPageSize = 100

// Options параметры клиентской стороны очереди
type Options struct {
	Queue string
	// MetaTTL сколько хранить прогресс и счетчик запусков задачи
	MetaTTL time.Duration
}

// AsynqQueue реализация JobQueuePort
type AsynqQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	cache     interfaces.CachePort
	opts      Options
	logger    interfaces.LoggerPort
}

// NewAsynqQueue создает клиент и инспектор очереди
func NewAsynqQueue(redis asynq.RedisConnOpt, opts Options, cache interfaces.CachePort, logger interfaces.LoggerPort) *AsynqQueue {
	if opts.Queue == "" {
		opts.Queue = "default"
	}
	if opts.MetaTTL <= 0 {
		opts.MetaTTL = 24 * time.Hour
	}
	return &AsynqQueue{
		client:    asynq.NewClient(redis),
		inspector: asynq.NewInspector(redis),
		cache:     cache,
		opts:      opts,
		logger:    logger.WithField("component", "queue"),
	}
}

var _ interfaces.JobQueuePort = (*AsynqQueue)(nil)

func (q *AsynqQueue) Enqueue(ctx context.Context, jobType string, payload []byte, o interfaces.EnqueueOptions) (string, error) {
	options := []asynq.Option{asynq.Queue(q.opts.Queue)}
	if o.JobID != "" {
		options = append(options, asynq.TaskID(o.JobID))
	}
	if o.MaxRetry > 0 {
		options = append(options, asynq.MaxRetry(o.MaxRetry))
	}
	if o.Retention > 0 {
		options = append(options, asynq.Retention(o.Retention))
	}
	if o.Timeout > 0 {
		options = append(options, asynq.Timeout(o.Timeout))
	}

	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(jobType, payload), options...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return o.JobID, pkgerrors.ErrJobExists
		}
		return "", fmt.Errorf("ошибка постановки задачи в очередь: %w", err)
	}
	return info.ID, nil
}

func (q *AsynqQueue) GetJob(ctx context.Context, jobID string) (*interfaces.JobInfo, error) {
	info, err := q.inspector.GetTaskInfo(q.opts.Queue, jobID)
	if err != nil {
		return nil, q.mapNotFound(err)
	}

	job := toJobInfo(info)
	q.attachMeta(ctx, []*interfaces.JobInfo{job})
	return job, nil
}

func (q *AsynqQueue) ListJobs(ctx context.Context, state interfaces.JobState, offset, limit int) ([]*interfaces.JobInfo, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		return []*interfaces.JobInfo{}, nil
	}

	infos, err := q.listTasks(state, asynq.PageSize(offset+limit), asynq.Page(1))
	if err != nil {
		return nil, err
	}

	if offset >= len(infos) {
		return []*interfaces.JobInfo{}, nil
	}
	infos = infos[offset:]
	if len(infos) > limit {
		infos = infos[:limit]
	}

	jobs := make([]*interfaces.JobInfo, 0, len(infos))
	for _, info := range infos {
		jobs = append(jobs, toJobInfo(info))
	}
	q.attachMeta(ctx, jobs)
	return jobs, nil
}

// listTasks задачи в каноническом состоянии; delayed объединяет scheduled и retry
func (q *AsynqQueue) listTasks(state interfaces.JobState, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	var (
		infos []*asynq.TaskInfo
		err   error
	)

	switch state {
	case interfaces.JobStateWaiting:
		infos, err = q.inspector.ListPendingTasks(q.opts.Queue, opts...)
	case interfaces.JobStateActive:
		infos, err = q.inspector.ListActiveTasks(q.opts.Queue, opts...)
	case interfaces.JobStateCompleted:
		infos, err = q.inspector.ListCompletedTasks(q.opts.Queue, opts...)
	case interfaces.JobStateFailed:
		infos, err = q.inspector.ListArchivedTasks(q.opts.Queue, opts...)
	case interfaces.JobStateDelayed:
		infos, err = q.inspector.ListScheduledTasks(q.opts.Queue, opts...)
		if err == nil {
			var retry []*asynq.TaskInfo
			retry, err = q.inspector.ListRetryTasks(q.opts.Queue, opts...)
			infos = append(infos, retry...)
			sort.SliceStable(infos, func(i, j int) bool {
				return infos[i].NextProcessAt.Before(infos[j].NextProcessAt)
			})
		}
	default:
		return nil, fmt.Errorf("%w: unknown job state %q", utils.ErrInvalidArgument, state)
	}

	if err != nil {
		if errors.Is(err, asynq.ErrQueueNotFound) {
			return []*asynq.TaskInfo{}, nil
		}
		return nil, fmt.Errorf("ошибка чтения задач очереди: %w", err)
	}
	return infos, nil
}

func (q *AsynqQueue) CountByState(ctx context.Context) (map[interfaces.JobState]int, error) {
	counts := make(map[interfaces.JobState]int, len(interfaces.JobStates))
	for _, state := range interfaces.JobStates {
		counts[state] = 0
	}

	// GetQueueInfo не оборачивает ErrQueueNotFound, поэтому наличие очереди проверяется отдельно
	queues, err := q.inspector.Queues()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения списка очередей: %w", err)
	}
	if !slices.Contains(queues, q.opts.Queue) {
		return counts, nil
	}

	info, err := q.inspector.GetQueueInfo(q.opts.Queue)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения статистики очереди: %w", err)
	}

	counts[interfaces.JobStateWaiting] = info.Pending + info.Aggregating
	counts[interfaces.JobStateActive] = info.Active
	counts[interfaces.JobStateDelayed] = info.Scheduled + info.Retry
	counts[interfaces.JobStateFailed] = info.Archived
	counts[interfaces.JobStateCompleted] = info.Completed
	return counts, nil
}

// RetryJob немедленно запускает упавшую или отложенную задачу
func (q *AsynqQueue) RetryJob(ctx context.Context, jobID string) error {
	info, err := q.inspector.GetTaskInfo(q.opts.Queue, jobID)
	if err != nil {
		return q.mapNotFound(err)
	}

	switch info.State {
	case asynq.TaskStateArchived, asynq.TaskStateRetry, asynq.TaskStateScheduled:
	default:
		return pkgerrors.ErrJobNotRetryable
	}

	if err := q.inspector.RunTask(q.opts.Queue, jobID); err != nil {
		return q.mapNotFound(err)
	}
	return nil
}

func (q *AsynqQueue) RemoveJob(ctx context.Context, jobID string) error {
	if err := q.inspector.DeleteTask(q.opts.Queue, jobID); err != nil {
		return q.mapNotFound(err)
	}
	if err := q.cache.Delete(ctx, progressKey(jobID), attemptsKey(jobID)); err != nil {
		q.logger.Warn("Не удалось удалить метаданные задачи",
			interfaces.LogField{Key: "job_id", Value: jobID},
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	return nil
}

// Clean удаляет завершенные задачи старше maxAge; limit <= 0 снимает ограничение
func (q *AsynqQueue) Clean(ctx context.Context, state interfaces.JobState, maxAge time.Duration, limit int) ([]string, error) {
	if !state.IsTerminal() {
		return nil, utils.ErrInvalidCleanState
	}
	cutoff := time.Now().Add(-maxAge)

	// сначала собираем кандидатов: удаление во время обхода сдвигает страницы
	var candidates []string
	for page := 1; ; page++ {
		infos, err := q.listTasks(state, asynq.PageSize(listPageSize), asynq.Page(page))
		if err != nil {
			return nil, err
		}
		for _, info := range infos {
			if finished := finishedAt(info); !finished.IsZero() && finished.Before(cutoff) {
				candidates = append(candidates, info.ID)
			}
		}
		if len(infos) < listPageSize || (limit > 0 && len(candidates) >= limit) {
			break
		}
	}
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	removed := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if err := q.RemoveJob(ctx, id); err != nil {
			if errors.Is(err, pkgerrors.ErrJobNotFound) {
				continue
			}
			return removed, err
		}
		removed = append(removed, id)
	}
	return removed, nil
}

func (q *AsynqQueue) SetProgress(ctx context.Context, jobID string, progress int) error {
	return q.cache.Set(ctx, progressKey(jobID), []byte(strconv.Itoa(progress)), q.opts.MetaTTL)
}

// attachMeta дополняет задачи прогрессом и числом запусков; ошибка кэша не критична
func (q *AsynqQueue) attachMeta(ctx context.Context, jobs []*interfaces.JobInfo) {
	if len(jobs) == 0 {
		return
	}

	keys := make([]string, 0, 2*len(jobs))
	for _, job := range jobs {
		keys = append(keys, progressKey(job.ID), attemptsKey(job.ID))
	}

	values, err := q.cache.GetMulti(ctx, keys)
	if err != nil {
		q.logger.Warn("Не удалось прочитать прогресс задач",
			interfaces.LogField{Key: "error", Value: err.Error()})
		values = map[string][]byte{}
	}

	for _, job := range jobs {
		job.Progress, _ = strconv.Atoi(string(values[progressKey(job.ID)]))
		job.Attempts, _ = strconv.Atoi(string(values[attemptsKey(job.ID)]))
		if job.State == interfaces.JobStateCompleted {
			job.Progress = 100
		}
	}
}

func (q *AsynqQueue) mapNotFound(err error) error {
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return pkgerrors.ErrJobNotFound
	}
	return fmt.Errorf("ошибка операции с очередью: %w", err)
}

func (q *AsynqQueue) Close() error {
	clientErr := q.client.Close()
	inspectorErr := q.inspector.Close()
	return errors.Join(clientErr, inspectorErr)
}
