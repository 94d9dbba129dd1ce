package interfaces

import (
	"context"
	"time"
)

// JobState каноническое состояние задачи в очереди, не зависящее от движка
type JobState string

const (
	JobStateWaiting   JobState = "waiting"
	JobStateActive    JobState = "active"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	JobStateDelayed   JobState = "delayed"
)

// JobStates перечисляет канонические состояния в порядке жизненного цикла
var JobStates = []JobState{
	JobStateWaiting,
	JobStateActive,
	JobStateDelayed,
	JobStateCompleted,
	JobStateFailed,
}

// IsValid проверяет, что состояние входит в канонический набор
func (s JobState) IsValid() bool {
	for _, state := range JobStates {
		if s == state {
			return true
		}
	}
	return false
}

// IsTerminal сообщает, завершена ли задача (успешно или с ошибкой)
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// EnqueueOptions параметры постановки задачи в очередь
type EnqueueOptions struct {
	// JobID задает идентификатор задачи; повторная постановка с тем же ID возвращает errors.ErrJobExists
	JobID string
	// MaxRetry максимальное число автоматических повторов
	MaxRetry int
	// Retention сколько хранить успешно завершенную задачу
	Retention time.Duration
	// Timeout ограничение времени одной попытки
	Timeout time.Duration
}

// JobInfo снимок состояния задачи
type JobInfo struct {
	ID        string
	Type      string
	Payload   []byte
	State     JobState
	Progress  int
	Retried   int
	MaxRetry  int
	LastError string
	Result    []byte
	// Attempts число запусков обработчика, зафиксированных самим воркером
	Attempts int

	// FinishedAt время завершения для completed/failed, нулевое для остальных
	FinishedAt time.Time
	// NextProcessAt время следующей попытки для delayed
	NextProcessAt time.Time
}

// AttemptsMade число выполненных попыток; не убывает при ручных повторах
func (j *JobInfo) AttemptsMade() int {
	n := j.Retried
	if j.State.IsTerminal() {
		n++
	}
	if j.Attempts > n {
		return j.Attempts
	}
	return n
}

// JobQueuePort клиентская сторона очереди задач: постановка, интроспекция и администрирование
type JobQueuePort interface {
	// Enqueue ставит задачу в очередь и возвращает ее идентификатор
	Enqueue(ctx context.Context, jobType string, payload []byte, opts EnqueueOptions) (string, error)

	// GetJob возвращает задачу по ID или errors.ErrJobNotFound
	GetJob(ctx context.Context, jobID string) (*JobInfo, error)

	// ListJobs возвращает задачи в указанном состоянии
	ListJobs(ctx context.Context, state JobState, offset, limit int) ([]*JobInfo, error)

	// CountByState возвращает глубину очереди по каноническим состояниям
	CountByState(ctx context.Context) (map[JobState]int, error)

	// RetryJob переводит упавшую или отложенную задачу в ожидание
	RetryJob(ctx context.Context, jobID string) error

	// RemoveJob удаляет задачу из очереди
	RemoveJob(ctx context.Context, jobID string) error

	// Clean удаляет до limit завершенных задач в состоянии state старше maxAge, возвращает их ID
	Clean(ctx context.Context, state JobState, maxAge time.Duration, limit int) ([]string, error)

	// SetProgress сохраняет прогресс выполнения задачи (0..100)
	SetProgress(ctx context.Context, jobID string, progress int) error

	Close() error
}

// Job задача, переданная обработчику
type Job struct {
	ID       string
	Type     string
	Payload  []byte
	Retried  int
	MaxRetry int
}

// JobHandler обрабатывает задачу; возвращенный результат сохраняется в очереди даже при ошибке.
// Ошибка, помеченная errors.Permanent, переводит задачу в failed без автоматических повторов.
type JobHandler func(ctx context.Context, job *Job) ([]byte, error)
