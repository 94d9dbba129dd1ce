package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/athebyme/listing-publisher/internal/domain/models"
	"github.com/athebyme/listing-publisher/pkg/interfaces"
	"github.com/go-chi/chi/v5"
)

// AdminService административные операции над очередью публикации
type AdminService interface {
	RetryJob(ctx context.Context, jobID string) (*models.RetryJobResult, error)
	RetryFailedJobs(ctx context.Context, filter models.RetryFailedFilter) (*models.RetryFailedResult, error)
	CleanJobs(ctx context.Context, filter models.CleanJobsFilter) (*models.CleanJobsResult, error)
	ArchiveOldJobs(ctx context.Context, olderThanDays int) (*models.ArchiveResult, error)
	GetQueueStats(ctx context.Context) (*models.QueueStats, error)
	GetPlatformStats(ctx context.Context, platform models.Platform) (*models.PlatformStats, error)
}

// CleanJobsRequest тело запроса очистки; olderThan в секундах, без него берется час
type CleanJobsRequest struct {
	State     string `json:"state" validate:"omitempty,oneof=completed failed" example:"completed"`
	OlderThan *int64 `json:"olderThan,omitempty" validate:"omitempty,gte=0" example:"3600"`
}

// RetryFailedRequest тело запроса массового повтора
type RetryFailedRequest struct {
	Platform string `json:"platform" example:"EBAY"`
	Limit    int    `json:"limit" validate:"gte=0,lte=1000" example:"10"`
}

// ArchiveRequest тело запроса архивации
type ArchiveRequest struct {
	OlderThanDays int `json:"olderThanDays" validate:"required,gte=1" example:"30"`
}

// JobHandler обработчик запросов к задачам публикации
type JobHandler struct {
	jobs   PublishService
	admin  AdminService
	logger interfaces.LoggerPort
}

// NewJobHandler создает новый обработчик задач
func NewJobHandler(jobs PublishService, admin AdminService, logger interfaces.LoggerPort) *JobHandler {
	return &JobHandler{
		jobs:   jobs,
		admin:  admin,
		logger: logger,
	}
}

// ListJobs godoc
//
//	@Summary	Последние задачи публикации
//	@Tags		jobs
//	@Produce	json
//	@Param		limit	query		int	false	"Количество задач (по умолчанию 20, максимум 100)"
//	@Success	200		{object}	response{data=[]models.JobSummary}
//	@Security	BearerAuth
//	@Router		/listing-publisher/jobs [get]
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	// некорректный limit заменяется значением по умолчанию в сервисе
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	jobs, err := h.jobs.ListRecentJobs(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Ошибка получения списка задач")
		return
	}

	writeData(w, r, http.StatusOK, jobs, nil)
}

// GetJob godoc
//
//	@Summary	Состояние задачи
//	@Tags		jobs
//	@Produce	json
//	@Param		jobId	path		string	true	"ID задачи"
//	@Success	200		{object}	response{data=models.JobStatus}
//	@Failure	404		{object}	errorResponse
//	@Security	BearerAuth
//	@Router		/listing-publisher/jobs/{jobId} [get]
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	status, err := h.jobs.GetJobStatus(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Ошибка получения задачи")
		return
	}

	writeData(w, r, http.StatusOK, status, nil)
}

// RetryJob godoc
//
//	@Summary	Повторить задачу
//	@Tags		jobs
//	@Produce	json
//	@Param		jobId	path		string	true	"ID задачи"
//	@Success	200		{object}	response{data=models.RetryJobResult}
//	@Failure	404		{object}	errorResponse
//	@Failure	409		{object}	errorResponse
//	@Security	BearerAuth
//	@Router		/listing-publisher/jobs/{jobId}/retry [post]
func (h *JobHandler) RetryJob(w http.ResponseWriter, r *http.Request) {
	result, err := h.admin.RetryJob(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Ошибка повтора задачи")
		return
	}

	writeData(w, r, http.StatusOK, result, nil)
}

// CleanJobs godoc
//
//	@Summary	Удалить завершенные задачи старше порога
//	@Tags		jobs
//	@Accept		json
//	@Produce	json
//	@Param		request	body		CleanJobsRequest	false	"Параметры очистки"
//	@Success	200		{object}	response{data=models.CleanJobsResult}
//	@Failure	400		{object}	errorResponse
//	@Security	BearerAuth
//	@Router		/listing-publisher/jobs/clean [post]
func (h *JobHandler) CleanJobs(w http.ResponseWriter, r *http.Request) {
	var req CleanJobsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	filter := models.CleanJobsFilter{State: interfaces.JobState(req.State)}
	if req.OlderThan != nil {
		olderThan := time.Duration(*req.OlderThan) * time.Second
		filter.OlderThan = &olderThan
	}

	result, err := h.admin.CleanJobs(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Ошибка очистки задач")
		return
	}

	writeData(w, r, http.StatusOK, result, nil)
}

// RetryFailedJobs godoc
//
//	@Summary	Повторить упавшие задачи
//	@Tags		jobs
//	@Accept		json
//	@Produce	json
//	@Param		request	body		RetryFailedRequest	false	"Фильтр"
//	@Success	200		{object}	response{data=models.RetryFailedResult}
//	@Failure	400		{object}	errorResponse
//	@Security	BearerAuth
//	@Router		/listing-publisher/jobs/retry-failed [post]
func (h *JobHandler) RetryFailedJobs(w http.ResponseWriter, r *http.Request) {
	var req RetryFailedRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	filter := models.RetryFailedFilter{Limit: req.Limit}
	if req.Platform != "" {
		platform, err := models.ParsePlatform(strings.ToUpper(req.Platform))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		filter.Platform = platform
	}

	result, err := h.admin.RetryFailedJobs(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Ошибка массового повтора задач")
		return
	}

	writeData(w, r, http.StatusOK, result, nil)
}

// ArchiveJobs godoc
//
//	@Summary	Архивировать старые задачи
//	@Tags		jobs
//	@Accept		json
//	@Produce	json
//	@Param		request	body		ArchiveRequest	true	"Порог в днях"
//	@Success	200		{object}	response{data=models.ArchiveResult}
//	@Failure	400		{object}	errorResponse
//	@Security	BearerAuth
//	@Router		/listing-publisher/jobs/archive [post]
func (h *JobHandler) ArchiveJobs(w http.ResponseWriter, r *http.Request) {
	var req ArchiveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	result, err := h.admin.ArchiveOldJobs(r.Context(), req.OlderThanDays)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Ошибка архивации задач")
		return
	}

	writeData(w, r, http.StatusOK, result, nil)
}

// QueueStats godoc
//
//	@Summary	Глубина очереди по состояниям и платформам
//	@Tags		stats
//	@Produce	json
//	@Success	200	{object}	response{data=models.QueueStats}
//	@Security	BearerAuth
//	@Router		/listing-publisher/stats [get]
func (h *JobHandler) QueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.GetQueueStats(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Ошибка получения статистики очереди")
		return
	}

	writeData(w, r, http.StatusOK, stats, nil)
}

// PlatformStats godoc
//
//	@Summary	Статистика публикаций платформы
//	@Tags		stats
//	@Produce	json
//	@Param		platform	path		string	true	"Платформа"	Enums(EBAY, FACEBOOK_MARKETPLACE, OFFERUP, POSHMARK, MERCARI, SHOPGOODWILL, OTHER)
//	@Success	200			{object}	response{data=models.PlatformStats}
//	@Failure	400			{object}	errorResponse
//	@Security	BearerAuth
//	@Router		/listing-publisher/stats/{platform} [get]
func (h *JobHandler) PlatformStats(w http.ResponseWriter, r *http.Request) {
	platform, err := models.ParsePlatform(strings.ToUpper(chi.URLParam(r, "platform")))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	stats, err := h.admin.GetPlatformStats(r.Context(), platform)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Ошибка получения статистики платформы")
		return
	}

	writeData(w, r, http.StatusOK, stats, nil)
}
