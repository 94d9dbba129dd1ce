package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/athebyme/listing-publisher/internal/domain/models"
	"github.com/athebyme/listing-publisher/pkg/interfaces"
	"github.com/athebyme/listing-publisher/pkg/utils"
	"github.com/go-chi/chi/v5"
)

// PublishService операции постановки и просмотра задач публикации
type PublishService interface {
	PublishListing(ctx context.Context, listingID string, platforms []models.Platform) (*models.PublishListingResult, error)
	GetJobStatus(ctx context.Context, jobID string) (*models.JobStatus, error)
	ListRecentJobs(ctx context.Context, limit int) ([]models.JobSummary, error)
}

// SyncLogReader чтение журнала вызовов eBay API
type SyncLogReader interface {
	ListSyncLogs(ctx context.Context, entityID string, pagination *utils.Pagination) ([]*models.EbaySyncLog, error)
}

// PublishRequest тело запроса публикации. Пустой список означает платформу листинга
type PublishRequest struct {
	Platforms []string `json:"platforms" validate:"omitempty,max=10,dive,required" example:"EBAY"`
}

// ListingHandler обработчик запросов публикации листингов
type ListingHandler struct {
	publisher PublishService
	syncLogs  SyncLogReader
	logger    interfaces.LoggerPort
}

// NewListingHandler создает новый обработчик листингов
func NewListingHandler(publisher PublishService, syncLogs SyncLogReader, logger interfaces.LoggerPort) *ListingHandler {
	return &ListingHandler{
		publisher: publisher,
		syncLogs:  syncLogs,
		logger:    logger,
	}
}

// PublishListing godoc
//
//	@Summary		Опубликовать листинг
//	@Description	Ставит задачу публикации на каждую платформу. Платформы без адаптера, не прошедшие проверку или без аккаунта возвращаются в failures
//	@Tags			listings
//	@Accept			json
//	@Produce		json
//	@Param			listingId	path		string			true	"ID листинга"
//	@Param			request		body		PublishRequest	false	"Целевые платформы"
//	@Success		202			{object}	response{data=models.PublishListingResult}
//	@Failure		400			{object}	errorResponse
//	@Failure		404			{object}	errorResponse
//	@Security		BearerAuth
//	@Router			/listings/{listingId}/publish [post]
func (h *ListingHandler) PublishListing(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "listingId")
	if listingID == "" {
		writeError(w, r, http.StatusBadRequest, "bad_request", "ID листинга не указан")
		return
	}

	var req PublishRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	platforms := make([]models.Platform, 0, len(req.Platforms))
	for _, raw := range req.Platforms {
		platform, err := models.ParsePlatform(strings.ToUpper(raw))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		platforms = append(platforms, platform)
	}

	result, err := h.publisher.PublishListing(r.Context(), listingID, platforms)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Ошибка постановки публикации")
		return
	}

	writeData(w, r, http.StatusAccepted, result, nil)
}

// ListSyncLogs godoc
//
//	@Summary	Журнал вызовов eBay API по листингу
//	@Tags		listings
//	@Produce	json
//	@Param		listingId	path		string	true	"ID листинга"
//	@Param		page		query		int		false	"Номер страницы"
//	@Param		pageSize	query		int		false	"Размер страницы (до 100)"
//	@Success	200			{object}	response{data=[]models.EbaySyncLog}
//	@Security	BearerAuth
//	@Router		/listings/{listingId}/sync-logs [get]
func (h *ListingHandler) ListSyncLogs(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "listingId")
	pagination := utils.PaginationFromQuery(r.URL.Query())

	logs, err := h.syncLogs.ListSyncLogs(r.Context(), listingID, pagination)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Ошибка получения журнала синхронизации")
		return
	}

	writeData(w, r, http.StatusOK, logs, map[string]interface{}{
		"pagination": pagination,
	})
}
