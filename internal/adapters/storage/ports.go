package postgres

import (
	"context"

	"github.com/athebyme/listing-publisher/internal/domain/models"
	"github.com/athebyme/listing-publisher/pkg/utils"
)

// ListingRepository чтение листингов и запись результатов публикации
type ListingRepository interface {
	// FindListingWithRelations загружает листинг вместе с фото, позицией закупки и аккаунтом.
	// Возвращает nil, nil если листинг не найден
	FindListingWithRelations(ctx context.Context, listingID string) (*models.Listing, error)

	// FindListingSummaries возвращает краткие данные существующих листингов по ID
	FindListingSummaries(ctx context.Context, listingIDs []string) (map[string]*models.ListingSummary, error)

	// UpdateListingMetadataAndStatus сливает patch с метаданными одним запросом.
	// status == nil оставляет статус без изменений
	UpdateListingMetadataAndStatus(ctx context.Context, listingID string, patch map[string]interface{}, status *models.ListingStatus) error
}

// CredentialRepository хранилище аккаунтов маркетплейсов
type CredentialRepository interface {
	// GetCredential возвращает nil, nil если аккаунт не найден
	GetCredential(ctx context.Context, credentialID string) (*models.PlatformCredential, error)
}

// SyncLogRepository журнал аудита вызовов eBay API
type SyncLogRepository interface {
	SaveSyncLog(ctx context.Context, log *models.EbaySyncLog) error
	ListSyncLogs(ctx context.Context, entityID string, pagination *utils.Pagination) ([]*models.EbaySyncLog, error)
}

// JobArchiveRepository архив задач, удаленных из очереди
type JobArchiveRepository interface {
	ArchiveJobs(ctx context.Context, batchID string, jobs []models.ArchivedJob) error
}

// Port полный набор операций хранилища сервиса
type Port interface {
	ListingRepository
	CredentialRepository
	SyncLogRepository
	JobArchiveRepository

	Ping(ctx context.Context) error
	Close() error
}
