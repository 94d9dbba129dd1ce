// Package marketplace описывает контракт адаптеров маркетплейсов и их реестр.
//
// Адаптер разделяет дешевую синхронную проверку листинга (Validate) и дорогую
// асинхронную публикацию (Publish), после которой результат сохраняется в
// метаданные листинга (UpdateStatus).
package marketplace

import (
	"context"
	"time"

	"github.com/athebyme/listing-publisher/internal/domain/models"
)

// PublishContext контекст попытки публикации
type PublishContext struct {
	JobID string
}

// Adapter реализация публикации для одного маркетплейса
type Adapter interface {
	// Platform маркетплейс, за который отвечает адаптер
	Platform() models.Platform

	// Supports используется реестром для маршрутизации
	Supports(platform models.Platform) bool

	// Validate чистая проверка листинга без побочных эффектов
	Validate(listing *models.Listing) models.ValidationResult

	// Publish выполняет протокол маркетплейса. Отказ маркетплейса возвращается
	// как результат со статусом failed; ошибка означает непредвиденный сбой.
	Publish(ctx context.Context, listing *models.Listing, credential *models.DecryptedCredential, pc PublishContext) (*models.PublishResult, error)

	// UpdateStatus сохраняет результат в метаданные листинга и продвигает его статус
	UpdateStatus(ctx context.Context, listingID string, result *models.PublishResult) error
}

// ListingWriter запись результата публикации в хранилище листингов.
// patch сливается с метаданными на верхнем уровне: ключи других платформ не затрагиваются.
// status == nil оставляет статус листинга без изменений.
type ListingWriter interface {
	UpdateListingMetadataAndStatus(ctx context.Context, listingID string, patch map[string]interface{}, status *models.ListingStatus) error
}

// platformEntry собирает запись платформы для Listing.Metadata
func platformEntry(result *models.PublishResult, now time.Time) map[string]interface{} {
	entry := make(map[string]interface{}, len(result.Metadata)+6)
	for k, v := range result.Metadata {
		entry[k] = v
	}
	entry["status"] = string(result.Status)
	entry["success"] = result.Success
	entry["externalId"] = result.ExternalID
	entry["url"] = result.URL
	entry["message"] = result.Message
	entry["updatedAt"] = now.UTC().Format(time.RFC3339)
	if len(result.Errors) > 0 {
		entry["errors"] = result.Errors
	}
	return entry
}

func statusPtr(s models.ListingStatus) *models.ListingStatus {
	return &s
}
