package marketplace

import (
	"context"
	"time"

	"github.com/athebyme/listing-publisher/internal/domain/models"
)

const facebookMetadataKey = "facebookMarketplace"

const facebookManualMessage = "Facebook Marketplace requires manual posting. Download the listing kit and use it to create your listing on Facebook."

var facebookInstructions = []string{
	"1. Visit Facebook Marketplace",
	`2. Click "Create New Listing"`,
	"3. Upload the images from the downloaded kit",
	"4. Copy the title and description",
	"5. Set the price and location",
	"6. Review and publish",
}

// FacebookMarketplaceAdapter публикация с ручным размещением: адаптер готовит
// инструкции и оставляет листинг в DRAFT до действий пользователя.
type FacebookMarketplaceAdapter struct {
	listings ListingWriter
	now      func() time.Time
}

// NewFacebookMarketplaceAdapter создает адаптер Facebook Marketplace
func NewFacebookMarketplaceAdapter(listings ListingWriter) *FacebookMarketplaceAdapter {
	return &FacebookMarketplaceAdapter{listings: listings, now: time.Now}
}

var _ Adapter = (*FacebookMarketplaceAdapter)(nil)

func (a *FacebookMarketplaceAdapter) Platform() models.Platform {
	return models.PlatformFacebookMarketplace
}

func (a *FacebookMarketplaceAdapter) Supports(platform models.Platform) bool {
	return platform == models.PlatformFacebookMarketplace
}

// Validate всегда успешна: требования площадки попадают в чек-лист инструкции
func (a *FacebookMarketplaceAdapter) Validate(_ *models.Listing) models.ValidationResult {
	return models.ValidationResult{Success: true}
}

// Publish не обращается к внешнему API и возвращает draft с инструкциями
func (a *FacebookMarketplaceAdapter) Publish(_ context.Context, listing *models.Listing, _ *models.DecryptedCredential, pc PublishContext) (*models.PublishResult, error) {
	price, _ := listing.AskingPrice.Float64()

	metadata := map[string]interface{}{
		"listingId":             listing.ID,
		"title":                 listing.Title,
		"price":                 price,
		"location":              listing.Location,
		"requiresManualPosting": true,
		"instructions":          facebookInstructions,
	}
	if warnings := facebookChecklist(listing); len(warnings) > 0 {
		metadata["warnings"] = warnings
	}
	if pc.JobID != "" {
		metadata["jobId"] = pc.JobID
	}

	return &models.PublishResult{
		Platform: models.PlatformFacebookMarketplace,
		Success:  false,
		Status:   models.PublishStatusDraft,
		Message:  facebookManualMessage,
		Metadata: metadata,
	}, nil
}

// facebookChecklist требования площадки, которые пользователь должен закрыть вручную
func facebookChecklist(listing *models.Listing) []string {
	var warnings []string

	titleLen := len([]rune(listing.Title))
	if titleLen < 5 {
		warnings = append(warnings, "Title must be at least 5 characters long.")
	}
	if titleLen > 100 {
		warnings = append(warnings, "Title must not exceed 100 characters.")
	}
	if len([]rune(listing.Description)) < 10 {
		warnings = append(warnings, "Description must be at least 10 characters long.")
	}
	if !listing.AskingPrice.IsPositive() {
		warnings = append(warnings, "Asking price must be greater than 0.")
	}
	if listing.Location == "" {
		warnings = append(warnings, "Location is required for Facebook Marketplace listings.")
	}
	if len(listing.Media) == 0 {
		warnings = append(warnings, "At least one photo is required.")
	}
	if len(listing.Media) > 20 {
		warnings = append(warnings, "Facebook Marketplace allows a maximum of 20 photos.")
	}

	return warnings
}

// UpdateStatus пишет ключ "facebookMarketplace" и принудительно оставляет DRAFT
func (a *FacebookMarketplaceAdapter) UpdateStatus(ctx context.Context, listingID string, result *models.PublishResult) error {
	entry := platformEntry(result, a.now())
	entry["requiresManualAction"] = true

	patch := map[string]interface{}{
		facebookMetadataKey: entry,
	}
	return a.listings.UpdateListingMetadataAndStatus(ctx, listingID, patch, statusPtr(models.ListingStatusDraft))
}
