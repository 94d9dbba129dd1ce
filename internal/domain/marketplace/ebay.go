package marketplace

import (
	"context"
	"strings"
	"time"

	"github.com/athebyme/listing-publisher/internal/domain/models"
)

const (
	ebayMetadataKey          = "ebay"
	defaultEbayMarketplaceID = "EBAY_US"
	defaultEbayCurrency      = "USD"
	defaultMerchantLocation  = "DEFAULT"
)

// EbayListingClient трехшаговый протокол eBay Inventory API
type EbayListingClient interface {
	CreateListing(ctx context.Context, req *models.EbayListingRequest) (*models.EbayListingResult, error)
}

// EbayDefaults глобальные значения по умолчанию из конфигурации
type EbayDefaults struct {
	MarketplaceID       string
	Currency            string
	PaymentPolicyID     string
	FulfillmentPolicyID string
	ReturnPolicyID      string
	MerchantLocationKey string
}

// EbayAdapter полностью автоматическая публикация на eBay
type EbayAdapter struct {
	client   EbayListingClient
	listings ListingWriter
	defaults EbayDefaults
	now      func() time.Time
}

// NewEbayAdapter создает адаптер eBay
func NewEbayAdapter(client EbayListingClient, listings ListingWriter, defaults EbayDefaults) *EbayAdapter {
	if defaults.MarketplaceID == "" {
		defaults.MarketplaceID = defaultEbayMarketplaceID
	}
	if defaults.Currency == "" {
		defaults.Currency = defaultEbayCurrency
	}
	if defaults.MerchantLocationKey == "" {
		defaults.MerchantLocationKey = defaultMerchantLocation
	}
	return &EbayAdapter{client: client, listings: listings, defaults: defaults, now: time.Now}
}

var _ Adapter = (*EbayAdapter)(nil)

func (a *EbayAdapter) Platform() models.Platform { return models.PlatformEbay }

func (a *EbayAdapter) Supports(platform models.Platform) bool {
	return platform == models.PlatformEbay
}

// Validate минимальные требования eBay: SKU, цена, аккаунт и хотя бы одно фото
func (a *EbayAdapter) Validate(listing *models.Listing) models.ValidationResult {
	var errs []string
	if strings.TrimSpace(listing.SKU) == "" {
		errs = append(errs, "SKU is required for eBay listings.")
	}
	if !listing.AskingPrice.IsPositive() {
		errs = append(errs, "Asking price must be greater than 0.")
	}
	if !listing.HasCredential() {
		errs = append(errs, "Platform credential must be assigned before publishing.")
	}
	if len(listing.Media) == 0 {
		errs = append(errs, "At least one photo is required by eBay.")
	}

	if len(errs) > 0 {
		return models.ValidationResult{Success: false, Message: "Listing missing eBay requirements", Errors: errs}
	}
	return models.ValidationResult{Success: true}
}

// Publish создает inventory item, offer и публикует его. Ошибка любого шага
// возвращается как failed-результат; повтор выполняет очередь целиком.
func (a *EbayAdapter) Publish(ctx context.Context, listing *models.Listing, credential *models.DecryptedCredential, pc PublishContext) (*models.PublishResult, error) {
	req := a.buildRequest(listing, credential, pc)

	res, err := a.client.CreateListing(ctx, req)
	if err != nil {
		return &models.PublishResult{
			Platform: models.PlatformEbay,
			Success:  false,
			Status:   models.PublishStatusFailed,
			Message:  err.Error(),
		}, nil
	}

	return &models.PublishResult{
		Platform:   models.PlatformEbay,
		Success:    true,
		Status:     models.PublishStatusLive,
		ExternalID: res.ListingID,
		URL:        res.URL,
		Metadata: map[string]interface{}{
			"offerId": res.OfferID,
			"sku":     res.SKU,
			"account": credential.AccountName,
		},
	}, nil
}

func (a *EbayAdapter) buildRequest(listing *models.Listing, credential *models.DecryptedCredential, pc PublishContext) *models.EbayListingRequest {
	sku := strings.TrimSpace(listing.SKU)
	if sku == "" {
		sku = "resale-" + listing.ID
	}

	description := listing.Description
	if description == "" && listing.PurchaseItem != nil {
		description = listing.PurchaseItem.Title
	}
	if description == "" {
		description = "Resale listing"
	}

	imageURLs := make([]string, 0, len(listing.Media))
	for _, m := range listing.Media {
		imageURLs = append(imageURLs, m.URL)
	}

	quantity := listing.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	return &models.EbayListingRequest{
		ListingID:   listing.ID,
		JobID:       pc.JobID,
		SKU:         sku,
		Title:       listing.Title,
		Description: description,
		Condition:   listing.Condition,
		Quantity:    quantity,
		Price:       listing.AskingPrice,
		Currency:    a.defaults.Currency,
		ImageURLs:   imageURLs,
		Aspects:     map[string][]string{},

		CategoryID: firstNonEmpty(
			strings.TrimSpace(listing.PlatformSetting("categoryId")),
			listing.Category,
			credential.MetadataString("defaultCategoryId"),
		),
		MarketplaceID: firstNonEmpty(
			listing.PlatformSetting("marketplaceId"),
			credential.MetadataString("marketplaceId"),
			a.defaults.MarketplaceID,
		),
		PaymentPolicyID: firstNonEmpty(
			listing.PlatformSetting("paymentPolicyId"),
			credential.MetadataString("defaultPaymentPolicyId"),
			a.defaults.PaymentPolicyID,
		),
		FulfillmentPolicyID: firstNonEmpty(
			listing.PlatformSetting("fulfillmentPolicyId"),
			credential.MetadataString("defaultFulfillmentPolicyId"),
			a.defaults.FulfillmentPolicyID,
		),
		ReturnPolicyID: firstNonEmpty(
			listing.PlatformSetting("returnPolicyId"),
			credential.MetadataString("defaultReturnPolicyId"),
			a.defaults.ReturnPolicyID,
		),
		MerchantLocationKey: firstNonEmpty(
			listing.PlatformSetting("merchantLocationKey"),
			a.defaults.MerchantLocationKey,
		),

		Credential: credential,
	}
}

// UpdateStatus пишет ключ "ebay" в метаданные; ACTIVE при успехе, иначе PENDING
func (a *EbayAdapter) UpdateStatus(ctx context.Context, listingID string, result *models.PublishResult) error {
	status := models.ListingStatusPending
	if result.Success {
		status = models.ListingStatusActive
	}

	patch := map[string]interface{}{
		ebayMetadataKey: platformEntry(result, a.now()),
	}
	return a.listings.UpdateListingMetadataAndStatus(ctx, listingID, patch, statusPtr(status))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
