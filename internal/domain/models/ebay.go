package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EbayListingRequest данные для трехшагового создания объявления на eBay
type EbayListingRequest struct {
	ListingID   string
	JobID       string
	SKU         string
	Title       string
	Description string
	Condition   string
	Quantity    int
	Price       decimal.Decimal
	Currency    string
	ImageURLs   []string
	Aspects     map[string][]string

	CategoryID          string
	MarketplaceID       string
	PaymentPolicyID     string
	FulfillmentPolicyID string
	ReturnPolicyID      string
	MerchantLocationKey string

	Credential *DecryptedCredential
}

// EbayListingResult итог успешной публикации на eBay
type EbayListingResult struct {
	SKU       string `json:"sku"`
	OfferID   string `json:"offerId"`
	ListingID string `json:"listingId"`
	URL       string `json:"url"`
}

// EbaySyncAction шаг протокола eBay
type EbaySyncAction string

const (
	EbayActionCreateInventoryItem EbaySyncAction = "CreateInventoryItem"
	EbayActionCreateOffer         EbaySyncAction = "CreateOffer"
	EbayActionPublishOffer        EbaySyncAction = "PublishOffer"
)

// EbaySyncStatus итог одного HTTP-вызова eBay
type EbaySyncStatus string

const (
	EbaySyncSuccess EbaySyncStatus = "Success"
	EbaySyncFailed  EbaySyncStatus = "Failed"
)

// EbaySyncLog запись журнала аудита вызовов eBay API
type EbaySyncLog struct {
	ID            string         `json:"id"`
	EntityType    string         `json:"entityType"`
	EntityID      string         `json:"entityId"`
	Action        EbaySyncAction `json:"action"`
	Status        EbaySyncStatus `json:"status"`
	RequestURL    string         `json:"requestUrl"`
	RequestMethod string         `json:"requestMethod"`
	RequestData   string         `json:"requestData,omitempty"`
	ResponseCode  int            `json:"responseCode"`
	ResponseData  string         `json:"responseData,omitempty"`
	ErrorMessage  string         `json:"errorMessage,omitempty"`
	DurationMs    int64          `json:"durationMs"`
	JobID         string         `json:"jobId,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}
