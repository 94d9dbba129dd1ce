package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Platform идентификатор маркетплейса
type Platform string

const (
	PlatformEbay                Platform = "EBAY"
	PlatformFacebookMarketplace Platform = "FACEBOOK_MARKETPLACE"
	PlatformOfferUp             Platform = "OFFERUP"
	PlatformPoshmark            Platform = "POSHMARK"
	PlatformMercari             Platform = "MERCARI"
	PlatformShopGoodwill        Platform = "SHOPGOODWILL"
	PlatformOther               Platform = "OTHER"
)

// Platforms полный список известных маркетплейсов
var Platforms = []Platform{
	PlatformEbay,
	PlatformFacebookMarketplace,
	PlatformOfferUp,
	PlatformPoshmark,
	PlatformMercari,
	PlatformShopGoodwill,
	PlatformOther,
}

// IsValid проверяет, что платформа входит в перечисление
func (p Platform) IsValid() bool {
	for _, known := range Platforms {
		if p == known {
			return true
		}
	}
	return false
}

// ParsePlatform разбирает строку в Platform
func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	if !p.IsValid() {
		return "", fmt.Errorf("unknown platform %q", s)
	}
	return p, nil
}

// ListingStatus статус листинга
type ListingStatus string

const (
	ListingStatusDraft    ListingStatus = "DRAFT"
	ListingStatusActive   ListingStatus = "ACTIVE"
	ListingStatusPending  ListingStatus = "PENDING"
	ListingStatusSold     ListingStatus = "SOLD"
	ListingStatusArchived ListingStatus = "ARCHIVED"
)

// ListingMedia фотография листинга
type ListingMedia struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Position int    `json:"position"`
}

// PurchaseItem позиция закупки, из которой создан листинг
type PurchaseItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Listing каноническая запись товара к продаже
type Listing struct {
	ID                   string                 `json:"id"`
	Title                string                 `json:"title"`
	Description          string                 `json:"description,omitempty"`
	SKU                  string                 `json:"sku,omitempty"`
	Platform             Platform               `json:"platform"`
	Status               ListingStatus          `json:"status"`
	PlatformCredentialID string                 `json:"platformCredentialId,omitempty"`
	AskingPrice          decimal.Decimal        `json:"askingPrice"`
	Quantity             int                    `json:"quantity"`
	Condition            string                 `json:"condition,omitempty"`
	Category             string                 `json:"category,omitempty"`
	Location             string                 `json:"location,omitempty"`
	PlatformSettings     map[string]interface{} `json:"platformSettings,omitempty"`
	Metadata             map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt            time.Time              `json:"createdAt"`
	UpdatedAt            time.Time              `json:"updatedAt"`

	// Связи, загружаемые вместе с листингом
	Media        []ListingMedia      `json:"media,omitempty"`
	PurchaseItem *PurchaseItem       `json:"purchaseItem,omitempty"`
	Credential   *PlatformCredential `json:"credential,omitempty"`
}

// HasCredential сообщает, назначен ли листингу аккаунт маркетплейса
func (l *Listing) HasCredential() bool {
	return l.PlatformCredentialID != ""
}

// PlatformSetting возвращает строковую настройку маркетплейса или пустую строку
func (l *Listing) PlatformSetting(key string) string {
	if l.PlatformSettings == nil {
		return ""
	}
	s, _ := l.PlatformSettings[key].(string)
	return s
}

// ListingSummary краткие данные листинга для списков задач
type ListingSummary struct {
	ID     string        `json:"id"`
	Title  string        `json:"title"`
	Status ListingStatus `json:"status"`
}
