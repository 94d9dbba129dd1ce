// Package ebay клиент eBay Sell Inventory API.
//
// Публикация состоит из трех последовательных вызовов: inventory_item (PUT по SKU),
// offer (POST) и offer/{id}/publish (POST). Каждый вызов пишется в журнал аудита
// независимо от результата. Повторов внутри клиента нет.
package ebay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/athebyme/listing-publisher/internal/domain/models"
	"github.com/athebyme/listing-publisher/internal/utils"
	"github.com/athebyme/listing-publisher/pkg/interfaces"
	"github.com/patrickmn/go-cache"
	"golang.org/x/oauth2"
)

const (
	maxResponseSize = 1 << 20
	listingURLBase  = "https://www.ebay.com/itm/"
	auditEntityType = "Listing"
)

var (
	ErrOfferCreationFailed  = errors.New("eBay offer creation failed")
	ErrListingPublishFailed = errors.New("eBay listing publish failed")
)

// Config параметры доступа к eBay API
type Config struct {
	APIBaseURL    string
	TokenURL      string
	ClientID      string
	ClientSecret  string
	Scopes        []string
	Timeout       time.Duration
	TokenCacheTTL time.Duration
}

// SyncLogWriter журнал аудита вызовов
type SyncLogWriter interface {
	SaveSyncLog(ctx context.Context, log *models.EbaySyncLog) error
}

// Client реализует marketplace.EbayListingClient
type Client struct {
	cfg        Config
	httpClient *http.Client
	audit      SyncLogWriter
	tokens     *cache.Cache
	logger     interfaces.LoggerPort
}

// cachedSource источник токенов одного аккаунта; пересоздается при ротации секрета
type cachedSource struct {
	refreshToken string
	source       oauth2.TokenSource
}

// NewClient создает клиент eBay
func NewClient(cfg Config, audit SyncLogWriter, logger interfaces.LoggerPort) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.TokenCacheTTL <= 0 {
		cfg.TokenCacheTTL = time.Hour
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		audit:      audit,
		tokens:     cache.New(cfg.TokenCacheTTL, 2*cfg.TokenCacheTTL),
		logger:     logger.WithField("component", "ebay"),
	}
}

// tokenSource возвращает кэшированный источник access-токенов для аккаунта.
// Секрет аккаунта хранит refresh-токен eBay.
func (c *Client) tokenSource(credential *models.DecryptedCredential) oauth2.TokenSource {
	if cached, ok := c.tokens.Get(credential.ID); ok {
		if cs := cached.(*cachedSource); cs.refreshToken == credential.Secret {
			return cs.source
		}
	}

	conf := &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
		Scopes: c.cfg.Scopes,
	}

	// источник живет дольше запроса, поэтому контекст фоновый
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.httpClient)
	source := oauth2.ReuseTokenSource(nil, conf.TokenSource(ctx, &oauth2.Token{RefreshToken: credential.Secret}))

	c.tokens.SetDefault(credential.ID, &cachedSource{refreshToken: credential.Secret, source: source})
	return source
}

type inventoryItem struct {
	SKU          string       `json:"sku"`
	Condition    string       `json:"condition,omitempty"`
	Availability availability `json:"availability"`
	Product      product      `json:"product"`
}

type availability struct {
	ShipToLocationAvailability struct {
		Quantity int `json:"quantity"`
	} `json:"shipToLocationAvailability"`
}

type product struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	ImageURLs   []string            `json:"imageUrls"`
	Aspects     map[string][]string `json:"aspects"`
}

type offer struct {
	SKU                 string          `json:"sku"`
	MarketplaceID       string          `json:"marketplaceId"`
	Format              string          `json:"format"`
	AvailableQuantity   int             `json:"availableQuantity"`
	ListingDescription  string          `json:"listingDescription"`
	CategoryID          string          `json:"categoryId,omitempty"`
	ListingPolicies     listingPolicies `json:"listingPolicies"`
	PricingSummary      pricingSummary  `json:"pricingSummary"`
	MerchantLocationKey string          `json:"merchantLocationKey"`
}

type listingPolicies struct {
	PaymentPolicyID     string `json:"paymentPolicyId,omitempty"`
	FulfillmentPolicyID string `json:"fulfillmentPolicyId,omitempty"`
	ReturnPolicyID      string `json:"returnPolicyId,omitempty"`
}

type pricingSummary struct {
	Price struct {
		Currency string `json:"currency"`
		Value    string `json:"value"`
	} `json:"price"`
}

// CreateListing выполняет три шага протокола строго последовательно
func (c *Client) CreateListing(ctx context.Context, req *models.EbayListingRequest) (*models.EbayListingResult, error) {
	if req.Credential == nil {
		return nil, utils.ErrMissingCredential
	}
	source := c.tokenSource(req.Credential)

	if err := c.createInventoryItem(ctx, source, req); err != nil {
		return nil, err
	}

	offerID, err := c.createOffer(ctx, source, req)
	if err != nil {
		return nil, err
	}

	listingID, err := c.publishOffer(ctx, source, req, offerID)
	if err != nil {
		return nil, err
	}

	return &models.EbayListingResult{
		SKU:       req.SKU,
		OfferID:   offerID,
		ListingID: listingID,
		URL:       listingURLBase + listingID,
	}, nil
}

func (c *Client) createInventoryItem(ctx context.Context, source oauth2.TokenSource, req *models.EbayListingRequest) error {
	item := inventoryItem{
		SKU:       req.SKU,
		Condition: req.Condition,
		Product: product{
			Title:       req.Title,
			Description: req.Description,
			ImageURLs:   req.ImageURLs,
			Aspects:     req.Aspects,
		},
	}
	item.Availability.ShipToLocationAvailability.Quantity = req.Quantity

	endpoint := c.cfg.APIBaseURL + "/sell/inventory/v1/inventory_item/" + url.PathEscape(req.SKU)
	_, err := c.call(ctx, source, req, models.EbayActionCreateInventoryItem, http.MethodPut, endpoint, item)
	return err
}

func (c *Client) createOffer(ctx context.Context, source oauth2.TokenSource, req *models.EbayListingRequest) (string, error) {
	description := req.Description
	if description == "" {
		description = req.Title
	}

	body := offer{
		SKU:                req.SKU,
		MarketplaceID:      req.MarketplaceID,
		Format:             "FIXED_PRICE",
		AvailableQuantity:  req.Quantity,
		ListingDescription: description,
		CategoryID:         req.CategoryID,
		ListingPolicies: listingPolicies{
			PaymentPolicyID:     req.PaymentPolicyID,
			FulfillmentPolicyID: req.FulfillmentPolicyID,
			ReturnPolicyID:      req.ReturnPolicyID,
		},
		MerchantLocationKey: req.MerchantLocationKey,
	}
	body.PricingSummary.Price.Currency = req.Currency
	body.PricingSummary.Price.Value = req.Price.StringFixed(2)

	raw, err := c.call(ctx, source, req, models.EbayActionCreateOffer, http.MethodPost, c.cfg.APIBaseURL+"/sell/inventory/v1/offer", body)
	if err != nil {
		return "", err
	}

	var resp struct {
		OfferID string `json:"offerId"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.OfferID == "" {
		return "", ErrOfferCreationFailed
	}
	return resp.OfferID, nil
}

func (c *Client) publishOffer(ctx context.Context, source oauth2.TokenSource, req *models.EbayListingRequest, offerID string) (string, error) {
	endpoint := c.cfg.APIBaseURL + "/sell/inventory/v1/offer/" + url.PathEscape(offerID) + "/publish"

	raw, err := c.call(ctx, source, req, models.EbayActionPublishOffer, http.MethodPost, endpoint, struct{}{})
	if err != nil {
		return "", err
	}

	var resp struct {
		ListingID string `json:"listingId"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.ListingID == "" {
		return "", ErrListingPublishFailed
	}
	return resp.ListingID, nil
}

// call выполняет один запрос к API и пишет его в журнал аудита
func (c *Client) call(ctx context.Context, source oauth2.TokenSource, req *models.EbayListingRequest, action models.EbaySyncAction, method, endpoint string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации запроса eBay: %w", err)
	}

	entry := &models.EbaySyncLog{
		EntityType:    auditEntityType,
		EntityID:      req.ListingID,
		Action:        action,
		Status:        models.EbaySyncFailed,
		RequestURL:    endpoint,
		RequestMethod: method,
		RequestData:   string(payload),
		JobID:         req.JobID,
	}

	start := time.Now()
	respBody, err := c.do(ctx, source, method, endpoint, payload, entry)
	entry.DurationMs = time.Since(start).Milliseconds()

	if err != nil {
		entry.ErrorMessage = err.Error()
		c.logger.ErrorWithContext(ctx, "Ошибка вызова eBay API",
			interfaces.LogField{Key: "action", Value: string(action)},
			interfaces.LogField{Key: "listing_id", Value: req.ListingID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
	} else {
		entry.Status = models.EbaySyncSuccess
	}
	c.saveAudit(ctx, entry)

	return respBody, err
}

func (c *Client) do(ctx context.Context, source oauth2.TokenSource, method, endpoint string, payload []byte, entry *models.EbaySyncLog) ([]byte, error) {
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: token refresh failed: %v", utils.ErrExternalAPI, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса eBay: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Content-Language", "en-US")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrExternalAPI, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	entry.ResponseCode = resp.StatusCode
	entry.ResponseData = string(respBody)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", utils.ErrExternalAPI, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: eBay %s returned status %d", utils.ErrExternalAPI, entry.Action, resp.StatusCode)
	}
	return respBody, nil
}

// saveAudit ошибка журнала не влияет на результат публикации
func (c *Client) saveAudit(ctx context.Context, entry *models.EbaySyncLog) {
	if c.audit == nil {
		return
	}
	if err := c.audit.SaveSyncLog(context.WithoutCancel(ctx), entry); err != nil {
		c.logger.WarnWithContext(ctx, "Не удалось записать аудит вызова eBay",
			interfaces.LogField{Key: "action", Value: string(entry.Action)},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
	}
}
