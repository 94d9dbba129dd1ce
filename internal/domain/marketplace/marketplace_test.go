package marketplace

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/athebyme/listing-publisher/internal/domain/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type writeCall struct {
	listingID string
	patch     map[string]interface{}
	status    *models.ListingStatus
}

// memoryListings хранит метаданные так же, как jsonb || в хранилище
type memoryListings struct {
	mu       sync.Mutex
	metadata map[string]map[string]interface{}
	status   map[string]models.ListingStatus
	calls    []writeCall
}

func newMemoryListings() *memoryListings {
	return &memoryListings{
		metadata: make(map[string]map[string]interface{}),
		status:   make(map[string]models.ListingStatus),
	}
}

func (m *memoryListings) UpdateListingMetadataAndStatus(_ context.Context, listingID string, patch map[string]interface{}, status *models.ListingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, writeCall{listingID: listingID, patch: patch, status: status})
	meta, ok := m.metadata[listingID]
	if !ok {
		meta = make(map[string]interface{})
		m.metadata[listingID] = meta
	}
	for k, v := range patch {
		meta[k] = v
	}
	if status != nil {
		m.status[listingID] = *status
	}
	return nil
}

type stubEbayClient struct {
	req *models.EbayListingRequest
	res *models.EbayListingResult
	err error
}

func (s *stubEbayClient) CreateListing(_ context.Context, req *models.EbayListingRequest) (*models.EbayListingResult, error) {
	s.req = req
	return s.res, s.err
}

func validEbayListing() *models.Listing {
	return &models.Listing{
		ID:                   "lst-1",
		Title:                "Vintage Pyrex bowl",
		SKU:                  "PYX-001",
		Platform:             models.PlatformEbay,
		Status:               models.ListingStatusDraft,
		PlatformCredentialID: "cred-1",
		AskingPrice:          decimal.RequireFromString("24.5"),
		Media:                []models.ListingMedia{{ID: "m1", URL: "https://cdn.example.com/1.jpg"}},
	}
}

func ebayCredential() *models.DecryptedCredential {
	return &models.DecryptedCredential{
		ID:          "cred-1",
		Platform:    models.PlatformEbay,
		AccountName: "thrift-store",
		Secret:      "refresh-token",
		IsActive:    true,
		Metadata: map[string]interface{}{
			"defaultPaymentPolicyId": "pay-cred",
			"defaultReturnPolicyId":  "ret-cred",
			"defaultCategoryId":      "cat-cred",
		},
	}
}

func TestNewRegistry(t *testing.T) {
	listings := newMemoryListings()
	ebay := NewEbayAdapter(&stubEbayClient{}, listings, EbayDefaults{})
	fb := NewFacebookMarketplaceAdapter(listings)

	registry, err := NewRegistry(ebay, fb)
	require.NoError(t, err)

	adapter, ok := registry.Resolve(models.PlatformEbay)
	require.True(t, ok)
	assert.Same(t, ebay, adapter)

	_, ok = registry.Resolve(models.PlatformPoshmark)
	assert.False(t, ok)

	assert.Equal(t, []models.Platform{models.PlatformEbay, models.PlatformFacebookMarketplace}, registry.Platforms())

	_, err = NewRegistry(ebay, NewEbayAdapter(&stubEbayClient{}, listings, EbayDefaults{}))
	assert.Error(t, err)
}

func TestEbayAdapter_Validate(t *testing.T) {
	adapter := NewEbayAdapter(&stubEbayClient{}, newMemoryListings(), EbayDefaults{})

	t.Run("valid", func(t *testing.T) {
		res := adapter.Validate(validEbayListing())
		assert.True(t, res.Success)
		assert.Empty(t, res.Errors)
	})

	t.Run("zero price", func(t *testing.T) {
		listing := validEbayListing()
		listing.AskingPrice = decimal.Zero

		res := adapter.Validate(listing)
		assert.False(t, res.Success)
		assert.Equal(t, []string{"Asking price must be greater than 0."}, res.Errors)
	})

	t.Run("everything missing", func(t *testing.T) {
		res := adapter.Validate(&models.Listing{ID: "lst-2", Platform: models.PlatformEbay})
		assert.False(t, res.Success)
		assert.Equal(t, "Listing missing eBay requirements", res.Message)
		assert.Equal(t, []string{
			"SKU is required for eBay listings.",
			"Asking price must be greater than 0.",
			"Platform credential must be assigned before publishing.",
			"At least one photo is required by eBay.",
		}, res.Errors)
	})
}

func TestEbayAdapter_Publish(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client := &stubEbayClient{res: &models.EbayListingResult{
			SKU:       "PYX-001",
			OfferID:   "offer-9",
			ListingID: "110011",
			URL:       "https://www.ebay.com/itm/110011",
		}}
		adapter := NewEbayAdapter(client, newMemoryListings(), EbayDefaults{PaymentPolicyID: "pay-global", FulfillmentPolicyID: "ful-global"})

		listing := validEbayListing()
		listing.PlatformSettings = map[string]interface{}{"paymentPolicyId": "pay-listing"}

		res, err := adapter.Publish(context.Background(), listing, ebayCredential(), PublishContext{JobID: "job-1"})
		require.NoError(t, err)

		assert.True(t, res.Success)
		assert.Equal(t, models.PublishStatusLive, res.Status)
		assert.Equal(t, "110011", res.ExternalID)
		assert.Equal(t, "https://www.ebay.com/itm/110011", res.URL)
		assert.Equal(t, "offer-9", res.Metadata["offerId"])

		req := client.req
		require.NotNil(t, req)
		assert.Equal(t, "job-1", req.JobID)
		assert.Equal(t, "pay-listing", req.PaymentPolicyID, "listing override wins")
		assert.Equal(t, "ful-global", req.FulfillmentPolicyID, "global default is the last resort")
		assert.Equal(t, "ret-cred", req.ReturnPolicyID, "credential default beats global")
		assert.Equal(t, "cat-cred", req.CategoryID)
		assert.Equal(t, "EBAY_US", req.MarketplaceID)
		assert.Equal(t, "USD", req.Currency)
		assert.Equal(t, 1, req.Quantity)
		assert.Equal(t, "Resale listing", req.Description)
		assert.Equal(t, []string{"https://cdn.example.com/1.jpg"}, req.ImageURLs)
	})

	t.Run("client error becomes failed result", func(t *testing.T) {
		client := &stubEbayClient{err: errors.New("eBay offer creation failed")}
		adapter := NewEbayAdapter(client, newMemoryListings(), EbayDefaults{})

		res, err := adapter.Publish(context.Background(), validEbayListing(), ebayCredential(), PublishContext{})
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, models.PublishStatusFailed, res.Status)
		assert.Equal(t, "eBay offer creation failed", res.Message)
	})

	t.Run("sku fallback", func(t *testing.T) {
		client := &stubEbayClient{res: &models.EbayListingResult{}}
		adapter := NewEbayAdapter(client, newMemoryListings(), EbayDefaults{})

		listing := validEbayListing()
		listing.SKU = "  "
		listing.PurchaseItem = &models.PurchaseItem{ID: "p1", Title: "Pyrex from Goodwill"}

		_, err := adapter.Publish(context.Background(), listing, ebayCredential(), PublishContext{})
		require.NoError(t, err)
		assert.Equal(t, "resale-lst-1", client.req.SKU)
		assert.Equal(t, "Pyrex from Goodwill", client.req.Description)
	})
}

func TestUpdateStatus_PreservesOtherPlatforms(t *testing.T) {
	listings := newMemoryListings()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ebay := NewEbayAdapter(&stubEbayClient{}, listings, EbayDefaults{})
	ebay.now = func() time.Time { return fixed }
	fb := NewFacebookMarketplaceAdapter(listings)
	fb.now = func() time.Time { return fixed }

	ctx := context.Background()
	require.NoError(t, ebay.UpdateStatus(ctx, "lst-1", &models.PublishResult{
		Platform:   models.PlatformEbay,
		Success:    true,
		Status:     models.PublishStatusLive,
		ExternalID: "110011",
	}))
	assert.Equal(t, models.ListingStatusActive, listings.status["lst-1"])

	draft, err := fb.Publish(ctx, validEbayListing(), nil, PublishContext{})
	require.NoError(t, err)
	require.NoError(t, fb.UpdateStatus(ctx, "lst-1", draft))

	meta := listings.metadata["lst-1"]
	require.Contains(t, meta, "ebay")
	require.Contains(t, meta, "facebookMarketplace")

	ebayEntry := meta["ebay"].(map[string]interface{})
	assert.Equal(t, "110011", ebayEntry["externalId"])
	assert.Equal(t, "2026-03-01T12:00:00Z", ebayEntry["updatedAt"])

	fbEntry := meta["facebookMarketplace"].(map[string]interface{})
	assert.Equal(t, true, fbEntry["requiresManualAction"])
	assert.Equal(t, "draft", fbEntry["status"])
	assert.Equal(t, models.ListingStatusDraft, listings.status["lst-1"])
}

func TestEbayAdapter_UpdateStatusFailure(t *testing.T) {
	listings := newMemoryListings()
	adapter := NewEbayAdapter(&stubEbayClient{}, listings, EbayDefaults{})

	err := adapter.UpdateStatus(context.Background(), "lst-1", &models.PublishResult{
		Platform: models.PlatformEbay,
		Status:   models.PublishStatusFailed,
		Message:  "eBay listing publish failed",
	})
	require.NoError(t, err)
	require.Len(t, listings.calls, 1)
	assert.Equal(t, models.ListingStatusPending, *listings.calls[0].status)

	entry := listings.metadata["lst-1"]["ebay"].(map[string]interface{})
	assert.Equal(t, "eBay listing publish failed", entry["message"])
	assert.Equal(t, false, entry["success"])
}

func TestFacebookAdapter(t *testing.T) {
	adapter := NewFacebookMarketplaceAdapter(newMemoryListings())

	bare := &models.Listing{ID: "lst-3", Title: "Lamp"}
	assert.True(t, adapter.Validate(bare).Success)

	res, err := adapter.Publish(context.Background(), bare, nil, PublishContext{JobID: "job-7"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, models.PublishStatusDraft, res.Status)
	assert.Equal(t, true, res.Metadata["requiresManualPosting"])
	assert.Len(t, res.Metadata["instructions"], 6)
	assert.Equal(t, "job-7", res.Metadata["jobId"])

	warnings := res.Metadata["warnings"].([]string)
	assert.Contains(t, warnings, "Title must be at least 5 characters long.")
	assert.Contains(t, warnings, "At least one photo is required.")
	assert.Contains(t, warnings, "Location is required for Facebook Marketplace listings.")
}
