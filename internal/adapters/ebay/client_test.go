package ebay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/athebyme/listing-publisher/internal/adapters/logger"
	"github.com/athebyme/listing-publisher/internal/domain/models"
	"github.com/athebyme/listing-publisher/internal/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryAudit struct {
	mu   sync.Mutex
	logs []models.EbaySyncLog
}

func (m *memoryAudit) SaveSyncLog(_ context.Context, log *models.EbaySyncLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, *log)
	return nil
}

// fakeEbay эмулирует token endpoint и три вызова Inventory API
type fakeEbay struct {
	tokenCalls  int32
	offerStatus int
	offerBody   string
	lastOffer   map[string]interface{}
	lastItem    map[string]interface{}
	authHeaders []string
	mu          sync.Mutex
}

func (f *fakeEbay) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/identity/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.tokenCalls, 1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "refresh-1", r.PostForm.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"access-1","token_type":"Bearer","expires_in":7200}`)
	})

	mux.HandleFunc("/sell/inventory/v1/inventory_item/PYX-001", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		f.record(r, &f.lastItem)
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/sell/inventory/v1/offer", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		f.record(r, &f.lastOffer)
		status := f.offerStatus
		if status == 0 {
			status = http.StatusCreated
		}
		w.WriteHeader(status)
		body := f.offerBody
		if body == "" {
			body = `{"offerId":"offer-1"}`
		}
		_, _ = io.WriteString(w, body)
	})

	mux.HandleFunc("/sell/inventory/v1/offer/offer-1/publish", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		f.record(r, nil)
		_, _ = io.WriteString(w, `{"listingId":"110011"}`)
	})

	return mux
}

func (f *fakeEbay) record(r *http.Request, into *map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
	if into != nil {
		_ = json.NewDecoder(r.Body).Decode(into)
	}
}

func newTestClient(t *testing.T, fake *fakeEbay, audit SyncLogWriter) *Client {
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	return NewClient(Config{
		APIBaseURL:   srv.URL + "/",
		TokenURL:     srv.URL + "/identity/v1/oauth2/token",
		ClientID:     "client",
		ClientSecret: "secret",
	}, audit, logger.NewFromZap(zap.NewNop()))
}

func listingRequest() *models.EbayListingRequest {
	return &models.EbayListingRequest{
		ListingID:           "lst-1",
		JobID:               "job-1",
		SKU:                 "PYX-001",
		Title:               "Vintage Pyrex bowl",
		Description:         "Great condition",
		Quantity:            1,
		Price:               decimal.RequireFromString("24.5"),
		Currency:            "USD",
		ImageURLs:           []string{"https://cdn.example.com/1.jpg"},
		Aspects:             map[string][]string{},
		MarketplaceID:       "EBAY_US",
		PaymentPolicyID:     "pay-1",
		MerchantLocationKey: "DEFAULT",
		Credential: &models.DecryptedCredential{
			ID:          "cred-1",
			AccountName: "thrift-store",
			Secret:      "refresh-1",
			IsActive:    true,
		},
	}
}

func TestClient_CreateListing(t *testing.T) {
	fake := &fakeEbay{}
	audit := &memoryAudit{}
	client := newTestClient(t, fake, audit)

	res, err := client.CreateListing(context.Background(), listingRequest())
	require.NoError(t, err)

	assert.Equal(t, &models.EbayListingResult{
		SKU:       "PYX-001",
		OfferID:   "offer-1",
		ListingID: "110011",
		URL:       "https://www.ebay.com/itm/110011",
	}, res)

	assert.Equal(t, "FIXED_PRICE", fake.lastOffer["format"])
	assert.Equal(t, "EBAY_US", fake.lastOffer["marketplaceId"])
	price := fake.lastOffer["pricingSummary"].(map[string]interface{})["price"].(map[string]interface{})
	assert.Equal(t, "24.50", price["value"])
	assert.Equal(t, "USD", price["currency"])
	policies := fake.lastOffer["listingPolicies"].(map[string]interface{})
	assert.Equal(t, "pay-1", policies["paymentPolicyId"])
	assert.NotContains(t, policies, "returnPolicyId")

	assert.Equal(t, "PYX-001", fake.lastItem["sku"])
	for _, h := range fake.authHeaders {
		assert.Equal(t, "Bearer access-1", h)
	}

	require.Len(t, audit.logs, 3)
	actions := []models.EbaySyncAction{
		models.EbayActionCreateInventoryItem,
		models.EbayActionCreateOffer,
		models.EbayActionPublishOffer,
	}
	for i, log := range audit.logs {
		assert.Equal(t, actions[i], log.Action)
		assert.Equal(t, models.EbaySyncSuccess, log.Status)
		assert.Equal(t, "lst-1", log.EntityID)
		assert.Equal(t, "job-1", log.JobID)
	}
	assert.Equal(t, http.StatusNoContent, audit.logs[0].ResponseCode)

	// токен переиспользуется между публикациями одного аккаунта
	_, err = client.CreateListing(context.Background(), listingRequest())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.tokenCalls))
}

func TestClient_CreateListing_OfferRejected(t *testing.T) {
	fake := &fakeEbay{offerStatus: http.StatusBadRequest, offerBody: `{"errors":[{"message":"Invalid category"}]}`}
	audit := &memoryAudit{}
	client := newTestClient(t, fake, audit)

	_, err := client.CreateListing(context.Background(), listingRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrExternalAPI))

	require.Len(t, audit.logs, 2, "publish step must not run after a failed offer")
	failed := audit.logs[1]
	assert.Equal(t, models.EbaySyncFailed, failed.Status)
	assert.Equal(t, http.StatusBadRequest, failed.ResponseCode)
	assert.Contains(t, failed.ResponseData, "Invalid category")
	assert.NotEmpty(t, failed.ErrorMessage)
}

func TestClient_CreateListing_MissingOfferID(t *testing.T) {
	fake := &fakeEbay{offerBody: `{}`}
	client := newTestClient(t, fake, &memoryAudit{})

	_, err := client.CreateListing(context.Background(), listingRequest())
	assert.ErrorIs(t, err, ErrOfferCreationFailed)
	assert.Equal(t, "eBay offer creation failed", err.Error())
}
