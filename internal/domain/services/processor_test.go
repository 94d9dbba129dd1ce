package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/athebyme/listing-publisher/internal/adapters/messaging"
	"github.com/athebyme/listing-publisher/internal/domain/marketplace"
	"github.com/athebyme/listing-publisher/internal/domain/models"
	"github.com/athebyme/listing-publisher/internal/utils"
	pkgerrors "github.com/athebyme/listing-publisher/pkg/errors"
	"github.com/athebyme/listing-publisher/pkg/interfaces"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func publishJob(t *testing.T, id, listingID string, platform models.Platform) *interfaces.Job {
	t.Helper()
	payload, err := json.Marshal(models.PublishJobPayload{ListingID: listingID, Platform: platform, RequestedAt: testNow})
	require.NoError(t, err)
	return &interfaces.Job{ID: id, Type: PublishJobType, Payload: payload, MaxRetry: 3}
}

func decodeResult(t *testing.T, data []byte) *models.PublishResult {
	t.Helper()
	var result models.PublishResult
	require.NoError(t, json.Unmarshal(data, &result))
	return &result
}

func TestProcessor_RetryRevalidates(t *testing.T) {
	h := newHarness(t, validListing("lst-1"))
	ctx := context.Background()
	h.ebay.err = errors.New("eBay CreateOffer returned status 503")

	res, err := h.orchestrator.PublishListing(ctx, "lst-1", nil)
	require.NoError(t, err)
	jobID := res.Queued[0].JobID

	h.queue.drain(ctx, h.processor.Handle)

	first, err := h.orchestrator.GetJobStatus(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.JobStateDelayed, first.State)
	assert.Equal(t, 1, first.AttemptsMade)
	assert.Equal(t, "eBay CreateOffer returned status 503", first.FailedReason)
	assert.Equal(t, models.ListingStatusPending, h.listings.get("lst-1").Status)

	// листинг стал невалидным между попытками
	h.listings.mutate("lst-1", func(l *models.Listing) { l.AskingPrice = decimal.Zero })
	h.ebay.err = nil

	_, err = h.metrics.RetryJob(ctx, jobID)
	require.NoError(t, err)
	h.queue.drain(ctx, h.processor.Handle)

	second, err := h.orchestrator.GetJobStatus(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.JobStateFailed, second.State)
	assert.GreaterOrEqual(t, second.AttemptsMade, first.AttemptsMade)
	assert.Equal(t, 2, second.AttemptsMade)
	assert.Equal(t, "Listing missing eBay requirements: Asking price must be greater than 0.", second.FailedReason)
	require.NotNil(t, second.ReturnValue)
	assert.Equal(t, models.PublishStatusValidationFailed, second.ReturnValue.Status)
	assert.Equal(t, []string{"Asking price must be greater than 0."}, second.ReturnValue.Errors)

	assert.Equal(t, 1, h.ebay.calls, "adapter must not publish an invalid listing")
	assert.Equal(t, 2, h.listings.updateCount("lst-1"))
}

func TestProcessor_FacebookDraftIsPermanent(t *testing.T) {
	listing := validListing("lst-fb")
	listing.Platform = models.PlatformFacebookMarketplace
	h := newHarness(t, listing)
	ctx := context.Background()

	res, err := h.orchestrator.PublishListing(ctx, "lst-fb", nil)
	require.NoError(t, err)
	require.Len(t, res.Queued, 1)

	h.queue.drain(ctx, h.processor.Handle)

	status, err := h.orchestrator.GetJobStatus(ctx, res.Queued[0].JobID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.JobStateFailed, status.State)
	assert.Equal(t, 1, status.AttemptsMade)
	require.NotNil(t, status.ReturnValue)
	assert.Equal(t, models.PublishStatusDraft, status.ReturnValue.Status)

	stored := h.listings.get("lst-fb")
	assert.Equal(t, models.ListingStatusDraft, stored.Status)
	entry, ok := stored.Metadata["facebookMarketplace"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, entry["requiresManualAction"])
}

func TestProcessor_ListingDeleted(t *testing.T) {
	h := newHarness(t)

	data, err := h.processor.Handle(context.Background(), publishJob(t, "job-1", "lst-gone", models.PlatformEbay))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsPermanent(err))
	assert.ErrorIs(t, err, utils.ErrListingNotFound)
	assert.Equal(t, "Listing lst-gone not found", err.Error())

	result := decodeResult(t, data)
	assert.Equal(t, models.PublishStatusFailed, result.Status)
	assert.Equal(t, 0, h.listings.updateCount("lst-gone"))
}

func TestProcessor_AdapterNotRegistered(t *testing.T) {
	listing := validListing("lst-1")
	h := newHarness(t, listing)

	_, err := h.processor.Handle(context.Background(), publishJob(t, "job-1", "lst-1", models.PlatformMercari))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsPermanent(err))
	assert.ErrorIs(t, err, utils.ErrAdapterNotRegistered)
	assert.Equal(t, 0, h.listings.updateCount("lst-1"))
}

func TestProcessor_CredentialFailures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(h *harness)
		permanent bool
		want      error
	}{
		{
			name: "credential removed from listing",
			setup: func(h *harness) {
				h.listings.mutate("lst-1", func(l *models.Listing) { l.PlatformCredentialID = "" })
			},
			permanent: true,
			want:      utils.ErrValidationFailed,
		},
		{
			name: "inactive credential",
			setup: func(h *harness) {
				h.credentials.credentials["cred-1"].IsActive = false
			},
			permanent: true,
			want:      utils.ErrCredentialInactive,
		},
		{
			name: "secret cannot be decrypted",
			setup: func(h *harness) {
				h.credentials.err = utils.ErrCredentialSecretUnavailable
			},
			permanent: true,
			want:      utils.ErrCredentialSecretUnavailable,
		},
		{
			name: "store unavailable",
			setup: func(h *harness) {
				h.credentials.err = errors.New("connection refused")
			},
			permanent: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, validListing("lst-1"))
			tt.setup(h)

			data, err := h.processor.Handle(context.Background(), publishJob(t, "job-1", "lst-1", models.PlatformEbay))
			require.Error(t, err)
			assert.Equal(t, tt.permanent, pkgerrors.IsPermanent(err))
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}

			assert.False(t, decodeResult(t, data).Success)
			assert.Equal(t, 1, h.listings.updateCount("lst-1"))
			assert.Equal(t, 0, h.ebay.calls)
		})
	}
}

// panickingAdapter адаптер, который падает посреди публикации
type panickingAdapter struct {
	listings      marketplace.ListingWriter
	results       []*models.PublishResult
	panicValidate bool
}

func (a *panickingAdapter) Platform() models.Platform { return models.PlatformMercari }

func (a *panickingAdapter) Supports(p models.Platform) bool { return p == models.PlatformMercari }

func (a *panickingAdapter) Validate(*models.Listing) models.ValidationResult {
	if a.panicValidate {
		panic("nil media slice")
	}
	return models.ValidationResult{Success: true}
}

func (a *panickingAdapter) Publish(context.Context, *models.Listing, *models.DecryptedCredential, marketplace.PublishContext) (*models.PublishResult, error) {
	panic("nil offer")
}

func (a *panickingAdapter) UpdateStatus(ctx context.Context, listingID string, result *models.PublishResult) error {
	a.results = append(a.results, result)
	return a.listings.UpdateListingMetadataAndStatus(ctx, listingID, map[string]interface{}{"mercari": result.Status}, nil)
}

func TestProcessor_AdapterPanicBecomesFailedResult(t *testing.T) {
	h := newHarness(t, validListing("lst-1"))
	adapter := &panickingAdapter{listings: h.listings}
	registry, err := marketplace.NewRegistry(adapter)
	require.NoError(t, err)
	h.processor.deps.Registry = registry

	data, err := h.processor.Handle(context.Background(), publishJob(t, "job-1", "lst-1", models.PlatformMercari))
	require.Error(t, err)
	assert.False(t, pkgerrors.IsPermanent(err))
	assert.Contains(t, err.Error(), "nil offer")

	require.Len(t, adapter.results, 1)
	assert.Equal(t, models.PublishStatusFailed, adapter.results[0].Status)
	assert.Equal(t, models.PublishStatusFailed, decodeResult(t, data).Status)
}

func TestProcessor_ValidatePanicStillUpdatesStatus(t *testing.T) {
	h := newHarness(t, validListing("lst-1"))
	adapter := &panickingAdapter{listings: h.listings, panicValidate: true}
	registry, err := marketplace.NewRegistry(adapter)
	require.NoError(t, err)
	h.processor.deps.Registry = registry

	data, err := h.processor.Handle(context.Background(), publishJob(t, "job-1", "lst-1", models.PlatformMercari))
	require.Error(t, err)
	assert.False(t, pkgerrors.IsPermanent(err))
	assert.Contains(t, err.Error(), "nil media slice")

	require.Len(t, adapter.results, 1)
	assert.Equal(t, models.PublishStatusFailed, adapter.results[0].Status)
	assert.Equal(t, 1, h.listings.updateCount("lst-1"))
	assert.Equal(t, models.PublishStatusFailed, h.listings.get("lst-1").Metadata["mercari"])
	assert.Equal(t, models.PublishStatusFailed, decodeResult(t, data).Status)
}

func TestProcessor_RecordsOutcome(t *testing.T) {
	h := newHarness(t, validListing("lst-1"))
	ctx := context.Background()

	_, err := h.processor.Handle(ctx, publishJob(t, "job-1", "lst-1", models.PlatformEbay))
	require.NoError(t, err)

	h.ebay.err = errors.New("eBay PublishOffer returned status 500")
	_, err = h.processor.Handle(ctx, publishJob(t, "job-2", "lst-1", models.PlatformEbay))
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrExternalAPI)

	sent := h.bus.sent()
	require.Len(t, sent, 2)
	var events []models.PublishOutcomeEvent
	for _, msg := range sent {
		assert.Equal(t, "publish.events", msg.topic)
		assert.Equal(t, "lst-1", msg.key)
		var event models.PublishOutcomeEvent
		require.NoError(t, json.Unmarshal(msg.value, &event))
		events = append(events, event)
	}
	assert.Equal(t, messaging.ListingPublishCompletedEvent, events[0].Type)
	assert.Equal(t, "110011", events[0].ExternalID)
	assert.Equal(t, messaging.ListingPublishFailedEvent, events[1].Type)
	assert.Equal(t, "job-2", events[1].JobID)
	assert.Equal(t, 1, events[1].Attempt)

	stats, err := h.metrics.GetPlatformStats(ctx, models.PlatformEbay)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.SucceededTotal)
	assert.Equal(t, int64(1), stats.FailedTotal)
	assert.InDelta(t, 0.5, stats.LifetimeRate, 1e-9)
}

func TestProcessor_InvalidPayload(t *testing.T) {
	h := newHarness(t)

	_, err := h.processor.Handle(context.Background(), &interfaces.Job{ID: "job-1", Payload: []byte("{")})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsPermanent(err))
	assert.ErrorIs(t, err, utils.ErrInvalidJobPayload)
}
