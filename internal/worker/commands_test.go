package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/athebyme/listing-publisher/internal/adapters/logger"
	"github.com/athebyme/listing-publisher/internal/domain/models"
	"github.com/athebyme/listing-publisher/internal/utils"
	"github.com/athebyme/listing-publisher/pkg/interfaces"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishListing(ctx context.Context, listingID string, platforms []models.Platform) (*models.PublishListingResult, error) {
	args := m.Called(ctx, listingID, platforms)
	result, _ := args.Get(0).(*models.PublishListingResult)
	return result, args.Error(1)
}

type mockAdmin struct {
	mock.Mock
}

func (m *mockAdmin) RetryFailedJobs(ctx context.Context, filter models.RetryFailedFilter) (*models.RetryFailedResult, error) {
	args := m.Called(ctx, filter)
	result, _ := args.Get(0).(*models.RetryFailedResult)
	return result, args.Error(1)
}

func (m *mockAdmin) CleanJobs(ctx context.Context, filter models.CleanJobsFilter) (*models.CleanJobsResult, error) {
	args := m.Called(ctx, filter)
	result, _ := args.Get(0).(*models.CleanJobsResult)
	return result, args.Error(1)
}

const commandsTopic = "listing-publish-commands"

func newHandler(t *testing.T) (*CommandHandler, *mockPublisher, *mockAdmin) {
	publisher := &mockPublisher{}
	admin := &mockAdmin{}
	t.Cleanup(func() {
		publisher.AssertExpectations(t)
		admin.AssertExpectations(t)
	})
	h := NewCommandHandler(publisher, admin, prometheus.NewRegistry(), logger.NewFromZap(zap.NewNop()))
	return h, publisher, admin
}

func message(value string) *interfaces.Message {
	return &interfaces.Message{ID: "m-1", Topic: commandsTopic, Value: []byte(value)}
}

func TestCommandHandler_PublishListing(t *testing.T) {
	h, publisher, _ := newHandler(t)
	publisher.On("PublishListing", mock.Anything, "lst-1", []models.Platform{models.PlatformEbay}).
		Return(&models.PublishListingResult{ListingID: "lst-1", Queued: []models.QueuedJob{{JobID: "job-1"}}}, nil)

	err := h.Handle(context.Background(), message(`{"command_type":"publish_listing","listing_id":"lst-1","platforms":["ebay"]}`))
	assert.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.processed.WithLabelValues(commandsTopic, "success")))
}

func TestCommandHandler_RejectsWithoutRedelivery(t *testing.T) {
	h, publisher, admin := newHandler(t)
	publisher.On("PublishListing", mock.Anything, "gone", mock.Anything).Return(nil, utils.ErrListingNotFound)
	admin.On("CleanJobs", mock.Anything, models.CleanJobsFilter{State: interfaces.JobStateActive}).
		Return(nil, utils.ErrInvalidCleanState)

	for _, value := range []string{
		`not json`,
		`{"command_type":"publish_listing"}`,
		`{"command_type":"publish_listing","listing_id":"lst-1","platforms":["ETSY"]}`,
		`{"command_type":"publish_listing","listing_id":"gone"}`,
		`{"command_type":"clean_jobs","state":"active"}`,
		`{"command_type":"reindex"}`,
	} {
		assert.NoError(t, h.Handle(context.Background(), message(value)), value)
	}

	assert.Equal(t, 4.0, testutil.ToFloat64(h.processed.WithLabelValues(commandsTopic, "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.processed.WithLabelValues(commandsTopic, "unknown")))
}

func TestCommandHandler_TransientErrorIsReturned(t *testing.T) {
	h, _, admin := newHandler(t)
	admin.On("RetryFailedJobs", mock.Anything, models.RetryFailedFilter{Platform: models.PlatformEbay, Limit: 5}).
		Return(nil, errors.New("redis: i/o timeout"))

	err := h.Handle(context.Background(), message(`{"command_type":"retry_failed_jobs","platform":"EBAY","limit":5}`))
	assert.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.processed.WithLabelValues(commandsTopic, "error")))
}

func TestCommandHandler_CleanUsesSeconds(t *testing.T) {
	h, _, admin := newHandler(t)
	twoHours := 2 * time.Hour
	admin.On("CleanJobs", mock.Anything, models.CleanJobsFilter{State: interfaces.JobStateFailed, OlderThan: &twoHours}).
		Return(&models.CleanJobsResult{Removed: 4}, nil)

	assert.NoError(t, h.Handle(context.Background(), message(`{"command_type":"clean_jobs","state":"failed","older_than":7200}`)))
}

func TestCommandHandler_CleanKeepsExplicitZero(t *testing.T) {
	h, _, admin := newHandler(t)
	var zero time.Duration
	admin.On("CleanJobs", mock.Anything, models.CleanJobsFilter{State: interfaces.JobStateCompleted, OlderThan: &zero}).
		Return(&models.CleanJobsResult{Removed: 7}, nil).Once()
	admin.On("CleanJobs", mock.Anything, models.CleanJobsFilter{State: interfaces.JobStateFailed}).
		Return(&models.CleanJobsResult{Removed: 1}, nil).Once()

	assert.NoError(t, h.Handle(context.Background(), message(`{"command_type":"clean_jobs","state":"completed","older_than":0}`)))
	assert.NoError(t, h.Handle(context.Background(), message(`{"command_type":"clean_jobs","state":"failed"}`)))
	assert.NoError(t, h.Handle(context.Background(), message(`{"command_type":"clean_jobs","older_than":-5}`)))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.processed.WithLabelValues(commandsTopic, "rejected")))
}
