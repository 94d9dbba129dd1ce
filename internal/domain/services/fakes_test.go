package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/athebyme/listing-publisher/internal/adapters/cache"
	"github.com/athebyme/listing-publisher/internal/adapters/logger"
	"github.com/athebyme/listing-publisher/internal/domain/marketplace"
	"github.com/athebyme/listing-publisher/internal/domain/models"
	"github.com/athebyme/listing-publisher/internal/utils"
	pkgerrors "github.com/athebyme/listing-publisher/pkg/errors"
	"github.com/athebyme/listing-publisher/pkg/interfaces"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

// memoryQueue очередь в памяти с той же моделью состояний, что и адаптер asynq
type memoryQueue struct {
	mu       sync.Mutex
	jobs     map[string]*interfaces.JobInfo
	order    []string
	enqueued []interfaces.EnqueueOptions
	now      func() time.Time
}

func newMemoryQueue() *memoryQueue {
	return &memoryQueue{jobs: make(map[string]*interfaces.JobInfo), now: func() time.Time { return testNow }}
}

var _ interfaces.JobQueuePort = (*memoryQueue)(nil)

func (q *memoryQueue) Enqueue(_ context.Context, jobType string, payload []byte, opts interfaces.EnqueueOptions) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.jobs[opts.JobID]; ok {
		return opts.JobID, pkgerrors.ErrJobExists
	}
	q.enqueued = append(q.enqueued, opts)
	q.jobs[opts.JobID] = &interfaces.JobInfo{
		ID:       opts.JobID,
		Type:     jobType,
		Payload:  payload,
		State:    interfaces.JobStateWaiting,
		MaxRetry: opts.MaxRetry,
	}
	q.order = append(q.order, opts.JobID)
	return opts.JobID, nil
}

// seed кладет задачу в произвольном состоянии
func (q *memoryQueue) seed(info *interfaces.JobInfo) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[info.ID] = info
	q.order = append(q.order, info.ID)
}

func (q *memoryQueue) GetJob(_ context.Context, jobID string) (*interfaces.JobInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return nil, pkgerrors.ErrJobNotFound
	}
	clone := *job
	return &clone, nil
}

func (q *memoryQueue) ListJobs(_ context.Context, state interfaces.JobState, offset, limit int) ([]*interfaces.JobInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var matched []*interfaces.JobInfo
	for _, id := range q.order {
		if job, ok := q.jobs[id]; ok && job.State == state {
			clone := *job
			matched = append(matched, &clone)
		}
	}
	if offset >= len(matched) {
		return []*interfaces.JobInfo{}, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (q *memoryQueue) CountByState(_ context.Context) (map[interfaces.JobState]int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	counts := make(map[interfaces.JobState]int, len(interfaces.JobStates))
	for _, state := range interfaces.JobStates {
		counts[state] = 0
	}
	for _, job := range q.jobs {
		counts[job.State]++
	}
	return counts, nil
}

func (q *memoryQueue) RetryJob(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return pkgerrors.ErrJobNotFound
	}
	if job.State != interfaces.JobStateFailed && job.State != interfaces.JobStateDelayed {
		return pkgerrors.ErrJobNotRetryable
	}
	job.State = interfaces.JobStateWaiting
	job.FinishedAt = time.Time{}
	return nil
}

func (q *memoryQueue) RemoveJob(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.jobs[jobID]; !ok {
		return pkgerrors.ErrJobNotFound
	}
	delete(q.jobs, jobID)
	return nil
}

func (q *memoryQueue) Clean(ctx context.Context, state interfaces.JobState, maxAge time.Duration, limit int) ([]string, error) {
	if !state.IsTerminal() {
		return nil, utils.ErrInvalidCleanState
	}
	cutoff := q.now().Add(-maxAge)

	q.mu.Lock()
	var removed []string
	for _, id := range q.order {
		job, ok := q.jobs[id]
		if !ok || job.State != state || !job.FinishedAt.Before(cutoff) {
			continue
		}
		if limit > 0 && len(removed) >= limit {
			break
		}
		delete(q.jobs, id)
		removed = append(removed, id)
	}
	q.mu.Unlock()
	return removed, nil
}

func (q *memoryQueue) SetProgress(_ context.Context, jobID string, progress int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job, ok := q.jobs[jobID]; ok {
		job.Progress = progress
	}
	return nil
}

func (q *memoryQueue) Close() error { return nil }

func (q *memoryQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// drain выполняет все ожидающие задачи так же, как это делает воркер:
// неуспех уходит в delayed, пока не исчерпан MaxRetry или ошибка не постоянная
func (q *memoryQueue) drain(ctx context.Context, handler interfaces.JobHandler) {
	for {
		q.mu.Lock()
		var next *interfaces.JobInfo
		for _, id := range q.order {
			if job, ok := q.jobs[id]; ok && job.State == interfaces.JobStateWaiting {
				next = job
				break
			}
		}
		if next == nil {
			q.mu.Unlock()
			return
		}
		next.State = interfaces.JobStateActive
		job := &interfaces.Job{ID: next.ID, Type: next.Type, Payload: next.Payload, Retried: next.Retried, MaxRetry: next.MaxRetry}
		q.mu.Unlock()

		result, err := handler(ctx, job)

		q.mu.Lock()
		next.Attempts++
		next.Result = result
		switch {
		case err == nil:
			next.State = interfaces.JobStateCompleted
			next.LastError = ""
			next.FinishedAt = q.now()
		case pkgerrors.IsPermanent(err) || next.Retried >= next.MaxRetry:
			next.State = interfaces.JobStateFailed
			next.LastError = err.Error()
			next.FinishedAt = q.now()
		default:
			next.Retried++
			next.State = interfaces.JobStateDelayed
			next.LastError = err.Error()
		}
		q.mu.Unlock()
	}
}

// memoryListings хранилище листингов; метаданные сливаются так же, как jsonb ||
type memoryListings struct {
	mu       sync.Mutex
	listings map[string]*models.Listing
	updates  map[string]int
}

func newMemoryListings(listings ...*models.Listing) *memoryListings {
	m := &memoryListings{listings: make(map[string]*models.Listing), updates: make(map[string]int)}
	for _, l := range listings {
		m.listings[l.ID] = l
	}
	return m
}

func (m *memoryListings) FindListingWithRelations(_ context.Context, listingID string) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	listing, ok := m.listings[listingID]
	if !ok {
		return nil, nil
	}
	clone := *listing
	return &clone, nil
}

func (m *memoryListings) FindListingSummaries(_ context.Context, listingIDs []string) (map[string]*models.ListingSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*models.ListingSummary)
	for _, id := range listingIDs {
		if l, ok := m.listings[id]; ok {
			out[id] = &models.ListingSummary{ID: l.ID, Title: l.Title, Status: l.Status}
		}
	}
	return out, nil
}

func (m *memoryListings) UpdateListingMetadataAndStatus(_ context.Context, listingID string, patch map[string]interface{}, status *models.ListingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates[listingID]++
	listing, ok := m.listings[listingID]
	if !ok {
		return nil
	}
	merged := make(map[string]interface{}, len(listing.Metadata)+len(patch))
	for k, v := range listing.Metadata {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	listing.Metadata = merged
	if status != nil {
		listing.Status = *status
	}
	return nil
}

func (m *memoryListings) mutate(listingID string, fn func(*models.Listing)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.listings[listingID])
}

func (m *memoryListings) get(listingID string) models.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.listings[listingID]
}

func (m *memoryListings) delete(listingID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listings, listingID)
}

func (m *memoryListings) updateCount(listingID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates[listingID]
}

type stubCredentials struct {
	credentials map[string]*models.DecryptedCredential
	err         error
}

func (s *stubCredentials) GetDecryptedCredential(_ context.Context, credentialID string) (*models.DecryptedCredential, error) {
	if s.err != nil {
		return nil, s.err
	}
	credential, ok := s.credentials[credentialID]
	if !ok {
		return nil, utils.ErrCredentialNotFound
	}
	return credential, nil
}

type stubEbayClient struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubEbayClient) CreateListing(_ context.Context, req *models.EbayListingRequest) (*models.EbayListingResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &models.EbayListingResult{
		SKU:       req.SKU,
		OfferID:   "offer-1",
		ListingID: "110011",
		URL:       "https://www.ebay.com/itm/110011",
	}, nil
}

type publishedMessage struct {
	topic string
	key   string
	value []byte
}

// recordingBus MessagingPort, запоминающий отправленные сообщения
type recordingBus struct {
	mu       sync.Mutex
	messages []publishedMessage
}

func (b *recordingBus) Publish(ctx context.Context, topic string, message []byte) error {
	return b.PublishWithKey(ctx, topic, "", message)
}

func (b *recordingBus) PublishWithKey(_ context.Context, topic string, key string, message []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, publishedMessage{topic: topic, key: key, value: message})
	return nil
}

func (b *recordingBus) Subscribe(context.Context, string, interfaces.MessageHandler) (func() error, error) {
	return func() error { return nil }, nil
}

func (b *recordingBus) Close() error { return nil }

func (b *recordingBus) sent() []publishedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]publishedMessage(nil), b.messages...)
}

// inlineTx выполняет fn без БД и считает вызовы
type inlineTx struct{ calls int }

func (t *inlineTx) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

type memoryArchive struct {
	batches map[string][]models.ArchivedJob
}

func (a *memoryArchive) ArchiveJobs(_ context.Context, batchID string, jobs []models.ArchivedJob) error {
	if a.batches == nil {
		a.batches = make(map[string][]models.ArchivedJob)
	}
	a.batches[batchID] = append(a.batches[batchID], jobs...)
	return nil
}

func newTestLogger() interfaces.LoggerPort {
	return logger.NewFromZap(zap.NewNop())
}

func newTestCache(t *testing.T) *cache.RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewRedisCacheWithClient(client, "test")
}

func validListing(id string) *models.Listing {
	return &models.Listing{
		ID:                   id,
		Title:                "Vintage Pyrex bowl",
		SKU:                  "PYX-001",
		Platform:             models.PlatformEbay,
		Status:               models.ListingStatusDraft,
		PlatformCredentialID: "cred-1",
		AskingPrice:          decimal.RequireFromString("24.5"),
		Location:             "Portland, OR",
		Description:          "Great condition, no chips",
		Media:                []models.ListingMedia{{ID: "m1", URL: "https://cdn.example.com/1.jpg"}},
	}
}

func activeCredential() *stubCredentials {
	return &stubCredentials{credentials: map[string]*models.DecryptedCredential{
		"cred-1": {ID: "cred-1", Platform: models.PlatformEbay, AccountName: "thrift-store", Secret: "refresh", IsActive: true},
	}}
}

// harness собирает оркестратор, процессор и сервис метрик вокруг фейков
type harness struct {
	listings     *memoryListings
	queue        *memoryQueue
	ebay         *stubEbayClient
	credentials  *stubCredentials
	bus          *recordingBus
	cache        *cache.RedisCache
	archive      *memoryArchive
	tx           *inlineTx
	registry     *marketplace.Registry
	metrics      *MetricsService
	orchestrator *PublishOrchestrator
	processor    *PublishProcessor
}

func newHarness(t *testing.T, listings ...*models.Listing) *harness {
	t.Helper()
	h := &harness{
		listings:    newMemoryListings(listings...),
		queue:       newMemoryQueue(),
		ebay:        &stubEbayClient{},
		credentials: activeCredential(),
		bus:         &recordingBus{},
		cache:       newTestCache(t),
		archive:     &memoryArchive{},
		tx:          &inlineTx{},
	}
	log := newTestLogger()

	registry, err := marketplace.NewRegistry(
		marketplace.NewEbayAdapter(h.ebay, h.listings, marketplace.EbayDefaults{}),
		marketplace.NewFacebookMarketplaceAdapter(h.listings),
	)
	if err != nil {
		t.Fatal(err)
	}
	h.registry = registry

	publishMetrics := NewPublishMetrics(prometheus.NewRegistry())
	h.metrics = NewMetricsService(h.queue, h.archive, h.tx, h.cache, h.bus, "publish.archive", publishMetrics, log)
	h.metrics.now = func() time.Time { return testNow }

	h.orchestrator = NewPublishOrchestrator(h.listings, registry, h.queue, h.metrics, QueueSettings{
		MaxRetry:           3,
		CompletedRetention: time.Hour,
		DedupWindow:        30 * time.Second,
	}, log)
	h.orchestrator.now = func() time.Time { return testNow }

	h.processor = NewPublishProcessor(ProcessorDeps{
		Listings:    h.listings,
		Registry:    registry,
		Credentials: h.credentials,
		Progress:    h.queue,
		Cache:       h.cache,
		Messaging:   h.bus,
		Metrics:     publishMetrics,
		Refresher:   h.metrics,
		EventsTopic: "publish.events",
	}, log)
	return h
}

func sortedIDs(jobs []*interfaces.JobInfo) []string {
	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	sort.Strings(ids)
	return ids
}
