package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/athebyme/listing-publisher/internal/domain/models"
	"github.com/athebyme/listing-publisher/pkg/utils"
	"github.com/jackc/pgx/v5"
)

const ebayListingEntity = "Listing"

// SaveSyncLog сохраняет запись аудита одного вызова eBay
func (r *Storage) SaveSyncLog(ctx context.Context, log *models.EbaySyncLog) error {
	err := r.getExecutor(ctx).QueryRow(ctx, `
		INSERT INTO ebay_sync_logs (entity_type, entity_id, action, status, request_url, request_method,
		                            request_data, response_code, response_data, error_message, duration_ms, job_id)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, NULLIF($9, ''), NULLIF($10, ''), $11, NULLIF($12, ''))
		RETURNING id::text, created_at
	`,
		log.EntityType, log.EntityID, string(log.Action), string(log.Status), log.RequestURL, log.RequestMethod,
		log.RequestData, log.ResponseCode, log.ResponseData, log.ErrorMessage, log.DurationMs, log.JobID,
	).Scan(&log.ID, &log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save ebay sync log: %w", err)
	}
	return nil
}

// ListSyncLogs журнал вызовов eBay для листинга, новые записи первыми
func (r *Storage) ListSyncLogs(ctx context.Context, entityID string, pagination *utils.Pagination) ([]*models.EbaySyncLog, error) {
	executor := r.getExecutor(ctx)

	var total int64
	if err := executor.QueryRow(ctx, `
		SELECT COUNT(*) FROM ebay_sync_logs WHERE entity_type = $1 AND entity_id = $2
	`, ebayListingEntity, entityID).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count ebay sync logs: %w", err)
	}
	pagination.SetTotal(total)

	if total == 0 {
		return []*models.EbaySyncLog{}, nil
	}

	rows, err := executor.Query(ctx, `
		SELECT id::text, entity_type, entity_id, action, status, request_url, request_method,
		       COALESCE(request_data, ''), response_code, COALESCE(response_data, ''),
		       COALESCE(error_message, ''), duration_ms, COALESCE(job_id, ''), created_at
		FROM ebay_sync_logs
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, ebayListingEntity, entityID, pagination.GetLimit(), pagination.GetOffset())
	if err != nil {
		return nil, fmt.Errorf("failed to list ebay sync logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*models.EbaySyncLog, 0, pagination.GetLimit())
	for rows.Next() {
		var l models.EbaySyncLog
		if err := rows.Scan(&l.ID, &l.EntityType, &l.EntityID, &l.Action, &l.Status, &l.RequestURL, &l.RequestMethod,
			&l.RequestData, &l.ResponseCode, &l.ResponseData, &l.ErrorMessage, &l.DurationMs, &l.JobID, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ebay sync log: %w", err)
		}
		logs = append(logs, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error while iterating sync log rows: %w", err)
	}

	return logs, nil
}

// ArchiveJobs пишет выгрузку задач одним пакетом; вызывается внутри TxManager.Do
func (r *Storage) ArchiveJobs(ctx context.Context, batchID string, jobs []models.ArchivedJob) error {
	if len(jobs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, job := range jobs {
		var result []byte
		if job.Result != nil {
			var err error
			if result, err = json.Marshal(job.Result); err != nil {
				return fmt.Errorf("failed to marshal job result: %w", err)
			}
		}

		batch.Queue(`
			INSERT INTO publish_job_archive (batch_id, job_id, listing_id, platform, state, attempts_made,
			                                 failed_reason, result, queued_at, finished_on)
			VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8::jsonb, $9, $10)
			ON CONFLICT (batch_id, job_id) DO NOTHING
		`, batchID, job.JobID, job.ListingID, string(job.Platform), string(job.State), job.AttemptsMade,
			job.FailedReason, nullableJSON(result), nullableTime(job.QueuedAt), nullableTime(job.FinishedOn))
	}

	results := r.getExecutor(ctx).SendBatch(ctx, batch)
	defer results.Close()

	for range jobs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to archive job: %w", err)
		}
	}
	return nil
}
