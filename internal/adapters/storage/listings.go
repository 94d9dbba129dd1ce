package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/athebyme/listing-publisher/internal/domain/models"
	"github.com/athebyme/listing-publisher/internal/utils"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const listingWithRelationsQuery = `
	SELECT l.id::text, l.title, COALESCE(l.description, ''), COALESCE(l.sku, ''),
	       l.platform, l.status, COALESCE(l.platform_credential_id::text, ''),
	       l.asking_price::text, l.quantity, COALESCE(l.condition, ''), COALESCE(l.category, ''),
	       COALESCE(l.location, ''), l.platform_settings, l.metadata, l.created_at, l.updated_at,
	       COALESCE(p.id::text, ''), COALESCE(p.title, ''),
	       COALESCE(c.id::text, ''), COALESCE(c.platform, ''), COALESCE(c.account_name, ''),
	       COALESCE(c.encrypted_secret, ''), COALESCE(c.metadata, '{}'::jsonb), COALESCE(c.is_active, FALSE)
	FROM listings l
	LEFT JOIN purchase_items p ON p.id = l.purchase_item_id
	LEFT JOIN platform_credentials c ON c.id = l.platform_credential_id
	WHERE l.id = $1
`

// FindListingWithRelations загружает листинг и все связи, нужные адаптерам, за два запроса
func (r *Storage) FindListingWithRelations(ctx context.Context, listingID string) (*models.Listing, error) {
	if _, err := uuid.Parse(listingID); err != nil {
		return nil, nil
	}

	executor := r.getExecutor(ctx)

	var (
		listing      models.Listing
		price        string
		purchaseID   string
		purchaseName string
		credential   models.PlatformCredential
	)
	err := executor.QueryRow(ctx, listingWithRelationsQuery, listingID).Scan(
		&listing.ID, &listing.Title, &listing.Description, &listing.SKU,
		&listing.Platform, &listing.Status, &listing.PlatformCredentialID,
		&price, &listing.Quantity, &listing.Condition, &listing.Category,
		&listing.Location, &listing.PlatformSettings, &listing.Metadata, &listing.CreatedAt, &listing.UpdatedAt,
		&purchaseID, &purchaseName,
		&credential.ID, &credential.Platform, &credential.AccountName,
		&credential.EncryptedSecret, &credential.Metadata, &credential.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}

	if listing.AskingPrice, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("invalid asking price %q: %w", price, err)
	}
	if purchaseID != "" {
		listing.PurchaseItem = &models.PurchaseItem{ID: purchaseID, Title: purchaseName}
	}
	if credential.ID != "" {
		listing.Credential = &credential
	}

	rows, err := executor.Query(ctx, `
		SELECT id::text, url, position
		FROM listing_media
		WHERE listing_id = $1
		ORDER BY position, id
	`, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get listing media: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.ListingMedia
		if err := rows.Scan(&m.ID, &m.URL, &m.Position); err != nil {
			return nil, fmt.Errorf("failed to scan media row: %w", err)
		}
		listing.Media = append(listing.Media, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error while iterating media rows: %w", err)
	}

	return &listing, nil
}

// FindListingSummaries отсутствующие листинги просто не попадают в результат
func (r *Storage) FindListingSummaries(ctx context.Context, listingIDs []string) (map[string]*models.ListingSummary, error) {
	result := make(map[string]*models.ListingSummary, len(listingIDs))

	ids := make([]string, 0, len(listingIDs))
	for _, id := range listingIDs {
		if _, err := uuid.Parse(id); err == nil {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := r.getExecutor(ctx).Query(ctx, `
		SELECT id::text, title, status
		FROM listings
		WHERE id = ANY($1::uuid[])
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get listing summaries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s models.ListingSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.Status); err != nil {
			return nil, fmt.Errorf("failed to scan listing summary: %w", err)
		}
		result[s.ID] = &s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error while iterating listing rows: %w", err)
	}

	return result, nil
}

// UpdateListingMetadataAndStatus сливает ключи верхнего уровня через jsonb ||,
// поэтому записи разных платформ не перетирают друг друга при конкурентных обновлениях
func (r *Storage) UpdateListingMetadataAndStatus(ctx context.Context, listingID string, patch map[string]interface{}, status *models.ListingStatus) error {
	if _, err := uuid.Parse(listingID); err != nil {
		return utils.ErrListingNotFound
	}

	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata patch: %w", err)
	}

	var statusArg *string
	if status != nil {
		s := string(*status)
		statusArg = &s
	}

	tag, err := r.getExecutor(ctx).Exec(ctx, `
		UPDATE listings
		SET metadata = COALESCE(metadata, '{}'::jsonb) || $2::jsonb,
		    status = COALESCE($3, status),
		    updated_at = now()
		WHERE id = $1
	`, listingID, string(patchJSON), statusArg)
	if err != nil {
		return fmt.Errorf("failed to update listing metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return utils.ErrListingNotFound
	}

	return nil
}
