package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/athebyme/listing-publisher/internal/domain/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetCredential получает аккаунт маркетплейса по ID
func (r *Storage) GetCredential(ctx context.Context, credentialID string) (*models.PlatformCredential, error) {
	if _, err := uuid.Parse(credentialID); err != nil {
		return nil, nil
	}

	var c models.PlatformCredential
	err := r.getExecutor(ctx).QueryRow(ctx, `
		SELECT id::text, platform, account_name, COALESCE(encrypted_secret, ''),
		       metadata, is_active, created_at, updated_at
		FROM platform_credentials
		WHERE id = $1
	`, credentialID).Scan(
		&c.ID, &c.Platform, &c.AccountName, &c.EncryptedSecret,
		&c.Metadata, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get platform credential: %w", err)
	}

	return &c, nil
}
