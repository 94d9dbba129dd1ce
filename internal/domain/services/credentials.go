package services

import (
	"context"
	"fmt"

	postgres "github.com/athebyme/listing-publisher/internal/adapters/storage"
	"github.com/athebyme/listing-publisher/internal/domain/models"
	"github.com/athebyme/listing-publisher/internal/utils"
	"github.com/athebyme/listing-publisher/pkg/interfaces"
)

// SecretDecrypter расшифровка секрета аккаунта; additionalData привязывает шифротекст к записи
type SecretDecrypter interface {
	Decrypt(payload, additionalData string) (string, error)
}

// CredentialSource выдает учетные данные маркетплейса, готовые к использованию
type CredentialSource interface {
	GetDecryptedCredential(ctx context.Context, credentialID string) (*models.DecryptedCredential, error)
}

// CredentialResolver читает аккаунт из хранилища и расшифровывает его секрет
type CredentialResolver struct {
	repository postgres.CredentialRepository
	secrets    SecretDecrypter
	logger     interfaces.LoggerPort
}

// NewCredentialResolver создает новый экземпляр CredentialResolver
func NewCredentialResolver(repository postgres.CredentialRepository, secrets SecretDecrypter, logger interfaces.LoggerPort) *CredentialResolver {
	return &CredentialResolver{
		repository: repository,
		secrets:    secrets,
		logger:     logger.WithField("component", "credential-resolver"),
	}
}

var _ CredentialSource = (*CredentialResolver)(nil)

// GetDecryptedCredential возвращает ErrCredentialNotFound для неизвестного ID и
// ErrCredentialSecretUnavailable, если секрет отсутствует или не расшифровывается.
// Неактивный аккаунт возвращается как есть: решение принимает вызывающий.
func (r *CredentialResolver) GetDecryptedCredential(ctx context.Context, credentialID string) (*models.DecryptedCredential, error) {
	credential, err := r.repository.GetCredential(ctx, credentialID)
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	if credential == nil {
		return nil, utils.ErrCredentialNotFound
	}

	if credential.EncryptedSecret == "" {
		return nil, utils.ErrCredentialSecretUnavailable
	}

	secret, err := r.secrets.Decrypt(credential.EncryptedSecret, credential.ID)
	if err != nil {
		// ключ шифрования сменился или запись повреждена; детали только в лог
		r.logger.WarnWithContext(ctx, "Не удалось расшифровать секрет аккаунта",
			interfaces.LogField{Key: "credential_id", Value: credential.ID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		return nil, utils.ErrCredentialSecretUnavailable
	}

	return &models.DecryptedCredential{
		ID:          credential.ID,
		Platform:    credential.Platform,
		AccountName: credential.AccountName,
		Secret:      secret,
		Metadata:    credential.Metadata,
		IsActive:    credential.IsActive,
	}, nil
}
