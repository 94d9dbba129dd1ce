package services

import (
	"context"
	"errors"
	"testing"

	"github.com/athebyme/listing-publisher/internal/adapters/crypto"
	"github.com/athebyme/listing-publisher/internal/domain/models"
	"github.com/athebyme/listing-publisher/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCredentialRepository struct {
	mock.Mock
}

func (m *mockCredentialRepository) GetCredential(ctx context.Context, credentialID string) (*models.PlatformCredential, error) {
	args := m.Called(ctx, credentialID)
	credential, _ := args.Get(0).(*models.PlatformCredential)
	return credential, args.Error(1)
}

func TestCredentialResolver(t *testing.T) {
	box, err := crypto.NewSecretBox("0123456789abcdef-test-key", "salt")
	require.NoError(t, err)

	sealed, err := box.Encrypt("refresh-token", "cred-1")
	require.NoError(t, err)
	// тот же секрет, привязанный к другой записи
	foreign, err := box.Encrypt("refresh-token", "cred-other")
	require.NoError(t, err)

	ctx := context.Background()
	repo := &mockCredentialRepository{}
	repo.On("GetCredential", ctx, "cred-1").Return(&models.PlatformCredential{
		ID:              "cred-1",
		Platform:        models.PlatformEbay,
		AccountName:     "thrift-store",
		EncryptedSecret: sealed,
		Metadata:        map[string]interface{}{"defaultCategoryId": "261"},
		IsActive:        true,
	}, nil)
	repo.On("GetCredential", ctx, "cred-2").Return(&models.PlatformCredential{ID: "cred-2", EncryptedSecret: foreign}, nil)
	repo.On("GetCredential", ctx, "cred-3").Return(&models.PlatformCredential{ID: "cred-3"}, nil)
	repo.On("GetCredential", ctx, "missing").Return(nil, nil)
	repo.On("GetCredential", ctx, "broken").Return(nil, errors.New("connection reset"))

	resolver := NewCredentialResolver(repo, box, newTestLogger())

	credential, err := resolver.GetDecryptedCredential(ctx, "cred-1")
	require.NoError(t, err)
	assert.Equal(t, "refresh-token", credential.Secret)
	assert.Equal(t, "thrift-store", credential.AccountName)
	assert.Equal(t, "261", credential.MetadataString("defaultCategoryId"))
	assert.True(t, credential.IsActive)

	_, err = resolver.GetDecryptedCredential(ctx, "cred-2")
	assert.ErrorIs(t, err, utils.ErrCredentialSecretUnavailable)

	_, err = resolver.GetDecryptedCredential(ctx, "cred-3")
	assert.ErrorIs(t, err, utils.ErrCredentialSecretUnavailable)

	_, err = resolver.GetDecryptedCredential(ctx, "missing")
	assert.ErrorIs(t, err, utils.ErrCredentialNotFound)

	_, err = resolver.GetDecryptedCredential(ctx, "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, utils.ErrCredentialNotFound)

	repo.AssertExpectations(t)
}
