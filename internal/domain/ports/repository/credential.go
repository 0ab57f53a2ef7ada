package repository

import (
	"context"

	"transcript-compare/internal/domain/model"
)

// CredentialRepository stores per-user provider secrets. Implementations
// encrypt at rest; Get returns the decrypted secret or domain.ErrNotFound.
type CredentialRepository interface {
	Get(ctx context.Context, userID string, provider model.ProviderKey) (string, error)
	Save(ctx context.Context, userID string, provider model.ProviderKey, secret string) error
	Delete(ctx context.Context, userID string, provider model.ProviderKey) error
}
