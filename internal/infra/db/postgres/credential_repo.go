package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"transcript-compare/internal/domain/model"
	"transcript-compare/internal/domain/ports/repository"
	"transcript-compare/internal/infra/security"
)

var _ repository.CredentialRepository = (*credentialRepo)(nil)

// credentialRepo stores provider secrets AES-GCM encrypted; Get hands the
// orchestrator a decrypted value.
type credentialRepo struct {
	pool *pgxpool.Pool
	enc  *security.EncryptionService
}

func NewCredentialRepo(pool *pgxpool.Pool, enc *security.EncryptionService) *credentialRepo {
	return &credentialRepo{pool: pool, enc: enc}
}

func (r *credentialRepo) Get(ctx context.Context, userID string, provider model.ProviderKey) (string, error) {
	row, err := queryRow(ctx, r.pool, nil,
		`SELECT encrypted_secret FROM provider_credentials WHERE user_id = $1 AND provider = $2`,
		userID, string(provider))
	if err != nil {
		return "", err
	}
	var ct string
	if err := row.Scan(&ct); err != nil {
		return "", translateErr(err)
	}
	secret, err := r.enc.Decrypt(ct)
	if err != nil {
		return "", fmt.Errorf("decrypt credential: %w", err)
	}
	return secret, nil
}

func (r *credentialRepo) Save(ctx context.Context, userID string, provider model.ProviderKey, secret string) error {
	ct, err := r.enc.Encrypt(secret)
	if err != nil {
		return fmt.Errorf("encrypt credential: %w", err)
	}
	_, err = execSQL(ctx, r.pool, nil, `
INSERT INTO provider_credentials (user_id, provider, encrypted_secret, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (user_id, provider) DO UPDATE SET
  encrypted_secret = EXCLUDED.encrypted_secret,
  updated_at = EXCLUDED.updated_at;`,
		userID, string(provider), ct)
	return err
}

func (r *credentialRepo) Delete(ctx context.Context, userID string, provider model.ProviderKey) error {
	_, err := execSQL(ctx, r.pool, nil,
		`DELETE FROM provider_credentials WHERE user_id = $1 AND provider = $2`,
		userID, string(provider))
	return err
}
