// File: internal/usecase/provider_uc.go
package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"transcript-compare/internal/domain"
	"transcript-compare/internal/domain/model"
	"transcript-compare/internal/domain/ports/adapter"
	"transcript-compare/internal/domain/ports/repository"
)

// ProviderInfo is the read model served by the provider listing.
type ProviderInfo struct {
	Key          model.ProviderKey    `json:"key"`
	Name         string               `json:"name"`
	Capabilities adapter.Capabilities `json:"capabilities"`
}

// ProviderService lists the provider table and manages stored credentials.
type ProviderService struct {
	registry adapter.Registry
	credRepo repository.CredentialRepository
	log      *zerolog.Logger
}

func NewProviderService(registry adapter.Registry, credRepo repository.CredentialRepository, log *zerolog.Logger) *ProviderService {
	return &ProviderService{registry: registry, credRepo: credRepo, log: log}
}

func (s *ProviderService) List() []ProviderInfo {
	providers := s.registry.List()
	out := make([]ProviderInfo, 0, len(providers))
	for _, p := range providers {
		out = append(out, ProviderInfo{Key: p.Key(), Name: p.Name(), Capabilities: p.Capabilities()})
	}
	return out
}

// SaveCredential checks the secret against the live provider before storing
// it. Validation fails closed, so an unreachable provider rejects the save.
func (s *ProviderService) SaveCredential(ctx context.Context, userID string, key model.ProviderKey, secret string) error {
	if secret == "" {
		return fmt.Errorf("%w: empty credential", domain.ErrInvalidArgument)
	}
	p, err := s.registry.Get(key)
	if err != nil {
		return err
	}
	if !p.ValidateCredential(ctx, secret) {
		return fmt.Errorf("%w: credential rejected by %s", domain.ErrInvalidArgument, p.Name())
	}
	if err := s.credRepo.Save(ctx, userID, key, secret); err != nil {
		return err
	}
	s.log.Info().Str("user_id", userID).Str("provider", string(key)).Msg("credential stored")
	return nil
}

func (s *ProviderService) DeleteCredential(ctx context.Context, userID string, key model.ProviderKey) error {
	if _, err := s.registry.Get(key); err != nil {
		return err
	}
	return s.credRepo.Delete(ctx, userID, key)
}
