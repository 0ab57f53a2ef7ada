package usecase

import (
	"context"
	"errors"
	"testing"

	"transcript-compare/internal/domain"
	"transcript-compare/internal/domain/model"
)

func TestProviderServiceList(t *testing.T) {
	t.Parallel()
	p1 := newFakeProvider(model.ProviderDeepgram)
	p2 := newFakeProvider(model.ProviderAssemblyAI)
	svc := NewProviderService(newFakeRegistry(p1, p2), newMockCredRepo(), nopLogger())

	infos := svc.List()
	if len(infos) != 2 {
		t.Fatalf("got %d providers", len(infos))
	}
	if infos[0].Key != model.ProviderAssemblyAI {
		t.Errorf("list not sorted: %v", infos)
	}
	if !infos[0].Capabilities.Diarization {
		t.Error("capabilities not carried through")
	}
}

func TestSaveCredentialValidates(t *testing.T) {
	t.Parallel()
	p := newFakeProvider(model.ProviderDeepgram)
	creds := newMockCredRepo()
	svc := NewProviderService(newFakeRegistry(p), creds, nopLogger())
	ctx := context.Background()

	if err := svc.SaveCredential(ctx, testUser, model.ProviderDeepgram, "good-key"); err != nil {
		t.Fatalf("SaveCredential: %v", err)
	}
	if s, _ := creds.Get(ctx, testUser, model.ProviderDeepgram); s != "good-key" {
		t.Fatalf("stored secret = %q", s)
	}

	p.validOK = false
	err := svc.SaveCredential(ctx, testUser, model.ProviderDeepgram, "bad-key")
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("got %v, want ErrInvalidArgument", err)
	}
	if s, _ := creds.Get(ctx, testUser, model.ProviderDeepgram); s != "good-key" {
		t.Fatal("rejected credential must not overwrite the stored one")
	}
}

func TestSaveCredentialUnknownProvider(t *testing.T) {
	t.Parallel()
	svc := NewProviderService(newFakeRegistry(), newMockCredRepo(), nopLogger())
	err := svc.SaveCredential(context.Background(), testUser, "NOPE", "k")
	if !errors.Is(err, domain.ErrUnknownProvider) {
		t.Fatalf("got %v, want ErrUnknownProvider", err)
	}
}

func TestSaveCredentialEmptySecret(t *testing.T) {
	t.Parallel()
	p := newFakeProvider(model.ProviderDeepgram)
	svc := NewProviderService(newFakeRegistry(p), newMockCredRepo(), nopLogger())
	err := svc.SaveCredential(context.Background(), testUser, model.ProviderDeepgram, "")
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("got %v, want ErrInvalidArgument", err)
	}
}
