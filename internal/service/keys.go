package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/parley/internal/errs"
	"github.com/lalith-99/parley/internal/models"
	"github.com/lalith-99/parley/internal/repository"
)

const maxBulkKeys = 500

// KeyService stores and serves the public keys clients use to wrap message
// keys. The server never inspects key material.
type KeyService struct {
	users repository.UserRepository
}

func NewKeyService(users repository.UserRepository) *KeyService {
	return &KeyService{users: users}
}

func (s *KeyService) Set(ctx context.Context, user uuid.UUID, publicKey string) error {
	publicKey = strings.TrimSpace(publicKey)
	if publicKey == "" {
		return errs.Field(errs.ErrInvalidInput, "public_key is required", "public_key")
	}
	ok, err := s.users.SetPublicKey(ctx, user, publicKey)
	if err != nil {
		return err
	}
	if !ok {
		return errs.ErrNotFound
	}
	return nil
}

// Get returns the user with their key; PublicKey is empty when encryption
// is not enabled for them.
func (s *KeyService) Get(ctx context.Context, user uuid.UUID) (*models.User, error) {
	u, err := s.users.GetByID(ctx, user)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errs.ErrNotFound
	}
	return u, nil
}

// Bulk returns keys for the users that have one; the rest are absent.
func (s *KeyService) Bulk(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	ids := dedupe(userIDs)
	if len(ids) == 0 {
		return nil, errs.Field(errs.ErrInvalidInput, "user_ids is required", "user_ids")
	}
	if len(ids) > maxBulkKeys {
		return nil, errs.Field(errs.ErrInvalidInput, fmt.Sprintf("at most %d user_ids per call", maxBulkKeys), "user_ids")
	}
	return s.users.PublicKeys(ctx, ids)
}
