package repository

import (
	"context"

	"farmlink/internal/domain/entity"
)

type ProfileRepository interface {
	Upsert(ctx context.Context, profile *entity.Profile) error
	GetByID(ctx context.Context, id string) (*entity.Profile, error)
}
