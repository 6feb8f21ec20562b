package usecase

import (
	"context"
	"strings"
	"time"

	"farmlink/internal/domain/entity"
	"farmlink/internal/domain/repository"
	"farmlink/pkg/errors"
	"farmlink/pkg/logger"
)

type ProfileUseCase struct {
	profileRepo repository.ProfileRepository
	now         func() time.Time
}

func NewProfileUseCase(profileRepo repository.ProfileRepository) *ProfileUseCase {
	return &ProfileUseCase{
		profileRepo: profileRepo,
		now:         time.Now,
	}
}

type UpsertProfileInput struct {
	FullName  string
	Role      entity.Role
	Phone     string
	Address   string
	AvatarURL string
}

func (uc *ProfileUseCase) GetMe(ctx context.Context, userID string) (*entity.Profile, error) {
	return uc.profileRepo.GetByID(ctx, userID)
}

// UpsertMe creates the caller's profile on first use and updates it after.
// The role chosen on creation cannot change.
func (uc *ProfileUseCase) UpsertMe(ctx context.Context, userID, email string, input UpsertProfileInput) (*entity.Profile, error) {
	now := uc.now()

	profile, err := uc.profileRepo.GetByID(ctx, userID)
	switch {
	case errors.Is(err, errors.CodeNotFound):
		if !input.Role.Valid() {
			return nil, errors.InvalidInput("Role must be farmer or buyer")
		}
		profile = &entity.Profile{
			ID:        userID,
			Email:     email,
			Role:      input.Role,
			CreatedAt: now,
		}
	case err != nil:
		return nil, err
	default:
		if input.Role != "" && input.Role != profile.Role {
			return nil, errors.InvalidInput("Role cannot be changed once set")
		}
	}

	if name := strings.TrimSpace(input.FullName); name != "" {
		profile.FullName = name
	}
	if profile.FullName == "" {
		return nil, errors.InvalidInput("Full name is required")
	}
	if input.Phone != "" {
		profile.Phone = strings.TrimSpace(input.Phone)
	}
	if input.Address != "" {
		profile.Address = strings.TrimSpace(input.Address)
	}
	if input.AvatarURL != "" {
		profile.AvatarURL = input.AvatarURL
	}
	if email != "" {
		profile.Email = email
	}
	profile.UpdatedAt = now

	if err := uc.profileRepo.Upsert(ctx, profile); err != nil {
		return nil, err
	}

	logger.Info("Profile saved: id=%s role=%s", profile.ID, profile.Role)
	return profile, nil
}

// GetProfile returns only the public fields of another user's profile.
func (uc *ProfileUseCase) GetProfile(ctx context.Context, id string) (*entity.ProfileSummary, error) {
	profile, err := uc.profileRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return profile.Summary(), nil
}
