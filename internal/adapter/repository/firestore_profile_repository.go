package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"farmlink/internal/domain/entity"
	"farmlink/internal/domain/repository"
	"farmlink/pkg/errors"
)

type firestoreProfileRepository struct {
	client *firestore.Client
}

func NewFirestoreProfileRepository(client *firestore.Client) repository.ProfileRepository {
	return &firestoreProfileRepository{
		client: client,
	}
}

func (r *firestoreProfileRepository) Upsert(ctx context.Context, profile *entity.Profile) error {
	_, err := r.client.Collection(profilesCollection).Doc(profile.ID).Set(ctx, map[string]interface{}{
		"id":        profile.ID,
		"email":     profile.Email,
		"fullName":  profile.FullName,
		"role":      string(profile.Role),
		"phone":     profile.Phone,
		"address":   profile.Address,
		"avatarUrl": profile.AvatarURL,
		"createdAt": profile.CreatedAt,
		"updatedAt": profile.UpdatedAt,
	}, firestore.MergeAll)
	if err != nil {
		return errors.Internal("Failed to save profile", err)
	}
	return nil
}

func (r *firestoreProfileRepository) GetByID(ctx context.Context, id string) (*entity.Profile, error) {
	doc, err := r.client.Collection(profilesCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Profile", err)
		}
		return nil, errors.Internal("Failed to get profile", err)
	}

	var d struct {
		ID        string    `firestore:"id"`
		Email     string    `firestore:"email"`
		FullName  string    `firestore:"fullName"`
		Role      string    `firestore:"role"`
		Phone     string    `firestore:"phone"`
		Address   string    `firestore:"address"`
		AvatarURL string    `firestore:"avatarUrl"`
		CreatedAt time.Time `firestore:"createdAt"`
		UpdatedAt time.Time `firestore:"updatedAt"`
	}
	if err := doc.DataTo(&d); err != nil {
		return nil, errors.Internal("Failed to parse profile data", err)
	}

	return &entity.Profile{
		ID:        d.ID,
		Email:     d.Email,
		FullName:  d.FullName,
		Role:      entity.Role(d.Role),
		Phone:     d.Phone,
		Address:   d.Address,
		AvatarURL: d.AvatarURL,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}
