package repository

import (
	"context"
	"database/sql"

	"farmlink/internal/domain/entity"
	"farmlink/internal/domain/repository"
	"farmlink/pkg/errors"
)

type postgresProfileRepository struct {
	db *sql.DB
}

func NewPostgresProfileRepository(db *sql.DB) repository.ProfileRepository {
	return &postgresProfileRepository{db: db}
}

func (r *postgresProfileRepository) Upsert(ctx context.Context, p *entity.Profile) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO profiles (id,email,full_name,role,phone,address,avatar_url,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET email=$2,full_name=$3,role=$4,phone=$5,address=$6,avatar_url=$7,updated_at=$9`,
		p.ID, p.Email, p.FullName, string(p.Role), p.Phone, p.Address, p.AvatarURL, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return errors.Internal("Failed to save profile", err)
	}
	return nil
}

func (r *postgresProfileRepository) GetByID(ctx context.Context, id string) (*entity.Profile, error) {
	var p entity.Profile
	err := r.db.QueryRowContext(ctx, `SELECT id,email,full_name,role,phone,address,avatar_url,created_at,updated_at
		FROM profiles WHERE id=$1`, id).
		Scan(&p.ID, &p.Email, &p.FullName, (*string)(&p.Role), &p.Phone, &p.Address, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Profile", err)
	}
	if err != nil {
		return nil, errors.Internal("Failed to get profile", err)
	}
	return &p, nil
}
