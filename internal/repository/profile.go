package repository

import (
	"context"
	"errors"
	"time"

	"storefront-payments/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProfileRepository interface {
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)
	FindByEmailCanonical(ctx context.Context, emailCanonical string) (*model.Profile, error)
	Upsert(ctx context.Context, profile *model.Profile) error
}

type profileRepoImpl struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepoImpl{
		db: db,
	}
}

func (r *profileRepoImpl) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&profile).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrProfileNotFound
		}
		return nil, err
	}

	return &profile, nil
}

func (r *profileRepoImpl) FindByEmailCanonical(ctx context.Context, emailCanonical string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.WithContext(ctx).
		Where("email_canonical = ?", emailCanonical).
		First(&profile).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrProfileNotFound
		}
		return nil, err
	}

	return &profile, nil
}

// Upsert inserts or refreshes the profile keyed by userId. Empty fields on
// the incoming profile leave the stored value alone.
func (r *profileRepoImpl) Upsert(ctx context.Context, profile *model.Profile) error {
	assignments := map[string]interface{}{
		"updated_at": time.Now(),
	}
	if profile.Email != "" {
		assignments["email"] = profile.Email
		assignments["email_canonical"] = profile.EmailCanonical
	}
	if profile.Phone != "" {
		assignments["phone"] = profile.Phone
	}
	if profile.FullName != "" {
		assignments["full_name"] = profile.FullName
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(profile).Error
}
