package repository

import (
	"context"
	"time"

	"workshopdesk/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TokenRepository stores refresh tokens and password reset tokens
type TokenRepository interface {
	CreateRefreshToken(ctx context.Context, token *model.RefreshToken) error
	FindActiveRefreshToken(ctx context.Context, token string, now time.Time) (*model.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, token string, now time.Time) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID, now time.Time) error

	CreateResetToken(ctx context.Context, token *model.PasswordResetToken) error
	FindValidResetToken(ctx context.Context, tokenHash string, now time.Time) (*model.PasswordResetToken, error)
	MarkResetTokenUsed(ctx context.Context, id uuid.UUID, now time.Time) error

	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type tokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) CreateRefreshToken(ctx context.Context, token *model.RefreshToken) error {
	return GetDB(ctx, r.db).Create(token).Error
}

func (r *tokenRepository) FindActiveRefreshToken(ctx context.Context, token string, now time.Time) (*model.RefreshToken, error) {
	var rt model.RefreshToken
	err := GetDB(ctx, r.db).
		Where("token = ? AND revoked_at IS NULL AND expires_at > ?", token, now).
		First(&rt).Error
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r *tokenRepository) RevokeRefreshToken(ctx context.Context, token string, now time.Time) error {
	return GetDB(ctx, r.db).Model(&model.RefreshToken{}).
		Where("token = ? AND revoked_at IS NULL", token).
		Update("revoked_at", now).Error
}

func (r *tokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID, now time.Time) error {
	return GetDB(ctx, r.db).Model(&model.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", now).Error
}

func (r *tokenRepository) CreateResetToken(ctx context.Context, token *model.PasswordResetToken) error {
	return GetDB(ctx, r.db).Create(token).Error
}

func (r *tokenRepository) FindValidResetToken(ctx context.Context, tokenHash string, now time.Time) (*model.PasswordResetToken, error) {
	var t model.PasswordResetToken
	err := GetDB(ctx, r.db).
		Where("token_hash = ? AND used_at IS NULL AND expires_at > ?", tokenHash, now).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tokenRepository) MarkResetTokenUsed(ctx context.Context, id uuid.UUID, now time.Time) error {
	return GetDB(ctx, r.db).Model(&model.PasswordResetToken{}).
		Where("id = ?", id).
		Update("used_at", now).Error
}

// DeleteExpired purges expired or revoked refresh tokens and expired or used reset tokens
func (r *tokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	db := GetDB(ctx, r.db)

	refresh := db.Where("expires_at <= ? OR revoked_at IS NOT NULL", now).Delete(&model.RefreshToken{})
	if refresh.Error != nil {
		return 0, refresh.Error
	}

	reset := db.Where("expires_at <= ? OR used_at IS NOT NULL", now).Delete(&model.PasswordResetToken{})
	if reset.Error != nil {
		return refresh.RowsAffected, reset.Error
	}

	return refresh.RowsAffected + reset.RowsAffected, nil
}
