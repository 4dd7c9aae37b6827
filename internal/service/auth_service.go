package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"workshopdesk/internal/auth"
	"workshopdesk/internal/model"
	"workshopdesk/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// --- DTOs ---

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// Session is the result of a login or refresh
type Session struct {
	AccessToken      string        `json:"-"`
	RefreshToken     string        `json:"-"`
	AccessExpiresAt  time.Time     `json:"access_expires_at"`
	RefreshExpiresAt time.Time     `json:"refresh_expires_at"`
	User             *UserResponse `json:"user"`
}

type MeResponse struct {
	User        *UserResponse `json:"user"`
	Permissions []string      `json:"permissions"`
}

// --- Interface ---

type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	Logout(ctx context.Context, refreshToken string) error
	TerminateSessions(ctx context.Context, userID uuid.UUID) error
	Me(ctx context.Context, userID uuid.UUID) (*MeResponse, error)

	RequestPasswordReset(ctx context.Context, req ForgotPasswordRequest) error
	CheckResetToken(ctx context.Context, token string) error
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
}

type AuthConfig struct {
	RefreshTTL       time.Duration
	PasswordResetTTL time.Duration
	PasswordResetURL string
}

type authService struct {
	users     repository.UserRepository
	tokens    repository.TokenRepository
	roles     repository.RoleRepository
	txManager repository.TransactionManager
	jwt       *auth.TokenManager
	mailer    Mailer
	cfg       AuthConfig
	logger    *zap.Logger
	now       func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	tokens repository.TokenRepository,
	roles repository.RoleRepository,
	txManager repository.TransactionManager,
	jwt *auth.TokenManager,
	mailer Mailer,
	cfg AuthConfig,
	logger *zap.Logger,
) AuthService {
	return &authService{
		users:     users,
		tokens:    tokens,
		roles:     roles,
		txManager: txManager,
		jwt:       jwt,
		mailer:    mailer,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// --- Implementation ---

func (s *authService) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}

	return s.issueSession(ctx, user)
}

func (s *authService) issueSession(ctx context.Context, user *model.User) (*Session, error) {
	access, accessExp, err := s.jwt.Sign(user.ID)
	if err != nil {
		return nil, err
	}

	refresh, err := auth.RandomToken()
	if err != nil {
		return nil, err
	}
	refreshExp := s.now().Add(s.cfg.RefreshTTL)
	if err := s.tokens.CreateRefreshToken(ctx, &model.RefreshToken{
		UserID:    user.ID,
		Token:     refresh,
		ExpiresAt: refreshExp,
	}); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &Session{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		User:             toUserResponse(user),
	}, nil
}

// Refresh rotates the refresh token: the presented one is revoked and a new pair issued
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrInvalidToken
	}

	var session *Session
	var deactivated *uuid.UUID
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		now := s.now()
		stored, err := s.tokens.FindActiveRefreshToken(txCtx, refreshToken, now)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidToken
			}
			return fmt.Errorf("failed to fetch refresh token: %w", err)
		}

		user, err := s.users.GetByID(txCtx, stored.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidToken
			}
			return fmt.Errorf("failed to fetch user: %w", err)
		}
		if !user.IsActive {
			deactivated = &user.ID
			return nil
		}

		if err := s.tokens.RevokeRefreshToken(txCtx, refreshToken, now); err != nil {
			return fmt.Errorf("failed to revoke refresh token: %w", err)
		}
		session, err = s.issueSession(txCtx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	if deactivated != nil {
		// must commit even though the refresh fails
		if err := s.TerminateSessions(ctx, *deactivated); err != nil {
			return nil, err
		}
		return nil, ErrAccountDeactivated
	}
	return session, nil
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.tokens.RevokeRefreshToken(ctx, refreshToken, s.now()); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// TerminateSessions revokes every refresh token of the user
func (s *authService) TerminateSessions(ctx context.Context, userID uuid.UUID) error {
	if err := s.tokens.RevokeAllForUser(ctx, userID, s.now()); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return nil
}

func (s *authService) Me(ctx context.Context, userID uuid.UUID) (*MeResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user")
	}

	perms := []string{}
	if user.RoleID != nil {
		names, err := s.roles.RouteNamesByRoleID(ctx, *user.RoleID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch permissions: %w", err)
		}
		perms = names
	}
	return &MeResponse{User: toUserResponse(user), Permissions: perms}, nil
}

// RequestPasswordReset mails a reset link. Unknown or inactive emails are accepted silently
// so the endpoint cannot be used to enumerate accounts.
func (s *authService) RequestPasswordReset(ctx context.Context, req ForgotPasswordRequest) error {
	email := model.NormalizeEmail(req.Email)
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("failed to fetch user: %w", err)
	}
	if !user.IsActive {
		return nil
	}

	token, err := auth.RandomToken()
	if err != nil {
		return err
	}
	if err := s.tokens.CreateResetToken(ctx, &model.PasswordResetToken{
		Email:     email,
		TokenHash: auth.HashToken(token),
		ExpiresAt: s.now().Add(s.cfg.PasswordResetTTL),
	}); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	link := s.cfg.PasswordResetURL + "/" + url.PathEscape(token) + "?email=" + url.QueryEscape(email)
	if err := s.mailer.SendPasswordReset(ctx, email, link); err != nil {
		return fmt.Errorf("failed to send reset mail: %w", err)
	}
	return nil
}

func (s *authService) CheckResetToken(ctx context.Context, token string) error {
	if _, err := s.tokens.FindValidResetToken(ctx, auth.HashToken(token), s.now()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("failed to fetch reset token: %w", err)
	}
	return nil
}

// ResetPassword consumes the token, sets the new password and signs out every session
func (s *authService) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		now := s.now()
		stored, err := s.tokens.FindValidResetToken(txCtx, auth.HashToken(req.Token), now)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidToken
			}
			return fmt.Errorf("failed to fetch reset token: %w", err)
		}
		if stored.Email != model.NormalizeEmail(req.Email) {
			return ErrInvalidToken
		}

		user, err := s.users.GetByEmail(txCtx, stored.Email)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidToken
			}
			return fmt.Errorf("failed to fetch user: %w", err)
		}

		if err := s.users.UpdatePassword(txCtx, user.ID, string(hash)); err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}
		if err := s.tokens.MarkResetTokenUsed(txCtx, stored.ID, now); err != nil {
			return fmt.Errorf("failed to consume reset token: %w", err)
		}
		if err := s.tokens.RevokeAllForUser(txCtx, user.ID, now); err != nil {
			return fmt.Errorf("failed to revoke sessions: %w", err)
		}

		s.logger.Info("Password reset completed", zap.String("user_id", user.ID.String()))
		return nil
	})
}
