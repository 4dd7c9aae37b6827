package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"workshopdesk/internal/model"
	"workshopdesk/internal/repository"
	"workshopdesk/pkg/pagination"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateUserRequest struct {
	Name     string  `json:"name" binding:"required,max=255"`
	Email    string  `json:"email" binding:"required,email,max=255"`
	Password string  `json:"password" binding:"required,min=8"`
	RoleID   *string `json:"role_id" binding:"omitempty,uuid"`
	IsActive *bool   `json:"is_active"`
}

type UpdateUserRequest struct {
	Name     *string `json:"name" binding:"omitempty,max=255"`
	Email    *string `json:"email" binding:"omitempty,email,max=255"`
	Password *string `json:"password" binding:"omitempty,min=8"`
	// an empty string removes the role
	RoleID   *string `json:"role_id" binding:"omitempty"`
	IsActive *bool   `json:"is_active"`
}

// UserResponse returns a User without exposing the password hash
type UserResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	IsActive  bool    `json:"is_active"`
	RoleID    *string `json:"role_id"`
	RoleName  string  `json:"role_name,omitempty"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

func toUserResponse(u *model.User) *UserResponse {
	res := &UserResponse{
		ID:        u.ID.String(),
		Name:      u.Name,
		Email:     u.Email,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt.Format(timeLayout),
		UpdatedAt: u.UpdatedAt.Format(timeLayout),
	}
	if u.RoleID != nil {
		id := u.RoleID.String()
		res.RoleID = &id
	}
	if u.Role != nil {
		res.RoleName = u.Role.Name
	}
	return res
}

// --- Interface ---

type UserService interface {
	CreateUser(ctx context.Context, actorID *uuid.UUID, req CreateUserRequest) (*UserResponse, error)
	GetUser(ctx context.Context, id uuid.UUID) (*UserResponse, error)
	ListUsers(ctx context.Context, params pagination.Params) ([]UserResponse, int64, error)
	UpdateUser(ctx context.Context, actorID *uuid.UUID, id uuid.UUID, req UpdateUserRequest) (*UserResponse, error)
	DeleteUser(ctx context.Context, actorID *uuid.UUID, id uuid.UUID) error
}

type userService struct {
	users     repository.UserRepository
	roles     repository.RoleRepository
	tokens    repository.TokenRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
}

// NewUserService returns a new instance of UserService
func NewUserService(
	users repository.UserRepository,
	roles repository.RoleRepository,
	tokens repository.TokenRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) UserService {
	return &userService{users: users, roles: roles, tokens: tokens, auditRepo: auditRepo, txManager: txManager}
}

func (s *userService) resolveRole(ctx context.Context, raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, validationf("role_id must be a UUID")
	}
	if _, err := s.roles.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, validationf("role %s does not exist", raw)
		}
		return nil, fmt.Errorf("failed to fetch role: %w", err)
	}
	return &id, nil
}

func (s *userService) emailTaken(ctx context.Context, email string, except uuid.UUID) (bool, error) {
	existing, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return existing.ID != except, nil
}

func (s *userService) CreateUser(ctx context.Context, actorID *uuid.UUID, req CreateUserRequest) (*UserResponse, error) {
	email := model.NormalizeEmail(req.Email)
	taken, err := s.emailTaken(ctx, email, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, conflictf("email already exists")
	}

	var roleID *uuid.UUID
	if req.RoleID != nil {
		if roleID, err = s.resolveRole(ctx, *req.RoleID); err != nil {
			return nil, err
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Name:     req.Name,
		Email:    email,
		Password: string(hashed),
		IsActive: true,
		RoleID:   roleID,
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.users.Create(txCtx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		if !user.IsActive {
			// gorm skips false on insert and the column default is true
			if err := s.users.Update(txCtx, user); err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionCreateUser, user.ID.String(), user.Email, nil)
	})
	if err != nil {
		return nil, err
	}

	return s.GetUser(ctx, user.ID)
}

func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return toUserResponse(user), nil
}

func (s *userService) ListUsers(ctx context.Context, params pagination.Params) ([]UserResponse, int64, error) {
	users, total, err := s.users.List(ctx, params)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch users: %w", err)
	}

	res := make([]UserResponse, 0, len(users))
	for i := range users {
		res = append(res, *toUserResponse(&users[i]))
	}
	return res, total, nil
}

// UpdateUser applies the provided fields. Deactivating a user also revokes their refresh
// tokens; their current access token is rejected by the gate on the next request.
func (s *userService) UpdateUser(ctx context.Context, actorID *uuid.UUID, id uuid.UUID, req UpdateUserRequest) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "user")
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil {
		email := model.NormalizeEmail(*req.Email)
		taken, err := s.emailTaken(ctx, email, user.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, conflictf("email already exists")
		}
		user.Email = email
	}
	if req.RoleID != nil {
		if user.RoleID, err = s.resolveRole(ctx, *req.RoleID); err != nil {
			return nil, err
		}
		user.Role = nil
	}
	deactivating := false
	if req.IsActive != nil {
		if !*req.IsActive && actorID != nil && *actorID == user.ID {
			return nil, conflictf("you cannot deactivate your own account")
		}
		deactivating = user.IsActive && !*req.IsActive
		user.IsActive = *req.IsActive
	}

	var hashed []byte
	if req.Password != nil {
		if hashed, err = bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost); err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.users.Update(txCtx, user); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		if hashed != nil {
			if err := s.users.UpdatePassword(txCtx, user.ID, string(hashed)); err != nil {
				return fmt.Errorf("failed to update password: %w", err)
			}
		}
		if deactivating {
			if err := s.tokens.RevokeAllForUser(txCtx, user.ID, time.Now()); err != nil {
				return fmt.Errorf("failed to revoke sessions: %w", err)
			}
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionUpdateUser, user.ID.String(), user.Email,
			map[string]any{"is_active": user.IsActive, "role_id": user.RoleID})
	})
	if err != nil {
		return nil, err
	}

	return s.GetUser(ctx, id)
}

func (s *userService) DeleteUser(ctx context.Context, actorID *uuid.UUID, id uuid.UUID) error {
	if actorID != nil && *actorID == id {
		return conflictf("you cannot delete your own account")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return notFound(err, "user")
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.tokens.RevokeAllForUser(txCtx, id, time.Now()); err != nil {
			return fmt.Errorf("failed to revoke sessions: %w", err)
		}
		if err := s.users.Delete(txCtx, id); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionDeleteUser, id.String(), user.Email, nil)
	})
}
