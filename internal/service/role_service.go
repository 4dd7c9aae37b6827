package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"workshopdesk/internal/model"
	"workshopdesk/internal/repository"
	"workshopdesk/internal/routes"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AdminRoleName is the built-in role holding every permission
const AdminRoleName = "admin"

// --- DTOs ---

type CreateRoleRequest struct {
	Name        string   `json:"name" binding:"required,max=50"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"` // route names
}

type UpdateRoleRequest struct {
	Name        string `json:"name" binding:"required,max=50"`
	Description string `json:"description"`
}

type UpdateRolePermissionsRequest struct {
	Permissions []string `json:"permissions" binding:"required"`
}

type RoleResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	IsSystem    bool     `json:"is_system"`
	Permissions []string `json:"permissions"`
	CreatedAt   string   `json:"created_at"`
}

// PermissionResponse describes one grantable route
type PermissionResponse struct {
	RouteName string `json:"route_name"`
	Group     string `json:"group"`
}

// BootstrapAdmin is the account created when no administrator exists yet
type BootstrapAdmin struct {
	Name     string
	Email    string
	Password string
}

// PermissionInvalidator drops cached grants of a role
type PermissionInvalidator interface {
	Invalidate(ctx context.Context, roleID uuid.UUID) error
}

// --- Interface ---

type RoleService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	GetRole(ctx context.Context, id uuid.UUID) (*RoleResponse, error)
	CreateRole(ctx context.Context, actorID *uuid.UUID, req CreateRoleRequest) (*RoleResponse, error)
	UpdateRole(ctx context.Context, actorID *uuid.UUID, id uuid.UUID, req UpdateRoleRequest) (*RoleResponse, error)
	DeleteRole(ctx context.Context, actorID *uuid.UUID, id uuid.UUID) error
	ListPermissions(ctx context.Context) []PermissionResponse
	UpdateRolePermissions(ctx context.Context, actorID *uuid.UUID, id uuid.UUID, req UpdateRolePermissionsRequest) (*RoleResponse, error)
	SeedDefaults(ctx context.Context, admin BootstrapAdmin) error
}

type roleService struct {
	roles     repository.RoleRepository
	users     repository.UserRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	cache     PermissionInvalidator
	logger    *zap.Logger
}

func NewRoleService(
	roles repository.RoleRepository,
	users repository.UserRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	cache PermissionInvalidator,
	logger *zap.Logger,
) RoleService {
	return &roleService{roles: roles, users: users, auditRepo: auditRepo, txManager: txManager, cache: cache, logger: logger}
}

func toRoleResponse(r *model.Role) RoleResponse {
	perms := make([]string, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		perms = append(perms, p.RouteName)
	}
	sort.Strings(perms)
	return RoleResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		IsSystem:    r.IsSystem,
		Permissions: perms,
		CreatedAt:   r.CreatedAt.Format(timeLayout),
	}
}

// normalizePermissions rejects unknown route names and removes duplicates
func normalizePermissions(raw []string) ([]string, error) {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, name := range raw {
		if !routes.Known(routes.Name(name)) {
			return nil, validationf("unknown permission %q", name)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (s *roleService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	roles, err := s.roles.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}

	res := make([]RoleResponse, 0, len(roles))
	for i := range roles {
		res = append(res, toRoleResponse(&roles[i]))
	}
	return res, nil
}

func (s *roleService) GetRole(ctx context.Context, id uuid.UUID) (*RoleResponse, error) {
	role, err := s.roles.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "role")
	}
	resp := toRoleResponse(role)
	return &resp, nil
}

func (s *roleService) nameTaken(ctx context.Context, name string, except uuid.UUID) (bool, error) {
	existing, err := s.roles.FindByName(ctx, name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check role name: %w", err)
	}
	return existing.ID != except, nil
}

func (s *roleService) CreateRole(ctx context.Context, actorID *uuid.UUID, req CreateRoleRequest) (*RoleResponse, error) {
	perms, err := normalizePermissions(req.Permissions)
	if err != nil {
		return nil, err
	}
	taken, err := s.nameTaken(ctx, req.Name, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, conflictf("role %q already exists", req.Name)
	}

	role := &model.Role{Name: req.Name, Description: req.Description}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.roles.Create(txCtx, role); err != nil {
			return fmt.Errorf("failed to create role: %w", err)
		}
		if err := s.roles.ReplacePermissions(txCtx, role.ID, perms); err != nil {
			return fmt.Errorf("failed to assign permissions: %w", err)
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionCreateRole, role.ID.String(), role.Name,
			map[string]any{"permissions": perms})
	})
	if err != nil {
		return nil, err
	}

	return s.GetRole(ctx, role.ID)
}

func (s *roleService) UpdateRole(ctx context.Context, actorID *uuid.UUID, id uuid.UUID, req UpdateRoleRequest) (*RoleResponse, error) {
	role, err := s.roles.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "role")
	}
	if role.IsSystem && role.Name != req.Name {
		return nil, conflictf("cannot rename system role %q", role.Name)
	}
	taken, err := s.nameTaken(ctx, req.Name, role.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, conflictf("role %q already exists", req.Name)
	}

	role.Name = req.Name
	role.Description = req.Description
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.roles.Update(txCtx, role); err != nil {
			return fmt.Errorf("failed to update role: %w", err)
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionUpdateRole, role.ID.String(), role.Name, nil)
	})
	if err != nil {
		return nil, err
	}

	return s.GetRole(ctx, id)
}

func (s *roleService) DeleteRole(ctx context.Context, actorID *uuid.UUID, id uuid.UUID) error {
	role, err := s.roles.FindByID(ctx, id)
	if err != nil {
		return notFound(err, "role")
	}
	if role.IsSystem {
		return conflictf("cannot delete system role %q", role.Name)
	}
	inUse, err := s.users.CountByRole(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count role members: %w", err)
	}
	if inUse > 0 {
		return conflictf("role %q is assigned to %d user(s)", role.Name, inUse)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.roles.Delete(txCtx, id); err != nil {
			return fmt.Errorf("failed to delete role: %w", err)
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionDeleteRole, id.String(), role.Name, nil)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// ListPermissions returns every grantable route name
func (s *roleService) ListPermissions(_ context.Context) []PermissionResponse {
	names := routes.All()
	res := make([]PermissionResponse, 0, len(names))
	for _, n := range names {
		res = append(res, PermissionResponse{RouteName: string(n), Group: routes.GroupOf(n)})
	}
	return res
}

func (s *roleService) UpdateRolePermissions(ctx context.Context, actorID *uuid.UUID, id uuid.UUID, req UpdateRolePermissionsRequest) (*RoleResponse, error) {
	perms, err := normalizePermissions(req.Permissions)
	if err != nil {
		return nil, err
	}
	role, err := s.roles.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "role")
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.roles.ReplacePermissions(txCtx, id, perms); err != nil {
			return fmt.Errorf("failed to replace permissions: %w", err)
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionUpdateRolePermissions, id.String(), role.Name,
			map[string]any{"permissions": perms})
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)

	return s.GetRole(ctx, id)
}

func (s *roleService) invalidate(ctx context.Context, roleID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, roleID); err != nil {
		// entries still expire after the cache TTL
		s.logger.Warn("Failed to invalidate permission cache", zap.String("role_id", roleID.String()), zap.Error(err))
	}
}

// SeedDefaults makes sure the admin role exists with every permission and, when
// admin credentials are configured, that an account with that email exists.
func (s *roleService) SeedDefaults(ctx context.Context, admin BootstrapAdmin) error {
	all := make([]string, 0)
	for _, n := range routes.All() {
		all = append(all, string(n))
	}

	var roleID uuid.UUID
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		role, err := s.roles.FindByName(txCtx, AdminRoleName)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			role = &model.Role{Name: AdminRoleName, Description: "Full access", IsSystem: true}
			if err := s.roles.Create(txCtx, role); err != nil {
				return fmt.Errorf("failed to create admin role: %w", err)
			}
		case err != nil:
			return fmt.Errorf("failed to fetch admin role: %w", err)
		}
		roleID = role.ID

		// new routes added by a release are granted to the admin role on startup
		if err := s.roles.ReplacePermissions(txCtx, role.ID, all); err != nil {
			return fmt.Errorf("failed to grant admin permissions: %w", err)
		}

		if admin.Email == "" || admin.Password == "" {
			return nil
		}
		if _, err := s.users.GetByEmail(txCtx, admin.Email); err == nil {
			return nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to fetch admin user: %w", err)
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash admin password: %w", err)
		}
		user := &model.User{
			Name:     admin.Name,
			Email:    model.NormalizeEmail(admin.Email),
			Password: string(hashed),
			IsActive: true,
			RoleID:   &role.ID,
		}
		if err := s.users.Create(txCtx, user); err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}
		s.logger.Info("Created bootstrap administrator", zap.String("email", user.Email))
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, roleID)
	return nil
}
