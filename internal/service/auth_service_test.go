package service

import (
	"context"
	"net/url"
	"path"
	"sync"
	"testing"
	"time"

	"workshopdesk/internal/auth"
	"workshopdesk/internal/middleware"
	"workshopdesk/internal/repository"
	"workshopdesk/internal/routes"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturingMailer struct {
	mu    sync.Mutex
	links map[string]string
}

func (m *capturingMailer) SendPasswordReset(_ context.Context, to, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.links == nil {
		m.links = map[string]string{}
	}
	m.links[to] = link
	return nil
}

type accountFixture struct {
	ctx    context.Context
	auth   AuthService
	users  UserService
	roles  RoleService
	mailer *capturingMailer
	admin  uuid.UUID
}

func newAccountFixture(t *testing.T) *accountFixture {
	t.Helper()
	db := newTestDB(t)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	f := &accountFixture{ctx: context.Background(), mailer: &capturingMailer{}}
	cache := middleware.NewMemoryPermissionCache(roleRepo, time.Minute, zap.NewNop())
	f.auth = NewAuthService(userRepo, tokenRepo, roleRepo, txManager, auth.NewTokenManager("secret", time.Minute),
		f.mailer, AuthConfig{RefreshTTL: time.Hour, PasswordResetTTL: time.Hour, PasswordResetURL: "https://desk.example.com/reset"},
		zap.NewNop())
	f.users = NewUserService(userRepo, roleRepo, tokenRepo, auditRepo, txManager)
	f.roles = NewRoleService(roleRepo, userRepo, auditRepo, txManager, cache, zap.NewNop())

	require.NoError(t, f.roles.SeedDefaults(f.ctx, BootstrapAdmin{Name: "Admin", Email: "admin@example.com", Password: "admin-secret"}))
	admin, err := userRepo.GetByEmail(f.ctx, "admin@example.com")
	require.NoError(t, err)
	f.admin = admin.ID
	return f
}

func (f *accountFixture) staff(t *testing.T, email string) *UserResponse {
	t.Helper()
	u, err := f.users.CreateUser(f.ctx, &f.admin, CreateUserRequest{Name: "Staff", Email: email, Password: "staff-secret"})
	require.NoError(t, err)
	return u
}

func TestLogin(t *testing.T) {
	f := newAccountFixture(t)

	session, err := f.auth.Login(f.ctx, LoginRequest{Email: "ADMIN@example.com", Password: "admin-secret"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)
	assert.Equal(t, AdminRoleName, session.User.RoleName)

	_, err = f.auth.Login(f.ctx, LoginRequest{Email: "admin@example.com", Password: "nope"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.auth.Login(f.ctx, LoginRequest{Email: "ghost@example.com", Password: "admin-secret"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	me, err := f.auth.Me(f.ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, me.Permissions, len(routes.All()))
}

func TestRefreshRotatesToken(t *testing.T) {
	f := newAccountFixture(t)
	session, err := f.auth.Login(f.ctx, LoginRequest{Email: "admin@example.com", Password: "admin-secret"})
	require.NoError(t, err)

	rotated, err := f.auth.Refresh(f.ctx, session.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, session.RefreshToken, rotated.RefreshToken)

	_, err = f.auth.Refresh(f.ctx, session.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, f.auth.Logout(f.ctx, rotated.RefreshToken))
	_, err = f.auth.Refresh(f.ctx, rotated.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDeactivationRevokesSessions(t *testing.T) {
	f := newAccountFixture(t)
	staff := f.staff(t, "staff@example.com")
	first, err := f.auth.Login(f.ctx, LoginRequest{Email: "staff@example.com", Password: "staff-secret"})
	require.NoError(t, err)
	second, err := f.auth.Login(f.ctx, LoginRequest{Email: "staff@example.com", Password: "staff-secret"})
	require.NoError(t, err)

	inactive := false
	_, err = f.users.UpdateUser(f.ctx, &f.admin, uuid.MustParse(staff.ID), UpdateUserRequest{IsActive: &inactive})
	require.NoError(t, err)

	_, err = f.auth.Refresh(f.ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = f.auth.Refresh(f.ctx, second.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = f.auth.Login(f.ctx, LoginRequest{Email: "staff@example.com", Password: "staff-secret"})
	assert.ErrorIs(t, err, ErrAccountDeactivated)
}

func TestPasswordReset(t *testing.T) {
	f := newAccountFixture(t)
	f.staff(t, "staff@example.com")
	session, err := f.auth.Login(f.ctx, LoginRequest{Email: "staff@example.com", Password: "staff-secret"})
	require.NoError(t, err)

	require.NoError(t, f.auth.RequestPasswordReset(f.ctx, ForgotPasswordRequest{Email: "ghost@example.com"}))
	require.NoError(t, f.auth.RequestPasswordReset(f.ctx, ForgotPasswordRequest{Email: "staff@example.com"}))
	require.Len(t, f.mailer.links, 1)

	link, err := url.Parse(f.mailer.links["staff@example.com"])
	require.NoError(t, err)
	token := path.Base(link.Path)
	assert.Equal(t, "staff@example.com", link.Query().Get("email"))

	require.NoError(t, f.auth.CheckResetToken(f.ctx, token))
	assert.ErrorIs(t, f.auth.CheckResetToken(f.ctx, "forged"), ErrInvalidToken)

	err = f.auth.ResetPassword(f.ctx, ResetPasswordRequest{Token: token, Email: "admin@example.com", Password: "new-secret"})
	assert.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, f.auth.ResetPassword(f.ctx, ResetPasswordRequest{Token: token, Email: "staff@example.com", Password: "new-secret"}))
	assert.ErrorIs(t, f.auth.CheckResetToken(f.ctx, token), ErrInvalidToken)

	_, err = f.auth.Login(f.ctx, LoginRequest{Email: "staff@example.com", Password: "staff-secret"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.auth.Login(f.ctx, LoginRequest{Email: "staff@example.com", Password: "new-secret"})
	assert.NoError(t, err)

	// existing sessions are signed out
	_, err = f.auth.Refresh(f.ctx, session.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRoles(t *testing.T) {
	f := newAccountFixture(t)

	_, err := f.roles.CreateRole(f.ctx, &f.admin, CreateRoleRequest{Name: "Door", Permissions: []string{"/api/v1/workshops"}})
	assert.ErrorIs(t, err, ErrValidation)

	door, err := f.roles.CreateRole(f.ctx, &f.admin, CreateRoleRequest{
		Name:        "Door",
		Permissions: []string{string(routes.CheckinScan), string(routes.CheckinScan), string(routes.Dashboard)},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{string(routes.CheckinScan), string(routes.Dashboard)}, door.Permissions)

	_, err = f.roles.CreateRole(f.ctx, &f.admin, CreateRoleRequest{Name: "Door"})
	assert.ErrorIs(t, err, ErrConflict)

	updated, err := f.roles.UpdateRolePermissions(f.ctx, &f.admin, uuid.MustParse(door.ID),
		UpdateRolePermissionsRequest{Permissions: []string{string(routes.CheckinManual)}})
	require.NoError(t, err)
	assert.Equal(t, []string{string(routes.CheckinManual)}, updated.Permissions)

	// a role in use cannot be deleted
	_, err = f.users.CreateUser(f.ctx, &f.admin, CreateUserRequest{Name: "Dee", Email: "dee@example.com", Password: "door-secret", RoleID: &door.ID})
	require.NoError(t, err)
	assert.ErrorIs(t, f.roles.DeleteRole(f.ctx, &f.admin, uuid.MustParse(door.ID)), ErrConflict)

	roles, err := f.roles.ListRoles(f.ctx)
	require.NoError(t, err)
	for _, r := range roles {
		if r.IsSystem {
			assert.ErrorIs(t, f.roles.DeleteRole(f.ctx, &f.admin, uuid.MustParse(r.ID)), ErrConflict)
		}
	}
	assert.Len(t, f.roles.ListPermissions(f.ctx), len(routes.All()))
}

func TestUsers_SelfProtection(t *testing.T) {
	f := newAccountFixture(t)

	_, err := f.users.CreateUser(f.ctx, &f.admin, CreateUserRequest{Name: "Dup", Email: "ADMIN@example.com", Password: "whatever1"})
	assert.ErrorIs(t, err, ErrConflict)

	inactive := false
	_, err = f.users.UpdateUser(f.ctx, &f.admin, f.admin, UpdateUserRequest{IsActive: &inactive})
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, f.users.DeleteUser(f.ctx, &f.admin, f.admin), ErrConflict)

	bogus := uuid.NewString()
	_, err = f.users.CreateUser(f.ctx, &f.admin, CreateUserRequest{Name: "X", Email: "x@example.com", Password: "whatever1", RoleID: &bogus})
	assert.ErrorIs(t, err, ErrValidation)
}
