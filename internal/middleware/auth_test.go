package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"workshopdesk/internal/auth"
	"workshopdesk/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubUsers struct {
	users map[uuid.UUID]*model.User
	err   error
}

func (s *stubUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func authEngine(tokens *auth.TokenManager, users UserLoader, got **Principal) *gin.Engine {
	gin.SetMode(gin.TestMode)
	e := gin.New()
	e.Use(Authenticate(tokens, users, zap.NewNop()))
	e.GET("/me", func(c *gin.Context) {
		p, _ := CurrentPrincipal(c)
		*got = p
		c.Status(http.StatusOK)
	})
	return e
}

func TestAuthenticate(t *testing.T) {
	tokens := auth.NewTokenManager("secret", time.Hour)
	roleID := uuid.New()
	user := &model.User{ID: uuid.New(), Name: "Ada", Email: "ada@x.com", IsActive: true, RoleID: &roleID, Role: &model.Role{ID: roleID, Name: "staff"}}
	users := &stubUsers{users: map[uuid.UUID]*model.User{user.ID: user}}
	token, _, err := tokens.Sign(user.ID)
	require.NoError(t, err)

	t.Run("cookie", func(t *testing.T) {
		var got *Principal
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
		authEngine(tokens, users, &got).ServeHTTP(httptest.NewRecorder(), req)
		require.NotNil(t, got)
		assert.Equal(t, user.ID, got.UserID)
		assert.Equal(t, "staff", got.RoleName)
		assert.True(t, got.IsActive)
	})

	t.Run("bearer header", func(t *testing.T) {
		var got *Principal
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		authEngine(tokens, users, &got).ServeHTTP(httptest.NewRecorder(), req)
		require.NotNil(t, got)
		assert.Equal(t, user.ID, got.UserID)
	})

	t.Run("invalid token continues unauthenticated", func(t *testing.T) {
		var got *Principal
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer nope")
		authEngine(tokens, users, &got).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, got)
	})

	t.Run("deleted user", func(t *testing.T) {
		var got *Principal
		other, _, err := tokens.Sign(uuid.New())
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: other})
		authEngine(tokens, users, &got).ServeHTTP(httptest.NewRecorder(), req)
		assert.Nil(t, got)
	})

	t.Run("store failure", func(t *testing.T) {
		var got *Principal
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
		authEngine(tokens, &stubUsers{err: errors.New("db down")}, &got).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	e := gin.New()
	e.Use(Recovery(zap.NewNop()))
	e.GET("/boom", func(c *gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
}
