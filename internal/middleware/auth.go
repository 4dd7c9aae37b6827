package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"workshopdesk/internal/auth"
	"workshopdesk/internal/model"
	"workshopdesk/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"

	principalKey = "principal"
)

// CookieConfig controls the session cookies
type CookieConfig struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (cfg CookieConfig) sameSite() http.SameSite {
	// cross-origin deployments need None, which browsers only accept with Secure
	if cfg.Secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// SetTokenCookies sets access_token and refresh_token as HttpOnly cookies
func SetTokenCookies(c *gin.Context, cfg CookieConfig, accessToken, refreshToken string) {
	c.SetSameSite(cfg.sameSite())
	c.SetCookie(AccessTokenCookie, accessToken, int(cfg.AccessTTL.Seconds()), "/", "", cfg.Secure, true)
	c.SetCookie(RefreshTokenCookie, refreshToken, int(cfg.RefreshTTL.Seconds()), "/", "", cfg.Secure, true)
}

// ClearTokenCookies removes access_token and refresh_token cookies
func ClearTokenCookies(c *gin.Context, cfg CookieConfig) {
	c.SetSameSite(cfg.sameSite())
	c.SetCookie(AccessTokenCookie, "", -1, "/", "", cfg.Secure, true)
	c.SetCookie(RefreshTokenCookie, "", -1, "/", "", cfg.Secure, true)
}

// Principal is the authenticated user of the current request, loaded fresh on every request
type Principal struct {
	UserID   uuid.UUID
	Name     string
	Email    string
	IsActive bool
	RoleID   *uuid.UUID
	RoleName string
}

func principalFromUser(u *model.User) *Principal {
	p := &Principal{
		UserID:   u.ID,
		Name:     u.Name,
		Email:    u.Email,
		IsActive: u.IsActive,
		RoleID:   u.RoleID,
	}
	if u.Role != nil {
		p.RoleName = u.Role.Name
	}
	return p
}

// UserLoader is satisfied by repository.UserRepository
type UserLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// Authenticate resolves the session token (cookie first, then Bearer header) to a Principal.
// It never rejects: requests without a valid session continue unauthenticated and
// the gate decides what happens to them.
func Authenticate(tokens *auth.TokenManager, users UserLoader, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerOrCookie(c)
		if tokenString == "" {
			c.Next()
			return
		}

		userID, err := tokens.Parse(tokenString)
		if err != nil {
			c.Next()
			return
		}

		user, err := users.GetByID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.Next()
				return
			}
			logger.Error("Failed to load session user", zap.String("user_id", userID.String()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to load session"))
			return
		}

		SetPrincipal(c, principalFromUser(user))
		c.Next()
	}
}

func bearerOrCookie(c *gin.Context) string {
	if token, err := c.Cookie(AccessTokenCookie); err == nil && token != "" {
		return token
	}
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func SetPrincipal(c *gin.Context, p *Principal) {
	c.Set(principalKey, p)
}

// CurrentPrincipal returns the authenticated user, if any
func CurrentPrincipal(c *gin.Context) (*Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok && p != nil
}

// CurrentUserID returns the authenticated user's id or nil, for audit entries
func CurrentUserID(c *gin.Context) *uuid.UUID {
	p, ok := CurrentPrincipal(c)
	if !ok {
		return nil
	}
	id := p.UserID
	return &id
}
