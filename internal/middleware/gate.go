package middleware

import (
	"context"
	"fmt"
	"net/http"

	"workshopdesk/internal/metrics"
	"workshopdesk/internal/routes"
	"workshopdesk/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeactivatedMessage is flashed to the login page when a deactivated user is signed out
const DeactivatedMessage = "Your account has been deactivated. Please contact administrator."

// Decision is the outcome of the access gate for one request
type Decision int

const (
	DecisionAllow Decision = iota
	DecisionRedirectLogin
	DecisionDeactivated
	DecisionForbidden
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionRedirectLogin:
		return "redirect_login"
	case DecisionDeactivated:
		return "deactivated"
	case DecisionForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Evaluate applies the gate rules in order: session, active flag, allow-list, role permission.
// perms is the role's permission set and may be nil when the principal has no role.
func Evaluate(p *Principal, name routes.Name, hasName bool, perms routes.PermissionSet) Decision {
	if p == nil {
		return DecisionRedirectLogin
	}
	if !p.IsActive {
		return DecisionDeactivated
	}
	if hasName && routes.IsAllowListed(name) {
		return DecisionAllow
	}
	if hasName && p.RoleID != nil && perms.Has(name) {
		return DecisionAllow
	}
	return DecisionForbidden
}

// needsPermissions reports whether Evaluate will consult the role's permission set
func needsPermissions(p *Principal, name routes.Name, hasName bool) bool {
	return p != nil && p.IsActive && hasName && !routes.IsAllowListed(name) && p.RoleID != nil
}

// PermissionProvider returns the grants of a role
type PermissionProvider interface {
	PermissionsForRole(ctx context.Context, roleID uuid.UUID) (routes.PermissionSet, error)
}

// SessionTerminator revokes every server-side session of a user
type SessionTerminator interface {
	TerminateSessions(ctx context.Context, userID uuid.UUID) error
}

type GateConfig struct {
	Registry    *routes.Registry
	Permissions PermissionProvider
	Sessions    SessionTerminator
	Cookies     CookieConfig
	LoginPath   string
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
}

// Gate authorizes every request of the group it is attached to. It must run after Authenticate.
func Gate(cfg GateConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, _ := CurrentPrincipal(c)
		name, hasName := cfg.Registry.RouteName(c)

		var perms routes.PermissionSet
		if needsPermissions(principal, name, hasName) {
			var err error
			perms, err = cfg.Permissions.PermissionsForRole(c.Request.Context(), *principal.RoleID)
			if err != nil {
				cfg.Logger.Error("Failed to load role permissions",
					zap.String("role_id", principal.RoleID.String()), zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to verify permissions"))
				return
			}
		}

		decision := Evaluate(principal, name, hasName, perms)
		cfg.Metrics.RecordGateDecision(decision.String())

		switch decision {
		case DecisionAllow:
			c.Next()

		case DecisionRedirectLogin:
			c.Redirect(http.StatusFound, cfg.LoginPath)
			c.Abort()

		case DecisionDeactivated:
			if err := cfg.Sessions.TerminateSessions(c.Request.Context(), principal.UserID); err != nil {
				// cookies are cleared regardless; the refresh tokens expire on their own
				cfg.Logger.Error("Failed to revoke sessions of deactivated user",
					zap.String("user_id", principal.UserID.String()), zap.Error(err))
			}
			ClearTokenCookies(c, cfg.Cookies)
			SetFlash(c, cfg.Cookies, DeactivatedMessage)
			cfg.Logger.Info("Signed out deactivated user", zap.String("user_id", principal.UserID.String()))
			c.Redirect(http.StatusFound, cfg.LoginPath)
			c.Abort()

		default:
			required := string(name)
			if !hasName {
				required = "(unnamed route)"
			}
			cfg.Logger.Debug("Access denied",
				zap.String("user_id", principal.UserID.String()), zap.String("route", required))
			c.AbortWithStatusJSON(http.StatusForbidden, response.ErrorWithDetails(http.StatusForbidden,
				fmt.Sprintf("Unauthorized action. Missing permission: %s", required),
				gin.H{"route": required}))
		}
	}
}
