package handler

import (
	"net/http"

	"workshopdesk/internal/middleware"
	"workshopdesk/internal/routes"
	"workshopdesk/internal/service"
	"workshopdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService service.AuthService
	cookies     middleware.CookieConfig
}

func NewAuthHandler(authService service.AuthService, cookies middleware.CookieConfig) *AuthHandler {
	return &AuthHandler{authService: authService, cookies: cookies}
}

// LoginPageResponse is what the login entry point returns to the SPA
type LoginPageResponse struct {
	Authenticated bool   `json:"authenticated"`
	Message       string `json:"message,omitempty"`
}

// RegisterPublicRoutes binds the endpoints reachable without a session
func (h *AuthHandler) RegisterPublicRoutes(router *gin.RouterGroup, reg *routes.Registry) {
	reg.Handle(router, http.MethodGet, "/login", routes.Login, h.LoginPage)
	reg.Handle(router, http.MethodPost, "/login", routes.Login, h.Login)
	reg.Handle(router, http.MethodPost, "/refresh", "", h.Refresh)

	reg.Handle(router, http.MethodGet, "/password/forgot", routes.PasswordRequest, h.ForgotPasswordPage)
	reg.Handle(router, http.MethodPost, "/password/email", routes.PasswordEmail, h.SendResetLink)
	reg.Handle(router, http.MethodGet, "/password/reset/:token", routes.PasswordReset, h.CheckResetToken)
	reg.Handle(router, http.MethodPost, "/password/reset", routes.PasswordUpdate, h.ResetPassword)
}

// RegisterRoutes binds the endpoints that require a session
func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup, reg *routes.Registry) {
	reg.Handle(router, http.MethodPost, "/logout", routes.Logout, h.Logout)
	reg.Handle(router, http.MethodGet, "/me", routes.Me, h.Me)
}

// LoginPage is the login entry point the gate redirects to
// @Summary      Login entry point
// @Description  Returns and clears the one-shot flash message (e.g. the deactivation notice)
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response{data=LoginPageResponse}
// @Router       /login [get]
func (h *AuthHandler) LoginPage(c *gin.Context) {
	_, authenticated := middleware.CurrentPrincipal(c)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, LoginPageResponse{
		Authenticated: authenticated,
		Message:       middleware.PopFlash(c, h.cookies),
	}))
}

// Login handles POST /login
// @Summary      Login user
// @Description  Authenticates by email and password and sets HttpOnly session cookies
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginRequest  true  "Login Credentials"
// @Success      200      {object}  response.Response{data=service.Session}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.SetTokenCookies(c, h.cookies, session.AccessToken, session.RefreshToken)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, session))
}

// Refresh rotates the refresh token
// @Summary      Refresh session
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.Session}
// @Failure      401  {object}  response.Response
// @Router       /refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, err := c.Cookie(middleware.RefreshTokenCookie)
	if err != nil || refreshToken == "" {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Refresh token missing"))
		return
	}

	session, err := h.authService.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		middleware.ClearTokenCookies(c, h.cookies)
		status := http.StatusUnauthorized
		c.JSON(status, response.Error(status, "Session expired, please log in again"))
		return
	}

	middleware.SetTokenCookies(c, h.cookies, session.AccessToken, session.RefreshToken)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, session))
}

// Logout revokes the refresh token and clears the cookies
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if refreshToken, err := c.Cookie(middleware.RefreshTokenCookie); err == nil && refreshToken != "" {
		if err := h.authService.Logout(c.Request.Context(), refreshToken); err != nil {
			_ = c.Error(err)
		}
	}
	middleware.ClearTokenCookies(c, h.cookies)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Logged out successfully"}))
}

// Me returns the current user with the route names their role grants
// @Summary      Get current user
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.MeResponse}
// @Router       /me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	principal, _ := middleware.CurrentPrincipal(c)
	me, err := h.authService.Me(c.Request.Context(), principal.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, me))
}

// ForgotPasswordPage is the entry point of the password reset flow
// @Summary      Password reset entry point
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /password/forgot [get]
func (h *AuthHandler) ForgotPasswordPage(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": middleware.PopFlash(c, h.cookies)}))
}

// SendResetLink mails a reset link. The response is the same whether or not the email exists.
// @Summary      Request password reset
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.ForgotPasswordRequest  true  "Email"
// @Success      200      {object}  response.Response
// @Failure      400      {object}  response.Response
// @Router       /password/email [post]
func (h *AuthHandler) SendResetLink(c *gin.Context) {
	var req service.ForgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.RequestPasswordReset(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"message": "If that email is registered, a password reset link has been sent.",
	}))
}

// CheckResetToken reports whether a reset token can still be used
// @Summary      Check reset token
// @Tags         auth
// @Produce      json
// @Param        token  path      string  true  "Reset token"
// @Success      200    {object}  response.Response
// @Failure      400    {object}  response.Response
// @Router       /password/reset/{token} [get]
func (h *AuthHandler) CheckResetToken(c *gin.Context) {
	token := c.Param("token")
	if err := h.authService.CheckResetToken(c.Request.Context(), token); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"token": token, "email": c.Query("email")}))
}

// ResetPassword consumes a reset token and sets a new password
// @Summary      Reset password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.ResetPasswordRequest  true  "Token, email and new password"
// @Success      200      {object}  response.Response
// @Failure      400      {object}  response.Response
// @Router       /password/reset [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req service.ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.ResetPassword(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	middleware.SetFlash(c, h.cookies, "Your password has been reset.")
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Your password has been reset."}))
}
