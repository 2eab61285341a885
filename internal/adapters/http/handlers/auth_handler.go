package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"mortgageos/internal/adapters/http/middleware"
	"mortgageos/internal/config"
	"mortgageos/internal/core/services"
	"mortgageos/internal/pkg/response"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *services.AuthService
	cfg         *config.Config
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cfg:         cfg,
	}
}

// Login handles user login
// @Summary Login user
// @Description Verify credentials, set the auth_token cookie and return the session
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body services.LoginInput true "Login credentials"
// @Success 200 {object} response.Response{data=services.Session}
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req services.LoginInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	session, err := h.authService.Login(c.UserContext(), req, middleware.ClientIP(c))
	if err != nil {
		return err
	}

	h.setSessionCookie(c, session.Token, session.ExpiresAt)
	return response.Success(c, "Login successful", session)
}

// Register handles borrower self-registration
// @Summary Register borrower
// @Description Create an ACTIVE borrower account
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body services.RegisterInput true "Registration data"
// @Success 201 {object} response.Response{data=models.UserResponse}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req services.RegisterInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.authService.Register(c.UserContext(), req, middleware.ClientIP(c))
	if err != nil {
		return err
	}
	return response.Created(c, "User registered successfully", user)
}

// Logout handles user logout
// @Summary Logout user
// @Description Expire the session cookie; records the logout when a valid session was sent
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Response
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if a, ok := middleware.ActorFrom(c); ok {
		if err := h.authService.Logout(c.UserContext(), &a); err != nil {
			return err
		}
	}

	h.clearSessionCookie(c)
	return response.Success(c, "Logged out successfully", nil)
}

// Me returns the current user
// @Summary Current user
// @Description Fresh profile of the session's user
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.UserResponse}
// @Failure 401 {object} response.Response
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}

	user, err := h.authService.Me(c.UserContext(), actor.ID)
	if err != nil {
		return err
	}
	return response.Success(c, "", user)
}

func (h *AuthHandler) setSessionCookie(c *fiber.Ctx, token string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Domain:   h.cfg.Cookie.Domain,
		MaxAge:   int(h.authService.SessionLifetime().Seconds()),
		Expires:  expires,
		Secure:   h.cfg.Cookie.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func (h *AuthHandler) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		Domain:   h.cfg.Cookie.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   h.cfg.Cookie.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}
