package middleware

import (
	"encoding/json"
	"errors"
	"log"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"mortgageos/internal/core/domain"
	"mortgageos/internal/pkg/jwt"
	"mortgageos/internal/pkg/response"
)

// SessionCookie carries the session token for browser clients
const SessionCookie = "auth_token"

const (
	localsClaims = "claims"
	localsActor  = "actor"
)

// Options configures one gated route
type Options struct {
	Access domain.Access
	// OptionalSession attaches a valid session on public routes without
	// rejecting requests that have none
	OptionalSession bool
}

// Methods maps an HTTP method to its handler
type Methods map[string]fiber.Handler

// Gate verifies sessions, enforces capabilities and renders handler errors
type Gate struct {
	tokens *jwt.Manager
	dev    bool
}

// NewGate creates a gate. In dev mode error details are included in responses.
func NewGate(tokens *jwt.Manager, dev bool) *Gate {
	return &Gate{tokens: tokens, dev: dev}
}

// Route registers path on r. Methods outside the map get 405 with an Allow
// header before any other check runs.
func (g *Gate) Route(r fiber.Router, path string, opts Options, methods Methods) {
	allowed := make([]string, 0, len(methods))
	for m := range methods {
		allowed = append(allowed, m)
	}
	sort.Strings(allowed)
	allow := strings.Join(allowed, ", ")

	r.All(path, func(c *fiber.Ctx) error {
		handler, ok := methods[c.Method()]
		if !ok {
			c.Set(fiber.HeaderAllow, allow)
			return g.Fail(c, domain.MethodNotAllowed(c.Method()))
		}

		switch {
		case opts.Access.RequiresSession():
			if err := g.authorize(c, opts.Access); err != nil {
				return g.Fail(c, err)
			}
		case opts.OptionalSession:
			g.attachIfValid(c)
		}

		if err := handler(c); err != nil {
			return g.Fail(c, err)
		}
		return nil
	})
}

func (g *Gate) authorize(c *fiber.Ctx, access domain.Access) error {
	token := TokenFrom(c)
	if token == "" {
		return domain.ErrMissingToken
	}
	claims, ok := g.tokens.Verify(token)
	if !ok {
		return domain.ErrInvalidToken
	}
	if !access.Allows(domain.Role(claims.Role)) {
		return domain.Forbidden("Insufficient permissions")
	}
	attach(c, claims)
	return nil
}

func (g *Gate) attachIfValid(c *fiber.Ctx) {
	token := TokenFrom(c)
	if token == "" {
		return
	}
	if claims, ok := g.tokens.Verify(token); ok {
		attach(c, claims)
	}
}

func attach(c *fiber.Ctx, claims *jwt.Claims) {
	c.Locals(localsClaims, claims)
	c.Locals(localsActor, domain.Actor{
		ID:        claims.UserID,
		Role:      domain.Role(claims.Role),
		IPAddress: ClientIP(c),
	})
}

// ClientIP prefers proxy headers over the socket address
func ClientIP(c *fiber.Ctx) string {
	if ip := c.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if fwd := c.Get(fiber.HeaderXForwardedFor); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return c.IP()
}

// TokenFrom returns the bearer token, falling back to the session cookie
func TokenFrom(c *fiber.Ctx) string {
	if auth := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")); token != "" {
			return token
		}
	}
	return c.Cookies(SessionCookie)
}

// SessionFrom returns the verified claims attached to the request
func SessionFrom(c *fiber.Ctx) (*jwt.Claims, bool) {
	claims, ok := c.Locals(localsClaims).(*jwt.Claims)
	return claims, ok
}

// ActorFrom returns the principal attached to the request
func ActorFrom(c *fiber.Ctx) (domain.Actor, bool) {
	actor, ok := c.Locals(localsActor).(domain.Actor)
	return actor, ok
}

// Fail renders err in the response envelope
func (g *Gate) Fail(c *fiber.Ctx, err error) error {
	status, code, message, details := g.translate(err)
	if status >= fiber.StatusInternalServerError {
		log.Printf("❌ %s %s: %v", c.Method(), c.Path(), err)
	}
	return response.Error(c, status, code, message, details)
}

func (g *Gate) translate(err error) (status int, code, message, details string) {
	if de, ok := domain.AsError(err); ok {
		if g.dev && de.Err != nil {
			details = de.Err.Error()
		}
		return de.Status, de.Code, de.Message, details
	}

	var (
		ve     validator.ValidationErrors
		syntax *json.SyntaxError
		typed  *json.UnmarshalTypeError
	)
	if errors.As(err, &ve) || errors.As(err, &syntax) || errors.As(err, &typed) {
		return fiber.StatusBadRequest, domain.CodeValidation, "Validation failed", g.detail(err)
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		switch {
		case fe.Code == fiber.StatusBadRequest || fe.Code == fiber.StatusUnprocessableEntity:
			return fiber.StatusBadRequest, domain.CodeValidation, "Validation failed", g.detail(err)
		case fe.Code == fiber.StatusNotFound:
			return fe.Code, domain.CodeNotFound, fe.Message, ""
		case fe.Code == fiber.StatusRequestEntityTooLarge:
			return fe.Code, domain.CodeValidation, fe.Message, ""
		case fe.Code < fiber.StatusInternalServerError:
			return fe.Code, codeForStatus(fe.Code), fe.Message, ""
		}
	}

	return fiber.StatusInternalServerError, domain.CodeServerError, "Internal server error", g.detail(err)
}

func (g *Gate) detail(err error) string {
	if g.dev {
		return err.Error()
	}
	return ""
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusUnauthorized:
		return domain.CodeUnauthorized
	case fiber.StatusForbidden:
		return domain.CodeForbidden
	case fiber.StatusMethodNotAllowed:
		return domain.CodeMethodNotAllowed
	case fiber.StatusConflict:
		return domain.CodeConflict
	case fiber.StatusNotFound:
		return domain.CodeNotFound
	}
	return domain.CodeValidation
}
