package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/invosuite/billdesk/internal/config"
	"github.com/invosuite/billdesk/internal/schema"
	"github.com/invosuite/billdesk/internal/services"
	"github.com/invosuite/billdesk/internal/types"
)

// Context keys set by the auth middleware.
const (
	LocalUser = "user"
	LocalRole = "role"
)

// Auth gates routes on the session cookie and the acting role resolved
// from the user directory.
type Auth struct {
	Cfg   *config.Config
	Users *services.UserService
}

// NewAuth creates the auth middleware.
func NewAuth(cfg *config.Config, users *services.UserService) *Auth {
	return &Auth{Cfg: cfg, Users: users}
}

// Authenticated validates the session and resolves the acting role. Any
// signed-in user passes; the resolved role lands in c.Locals.
func (a *Auth) Authenticated() fiber.Handler {
	return a.require("data.authorization.session")
}

// Editor requires a role that may edit billing cells (admin, accounts or
// support). Members are read-only.
func (a *Auth) Editor() fiber.Handler {
	return a.requireRoles("data.authorization.editor",
		schema.RoleAdmin, schema.RoleAccounts, schema.RoleSupport)
}

// Admin requires the admin role. The settings surfaces (clients,
// templates, users) hang behind this.
func (a *Auth) Admin() fiber.Handler {
	return a.requireRoles("data.authorization.admin", schema.RoleAdmin)
}

func (a *Auth) require(errorType string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := a.authorize(c, errorType); err != nil {
			return err
		}
		return c.Next()
	}
}

func (a *Auth) requireRoles(errorType string, roles ...schema.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := a.authorize(c, errorType); err != nil {
			return err
		}
		role := RoleFromContext(c)
		for _, r := range roles {
			if role == r {
				return c.Next()
			}
		}
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: fmt.Sprintf("Role %q is not permitted here", role),
			Type:    errorType,
		}
	}
}

// authorize validates the session cookie and stores the identity user and
// acting role in the request context.
func (a *Auth) authorize(c *fiber.Ctx, errorType string) error {
	// The authorizer client initializes lazily on the first authenticated
	// request, once the request protocol and host are known.
	if !services.IsAuthorizerInitialized() {
		if err := services.InitAuthorizer(a.Cfg, c.Protocol(), c.Hostname()); err != nil {
			return &types.CustomError{
				Code:    fiber.StatusServiceUnavailable,
				Message: fmt.Sprintf("Identity service unavailable: %v", err),
				Type:    errorType,
			}
		}
	}

	session := c.Cookies("cookie_session")
	if session == "" {
		return &types.CustomError{
			Code:    fiber.StatusUnauthorized,
			Message: "Authorizer cookie \"cookie_session\" not found",
			Type:    errorType,
		}
	}

	user, err := services.ValidateSession(session)
	if err != nil {
		return &types.CustomError{
			Code:    fiber.StatusUnauthorized,
			Message: fmt.Sprintf("Invalid session: %v", err),
			Type:    errorType,
		}
	}

	c.Locals(LocalUser, user)
	c.Locals(LocalRole, a.Users.Role(user.ID))
	return nil
}

// RoleFromContext returns the acting role stored by the auth middleware.
// Requests that never passed the middleware act as members.
func RoleFromContext(c *fiber.Ctx) schema.Role {
	if role, ok := c.Locals(LocalRole).(schema.Role); ok {
		return role
	}
	return schema.RoleMember
}
