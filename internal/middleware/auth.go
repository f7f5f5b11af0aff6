package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/patient-records/internal/model"
	apperrors "github.com/jwalitptl/patient-records/pkg/errors"
)

const ContextPrincipal = "principal"

// TokenAuthenticator resolves a bearer token to a principal
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*model.Principal, error)
}

type AuthMiddleware struct {
	authenticator TokenAuthenticator
	enabled       bool
}

// NewAuthMiddleware guards routes with bearer tokens. With enabled false
// every guard lets requests through.
func NewAuthMiddleware(authenticator TokenAuthenticator, enabled bool) *AuthMiddleware {
	return &AuthMiddleware{
		authenticator: authenticator,
		enabled:       enabled,
	}
}

func (m *AuthMiddleware) Enabled() bool {
	return m.enabled
}

// Authenticate verifies the bearer token and stores the principal in context
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.enabled {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, http.StatusUnauthorized, "missing authorization header")
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			abortWithError(c, http.StatusUnauthorized, "invalid authorization format")
			return
		}

		principal, err := m.authenticator.Authenticate(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			_, message := apperrors.StatusOf(err)
			abortWithError(c, http.StatusUnauthorized, message)
			return
		}

		c.Set(ContextPrincipal, principal)
		c.Next()
	}
}

// RequireRoles admits principals holding one of roles
func (m *AuthMiddleware) RequireRoles(roles ...model.Role) gin.HandlerFunc {
	return m.require(func(c *gin.Context, p *model.Principal) bool {
		return hasRole(p, roles)
	})
}

// RequireRolesOrSelf admits principals holding one of roles, and patients
// whose own pid equals the route parameter param.
func (m *AuthMiddleware) RequireRolesOrSelf(param string, roles ...model.Role) gin.HandlerFunc {
	return m.require(func(c *gin.Context, p *model.Principal) bool {
		if hasRole(p, roles) {
			return true
		}
		return p.Role == model.RolePatient && p.PID != "" && p.PID == c.Param(param)
	})
}

func (m *AuthMiddleware) require(allowed func(*gin.Context, *model.Principal) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.enabled {
			c.Next()
			return
		}

		principal, ok := GetPrincipal(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "authentication required")
			return
		}

		if !allowed(c, principal) {
			abortWithError(c, http.StatusForbidden, "permission denied")
			return
		}

		c.Next()
	}
}

// GetPrincipal returns the authenticated caller, if any
func GetPrincipal(c *gin.Context) (*model.Principal, bool) {
	v, ok := c.Get(ContextPrincipal)
	if !ok {
		return nil, false
	}
	p, ok := v.(*model.Principal)
	return p, ok && p != nil
}

func hasRole(p *model.Principal, roles []model.Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}
