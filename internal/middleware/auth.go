package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"claimflow/internal/domain"
	"claimflow/internal/service"
)

// Context keys set by AuthMiddleware.
const (
	ContextKeyTenantID = "tenant_id"
	ContextKeySubject  = "subject"
	ContextKeyRole     = "role"
	ContextKeyClaims   = "claims"
)

// abort writes the standard error envelope and stops the chain.
func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   gin.H{"code": code, "message": msg},
	})
}

// bearerToken extracts the token of an "Authorization: Bearer <token>" header.
// The scheme is matched case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AuthMiddleware validates the service token of the workflow engine and puts
// its tenant, subject and role into the Gin context.
func AuthMiddleware(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid authorization header")
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			zap.L().Debug("middleware.Auth: token rejected",
				zap.String("path", c.FullPath()), zap.Error(err))
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
			return
		}

		c.Set(ContextKeyTenantID, claims.TenantID)
		c.Set(ContextKeySubject, claims.Subject)
		c.Set(ContextKeyRole, string(claims.Role))
		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// RequireRole only lets tokens holding one of roles through.
func RequireRole(roles ...domain.ServiceRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetRole(c)
		if role == "" {
			abort(c, http.StatusForbidden, "FORBIDDEN", "role not found in context")
			return
		}
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
	}
}

// GetTenantID returns the tenant of the request's service token.
func GetTenantID(c *gin.Context) (string, error) {
	tenantID := c.GetString(ContextKeyTenantID)
	if tenantID == "" {
		return "", domain.ErrUnauthorized
	}
	return tenantID, nil
}

// GetSubject returns the subject of the request's service token.
func GetSubject(c *gin.Context) string {
	return c.GetString(ContextKeySubject)
}

// GetRole returns the role of the request's service token, or "" if unset.
func GetRole(c *gin.Context) domain.ServiceRole {
	return domain.ServiceRole(c.GetString(ContextKeyRole))
}
