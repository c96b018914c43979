package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderTenantID lets a caller state the tenant it expects to act for.
const HeaderTenantID = "X-Tenant-ID"

// TenantGuard requires the tenant context set by AuthMiddleware and rejects a
// request that names a different tenant in X-Tenant-ID.
func TenantGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := GetTenantID(c)
		if err != nil {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "tenant context required")
			return
		}
		if stated := c.GetHeader(HeaderTenantID); stated != "" && stated != tenantID {
			abort(c, http.StatusForbidden, "FORBIDDEN", "token is not valid for the requested tenant")
			return
		}
		c.Next()
	}
}
