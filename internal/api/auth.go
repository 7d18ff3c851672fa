package api

import (
	"net/http"
	"strings"

	"closet-service/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	ctxOnyen = "onyen"
	ctxRole  = "role"
)

// authenticate trusts the onyen set by the fronting proxy and resolves its
// role. Requests without one are rejected.
func (h *Handler) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		onyen := strings.TrimSpace(c.GetHeader(h.authHeader))
		if onyen == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
			return
		}

		role, err := h.svc.Users.Role(c.Request.Context(), onyen)
		if err != nil {
			h.respondError(c, err)
			return
		}
		if role == models.RoleDisabled {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Your account is disabled"})
			return
		}

		c.Set(ctxOnyen, onyen)
		c.Set(ctxRole, role)
		c.Next()
	}
}

// requireRole lets the request through only for the given roles
func requireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := callerRole(c)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You are not allowed to do that"})
	}
}

func callerOnyen(c *gin.Context) string {
	return c.GetString(ctxOnyen)
}

func callerRole(c *gin.Context) models.Role {
	role, _ := c.Get(ctxRole)
	r, _ := role.(models.Role)
	return r
}

func isStaff(c *gin.Context) bool {
	r := callerRole(c)
	return r == models.RoleAdmin || r == models.RoleVolunteer
}
