package authorization

import (
	"net/http"

	jwt "github.com/appleboy/gin-jwt/v2"
	"github.com/gin-gonic/gin"
)

// Guard wraps the JWT middleware so other modules can protect their route
// groups and resolve the requesting user.
type Guard struct {
	jwt *jwt.GinJWTMiddleware
}

// Guard returns the guard helper backed by the module's JWT middleware.
func (m *Module) Guard() *Guard {
	if m == nil || m.jwtMiddleware == nil {
		return nil
	}
	return &Guard{jwt: m.jwtMiddleware}
}

// RequireAuthenticated ensures the request carries a valid JWT.
func (g *Guard) RequireAuthenticated() gin.HandlerFunc {
	if g == nil || g.jwt == nil {
		return func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		}
	}
	return g.jwt.MiddlewareFunc()
}

// CurrentUserID resolves the authenticated user id from the request claims,
// returning 0 when the request is anonymous.
func CurrentUserID(c *gin.Context) uint64 {
	return extractUserID(jwt.ExtractClaims(c))
}
