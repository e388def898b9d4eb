package middleware

import (
	"net/http"
	"strings"

	"github.com/Suja2004/WebRTC/internal/core/services"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware requires a valid guest token in the Authorization
// header.
func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		c.Set("guest_name", claims.Name)
		c.Set("guest_email", claims.Email)
		c.Set("guest_room", string(claims.Room))
		c.Next()
	}
}
