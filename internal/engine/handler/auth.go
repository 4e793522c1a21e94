package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AdminGuard authenticates administrative requests against the deployment's
// admin secret, presented by clients in the X-Admin-Secret header. The
// secret is bcrypt-hashed at construction and only the hash is retained.
type AdminGuard struct {
	hash []byte
}

// NewAdminGuard builds a guard for the given secret. An empty secret
// disables the guard entirely, leaving admin routes open for development.
func NewAdminGuard(secret string) (*AdminGuard, error) {
	if secret == "" {
		return &AdminGuard{}, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin secret: %w", err)
	}
	return &AdminGuard{hash: hash}, nil
}

// Middleware returns the Gin middleware enforcing the guard.
func (g *AdminGuard) Middleware() gin.HandlerFunc {
	if g == nil || len(g.hash) == 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		secret := c.GetHeader("X-Admin-Secret")
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin secret required"})
			return
		}
		if err := bcrypt.CompareHashAndPassword(g.hash, []byte(secret)); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid admin secret"})
			return
		}
		c.Next()
	}
}
