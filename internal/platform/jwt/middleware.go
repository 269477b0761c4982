// Package jwtmw issues session tokens and guards account-scoped routes.
package jwtmw

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"futures_dashboard/internal/feature/session/domain/entity"
)

// ContextSession is the gin context key holding the entity.Session of an authenticated request.
const ContextSession = "session"

// AuthRequired rejects requests without a valid bearer token and stores the
// decoded session on the gin context.
func AuthRequired(g *Generator) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		if g == nil || len(g.secret) == 0 {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server misconfigured"})
			return
		}

		s, err := g.Parse(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ContextSession, s)
		c.Next()
	}
}

// SessionFrom returns the session stored by AuthRequired.
func SessionFrom(c *gin.Context) (entity.Session, bool) {
	v, ok := c.Get(ContextSession)
	if !ok {
		return entity.Session{}, false
	}
	s, ok := v.(entity.Session)
	return s, ok && s.Valid()
}
