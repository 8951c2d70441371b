package server

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
)

// APIKeyRequired gates the admin API on the configured key, compared in
// constant time. With no key configured the gate is open; local and
// self-hosted deployments run without one.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := s.cfg.AdminAPIKey
		if key == "" {
			c.Next()
			return
		}

		presented := strings.TrimSpace(c.GetHeader("X-API-Key"))
		if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Next()
	}
}
