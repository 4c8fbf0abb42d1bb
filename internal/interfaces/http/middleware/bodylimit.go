package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/helixframework/helix/internal/interfaces/http/dto"
)

// BodyLimit rejects requests announcing a body larger than maxBytes and caps the body
// reader for the others
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			err := dto.NewClientError(http.StatusRequestEntityTooLarge, "Request body exceeds maximum allowed size")
			c.AbortWithStatusJSON(err.Status, err.Response())
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
