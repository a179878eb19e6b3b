package httpx

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// UserIDHeader carries the authenticated subject, injected by the gateway
// on every proxied request. The gateway overwrites any client-supplied
// value, so behind the gateway this header is the only identity services
// trust.
const UserIDHeader = "x-user-id"

const userIDKey = "userID"

// RequireUser rejects requests that arrive without a gateway-resolved
// identity and stores the user ID on the gin context for handlers.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(UserIDHeader)
		if userID == "" {
			slog.Warn("Request without authenticated user", "path", c.Request.URL.Path)
			Fail(c, http.StatusUnauthorized, "Authentication required! Please login to continue")
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the identity set by RequireUser.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
