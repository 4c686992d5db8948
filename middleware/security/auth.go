package security

import (
	"net/http"
	"strings"
	"sync"

	"Parley/tools/errs"
	sec "Parley/tools/security"

	"github.com/gin-gonic/gin"
)

// Context key the downstream handlers read the caller identity from.
const CtxUserIDKey = "userID"

var (
	mu   sync.RWMutex
	opts sec.Options
)

// Init configures the verifier; call once from bootstrap.
func Init(secret []byte) {
	mu.Lock()
	defer mu.Unlock()
	opts = sec.DefaultOptions(secret)
}

func current() sec.Options {
	mu.RLock()
	defer mu.RUnlock()
	return opts
}

// Middleware authenticates the request from the Authorization header
// (Bearer token) or, for websocket upgrades, the `token` query param.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				token = strings.TrimSpace(authz[len("bearer "):])
			}
		}
		if token == "" {
			token = strings.TrimSpace(c.Query("token"))
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenInvalid)
			return
		}

		userID, err := sec.Verify(current(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenExpired.WithDetail(err.Error()))
			return
		}
		c.Set(CtxUserIDKey, userID)
		c.Next()
	}
}

// MustUserID returns the authenticated caller id; empty when the request
// skipped the auth middleware.
func MustUserID(c *gin.Context) string {
	return c.GetString(CtxUserIDKey)
}
