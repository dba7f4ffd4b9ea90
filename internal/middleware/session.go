package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mvexel/nostalgickr/internal/logging"
	"github.com/mvexel/nostalgickr/internal/session"
)

// CookieName is the browser cookie carrying the session identifier.
const CookieName = "session_id"

const (
	ctxSessionID     = "session_id"
	ctxSessionRecord = "session_record"
)

// SessionMiddleware resolves the session cookie into a session record and
// re-sets the cookie on every response so its lifetime tracks activity.
// Requests fail with 500 when the session store is down; there is no
// session-less degraded mode.
func SessionMiddleware(mgr *session.Manager, cookieMaxAge int, logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookieValue, _ := c.Cookie(CookieName)

		id, rec, err := mgr.Resolve(c.Request.Context(), cookieValue)
		if err != nil {
			logger.WithFields(logging.Fields{
				"error": err.Error(),
				"path":  c.Request.URL.Path,
			}).Error("Session resolution failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session store unavailable"})
			return
		}

		c.Set(ctxSessionID, id)
		c.Set(ctxSessionRecord, rec)
		c.SetCookie(CookieName, id, cookieMaxAge, "/", "", false, true)

		c.Next()
	}
}

// SessionID returns the session identifier resolved for this request.
func SessionID(c *gin.Context) string {
	return c.GetString(ctxSessionID)
}

// SessionRecord returns the session record resolved for this request.
func SessionRecord(c *gin.Context) session.Record {
	if v, ok := c.Get(ctxSessionRecord); ok {
		if rec, ok := v.(session.Record); ok {
			return rec
		}
	}
	return session.Record{}
}

// RequireAuthPage redirects unauthenticated browsers to the login flow.
func RequireAuthPage() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !SessionRecord(c).Authenticated() {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAuthAPI rejects unauthenticated JSON requests with 401.
func RequireAuthAPI() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !SessionRecord(c).Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		c.Next()
	}
}
