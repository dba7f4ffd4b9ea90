package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mvexel/nostalgickr/internal/logging"
	"github.com/mvexel/nostalgickr/internal/middleware"
	"github.com/mvexel/nostalgickr/internal/session"
)

// Login starts the OAuth handshake. The request token pair is stashed in the
// session; it is replaced by the access pair when the callback completes.
func (h *Handlers) Login(c *gin.Context) {
	authURL, requestToken, requestSecret, err := h.oauth.AuthURL()
	if err != nil {
		h.apiError(c, err)
		return
	}

	if _, err := h.sess.Mutate(c.Request.Context(), middleware.SessionID(c), func(r *session.Record) {
		r.OAuthToken = requestToken
		r.OAuthTokenSecret = requestSecret
		r.UserNSID = ""
		r.UserName = ""
	}); err != nil {
		h.apiError(c, err)
		return
	}

	c.Redirect(http.StatusFound, authURL)
}

// Callback completes the handshake: it trades the verifier for access
// credentials and records the user's identity in the session.
func (h *Handlers) Callback(c *gin.Context) {
	oauthToken := c.Query("oauth_token")
	verifier := c.Query("oauth_verifier")
	if oauthToken == "" || verifier == "" {
		c.Redirect(http.StatusFound, "/")
		return
	}

	rec := middleware.SessionRecord(c)
	accessCreds, err := h.oauth.ExchangeToken(oauthToken, rec.OAuthTokenSecret, verifier)
	if err != nil {
		h.apiError(c, err)
		return
	}

	if _, err := h.sess.Mutate(c.Request.Context(), middleware.SessionID(c), func(r *session.Record) {
		r.OAuthToken = accessCreds.Token
		r.OAuthTokenSecret = accessCreds.Secret
	}); err != nil {
		h.apiError(c, err)
		return
	}

	// Best-effort identity fetch; pages fall back to fetching it later.
	if user, err := h.svc.UserInfo(c.Request.Context(), accessCreds); err == nil {
		if _, err := h.sess.Mutate(c.Request.Context(), middleware.SessionID(c), func(r *session.Record) {
			r.UserNSID = user.NSID
			r.UserName = user.Username.String()
		}); err != nil {
			h.logger.WithFields(logging.Fields{"error": err.Error()}).Warn("Session update failed")
		}
	}

	c.Redirect(http.StatusFound, "/")
}

// Logout deletes the session record. The browser may keep presenting the
// old cookie value; it resolves to an anonymous session from here on.
func (h *Handlers) Logout(c *gin.Context) {
	if err := h.sess.Destroy(c.Request.Context(), middleware.SessionID(c)); err != nil {
		h.apiError(c, err)
		return
	}
	c.SetCookie(middleware.CookieName, "", -1, "/", "", false, true)
	c.Redirect(http.StatusFound, "/")
}
