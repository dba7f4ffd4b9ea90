// Package handlers wires HTTP routes to the gallery orchestrator. Pages
// render HTML templates; the api handlers return JSON fragments consumed by
// the front-end scripts.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mvexel/nostalgickr/internal/flickr"
	"github.com/mvexel/nostalgickr/internal/gallery"
	"github.com/mvexel/nostalgickr/internal/logging"
	"github.com/mvexel/nostalgickr/internal/middleware"
	"github.com/mvexel/nostalgickr/internal/session"
)

// OAuthFlow is the credential-handshake surface of the upstream client.
type OAuthFlow interface {
	AuthURL() (authURL, requestToken, requestSecret string, err error)
	ExchangeToken(requestToken, requestSecret, verifier string) (flickr.Credentials, error)
}

// Handlers carries the dependencies shared by all routes.
type Handlers struct {
	svc    *gallery.Service
	sess   *session.Manager
	oauth  OAuthFlow
	logger logging.Logger
}

// New creates the handler set.
func New(svc *gallery.Service, sess *session.Manager, oauth OAuthFlow, logger logging.Logger) *Handlers {
	return &Handlers{svc: svc, sess: sess, oauth: oauth, logger: logger}
}

// creds returns the session's credential pair, or nil when anonymous.
func creds(rec session.Record) *flickr.Credentials {
	if !rec.Authenticated() {
		return nil
	}
	return &flickr.Credentials{Token: rec.OAuthToken, Secret: rec.OAuthTokenSecret}
}

// pageContext builds the base template context every page shares.
func pageContext(c *gin.Context, extra gin.H) gin.H {
	rec := middleware.SessionRecord(c)
	ctx := gin.H{
		"logged_in":         rec.Authenticated(),
		"user_display_name": rec.UserName,
		"now":               time.Now(),
	}
	for k, v := range extra {
		ctx[k] = v
	}
	return ctx
}

// apiError maps the error taxonomy onto JSON responses.
func (h *Handlers) apiError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gallery.ErrAuthRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
	case errors.Is(err, flickr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "No photo found"})
	case errors.Is(err, flickr.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "upstream unavailable"})
	default:
		h.logger.WithFields(logging.Fields{
			"error": err.Error(),
			"path":  c.Request.URL.Path,
		}).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
