package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mvexel/nostalgickr/internal/middleware"
)

// PhotoDetails returns the metadata fragment the photo page polls for.
// Works for anonymous callers too, limited to public photos upstream.
func (h *Handlers) PhotoDetails(c *gin.Context) {
	rec := middleware.SessionRecord(c)

	details, err := h.svc.PhotoDetails(c.Request.Context(), creds(rec), c.Param("id"))
	if err != nil {
		h.apiError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tags":        details.Tags,
		"views":       details.Views,
		"comments":    details.Comments.String(),
		"description": details.Description.String(),
	})
}

// FriendLatestPhoto is the single-contact legacy endpoint. The cache is
// consulted before the auth gate, so it keeps answering for cached contacts
// even when the session has expired.
func (h *Handlers) FriendLatestPhoto(c *gin.Context) {
	rec := middleware.SessionRecord(c)

	res, err := h.svc.FriendLatestPhoto(c.Request.Context(), creds(rec), c.Param("nsid"))
	if err != nil {
		h.apiError(c, err)
		return
	}
	switch {
	case res.NotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "No photo found"})
	case res.Error != "":
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": res.Error})
	default:
		c.JSON(http.StatusOK, res.Photo)
	}
}

// FriendLatestPhotos resolves the latest photo for a list of contacts in one
// round trip. Every requested identifier gets an entry in the response.
func (h *Handlers) FriendLatestPhotos(c *gin.Context) {
	var nsids []string
	if err := c.ShouldBindJSON(&nsids); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected a JSON array of user identifiers"})
		return
	}
	rec := middleware.SessionRecord(c)

	results, err := h.svc.FriendLatestPhotos(c.Request.Context(), *creds(rec), nsids)
	if err != nil {
		h.apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// BatchPhotoSizes resolves size listings for a list of photos, mirroring the
// contact batch endpoint's shape.
func (h *Handlers) BatchPhotoSizes(c *gin.Context) {
	var photoIDs []string
	if err := c.ShouldBindJSON(&photoIDs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected a JSON array of photo identifiers"})
		return
	}

	results, err := h.svc.BatchPhotoSizes(c.Request.Context(), photoIDs)
	if err != nil {
		h.apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}
