package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mvexel/nostalgickr/internal/flickr"
	"github.com/mvexel/nostalgickr/internal/gallery"
	"github.com/mvexel/nostalgickr/internal/logging"
	"github.com/mvexel/nostalgickr/internal/middleware"
	"github.com/mvexel/nostalgickr/internal/session"
)

const photosPerPage = 20

// Index renders the landing page: the user's own photos when logged in
// (privacy-filtered, paginated), recent public uploads otherwise. Upstream
// trouble degrades to an empty listing rather than an error page.
func (h *Handlers) Index(c *gin.Context) {
	rec := middleware.SessionRecord(c)

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	privacy := c.DefaultQuery("privacy", "public")

	photos := []flickr.Photo{}
	pages := 1
	if cr := creds(rec); cr != nil {
		photoPage, err := h.svc.OwnPhotos(c.Request.Context(), *cr, page, photosPerPage, flickr.ParsePrivacy(privacy))
		if err != nil {
			h.logger.WithFields(logging.Fields{"error": err.Error()}).Warn("Own photos fetch failed")
		} else {
			photos = photoPage.Photos
			if photoPage.Pages.Int() > 0 {
				pages = photoPage.Pages.Int()
			}
		}
	} else {
		recent, err := h.svc.RecentPhotos(c.Request.Context(), photosPerPage)
		if err != nil {
			h.logger.WithFields(logging.Fields{"error": err.Error()}).Warn("Recent photos fetch failed")
		} else {
			photos = recent
		}
	}

	c.HTML(http.StatusOK, "index.html", pageContext(c, gin.H{
		"photos":    photos,
		"page":      page,
		"pages":     pages,
		"prev_page": page - 1,
		"next_page": page + 1,
		"privacy":   privacy,
	}))
}

// PhotoPage renders a single photo with its preferred rendition and metadata.
func (h *Handlers) PhotoPage(c *gin.Context) {
	photoID := c.Param("id")
	rec := middleware.SessionRecord(c)

	details, err := h.svc.PhotoDetails(c.Request.Context(), creds(rec), photoID)
	if err != nil {
		status := http.StatusNotFound
		if errors.Is(err, flickr.ErrUnavailable) {
			status = http.StatusServiceUnavailable
		} else if !errors.Is(err, flickr.ErrNotFound) {
			status = http.StatusInternalServerError
		}
		c.HTML(status, "404.html", pageContext(c, nil))
		return
	}

	// Missing sizes leave the page without an image, not broken.
	imageURL := ""
	sizes, err := h.svc.PhotoSizes(c.Request.Context(), photoID)
	if err == nil {
		imageURL = gallery.SelectImageURL(sizes)
	}

	c.HTML(http.StatusOK, "photo.html", pageContext(c, gin.H{
		"photo":     details,
		"image_url": imageURL,
	}))
}

// Friends renders the contact list page. The contacts' photos themselves are
// loaded by the front-end through the batch endpoint.
func (h *Handlers) Friends(c *gin.Context) {
	rec := middleware.SessionRecord(c)

	friends := []flickr.Contact{}
	if cr := creds(rec); cr != nil {
		contacts, err := h.svc.Contacts(c.Request.Context(), *cr)
		if err != nil {
			h.logger.WithFields(logging.Fields{"error": err.Error()}).Warn("Contacts fetch failed")
		} else {
			friends = contacts
		}
	}

	c.HTML(http.StatusOK, "friends.html", pageContext(c, gin.H{
		"friends": friends,
		"page":    1,
	}))
}

// Groups renders the user's group memberships.
func (h *Handlers) Groups(c *gin.Context) {
	rec := middleware.SessionRecord(c)
	cr := creds(rec)

	nsid := rec.UserNSID
	if nsid == "" && cr != nil {
		user, err := h.svc.UserInfo(c.Request.Context(), *cr)
		if err == nil {
			nsid = user.NSID
			if _, err := h.sess.Mutate(c.Request.Context(), middleware.SessionID(c), func(r *session.Record) {
				r.UserNSID = user.NSID
				r.UserName = user.Username.String()
			}); err != nil {
				h.logger.WithFields(logging.Fields{"error": err.Error()}).Warn("Session update failed")
			}
		}
	}

	groups := []flickr.Group{}
	if cr != nil && nsid != "" {
		fetched, err := h.svc.Groups(c.Request.Context(), *cr, nsid)
		if err != nil {
			h.logger.WithFields(logging.Fields{"error": err.Error()}).Warn("Groups fetch failed")
		} else {
			groups = fetched
		}
	}

	c.HTML(http.StatusOK, "groups.html", pageContext(c, gin.H{
		"groups": groups,
	}))
}

// NotFound renders the themed 404 page.
func (h *Handlers) NotFound(c *gin.Context) {
	c.HTML(http.StatusNotFound, "404.html", pageContext(c, nil))
}
