package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/cpmpazar/cpm-pazar/internal/listing"
	"github.com/cpmpazar/cpm-pazar/internal/ui"
)

// pageData is the template context of the marketplace page.
type pageData struct {
	ui.View
	Year           int
	MaxImageMB     int64
	ModalOpen      bool
	Generating     bool
	ShowEmptyState bool
	NoListings     bool
}

func (s *Server) newPageData(v ui.View) pageData {
	d := pageData{
		View:       v,
		Year:       time.Now().Year(),
		MaxImageMB: s.maxImageBytes >> 20,
		ModalOpen:  v.Modal == ui.ModalOpen,
		Generating: v.Generation == ui.GenerationInFlight,
		NoListings: v.EmptyState == listing.EmptyNoListings,
	}
	d.ShowEmptyState = v.EmptyState != listing.EmptyNone
	return d
}

// backToPage sends the browser back to the page after a form action.
func backToPage(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, "/")
}

// Healthz reports liveness.
func (s *Server) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GET /?q=...
func (s *Server) Index(c *gin.Context) {
	session := sessionFrom(c)
	if q, ok := c.GetQuery("q"); ok {
		session.SetSearchTerm(q)
	}
	c.HTML(http.StatusOK, "page.html", s.newPageData(session.TakeView()))
}

// GET /search?q=...
func (s *Server) Search(c *gin.Context) {
	sessionFrom(c).SetSearchTerm(c.Query("q"))
	backToPage(c)
}

// POST /modal/open
func (s *Server) OpenModal(c *gin.Context) {
	sessionFrom(c).OpenModal()
	backToPage(c)
}

// POST /modal/close
func (s *Server) CloseModal(c *gin.Context) {
	sessionFrom(c).CloseModal()
	backToPage(c)
}

// POST /modal/image
func (s *Server) SelectImage(c *gin.Context) {
	s.applyForm(c, sessionFrom(c))
	backToPage(c)
}

// GET /modal/preview
func (s *Server) Preview(c *gin.Context) {
	img := sessionFrom(c).PreviewImage()
	if img == nil {
		c.Status(http.StatusNotFound)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, previewType(img), img.Data)
}

// previewType is the Content-Type the preview is served with. Uploads are
// echoed back on the page origin, so anything a browser could run as a
// document is sent as an opaque download instead.
func previewType(img *listing.ImageFile) string {
	mt := listing.MediaType(img)
	if !strings.HasPrefix(mt, "image/") || mt == "image/svg+xml" {
		return "application/octet-stream"
	}
	return mt
}

// POST /modal/generate
func (s *Server) Generate(c *gin.Context) {
	session := sessionFrom(c)
	s.applyForm(c, session)

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.generateWait)
	defer cancel()

	if err := session.WaitForDescription(ctx, session.RequestDescription()); err != nil {
		// The button stays disabled until the result arrives
		log.Warn().Err(err).Str("sessionID", session.ID()).Msg("description was not ready before redirect")
	}
	backToPage(c)
}

// POST /listings
func (s *Server) Submit(c *gin.Context) {
	session := sessionFrom(c)
	s.applyForm(c, session)

	result := session.Submit()
	if !result.Accepted {
		backToPage(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), submitTimeout)
	defer cancel()

	l, err := session.WaitForListing(ctx, result)
	if err != nil {
		// The listing still appears once its image is resolved
		log.Warn().Err(err).Str("sessionID", session.ID()).Msg("listing was not ready before redirect")
		backToPage(c)
		return
	}
	c.Redirect(http.StatusSeeOther, "/#listing-"+l.ID)
}

// POST /listings/:id/contact
func (s *Server) ContactSeller(c *gin.Context) {
	sessionFrom(c).ContactSeller(c.Request.Context(), c.Param("id"))
	c.Redirect(http.StatusSeeOther, "/#listing-"+c.Param("id"))
}

// GET /api/listings?q=...
func (s *Server) ListListings(c *gin.Context) {
	v := sessionFrom(c).View()
	list := v.Filtered
	if q, ok := c.GetQuery("q"); ok {
		list = listing.Filter(v.Listings, q)
	}
	c.JSON(http.StatusOK, list)
}

// GET /api/usage
func (s *Server) Usage(c *gin.Context) {
	if s.usage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "usage tracking is disabled"})
		return
	}
	summary, err := s.usage.UsageSummary()
	if err != nil {
		log.Error().Err(err).Msg("failed to read usage summary")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read usage summary"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// applyForm copies the posted modal fields into the draft. Every modal button
// posts the whole form, so typed text survives any action. A newly chosen
// image replaces the previous one.
func (s *Server) applyForm(c *gin.Context, session *ui.Session) {
	if _, ok := c.GetPostForm("title"); ok {
		session.UpdateDraft(ui.DraftFields{
			Title:       c.PostForm("title"),
			Price:       c.PostForm("price"),
			Description: c.PostForm("description"),
			SellerName:  c.PostForm("sellerName"),
		})
	}

	img, err := s.readImage(c)
	if err != nil {
		log.Warn().Err(err).Str("sessionID", session.ID()).Msg("rejected image upload")
		session.ShowAlert(ui.MsgImageRejected)
		return
	}
	if img != nil {
		session.SelectImage(img)
	}
}

// readImage returns the uploaded image, or nil when none was chosen.
func (s *Server) readImage(c *gin.Context) (*listing.ImageFile, error) {
	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if fh.Size == 0 {
		return nil, nil
	}
	if fh.Size > s.maxImageBytes {
		return nil, listing.ErrImageTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := listing.ReadImage(f, s.maxImageBytes)
	if err != nil {
		return nil, err
	}
	return &listing.ImageFile{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
