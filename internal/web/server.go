package web

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/cpmpazar/cpm-pazar/internal/listing"
	"github.com/cpmpazar/cpm-pazar/internal/storage"
	"github.com/cpmpazar/cpm-pazar/internal/ui"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	// SessionCookie carries the browser session id.
	SessionCookie = "cpm_session"

	// submitTimeout bounds how long a submit request waits for its listing.
	submitTimeout = 30 * time.Second

	// defaultGenerationWait bounds how long a generate request waits for the
	// ad copy when Options.GenerationTimeout is unset.
	defaultGenerationWait = 30 * time.Second

	sessionKey = "session"
)

// Options configures a Server.
type Options struct {
	Registry      *ui.Registry
	Usage         storage.GenerationStore // Optional, enables /api/usage
	MaxImageBytes int64

	// GenerationTimeout bounds how long a generate request waits for the ad
	// copy before the page is rendered without it.
	GenerationTimeout time.Duration
}

// Server renders the marketplace page and handles its form actions.
type Server struct {
	registry      *ui.Registry
	usage         storage.GenerationStore
	maxImageBytes int64
	generateWait  time.Duration
	engine        *gin.Engine
}

// NewServer builds the gin engine and registers all routes.
func NewServer(opts Options) (*Server, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"formatPrice":         FormatPrice,
		"formatDate":          FormatDate,
		"imageURL":            imageURL,
		"truncateTitle":       truncateTitle,
		"truncateDescription": truncateDescription,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	maxImageBytes := opts.MaxImageBytes
	if maxImageBytes <= 0 {
		maxImageBytes = listing.DefaultMaxImageSize
	}

	generateWait := opts.GenerationTimeout
	if generateWait <= 0 {
		generateWait = defaultGenerationWait
	}
	// Room for the fallback text produced when the describer times out
	generateWait += time.Second

	s := &Server{
		registry:      opts.Registry,
		usage:         opts.Usage,
		maxImageBytes: maxImageBytes,
		generateWait:  generateWait,
	}

	engine := gin.New()
	engine.Use(requestLogger(), gin.Recovery())
	engine.SetHTMLTemplate(tmpl)
	// Room for the image plus the text fields of the form
	engine.MaxMultipartMemory = maxImageBytes + 1<<20
	s.engine = engine

	s.RegisterRoutes(engine)
	return s, nil
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// RegisterRoutes registers the page, form and API routes.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", s.Healthz)

	pages := r.Group("/", s.withSession)
	pages.GET("/", s.Index)
	pages.GET("/search", s.Search)

	pages.POST("/modal/open", s.OpenModal)
	pages.POST("/modal/close", s.CloseModal)
	pages.POST("/modal/image", s.SelectImage)
	pages.GET("/modal/preview", s.Preview)
	pages.POST("/modal/generate", s.Generate)

	pages.POST("/listings", s.Submit)
	pages.POST("/listings/:id/contact", s.ContactSeller)

	api := r.Group("/api", s.withSession)
	api.GET("/listings", s.ListListings)
	api.GET("/usage", s.Usage)
}

// withSession resolves the browser session from its cookie, issuing a new id
// when the cookie is missing or malformed.
func (s *Server) withSession(c *gin.Context) {
	id, err := c.Cookie(SessionCookie)
	if err != nil || uuid.Validate(id) != nil {
		id = uuid.NewString()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookie, id, 0, "/", "", false, true)
	}
	c.Set(sessionKey, s.registry.Get(id))
	c.Next()
}

func sessionFrom(c *gin.Context) *ui.Session {
	return c.MustGet(sessionKey).(*ui.Session)
}

// requestLogger logs each request through zerolog.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := log.Debug()
		switch {
		case status >= http.StatusInternalServerError:
			event = log.Error()
		case status >= http.StatusBadRequest:
			event = log.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	}
}
