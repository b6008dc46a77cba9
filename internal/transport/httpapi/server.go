package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"Encyclopedia/internal/apperr"
	"Encyclopedia/internal/usecase"
)

// Renderer turns article markup into HTML for public reads.
type Renderer interface {
	Render(content string) (string, error)
}

// Handlers groups the use cases exposed over HTTP.
type Handlers struct {
	Articles   *usecase.Articles
	Versions   *usecase.VersionStore
	Moderation *usecase.Moderation
	Generation *usecase.Orchestrator
	Renderer   Renderer
	Auth       TokenVerifier
	Metrics    http.Handler
	Logger     *slog.Logger
	// MaxUploadBytes caps multipart image uploads.
	MaxUploadBytes int64
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(h Handlers) *gin.Engine {
	if h.Logger == nil {
		h.Logger = slog.Default()
	}
	if h.MaxUploadBytes <= 0 {
		h.MaxUploadBytes = 10 << 20
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.Logger))
	r.MaxMultipartMemory = h.MaxUploadBytes

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}
	r.GET("/wiki/:slug", h.readPublic)

	api := r.Group("/api", h.Auth.Middleware())
	{
		api.POST("/articles", h.saveArticle)
		api.GET("/articles/:id", h.getArticle)
		api.PUT("/articles/:id", h.saveArticle)
		api.DELETE("/articles/:id", h.deleteArticle)
		api.POST("/articles/:id/submit", h.submitArticle)
		api.PATCH("/articles/:id/metadata", h.updateMetadata)
		api.POST("/articles/:id/images", h.attachImage)
		api.POST("/articles/:id/archive", h.archiveArticle)

		api.GET("/articles/:id/versions", h.listVersions)
		api.GET("/articles/:id/versions/:number", h.versionByNumber)
		api.POST("/articles/:id/versions/:versionID/restore", h.restoreVersion)

		mod := api.Group("/moderation")
		mod.GET("/pending", h.listPending)
		mod.GET("/approved", h.listApproved)
		mod.GET("/published", h.listPublished)
		mod.GET("/submissions", h.listSubmissions)
		mod.POST("/revisions/:id/approve", h.approveRevision)
		mod.POST("/revisions/:id/reject", h.rejectRevision)
		mod.DELETE("/revisions/:id", h.deleteRevision)
		mod.POST("/submissions/:id/approve", h.approveSubmission)
		mod.POST("/submissions/:id/reject", h.rejectSubmission)

		api.POST("/generation/batches", h.generateBatch)
		api.GET("/generation/progress", h.generationProgress)
	}

	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
		)
	}
}

var statusByCode = map[apperr.Code]int{
	apperr.CodeValidation:        http.StatusBadRequest,
	apperr.CodeNotFound:          http.StatusNotFound,
	apperr.CodeConflict:          http.StatusConflict,
	apperr.CodeInvalidTransition: http.StatusConflict,
	apperr.CodeForbidden:         http.StatusForbidden,
	apperr.CodePartialCommit:     http.StatusInternalServerError,
	apperr.CodeBackend:           http.StatusBadGateway,
	apperr.CodeInternal:          http.StatusInternalServerError,
}

// fail writes err as {"error": code, "message": msg}. Internal detail stays in the log.
func (h *Handlers) fail(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		h.Logger.Error("request failed", "path", c.FullPath(), "code", code, "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": apperr.Message(err)})
}

func (h *Handlers) badRequest(c *gin.Context, message string) {
	h.fail(c, apperr.New(apperr.CodeValidation, c.FullPath(), message))
}
