// Package httpapi exposes the note-sharing operations over HTTP/JSON using gin.
package httpapi

import (
	"context"
	"net/http"

	"github.com/engineerhub/engineerhub/internal/logging"
	"github.com/engineerhub/engineerhub/internal/server/models"
	"github.com/engineerhub/engineerhub/internal/server/services"
	"github.com/gin-gonic/gin"
)

// NoteAPI is implemented by services.NoteService.
type NoteAPI interface {
	Upload(ctx context.Context, in models.UploadInput, caller models.Principal) (*models.NoteView, error)
	PresignUpload(ctx context.Context, fileName, contentType string, caller models.Principal) (*models.PresignedUpload, error)
	Update(ctx context.Context, noteID, callerID int64, upd models.NoteUpdate) (*models.NoteView, error)
	Delete(ctx context.Context, noteID, callerID int64) error
	List(ctx context.Context, filter models.NoteFilter, callerID int64) ([]*models.NoteView, error)
	Get(ctx context.Context, noteID, callerID int64) (*models.NoteView, error)
	Download(ctx context.Context, noteID int64) (*models.Note, []byte, error)
}

// ReactionAPI is implemented by services.ReactionService.
type ReactionAPI interface {
	React(ctx context.Context, noteID, userID int64, p models.Polarity) (*models.ReactionResult, error)
}

// OrphanAPI is implemented by services.OrphanService.
type OrphanAPI interface {
	ListOrphans(ctx context.Context) (*models.OrphanReport, error)
	Recover(ctx context.Context, in models.RecoverInput, caller models.Principal) (*models.NoteView, error)
}

// UserAPI is implemented by services.UserService.
type UserAPI interface {
	Authenticator
	Register(ctx context.Context, reg models.Registration) (*services.AuthResult, error)
	Login(ctx context.Context, name, password string) (*services.AuthResult, error)
	Me(ctx context.Context, userID int64) (*models.User, error)
}

// Deps are the collaborators of the router.
type Deps struct {
	Notes     NoteAPI
	Reactions ReactionAPI
	Orphans   OrphanAPI
	Users     UserAPI

	// Health reports readiness for /healthz; nil means always healthy.
	Health func(ctx context.Context) error

	Log            logging.Logger
	AllowedOrigins []string
}

type handler struct {
	Deps
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = logging.Nop()
	}
	h := &handler{Deps: d}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Log))
	if len(d.AllowedOrigins) > 0 {
		r.Use(corsMiddleware(d.AllowedOrigins))
	}
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, Response{Success: false, Message: "route not found", Kind: "not_found"})
	})

	r.GET("/healthz", h.health)

	api := r.Group("/api")
	{
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", h.register)
			authRoutes.POST("/login", h.login)
			authRoutes.GET("/me", requireAuth(d.Users), h.me)
		}

		noteRoutes := api.Group("/notes")
		noteRoutes.Use(requireAuth(d.Users))
		{
			noteRoutes.GET("", h.listNotes)
			noteRoutes.POST("", h.uploadNote)
			noteRoutes.POST("/presign", h.presignUpload)
			noteRoutes.POST("/external", h.registerExternal)
			noteRoutes.GET("/:id", h.getNote)
			noteRoutes.GET("/:id/file", h.downloadNote)
			noteRoutes.PUT("/:id", h.updateNote)
			noteRoutes.DELETE("/:id", h.deleteNote)
			noteRoutes.POST("/:id/like", h.react)
		}

		orphanRoutes := api.Group("/orphans")
		orphanRoutes.Use(requireAuth(d.Users))
		{
			orphanRoutes.GET("", h.listOrphans)
			orphanRoutes.POST("/recover", h.recoverOrphan)
		}
	}

	return r
}

func (h *handler) health(c *gin.Context) {
	if h.Health != nil {
		if err := h.Health(c.Request.Context()); err != nil {
			h.Log.Warn(c.Request.Context(), "health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, Response{Success: false, Message: "unhealthy", Kind: "storage_unavailable"})
			return
		}
	}
	respondOK(c, http.StatusOK, "ok", nil)
}
