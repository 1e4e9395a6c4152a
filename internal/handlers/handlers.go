package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"imagehub/internal/config"
	"imagehub/internal/middleware"
	"imagehub/internal/models"
	"imagehub/internal/security"
	"imagehub/internal/service"
)

type ImageService interface {
	IngestBatch(ctx context.Context, uploads []service.Upload) service.BatchResult
	Get(ctx context.Context, id string) (models.Image, error)
	List(ctx context.Context, limit, offset int) ([]models.Image, error)
	ListUntagged(ctx context.Context, limit, offset int) ([]models.Image, error)
	NextUntagged(ctx context.Context) (models.Image, error)
	Search(ctx context.Context, q models.ImageQuery) ([]models.Image, error)
	Content(ctx context.Context, id string) ([]byte, string, error)
	Preview(ctx context.Context, id string, kind models.PreviewKind) ([]byte, error)
	Tag(ctx context.Context, id string, in service.TagInput) (models.Image, error)
	Delete(ctx context.Context, id string) (service.DeleteReport, error)
	QueuePreviews(ctx context.Context, id string) error
}

type CatalogService interface {
	ListTags(ctx context.Context, limit, offset int) ([]models.Tag, error)
	SearchTags(ctx context.Context, query string, limit int) ([]models.Tag, error)
	CreateTag(ctx context.Context, name string) (models.Tag, error)
	DeleteTag(ctx context.Context, name string) error
	ListAuthors(ctx context.Context, limit, offset int) ([]models.Author, error)
	SearchAuthors(ctx context.Context, query string, limit int) ([]models.Author, error)
	GetAuthor(ctx context.Context, id string) (models.Author, error)
	CreateAuthor(ctx context.Context, in service.AuthorInput) (models.Author, error)
	UpdateAuthor(ctx context.Context, id string, upd service.AuthorUpdate) (models.Author, error)
	DeleteAuthor(ctx context.Context, id string) error
}

type AuthService interface {
	Login(ctx context.Context, input service.LoginInput) (service.AuthResult, error)
	Refresh(ctx context.Context, input service.RefreshInput) (service.AuthResult, error)
	Logout(ctx context.Context, sessionID string) error
	Authenticate(ctx context.Context, accessToken string) (models.User, *security.AccessClaims, error)
	ListSessions(ctx context.Context, userID string) ([]models.Session, error)
	RevokeSession(ctx context.Context, userID, sessionID string) error
	IssueCSRF(ctx context.Context, sessionID string) (string, error)
	CheckCSRF(ctx context.Context, sessionID, token string) bool
	SessionTTL() time.Duration
}

type UserService interface {
	Create(ctx context.Context, in service.CreateUserInput) (models.User, error)
	Get(ctx context.Context, id string) (models.User, error)
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	UpdateProfile(ctx context.Context, id string, upd service.ProfileUpdate) (models.User, error)
	ChangePassword(ctx context.Context, id, current, next string) error
	SetSuperuser(ctx context.Context, actor models.User, id string, grant bool) (models.User, error)
	SetLocked(ctx context.Context, actor models.User, id string, locked bool) (models.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, password string) error
}

// Deps are the collaborators of the HTTP layer. The ping functions back
// the health endpoint and may be nil.
type Deps struct {
	Images    ImageService
	Catalog   CatalogService
	Auth      AuthService
	Users     UserService
	PingDB    func(context.Context) error
	PingCache func(context.Context) error
}

type HandlerSet struct {
	log       zerolog.Logger
	cfg       *config.AppConfig
	images    ImageService
	catalog   CatalogService
	auth      AuthService
	users     UserService
	pingDB    func(context.Context) error
	pingCache func(context.Context) error
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, deps Deps) HandlerSet {
	return HandlerSet{
		log:       log,
		cfg:       cfg,
		images:    deps.Images,
		catalog:   deps.Catalog,
		auth:      deps.Auth,
		users:     deps.Users,
		pingDB:    deps.PingDB,
		pingCache: deps.PingCache,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")

	auth := v1.Group("/auth")
	auth.POST("/login", h.Login)
	auth.POST("/refresh", h.Refresh)
	auth.POST("/password-reset/request", h.RequestPasswordReset)
	auth.POST("/password-reset/confirm", h.ConfirmPasswordReset)

	protected := v1.Group("")
	protected.Use(
		middleware.Auth(h.auth),
		middleware.CSRF(h.auth),
	)

	session := protected.Group("/auth")
	session.POST("/logout", h.Logout)
	session.GET("/me", h.Me)
	session.GET("/csrf", h.CSRFToken)
	session.POST("/password", h.ChangePassword)
	session.GET("/sessions", h.ListSessions)
	session.DELETE("/sessions/:id", h.RevokeSession)

	images := protected.Group("/images")
	images.POST("", h.UploadImages)
	images.GET("", h.ListImages)
	images.GET("/search", h.SearchImages)
	images.GET("/untagged", h.ListUntagged)
	images.GET("/untagged/next", h.NextUntagged)
	images.GET("/:id", h.GetImage)
	images.GET("/:id/content", h.ImageContent)
	images.GET("/:id/preview/:kind", h.ImagePreview)
	images.PUT("/:id/tags", h.TagImage)
	images.DELETE("/:id", h.DeleteImage)

	tags := protected.Group("/tags")
	tags.GET("", h.ListTags)
	tags.GET("/search", h.SearchTags)
	tags.POST("", h.CreateTag)
	tags.DELETE("/:name", middleware.RequireAdmin(), h.DeleteTag)

	authors := protected.Group("/authors")
	authors.GET("", h.ListAuthors)
	authors.GET("/search", h.SearchAuthors)
	authors.GET("/:id", h.GetAuthor)
	authors.POST("", h.CreateAuthor)
	authors.PATCH("/:id", middleware.RequireAdmin(), h.UpdateAuthor)
	authors.DELETE("/:id", middleware.RequireAdmin(), h.DeleteAuthor)

	users := protected.Group("/users")
	users.GET("/me", h.Me)
	users.PATCH("/me", h.UpdateMe)
	users.POST("", middleware.RequireAdmin(), h.CreateUser)
	users.GET("", middleware.RequireAdmin(), h.ListUsers)
	users.PUT("/:id/superuser", middleware.RequireSuperuser(), h.SetSuperuser)
	users.PUT("/:id/lock", middleware.RequireAdmin(), h.SetLocked)

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	admin.POST("/images/:id/previews", h.QueuePreviews)
}

// pagination reads page/perPage query parameters.
func pagination(c *gin.Context) (limit, offset int) {
	limit = 50
	if perPage := c.Query("perPage"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}
	if page := c.Query("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 1 {
			offset = (v - 1) * limit
		}
	}
	return limit, offset
}

func searchLimit(c *gin.Context) int {
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 100 {
		return v
	}
	return 20
}
