package service

import (
	"context"
	"time"

	"imagehub/internal/models"
)

// Persistence contracts. The repository package implements them on PostgreSQL.

type ImageStore interface {
	Create(ctx context.Context, image models.Image) (models.Image, error)
	GetByID(ctx context.Context, id string) (models.Image, error)
	List(ctx context.Context, limit, offset int) ([]models.Image, error)
	ListUntagged(ctx context.Context, limit, offset int) ([]models.Image, error)
	NextUntagged(ctx context.Context) (models.Image, error)
	Search(ctx context.Context, q models.ImageQuery) ([]models.Image, error)
	ListMissingPreviews(ctx context.Context, limit int) ([]models.Image, error)
	ApplyTagging(ctx context.Context, id string, tagIDs []string, authorID *string) error
	UpdateLocation(ctx context.Context, id string, loc models.ImageLocation) error
	UpdatePreviews(ctx context.Context, id string, tagPath, searchPath *string) error
	Delete(ctx context.Context, id string) error
}

type TagStore interface {
	GetOrCreate(ctx context.Context, name string) (models.Tag, error)
	Create(ctx context.Context, name string) (models.Tag, error)
	GetByName(ctx context.Context, name string) (models.Tag, error)
	List(ctx context.Context, limit, offset int) ([]models.Tag, error)
	Search(ctx context.Context, fragment string, limit int) ([]models.Tag, error)
	DeleteByName(ctx context.Context, name string) error
}

type AuthorStore interface {
	Create(ctx context.Context, author models.Author) error
	GetByID(ctx context.Context, id string) (models.Author, error)
	GetByName(ctx context.Context, name string) (models.Author, error)
	Update(ctx context.Context, author models.Author) error
	List(ctx context.Context, limit, offset int) ([]models.Author, error)
	Search(ctx context.Context, fragment string, limit int) ([]models.Author, error)
	Delete(ctx context.Context, id string) error
}

type UserStore interface {
	Create(ctx context.Context, user models.User) error
	GetByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByLogin(ctx context.Context, login string) (models.User, error)
	FindByResetHash(ctx context.Context, hash []byte) (models.User, error)
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	Update(ctx context.Context, user models.User) error
	UpdatePassword(ctx context.Context, id string, hash []byte, forceChange bool) error
	SetResetToken(ctx context.Context, id string, hash []byte, expires time.Time) error
	TouchLogin(ctx context.Context, id string) error
	ClearExpiredResetTokens(ctx context.Context) (int64, error)
}

type SessionStore interface {
	Create(ctx context.Context, session models.Session) error
	GetByID(ctx context.Context, id string) (models.Session, error)
	FindByRefreshHash(ctx context.Context, hash []byte) (models.Session, error)
	ListByUser(ctx context.Context, userID string) ([]models.Session, error)
	Rotate(ctx context.Context, id string, refreshHash []byte, ip, userAgent string) error
	TrimToLatest(ctx context.Context, userID string, keep int) error
	DeleteByID(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// PreviewQueue schedules asynchronous preview regeneration.
type PreviewQueue interface {
	EnqueuePreview(ctx context.Context, imageID string) error
}
