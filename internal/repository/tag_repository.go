package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"imagehub/internal/database"
	"imagehub/internal/ids"
	"imagehub/internal/models"
)

var (
	ErrTagNotFound = errors.New("tag not found")
	ErrTagExists   = errors.New("tag already exists")
)

type TagRepository struct {
	pool DB
}

func NewTagRepository(pool DB) *TagRepository {
	return &TagRepository{pool: pool}
}

// GetOrCreate returns the tag with the given name, inserting it if needed.
// Concurrent callers racing on the same name all receive the same row.
func (r *TagRepository) GetOrCreate(ctx context.Context, name string) (models.Tag, error) {
	const query = `
		INSERT INTO tags (id, name, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, created_at
	`
	var tag models.Tag
	err := r.pool.QueryRow(ctx, query, ids.New(), name).Scan(&tag.ID, &tag.Name, &tag.CreatedAt)
	return tag, err
}

func (r *TagRepository) Create(ctx context.Context, name string) (models.Tag, error) {
	const query = `
		INSERT INTO tags (id, name, created_at)
		VALUES ($1, $2, NOW())
		RETURNING id, name, created_at
	`
	var tag models.Tag
	if err := r.pool.QueryRow(ctx, query, ids.New(), name).Scan(&tag.ID, &tag.Name, &tag.CreatedAt); err != nil {
		if database.IsUniqueViolation(err) {
			return models.Tag{}, ErrTagExists
		}
		return models.Tag{}, err
	}
	return tag, nil
}

func (r *TagRepository) GetByName(ctx context.Context, name string) (models.Tag, error) {
	const query = `SELECT id, name, created_at FROM tags WHERE name = $1`
	var tag models.Tag
	if err := r.pool.QueryRow(ctx, query, name).Scan(&tag.ID, &tag.Name, &tag.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Tag{}, ErrTagNotFound
		}
		return models.Tag{}, err
	}
	return tag, nil
}

func (r *TagRepository) List(ctx context.Context, limit, offset int) ([]models.Tag, error) {
	limit, offset = normalizePage(limit, offset)
	return r.query(ctx, `
		SELECT id, name, created_at FROM tags
		ORDER BY name
		LIMIT $1 OFFSET $2
	`, limit, offset)
}

// Search matches tags whose name contains the fragment.
func (r *TagRepository) Search(ctx context.Context, fragment string, limit int) ([]models.Tag, error) {
	limit, _ = normalizePage(limit, 0)
	return r.query(ctx, `
		SELECT id, name, created_at FROM tags
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY name
		LIMIT $2
	`, fragment, limit)
}

// DeleteByName removes the tag; image links go with it.
func (r *TagRepository) DeleteByName(ctx context.Context, name string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tags WHERE name = $1`, name)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTagNotFound
	}
	return nil
}

func (r *TagRepository) query(ctx context.Context, query string, args ...any) ([]models.Tag, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []models.Tag
	for rows.Next() {
		var tag models.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.CreatedAt); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}
