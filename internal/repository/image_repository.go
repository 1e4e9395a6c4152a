package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"imagehub/internal/models"
)

var ErrImageNotFound = errors.New("image not found")

const imageSelect = `
	SELECT i.id, i.filename, i.original_name, i.untagged_path, i.tagged_path,
	       i.tag_preview_path, i.search_preview_path, i.author_id, i.size_bytes,
	       i.mime_type, i.width, i.height, i.created_at, i.updated_at,
	       a.name, a.email, a.created_at
	FROM images i
	LEFT JOIN authors a ON a.id = i.author_id
`

type ImageRepository struct {
	pool DB
}

func NewImageRepository(pool DB) *ImageRepository {
	return &ImageRepository{pool: pool}
}

// Create inserts the row and returns it with the timestamps the database
// assigned.
func (r *ImageRepository) Create(ctx context.Context, image models.Image) (models.Image, error) {
	const query = `
		INSERT INTO images (
			id, filename, original_name, untagged_path, tagged_path, tag_preview_path,
			search_preview_path, author_id, size_bytes, mime_type, width, height, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12, NOW(), NOW()
		)
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		image.ID,
		image.Filename,
		image.OriginalName,
		image.UntaggedPath,
		image.TaggedPath,
		image.TagPreviewPath,
		image.SearchPreviewPath,
		image.AuthorID,
		image.SizeBytes,
		image.MimeType,
		image.Width,
		image.Height,
	).Scan(&image.CreatedAt, &image.UpdatedAt)
	if err != nil {
		return models.Image{}, err
	}
	return image, nil
}

func (r *ImageRepository) GetByID(ctx context.Context, id string) (models.Image, error) {
	image, err := scanImage(r.pool.QueryRow(ctx, imageSelect+` WHERE i.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Image{}, ErrImageNotFound
		}
		return models.Image{}, err
	}

	images := []models.Image{image}
	if err := r.attachTags(ctx, images); err != nil {
		return models.Image{}, err
	}
	return images[0], nil
}

func (r *ImageRepository) List(ctx context.Context, limit, offset int) ([]models.Image, error) {
	limit, offset = normalizePage(limit, offset)
	return r.query(ctx, imageSelect+`
		ORDER BY i.created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
}

const untaggedFilter = `
	WHERE i.untagged_path IS NOT NULL
	  AND NOT EXISTS (SELECT 1 FROM image_tags it WHERE it.image_id = i.id)
`

// ListUntagged returns the triage queue, oldest first.
func (r *ImageRepository) ListUntagged(ctx context.Context, limit, offset int) ([]models.Image, error) {
	limit, offset = normalizePage(limit, offset)
	return r.query(ctx, imageSelect+untaggedFilter+`
		ORDER BY i.created_at ASC, i.id ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
}

func (r *ImageRepository) NextUntagged(ctx context.Context) (models.Image, error) {
	images, err := r.query(ctx, imageSelect+untaggedFilter+`
		ORDER BY i.created_at ASC, i.id ASC
		LIMIT 1
	`)
	if err != nil {
		return models.Image{}, err
	}
	if len(images) == 0 {
		return models.Image{}, ErrImageNotFound
	}
	return images[0], nil
}

// Search matches images carrying every requested tag and, when set, the
// author with exactly that name.
func (r *ImageRepository) Search(ctx context.Context, q models.ImageQuery) ([]models.Image, error) {
	limit, offset := normalizePage(q.Limit, q.Offset)

	var (
		where []string
		args  []any
	)
	if len(q.Tags) > 0 {
		args = append(args, q.Tags, len(q.Tags))
		where = append(where, fmt.Sprintf(`i.id IN (
			SELECT it.image_id FROM image_tags it
			JOIN tags t ON t.id = it.tag_id
			WHERE t.name = ANY($%d)
			GROUP BY it.image_id
			HAVING COUNT(DISTINCT t.id) = $%d
		)`, len(args)-1, len(args)))
	}
	if q.Author != "" {
		args = append(args, q.Author)
		where = append(where, fmt.Sprintf(`a.name = $%d`, len(args)))
	}

	var sb strings.Builder
	sb.WriteString(imageSelect)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	args = append(args, limit, offset)
	fmt.Fprintf(&sb, " ORDER BY i.created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	return r.query(ctx, sb.String(), args...)
}

// ListMissingPreviews returns images that have an original but lack a preview.
func (r *ImageRepository) ListMissingPreviews(ctx context.Context, limit int) ([]models.Image, error) {
	limit, _ = normalizePage(limit, 0)
	return r.query(ctx, imageSelect+`
		WHERE (i.tag_preview_path IS NULL OR i.search_preview_path IS NULL)
		  AND (i.untagged_path IS NOT NULL OR i.tagged_path IS NOT NULL)
		ORDER BY i.created_at ASC
		LIMIT $1
	`, limit)
}

// ApplyTagging replaces the tag set of an image and, when authorID is
// non-nil, its author, in a single transaction. A pointer to "" clears the
// author.
func (r *ImageRepository) ApplyTagging(ctx context.Context, id string, tagIDs []string, authorID *string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var locked string
	if err := tx.QueryRow(ctx, `SELECT id FROM images WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrImageNotFound
		}
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM image_tags WHERE image_id = $1`, id); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	if len(tagIDs) > 0 {
		const link = `
			INSERT INTO image_tags (image_id, tag_id)
			SELECT $1, unnest($2::text[])
			ON CONFLICT DO NOTHING
		`
		if _, err := tx.Exec(ctx, link, id, tagIDs); err != nil {
			return fmt.Errorf("link tags: %w", err)
		}
	}

	const touch = `
		UPDATE images
		SET author_id = CASE WHEN $2::boolean THEN NULLIF($3::text, '') ELSE author_id END,
		    updated_at = NOW()
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, touch, id, authorID != nil, authorID); err != nil {
		return fmt.Errorf("set author: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *ImageRepository) UpdateLocation(ctx context.Context, id string, loc models.ImageLocation) error {
	const query = `
		UPDATE images
		SET filename = $2,
		    untagged_path = $3,
		    tagged_path = $4,
		    updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, loc.Filename, loc.UntaggedPath, loc.TaggedPath)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrImageNotFound
	}
	return nil
}

func (r *ImageRepository) UpdatePreviews(ctx context.Context, id string, tagPath, searchPath *string) error {
	const query = `
		UPDATE images
		SET tag_preview_path = $2,
		    search_preview_path = $3,
		    updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, tagPath, searchPath)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrImageNotFound
	}
	return nil
}

func (r *ImageRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrImageNotFound
	}
	return nil
}

func (r *ImageRepository) query(ctx context.Context, query string, args ...any) ([]models.Image, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []models.Image
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachTags(ctx, images); err != nil {
		return nil, err
	}
	return images, nil
}

// attachTags loads the tags of all images with one query.
func (r *ImageRepository) attachTags(ctx context.Context, images []models.Image) error {
	if len(images) == 0 {
		return nil
	}

	ids := make([]string, len(images))
	index := make(map[string]int, len(images))
	for i, img := range images {
		ids[i] = img.ID
		index[img.ID] = i
	}

	const query = `
		SELECT it.image_id, t.id, t.name, t.created_at
		FROM image_tags it
		JOIN tags t ON t.id = it.tag_id
		WHERE it.image_id = ANY($1)
		ORDER BY t.name
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("load tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			imageID string
			tag     models.Tag
		)
		if err := rows.Scan(&imageID, &tag.ID, &tag.Name, &tag.CreatedAt); err != nil {
			return err
		}
		if i, ok := index[imageID]; ok {
			images[i].Tags = append(images[i].Tags, tag)
		}
	}
	return rows.Err()
}

func scanImage(r row) (models.Image, error) {
	var (
		image         models.Image
		authorName    *string
		authorEmail   *string
		authorCreated *time.Time
	)
	if err := r.Scan(
		&image.ID,
		&image.Filename,
		&image.OriginalName,
		&image.UntaggedPath,
		&image.TaggedPath,
		&image.TagPreviewPath,
		&image.SearchPreviewPath,
		&image.AuthorID,
		&image.SizeBytes,
		&image.MimeType,
		&image.Width,
		&image.Height,
		&image.CreatedAt,
		&image.UpdatedAt,
		&authorName,
		&authorEmail,
		&authorCreated,
	); err != nil {
		return models.Image{}, err
	}

	if image.AuthorID != nil && authorName != nil {
		author := models.Author{ID: *image.AuthorID, Name: *authorName}
		if authorEmail != nil {
			author.Email = *authorEmail
		}
		if authorCreated != nil {
			author.CreatedAt = *authorCreated
		}
		image.Author = &author
	}
	return image, nil
}
