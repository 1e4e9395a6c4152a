package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"imagehub/internal/database"
	"imagehub/internal/models"
)

var (
	ErrAuthorNotFound = errors.New("author not found")
	ErrAuthorExists   = errors.New("author already exists")
)

const authorColumns = `id, name, email, created_at`

type AuthorRepository struct {
	pool DB
}

func NewAuthorRepository(pool DB) *AuthorRepository {
	return &AuthorRepository{pool: pool}
}

func (r *AuthorRepository) Create(ctx context.Context, author models.Author) error {
	const query = `
		INSERT INTO authors (id, name, email, created_at)
		VALUES ($1, $2, $3, NOW())
	`
	if _, err := r.pool.Exec(ctx, query, author.ID, author.Name, author.Email); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrAuthorExists
		}
		return err
	}
	return nil
}

func (r *AuthorRepository) GetByID(ctx context.Context, id string) (models.Author, error) {
	return r.get(ctx, `SELECT `+authorColumns+` FROM authors WHERE id = $1`, id)
}

// GetByName matches the exact name; the oldest author wins when several share it.
func (r *AuthorRepository) GetByName(ctx context.Context, name string) (models.Author, error) {
	return r.get(ctx, `
		SELECT `+authorColumns+` FROM authors
		WHERE name = $1
		ORDER BY created_at ASC
		LIMIT 1
	`, name)
}

func (r *AuthorRepository) Update(ctx context.Context, author models.Author) error {
	const query = `UPDATE authors SET name = $2, email = $3 WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, author.ID, author.Name, author.Email)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrAuthorExists
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAuthorNotFound
	}
	return nil
}

func (r *AuthorRepository) List(ctx context.Context, limit, offset int) ([]models.Author, error) {
	limit, offset = normalizePage(limit, offset)
	return r.query(ctx, `
		SELECT `+authorColumns+` FROM authors
		ORDER BY name
		LIMIT $1 OFFSET $2
	`, limit, offset)
}

func (r *AuthorRepository) Search(ctx context.Context, fragment string, limit int) ([]models.Author, error) {
	limit, _ = normalizePage(limit, 0)
	return r.query(ctx, `
		SELECT `+authorColumns+` FROM authors
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY name
		LIMIT $2
	`, fragment, limit)
}

// Delete removes the author; its images keep no author.
func (r *AuthorRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM authors WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAuthorNotFound
	}
	return nil
}

func (r *AuthorRepository) get(ctx context.Context, query string, args ...any) (models.Author, error) {
	author, err := scanAuthor(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Author{}, ErrAuthorNotFound
		}
		return models.Author{}, err
	}
	return author, nil
}

func (r *AuthorRepository) query(ctx context.Context, query string, args ...any) ([]models.Author, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var authors []models.Author
	for rows.Next() {
		author, err := scanAuthor(rows)
		if err != nil {
			return nil, err
		}
		authors = append(authors, author)
	}
	return authors, rows.Err()
}

func scanAuthor(r row) (models.Author, error) {
	var author models.Author
	err := r.Scan(&author.ID, &author.Name, &author.Email, &author.CreatedAt)
	return author, err
}
