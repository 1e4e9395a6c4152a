package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"imagehub/internal/database"
	"imagehub/internal/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

const userColumns = `
	id, email, username, password_hash, is_active, is_admin, is_superuser, is_locked,
	force_password_change, password_reset_hash, password_reset_expires, last_login,
	created_at, updated_at
`

type UserRepository struct {
	pool DB
}

func NewUserRepository(pool DB) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, user models.User) error {
	const query = `
		INSERT INTO users (
			id, email, username, password_hash, is_active, is_admin, is_superuser, is_locked,
			force_password_change, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.IsActive,
		user.IsAdmin,
		user.IsSuperuser,
		user.IsLocked,
		user.ForcePasswordChange,
	)
	if database.IsUniqueViolation(err) {
		return ErrUserExists
	}
	return err
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

// FindByLogin accepts either a username or an email address.
func (r *UserRepository) FindByLogin(ctx context.Context, login string) (models.User, error) {
	return r.get(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE username = $1 OR lower(email) = lower($1)
		LIMIT 1
	`, login)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) FindByResetHash(ctx context.Context, hash []byte) (models.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE password_reset_hash = $1`, hash)
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	limit, offset = normalizePage(limit, offset)
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users
		ORDER BY created_at ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// Update writes the profile and flag columns of the user.
func (r *UserRepository) Update(ctx context.Context, user models.User) error {
	const query = `
		UPDATE users
		SET email = $2,
		    username = $3,
		    is_active = $4,
		    is_admin = $5,
		    is_superuser = $6,
		    is_locked = $7,
		    force_password_change = $8,
		    updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query,
		user.ID,
		user.Email,
		user.Username,
		user.IsActive,
		user.IsAdmin,
		user.IsSuperuser,
		user.IsLocked,
		user.ForcePasswordChange,
	)
}

// UpdatePassword stores a new hash and clears any pending reset token.
func (r *UserRepository) UpdatePassword(ctx context.Context, id string, hash []byte, forceChange bool) error {
	const query = `
		UPDATE users
		SET password_hash = $2,
		    force_password_change = $3,
		    password_reset_hash = NULL,
		    password_reset_expires = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, hash, forceChange)
}

func (r *UserRepository) SetResetToken(ctx context.Context, id string, hash []byte, expires time.Time) error {
	const query = `
		UPDATE users
		SET password_reset_hash = $2,
		    password_reset_expires = $3,
		    updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, hash, expires)
}

func (r *UserRepository) TouchLogin(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE users SET last_login = NOW() WHERE id = $1`, id)
}

// ClearExpiredResetTokens drops reset tokens past their expiry.
func (r *UserRepository) ClearExpiredResetTokens(ctx context.Context) (int64, error) {
	const query = `
		UPDATE users
		SET password_reset_hash = NULL,
		    password_reset_expires = NULL
		WHERE password_reset_expires IS NOT NULL AND password_reset_expires < NOW()
	`
	cmd, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *UserRepository) get(ctx context.Context, query string, args ...any) (models.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (r *UserRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrUserExists
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(r row) (models.User, error) {
	var user models.User
	err := r.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.IsActive,
		&user.IsAdmin,
		&user.IsSuperuser,
		&user.IsLocked,
		&user.ForcePasswordChange,
		&user.PasswordResetHash,
		&user.PasswordResetExpires,
		&user.LastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}
