package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"imagehub/internal/config"
	"imagehub/internal/ids"
	"imagehub/internal/models"
	"imagehub/internal/repository"
	"imagehub/internal/security"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,50}$`)

// ResetNotifier delivers password reset links.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, user models.User, link string) error
}

type UserService struct {
	users    UserStore
	sessions SessionStore
	notifier ResetNotifier
	cfg      config.SecurityConfig
	log      zerolog.Logger
}

func NewUserService(users UserStore, sessions SessionStore, notifier ResetNotifier, cfg config.SecurityConfig, log zerolog.Logger) *UserService {
	return &UserService{
		users:    users,
		sessions: sessions,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
	}
}

type CreateUserInput struct {
	Email               string
	Username            string
	Password            string
	IsAdmin             bool
	ForcePasswordChange bool
}

func (s *UserService) Create(ctx context.Context, in CreateUserInput) (models.User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return models.User{}, err
	}
	username := strings.TrimSpace(in.Username)
	if !usernamePattern.MatchString(username) {
		return models.User{}, invalid("username", "use 3-50 letters, digits, dots, dashes or underscores")
	}
	if err := security.CheckPasswordStrength(in.Password); err != nil {
		return models.User{}, invalid("password", "%s", err.Error())
	}

	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		ID:                  ids.New(),
		Email:               email,
		Username:            username,
		PasswordHash:        hash,
		IsActive:            true,
		IsAdmin:             in.IsAdmin,
		ForcePasswordChange: in.ForcePasswordChange,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return models.User{}, fmt.Errorf("email or username %w", ErrConflict)
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id string) (models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, notFound("user")
	}
	return user, err
}

func (s *UserService) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	return s.users.List(ctx, limit, offset)
}

// ProfileUpdate lists the fields a user may change on their own account.
type ProfileUpdate struct {
	Email    *string
	Username *string
}

func (s *UserService) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return models.User{}, err
	}

	if upd.Email != nil {
		email, err := normalizeEmail(*upd.Email)
		if err != nil {
			return models.User{}, err
		}
		user.Email = email
	}
	if upd.Username != nil {
		username := strings.TrimSpace(*upd.Username)
		if !usernamePattern.MatchString(username) {
			return models.User{}, invalid("username", "use 3-50 letters, digits, dots, dashes or underscores")
		}
		user.Username = username
	}

	if err := s.save(ctx, user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// ChangePassword replaces the password after checking the current one and
// clears the force-change flag.
func (s *UserService) ChangePassword(ctx context.Context, id, current, next string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	ok, err := security.VerifyPassword(current, user.PasswordHash)
	if err != nil || !ok {
		return ErrInvalidCredentials
	}
	if err := security.CheckPasswordStrength(next); err != nil {
		return invalid("password", "%s", err.Error())
	}

	hash, err := security.HashPassword(next)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, id, hash, false)
}

// SetSuperuser grants or revokes superuser. Only superusers may call it and
// nobody may revoke their own grant.
func (s *UserService) SetSuperuser(ctx context.Context, actor models.User, id string, grant bool) (models.User, error) {
	if !actor.IsSuperuser {
		return models.User{}, ErrForbidden
	}
	if actor.ID == id && !grant {
		return models.User{}, invalid("", "cannot revoke your own superuser role")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	user.IsSuperuser = grant
	if grant {
		user.IsAdmin = true
	}
	if err := s.save(ctx, user); err != nil {
		return models.User{}, err
	}

	s.log.Info().Str("actor_id", actor.ID).Str("user_id", id).Bool("superuser", grant).Msg("superuser changed")
	return user, nil
}

// SetLocked locks or unlocks an account. Locking ends its sessions.
func (s *UserService) SetLocked(ctx context.Context, actor models.User, id string, locked bool) (models.User, error) {
	if !actor.CanManageCatalog() {
		return models.User{}, ErrForbidden
	}
	if actor.ID == id {
		return models.User{}, invalid("", "cannot lock your own account")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	if user.IsSuperuser && !actor.IsSuperuser {
		return models.User{}, ErrForbidden
	}

	user.IsLocked = locked
	if err := s.save(ctx, user); err != nil {
		return models.User{}, err
	}
	if locked {
		if err := s.sessions.DeleteByUser(ctx, id); err != nil {
			s.log.Warn().Err(err).Str("user_id", id).Msg("end sessions of locked user failed")
		}
	}

	s.log.Info().Str("actor_id", actor.ID).Str("user_id", id).Bool("locked", locked).Msg("lock changed")
	return user, nil
}

// RequestPasswordReset sends a reset link when the address is known. The
// result is the same either way so callers cannot discover which accounts exist.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return invalid("email", "email is required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.log.Debug().Msg("password reset requested for unknown address")
			return nil
		}
		return err
	}
	if !user.IsActive {
		return nil
	}

	token, hash, err := security.NewOpaqueToken(32)
	if err != nil {
		return err
	}
	expires := time.Now().Add(s.cfg.ResetTokenTTL)
	if err := s.users.SetResetToken(ctx, user.ID, hash, expires); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	if err := s.notifier.SendPasswordReset(ctx, user, resetLink(s.cfg.ResetURL, token)); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("send password reset failed")
	}
	return nil
}

// ConfirmPasswordReset sets a new password from a valid reset token and
// signs the account out everywhere.
func (s *UserService) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	if token == "" {
		return invalid("token", "invalid or expired reset token")
	}
	if err := security.CheckPasswordStrength(password); err != nil {
		return invalid("password", "%s", err.Error())
	}

	user, err := s.users.FindByResetHash(ctx, security.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return invalid("token", "invalid or expired reset token")
		}
		return err
	}
	if user.PasswordResetExpires == nil || user.PasswordResetExpires.Before(time.Now()) {
		return invalid("token", "invalid or expired reset token")
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash, false); err != nil {
		return err
	}
	if err := s.sessions.DeleteByUser(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("end sessions after reset failed")
	}
	return nil
}

// PurgeExpired drops expired sessions and reset tokens.
func (s *UserService) PurgeExpired(ctx context.Context) (int64, int64, error) {
	sessions, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("purge sessions: %w", err)
	}
	tokens, err := s.users.ClearExpiredResetTokens(ctx)
	if err != nil {
		return sessions, 0, fmt.Errorf("purge reset tokens: %w", err)
	}
	return sessions, tokens, nil
}

func (s *UserService) save(ctx context.Context, user models.User) error {
	if err := s.users.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			return notFound("user")
		case errors.Is(err, repository.ErrUserExists):
			return fmt.Errorf("email or username %w", ErrConflict)
		}
		return err
	}
	return nil
}

func resetLink(base, token string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// LogNotifier writes reset links to the log instead of mailing them.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) LogNotifier {
	return LogNotifier{log: log}
}

func (n LogNotifier) SendPasswordReset(_ context.Context, user models.User, link string) error {
	n.log.Info().Str("user_id", user.ID).Str("username", user.Username).Str("link", link).Msg("password reset link issued")
	return nil
}
