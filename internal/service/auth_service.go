package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"imagehub/internal/config"
	"imagehub/internal/ids"
	"imagehub/internal/models"
	"imagehub/internal/repository"
	"imagehub/internal/security"
)

// TokenCache is a key/value store with expiry, backed by Redis in production.
type TokenCache interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

type AuthService struct {
	users    UserStore
	sessions SessionStore
	cache    TokenCache
	cfg      config.SecurityConfig
	log      zerolog.Logger
}

func NewAuthService(users UserStore, sessions SessionStore, cache TokenCache, cfg config.SecurityConfig, log zerolog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		cache:    cache,
		cfg:      cfg,
		log:      log,
	}
}

type AuthResult struct {
	AccessToken  string
	RefreshToken string
	CSRFToken    string
	SessionID    string
	DeviceID     string
	ExpiresAt    time.Time
	User         models.User
}

type LoginInput struct {
	Login      string
	Password   string
	DeviceID   string
	DeviceName string
	IPAddress  string
	UserAgent  string
}

// Login accepts a username or an email address.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	login := strings.TrimSpace(input.Login)
	if login == "" || input.Password == "" {
		return AuthResult{}, invalid("", "login and password are required")
	}

	user, err := s.users.FindByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("stored password hash unreadable")
		return AuthResult{}, ErrInvalidCredentials
	}
	if !ok {
		return AuthResult{}, ErrInvalidCredentials
	}
	if err := checkAccount(user); err != nil {
		return AuthResult{}, err
	}

	deviceID := input.DeviceID
	if deviceID == "" {
		deviceID = ids.New()
	}
	deviceName := input.DeviceName
	if deviceName == "" {
		deviceName = "Unknown Device"
	}

	result, err := s.createSession(ctx, user, deviceID, deviceName, input.IPAddress, input.UserAgent)
	if err != nil {
		return AuthResult{}, err
	}

	if err := s.users.TouchLogin(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("record last login failed")
	}
	return result, nil
}

func (s *AuthService) createSession(ctx context.Context, user models.User, deviceID, deviceName, ip, userAgent string) (AuthResult, error) {
	refreshToken, refreshHash, err := security.NewOpaqueToken(48)
	if err != nil {
		return AuthResult{}, err
	}

	session := models.Session{
		ID:               ids.New(),
		UserID:           user.ID,
		DeviceID:         deviceID,
		DeviceName:       deviceName,
		RefreshTokenHash: refreshHash,
		IPAddress:        ip,
		UserAgent:        userAgent,
		ExpiresAt:        time.Now().Add(s.cfg.JWTRefreshTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return AuthResult{}, fmt.Errorf("create session: %w", err)
	}

	if s.cfg.MaxSessions > 0 {
		if err := s.sessions.TrimToLatest(ctx, user.ID, s.cfg.MaxSessions); err != nil {
			s.log.Warn().Err(err).Str("user_id", user.ID).Msg("enforce session limit failed")
		}
	}

	return s.issue(ctx, user, session, refreshToken)
}

// issue signs an access token and a fresh CSRF token for the session.
func (s *AuthService) issue(ctx context.Context, user models.User, session models.Session, refreshToken string) (AuthResult, error) {
	accessToken, err := security.GenerateAccessToken(
		s.cfg.JWTAccessSecret,
		user.ID,
		session.ID,
		user.Role(),
		s.cfg.JWTAccessTTL,
	)
	if err != nil {
		return AuthResult{}, err
	}

	csrf, err := s.IssueCSRF(ctx, session.ID)
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		CSRFToken:    csrf,
		SessionID:    session.ID,
		DeviceID:     session.DeviceID,
		ExpiresAt:    session.ExpiresAt,
		User:         user,
	}, nil
}

type RefreshInput struct {
	RefreshToken string
	IPAddress    string
	UserAgent    string
}

// Refresh rotates the refresh token of a live session.
func (s *AuthService) Refresh(ctx context.Context, input RefreshInput) (AuthResult, error) {
	if input.RefreshToken == "" {
		return AuthResult{}, ErrUnauthorized
	}

	session, err := s.sessions.FindByRefreshHash(ctx, security.HashToken(input.RefreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return AuthResult{}, ErrUnauthorized
		}
		return AuthResult{}, err
	}
	if session.ExpiresAt.Before(time.Now()) {
		_ = s.sessions.DeleteByID(ctx, session.ID)
		return AuthResult{}, ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, ErrUnauthorized
		}
		return AuthResult{}, err
	}
	if err := checkAccount(user); err != nil {
		return AuthResult{}, err
	}

	refreshToken, refreshHash, err := security.NewOpaqueToken(48)
	if err != nil {
		return AuthResult{}, err
	}
	if err := s.sessions.Rotate(ctx, session.ID, refreshHash, input.IPAddress, input.UserAgent); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return AuthResult{}, ErrUnauthorized
		}
		return AuthResult{}, err
	}
	session.RefreshTokenHash = refreshHash

	return s.issue(ctx, user, session, refreshToken)
}

// Logout ends one session. Unknown sessions are ignored.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.DeleteByID(ctx, sessionID); err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return err
	}
	if err := s.cache.Delete(ctx, security.CSRFKey(sessionID)); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("drop csrf token failed")
	}
	return nil
}

// Authenticate resolves an access token to a live session and an account
// that may still sign in.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (models.User, *security.AccessClaims, error) {
	claims, err := security.ParseAccessToken(accessToken, s.cfg.JWTAccessSecret)
	if err != nil {
		return models.User{}, nil, ErrUnauthorized
	}

	session, err := s.sessions.GetByID(ctx, claims.SessionID)
	if err != nil || session.UserID != claims.UserID {
		return models.User{}, nil, ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return models.User{}, nil, ErrUnauthorized
	}
	if err := checkAccount(user); err != nil {
		return models.User{}, nil, err
	}
	return user, claims, nil
}

func (s *AuthService) ListSessions(ctx context.Context, userID string) ([]models.Session, error) {
	return s.sessions.ListByUser(ctx, userID)
}

// RevokeSession ends another session of the same user.
func (s *AuthService) RevokeSession(ctx context.Context, userID, sessionID string) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil || session.UserID != userID {
		return notFound("session")
	}
	return s.Logout(ctx, sessionID)
}

// IssueCSRF creates a CSRF token for the session and stores its digest.
func (s *AuthService) IssueCSRF(ctx context.Context, sessionID string) (string, error) {
	token, _, err := security.NewOpaqueToken(32)
	if err != nil {
		return "", err
	}
	digest := security.CSRFDigest(s.cfg.CSRFSecret, sessionID, token)
	if err := s.cache.Set(ctx, security.CSRFKey(sessionID), digest, s.cfg.CSRFTTL); err != nil {
		return "", fmt.Errorf("store csrf token: %w", err)
	}
	return token, nil
}

func (s *AuthService) CheckCSRF(ctx context.Context, sessionID, token string) bool {
	digest, err := s.cache.Get(ctx, security.CSRFKey(sessionID))
	if err != nil {
		return false
	}
	return security.CheckCSRF(s.cfg.CSRFSecret, sessionID, token, digest)
}

// SessionTTL is how long refresh cookies should live.
func (s *AuthService) SessionTTL() time.Duration {
	return s.cfg.JWTRefreshTTL
}

func checkAccount(user models.User) error {
	switch {
	case !user.IsActive:
		return ErrAccountInactive
	case user.IsLocked:
		return ErrAccountLocked
	}
	return nil
}
