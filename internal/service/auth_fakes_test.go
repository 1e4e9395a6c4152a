package service

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"imagehub/internal/models"
	"imagehub/internal/repository"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newMemUsers() *memUsers { return &memUsers{users: map[string]models.User{}} }

func (m *memUsers) Create(_ context.Context, u models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) || existing.Username == u.Username {
			return repository.ErrUserExists
		}
	}
	u.CreatedAt = time.Now()
	m.users[u.ID] = u
	return nil
}

func (m *memUsers) find(match func(models.User) bool) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (models.User, error) {
	return m.find(func(u models.User) bool { return u.ID == id })
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	return m.find(func(u models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (m *memUsers) FindByLogin(_ context.Context, login string) (models.User, error) {
	return m.find(func(u models.User) bool { return u.Username == login || strings.EqualFold(u.Email, login) })
}

func (m *memUsers) FindByResetHash(_ context.Context, hash []byte) (models.User, error) {
	return m.find(func(u models.User) bool { return u.PasswordResetHash != nil && bytes.Equal(u.PasswordResetHash, hash) })
}

func (m *memUsers) List(context.Context, int, int) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *memUsers) mutate(id string, fn func(*models.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	fn(&u)
	m.users[id] = u
	return nil
}

func (m *memUsers) Update(_ context.Context, u models.User) error {
	m.mu.Lock()
	for id, existing := range m.users {
		if id != u.ID && (strings.EqualFold(existing.Email, u.Email) || existing.Username == u.Username) {
			m.mu.Unlock()
			return repository.ErrUserExists
		}
	}
	m.mu.Unlock()
	return m.mutate(u.ID, func(stored *models.User) {
		stored.Email = u.Email
		stored.Username = u.Username
		stored.IsActive = u.IsActive
		stored.IsAdmin = u.IsAdmin
		stored.IsSuperuser = u.IsSuperuser
		stored.IsLocked = u.IsLocked
		stored.ForcePasswordChange = u.ForcePasswordChange
	})
}

func (m *memUsers) UpdatePassword(_ context.Context, id string, hash []byte, force bool) error {
	return m.mutate(id, func(u *models.User) {
		u.PasswordHash = hash
		u.ForcePasswordChange = force
		u.PasswordResetHash = nil
		u.PasswordResetExpires = nil
	})
}

func (m *memUsers) SetResetToken(_ context.Context, id string, hash []byte, expires time.Time) error {
	return m.mutate(id, func(u *models.User) {
		u.PasswordResetHash = hash
		u.PasswordResetExpires = &expires
	})
}

func (m *memUsers) TouchLogin(_ context.Context, id string) error {
	now := time.Now()
	return m.mutate(id, func(u *models.User) { u.LastLogin = &now })
}

func (m *memUsers) ClearExpiredResetTokens(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, u := range m.users {
		if u.PasswordResetExpires != nil && u.PasswordResetExpires.Before(time.Now()) {
			u.PasswordResetHash = nil
			u.PasswordResetExpires = nil
			m.users[id] = u
			n++
		}
	}
	return n, nil
}

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]models.Session
}

func newMemSessions() *memSessions { return &memSessions{sessions: map[string]models.Session{}} }

func (m *memSessions) Create(_ context.Context, s models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.sessions {
		if existing.UserID == s.UserID && existing.DeviceID == s.DeviceID {
			delete(m.sessions, id)
		}
	}
	s.CreatedAt = time.Now()
	s.LastSeenAt = s.CreatedAt
	m.sessions[s.ID] = s
	return nil
}

func (m *memSessions) GetByID(_ context.Context, id string) (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return models.Session{}, repository.ErrSessionNotFound
}

func (m *memSessions) FindByRefreshHash(_ context.Context, hash []byte) (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if bytes.Equal(s.RefreshTokenHash, hash) {
			return s, nil
		}
	}
	return models.Session{}, repository.ErrSessionNotFound
}

func (m *memSessions) ListByUser(_ context.Context, userID string) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeenAt.After(out[j].LastSeenAt) })
	return out, nil
}

func (m *memSessions) Rotate(_ context.Context, id string, hash []byte, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return repository.ErrSessionNotFound
	}
	s.RefreshTokenHash = hash
	s.LastSeenAt = time.Now()
	m.sessions[id] = s
	return nil
}

func (m *memSessions) TrimToLatest(ctx context.Context, userID string, keep int) error {
	list, _ := m.ListByUser(ctx, userID)
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range list {
		if i >= keep {
			delete(m.sessions, s.ID)
		}
	}
	return nil
}

func (m *memSessions) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return repository.ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *memSessions) DeleteByUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *memSessions) DeleteExpired(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.ExpiresAt.Before(time.Now()) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *memSessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

var errCacheMiss = errors.New("cache miss")

type memCache struct {
	mu   sync.Mutex
	vals map[string]string
}

func newMemCache() *memCache { return &memCache{vals: map[string]string{}} }

func (c *memCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals[key] = value
	return nil
}

func (c *memCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.vals[key]
	if !ok {
		return "", errCacheMiss
	}
	return v, nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.vals, key)
	return nil
}

type captureNotifier struct {
	links []string
}

func (n *captureNotifier) SendPasswordReset(_ context.Context, _ models.User, link string) error {
	n.links = append(n.links, link)
	return nil
}
