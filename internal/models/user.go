package models

import "time"

type User struct {
	ID                   string
	Email                string
	Username             string
	PasswordHash         []byte
	IsActive             bool
	IsAdmin              bool
	IsSuperuser          bool
	IsLocked             bool
	ForcePasswordChange  bool
	PasswordResetHash    []byte
	PasswordResetExpires *time.Time
	LastLogin            *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// CanManageCatalog is true for admins and superusers.
func (u User) CanManageCatalog() bool {
	return u.IsAdmin || u.IsSuperuser
}

type Session struct {
	ID               string
	UserID           string
	DeviceID         string
	DeviceName       string
	RefreshTokenHash []byte
	IPAddress        string
	UserAgent        string
	CreatedAt        time.Time
	LastSeenAt       time.Time
	ExpiresAt        time.Time
}

const (
	RoleUser      = "user"
	RoleAdmin     = "admin"
	RoleSuperuser = "superuser"
)

// Role is the highest role the flags grant.
func (u User) Role() string {
	switch {
	case u.IsSuperuser:
		return RoleSuperuser
	case u.IsAdmin:
		return RoleAdmin
	default:
		return RoleUser
	}
}
