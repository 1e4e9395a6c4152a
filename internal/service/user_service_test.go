package service

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"imagehub/internal/models"
)

type userFixture struct {
	svc      *UserService
	users    *memUsers
	sessions *memSessions
	notifier *captureNotifier
}

func newUserFixture() *userFixture {
	users, sessions, notifier := newMemUsers(), newMemSessions(), &captureNotifier{}
	return &userFixture{
		svc:      NewUserService(users, sessions, notifier, testSecurity, zerolog.Nop()),
		users:    users,
		sessions: sessions,
		notifier: notifier,
	}
}

func TestCreateUser(t *testing.T) {
	f := newUserFixture()
	ctx := context.Background()

	user, err := f.svc.Create(ctx, CreateUserInput{Email: "Ada@Example.com", Username: "ada", Password: testPassword})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if user.Email != "ada@example.com" || !user.IsActive || user.IsAdmin {
		t.Errorf("user = %+v", user)
	}

	tests := []struct {
		name    string
		in      CreateUserInput
		wantErr func(error) bool
	}{
		{"duplicate", CreateUserInput{Email: "ada@example.com", Username: "ada2", Password: testPassword}, func(err error) bool { return errors.Is(err, ErrConflict) }},
		{"weak password", CreateUserInput{Email: "b@example.com", Username: "bob", Password: "password"}, IsValidation},
		{"bad username", CreateUserInput{Email: "c@example.com", Username: "a b", Password: testPassword}, IsValidation},
		{"bad email", CreateUserInput{Email: "nope", Username: "carl", Password: testPassword}, IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Create(ctx, tt.in); !tt.wantErr(err) {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

func TestPasswordResetFlow(t *testing.T) {
	f := newUserFixture()
	ctx := context.Background()
	user := seedUser(t, f.users, "ada", func(u *models.User) { u.ForcePasswordChange = true })
	f.sessions.sessions["s1"] = models.Session{ID: "s1", UserID: user.ID, ExpiresAt: time.Now().Add(time.Hour)}

	if err := f.svc.RequestPasswordReset(ctx, "unknown@example.com"); err != nil {
		t.Fatalf("unknown address: %v", err)
	}
	if len(f.notifier.links) != 0 {
		t.Fatal("link sent for unknown address")
	}

	if err := f.svc.RequestPasswordReset(ctx, " ADA@example.com "); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if len(f.notifier.links) != 1 {
		t.Fatalf("links = %v", f.notifier.links)
	}
	link, err := url.Parse(f.notifier.links[0])
	if err != nil {
		t.Fatal(err)
	}
	token := link.Query().Get("token")
	if link.Host != "imagehub.test" || token == "" {
		t.Fatalf("link = %s", link)
	}

	if err := f.svc.ConfirmPasswordReset(ctx, token, "weak"); !IsValidation(err) {
		t.Fatalf("weak password err = %v", err)
	}
	if err := f.svc.ConfirmPasswordReset(ctx, "forged", "N3w-Password"); !IsValidation(err) {
		t.Fatalf("forged token err = %v", err)
	}
	if err := f.svc.ConfirmPasswordReset(ctx, token, "N3w-Password"); err != nil {
		t.Fatalf("ConfirmPasswordReset: %v", err)
	}

	updated, _ := f.users.GetByID(ctx, user.ID)
	if updated.PasswordResetHash != nil || updated.ForcePasswordChange {
		t.Errorf("reset state not cleared: %+v", updated)
	}
	if f.sessions.count() != 0 {
		t.Error("sessions survived password reset")
	}
	if err := f.svc.ConfirmPasswordReset(ctx, token, "N3w-Password"); !IsValidation(err) {
		t.Errorf("token reused: %v", err)
	}
}

func TestPasswordResetExpired(t *testing.T) {
	f := newUserFixture()
	ctx := context.Background()
	seedUser(t, f.users, "ada", nil)

	_ = f.svc.RequestPasswordReset(ctx, "ada@example.com")
	token, _ := url.Parse(f.notifier.links[0])

	for id, u := range f.users.users {
		past := time.Now().Add(-time.Minute)
		u.PasswordResetExpires = &past
		f.users.users[id] = u
	}
	if err := f.svc.ConfirmPasswordReset(ctx, token.Query().Get("token"), "N3w-Password"); !IsValidation(err) {
		t.Fatalf("expired token err = %v", err)
	}

	_, tokens, err := f.svc.PurgeExpired(ctx)
	if err != nil || tokens != 1 {
		t.Fatalf("PurgeExpired tokens = %d, %v", tokens, err)
	}
}

func TestSetSuperuserAndLock(t *testing.T) {
	f := newUserFixture()
	ctx := context.Background()
	root := seedUser(t, f.users, "root", func(u *models.User) { u.IsSuperuser = true; u.IsAdmin = true })
	admin := seedUser(t, f.users, "admin", func(u *models.User) { u.IsAdmin = true })
	plain := seedUser(t, f.users, "plain", nil)

	if _, err := f.svc.SetSuperuser(ctx, admin, plain.ID, true); !errors.Is(err, ErrForbidden) {
		t.Errorf("admin granting superuser err = %v", err)
	}
	if _, err := f.svc.SetSuperuser(ctx, root, root.ID, false); !IsValidation(err) {
		t.Errorf("self revoke err = %v", err)
	}
	promoted, err := f.svc.SetSuperuser(ctx, root, plain.ID, true)
	if err != nil || !promoted.IsSuperuser || !promoted.IsAdmin {
		t.Fatalf("SetSuperuser = %+v, %v", promoted, err)
	}

	if _, err := f.svc.SetLocked(ctx, promoted, admin.ID, true); err != nil {
		t.Fatalf("superuser lock: %v", err)
	}
	if _, err := f.svc.SetLocked(ctx, admin, root.ID, true); !errors.Is(err, ErrForbidden) {
		t.Errorf("admin locking superuser err = %v", err)
	}
	if _, err := f.svc.SetLocked(ctx, root, root.ID, true); !IsValidation(err) {
		t.Errorf("self lock err = %v", err)
	}

	locked, _ := f.users.GetByID(ctx, admin.ID)
	if !locked.IsLocked {
		t.Error("admin not locked")
	}
}

func TestUpdateProfileWhitelist(t *testing.T) {
	f := newUserFixture()
	ctx := context.Background()
	user := seedUser(t, f.users, "ada", nil)
	seedUser(t, f.users, "bob", nil)

	updated, err := f.svc.UpdateProfile(ctx, user.ID, ProfileUpdate{Username: strPtr("ada.l")})
	if err != nil || updated.Username != "ada.l" || updated.IsAdmin {
		t.Fatalf("UpdateProfile = %+v, %v", updated, err)
	}
	if _, err := f.svc.UpdateProfile(ctx, user.ID, ProfileUpdate{Email: strPtr("bob@example.com")}); !errors.Is(err, ErrConflict) {
		t.Errorf("taken email err = %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	f := newUserFixture()
	ctx := context.Background()
	user := seedUser(t, f.users, "ada", func(u *models.User) { u.ForcePasswordChange = true })

	if err := f.svc.ChangePassword(ctx, user.ID, "wrong", "N3w-Password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong current err = %v", err)
	}
	if err := f.svc.ChangePassword(ctx, user.ID, testPassword, "N3w-Password"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	updated, _ := f.users.GetByID(ctx, user.ID)
	if updated.ForcePasswordChange {
		t.Error("force flag not cleared")
	}
}
