package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
)

func newMockDB(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		mock.Close()
	})
	return mock
}

var tagColumns = []string{"id", "name", "created_at"}

func TestTagGetOrCreateReturnsExistingRow(t *testing.T) {
	mock := newMockDB(t)
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// The upsert hands back the stored row, not the freshly generated id.
	mock.ExpectQuery(`(?s)INSERT INTO tags.*ON CONFLICT \(name\) DO UPDATE SET name = EXCLUDED\.name.*RETURNING id, name, created_at`).
		WithArgs(pgxmock.AnyArg(), "sunset").
		WillReturnRows(pgxmock.NewRows(tagColumns).AddRow("tag-existing", "sunset", created))

	tag, err := NewTagRepository(mock).GetOrCreate(context.Background(), "sunset")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if tag.ID != "tag-existing" || tag.Name != "sunset" || !tag.CreatedAt.Equal(created) {
		t.Fatalf("tag = %+v", tag)
	}
}

func TestTagCreateMapsUniqueViolation(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectQuery(`(?s)INSERT INTO tags.*RETURNING id, name, created_at`).
		WithArgs(pgxmock.AnyArg(), "sunset").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	if _, err := NewTagRepository(mock).Create(context.Background(), "sunset"); !errors.Is(err, ErrTagExists) {
		t.Fatalf("Create err = %v, want ErrTagExists", err)
	}
}

func TestTagGetByNameNotFound(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectQuery(`SELECT id, name, created_at FROM tags WHERE name = \$1`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(tagColumns))

	if _, err := NewTagRepository(mock).GetByName(context.Background(), "missing"); !errors.Is(err, ErrTagNotFound) {
		t.Fatalf("GetByName err = %v, want ErrTagNotFound", err)
	}
}

func TestTagDeleteByName(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "deleted", affected: 1},
		{name: "missing", affected: 0, wantErr: ErrTagNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockDB(t)
			mock.ExpectExec(`DELETE FROM tags WHERE name = \$1`).
				WithArgs("sunset").
				WillReturnResult(pgxmock.NewResult("DELETE", tt.affected))

			err := NewTagRepository(mock).DeleteByName(context.Background(), "sunset")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("DeleteByName err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
