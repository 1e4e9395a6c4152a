// Package storage hides whether image files live on the local filesystem or
// in an S3-compatible bucket. Callers persist the location a backend returns
// and hand it back unchanged.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"imagehub/internal/config"
)

// Areas of the stored layout. Each holds files keyed by allocated filename.
const (
	AreaUntagged      = "untagged"
	AreaTagged        = "tagged"
	AreaTagPreview    = "tag_preview"
	AreaSearchPreview = "search_preview"
)

var (
	ErrNotFound    = errors.New("storage: not found")
	ErrInvalidPath = errors.New("storage: invalid path")
)

type Provider interface {
	// Upload stores data at dest and returns the location to persist.
	Upload(ctx context.Context, data []byte, dest string, contentType string) (string, error)
	// Download returns ErrNotFound when nothing is stored at location.
	Download(ctx context.Context, location string) ([]byte, error)
	Delete(ctx context.Context, location string) error
}

// Mover is implemented by backends that can relocate a file without a
// download/upload round trip.
type Mover interface {
	Move(ctx context.Context, location string, dest string) (string, error)
}

type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Key joins an area and a filename into a destination path.
func Key(area string, filename string) string {
	return path.Join(area, filename)
}

// Move relocates location to dest using the backend's native move when
// available, falling back to copy-then-delete.
func Move(ctx context.Context, p Provider, location string, dest string, contentType string) (string, error) {
	if m, ok := p.(Mover); ok {
		return m.Move(ctx, location, dest)
	}

	data, err := p.Download(ctx, location)
	if err != nil {
		return "", err
	}
	moved, err := p.Upload(ctx, data, dest, contentType)
	if err != nil {
		return "", err
	}
	if err := p.Delete(ctx, location); err != nil {
		return moved, &Error{Op: "move", Path: location, Err: err}
	}
	return moved, nil
}

func New(ctx context.Context, cfg config.StorageConfig, log zerolog.Logger) (Provider, error) {
	switch cfg.Backend {
	case "s3":
		store, err := NewObjectStore(cfg)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			log.Warn().Err(err).Str("bucket", cfg.Bucket).Msg("ensure bucket failed")
		}
		return store, nil
	case "local", "":
		return NewLocalStore(afero.NewOsFs(), cfg.Local.Root)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}
