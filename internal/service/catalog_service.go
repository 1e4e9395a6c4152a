package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/rs/zerolog"

	"imagehub/internal/ids"
	"imagehub/internal/models"
	"imagehub/internal/repository"
)

const (
	placeholderEmailDomain = "authors.imagehub.local"
	maxNameLength          = 255
)

// CatalogService owns tags and authors.
type CatalogService struct {
	tags    TagStore
	authors AuthorStore
	log     zerolog.Logger
}

func NewCatalogService(tags TagStore, authors AuthorStore, log zerolog.Logger) *CatalogService {
	return &CatalogService{tags: tags, authors: authors, log: log}
}

// ResolveTag returns the tag for an already normalized name, creating it on
// first use.
func (s *CatalogService) ResolveTag(ctx context.Context, name string) (models.Tag, error) {
	if len(name) > maxNameLength {
		return models.Tag{}, invalid("tags", "tag %q is too long", name)
	}
	tag, err := s.tags.GetOrCreate(ctx, name)
	if err != nil {
		return models.Tag{}, fmt.Errorf("resolve tag %q: %w", name, err)
	}
	return tag, nil
}

// ResolveAuthor finds an author by exact trimmed name or creates one with a
// placeholder email. A concurrent insert of the same author is picked up on
// retry.
func (s *CatalogService) ResolveAuthor(ctx context.Context, name string) (models.Author, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Author{}, invalid("author", "name is required")
	}
	if len(name) > maxNameLength {
		return models.Author{}, invalid("author", "name is too long")
	}

	email := PlaceholderEmail(name)
	for attempt := 0; attempt < 3; attempt++ {
		author, err := s.authors.GetByName(ctx, name)
		if err == nil {
			return author, nil
		}
		if !errors.Is(err, repository.ErrAuthorNotFound) {
			return models.Author{}, fmt.Errorf("lookup author: %w", err)
		}

		author = models.Author{ID: ids.New(), Name: name, Email: email}
		err = s.authors.Create(ctx, author)
		if err == nil {
			return author, nil
		}
		if !errors.Is(err, repository.ErrAuthorExists) {
			return models.Author{}, fmt.Errorf("create author: %w", err)
		}
		// Either a racing request created this author or another name
		// shares the slug; disambiguate the email for the next round.
		email = disambiguate(email)
	}
	return models.Author{}, fmt.Errorf("create author %q: %w", name, ErrConflict)
}

func (s *CatalogService) ListTags(ctx context.Context, limit, offset int) ([]models.Tag, error) {
	return s.tags.List(ctx, limit, offset)
}

func (s *CatalogService) SearchTags(ctx context.Context, query string, limit int) ([]models.Tag, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []models.Tag{}, nil
	}
	return s.tags.Search(ctx, query, limit)
}

func (s *CatalogService) CreateTag(ctx context.Context, raw string) (models.Tag, error) {
	names := NormalizeTags([]string{raw})
	if len(names) == 0 {
		return models.Tag{}, invalid("name", "tag name is required")
	}
	if len(names[0]) > maxNameLength {
		return models.Tag{}, invalid("name", "tag name is too long")
	}
	tag, err := s.tags.Create(ctx, names[0])
	if errors.Is(err, repository.ErrTagExists) {
		return models.Tag{}, fmt.Errorf("tag %q: %w", names[0], ErrConflict)
	}
	return tag, err
}

// DeleteTag removes a tag and detaches it from every image.
func (s *CatalogService) DeleteTag(ctx context.Context, raw string) error {
	names := NormalizeTags([]string{raw})
	if len(names) == 0 {
		return invalid("name", "tag name is required")
	}
	if err := s.tags.DeleteByName(ctx, names[0]); err != nil {
		if errors.Is(err, repository.ErrTagNotFound) {
			return notFound("tag")
		}
		return err
	}
	s.log.Info().Str("tag", names[0]).Msg("tag deleted")
	return nil
}

func (s *CatalogService) ListAuthors(ctx context.Context, limit, offset int) ([]models.Author, error) {
	return s.authors.List(ctx, limit, offset)
}

func (s *CatalogService) SearchAuthors(ctx context.Context, query string, limit int) ([]models.Author, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Author{}, nil
	}
	return s.authors.Search(ctx, query, limit)
}

func (s *CatalogService) GetAuthor(ctx context.Context, id string) (models.Author, error) {
	author, err := s.authors.GetByID(ctx, id)
	if errors.Is(err, repository.ErrAuthorNotFound) {
		return models.Author{}, notFound("author")
	}
	return author, err
}

type AuthorInput struct {
	Name  string
	Email string
}

func (s *CatalogService) CreateAuthor(ctx context.Context, in AuthorInput) (models.Author, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Author{}, invalid("name", "name is required")
	}
	if len(name) > maxNameLength {
		return models.Author{}, invalid("name", "name is too long")
	}

	email := PlaceholderEmail(name)
	if strings.TrimSpace(in.Email) != "" {
		var err error
		if email, err = normalizeEmail(in.Email); err != nil {
			return models.Author{}, err
		}
	}

	author := models.Author{ID: ids.New(), Name: name, Email: email}
	if err := s.authors.Create(ctx, author); err != nil {
		if errors.Is(err, repository.ErrAuthorExists) {
			return models.Author{}, fmt.Errorf("author email %w", ErrConflict)
		}
		return models.Author{}, err
	}
	return author, nil
}

// AuthorUpdate lists the fields an admin may change. Nil leaves a field as is.
type AuthorUpdate struct {
	Name  *string
	Email *string
}

func (s *CatalogService) UpdateAuthor(ctx context.Context, id string, upd AuthorUpdate) (models.Author, error) {
	author, err := s.GetAuthor(ctx, id)
	if err != nil {
		return models.Author{}, err
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return models.Author{}, invalid("name", "name cannot be empty")
		}
		if len(name) > maxNameLength {
			return models.Author{}, invalid("name", "name is too long")
		}
		author.Name = name
	}
	if upd.Email != nil {
		email, err := normalizeEmail(*upd.Email)
		if err != nil {
			return models.Author{}, err
		}
		author.Email = email
	}

	if err := s.authors.Update(ctx, author); err != nil {
		switch {
		case errors.Is(err, repository.ErrAuthorNotFound):
			return models.Author{}, notFound("author")
		case errors.Is(err, repository.ErrAuthorExists):
			return models.Author{}, fmt.Errorf("author email %w", ErrConflict)
		}
		return models.Author{}, err
	}
	return author, nil
}

// DeleteAuthor removes an author; its images keep no author.
func (s *CatalogService) DeleteAuthor(ctx context.Context, id string) error {
	if err := s.authors.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrAuthorNotFound) {
			return notFound("author")
		}
		return err
	}
	s.log.Info().Str("author_id", id).Msg("author deleted")
	return nil
}

// PlaceholderEmail derives the address given to authors created by name only.
func PlaceholderEmail(name string) string {
	return slug(name) + "@" + placeholderEmailDomain
}

func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "author"
	}
	return out
}

func disambiguate(email string) string {
	local, domain, _ := strings.Cut(email, "@")
	suffix := strings.ToLower(ids.New())
	return local + "-" + suffix[len(suffix)-6:] + "@" + domain
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" {
		return "", invalid("email", "invalid email address")
	}
	return strings.ToLower(addr.Address), nil
}
