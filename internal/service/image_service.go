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
	"imagehub/internal/media/naming"
	"imagehub/internal/media/preview"
	"imagehub/internal/media/sniffer"
	"imagehub/internal/models"
	"imagehub/internal/repository"
	"imagehub/internal/storage"
)

const previewMIME = "image/jpeg"

// Upload is one file received from a client.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

type BatchResult struct {
	Uploaded []models.Image
	Failed   []string
}

type TagInput struct {
	Tags     []string
	Author   *string
	Filename *string
}

// DeleteReport lists stored files that could not be removed.
type DeleteReport struct {
	FailedPaths []string
}

// ImageService runs the image lifecycle: ingest, tagging, deletion and
// preview maintenance.
type ImageService struct {
	images   ImageStore
	catalog  *CatalogService
	store    storage.Provider
	previews *preview.Generator
	queue    PreviewQueue
	timeout  time.Duration
	log      zerolog.Logger
}

func NewImageService(
	images ImageStore,
	catalog *CatalogService,
	store storage.Provider,
	previews *preview.Generator,
	queue PreviewQueue,
	cfg config.PreviewConfig,
	log zerolog.Logger,
) *ImageService {
	return &ImageService{
		images:   images,
		catalog:  catalog,
		store:    store,
		previews: previews,
		queue:    queue,
		timeout:  cfg.Timeout,
		log:      log,
	}
}

// Ingest stores one upload. Undecodable files are rejected; a decodable file
// always gets a record even when its previews could not be produced.
func (s *ImageService) Ingest(ctx context.Context, up Upload) (models.Image, error) {
	if len(up.Data) == 0 {
		return models.Image{}, invalid("file", "%q is empty", up.Name)
	}

	kind, err := sniffer.DetectHead(up.Data)
	if err != nil {
		return models.Image{}, invalid("file", "%q is not a supported image", up.Name)
	}

	src, err := s.previews.Decode(up.Data)
	if err != nil {
		return models.Image{}, invalid("file", "%q could not be decoded", up.Name)
	}

	name := up.Name
	if naming.Ext(name) == "" {
		name += kind.Ext
	}
	filename := naming.Allocate(name)
	original, err := s.store.Upload(ctx, up.Data, storage.Key(storage.AreaUntagged, filename), kind.MIME)
	if err != nil {
		return models.Image{}, fmt.Errorf("store original: %w", err)
	}

	size := int64(len(up.Data))
	mime := kind.MIME
	width, height := src.Width, src.Height
	image := models.Image{
		ID:           ids.New(),
		Filename:     filename,
		OriginalName: up.Name,
		UntaggedPath: &original,
		SizeBytes:    &size,
		MimeType:     &mime,
		Width:        &width,
		Height:       &height,
	}

	tagPath, searchPath, previewErr := s.storePreviews(ctx, filename, src)
	if previewErr != nil {
		s.log.Warn().Err(previewErr).Str("filename", filename).Msg("preview generation failed")
	} else {
		image.TagPreviewPath = &tagPath
		image.SearchPreviewPath = &searchPath
	}

	stored, err := s.images.Create(ctx, image)
	if err != nil {
		s.removeFiles(ctx, image.Paths())
		return models.Image{}, fmt.Errorf("save image: %w", err)
	}

	if previewErr != nil {
		s.enqueuePreview(ctx, stored.ID)
	}
	return stored, nil
}

// IngestBatch ingests files one by one; a failing file is reported by its
// original name and does not stop the batch.
func (s *ImageService) IngestBatch(ctx context.Context, uploads []Upload) BatchResult {
	result := BatchResult{Uploaded: []models.Image{}, Failed: []string{}}
	for _, up := range uploads {
		image, err := s.Ingest(ctx, up)
		if err != nil {
			s.log.Warn().Err(err).Str("name", up.Name).Msg("ingest failed")
			result.Failed = append(result.Failed, up.Name)
			continue
		}
		result.Uploaded = append(result.Uploaded, image)
	}
	return result
}

// Tag replaces the tag set, optionally assigns an author and moves an
// untagged original into the tagged area. A failed move is logged only:
// metadata changes stay committed.
func (s *ImageService) Tag(ctx context.Context, id string, in TagInput) (models.Image, error) {
	image, err := s.Get(ctx, id)
	if err != nil {
		return models.Image{}, err
	}

	names := NormalizeTags(in.Tags)
	tagIDs := make([]string, 0, len(names))
	for _, name := range names {
		tag, err := s.catalog.ResolveTag(ctx, name)
		if err != nil {
			return models.Image{}, err
		}
		tagIDs = append(tagIDs, tag.ID)
	}

	// nil leaves the author alone; an empty name unassigns it.
	var authorID *string
	if in.Author != nil {
		if strings.TrimSpace(*in.Author) == "" {
			authorID = new(string)
		} else {
			author, err := s.catalog.ResolveAuthor(ctx, *in.Author)
			if err != nil {
				return models.Image{}, err
			}
			authorID = &author.ID
		}
	}

	if err := s.images.ApplyTagging(ctx, id, tagIDs, authorID); err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return models.Image{}, notFound("image")
		}
		return models.Image{}, fmt.Errorf("apply tagging: %w", err)
	}

	if image.UntaggedPath != nil {
		if err := s.relocate(ctx, image, in.Filename); err != nil {
			s.log.Error().Err(err).Str("image_id", id).Msg("move to tagged area failed")
		}
	}

	return s.Get(ctx, id)
}

func (s *ImageService) relocate(ctx context.Context, image models.Image, requested *string) error {
	source := image.Filename
	if requested != nil && strings.TrimSpace(*requested) != "" {
		source = strings.TrimSpace(*requested)
		// Keep the stored format when the requested name carries no extension.
		if naming.Ext(source) == "" {
			source += naming.Ext(image.Filename)
		}
	}
	filename := naming.Allocate(source)

	contentType := ""
	if image.MimeType != nil {
		contentType = *image.MimeType
	}

	moved, err := storage.Move(ctx, s.store, *image.UntaggedPath, storage.Key(storage.AreaTagged, filename), contentType)
	if moved == "" {
		return err
	}
	if err != nil {
		s.log.Warn().Err(err).Str("image_id", image.ID).Msg("untagged copy left behind")
	}

	loc := models.ImageLocation{Filename: filename, TaggedPath: &moved}
	uerr := s.images.UpdateLocation(ctx, image.ID, loc)
	if uerr == nil {
		return nil
	}

	// The row still points at the untagged copy, so the file goes back there.
	if _, rerr := storage.Move(ctx, s.store, moved, *image.UntaggedPath, contentType); rerr != nil {
		s.log.Error().
			Err(rerr).
			AnErr("update_err", uerr).
			Str("image_id", image.ID).
			Str("location", moved).
			Msg("restoring untagged original failed")
		return fmt.Errorf("record tagged location: %w (restore: %v)", uerr, rerr)
	}
	return fmt.Errorf("record tagged location: %w", uerr)
}

// Delete removes every stored file it can, then the record.
func (s *ImageService) Delete(ctx context.Context, id string) (DeleteReport, error) {
	image, err := s.Get(ctx, id)
	if err != nil {
		return DeleteReport{}, err
	}

	report := DeleteReport{FailedPaths: s.removeFiles(ctx, image.Paths())}

	if err := s.images.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return report, notFound("image")
		}
		return report, fmt.Errorf("delete image: %w", err)
	}
	return report, nil
}

// RegeneratePreviews renders both previews again from the stored original.
func (s *ImageService) RegeneratePreviews(ctx context.Context, id string) (models.Image, error) {
	image, err := s.Get(ctx, id)
	if err != nil {
		return models.Image{}, err
	}
	original := image.OriginalPath()
	if original == nil {
		return models.Image{}, invalid("image", "image has no stored original")
	}

	data, err := s.store.Download(ctx, *original)
	if err != nil {
		return models.Image{}, fmt.Errorf("download original: %w", err)
	}
	src, err := s.previews.Decode(data)
	if err != nil {
		return models.Image{}, invalid("image", "stored original could not be decoded")
	}

	tagPath, searchPath, err := s.storePreviews(ctx, image.Filename, src)
	if err != nil {
		return models.Image{}, fmt.Errorf("render previews: %w", err)
	}
	if err := s.images.UpdatePreviews(ctx, id, &tagPath, &searchPath); err != nil {
		return models.Image{}, fmt.Errorf("record previews: %w", err)
	}

	var stale []string
	for _, old := range []*string{image.TagPreviewPath, image.SearchPreviewPath} {
		if old != nil && *old != tagPath && *old != searchPath {
			stale = append(stale, *old)
		}
	}
	s.removeFiles(ctx, stale)

	image.TagPreviewPath = &tagPath
	image.SearchPreviewPath = &searchPath
	return image, nil
}

// QueuePreviews schedules regeneration on the worker.
func (s *ImageService) QueuePreviews(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if s.queue == nil {
		return errors.New("preview queue not configured")
	}
	return s.queue.EnqueuePreview(ctx, id)
}

// MissingPreviews returns up to limit images lacking a preview.
func (s *ImageService) MissingPreviews(ctx context.Context, limit int) ([]models.Image, error) {
	return s.images.ListMissingPreviews(ctx, limit)
}

func (s *ImageService) Get(ctx context.Context, id string) (models.Image, error) {
	if !ids.Valid(id) {
		return models.Image{}, notFound("image")
	}
	image, err := s.images.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return models.Image{}, notFound("image")
		}
		return models.Image{}, err
	}
	return image, nil
}

func (s *ImageService) List(ctx context.Context, limit, offset int) ([]models.Image, error) {
	return s.images.List(ctx, limit, offset)
}

func (s *ImageService) ListUntagged(ctx context.Context, limit, offset int) ([]models.Image, error) {
	return s.images.ListUntagged(ctx, limit, offset)
}

func (s *ImageService) NextUntagged(ctx context.Context) (models.Image, error) {
	image, err := s.images.NextUntagged(ctx)
	if errors.Is(err, repository.ErrImageNotFound) {
		return models.Image{}, notFound("untagged image")
	}
	return image, err
}

// Search matches images having all of q.Tags and, if set, author q.Author.
func (s *ImageService) Search(ctx context.Context, q models.ImageQuery) ([]models.Image, error) {
	q.Tags = NormalizeTags(q.Tags)
	q.Author = strings.TrimSpace(q.Author)
	return s.images.Search(ctx, q)
}

// Content returns the original bytes and their MIME type.
func (s *ImageService) Content(ctx context.Context, id string) ([]byte, string, error) {
	image, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	original := image.OriginalPath()
	if original == nil {
		return nil, "", notFound("image file")
	}

	data, err := s.download(ctx, *original)
	if err != nil {
		return nil, "", err
	}

	mime := "application/octet-stream"
	if image.MimeType != nil {
		mime = *image.MimeType
	}
	return data, mime, nil
}

func (s *ImageService) Preview(ctx context.Context, id string, kind models.PreviewKind) ([]byte, error) {
	image, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var loc *string
	switch kind {
	case models.PreviewTag:
		loc = image.TagPreviewPath
	case models.PreviewSearch:
		loc = image.SearchPreviewPath
	default:
		return nil, invalid("kind", "unknown preview kind %q", kind)
	}
	if loc == nil {
		return nil, notFound("preview")
	}
	return s.download(ctx, *loc)
}

func (s *ImageService) download(ctx context.Context, loc string) ([]byte, error) {
	data, err := s.store.Download(ctx, loc)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFound("file")
		}
		return nil, fmt.Errorf("download: %w", err)
	}
	return data, nil
}

// storePreviews renders under the configured deadline and uploads both
// renditions. Nothing is left behind on failure.
func (s *ImageService) storePreviews(ctx context.Context, filename string, src preview.Source) (string, string, error) {
	rctx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res, err := s.previews.Render(rctx, src)
	if err != nil {
		return "", "", err
	}

	name := naming.Base(filename) + ".jpg"
	tagPath, err := s.store.Upload(ctx, res.Tag.Data, storage.Key(storage.AreaTagPreview, name), previewMIME)
	if err != nil {
		return "", "", fmt.Errorf("store tag preview: %w", err)
	}
	searchPath, err := s.store.Upload(ctx, res.Search.Data, storage.Key(storage.AreaSearchPreview, name), previewMIME)
	if err != nil {
		s.removeFiles(ctx, []string{tagPath})
		return "", "", fmt.Errorf("store search preview: %w", err)
	}
	return tagPath, searchPath, nil
}

func (s *ImageService) enqueuePreview(ctx context.Context, id string) {
	if s.queue == nil {
		return
	}
	if err := s.queue.EnqueuePreview(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("image_id", id).Msg("enqueue preview failed")
	}
}

// removeFiles deletes each location and returns those that failed.
func (s *ImageService) removeFiles(ctx context.Context, locations []string) []string {
	var failed []string
	for _, loc := range locations {
		if err := s.store.Delete(ctx, loc); err != nil {
			s.log.Warn().Err(err).Str("path", loc).Msg("delete stored file failed")
			failed = append(failed, loc)
		}
	}
	return failed
}

// NormalizeTags trims and lower-cases names, dropping blanks and duplicates
// while keeping first-seen order.
func NormalizeTags(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		name := strings.ToLower(strings.TrimSpace(r))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
