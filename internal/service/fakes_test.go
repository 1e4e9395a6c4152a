package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"imagehub/internal/config"
	"imagehub/internal/ids"
	"imagehub/internal/media/preview"
	"imagehub/internal/models"
	"imagehub/internal/repository"
	"imagehub/internal/storage"
)

// memTags is an in-memory TagStore keyed by name.
type memTags struct {
	mu     sync.Mutex
	byName map[string]models.Tag
}

func newMemTags() *memTags { return &memTags{byName: map[string]models.Tag{}} }

func (m *memTags) GetOrCreate(_ context.Context, name string) (models.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.byName[name]; ok {
		return t, nil
	}
	t := models.Tag{ID: ids.New(), Name: name, CreatedAt: time.Now()}
	m.byName[name] = t
	return t, nil
}

func (m *memTags) Create(_ context.Context, name string) (models.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[name]; ok {
		return models.Tag{}, repository.ErrTagExists
	}
	t := models.Tag{ID: ids.New(), Name: name, CreatedAt: time.Now()}
	m.byName[name] = t
	return t, nil
}

func (m *memTags) GetByName(_ context.Context, name string) (models.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.byName[name]; ok {
		return t, nil
	}
	return models.Tag{}, repository.ErrTagNotFound
}

func (m *memTags) List(context.Context, int, int) ([]models.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Tag, 0, len(m.byName))
	for _, t := range m.byName {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memTags) Search(ctx context.Context, fragment string, _ int) ([]models.Tag, error) {
	all, _ := m.List(ctx, 0, 0)
	var out []models.Tag
	for _, t := range all {
		if strings.Contains(t.Name, fragment) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTags) DeleteByName(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[name]; !ok {
		return repository.ErrTagNotFound
	}
	delete(m.byName, name)
	return nil
}

func (m *memTags) byID(id string) (models.Tag, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.byName {
		if t.ID == id {
			return t, true
		}
	}
	return models.Tag{}, false
}

// memAuthors is an in-memory AuthorStore with a unique email index.
type memAuthors struct {
	mu      sync.Mutex
	authors []models.Author
	creates int
}

func (m *memAuthors) Create(_ context.Context, a models.Author) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.authors {
		if existing.Email == a.Email {
			return repository.ErrAuthorExists
		}
	}
	m.creates++
	a.CreatedAt = time.Now()
	m.authors = append(m.authors, a)
	return nil
}

func (m *memAuthors) GetByID(_ context.Context, id string) (models.Author, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.authors {
		if a.ID == id {
			return a, nil
		}
	}
	return models.Author{}, repository.ErrAuthorNotFound
}

func (m *memAuthors) GetByName(_ context.Context, name string) (models.Author, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.authors {
		if a.Name == name {
			return a, nil
		}
	}
	return models.Author{}, repository.ErrAuthorNotFound
}

func (m *memAuthors) Update(_ context.Context, a models.Author) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := -1
	for i, existing := range m.authors {
		if existing.ID == a.ID {
			idx = i
		} else if existing.Email == a.Email {
			return repository.ErrAuthorExists
		}
	}
	if idx < 0 {
		return repository.ErrAuthorNotFound
	}
	m.authors[idx].Name = a.Name
	m.authors[idx].Email = a.Email
	return nil
}

func (m *memAuthors) List(context.Context, int, int) ([]models.Author, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Author(nil), m.authors...), nil
}

func (m *memAuthors) Search(_ context.Context, fragment string, _ int) ([]models.Author, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Author
	for _, a := range m.authors {
		if strings.Contains(strings.ToLower(a.Name), strings.ToLower(fragment)) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAuthors) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.authors {
		if a.ID == id {
			m.authors = append(m.authors[:i], m.authors[i+1:]...)
			return nil
		}
	}
	return repository.ErrAuthorNotFound
}

// memImages is an in-memory ImageStore that hydrates tags and authors.
type memImages struct {
	mu      sync.Mutex
	rows    map[string]models.Image
	links   map[string][]string
	order   []string
	tags    *memTags
	authors *memAuthors

	failCreate   error
	failLocation error
	clock        time.Time
}

func newMemImages(tags *memTags, authors *memAuthors) *memImages {
	return &memImages{
		rows:    map[string]models.Image{},
		links:   map[string][]string{},
		tags:    tags,
		authors: authors,
		clock:   time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (m *memImages) Create(_ context.Context, img models.Image) (models.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return models.Image{}, m.failCreate
	}
	m.clock = m.clock.Add(time.Second)
	img.CreatedAt = m.clock
	img.UpdatedAt = m.clock
	m.rows[img.ID] = img
	m.order = append(m.order, img.ID)
	return img, nil
}

func (m *memImages) hydrate(img models.Image) models.Image {
	img.Tags = nil
	for _, id := range m.links[img.ID] {
		if t, ok := m.tags.byID(id); ok {
			img.Tags = append(img.Tags, t)
		}
	}
	img.Author = nil
	if img.AuthorID != nil {
		if a, err := m.authors.GetByID(context.Background(), *img.AuthorID); err == nil {
			img.Author = &a
		}
	}
	return img
}

func (m *memImages) GetByID(_ context.Context, id string) (models.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.rows[id]
	if !ok {
		return models.Image{}, repository.ErrImageNotFound
	}
	return m.hydrate(img), nil
}

func (m *memImages) all(keep func(models.Image) bool) []models.Image {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Image
	for _, id := range m.order {
		img, ok := m.rows[id]
		if !ok {
			continue
		}
		img = m.hydrate(img)
		if keep(img) {
			out = append(out, img)
		}
	}
	return out
}

func (m *memImages) List(context.Context, int, int) ([]models.Image, error) {
	return m.all(func(models.Image) bool { return true }), nil
}

func (m *memImages) ListUntagged(context.Context, int, int) ([]models.Image, error) {
	return m.all(models.Image.IsUntagged), nil
}

func (m *memImages) NextUntagged(ctx context.Context) (models.Image, error) {
	images, _ := m.ListUntagged(ctx, 1, 0)
	if len(images) == 0 {
		return models.Image{}, repository.ErrImageNotFound
	}
	return images[0], nil
}

func (m *memImages) Search(_ context.Context, q models.ImageQuery) ([]models.Image, error) {
	return m.all(func(img models.Image) bool {
		names := map[string]bool{}
		for _, n := range img.TagNames() {
			names[n] = true
		}
		for _, want := range q.Tags {
			if !names[want] {
				return false
			}
		}
		if q.Author != "" && (img.Author == nil || img.Author.Name != q.Author) {
			return false
		}
		return true
	}), nil
}

func (m *memImages) ListMissingPreviews(context.Context, int) ([]models.Image, error) {
	return m.all(func(img models.Image) bool {
		return (img.TagPreviewPath == nil || img.SearchPreviewPath == nil) && img.OriginalPath() != nil
	}), nil
}

func (m *memImages) ApplyTagging(_ context.Context, id string, tagIDs []string, authorID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.rows[id]
	if !ok {
		return repository.ErrImageNotFound
	}
	m.links[id] = append([]string(nil), tagIDs...)
	switch {
	case authorID == nil:
	case *authorID == "":
		img.AuthorID = nil
	default:
		img.AuthorID = authorID
	}
	m.rows[id] = img
	return nil
}

func (m *memImages) UpdateLocation(_ context.Context, id string, loc models.ImageLocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLocation != nil {
		return m.failLocation
	}
	img, ok := m.rows[id]
	if !ok {
		return repository.ErrImageNotFound
	}
	img.Filename = loc.Filename
	img.UntaggedPath = loc.UntaggedPath
	img.TaggedPath = loc.TaggedPath
	m.rows[id] = img
	return nil
}

func (m *memImages) UpdatePreviews(_ context.Context, id string, tagPath, searchPath *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.rows[id]
	if !ok {
		return repository.ErrImageNotFound
	}
	img.TagPreviewPath = tagPath
	img.SearchPreviewPath = searchPath
	m.rows[id] = img
	return nil
}

func (m *memImages) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repository.ErrImageNotFound
	}
	delete(m.rows, id)
	delete(m.links, id)
	return nil
}

func (m *memImages) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// faultyStore wraps a provider and fails selected operations. It hides any
// Mover of the wrapped provider so moves go through copy-then-delete.
type faultyStore struct {
	storage.Provider
	failUploadArea string
}

func (f *faultyStore) Upload(ctx context.Context, data []byte, dest, contentType string) (string, error) {
	if f.failUploadArea != "" && strings.HasPrefix(dest, f.failUploadArea+"/") {
		return "", io.ErrClosedPipe
	}
	return f.Provider.Upload(ctx, data, dest, contentType)
}

type recordingQueue struct {
	mu  sync.Mutex
	ids []string
}

func (q *recordingQueue) EnqueuePreview(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
	return nil
}

type imageFixture struct {
	svc     *ImageService
	images  *memImages
	tags    *memTags
	authors *memAuthors
	fs      afero.Fs
	local   *storage.LocalStore
	store   *faultyStore
	queue   *recordingQueue
}

func newImageFixture(t *testing.T) *imageFixture {
	t.Helper()
	fsys := afero.NewMemMapFs()
	local, err := storage.NewLocalStore(fsys, "/data")
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	tags := newMemTags()
	authors := &memAuthors{}
	images := newMemImages(tags, authors)
	store := &faultyStore{Provider: local}
	queue := &recordingQueue{}
	log := zerolog.Nop()

	catalog := NewCatalogService(tags, authors, log)
	gen := preview.NewGenerator(preview.Box{Width: 800, Height: 800}, preview.Box{Width: 300, Height: 400}, 85)
	svc := NewImageService(images, catalog, store, gen, queue, config.PreviewConfig{Timeout: 10 * time.Second}, log)

	return &imageFixture{
		svc:     svc,
		images:  images,
		tags:    tags,
		authors: authors,
		fs:      fsys,
		local:   local,
		store:   store,
		queue:   queue,
	}
}

func (f *imageFixture) ingest(t *testing.T, name string) models.Image {
	t.Helper()
	img, err := f.svc.Ingest(context.Background(), Upload{Name: name, Data: jpegBytes(t, 64, 48)})
	if err != nil {
		t.Fatalf("Ingest(%q): %v", name, err)
	}
	return img
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func strPtr(s string) *string { return &s }
