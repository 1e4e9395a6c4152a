package tasks

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"imagehub/internal/models"
	"imagehub/internal/queue"
	"imagehub/internal/service"
)

type fakePreviews struct {
	err       error
	missing   []models.Image
	rendered  []string
	listLimit int
}

func (f *fakePreviews) RegeneratePreviews(_ context.Context, id string) (models.Image, error) {
	if f.err != nil {
		return models.Image{}, f.err
	}
	f.rendered = append(f.rendered, id)
	return models.Image{ID: id}, nil
}

func (f *fakePreviews) MissingPreviews(_ context.Context, limit int) ([]models.Image, error) {
	f.listLimit = limit
	return f.missing, nil
}

type fakePurger struct {
	calls int
	err   error
}

func (f *fakePurger) PurgeExpired(context.Context) (int64, int64, error) {
	f.calls++
	return 3, 1, f.err
}

type fakeEnqueuer struct {
	tasks []queue.Task
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, task queue.Task) (string, error) {
	f.tasks = append(f.tasks, task)
	return fmt.Sprintf("%d-0", len(f.tasks)), nil
}

func TestHandlePreview(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{name: "success"},
		{name: "missing image is dropped", err: fmt.Errorf("image: %w", service.ErrNotFound)},
		{name: "undecodable original is dropped", err: &service.ValidationError{Field: "image", Message: "bad"}},
		{name: "storage failure is retried", err: errors.New("connection reset"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			previews := &fakePreviews{err: tt.err}
			p := NewProcessor(previews, &fakePurger{}, &fakeEnqueuer{}, zerolog.Nop())

			err := p.Handle(context.Background(), queue.Task{Kind: queue.KindPreview, ImageID: "img-1"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Handle() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.err == nil && (len(previews.rendered) != 1 || previews.rendered[0] != "img-1") {
				t.Fatalf("rendered = %v", previews.rendered)
			}
		})
	}
}

func TestHandleBackfillQueuesEachImage(t *testing.T) {
	previews := &fakePreviews{missing: []models.Image{{ID: "a"}, {ID: "b"}}}
	enq := &fakeEnqueuer{}
	p := NewProcessor(previews, &fakePurger{}, enq, zerolog.Nop())

	if err := p.Handle(context.Background(), queue.Task{Kind: queue.KindBackfill}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if previews.listLimit != backfillBatch {
		t.Fatalf("limit = %d, want %d", previews.listLimit, backfillBatch)
	}
	if len(enq.tasks) != 2 {
		t.Fatalf("queued %d tasks, want 2", len(enq.tasks))
	}
	for i, id := range []string{"a", "b"} {
		if enq.tasks[i].Kind != queue.KindPreview || enq.tasks[i].ImageID != id {
			t.Errorf("task %d = %+v", i, enq.tasks[i])
		}
	}
}

func TestHandleCleanup(t *testing.T) {
	purger := &fakePurger{}
	p := NewProcessor(&fakePreviews{}, purger, &fakeEnqueuer{}, zerolog.Nop())
	if err := p.Handle(context.Background(), queue.Task{Kind: queue.KindCleanup}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if purger.calls != 1 {
		t.Fatalf("purge calls = %d", purger.calls)
	}

	purger.err = errors.New("db down")
	if err := p.Handle(context.Background(), queue.Task{Kind: queue.KindCleanup}); err == nil {
		t.Fatal("expected error to surface for retry")
	}
}

func TestHandleUnknownKindIsAcknowledged(t *testing.T) {
	p := NewProcessor(&fakePreviews{}, &fakePurger{}, &fakeEnqueuer{}, zerolog.Nop())
	if err := p.Handle(context.Background(), queue.Task{Kind: "nsfw"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
}
