package queue

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Kind string

const (
	// KindPreview regenerates the previews of one image.
	KindPreview Kind = "preview"
	// KindBackfill queues previews for every image missing them.
	KindBackfill Kind = "backfill"
	// KindCleanup purges expired sessions and reset tokens.
	KindCleanup Kind = "cleanup"
)

var ErrMalformedTask = errors.New("queue: malformed task")

type Task struct {
	Kind    Kind
	ImageID string
}

func (t Task) values() map[string]any {
	v := map[string]any{"kind": string(t.Kind)}
	if t.ImageID != "" {
		v["image_id"] = t.ImageID
	}
	return v
}

// ParseTask reads a task from a stream entry.
func ParseTask(msg redis.XMessage) (Task, error) {
	kind, ok := msg.Values["kind"].(string)
	if !ok || kind == "" {
		return Task{}, fmt.Errorf("%w: message %s has no kind", ErrMalformedTask, msg.ID)
	}
	t := Task{Kind: Kind(kind)}
	if id, ok := msg.Values["image_id"].(string); ok {
		t.ImageID = id
	}
	if t.Kind == KindPreview && t.ImageID == "" {
		return Task{}, fmt.Errorf("%w: preview task %s has no image_id", ErrMalformedTask, msg.ID)
	}
	return t, nil
}

func (t Task) String() string {
	if t.ImageID == "" {
		return string(t.Kind)
	}
	return string(t.Kind) + ":" + t.ImageID
}

