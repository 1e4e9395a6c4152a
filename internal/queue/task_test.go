package queue

import (
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestParseTask(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]any
		want    Task
		wantErr bool
	}{
		{
			name:   "preview",
			values: map[string]any{"kind": "preview", "image_id": "2abc"},
			want:   Task{Kind: KindPreview, ImageID: "2abc"},
		},
		{
			name:   "cleanup without image",
			values: map[string]any{"kind": "cleanup"},
			want:   Task{Kind: KindCleanup},
		},
		{name: "missing kind", values: map[string]any{"image_id": "x"}, wantErr: true},
		{name: "preview without image", values: map[string]any{"kind": "preview"}, wantErr: true},
		{name: "non-string kind", values: map[string]any{"kind": 7}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTask(redis.XMessage{ID: "1-0", Values: tt.values})
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedTask) {
					t.Fatalf("err = %v, want ErrMalformedTask", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTask: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTaskValuesRoundTrip(t *testing.T) {
	task := Task{Kind: KindPreview, ImageID: "2abc"}
	got, err := ParseTask(redis.XMessage{ID: "1-0", Values: task.values()})
	if err != nil {
		t.Fatalf("ParseTask: %v", err)
	}
	if got != task {
		t.Fatalf("got %+v, want %+v", got, task)
	}
	if _, ok := (Task{Kind: KindBackfill}).values()["image_id"]; ok {
		t.Fatal("backfill task should not carry image_id")
	}
}

func TestTaskString(t *testing.T) {
	if s := (Task{Kind: KindPreview, ImageID: "x"}).String(); s != "preview:x" {
		t.Fatalf("String() = %q", s)
	}
	if s := (Task{Kind: KindCleanup}).String(); s != "cleanup" {
		t.Fatalf("String() = %q", s)
	}
}
