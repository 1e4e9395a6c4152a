package storage

import (
	"errors"
	"testing"

	"imagehub/internal/config"
)

func TestObjectStore_URLAndKey(t *testing.T) {
	store, err := NewObjectStore(config.StorageConfig{
		Endpoint:  "https://s3.example.com",
		AccessKey: "ak",
		SecretKey: "sk",
		Bucket:    "pictures",
		Region:    "us-east-1",
	})
	if err != nil {
		t.Fatalf("NewObjectStore: %v", err)
	}

	url := store.URL("untagged/a.jpg")
	if url != "https://s3.example.com/pictures/untagged/a.jpg" {
		t.Errorf("URL = %q", url)
	}

	tests := []struct {
		location string
		want     string
		wantErr  bool
	}{
		{url, "untagged/a.jpg", false},
		{"tag_preview/b.jpg", "tag_preview/b.jpg", false},
		{"/search_preview/c.jpg", "search_preview/c.jpg", false},
		{`tagged\d.jpg`, "tagged/d.jpg", false},
		{"https://elsewhere.example.com/pictures/x.jpg", "", true},
		{"untagged/../secret", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			got, err := store.key(tt.location)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPath) {
					t.Errorf("key(%q) error = %v, want ErrInvalidPath", tt.location, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("key(%q) = %q, %v; want %q", tt.location, got, err, tt.want)
			}
		})
	}
}

func TestPublicBase(t *testing.T) {
	if got := publicBase("https://cdn.example.com/", "minio:9000", false); got != "https://cdn.example.com" {
		t.Errorf("publicBase with override = %q", got)
	}
	if got := publicBase("", "minio:9000", false); got != "http://minio:9000" {
		t.Errorf("publicBase plain = %q", got)
	}
	if got := publicBase("", "minio:9000", true); got != "https://minio:9000" {
		t.Errorf("publicBase ssl = %q", got)
	}
}
