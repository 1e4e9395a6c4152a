package models

import "time"

type Image struct {
	ID                string
	Filename          string
	OriginalName      string
	UntaggedPath      *string
	TaggedPath        *string
	TagPreviewPath    *string
	SearchPreviewPath *string
	AuthorID          *string
	Author            *Author
	Tags              []Tag
	SizeBytes         *int64
	MimeType          *string
	Width             *int
	Height            *int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsUntagged reports whether the image is still waiting for triage.
func (i Image) IsUntagged() bool {
	return i.UntaggedPath != nil && len(i.Tags) == 0
}

func (i Image) IsTagged() bool {
	return i.TaggedPath != nil
}

// OriginalPath is the stored original, wherever it currently lives.
func (i Image) OriginalPath() *string {
	if i.TaggedPath != nil {
		return i.TaggedPath
	}
	return i.UntaggedPath
}

// Paths lists every stored file of the image.
func (i Image) Paths() []string {
	var paths []string
	for _, p := range []*string{i.UntaggedPath, i.TaggedPath, i.TagPreviewPath, i.SearchPreviewPath} {
		if p != nil && *p != "" {
			paths = append(paths, *p)
		}
	}
	return paths
}

func (i Image) TagNames() []string {
	names := make([]string, 0, len(i.Tags))
	for _, t := range i.Tags {
		names = append(names, t.Name)
	}
	return names
}

// ImageLocation is the file placement of an image after ingest or tagging.
type ImageLocation struct {
	Filename     string
	UntaggedPath *string
	TaggedPath   *string
}

type ImageQuery struct {
	Tags   []string
	Author string
	Limit  int
	Offset int
}

type PreviewKind string

const (
	PreviewTag    PreviewKind = "tag"
	PreviewSearch PreviewKind = "search"
)
