package handlers

import (
	"time"

	"imagehub/internal/models"
)

type tagResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type authorResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type imageResponse struct {
	ID               string          `json:"id"`
	Filename         string          `json:"filename"`
	OriginalName     string          `json:"originalName"`
	Tagged           bool            `json:"tagged"`
	Tags             []string        `json:"tags"`
	Author           *authorResponse `json:"author,omitempty"`
	SizeBytes        *int64          `json:"sizeBytes,omitempty"`
	MimeType         *string         `json:"mimeType,omitempty"`
	Width            *int            `json:"width,omitempty"`
	Height           *int            `json:"height,omitempty"`
	ContentURL       string          `json:"contentUrl"`
	TagPreviewURL    *string         `json:"tagPreviewUrl"`
	SearchPreviewURL *string         `json:"searchPreviewUrl"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

type userResponse struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	Username            string     `json:"username"`
	Role                string     `json:"role"`
	IsActive            bool       `json:"isActive"`
	IsAdmin             bool       `json:"isAdmin"`
	IsSuperuser         bool       `json:"isSuperuser"`
	IsLocked            bool       `json:"isLocked"`
	ForcePasswordChange bool       `json:"forcePasswordChange"`
	LastLogin           *time.Time `json:"lastLogin"`
	CreatedAt           time.Time  `json:"createdAt"`
}

const imagesPath = "/api/v1/images/"

func newTagResponse(t models.Tag) tagResponse {
	return tagResponse{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt}
}

func newTagResponses(tags []models.Tag) []tagResponse {
	resp := make([]tagResponse, 0, len(tags))
	for _, t := range tags {
		resp = append(resp, newTagResponse(t))
	}
	return resp
}

func newAuthorResponse(a models.Author) authorResponse {
	return authorResponse{ID: a.ID, Name: a.Name, Email: a.Email, CreatedAt: a.CreatedAt}
}

func newAuthorResponses(authors []models.Author) []authorResponse {
	resp := make([]authorResponse, 0, len(authors))
	for _, a := range authors {
		resp = append(resp, newAuthorResponse(a))
	}
	return resp
}

// newImageResponse exposes API links instead of storage locations.
func newImageResponse(img models.Image) imageResponse {
	resp := imageResponse{
		ID:           img.ID,
		Filename:     img.Filename,
		OriginalName: img.OriginalName,
		Tagged:       img.IsTagged(),
		Tags:         img.TagNames(),
		SizeBytes:    img.SizeBytes,
		MimeType:     img.MimeType,
		Width:        img.Width,
		Height:       img.Height,
		ContentURL:   imagesPath + img.ID + "/content",
		CreatedAt:    img.CreatedAt,
		UpdatedAt:    img.UpdatedAt,
	}
	if img.Author != nil {
		author := newAuthorResponse(*img.Author)
		resp.Author = &author
	}
	if img.TagPreviewPath != nil {
		u := imagesPath + img.ID + "/preview/" + string(models.PreviewTag)
		resp.TagPreviewURL = &u
	}
	if img.SearchPreviewPath != nil {
		u := imagesPath + img.ID + "/preview/" + string(models.PreviewSearch)
		resp.SearchPreviewURL = &u
	}
	return resp
}

func newImageResponses(images []models.Image) []imageResponse {
	resp := make([]imageResponse, 0, len(images))
	for _, img := range images {
		resp = append(resp, newImageResponse(img))
	}
	return resp
}

func newUserResponse(u models.User) userResponse {
	return userResponse{
		ID:                  u.ID,
		Email:               u.Email,
		Username:            u.Username,
		Role:                u.Role(),
		IsActive:            u.IsActive,
		IsAdmin:             u.IsAdmin,
		IsSuperuser:         u.IsSuperuser,
		IsLocked:            u.IsLocked,
		ForcePasswordChange: u.ForcePasswordChange,
		LastLogin:           u.LastLogin,
		CreatedAt:           u.CreatedAt,
	}
}
