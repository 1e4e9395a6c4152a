package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"imagehub/internal/models"
	"imagehub/internal/service"
)

// UploadImages ingests every part of the multipart field "files". Each file
// succeeds or fails on its own.
func (h HandlerSet) UploadImages(c *gin.Context) {
	if h.cfg != nil && h.cfg.HTTP.MaxUploadMB > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.HTTP.MaxUploadMB<<20)
	}

	form, err := c.MultipartForm()
	if err != nil {
		abortJSON(c, http.StatusBadRequest, "multipart form with files required", codeInvalidImage)
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		abortJSON(c, http.StatusBadRequest, "no files provided", codeInvalidImage)
		return
	}

	uploads := make([]service.Upload, 0, len(headers))
	var unreadable []string
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			h.log.Warn().Err(err).Str("name", fh.Filename).Msg("read upload failed")
			unreadable = append(unreadable, fh.Filename)
			continue
		}
		uploads = append(uploads, service.Upload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	result := h.images.IngestBatch(c.Request.Context(), uploads)
	failed := append(unreadable, result.Failed...)
	if failed == nil {
		failed = []string{}
	}

	status := http.StatusCreated
	message := fmt.Sprintf("uploaded %d file(s)", len(result.Uploaded))
	switch {
	case len(result.Uploaded) == 0:
		status = http.StatusBadRequest
		message = "no files could be uploaded"
	case len(failed) > 0:
		status = http.StatusMultiStatus
		message = fmt.Sprintf("uploaded %d of %d file(s)", len(result.Uploaded), len(headers))
	}

	body := gin.H{
		"uploaded": newImageResponses(result.Uploaded),
		"failed":   failed,
		"message":  message,
	}
	if status == http.StatusBadRequest {
		body["code"] = codeUploadFailed
	}
	c.JSON(status, body)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (h HandlerSet) ListImages(c *gin.Context) {
	limit, offset := pagination(c)
	images, err := h.images.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": newImageResponses(images)})
}

// SearchImages accepts tags as a comma separated list, a repeated
// parameter, or both.
func (h HandlerSet) SearchImages(c *gin.Context) {
	var tags []string
	for _, raw := range c.QueryArray("tags") {
		tags = append(tags, strings.Split(raw, ",")...)
	}
	limit, offset := pagination(c)

	images, err := h.images.Search(c.Request.Context(), models.ImageQuery{
		Tags:   tags,
		Author: c.Query("author"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": newImageResponses(images)})
}

func (h HandlerSet) ListUntagged(c *gin.Context) {
	limit, offset := pagination(c)
	images, err := h.images.ListUntagged(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": newImageResponses(images)})
}

func (h HandlerSet) NextUntagged(c *gin.Context) {
	image, err := h.images.NextUntagged(c.Request.Context())
	if err != nil {
		h.respondImageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"image": newImageResponse(image)})
}

func (h HandlerSet) GetImage(c *gin.Context) {
	image, err := h.images.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondImageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"image": newImageResponse(image)})
}

func (h HandlerSet) ImageContent(c *gin.Context) {
	data, mime, err := h.images.Content(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondImageError(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, mime, data)
}

func (h HandlerSet) ImagePreview(c *gin.Context) {
	data, err := h.images.Preview(c.Request.Context(), c.Param("id"), models.PreviewKind(c.Param("kind")))
	if err != nil {
		h.respondImageError(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, "image/jpeg", data)
}

type tagImageRequest struct {
	Tags     []string `json:"tags"`
	Author   *string  `json:"author"`
	Filename *string  `json:"filename"`
}

func (h HandlerSet) TagImage(c *gin.Context) {
	var req tagImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	image, err := h.images.Tag(c.Request.Context(), c.Param("id"), service.TagInput{
		Tags:     req.Tags,
		Author:   req.Author,
		Filename: req.Filename,
	})
	if err != nil {
		h.respondImageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"image": newImageResponse(image)})
}

func (h HandlerSet) DeleteImage(c *gin.Context) {
	id := c.Param("id")
	report, err := h.images.Delete(c.Request.Context(), id)
	if err != nil {
		h.respondImageError(c, err)
		return
	}
	if len(report.FailedPaths) > 0 {
		h.log.Warn().Str("image_id", id).Strs("paths", report.FailedPaths).Msg("image deleted with files left in storage")
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "deleted": true, "filesLeft": len(report.FailedPaths)})
}
