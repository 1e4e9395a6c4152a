package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"imagehub/internal/service"
)

func (h HandlerSet) ListTags(c *gin.Context) {
	limit, offset := pagination(c)
	tags, err := h.catalog.ListTags(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": newTagResponses(tags)})
}

func (h HandlerSet) SearchTags(c *gin.Context) {
	tags, err := h.catalog.SearchTags(c.Request.Context(), c.Query("query"), searchLimit(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": newTagResponses(tags)})
}

type createTagRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h HandlerSet) CreateTag(c *gin.Context) {
	var req createTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	tag, err := h.catalog.CreateTag(c.Request.Context(), req.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tag": newTagResponse(tag)})
}

func (h HandlerSet) DeleteTag(c *gin.Context) {
	if err := h.catalog.DeleteTag(c.Request.Context(), c.Param("name")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) ListAuthors(c *gin.Context) {
	limit, offset := pagination(c)
	authors, err := h.catalog.ListAuthors(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondAuthorError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": newAuthorResponses(authors)})
}

func (h HandlerSet) SearchAuthors(c *gin.Context) {
	authors, err := h.catalog.SearchAuthors(c.Request.Context(), c.Query("query"), searchLimit(c))
	if err != nil {
		h.respondAuthorError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": newAuthorResponses(authors)})
}

func (h HandlerSet) GetAuthor(c *gin.Context) {
	author, err := h.catalog.GetAuthor(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondAuthorError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"author": newAuthorResponse(author)})
}

type createAuthorRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email"`
}

func (h HandlerSet) CreateAuthor(c *gin.Context) {
	var req createAuthorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	author, err := h.catalog.CreateAuthor(c.Request.Context(), service.AuthorInput{Name: req.Name, Email: req.Email})
	if err != nil {
		h.respondAuthorError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"author": newAuthorResponse(author)})
}

// updateAuthorRequest carries only the fields an admin may change.
type updateAuthorRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

func (h HandlerSet) UpdateAuthor(c *gin.Context) {
	var req updateAuthorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	author, err := h.catalog.UpdateAuthor(c.Request.Context(), c.Param("id"), service.AuthorUpdate{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		h.respondAuthorError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"author": newAuthorResponse(author)})
}

func (h HandlerSet) DeleteAuthor(c *gin.Context) {
	if err := h.catalog.DeleteAuthor(c.Request.Context(), c.Param("id")); err != nil {
		h.respondAuthorError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
