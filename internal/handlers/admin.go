package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// QueuePreviews schedules preview regeneration for one image on the worker.
func (h HandlerSet) QueuePreviews(c *gin.Context) {
	id := c.Param("id")
	if err := h.images.QueuePreviews(c.Request.Context(), id); err != nil {
		h.respondImageError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id, "queued": true})
}
