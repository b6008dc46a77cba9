package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"Encyclopedia/internal/domain"
)

func (h *Handlers) sortOrder(c *gin.Context) (domain.SortOrder, bool) {
	order, err := domain.ParseSortOrder(c.Query("sort"))
	if err != nil {
		h.badRequest(c, "sort must be one of newest, oldest, title_asc, title_desc")
		return "", false
	}
	return order, true
}

func (h *Handlers) listPending(c *gin.Context) {
	order, ok := h.sortOrder(c)
	if !ok {
		return
	}
	items, err := h.Moderation.ListPending(c.Request.Context(), order)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toQueue(items))
}

func (h *Handlers) listApproved(c *gin.Context) {
	order, ok := h.sortOrder(c)
	if !ok {
		return
	}
	items, err := h.Moderation.ListApproved(c.Request.Context(), order)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toQueue(items))
}

func (h *Handlers) listPublished(c *gin.Context) {
	order, ok := h.sortOrder(c)
	if !ok {
		return
	}
	articles, err := h.Moderation.ListPublished(c.Request.Context(), order)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toArticles(articles))
}

func (h *Handlers) listSubmissions(c *gin.Context) {
	order, ok := h.sortOrder(c)
	if !ok {
		return
	}
	articles, err := h.Moderation.ListSubmissions(c.Request.Context(), order)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toArticles(articles))
}

func (h *Handlers) approveRevision(c *gin.Context) {
	article, version, err := h.Moderation.ApproveRevision(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	v := toVersion(version)
	c.JSON(http.StatusOK, saveResponse{Article: toArticle(article), Version: &v})
}

func (h *Handlers) rejectRevision(c *gin.Context) {
	var body rejectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			h.badRequest(c, "malformed reject body")
			return
		}
	}
	article, err := h.Moderation.RejectRevision(c.Request.Context(), actorFrom(c), c.Param("id"), body.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toArticle(article))
}

func (h *Handlers) deleteRevision(c *gin.Context) {
	if err := h.Moderation.DeleteRevision(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) approveSubmission(c *gin.Context) {
	article, err := h.Moderation.ApproveSubmission(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toArticle(article))
}

func (h *Handlers) rejectSubmission(c *gin.Context) {
	article, err := h.Moderation.RejectSubmission(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toArticle(article))
}
