package httpapi

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"Encyclopedia/internal/usecase"
)

func (h *Handlers) saveArticle(c *gin.Context) {
	var body saveRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "malformed article body")
		return
	}

	result, err := h.Articles.Save(c.Request.Context(), actorFrom(c), usecase.SaveRequest{
		ArticleID:         c.Param("id"),
		Title:             body.Title,
		Content:           body.Content,
		Changes:           body.Changes,
		ExpectedVersionID: body.ExpectedVersionID,
		Categories:        body.Categories,
		Tags:              body.Tags,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := saveResponse{Article: toArticle(result.Article)}
	if result.Version != nil {
		v := toVersion(*result.Version)
		resp.Version = &v
	}
	if result.Revision != nil {
		r := toRevision(*result.Revision)
		resp.Revision = &r
	}

	status := http.StatusOK
	switch {
	case c.Param("id") == "":
		status = http.StatusCreated
	case result.Revision != nil:
		status = http.StatusAccepted
	}
	c.JSON(status, resp)
}

func (h *Handlers) getArticle(c *gin.Context) {
	article, err := h.Articles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toArticle(article))
}

func (h *Handlers) readPublic(c *gin.Context) {
	article, err := h.Articles.ReadPublic(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := toArticle(article)
	if h.Renderer != nil {
		html, err := h.Renderer.Render(article.Content)
		if err != nil {
			h.Logger.Warn("render failed", "article_id", article.ID, "error", err)
		}
		resp.HTML = html
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) submitArticle(c *gin.Context) {
	var body submitRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			h.badRequest(c, "malformed submit body")
			return
		}
	}

	article, err := h.Articles.Submit(c.Request.Context(), actorFrom(c), c.Param("id"), body.ConfirmOverride)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toArticle(article))
}

func (h *Handlers) updateMetadata(c *gin.Context) {
	var body metadataRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "malformed metadata body")
		return
	}

	article, err := h.Articles.UpdateMetadata(c.Request.Context(), actorFrom(c), c.Param("id"), usecase.MetadataPatch{
		Categories:   body.Categories,
		Tags:         body.Tags,
		Infobox:      body.Infobox,
		ClearInfobox: body.ClearInfobox,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toArticle(article))
}

func (h *Handlers) attachImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		h.badRequest(c, "multipart field \"image\" is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.badRequest(c, "image is too large")
		return
	}

	article, err := h.Articles.AttachImage(c.Request.Context(), actorFrom(c), c.Param("id"), usecase.ImageUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		Description: c.PostForm("description"),
		Attribution: c.PostForm("attribution"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toArticle(article))
}

func (h *Handlers) archiveArticle(c *gin.Context) {
	article, err := h.Articles.Archive(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toArticle(article))
}

func (h *Handlers) deleteArticle(c *gin.Context) {
	if err := h.Articles.Delete(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) listVersions(c *gin.Context) {
	history, err := h.Versions.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]versionResponse, 0, len(history))
	for _, v := range history {
		out = append(out, toVersion(v))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) versionByNumber(c *gin.Context) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number < 1 {
		h.badRequest(c, "version number must be a positive integer")
		return
	}
	version, err := h.Versions.ByNumber(c.Request.Context(), c.Param("id"), number)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toVersion(version))
}

func (h *Handlers) restoreVersion(c *gin.Context) {
	version, err := h.Versions.Restore(c.Request.Context(), actorFrom(c), c.Param("id"), c.Param("versionID"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toVersion(version))
}
