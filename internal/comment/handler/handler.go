package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/guillecro/leyesabiertas-core/internal/apperrors"
	"github.com/guillecro/leyesabiertas-core/internal/comment"
	"github.com/guillecro/leyesabiertas-core/internal/comment/service"
	"github.com/guillecro/leyesabiertas-core/pkg/middleware"
)

// RegisterCommentRoutes wires the comment and like endpoints. Listing is
// public; creating, resolving, replying and liking need a token.
func RegisterCommentRoutes(r gin.IRouter, svc *service.Service, auth gin.HandlerFunc) {
	h := &commentHandler{svc: svc}
	r.GET("/documents/:id/comments", h.list)
	r.POST("/documents/:id/comments", auth, h.create)
	r.POST("/comments/:id/resolve", auth, h.resolve)
	r.POST("/comments/:id/reply", auth, h.reply)
	r.POST("/comments/:id/like", auth, h.like)
}

type commentHandler struct {
	svc *service.Service
}

type createCommentRequest struct {
	Field      string                 `json:"field" binding:"required"`
	Content    string                 `json:"content" binding:"required"`
	Decoration map[string]interface{} `json:"decoration,omitempty"`
}

type replyRequest struct {
	Reply string `json:"reply" binding:"required"`
}

func (h *commentHandler) create(c *gin.Context) {
	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.svc.Create(c.Request.Context(), middleware.CurrentUser(c), service.CreateInput{
		Document:   c.Param("id"),
		Field:      req.Field,
		Content:    req.Content,
		Decoration: req.Decoration,
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// list serves the comment queries the editor makes. The path id always
// scopes the query to one document; ids and field narrow it further.
func (h *commentHandler) list(c *gin.Context) {
	f := comment.Filter{Document: c.Param("id")}
	if ids := c.Query("ids"); ids != "" {
		f.IDs = strings.Split(ids, ",")
	}
	f.Field = c.Query("field")
	if c.Query("resolved") == "false" {
		f.OnlyUnresolved = true
	}
	withReplies := c.Query("withReplies") == "true"
	out, err := h.svc.GetAll(c.Request.Context(), f, withReplies)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *commentHandler) resolve(c *gin.Context) {
	out, err := h.svc.Resolve(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *commentHandler) reply(c *gin.Context) {
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.svc.Reply(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), req.Reply)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// like toggles the caller's like. The response tells the two outcomes
// apart: a created like comes back as the like document, a removal as an
// explicit null.
func (h *commentHandler) like(c *gin.Context) {
	l, err := h.svc.ToggleLike(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}
	if l == nil {
		c.JSON(http.StatusOK, gin.H{"like": nil, "removed": true})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"like": l, "removed": false})
}

func renderError(c *gin.Context, err error) {
	c.JSON(apperrors.Status(err), gin.H{"error": err.Error()})
}
