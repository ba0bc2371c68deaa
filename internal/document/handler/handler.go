package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/guillecro/leyesabiertas-core/internal/apperrors"
	"github.com/guillecro/leyesabiertas-core/internal/comment"
	"github.com/guillecro/leyesabiertas-core/internal/document"
	"github.com/guillecro/leyesabiertas-core/internal/document/service"
	"github.com/guillecro/leyesabiertas-core/internal/models"
	"github.com/guillecro/leyesabiertas-core/pkg/middleware"
)

// RegisterDocumentRoutes wires the document endpoints. The public listing and
// single-document reads need no token; creation is reserved for accountable
// users and updates for the document's author.
func RegisterDocumentRoutes(r gin.IRouter, svc *service.Service, auth gin.HandlerFunc) {
	h := &documentHandler{svc: svc}
	r.GET("/documents", h.list)
	r.GET("/documents/:id", h.get)
	r.POST("/documents", auth, middleware.RequireRole(models.RoleAccountable), h.create)
	r.PUT("/documents/:id", auth, h.update)
	r.GET("/my-documents", auth, middleware.RequireRole(models.RoleAccountable), h.myDocuments)
}

type documentHandler struct {
	svc *service.Service
}

type createDocumentRequest struct {
	CustomForm string                  `json:"customForm" binding:"required"`
	Content    document.VersionContent `json:"content"`
}

type updateDocumentRequest struct {
	Published     *bool                      `json:"published,omitempty"`
	Closed        *bool                      `json:"closed,omitempty"`
	Content       *document.VersionContent   `json:"content,omitempty"`
	Contributions []string                   `json:"contributions,omitempty"`
	Decorations   []comment.DecorationUpdate `json:"decorations,omitempty"`
}

func (h *documentHandler) list(c *gin.Context) {
	published := true
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	out, err := h.svc.List(c.Request.Context(), document.Filter{Published: &published}, page, limit)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *documentHandler) myDocuments(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	out, err := h.svc.List(c.Request.Context(), document.Filter{Author: user.Sub}, page, limit)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *documentHandler) get(c *gin.Context) {
	view, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *documentHandler) create(c *gin.Context) {
	var req createDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := h.svc.Create(c.Request.Context(), middleware.CurrentUser(c), req.CustomForm, req.Content)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *documentHandler) update(c *gin.Context) {
	var req updateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	patch := service.UpdatePatch{
		Published:     req.Published,
		Closed:        req.Closed,
		Content:       req.Content,
		Contributions: req.Contributions,
		Decorations:   req.Decorations,
	}
	view, err := h.svc.Update(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c), patch)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func renderError(c *gin.Context, err error) {
	c.JSON(apperrors.Status(err), gin.H{"error": err.Error()})
}
