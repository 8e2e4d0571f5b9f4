package admin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bundlesync/pkg/errutil"
	"bundlesync/services/bundle"
	"bundlesync/services/sync"
)

// Handler exposes the admin surface over HTTP. Every mutating response
// carries the sync report so the UI can show partial-failure banners.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(engine *gin.Engine) {
	v1 := engine.Group("/v1")
	{
		v1.POST("/bundles", h.CreateBundle)
		v1.GET("/bundles", h.ListBundles)
		v1.GET("/bundles/:id", h.GetBundle)
		v1.PATCH("/bundles/:id", h.UpdateBundle)
		v1.DELETE("/bundles/:id", h.DeleteBundle)
		v1.PUT("/bundles/:id/addons", h.ReplaceAddOns)
		v1.PUT("/bundles/:id/targeting", h.ReplaceTargeting)
		v1.PUT("/bundles/:id/style", h.UpsertStyle)
		v1.POST("/bundles/:id/sync", h.Resync)
	}
}

type bundleResponse struct {
	Bundle     *bundle.Bundle   `json:"bundle"`
	SyncReport *sync.SyncReport `json:"sync_report,omitempty"`
}

func (h *Handler) CreateBundle(c *gin.Context) {
	var in CreateBundleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.Error(errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	b, report, err := h.svc.CreateBundle(c.Request.Context(), in)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, bundleResponse{Bundle: b, SyncReport: report})
}

func (h *Handler) ListBundles(c *gin.Context) {
	params := bundle.ListParams{
		Status:          bundle.BundleStatus(c.Query("status")),
		IncludeArchived: c.Query("include_archived") == "true",
	}
	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			params.Limit = limit
		}
	}

	bundles, err := h.svc.ListBundles(c.Request.Context(), params)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bundles": bundles})
}

func (h *Handler) GetBundle(c *gin.Context) {
	b, err := h.svc.GetBundle(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, bundleResponse{Bundle: b})
}

func (h *Handler) UpdateBundle(c *gin.Context) {
	var in UpdateBundleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.Error(errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	b, report, err := h.svc.UpdateBundle(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, bundleResponse{Bundle: b, SyncReport: report})
}

func (h *Handler) DeleteBundle(c *gin.Context) {
	report, err := h.svc.DeleteBundle(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sync_report": report})
}

func (h *Handler) ReplaceAddOns(c *gin.Context) {
	var in struct {
		AddOns []AddOnInput `json:"add_ons"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.Error(errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	b, report, err := h.svc.ReplaceAddOns(c.Request.Context(), c.Param("id"), in.AddOns)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, bundleResponse{Bundle: b, SyncReport: report})
}

func (h *Handler) ReplaceTargeting(c *gin.Context) {
	var in TargetingInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.Error(errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	b, report, err := h.svc.ReplaceTargeting(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, bundleResponse{Bundle: b, SyncReport: report})
}

func (h *Handler) UpsertStyle(c *gin.Context) {
	var in StyleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.Error(errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	style, report, err := h.svc.UpsertStyle(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"style": style, "sync_report": report})
}

func (h *Handler) Resync(c *gin.Context) {
	report, err := h.svc.Resync(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sync_report": report})
}
