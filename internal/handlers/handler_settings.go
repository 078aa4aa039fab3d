package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hanoutiya/hanoutiya-core/internal/core/services"
	"github.com/hanoutiya/hanoutiya-core/internal/dto"
)

// settingsHandler exposes the configuration document and the factory
// reset.
type settingsHandler struct {
	store *services.StoreService
}

func registerSettingsRoutes(rg *gin.RouterGroup, store *services.StoreService) {
	h := &settingsHandler{store: store}

	rg.GET("/settings", h.getSettings)
	rg.PUT("/settings", h.putSettings)
	rg.POST("/reset", h.resetStore)
}

func (h *settingsHandler) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"data":    h.store.StoreSettings(),
		"loading": h.store.SettingsLoading(),
	})
}

func (h *settingsHandler) putSettings(c *gin.Context) {
	var req dto.StoreSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := h.store.SetStoreSettings(c.Request.Context(), req.ToModel()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// resetStore destroys every collection and rewrites the settings document
// to its pristine state. Failures abort the operation part-way; there is
// no compensation, the caller retries.
func (h *settingsHandler) resetStore(c *gin.Context) {
	if err := h.store.ResetStore(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
