package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hanoutiya/hanoutiya-core/internal/core/services"
	"github.com/hanoutiya/hanoutiya-core/internal/dto"
	"github.com/hanoutiya/hanoutiya-core/internal/models"
)

// productHandler exposes the inventory operations.
type productHandler struct {
	store *services.StoreService
}

func registerProductRoutes(rg *gin.RouterGroup, store *services.StoreService) {
	h := &productHandler{store: store}

	products := rg.Group("/products")
	{
		products.GET("", h.listProducts)
		products.POST("", h.createProduct)
		products.PUT("/:id", h.updateProduct)
		products.DELETE("/:id", h.deleteProduct)
		products.POST("/stock-adjustments", h.adjustStock)
	}
}

func (h *productHandler) listProducts(c *gin.Context) {
	c.JSON(http.StatusOK, dto.CollectionResponse[models.Product]{
		Data:    h.store.Products().Snapshot(),
		Loading: h.store.Products().Loading(),
	})
}

func (h *productHandler) createProduct(c *gin.Context) {
	var req dto.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	id, err := h.store.AddProduct(c.Request.Context(), req.ToModel())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *productHandler) updateProduct(c *gin.Context) {
	var req dto.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := h.store.UpdateProduct(c.Request.Context(), c.Param("id"), req.ToPatch()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *productHandler) deleteProduct(c *gin.Context) {
	if err := h.store.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *productHandler) adjustStock(c *gin.Context) {
	var req dto.StockAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := h.store.AdjustProductsStock(c.Request.Context(), req.ToModel()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
