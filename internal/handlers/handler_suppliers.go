package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hanoutiya/hanoutiya-core/internal/core/services"
	"github.com/hanoutiya/hanoutiya-core/internal/dto"
	"github.com/hanoutiya/hanoutiya-core/internal/models"
)

// supplierHandler exposes the supplier ledger operations.
type supplierHandler struct {
	store *services.StoreService
}

func registerSupplierRoutes(rg *gin.RouterGroup, store *services.StoreService) {
	h := &supplierHandler{store: store}

	suppliers := rg.Group("/suppliers")
	{
		suppliers.GET("", h.listSuppliers)
		suppliers.POST("", h.createSupplier)
		suppliers.PUT("/:id", h.updateSupplier)
		suppliers.DELETE("/:id", h.deleteSupplier)
		suppliers.GET("/:id/transactions", h.listTransactions)
		suppliers.POST("/:id/transactions", h.recordTransaction)
	}
}

func (h *supplierHandler) listSuppliers(c *gin.Context) {
	c.JSON(http.StatusOK, dto.CollectionResponse[models.Supplier]{
		Data:    h.store.Suppliers().Snapshot(),
		Loading: h.store.Suppliers().Loading(),
	})
}

func (h *supplierHandler) createSupplier(c *gin.Context) {
	var req dto.CreateSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	id, err := h.store.AddSupplier(c.Request.Context(), req.ToModel())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *supplierHandler) updateSupplier(c *gin.Context) {
	var req dto.UpdateSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := h.store.UpdateSupplier(c.Request.Context(), c.Param("id"), req.ToPatch()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *supplierHandler) deleteSupplier(c *gin.Context) {
	if err := h.store.DeleteSupplier(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *supplierHandler) listTransactions(c *gin.Context) {
	records, err := h.store.SupplierTransactions(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}

func (h *supplierHandler) recordTransaction(c *gin.Context) {
	var req dto.SupplierTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	err := h.store.RecordSupplierTransaction(
		c.Request.Context(),
		c.Param("id"),
		models.SupplierTransactionType(req.Type),
		req.Amount,
		req.Description,
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}
