package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hanoutiya/hanoutiya-core/internal/core/services"
	"github.com/hanoutiya/hanoutiya-core/internal/dto"
	"github.com/hanoutiya/hanoutiya-core/internal/models"
)

// customerHandler exposes the credit-customer operations.
type customerHandler struct {
	store *services.StoreService
}

func registerCustomerRoutes(rg *gin.RouterGroup, store *services.StoreService) {
	h := &customerHandler{store: store}

	customers := rg.Group("/customers")
	{
		customers.GET("", h.listCustomers)
		customers.GET("/debtors", h.listDebtors)
		customers.POST("", h.createCustomer)
		customers.PUT("/:id", h.updateCustomer)
		customers.DELETE("/:id", h.deleteCustomer)
		customers.POST("/:id/debt-adjustments", h.adjustDebt)
		customers.POST("/:id/payments", h.recordPayment)
	}
}

func (h *customerHandler) listCustomers(c *gin.Context) {
	c.JSON(http.StatusOK, dto.CollectionResponse[models.Customer]{
		Data:    h.store.Customers().Snapshot(),
		Loading: h.store.Customers().Loading(),
	})
}

// listDebtors is the "customers with outstanding debt" view: settled
// customers are filtered out, not deleted.
func (h *customerHandler) listDebtors(c *gin.Context) {
	c.JSON(http.StatusOK, dto.CollectionResponse[models.Customer]{
		Data:    h.store.DebtorCustomers(),
		Loading: h.store.Customers().Loading(),
	})
}

func (h *customerHandler) createCustomer(c *gin.Context) {
	var req dto.CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	id, err := h.store.AddCustomer(c.Request.Context(), req.ToModel())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *customerHandler) updateCustomer(c *gin.Context) {
	var req dto.UpdateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := h.store.UpdateCustomer(c.Request.Context(), c.Param("id"), req.ToPatch()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *customerHandler) deleteCustomer(c *gin.Context) {
	if err := h.store.DeleteCustomer(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *customerHandler) adjustDebt(c *gin.Context) {
	var req dto.DebtAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := h.store.AdjustCustomerDebt(c.Request.Context(), c.Param("id"), req.Delta); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *customerHandler) recordPayment(c *gin.Context) {
	var req dto.DebtPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	id, err := h.store.RecordDebtPayment(c.Request.Context(), c.Param("id"), req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transactionId": id})
}
