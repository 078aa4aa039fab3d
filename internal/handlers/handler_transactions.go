package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hanoutiya/hanoutiya-core/internal/core/services"
	"github.com/hanoutiya/hanoutiya-core/internal/dto"
	"github.com/hanoutiya/hanoutiya-core/internal/models"
)

// transactionHandler exposes sales, raw transactions and the cash box.
type transactionHandler struct {
	store *services.StoreService
}

func registerTransactionRoutes(rg *gin.RouterGroup, store *services.StoreService) {
	h := &transactionHandler{store: store}

	transactions := rg.Group("/transactions")
	{
		transactions.GET("", h.listTransactions)
		transactions.POST("", h.createTransaction)
	}
	rg.POST("/sales", h.createSale)
	rg.GET("/sales/summary", h.getSalesSummary)

	cashbox := rg.Group("/cashbox")
	{
		cashbox.GET("", h.getCashbox)
		cashbox.POST("/withdrawals", h.createWithdrawal)
	}
}

func (h *transactionHandler) listTransactions(c *gin.Context) {
	c.JSON(http.StatusOK, dto.CollectionResponse[models.Transaction]{
		Data:    h.store.Transactions().Snapshot(),
		Loading: h.store.Transactions().Loading(),
	})
}

// createTransaction records a bare transaction document without touching
// stock or debt. The sale endpoint is the reconciling path.
func (h *transactionHandler) createTransaction(c *gin.Context) {
	var req dto.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	id, err := h.store.AddTransaction(c.Request.Context(), req.ToModel())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *transactionHandler) createSale(c *gin.Context) {
	var req dto.CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	id, err := h.store.RecordSale(
		c.Request.Context(),
		req.ToItems(),
		models.PaymentMethod(req.PaymentMethod),
		req.CustomerID,
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *transactionHandler) getSalesSummary(c *gin.Context) {
	c.JSON(http.StatusOK, dto.SalesSummaryResponse{
		TotalSales: h.store.SalesTotal(),
		Profit:     h.store.ProfitOfSales(),
	})
}

func (h *transactionHandler) getCashbox(c *gin.Context) {
	c.JSON(http.StatusOK, dto.CashboxResponse{
		CashInBox:   h.store.CashInBox(),
		InitialCash: h.store.StoreSettings().InitialCash,
		Withdrawals: h.store.Withdrawals().Snapshot(),
	})
}

func (h *transactionHandler) createWithdrawal(c *gin.Context) {
	var req dto.CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	id, err := h.store.AddCashWithdrawal(c.Request.Context(), models.CashWithdrawal{
		Date:   req.Date,
		Amount: req.Amount,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}
