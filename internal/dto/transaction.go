package dto

import (
	"time"

	"github.com/hanoutiya/hanoutiya-core/internal/models"
	"github.com/shopspring/decimal"
)

// LineItemRequest is one product line of a sale.
type LineItemRequest struct {
	ProductID   string          `json:"productId" binding:"required"`
	ProductName string          `json:"productName"`
	Quantity    int64           `json:"quantity" binding:"required,gt=0"`
	Price       decimal.Decimal `json:"price"`
}

func (r LineItemRequest) toModel() models.LineItem {
	return models.LineItem{
		ProductID:   r.ProductID,
		ProductName: r.ProductName,
		Quantity:    r.Quantity,
		Price:       r.Price,
	}
}

// CreateTransactionRequest records a raw transaction document. Most
// callers use the sale endpoint instead, which also reconciles stock and
// debt.
type CreateTransactionRequest struct {
	Date          time.Time         `json:"date"`
	Kind          string            `json:"kind" binding:"omitempty,oneof=sale debt_payment"`
	Items         []LineItemRequest `json:"items" binding:"required,min=1,dive"`
	Total         decimal.Decimal   `json:"total"`
	PaymentMethod string            `json:"paymentMethod" binding:"required,oneof=cash credit"`
	CustomerID    string            `json:"customerId"`
	CustomerName  string            `json:"customerName"`
}

// ToModel maps the request onto the domain entity.
func (r CreateTransactionRequest) ToModel() models.Transaction {
	items := make([]models.LineItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, item.toModel())
	}
	return models.Transaction{
		Date:          r.Date,
		Kind:          models.TransactionKind(r.Kind),
		Items:         items,
		Total:         r.Total,
		PaymentMethod: models.PaymentMethod(r.PaymentMethod),
		CustomerID:    r.CustomerID,
		CustomerName:  r.CustomerName,
	}
}

// CreateSaleRequest is the checkout payload: line items plus how the sale
// is settled. The gateway derives the total and the reconciliation steps.
type CreateSaleRequest struct {
	Items         []LineItemRequest `json:"items" binding:"required,min=1,dive"`
	PaymentMethod string            `json:"paymentMethod" binding:"required,oneof=cash credit"`
	CustomerID    string            `json:"customerId"`
}

// ToItems maps the request line items onto domain line items.
func (r CreateSaleRequest) ToItems() []models.LineItem {
	items := make([]models.LineItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, item.toModel())
	}
	return items
}

// CreateWithdrawalRequest records money taken out of the cash box.
type CreateWithdrawalRequest struct {
	Date   time.Time       `json:"date"`
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// SalesSummaryResponse reports the derived sales figures. Debt payments
// are excluded from both numbers.
type SalesSummaryResponse struct {
	TotalSales decimal.Decimal `json:"totalSales"`
	Profit     decimal.Decimal `json:"profit"`
}

// CashboxResponse reports the derived cash balance alongside the
// withdrawal history it was computed from.
type CashboxResponse struct {
	CashInBox   decimal.Decimal         `json:"cashInBox"`
	InitialCash decimal.Decimal         `json:"initialCash"`
	Withdrawals []models.CashWithdrawal `json:"withdrawals"`
}
