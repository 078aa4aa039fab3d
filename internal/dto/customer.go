package dto

import (
	"github.com/hanoutiya/hanoutiya-core/internal/models"
	"github.com/shopspring/decimal"
)

// CreateCustomerRequest is the payload for adding a customer,
// optionally with an opening debt.
type CreateCustomerRequest struct {
	Name      string          `json:"name" binding:"required"`
	Phone     string          `json:"phone"`
	TotalDebt decimal.Decimal `json:"totalDebt"`
}

// ToModel maps the request onto the domain entity.
func (r CreateCustomerRequest) ToModel() models.Customer {
	return models.Customer{
		Name:      r.Name,
		Phone:     r.Phone,
		TotalDebt: r.TotalDebt,
	}
}

// UpdateCustomerRequest is a partial-field merge. Debt is absent on
// purpose: it only moves through the ledger endpoints.
type UpdateCustomerRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

// ToPatch maps the request onto the typed patch.
func (r UpdateCustomerRequest) ToPatch() models.CustomerPatch {
	return models.CustomerPatch{Name: r.Name, Phone: r.Phone}
}

// DebtAdjustmentRequest moves a customer's balance by a signed delta.
type DebtAdjustmentRequest struct {
	Delta decimal.Decimal `json:"delta" binding:"required"`
}

// DebtPaymentRequest records a cash payment against a customer's debt.
type DebtPaymentRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}
