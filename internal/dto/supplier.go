package dto

import (
	"github.com/hanoutiya/hanoutiya-core/internal/models"
	"github.com/shopspring/decimal"
)

// CreateSupplierRequest is the payload for adding a supplier. Suppliers
// start with zero debt; the balance only moves through ledger
// transactions.
type CreateSupplierRequest struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone"`
}

// ToModel maps the request onto the domain entity.
func (r CreateSupplierRequest) ToModel() models.Supplier {
	return models.Supplier{
		Name:      r.Name,
		Phone:     r.Phone,
		TotalDebt: decimal.Zero,
	}
}

// UpdateSupplierRequest is a partial-field merge.
type UpdateSupplierRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

// ToPatch maps the request onto the typed patch.
func (r UpdateSupplierRequest) ToPatch() models.SupplierPatch {
	return models.SupplierPatch{Name: r.Name, Phone: r.Phone}
}

// SupplierTransactionRequest records a purchase or payment against a
// supplier's ledger.
type SupplierTransactionRequest struct {
	Type        string          `json:"type" binding:"required,oneof=purchase payment"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Description string          `json:"description"`
}
