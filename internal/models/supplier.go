package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SupplierTransactionType distinguishes goods bought on credit from
// payments against the outstanding balance.
type SupplierTransactionType string

const (
	// SupplierPurchase increases the debt owed to the supplier.
	SupplierPurchase SupplierTransactionType = "purchase"
	// SupplierPayment decreases the debt owed to the supplier.
	SupplierPayment SupplierTransactionType = "payment"
)

// Supplier is a wholesaler the shop buys from on credit. TotalDebt is the
// amount the shop owes the supplier.
type Supplier struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Phone     string          `json:"phone"`
	TotalDebt decimal.Decimal `json:"totalDebt"`
}

// SupplierTransaction is a ledger line in the per-supplier sub-collection.
// Appending one is always paired, in the same atomic block, with the
// matching delta to the parent supplier's TotalDebt.
type SupplierTransaction struct {
	ID          string                  `json:"id"`
	SupplierID  string                  `json:"supplierId"`
	Date        time.Time               `json:"date"`
	Type        SupplierTransactionType `json:"type"`
	Amount      decimal.Decimal         `json:"amount"`
	Description string                  `json:"description,omitempty"`
}

// DebtDelta is the signed effect of the transaction on the supplier's
// balance: +amount for a purchase, -amount for a payment.
func (t SupplierTransaction) DebtDelta() decimal.Decimal {
	if t.Type == SupplierPayment {
		return t.Amount.Neg()
	}
	return t.Amount
}

// SupplierPatch is a partial-field merge against a Supplier. TotalDebt is
// deliberately absent: debt only moves through the atomic ledger path.
type SupplierPatch struct {
	Name  *string
	Phone *string
}

// Apply returns s with the non-nil patch fields merged in.
func (sp SupplierPatch) Apply(s Supplier) Supplier {
	if sp.Name != nil {
		s.Name = *sp.Name
	}
	if sp.Phone != nil {
		s.Phone = *sp.Phone
	}
	return s
}

// Changes returns the patch as the partial document sent to the store.
func (sp SupplierPatch) Changes() map[string]any {
	m := map[string]any{}
	if sp.Name != nil {
		m["name"] = *sp.Name
	}
	if sp.Phone != nil {
		m["phone"] = *sp.Phone
	}
	return m
}
