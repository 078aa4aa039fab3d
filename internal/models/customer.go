package models

import "github.com/shopspring/decimal"

// DebtEpsilon is the tolerance below which a decimal debt balance is
// treated as fully settled. Balances drift by fractions of a centime when
// payments are computed from floating-point UI input, so the debtor view
// filters on this threshold instead of exact zero.
var DebtEpsilon = decimal.NewFromFloat(0.001)

// Customer is a shop customer who may carry credit. A settled customer is
// hidden from the debtor view but the record itself is never deleted by
// the engine.
type Customer struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Phone     string          `json:"phone"`
	TotalDebt decimal.Decimal `json:"totalDebt"`
}

// HasOutstandingDebt reports whether the customer still owes more than the
// settlement epsilon.
func (c Customer) HasOutstandingDebt() bool {
	return c.TotalDebt.GreaterThan(DebtEpsilon)
}

// CustomerPatch is a partial-field merge against a Customer. TotalDebt is
// deliberately absent: debt only moves through the atomic ledger path.
type CustomerPatch struct {
	Name  *string
	Phone *string
}

// Apply returns c with the non-nil patch fields merged in.
func (cp CustomerPatch) Apply(c Customer) Customer {
	if cp.Name != nil {
		c.Name = *cp.Name
	}
	if cp.Phone != nil {
		c.Phone = *cp.Phone
	}
	return c
}

// Changes returns the patch as the partial document sent to the store.
func (cp CustomerPatch) Changes() map[string]any {
	m := map[string]any{}
	if cp.Name != nil {
		m["name"] = *cp.Name
	}
	if cp.Phone != nil {
		m["phone"] = *cp.Phone
	}
	return m
}
