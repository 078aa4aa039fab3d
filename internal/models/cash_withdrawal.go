package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CashWithdrawal is money taken out of the cash box. The cash-box balance
// is derived, never stored: initial cash plus cash-method transaction
// totals minus withdrawals.
type CashWithdrawal struct {
	ID     string          `json:"id"`
	Date   time.Time       `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}
