package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind tags what a transaction record represents. Earlier data
// marked debt repayments with a sentinel line-item product id; the kind tag
// makes the distinction explicit while the sentinel is still written for
// compatibility with existing documents.
type TransactionKind string

const (
	// KindSale is a goods sale, cash or credit.
	KindSale TransactionKind = "sale"
	// KindDebtPayment is a cash inflow that reduces a customer's debt.
	// Excluded from sales and profit analytics by convention.
	KindDebtPayment TransactionKind = "debt_payment"
)

// DebtPaymentProductID is the legacy sentinel product id written on the
// single line item of a debt-payment transaction.
const DebtPaymentProductID = "DEBT_PAYMENT"

// PaymentMethod is how a transaction was settled.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCredit PaymentMethod = "credit"
)

// LineItem is one product line of a sale. ProductID is not enforced
// referentially: deleting a product leaves its past line items untouched.
type LineItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// Transaction is a sale or debt-payment record.
type Transaction struct {
	ID            string          `json:"id"`
	Date          time.Time       `json:"date"`
	Kind          TransactionKind `json:"kind"`
	Items         []LineItem      `json:"items"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	CustomerID    string          `json:"customerId,omitempty"`
	CustomerName  string          `json:"customerName,omitempty"`
}

// IsDebtPayment reports whether the record is a debt repayment rather than
// a goods sale. The kind tag is authoritative; the sentinel line item is
// checked as a fallback for documents written before the tag existed.
func (t Transaction) IsDebtPayment() bool {
	if t.Kind != "" {
		return t.Kind == KindDebtPayment
	}
	for _, item := range t.Items {
		if item.ProductID == DebtPaymentProductID {
			return true
		}
	}
	return false
}
