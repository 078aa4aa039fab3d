package models

import "github.com/shopspring/decimal"

// Product is a shelf item mirrored from the products collection.
// Stock is an integer count kept consistent by the ledger layer when sales
// and purchases move goods.
type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Barcode      string          `json:"barcode,omitempty"`
	Stock        int64           `json:"stock"`
	CostPrice    decimal.Decimal `json:"costPrice"`
	SellingPrice decimal.Decimal `json:"sellingPrice"`
}

// ProductPatch is a partial-field merge against a Product. Nil fields are
// left untouched, both locally and in the remote document.
type ProductPatch struct {
	Name         *string
	Barcode      *string
	Stock        *int64
	CostPrice    *decimal.Decimal
	SellingPrice *decimal.Decimal
}

// Apply returns p with the non-nil patch fields merged in.
func (pp ProductPatch) Apply(p Product) Product {
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.Barcode != nil {
		p.Barcode = *pp.Barcode
	}
	if pp.Stock != nil {
		p.Stock = *pp.Stock
	}
	if pp.CostPrice != nil {
		p.CostPrice = *pp.CostPrice
	}
	if pp.SellingPrice != nil {
		p.SellingPrice = *pp.SellingPrice
	}
	return p
}

// Changes returns the patch as the partial document sent to the store.
func (pp ProductPatch) Changes() map[string]any {
	m := map[string]any{}
	if pp.Name != nil {
		m["name"] = *pp.Name
	}
	if pp.Barcode != nil {
		m["barcode"] = *pp.Barcode
	}
	if pp.Stock != nil {
		m["stock"] = *pp.Stock
	}
	if pp.CostPrice != nil {
		m["costPrice"] = *pp.CostPrice
	}
	if pp.SellingPrice != nil {
		m["sellingPrice"] = *pp.SellingPrice
	}
	return m
}

// StockDelta is one line of a stock adjustment: a signed quantity change
// for a single product. Sales pass negative quantities, purchases positive.
type StockDelta struct {
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
}
