package dto

import (
	"github.com/hanoutiya/hanoutiya-core/internal/models"
	"github.com/shopspring/decimal"
)

// CreateProductRequest is the payload for adding a product.
type CreateProductRequest struct {
	Name         string          `json:"name" binding:"required"`
	Barcode      string          `json:"barcode"`
	Stock        int64           `json:"stock" binding:"gte=0"`
	CostPrice    decimal.Decimal `json:"costPrice"`
	SellingPrice decimal.Decimal `json:"sellingPrice"`
}

// ToModel maps the request onto the domain entity.
func (r CreateProductRequest) ToModel() models.Product {
	return models.Product{
		Name:         r.Name,
		Barcode:      r.Barcode,
		Stock:        r.Stock,
		CostPrice:    r.CostPrice,
		SellingPrice: r.SellingPrice,
	}
}

// UpdateProductRequest is a partial-field merge; absent fields stay
// untouched.
type UpdateProductRequest struct {
	Name         *string          `json:"name"`
	Barcode      *string          `json:"barcode"`
	Stock        *int64           `json:"stock" binding:"omitempty,gte=0"`
	CostPrice    *decimal.Decimal `json:"costPrice"`
	SellingPrice *decimal.Decimal `json:"sellingPrice"`
}

// ToPatch maps the request onto the typed patch.
func (r UpdateProductRequest) ToPatch() models.ProductPatch {
	return models.ProductPatch{
		Name:         r.Name,
		Barcode:      r.Barcode,
		Stock:        r.Stock,
		CostPrice:    r.CostPrice,
		SellingPrice: r.SellingPrice,
	}
}

// StockAdjustmentRequest is a batch of signed stock deltas applied
// atomically.
type StockAdjustmentRequest struct {
	Deltas []StockDeltaRequest `json:"deltas" binding:"required,min=1,dive"`
}

// StockDeltaRequest is one line of a stock adjustment.
type StockDeltaRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required"`
}

// ToModel maps the batch onto domain deltas.
func (r StockAdjustmentRequest) ToModel() []models.StockDelta {
	deltas := make([]models.StockDelta, 0, len(r.Deltas))
	for _, d := range r.Deltas {
		deltas = append(deltas, models.StockDelta{ProductID: d.ProductID, Quantity: d.Quantity})
	}
	return deltas
}

// CollectionResponse wraps a live snapshot with its loading flag for
// consumers that poll instead of subscribing.
type CollectionResponse[T any] struct {
	Data    []T  `json:"data"`
	Loading bool `json:"loading"`
}
