package dto

import (
	"github.com/hanoutiya/hanoutiya-core/internal/models"
	"github.com/shopspring/decimal"
)

// StoreSettingsRequest writes the singleton configuration document whole.
type StoreSettingsRequest struct {
	StoreName        string          `json:"storeName" binding:"required"`
	InitialCash      decimal.Decimal `json:"initialCash"`
	InitialSetupDone bool            `json:"initialSetupDone"`
}

// ToModel maps the request onto the settings document.
func (r StoreSettingsRequest) ToModel() models.StoreSettings {
	return models.StoreSettings{
		StoreName:        r.StoreName,
		InitialCash:      r.InitialCash,
		InitialSetupDone: r.InitialSetupDone,
	}
}
