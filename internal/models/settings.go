package models

import "github.com/shopspring/decimal"

// SettingsCollection and SettingsDocID locate the singleton configuration
// document.
const (
	SettingsCollection = "config"
	SettingsDocID      = "store"
)

// StoreSettings is the singleton configuration document. It is created once
// during onboarding, mutated thereafter, and only rewritten to its pristine
// state by a full reset.
type StoreSettings struct {
	StoreName        string          `json:"storeName"`
	InitialCash      decimal.Decimal `json:"initialCash"`
	InitialSetupDone bool            `json:"initialSetupDone"`
}

// PristineSettings is what a reset writes back: the not-yet-onboarded state.
func PristineSettings() StoreSettings {
	return StoreSettings{
		StoreName:        "",
		InitialCash:      decimal.Zero,
		InitialSetupDone: false,
	}
}
