package models

import "time"

// GlobalSettingsKey is the key of the single settings document.
const GlobalSettingsKey = "global"

// Rate is the pricing applied to one waste type.
type Rate struct {
	PointsPerKg     float64 `bson:"pointsPerKg" json:"pointsPerKg"`
	DriverRatePerKg float64 `bson:"driverRatePerKg" json:"driverRatePerKg"`
}

type Settings struct {
	Key               string             `bson:"key" json:"key"`
	Pricing           map[WasteType]Rate `bson:"pricing" json:"pricing"`
	PickupBaseFee     float64            `bson:"pickupBaseFee" json:"pickupBaseFee"`
	MaxPickupWeightKg float64            `bson:"maxPickupWeightKg" json:"maxPickupWeightKg"`
	Currency          string             `bson:"currency" json:"currency"`
	UpdatedBy         string             `bson:"updatedBy,omitempty" json:"updatedBy,omitempty"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// DefaultSettings is served until an admin saves the first settings document.
func DefaultSettings() Settings {
	return Settings{
		Key: GlobalSettingsKey,
		Pricing: map[WasteType]Rate{
			WastePlastic:    {PointsPerKg: 10, DriverRatePerKg: 0.50},
			WastePaper:      {PointsPerKg: 5, DriverRatePerKg: 0.30},
			WasteGlass:      {PointsPerKg: 4, DriverRatePerKg: 0.25},
			WasteMetal:      {PointsPerKg: 15, DriverRatePerKg: 0.80},
			WasteOrganic:    {PointsPerKg: 2, DriverRatePerKg: 0.20},
			WasteElectronic: {PointsPerKg: 25, DriverRatePerKg: 1.50},
		},
		PickupBaseFee:     2.00,
		MaxPickupWeightKg: 500,
		Currency:          "USD",
	}
}
