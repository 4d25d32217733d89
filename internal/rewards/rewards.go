// Package rewards turns a collected weight into user points and driver pay
// using the pricing stored in the settings document.
package rewards

import (
	"errors"
	"fmt"
	"math"

	"ecotrack-api-server/internal/models"
)

var (
	ErrInvalidWeight    = errors.New("rewards: weight must be a positive number")
	ErrWeightTooHigh    = errors.New("rewards: weight exceeds the allowed maximum")
	ErrUnknownWasteType = errors.New("rewards: no pricing for waste type")
	ErrPointsOverflow   = errors.New("rewards: points out of range")
)

type Reward struct {
	WasteType     models.WasteType `json:"wasteType"`
	WeightKg      float64          `json:"weightKg"`
	Points        int64            `json:"points"`
	DriverEarning float64          `json:"driverEarning"`
}

// Calculate prices a completed pickup.
//
//	points        = round(weight * pointsPerKg)
//	driverEarning = round2(pickupBaseFee + weight * driverRatePerKg)
func Calculate(s models.Settings, wasteType models.WasteType, weightKg float64) (Reward, error) {
	rate, err := lookup(s, wasteType, weightKg)
	if err != nil {
		return Reward{}, err
	}
	points, err := toPoints(weightKg * rate.PointsPerKg)
	if err != nil {
		return Reward{}, err
	}
	return Reward{
		WasteType:     wasteType,
		WeightKg:      weightKg,
		Points:        points,
		DriverEarning: roundCents(s.PickupBaseFee + weightKg*rate.DriverRatePerKg),
	}, nil
}

// Points prices a self-logged recycling record; no driver is paid.
func Points(s models.Settings, wasteType models.WasteType, weightKg float64) (int64, error) {
	rate, err := lookup(s, wasteType, weightKg)
	if err != nil {
		return 0, err
	}
	return toPoints(weightKg * rate.PointsPerKg)
}

// ValidateWeight checks a weight against the configured maximum.
func ValidateWeight(s models.Settings, weightKg float64) error {
	if math.IsNaN(weightKg) || math.IsInf(weightKg, 0) || weightKg <= 0 {
		return ErrInvalidWeight
	}
	if s.MaxPickupWeightKg > 0 && weightKg > s.MaxPickupWeightKg {
		return fmt.Errorf("%w (%.2f kg)", ErrWeightTooHigh, s.MaxPickupWeightKg)
	}
	return nil
}

func lookup(s models.Settings, wasteType models.WasteType, weightKg float64) (models.Rate, error) {
	if err := ValidateWeight(s, weightKg); err != nil {
		return models.Rate{}, err
	}
	rate, ok := s.Pricing[wasteType]
	if !ok {
		return models.Rate{}, fmt.Errorf("%w %q", ErrUnknownWasteType, wasteType)
	}
	return rate, nil
}

// maxPoints keeps a single award far below the int64 limit so user totals
// can still grow.
const maxPoints = 1 << 50

func toPoints(v float64) (int64, error) {
	p := math.Round(v)
	if math.IsNaN(p) || p < 0 || p > maxPoints {
		return 0, ErrPointsOverflow
	}
	return int64(p), nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
