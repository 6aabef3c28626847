package model

import (
	"fmt"
	"math"
)

// Params holds the static battery and tariff settings of a run.
type Params struct {
	BatSizeKWh      float64 `json:"bat_size_kwh"`       // battery capacity in kWh
	BatEfficiency   float64 `json:"bat_efficiency"`     // round-trip efficiency in (0,1]
	BatMaxPower     float64 `json:"bat_max_power"`      // max charge/discharge power in kW
	BatEndSoCWeight float64 `json:"bat_end_soc_weight"` // terminal state of charge weight
	PeakCost        float64 `json:"peak_cost"`          // currency per kW of peak
	PeakInit        float64 `json:"peak_init"`          // running peak at episode start
	BatInitialSoC   float64 `json:"bat_initial_soc"`    // state of charge fraction at episode start
}

// InitialEnergy returns the energy stored in the battery at episode start.
func (p Params) InitialEnergy() float64 {
	return p.BatSizeKWh * p.BatInitialSoC
}

// Validate checks every field against its admissible range.
func (p Params) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"bat_size_kwh", p.BatSizeKWh},
		{"bat_efficiency", p.BatEfficiency},
		{"bat_max_power", p.BatMaxPower},
		{"bat_end_soc_weight", p.BatEndSoCWeight},
		{"peak_cost", p.PeakCost},
		{"peak_init", p.PeakInit},
		{"bat_initial_soc", p.BatInitialSoC},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s must be finite, got %v", f.name, f.v)
		}
	}
	if p.BatSizeKWh < 0 {
		return fmt.Errorf("bat_size_kwh must be >= 0, got %v", p.BatSizeKWh)
	}
	if p.BatEfficiency <= 0 || p.BatEfficiency > 1 {
		return fmt.Errorf("bat_efficiency must be in (0,1], got %v", p.BatEfficiency)
	}
	if p.BatMaxPower < 0 {
		return fmt.Errorf("bat_max_power must be >= 0, got %v", p.BatMaxPower)
	}
	if p.BatEndSoCWeight < 0 {
		return fmt.Errorf("bat_end_soc_weight must be >= 0, got %v", p.BatEndSoCWeight)
	}
	if p.PeakCost <= 0 {
		return fmt.Errorf("peak_cost must be > 0, got %v", p.PeakCost)
	}
	if p.PeakInit < 0 {
		return fmt.Errorf("peak_init must be >= 0, got %v", p.PeakInit)
	}
	if p.BatInitialSoC < 0 || p.BatInitialSoC > 1 {
		return fmt.Errorf("bat_initial_soc must be in [0,1], got %v", p.BatInitialSoC)
	}
	return nil
}
