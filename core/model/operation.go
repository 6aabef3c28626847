package model

import (
	"math"
	"time"
)

// StepDecision is the solver output for the first actionable step of a horizon.
type StepDecision struct {
	NetLoad float64 `json:"net_load"`
	Charge  float64 `json:"bss_p_ch"` // positive charges, negative discharges
	Energy  float64 `json:"bss_en"`

	// CommittedCharge is the charge solved for index 0 of the same horizon.
	CommittedCharge float64 `json:"-"`
	Objective       float64 `json:"-"`
	Iterations      int     `json:"-"`
}

// OperationRow is one realised step of an episode.
type OperationRow struct {
	Step       int       `json:"step"`
	Time       time.Time `json:"time"`
	NetLoad    float64   `json:"net_load"`
	Charge     float64   `json:"bss_p_ch"`
	Energy     float64   `json:"bss_en"`
	Load       float64   `json:"load"`
	OprNetLoad float64   `json:"opr_net_load"`
	Peak       float64   `json:"peak"`
	Forecast   float64   `json:"forecast"`
}

// OperationRecord is the ordered trace of an episode.
type OperationRecord []OperationRow

// Len returns the number of realised steps.
func (r OperationRecord) Len() int { return len(r) }

// MaxNetLoad returns the highest realised net load, or -Inf for an empty record.
func (r OperationRecord) MaxNetLoad() float64 {
	m := math.Inf(-1)
	for _, row := range r {
		if row.OprNetLoad > m {
			m = row.OprNetLoad
		}
	}
	return m
}
