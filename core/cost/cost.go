// Package cost scores a completed operation trace.
package cost

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/peakmpc/core/model"
)

// ErrEmptyRecord is returned when there is nothing to score.
var ErrEmptyRecord = errors.New("empty operation record")

// Costs is the ex-post evaluation of an episode.
type Costs struct {
	Total       float64 `json:"total_cost"`
	PeakNetLoad float64 `json:"peak_net_load"`
	// Throughput is the absolute energy moved through the battery. It is
	// reported for diagnostics and does not enter Total.
	Throughput float64 `json:"throughput"`
}

// Evaluate returns the peak-demand charge of rec: the highest realised net
// load times the peak cost.
func Evaluate(rec model.OperationRecord, p model.Params) (Costs, error) {
	if len(rec) == 0 {
		return Costs{}, ErrEmptyRecord
	}
	net := make([]float64, len(rec))
	var through float64
	for i, row := range rec {
		net[i] = row.OprNetLoad
		through += math.Abs(row.Charge)
	}
	peak := floats.Max(net)
	return Costs{Total: peak * p.PeakCost, PeakNetLoad: peak, Throughput: through}, nil
}
