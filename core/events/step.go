package events

import (
	"time"

	"github.com/kilianp07/peakmpc/core/model"
)

// StepEvent is published after each realised step.
type StepEvent struct {
	Episode    string
	Row        model.OperationRow
	SolveTime  time.Duration
	Iterations int
	Objective  float64
}
