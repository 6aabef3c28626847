package cost

import (
	"errors"
	"testing"

	"github.com/kilianp07/peakmpc/core/model"
)

func TestEvaluate(t *testing.T) {
	rec := model.OperationRecord{
		{OprNetLoad: 9, Charge: -2},
		{OprNetLoad: 11, Charge: 1},
		{OprNetLoad: 7, Charge: 0.5},
	}
	c, err := Evaluate(rec, model.Params{PeakCost: 2})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if c.Total != 22 || c.PeakNetLoad != 11 {
		t.Fatalf("unexpected costs %+v", c)
	}
	if c.Throughput != 3.5 {
		t.Fatalf("expected throughput 3.5 got %v", c.Throughput)
	}
}

func TestEvaluate_ScalesWithPeakCost(t *testing.T) {
	rec := model.OperationRecord{{OprNetLoad: 4.5}, {OprNetLoad: 6.25}}
	base, err := Evaluate(rec, model.Params{PeakCost: 1.5})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	for _, k := range []float64{0.5, 2, 10} {
		c, err := Evaluate(rec, model.Params{PeakCost: 1.5 * k})
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if diff := c.Total - k*base.Total; diff > 1e-12 || diff < -1e-12 {
			t.Fatalf("k=%v: total %v want %v", k, c.Total, k*base.Total)
		}
	}
}

func TestEvaluate_Empty(t *testing.T) {
	if _, err := Evaluate(nil, model.Params{PeakCost: 1}); !errors.Is(err, ErrEmptyRecord) {
		t.Fatalf("expected ErrEmptyRecord got %v", err)
	}
}
