// Package export writes scenario traces as CSV or JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/peakmpc/core/model"
	"github.com/kilianp07/peakmpc/core/scenario"
)

var valueColumns = []string{"net_load", "bss_p_ch", "bss_en", "load", "opr_net_load", "peak", "forecast"}

// Header returns the CSV header: step and time, the model run columns, then
// the baseline run columns prefixed with gt_.
func Header() []string {
	h := make([]string, 0, 2+2*len(valueColumns))
	h = append(h, "step", "time")
	h = append(h, valueColumns...)
	for _, c := range valueColumns {
		h = append(h, "gt_"+c)
	}
	return h
}

// WriteTraceCSV writes the joined trace to w in CSV format.
func WriteTraceCSV(w io.Writer, trace []scenario.TraceRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return err
	}
	for _, r := range trace {
		rec := make([]string, 0, 2+2*len(valueColumns))
		rec = append(rec, strconv.Itoa(r.Step), r.Time.Format(time.RFC3339))
		rec = appendValues(rec, r.Model)
		rec = appendValues(rec, r.Baseline)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func appendValues(rec []string, row model.OperationRow) []string {
	for _, v := range []float64{row.NetLoad, row.Charge, row.Energy, row.Load, row.OprNetLoad, row.Peak, row.Forecast} {
		rec = append(rec, strconv.FormatFloat(v, 'f', -1, 64))
	}
	return rec
}

type jsonRow struct {
	Step     int                `json:"step"`
	Time     time.Time          `json:"time"`
	Model    model.OperationRow `json:"model"`
	Baseline model.OperationRow `json:"baseline"`
}

// WriteTraceJSON writes the joined trace to w as a JSON array.
func WriteTraceJSON(w io.Writer, trace []scenario.TraceRow) error {
	rows := make([]jsonRow, len(trace))
	for i, r := range trace {
		rows[i] = jsonRow{Step: r.Step, Time: r.Time, Model: r.Model, Baseline: r.Baseline}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}
