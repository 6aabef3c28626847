package model

import "time"

// Point is a single timestamped value.
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Series is an ordered sequence of points.
type Series []Point

// Values returns the values of the series in order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Index maps each timestamp to its value. Later duplicates win.
func (s Series) Index() map[int64]float64 {
	idx := make(map[int64]float64, len(s))
	for _, p := range s {
		idx[p.Time.UnixNano()] = p.Value
	}
	return idx
}
