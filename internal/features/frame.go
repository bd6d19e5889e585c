package features

import (
	"fmt"
	"math"
	"time"
)

// Frame is a column-ordered table of derived features, one row per candle.
// It is the in-memory form of the transformed CSV.
type Frame struct {
	Timestamps []time.Time
	Columns    []string
	Rows       [][]float64 // len(Rows) == len(Timestamps); each row len(Columns)
}

// ColIndex returns the position of a column, or an error if absent.
func (f *Frame) ColIndex(name string) (int, error) {
	for i, c := range f.Columns {
		if c == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("column %q not found", name)
}

// Col returns the values of a column.
func (f *Frame) Col(name string) ([]float64, error) {
	idx, err := f.ColIndex(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// DropNaN removes every row containing a non-finite value in any column.
func (f *Frame) DropNaN() *Frame {
	return f.dropNaN(nil)
}

// DropNaNExcept removes rows with non-finite values, ignoring the listed
// columns. The realtime predictor uses it to keep the newest row, whose
// future-close target is necessarily unknown.
func (f *Frame) DropNaNExcept(ignore ...string) *Frame {
	skip := make(map[string]bool, len(ignore))
	for _, c := range ignore {
		skip[c] = true
	}
	return f.dropNaN(skip)
}

func (f *Frame) dropNaN(skip map[string]bool) *Frame {
	out := &Frame{Columns: f.Columns}
	for i, row := range f.Rows {
		ok := true
		for j, v := range row {
			if skip[f.Columns[j]] {
				continue
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				ok = false
				break
			}
		}
		if ok {
			out.Timestamps = append(out.Timestamps, f.Timestamps[i])
			out.Rows = append(out.Rows, append([]float64(nil), row...))
		}
	}
	return out
}
