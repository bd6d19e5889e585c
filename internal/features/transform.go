package features

import (
	"fmt"
	"math"
	"time"

	"github.com/indicador-preditivo/preditor/internal/model"
)

// MAPeriods are the moving-average periods computed for every dataset.
var MAPeriods = []int{5, 10, 20, 50, 100, 200}

const (
	srWindow  = 20 // support/resistance lookback
	rsiPeriod = 14
	volWindow = 10 // rolling std window for volatility
	TargetCol = "fechamento_futuro"
	rsiCol    = "RSI_14"
)

// Columns returns the transformed column set in output order.
func Columns() []string {
	cols := []string{"abertura", "maxima", "minima", "fechamento", "volume",
		"pressao_compradora", "pressao_vendedora"}
	for _, p := range MAPeriods {
		cols = append(cols, fmt.Sprintf("SMA_%d", p), fmt.Sprintf("EMA_%d", p))
	}
	cols = append(cols,
		"resistencia", "suporte", "dist_resistencia", "dist_suporte",
		"var_fechamento", rsiCol, "vol_media_5", "vol_media_20",
		TargetCol, "hora_num", "minuto", "dia_semana", "retorno", "volatilidade")
	return cols
}

// Transform derives the full feature set from a chronological candle series.
// Rows that end up with non-finite values (the first diff row, the last row
// whose target is unknown) are kept; callers drop them as appropriate.
func Transform(candles []model.Candle) (*Frame, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles to transform")
	}

	n := len(candles)
	open := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	closePx := make([]float64, n)
	volume := make([]float64, n)
	for i, c := range candles {
		open[i], high[i], low[i], closePx[i], volume[i] = c.Open, c.High, c.Low, c.Close, c.Volume
	}

	series := map[string][]float64{
		"abertura":   open,
		"maxima":     high,
		"minima":     low,
		"fechamento": closePx,
		"volume":     volume,
	}

	// Buy and sell pressure
	buyP := make([]float64, n)
	sellP := make([]float64, n)
	for i := range candles {
		buyP[i] = high[i] - closePx[i]
		sellP[i] = closePx[i] - low[i]
	}
	series["pressao_compradora"] = buyP
	series["pressao_vendedora"] = sellP

	// Simple and exponential moving averages
	for _, p := range MAPeriods {
		series[fmt.Sprintf("SMA_%d", p)] = rollingMean(closePx, p)
		series[fmt.Sprintf("EMA_%d", p)] = ewm(closePx, p)
	}

	// Support, resistance and distances to them
	resistance := rollingMax(high, srWindow)
	support := rollingMin(low, srWindow)
	distRes := make([]float64, n)
	distSup := make([]float64, n)
	for i := range candles {
		distRes[i] = resistance[i] - closePx[i]
		distSup[i] = closePx[i] - support[i]
	}
	series["resistencia"] = resistance
	series["suporte"] = support
	series["dist_resistencia"] = distRes
	series["dist_suporte"] = distSup

	// Close-to-close change
	varClose := diff(closePx)
	series["var_fechamento"] = varClose

	// RSI over rolling mean of up/down moves
	series[rsiCol] = rsi(closePx, rsiPeriod)

	// Average volumes
	series["vol_media_5"] = rollingMean(volume, 5)
	series["vol_media_20"] = rollingMean(volume, 20)

	// Regression target: next close
	target := make([]float64, n)
	for i := 0; i < n-1; i++ {
		target[i] = closePx[i+1]
	}
	target[n-1] = math.NaN()
	series[TargetCol] = target

	// Time-of-day features (UTC)
	hour := make([]float64, n)
	minute := make([]float64, n)
	weekday := make([]float64, n)
	for i, c := range candles {
		t := c.From.UTC()
		hour[i] = float64(t.Hour())
		minute[i] = float64(t.Minute())
		weekday[i] = float64((int(t.Weekday()) + 6) % 7) // Monday = 0
	}
	series["hora_num"] = hour
	series["minuto"] = minute
	series["dia_semana"] = weekday

	// Percentage return and its rolling volatility
	ret := make([]float64, n)
	for i := 1; i < n; i++ {
		if closePx[i-1] != 0 {
			ret[i] = (closePx[i] - closePx[i-1]) / closePx[i-1]
		}
	}
	series["retorno"] = ret
	vol := rollingStd(ret, volWindow)
	for i := range vol {
		if math.IsNaN(vol[i]) {
			vol[i] = 0
		}
	}
	series["volatilidade"] = vol

	cols := Columns()
	frame := &Frame{Columns: cols, Timestamps: make([]time.Time, n), Rows: make([][]float64, n)}
	for i, c := range candles {
		frame.Timestamps[i] = c.From.UTC()
		row := make([]float64, len(cols))
		for j, name := range cols {
			row[j] = series[name][i]
		}
		frame.Rows[i] = row
	}
	return frame, nil
}

func diff(vals []float64) []float64 {
	out := make([]float64, len(vals))
	if len(vals) > 0 {
		out[0] = math.NaN()
	}
	for i := 1; i < len(vals); i++ {
		out[i] = vals[i] - vals[i-1]
	}
	return out
}

// rsi reproduces the batch scripts' rolling-mean RSI: up/down moves averaged
// over the period window, not Wilder smoothing. The first row has no price
// change and stays NaN.
func rsi(closePx []float64, period int) []float64 {
	delta := diff(closePx)
	up := make([]float64, len(delta))
	down := make([]float64, len(delta))
	for i, d := range delta {
		if math.IsNaN(d) {
			up[i], down[i] = math.NaN(), math.NaN()
			continue
		}
		if d > 0 {
			up[i] = d
		}
		if d < 0 {
			down[i] = -d
		}
	}
	rollUp := rollingMean(up, period)
	rollDown := rollingMean(down, period)
	out := make([]float64, len(closePx))
	for i := range out {
		rs := rollUp[i] / rollDown[i]
		out[i] = 100 - 100/(1+rs)
	}
	return out
}
