package series

import "gonum.org/v1/gonum/interp"

// MinCubicKnots is the number of present samples a channel needs before the
// cubic path is used. Channels with fewer samples are filled linearly.
const MinCubicKnots = 4

// Interpolate fills null cells per channel with a monotone piecewise-cubic
// Hermite curve (Fritsch-Butland slopes) through the present samples. It
// never extrapolates: cells before the first or after the last present
// sample are zero-filled.
func Interpolate(s *Series) *Series {
	sorted := s.Sorted()
	n := sorted.Len()
	out := sorted.Clone()
	if n == 0 {
		return out
	}

	xs := make([]float64, n)
	origin := sorted.points[0].Time
	for i, p := range sorted.points {
		xs[i] = p.Time.Sub(origin).Seconds()
	}

	for j, c := range sorted.columns {
		col := make([]Value, n)
		for i := range sorted.points {
			col[i] = sorted.points[i].Values[j]
		}
		filled := interpolateColumn(xs, col)
		fillColumn(filled, c, ZeroFill)
		for i := range out.points {
			out.points[i].Values[j] = filled[i]
		}
	}
	return out
}

func interpolateColumn(xs []float64, col []Value) []Value {
	var kx, ky []float64
	for i, v := range col {
		if v.Valid {
			kx = append(kx, xs[i])
			ky = append(ky, v.V)
		}
	}

	out := append([]Value(nil), col...)
	if len(kx) < 2 {
		return out
	}

	var pred interp.Predictor
	if len(kx) < MinCubicKnots {
		var pl interp.PiecewiseLinear
		if err := pl.Fit(kx, ky); err != nil {
			return out
		}
		pred = &pl
	} else {
		var fb interp.FritschButland
		if err := fb.Fit(kx, ky); err != nil {
			return out
		}
		pred = &fb
	}

	lo, hi := kx[0], kx[len(kx)-1]
	for i, v := range col {
		if v.Valid || xs[i] < lo || xs[i] > hi {
			continue
		}
		out[i] = Some(pred.Predict(xs[i]))
	}
	return out
}
