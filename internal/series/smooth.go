package series

import (
	"fmt"

	"github.com/montanaflynn/stats"
)

// Smooth replaces column c with its centered simple moving average over
// window rows. Rows closer than window/2 to either end, and windows that
// contain a null, become null and are then zero-filled.
func Smooth(s *Series, c Channel, window int) (*Series, error) {
	if window <= 0 || window%2 == 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindow, window)
	}
	col, err := s.Column(c)
	if err != nil {
		return nil, err
	}

	half := window / 2
	n := len(col)
	out := make([]Value, n)
	buf := make([]float64, 0, window)
	for i := half; i < n-half; i++ {
		buf = buf[:0]
		for _, v := range col[i-half : i+half+1] {
			if !v.Valid {
				break
			}
			buf = append(buf, v.V)
		}
		if len(buf) != window {
			continue
		}
		mean, err := stats.Mean(buf)
		if err != nil {
			continue
		}
		out[i] = Some(mean)
	}
	fillColumn(out, c, ZeroFill)
	return s.withColumn(c, out), nil
}

// SmoothAll applies Smooth to each channel in turn.
func SmoothAll(s *Series, window int, cols ...Channel) (*Series, error) {
	out := s
	for _, c := range cols {
		next, err := Smooth(out, c, window)
		if err != nil {
			return nil, err
		}
		out = next
	}
	return out, nil
}
