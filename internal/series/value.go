package series

import (
	"encoding/json"
	"math"
)

// Value is a single optional cell.
type Value struct {
	V     float64
	Valid bool
}

// Some wraps a present value. NaN and infinities are treated as absent.
func Some(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{}
	}
	return Value{V: v, Valid: true}
}

// Null returns an absent cell.
func Null() Value {
	return Value{}
}

// Ptr converts an optional pointer into a Value.
func Ptr(p *float64) Value {
	if p == nil {
		return Value{}
	}
	return Some(*p)
}

// Or returns the value, or def when absent.
func (v Value) Or(def float64) float64 {
	if !v.Valid {
		return def
	}
	return v.V
}

// MarshalJSON renders absent cells as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.V)
}

// UnmarshalJSON accepts a number or null.
func (v *Value) UnmarshalJSON(b []byte) error {
	var p *float64
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*v = Ptr(p)
	return nil
}
