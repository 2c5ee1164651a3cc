package series

// FillPolicy resolves a cell after a pipeline boundary. Present cells are
// normally returned unchanged.
type FillPolicy func(c Channel, v Value) Value

// ZeroFill replaces every absent cell with 0. It is the default policy at
// each boundary; a zero produced here cannot be told apart from a measured zero.
func ZeroFill(_ Channel, v Value) Value {
	if v.Valid {
		return v
	}
	return Some(0)
}

// KeepNull leaves absent cells absent.
func KeepNull(_ Channel, v Value) Value {
	return v
}

// ConstantFill replaces absent cells with x.
func ConstantFill(x float64) FillPolicy {
	return func(_ Channel, v Value) Value {
		if v.Valid {
			return v
		}
		return Some(x)
	}
}

// Fill applies p to every cell and returns a new series.
func Fill(s *Series, p FillPolicy) *Series {
	out := s.Clone()
	for i := range out.points {
		for j, c := range out.columns {
			out.points[i].Values[j] = p(c, out.points[i].Values[j])
		}
	}
	return out
}

func fillColumn(vals []Value, c Channel, p FillPolicy) {
	for i := range vals {
		vals[i] = p(c, vals[i])
	}
}
