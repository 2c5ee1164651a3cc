package series

type joinConfig struct {
	fill FillPolicy
}

// JoinOption customises Join.
type JoinOption func(*joinConfig)

// WithFillPolicy replaces the post-join fill policy. The default is ZeroFill.
func WithFillPolicy(p FillPolicy) JoinOption {
	return func(c *joinConfig) {
		if p != nil {
			c.fill = p
		}
	}
}

// Join left-joins target onto reference by timestamp. The result has exactly
// one row per reference row, in reference order. Target rows at timestamps
// the reference does not carry are dropped. Columns follow FeatureColumns
// order; a channel carried by both inputs takes the reference value.
func Join(reference, target *Series, opts ...JoinOption) *Series {
	cfg := joinConfig{fill: ZeroFill}
	for _, opt := range opts {
		opt(&cfg)
	}

	var cols []Channel
	for _, c := range FeatureColumns {
		if reference.Has(c) || target.Has(c) {
			cols = append(cols, c)
		}
	}

	out := New(cols...)
	for i, p := range reference.points {
		ti, matched := target.Lookup(p.Time)
		row := make([]Value, len(cols))
		for k, c := range cols {
			v := Null()
			if reference.Has(c) {
				v = reference.Value(i, c)
			} else if matched {
				v = target.Value(ti, c)
			}
			row[k] = cfg.fill(c, v)
		}
		out.rowPos[p.Time.UnixNano()] = len(out.points)
		out.points = append(out.points, Point{Time: p.Time, Values: row})
	}
	return out
}
