package weather

import (
	"encoding/json"
	"time"

	"github.com/i474232898/pv-feature-pipeline/internal/series"
)

// Flatten turns a decoded JSON object into a flat map of numeric leaves.
// Nested objects are joined with underscores, so {"wind": {"speed": 3}}
// becomes {"wind_speed": 3}. Strings, booleans, arrays and nulls are dropped.
func Flatten(doc map[string]any) map[string]float64 {
	out := make(map[string]float64, len(doc))
	flattenInto(out, "", doc)
	return out
}

func flattenInto(out map[string]float64, prefix string, doc map[string]any) {
	for k, v := range doc {
		key := k
		if prefix != "" {
			key = prefix + "_" + k
		}
		switch x := v.(type) {
		case map[string]any:
			flattenInto(out, key, x)
		case float64:
			out[key] = x
		case json.Number:
			if f, err := x.Float64(); err == nil {
				out[key] = f
			}
		}
	}
}

// Field binds a flattened payload key to a channel. Scale defaults to 1.
type Field struct {
	Key     string
	Channel series.Channel
	Scale   float64
}

// Bind builds a record from one flattened entry. Keys bound to the same
// channel are summed; a channel with no present key stays null.
func Bind(t time.Time, flat map[string]float64, fields []Field) Record {
	rec := NewRecord(t)
	for _, f := range fields {
		v, ok := flat[f.Key]
		if !ok {
			continue
		}
		scale := f.Scale
		if scale == 0 {
			scale = 1
		}
		v *= scale
		if prev := rec.Values[f.Channel]; prev.Valid {
			v += prev.V
		}
		rec.Values[f.Channel] = series.Some(v)
	}
	return rec
}
