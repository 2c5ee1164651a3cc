package weather

import (
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/i474232898/pv-feature-pipeline/internal/series"
)

// AggregateHourly combines the hourly records of several providers into one
// record per timestamp. Each channel is the mean of the providers that
// reported it; a channel no provider reported stays null.
func AggregateHourly(perProvider ...[]Record) []Record {
	type slot struct {
		t    time.Time
		vals map[series.Channel][]float64
	}
	slots := make(map[int64]*slot)

	for _, records := range perProvider {
		for _, r := range records {
			key := r.Time.UnixNano()
			sl, ok := slots[key]
			if !ok {
				sl = &slot{t: r.Time, vals: make(map[series.Channel][]float64)}
				slots[key] = sl
			}
			for c, v := range r.Values {
				if v.Valid {
					sl.vals[c] = append(sl.vals[c], v.V)
				}
			}
		}
	}

	out := make([]Record, 0, len(slots))
	for _, sl := range slots {
		rec := NewRecord(sl.t)
		for c, vals := range sl.vals {
			mean, err := stats.Mean(vals)
			if err != nil {
				continue
			}
			rec.Values[c] = series.Some(mean)
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	return out
}
