package weather

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/i474232898/pv-feature-pipeline/internal/series"
)

// Location identifies the site a forecast is requested for.
// Lat/Lon are required by providers; City/Country are only used to resolve
// them when they are not configured.
type Location struct {
	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
	Timezone string   `json:"timezone"`
	City     string   `json:"city,omitempty"`
	Country  string   `json:"country,omitempty"`
}

// HasCoordinates reports whether both coordinates are set.
func (l Location) HasCoordinates() bool {
	return l.Lat != nil && l.Lon != nil
}

// Key returns a canonical string key for caching forecasts of this location.
func (l Location) Key() string {
	if l.HasCoordinates() {
		return fmt.Sprintf("%.4f:%.4f:%s", *l.Lat, *l.Lon, l.Timezone)
	}
	return l.City + ":" + l.Country + ":" + l.Timezone
}

// TimeLocation loads the IANA zone of the location. An empty zone is UTC.
func (l Location) TimeLocation() (*time.Location, error) {
	if l.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(l.Timezone)
}

// Request asks a provider for the hourly entries of a location. From and To
// are optional hints; providers that cannot honour them return their default
// horizon and the caller clips.
type Request struct {
	Location Location
	From     time.Time
	To       time.Time
}

// Record is one hourly forecast entry. Values only ever holds weather channels.
type Record struct {
	Time   time.Time
	Values map[series.Channel]series.Value
}

// NewRecord returns an empty record at t.
func NewRecord(t time.Time) Record {
	return Record{Time: t, Values: make(map[series.Channel]series.Value, len(series.WeatherChannels))}
}

// Get returns the cell for c, null when absent.
func (r Record) Get(c series.Channel) series.Value {
	return r.Values[c]
}

type recordJSON struct {
	Time   time.Time           `json:"time"`
	Values map[string]*float64 `json:"values"`
}

// MarshalJSON encodes values by channel name.
func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{Time: r.Time, Values: make(map[string]*float64, len(r.Values))}
	for c, v := range r.Values {
		if v.Valid {
			x := v.V
			out.Values[c.String()] = &x
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the MarshalJSON form.
func (r *Record) UnmarshalJSON(b []byte) error {
	var in recordJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	rec := NewRecord(in.Time)
	for name, v := range in.Values {
		c, err := series.ParseChannel(name)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		rec.Values[c] = series.Ptr(v)
	}
	*r = rec
	return nil
}

// ToSeries converts hourly records into a series over the weather channels.
// Duplicate timestamps keep the last record.
func ToSeries(records []Record) *series.Series {
	s := series.New(series.WeatherChannels...)
	row := make([]series.Value, len(series.WeatherChannels))
	for _, r := range records {
		for i, c := range series.WeatherChannels {
			row[i] = r.Get(c)
		}
		_ = s.Set(r.Time, row...)
	}
	return s
}
