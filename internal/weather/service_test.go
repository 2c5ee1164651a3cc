package weather

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/i474232898/pv-feature-pipeline/internal/series"
)

var hour0 = time.Date(2024, 8, 25, 0, 0, 0, 0, time.UTC)

type stubProvider struct {
	name    string
	records []Record
	err     error
	calls   int
	mu      sync.Mutex
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) FetchHourly(_ context.Context, _ Request) ([]Record, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.records, p.err
}

type mapCache struct {
	data map[string][]Record
	err  error
}

func (c *mapCache) Get(_ context.Context, key string) ([]Record, bool, error) {
	if c.err != nil {
		return nil, false, c.err
	}
	r, ok := c.data[key]
	return r, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, records []Record) error {
	c.data[key] = records
	return c.err
}

type stubGeocoder struct{ lat, lon float64 }

func (g stubGeocoder) Resolve(_ context.Context, loc Location) (Location, error) {
	loc.Lat, loc.Lon = &g.lat, &g.lon
	return loc, nil
}

func rec(h int, vals map[series.Channel]float64) Record {
	r := NewRecord(hour0.Add(time.Duration(h) * time.Hour))
	for c, v := range vals {
		r.Values[c] = series.Some(v)
	}
	return r
}

func site() Location {
	lat, lon := 48.1, 11.6
	return Location{Lat: &lat, Lon: &lon, Timezone: "UTC"}
}

func TestFlattenAndBind(t *testing.T) {
	Convey("Given a nested hourly entry", t, func() {
		var doc map[string]any
		So(json.Unmarshal([]byte(`{
			"temperature": 21.5,
			"wind": {"speed": 3, "angle": 180},
			"cloud_cover": {"total": 40, "low": 10},
			"precipitation": {"total": null},
			"summary": "clear",
			"levels": [1, 2]
		}`), &doc), ShouldBeNil)

		flat := Flatten(doc)

		Convey("Then nested keys are underscore joined and non-numbers dropped", func() {
			So(flat, ShouldResemble, map[string]float64{
				"temperature":       21.5,
				"wind_speed":        3,
				"wind_angle":        180,
				"cloud_cover_total": 40,
				"cloud_cover_low":   10,
			})
		})

		Convey("Then binding maps onto channels and leaves missing ones null", func() {
			r := Bind(hour0, flat, []Field{
				{Key: "temperature", Channel: series.Temperature},
				{Key: "wind_speed", Channel: series.WindSpeed, Scale: 2},
				{Key: "cloud_cover_total", Channel: series.CloudCoverTotal},
				{Key: "cloud_cover_low", Channel: series.CloudCoverTotal},
				{Key: "precipitation_total", Channel: series.PrecipitationTotal},
			})
			So(r.Get(series.Temperature), ShouldResemble, series.Some(21.5))
			So(r.Get(series.WindSpeed), ShouldResemble, series.Some(6))
			So(r.Get(series.CloudCoverTotal), ShouldResemble, series.Some(50))
			So(r.Get(series.PrecipitationTotal).Valid, ShouldBeFalse)
		})
	})
}

func TestAggregateHourly(t *testing.T) {
	Convey("Given two providers with overlapping hours", t, func() {
		a := []Record{
			rec(1, map[series.Channel]float64{series.Temperature: 20}),
			rec(0, map[series.Channel]float64{series.Temperature: 18, series.CAPE: 5}),
		}
		b := []Record{
			rec(0, map[series.Channel]float64{series.Temperature: 20}),
		}

		out := AggregateHourly(a, b)

		Convey("Then each hour averages the providers that reported a channel", func() {
			So(len(out), ShouldEqual, 2)
			So(out[0].Time, ShouldEqual, hour0)
			So(out[0].Get(series.Temperature), ShouldResemble, series.Some(19))
			So(out[0].Get(series.CAPE), ShouldResemble, series.Some(5))
			So(out[1].Get(series.Temperature), ShouldResemble, series.Some(20))
			So(out[1].Get(series.Humidity).Valid, ShouldBeFalse)
		})
	})

	Convey("Given no records", t, func() {
		So(AggregateHourly(), ShouldBeEmpty)
	})
}

func TestRecordSeries(t *testing.T) {
	Convey("Given hourly records", t, func() {
		records := []Record{
			rec(0, map[series.Channel]float64{series.Irradiance: 0}),
			rec(1, map[series.Channel]float64{series.Irradiance: 120, series.WindAngle: 90}),
		}

		Convey("Then ToSeries carries every weather channel", func() {
			s := ToSeries(records)
			So(s.Columns(), ShouldResemble, series.WeatherChannels)
			So(s.Len(), ShouldEqual, 2)
			So(s.Value(1, series.Irradiance), ShouldResemble, series.Some(120))
			So(s.Value(0, series.WindAngle).Valid, ShouldBeFalse)
		})

		Convey("Then the JSON form round-trips", func() {
			b, err := json.Marshal(records)
			So(err, ShouldBeNil)
			var back []Record
			So(json.Unmarshal(b, &back), ShouldBeNil)
			So(len(back), ShouldEqual, 2)
			So(back[1].Time.Equal(records[1].Time), ShouldBeTrue)
			So(back[1].Get(series.WindAngle), ShouldResemble, series.Some(90))
		})

		Convey("Then unknown channel names are rejected", func() {
			var r Record
			err := json.Unmarshal([]byte(`{"time":"2024-08-25T00:00:00Z","values":{"wind.speed":1}}`), &r)
			So(errors.Is(err, ErrMalformedPayload), ShouldBeTrue)
		})
	})
}

func TestServiceForecast(t *testing.T) {
	ctx := context.Background()

	Convey("Given two healthy providers and a cache", t, func() {
		p1 := &stubProvider{name: "b", records: []Record{rec(0, map[series.Channel]float64{series.Pressure: 1000})}}
		p2 := &stubProvider{name: "a", records: []Record{rec(0, map[series.Channel]float64{series.Pressure: 1010})}}
		cache := &mapCache{data: map[string][]Record{}}
		svc := NewService([]Provider{p1, p2}, WithCache(cache))

		records, err := svc.Forecast(ctx, Request{Location: site()})

		Convey("Then the providers are averaged and the result is cached", func() {
			So(err, ShouldBeNil)
			So(len(records), ShouldEqual, 1)
			So(records[0].Get(series.Pressure), ShouldResemble, series.Some(1005))
			So(cache.data, ShouldContainKey, "forecast:a,b:48.1000:11.6000:UTC")
		})

		Convey("Then a second call is served from the cache", func() {
			_, err := svc.Forecast(ctx, Request{Location: site()})
			So(err, ShouldBeNil)
			So(p1.calls, ShouldEqual, 1)
			So(p2.calls, ShouldEqual, 1)
		})
	})

	Convey("Given a failing provider", t, func() {
		boom := errors.New("connection refused")
		svc := NewService([]Provider{
			&stubProvider{name: "ok"},
			&stubProvider{name: "down", err: boom},
		})

		_, err := svc.Forecast(ctx, Request{Location: site()})

		Convey("Then the failure propagates with its cause", func() {
			So(errors.Is(err, ErrUpstream), ShouldBeTrue)
			So(errors.Is(err, boom), ShouldBeTrue)
		})
	})

	Convey("Given a broken cache", t, func() {
		p := &stubProvider{name: "a", records: []Record{rec(0, nil)}}
		svc := NewService([]Provider{p}, WithCache(&mapCache{data: map[string][]Record{}, err: errors.New("redis down")}))

		records, err := svc.Forecast(ctx, Request{Location: site()})

		Convey("Then the providers are still used", func() {
			So(err, ShouldBeNil)
			So(len(records), ShouldEqual, 1)
		})
	})

	Convey("Given a location without coordinates", t, func() {
		p := &stubProvider{name: "a"}
		loc := Location{City: "Munich", Country: "DE"}

		Convey("Then it fails without a geocoder", func() {
			_, err := NewService([]Provider{p}).Forecast(ctx, Request{Location: loc})
			So(errors.Is(err, ErrNoCoordinates), ShouldBeTrue)
		})

		Convey("Then it is resolved with a geocoder", func() {
			_, err := NewService([]Provider{p}, WithGeocoder(stubGeocoder{lat: 48.1, lon: 11.6})).Forecast(ctx, Request{Location: loc})
			So(err, ShouldBeNil)
			So(p.calls, ShouldEqual, 1)
		})
	})

	Convey("Given no providers", t, func() {
		_, err := NewService(nil).Forecast(ctx, Request{Location: site()})
		So(err, ShouldEqual, ErrNoProviders)
	})
}
