package weather

import (
	"context"
	"errors"
	"sync"

	"github.com/kelvins/geocoder"
)

// geocoder keeps its API key in a package variable.
var geocodeMu sync.Mutex

// GoogleGeocoder resolves city/country pairs through the Google Geocoding API.
type GoogleGeocoder struct {
	apiKey string
}

// NewGoogleGeocoder returns a geocoder using apiKey.
func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	return &GoogleGeocoder{apiKey: apiKey}
}

// Resolve fills Lat/Lon of loc. The timezone is kept as configured.
func (g *GoogleGeocoder) Resolve(ctx context.Context, loc Location) (Location, error) {
	if g.apiKey == "" {
		return loc, errors.New("geocoder api key is not configured")
	}
	if err := ctx.Err(); err != nil {
		return loc, err
	}

	geocodeMu.Lock()
	geocoder.ApiKey = g.apiKey
	res, err := geocoder.Geocoding(geocoder.Address{
		City:    loc.City,
		Country: loc.Country,
	})
	geocodeMu.Unlock()
	if err != nil {
		return loc, err
	}

	lat, lon := res.Latitude, res.Longitude
	loc.Lat = &lat
	loc.Lon = &lon
	return loc, nil
}
