package series

import "fmt"

// Channel identifies one numeric column of a Series.
type Channel int

const (
	ActivePower Channel = iota
	DevTemperature
	ACVoltage
	DCVoltage
	Temperature
	Pressure
	CAPE
	Irradiance
	Humidity
	WindSpeed
	WindAngle
	CloudCoverTotal
	PrecipitationTotal

	numChannels
)

var channelNames = [numChannels]string{
	ActivePower:        "active_power",
	DevTemperature:     "dev_temperature",
	ACVoltage:          "ac_voltage",
	DCVoltage:          "dc_voltage",
	Temperature:        "temperature",
	Pressure:           "pressure",
	CAPE:               "cape",
	Irradiance:         "irradiance",
	Humidity:           "humidity",
	WindSpeed:          "wind_speed",
	WindAngle:          "wind_angle",
	CloudCoverTotal:    "cloud_cover_total",
	PrecipitationTotal: "precipitation_total",
}

var (
	// TelemetryChannels are derived from inverter records.
	TelemetryChannels = []Channel{ActivePower, DevTemperature, ACVoltage, DCVoltage}

	// WeatherChannels are derived from hourly forecast entries.
	WeatherChannels = []Channel{
		Temperature, Pressure, CAPE, Irradiance, Humidity,
		WindSpeed, WindAngle, CloudCoverTotal, PrecipitationTotal,
	}

	// FeatureColumns is the output ordering of the feature table.
	FeatureColumns = append(append([]Channel{}, TelemetryChannels...), WeatherChannels...)
)

// String returns the canonical column name.
func (c Channel) String() string {
	if c < 0 || c >= numChannels {
		return fmt.Sprintf("channel(%d)", int(c))
	}
	return channelNames[c]
}

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c >= 0 && c < numChannels
}

// ParseChannel maps a column name back to its Channel.
func ParseChannel(name string) (Channel, error) {
	for i, n := range channelNames {
		if n == name {
			return Channel(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
}

// ParseChannels parses a list of column names.
func ParseChannels(names []string) ([]Channel, error) {
	out := make([]Channel, 0, len(names))
	for _, n := range names {
		ch, err := ParseChannel(n)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, nil
}
