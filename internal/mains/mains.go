// Package mains resolves the local electrical mains frequency from the system
// timezone. Hum analysis and the legacy hum preset use it to decide which
// fundamental (50 or 60 Hz) to inspect and notch first.
package mains

import (
	"strings"

	tz "github.com/medama-io/go-timezone-country"
	"github.com/thlib/go-timezone-local/tzlocal"

	"github.com/linuxmatters/mouthpiece/internal/logger"
)

// Supported mains fundamentals in Hz.
const (
	Hz50 = 50
	Hz60 = 60
)

// Detection records how a mains frequency was chosen.
type Detection struct {
	Hz       int
	Timezone string // empty when the timezone could not be read
	Country  string // empty when the timezone maps to no country
}

// Fallback reports whether no country was found and 50Hz was assumed.
func (d Detection) Fallback() bool { return d.Country == "" }

// Resolve returns override when it names a supported fundamental, otherwise
// the frequency detected from the local timezone.
func Resolve(override int) int {
	if override == Hz50 || override == Hz60 {
		return override
	}
	d := Detect()
	logger.Debugf("mains: %d Hz (timezone %q, country %q)", d.Hz, d.Timezone, d.Country)
	return d.Hz
}

// Fundamentals returns both supported fundamentals with local first.
// An unsupported local value falls back to 50Hz ordering.
func Fundamentals(local int) []float64 {
	if local == Hz60 {
		return []float64{Hz60, Hz50}
	}
	return []float64{Hz50, Hz60}
}

// Frequency returns the local mains frequency in Hz (50 or 60).
func Frequency() int {
	return Detect().Hz
}

// Detect looks up the mains frequency for the system timezone.
func Detect() Detection {
	timezone, err := tzlocal.RuntimeTZ()
	if err != nil {
		return Detection{Hz: Hz50}
	}
	return detectTimezone(timezone)
}

// FrequencyForTimezone returns the mains frequency for an IANA timezone.
func FrequencyForTimezone(timezone string) int {
	return detectTimezone(timezone).Hz
}

func detectTimezone(timezone string) Detection {
	d := Detection{Hz: Hz50, Timezone: timezone}
	// UTC and GMT have no country
	if timezone == "UTC" || timezone == "GMT" || strings.HasPrefix(timezone, "Etc/") {
		return d
	}

	tzMap, err := tz.NewTimezoneCountryMap()
	if err != nil {
		return d
	}
	country, err := tzMap.GetCountry(timezone)
	if err != nil {
		return d
	}

	d.Country = country
	if hz60Countries[country] {
		d.Hz = Hz60
	}
	return d
}

// hz60Countries lists countries on 60Hz mains. Everything else is 50Hz.
// Japan is split by region and shares one timezone, so it stays at the
// 50Hz default of the Tokyo grid.
// Source: https://en.wikipedia.org/wiki/Mains_electricity_by_country
var hz60Countries = map[string]bool{
	// North America
	"United States": true,
	"Canada":        true,
	"Mexico":        true,

	// Central America
	"Belize":      true,
	"Costa Rica":  true,
	"El Salvador": true,
	"Guatemala":   true,
	"Honduras":    true,
	"Nicaragua":   true,
	"Panama":      true,

	// Caribbean
	"Bahamas":             true,
	"Barbados":            true,
	"Cayman Islands":      true,
	"Cuba":                true,
	"Dominican Republic":  true,
	"Haiti":               true,
	"Jamaica":             true,
	"Puerto Rico":         true,
	"Trinidad and Tobago": true,
	"U.S. Virgin Islands": true,

	// South America (partial, most use 50Hz)
	"Brazil":    true, // Note: Brazil has both 50Hz and 60Hz regions; 60Hz predominant
	"Colombia":  true,
	"Ecuador":   true,
	"Guyana":    true,
	"Peru":      true,
	"Suriname":  true,
	"Venezuela": true,

	// Asia (partial)
	"South Korea":  true,
	"Taiwan":       true,
	"Philippines":  true,
	"Saudi Arabia": true,

	// Pacific
	"Guam":             true,
	"American Samoa":   true,
	"Marshall Islands": true,
	"Micronesia":       true,
	"Palau":            true,
}
