package controller

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// DawnDusk holds today's civil dawn and dusk in the controller timezone
type DawnDusk struct {
	Dawn time.Time
	Dusk time.Time
}

// Decimal-degree coordinate pair embedded in a maps link, e.g.
// "https://maps.example.com/@-33.86,151.21,15z"
var mapsCoordPattern = regexp.MustCompile(`@?(-?\d+\.\d+),(-?\d+\.\d+)`)

// resolveDawnDusk computes today's civil dawn and dusk for the configured
// location. Coordinate precedence: device-reported location, then a
// coordinate pair embedded in the maps URL, then explicit Latitude/Longitude.
// With no coordinates at all it warns and falls back to (0, 0).
func (c *Controller) resolveDawnDusk(ctx context.Context) DawnDusk {
	loc := c.cfg.Location

	var tzName string
	var lat, lon float64
	resolved := false

	if loc.UseShellyDevice != "" {
		dl, err := c.devices.DeviceLocation(ctx, loc.UseShellyDevice)
		if err != nil {
			log.Warn().Err(err).Str("device", loc.UseShellyDevice).Msg("Failed to get location from device")
		} else if dl != nil {
			tzName = dl.Timezone
			lat = dl.Latitude
			lon = dl.Longitude
			resolved = true
		}
	}

	if !resolved {
		tzName = loc.Timezone
		if loc.GoogleMapsURL != "" {
			if m := mapsCoordPattern.FindStringSubmatch(loc.GoogleMapsURL); m != nil {
				lat, _ = strconv.ParseFloat(m[1], 64)
				lon, _ = strconv.ParseFloat(m[2], 64)
				resolved = true
			}
		} else if loc.Latitude != nil && loc.Longitude != nil {
			lat = *loc.Latitude
			lon = *loc.Longitude
			resolved = true
		}
	}

	if !resolved {
		log.Warn().Msg("Latitude and longitude could not be determined, using defaults for 0.0, 0.0")
		lat, lon = 0.0, 0.0
	}

	tz, err := time.LoadLocation(tzName)
	if err != nil {
		log.Warn().Err(err).Str("timezone", tzName).Msg("Failed to load timezone, using UTC")
		tz = time.UTC
	}
	c.tz = tz

	today := c.now().In(tz)
	dd := dawnDuskTimes(lat, lon, today, tz)

	log.Debug().
		Float64("lat", lat).Float64("lon", lon).
		Str("dawn", dd.Dawn.Format("15:04")).
		Str("dusk", dd.Dusk.Format("15:04")).
		Msg("Resolved dawn/dusk times")

	return dd
}

// dawnDuskTimes computes civil dawn and dusk (sun at -6 degrees) for a date
func dawnDuskTimes(lat, lon float64, date time.Time, tz *time.Location) DawnDusk {
	// Add 0.5 because the NOAA sunrise equation expects JD at noon, not midnight
	jd := toJulianDay(date) + 0.5

	return DawnDusk{
		Dawn: sunTime(jd, lat, lon, tz, date, -6.0, true),
		Dusk: sunTime(jd, lat, lon, tz, date, -6.0, false),
	}
}

// toJulianDay converts a date to Julian day number
func toJulianDay(t time.Time) float64 {
	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day())

	if m <= 2 {
		y--
		m += 12
	}

	a := math.Floor(y / 100)
	b := 2 - a + math.Floor(a/4)

	return math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + d + b - 1524.5
}

// sunTime calculates the time the sun crosses the given elevation angle,
// rising or setting, on the reference date.
func sunTime(jd, lat, lon float64, tz *time.Location, date time.Time, angle float64, rising bool) time.Time {
	// Approximate solar noon
	n := jd - 2451545.0 + 0.0008
	jStar := n - lon/360.0

	// Solar mean anomaly
	m := math.Mod(357.5291+0.98560028*jStar, 360.0)
	mRad := m * math.Pi / 180.0

	// Equation of center
	c := 1.9148*math.Sin(mRad) + 0.02*math.Sin(2*mRad) + 0.0003*math.Sin(3*mRad)

	// Ecliptic longitude
	lambda := math.Mod(m+c+180+102.9372, 360.0)
	lambdaRad := lambda * math.Pi / 180.0

	// Solar transit
	jTransit := 2451545.0 + jStar + 0.0053*math.Sin(mRad) - 0.0069*math.Sin(2*lambdaRad)

	// Declination of the sun
	sinDec := math.Sin(lambdaRad) * math.Sin(23.44*math.Pi/180.0)
	dec := math.Asin(sinDec)

	// Hour angle
	latRad := lat * math.Pi / 180.0
	angleRad := angle * math.Pi / 180.0

	cosOmega := (math.Sin(angleRad) - math.Sin(latRad)*math.Sin(dec)) / (math.Cos(latRad) * math.Cos(dec))

	// Clamp to valid range (polar day/night)
	if cosOmega > 1 {
		cosOmega = 1
	} else if cosOmega < -1 {
		cosOmega = -1
	}

	omega := math.Acos(cosOmega) * 180.0 / math.Pi

	var jTime float64
	if rising {
		jTime = jTransit - omega/360.0
	} else {
		jTime = jTransit + omega/360.0
	}

	return julianToTime(jTime, tz, date)
}

// julianToTime converts a Julian day to a time.Time on the reference date
func julianToTime(jd float64, tz *time.Location, refDate time.Time) time.Time {
	unixTime := (jd - 2440587.5) * 86400.0
	t := time.Unix(int64(unixTime), int64((unixTime-math.Floor(unixTime))*1e9)).In(tz)

	return time.Date(
		refDate.Year(), refDate.Month(), refDate.Day(),
		t.Hour(), t.Minute(), t.Second(), 0, tz,
	)
}
