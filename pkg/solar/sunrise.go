package solar

import (
	"math"
	"time"
)

// CalculateSunriseSunset returns sunrise and sunset as minutes from midnight UTC
// for the UTC calendar day containing day at the specified latitude and longitude.
// Returns (-1, -1, nil) for polar day (sun never sets) or polar night (sun never rises).
func CalculateSunriseSunset(day time.Time, latitude, longitude float64) (sunriseMinutes, sunsetMinutes int, err error) {
	day = day.UTC()

	// Solar declination, angle between the Sun and the celestial equator
	doy := float64(day.YearDay())
	innerAngle := (356.6 + 0.9856*doy) * (math.Pi / 180.0)
	outerAngle := (278.97 + 0.9856*doy + 1.9165*math.Sin(innerAngle)) * (math.Pi / 180.0)
	declinationRad := math.Asin(0.39785 * math.Sin(outerAngle))

	latRad := latitude * (math.Pi / 180.0)

	// At sunrise/sunset the sun is at the horizon: cos(H) = -tan(lat) * tan(declination)
	cosH := -math.Tan(latRad) * math.Tan(declinationRad)

	if cosH < -1.0 {
		// Sun never sets (midnight sun / polar day)
		return -1, -1, nil
	}
	if cosH > 1.0 {
		// Sun never rises (polar night)
		return -1, -1, nil
	}

	hourAngleRad := math.Acos(cosH)
	hourAngleHours := hourAngleRad * (180.0 / math.Pi) / 15.0 // 15 degrees per hour

	// Each degree of longitude = 4 minutes of time; east is earlier UTC
	longitudeMinutes := longitude * 4.0

	refTime := time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, time.UTC)
	eotMinutes := equationOfTime(refTime)

	// 720 = 12:00 UTC, adjusted for longitude and equation of time
	solarNoonUTC := 720.0 - longitudeMinutes - eotMinutes

	hourAngleMinutes := hourAngleHours * 60.0

	sunriseUTC := solarNoonUTC - hourAngleMinutes
	sunsetUTC := solarNoonUTC + hourAngleMinutes

	// Normalize to 0-1440 range (minutes in a day)
	sunriseUTC = math.Mod(sunriseUTC+1440, 1440)
	sunsetUTC = math.Mod(sunsetUTC+1440, 1440)

	return int(math.Round(sunriseUTC)), int(math.Round(sunsetUTC)), nil
}

// SunTimes returns local sunrise and sunset for the local calendar day that
// starts at midnight.  ok is false during polar day or night.
func SunTimes(midnight time.Time, loc Location) (sunrise, sunset time.Time, ok bool) {
	// Evaluate at local noon so the UTC date matches the local one for any sane zone
	noon := midnight.Add(12 * time.Hour)
	riseMin, setMin, err := CalculateSunriseSunset(noon, loc.Latitude, loc.Longitude)
	if err != nil || riseMin < 0 || setMin < 0 {
		return time.Time{}, time.Time{}, false
	}

	u := noon.UTC()
	base := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	sunrise = base.Add(time.Duration(riseMin) * time.Minute).In(midnight.Location())
	sunset = base.Add(time.Duration(setMin) * time.Minute).In(midnight.Location())

	// Minutes wrap at UTC midnight; pull both back into the local day
	for sunrise.Before(midnight) {
		sunrise = sunrise.Add(24 * time.Hour)
	}
	for sunset.Before(sunrise) {
		sunset = sunset.Add(24 * time.Hour)
	}
	return sunrise, sunset, true
}

// FormatSunTime converts UTC minutes from midnight to a formatted time string
// in the given timezone location.
func FormatSunTime(utcMinutes int, loc *time.Location) string {
	if utcMinutes < 0 {
		return ""
	}

	hours := utcMinutes / 60
	minutes := utcMinutes % 60

	t := time.Date(2000, 1, 1, hours, minutes, 0, 0, time.UTC)
	local := t.In(loc)

	return local.Format("3:04 PM")
}
