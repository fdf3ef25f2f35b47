package solar

import (
	"math"
	"time"
)

// Constants
const (
	solarConstant = 1361.0 // Solar constant in W/m², the average solar energy at the top of Earth's atmosphere

	defaultLinkeTurbidity = 2.0
)

// degToRad converts an angle from degrees to radians for trigonometric calculations
func degToRad(deg float64) float64 {
	return deg * (math.Pi / 180.0)
}

// radToDeg converts an angle from radians to degrees for human-readable output
func radToDeg(rad float64) float64 {
	return rad * (180.0 / math.Pi)
}

// fixAngle normalizes an angle to the range [0, 360) degrees
func fixAngle(angle float64) float64 {
	return angle - 360.0*math.Floor(angle/360.0)
}

// jdFromTime converts a UTC time to Julian Day, a continuous count of days since Jan 1, 4713 BCE
func jdFromTime(t time.Time) float64 {
	// Formula: JD = 2440587.5 (Unix epoch JD) + seconds since epoch / seconds per day
	return 2440587.5 + float64(t.Unix())/86400.0
}

// equationOfTime calculates the Equation of Time (EoT) in minutes, the difference between apparent and mean solar time
func equationOfTime(t time.Time) float64 {
	jd := jdFromTime(t)
	T := (jd - 2451545.0) / 36525.0 // Julian centuries since J2000.0

	L0 := fixAngle(280.46646 + T*(36000.76983+T*0.0003032))            // Mean longitude of the Sun (degrees)
	M := fixAngle(357.52911 + T*(35999.05029-T*0.0001537))             // Mean anomaly of the Sun (degrees)
	e := 0.016708634 - T*(0.000042037+T*0.0000001267)                  // Eccentricity of Earth's orbit
	eps0 := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60 // Mean obliquity of the ecliptic (degrees)

	y := math.Tan(degToRad(eps0)/2) * math.Tan(degToRad(eps0)/2)
	eqTimeMin := radToDeg(y*math.Sin(degToRad(2*L0))-
		2*e*math.Sin(degToRad(M))+
		4*e*y*math.Sin(degToRad(M))*math.Cos(degToRad(2*L0))-
		0.5*y*y*math.Sin(degToRad(4*L0))-
		1.25*e*e*math.Sin(degToRad(2*M))) * 4 // 4 min/degree

	return eqTimeMin
}

// extraterrestrial returns the top-of-atmosphere irradiance for the day of year,
// adjusted for the varying Earth-Sun distance.
func extraterrestrial(t time.Time) float64 {
	N := float64(t.YearDay())
	return solarConstant * (1 + 0.033*math.Cos(degToRad(360.0*(N-3)/365.0)))
}

// IneichenPerez is a simplified Ineichen-Perez clear-sky model driven by the
// Linke turbidity factor (2 = very clear, 6 = hazy).
type IneichenPerez struct {
	LinkeTurbidity float64
}

// Name implements ClearSkyModel
func (IneichenPerez) Name() string { return ModelIneichenPerez }

// ClearSky implements ClearSkyModel
func (m IneichenPerez) ClearSky(t time.Time, zenith float64, loc Location) Irradiance {
	if zenith >= NightZenith {
		return Irradiance{Time: t}
	}

	TL := m.LinkeTurbidity
	if TL <= 0 {
		TL = defaultLinkeTurbidity
	}

	N := t.YearDay()
	G0 := extraterrestrial(t)

	// Air mass, Kasten-Young
	AM := 1.0 / (math.Cos(degToRad(zenith)) + 0.50572*math.Pow(96.07995-zenith, -1.6364))
	c := 0.7   // Normalization constant for DNI
	a := 0.027 // Atmospheric extinction coefficient

	dni := G0 * c * math.Exp(-a*AM*TL*math.Exp(-loc.Altitude/8000.0))
	// Diffuse fraction with a seasonal adjustment
	fh := 0.1 + 0.05*math.Sin(math.Pi*float64(N-100)/365.0)
	dhi := fh * G0 * math.Sin(degToRad(zenith))

	return Irradiance{
		Time: t,
		DNI:  dni,
		DHI:  dhi,
		GHI:  dni*math.Cos(degToRad(zenith)) + dhi,
	}
}
