package solar

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

const defaultBrasTurbidity = 2.0

// Bras is the Bras (1990) clear-sky model.  It produces total horizontal
// irradiance only; the whole of it is reported as beam.
type Bras struct {
	// Turbidity is the nfac atmospheric turbidity (2 clear, 4-5 smoggy)
	Turbidity float64
}

// Name implements ClearSkyModel
func (Bras) Name() string { return ModelBras }

// ClearSky implements ClearSkyModel
func (m Bras) ClearSky(t time.Time, zenith float64, loc Location) Irradiance {
	const solarConstant = 1367.0

	nfac := m.Turbidity
	if nfac <= 0 {
		nfac = defaultBrasTurbidity
	}

	elDeg := 90 - zenith
	if elDeg <= 0 {
		return Irradiance{Time: t}
	}

	jd := julian.TimeToJD(t.UTC())
	T := (jd - 2451545.0) / 36525.0

	// Sun-Earth distance in AU
	M := degToRad(fixAngle(357.52911 + T*(35999.05029-T*0.0001537)))
	e := 0.016708617 - T*(0.000042037+T*0.0000001236)
	E := M + e*math.Sin(M)*(1+e*math.Cos(M))
	v := 2 * math.Atan(math.Sqrt((1+e)/(1-e))*math.Tan(E/2))
	r := (1 - e*e) / (1 + e*math.Cos(v))

	cosZen := math.Cos(degToRad(zenith))
	io := cosZen * solarConstant / (r * r)
	airMass := 1.0 / (cosZen + 0.15*math.Pow(elDeg+3.885, -1.253))
	a1 := 0.128 - 0.054*math.Log10(airMass)
	sr := io * math.Exp(-nfac*a1*airMass)
	if sr < 0 {
		sr = 0.0
	}

	return Irradiance{
		Time: t,
		GHI:  sr,
		DNI:  sr / cosZen,
	}
}
