package solar

import (
	"math"
	"time"
)

// ASCE is the ASCE standardized clear-sky shortwave model.  Unlike the other
// models it depends on near-surface air temperature and humidity, through
// station pressure and precipitable water.
type ASCE struct {
	TemperatureC     float64
	RelativeHumidity float64
}

// Name implements ClearSkyModel
func (ASCE) Name() string { return ModelASCE }

// ClearSky implements ClearSkyModel
func (m ASCE) ClearSky(t time.Time, zenith float64, loc Location) Irradiance {
	const Kt = 1.0 // Clearness index

	if zenith >= NightZenith {
		return Irradiance{Time: t}
	}

	dayOfYear := float64(t.UTC().YearDay())
	airTemp := m.TemperatureC

	// Earth-Sun distance correction
	d_r := 1 + 0.033*math.Cos(((2*math.Pi)/365)*dayOfYear)

	// Atmospheric pressure (kPa)
	P_B := 101.325 * math.Exp((loc.Altitude*-1*9.80665)/((8.314472/0.028967)*(airTemp+273.15)))

	// Vapor pressure (kPa)
	e_A := 0.61121 * math.Exp(((18.678-airTemp/234.5)*airTemp)/(257.14+airTemp)) * (m.RelativeHumidity / 100)

	// Extraterrestrial radiation on a horizontal surface (W/m²)
	cosZ := math.Cos(degToRad(zenith))
	SW_a := solarConstant * d_r * cosZ
	if SW_a <= 0 {
		return Irradiance{Time: t}
	}

	// Precipitable water (mm)
	w := 0.15*e_A*P_B + 0.6

	sinBeta := math.Sin(degToRad(90 - zenith))

	// Beam transmittance
	K_b := 0.98 * math.Exp((-0.00146*P_B)/(Kt*sinBeta)-0.075*math.Pow(w/sinBeta, 0.4))

	// Diffuse transmittance
	var K_d float64
	if K_b > 0.15 {
		K_d = 0.35 - 0.36*K_b
	} else {
		K_d = 0.18 + 0.82*K_b
	}

	beam := K_b * SW_a
	return Irradiance{
		Time: t,
		GHI:  (K_b + K_d) * SW_a,
		DNI:  beam / cosZ,
		DHI:  K_d * SW_a,
	}
}
