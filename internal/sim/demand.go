package sim

import (
	"math"

	"citypulse/internal/models"
)

const (
	morningPeakHour = 8.0
	eveningPeakHour = 18.0
	peakWidth       = 4.0
	middayFloor     = 0.4
)

// Wave returns the shared base demand level (0..1) for an hour of day.
// Two gaussian peaks sit on the commuter hours over a flat midday floor, followed by a
// declining late-night ramp and a near-zero value through the no-service window.
func Wave(hour int) float64 {
	hour = ((hour % 24) + 24) % 24
	switch {
	case hour >= 1 && hour <= 4:
		return 0.02
	case hour == 0:
		return 0.08
	case hour == 5:
		return 0.15
	}
	h := float64(hour)
	wave := math.Exp(-(h - morningPeakHour) * (h - morningPeakHour) / peakWidth)
	wave = math.Max(wave, math.Exp(-(h-eveningPeakHour)*(h-eveningPeakHour)/peakWidth))
	if hour >= 10 && hour <= 16 {
		wave = math.Max(wave, middayFloor)
	}
	if hour >= 21 {
		wave = math.Max(wave, math.Max(0, 0.3-0.1*(h-21)))
	}
	return math.Min(wave, 1)
}

// LineWave is the base load a rail line carries at the given hour.
func LineWave(hour int) float64 {
	return Wave(hour)*0.85 + 0.05
}

// EffectiveDemand scales the wave by a district's active event multiplier.
func EffectiveDemand(wave float64, d *models.District) float64 {
	mult := d.EventDemandMult
	if mult <= 0 {
		mult = 1
	}
	return wave * mult
}

func smooth(old, target, rate float64) float64 {
	return old + rate*(target-old)
}
