package models

import "math/rand"

type weatherWeight struct {
	condition WeatherCondition
	weight    float64
}

// weatherTable is the transition distribution for a band of hours.
type weatherTable struct {
	from, to int
	weights  []weatherWeight
}

// Morning favours haze, the afternoon favours rain. Hours outside every band use nightWeather.
var weatherTables = []weatherTable{
	{from: 5, to: 10, weights: []weatherWeight{
		{WeatherClear, 0.45}, {WeatherLightRain, 0.10}, {WeatherHeavyRain, 0.05},
		{WeatherThunderstorm, 0.02}, {WeatherHaze, 0.38},
	}},
	{from: 11, to: 12, weights: []weatherWeight{
		{WeatherClear, 0.55}, {WeatherLightRain, 0.15}, {WeatherHeavyRain, 0.10},
		{WeatherThunderstorm, 0.05}, {WeatherHaze, 0.15},
	}},
	{from: 13, to: 18, weights: []weatherWeight{
		{WeatherClear, 0.35}, {WeatherLightRain, 0.25}, {WeatherHeavyRain, 0.20},
		{WeatherThunderstorm, 0.15}, {WeatherHaze, 0.05},
	}},
}

var nightWeather = []weatherWeight{
	{WeatherClear, 0.60}, {WeatherLightRain, 0.15}, {WeatherHeavyRain, 0.08},
	{WeatherThunderstorm, 0.05}, {WeatherHaze, 0.12},
}

func weatherWeightsFor(hour int) []weatherWeight {
	for _, t := range weatherTables {
		if hour >= t.from && hour <= t.to {
			return t.weights
		}
	}
	return nightWeather
}

func pickWeather(rng *rand.Rand, weights []weatherWeight) WeatherCondition {
	total := 0.0
	for _, w := range weights {
		total += w.weight
	}
	r := rng.Float64() * total
	for _, w := range weights {
		if r < w.weight {
			return w.condition
		}
		r -= w.weight
	}
	return weights[len(weights)-1].condition
}

// UpdateWeather counts down the current condition and resamples it on expiry.
// It reports whether the condition was resampled.
func (c *CityState) UpdateWeather(rng *rand.Rand) bool {
	c.Weather.RemainingHours--
	if c.Weather.RemainingHours > 0 {
		return false
	}
	cond := pickWeather(rng, weatherWeightsFor(c.HourOfDay))
	intensity := 0.0
	if cond != WeatherClear {
		intensity = 0.3 + 0.7*rng.Float64()
	}
	duration := 2 + rng.Intn(4)

	var regions []string
	switch {
	case cond == WeatherHeavyRain || cond == WeatherThunderstorm:
		regions = []string{"Islandwide"}
	case len(c.Districts) > 0:
		regions = []string{c.Districts[rng.Intn(len(c.Districts))].Name}
	}

	c.Weather = Weather{
		Condition:      cond,
		Intensity:      round3(intensity),
		Regions:        regions,
		RemainingHours: duration,
	}
	return true
}

// WeatherEffects are the additive modifiers a condition applies for one hour.
type WeatherEffects struct {
	Traffic    float64
	Crowding   float64
	BusPenalty float64
	AirPenalty float64
	Disruption float64
}

func (w Weather) Effects() WeatherEffects {
	i := w.Intensity
	switch w.Condition {
	case WeatherLightRain:
		return WeatherEffects{Traffic: 0.05 * i, Crowding: 0.03 * i, BusPenalty: 0.02 * i}
	case WeatherHeavyRain:
		return WeatherEffects{Traffic: 0.12 * i, Crowding: 0.08 * i, BusPenalty: 0.06 * i}
	case WeatherThunderstorm:
		return WeatherEffects{Traffic: 0.15 * i, Crowding: 0.10 * i, BusPenalty: 0.08 * i, Disruption: 0.15 * i}
	case WeatherHaze:
		return WeatherEffects{AirPenalty: 15 * i}
	}
	return WeatherEffects{}
}

// ForecastBoost is the demand uplift the forecaster adds for the condition.
func (w Weather) ForecastBoost() float64 {
	switch w.Condition {
	case WeatherLightRain:
		return 0.03
	case WeatherHeavyRain:
		return 0.08
	case WeatherThunderstorm:
		return 0.12
	}
	return 0
}
