package sim

import (
	"math"

	"citypulse/internal/models"
)

// ComputeMetrics averages the per-entity readings across districts and lines.
func ComputeMetrics(c *models.CityState) models.Metrics {
	var m models.Metrics
	if n := float64(len(c.Districts)); n > 0 {
		for _, d := range c.Districts {
			m.AvgStation += d.StationCrowding
			m.AvgBusLoad += d.BusLoad
			m.AvgRail += d.RailLoad
			m.AvgTraffic += d.RoadTraffic
			m.AvgAir += d.AirQuality
		}
		m.AvgStation = round3(m.AvgStation / n)
		m.AvgBusLoad = round3(m.AvgBusLoad / n)
		m.AvgRail = round3(m.AvgRail / n)
		m.AvgTraffic = round3(m.AvgTraffic / n)
		m.AvgAir = round3(m.AvgAir / n)
	}
	if n := float64(len(c.Lines)); n > 0 {
		for _, l := range c.Lines {
			m.AvgLine += l.Load
		}
		m.AvgLine = round3(m.AvgLine / n)
	}
	return m
}

// ComputeScores derives the three 0..100 headline scores.
func ComputeScores(c *models.CityState, m models.Metrics) models.Scores {
	penalty := 30*m.AvgStation +
		20*math.Max(0, m.AvgBusLoad-models.BusTargetLoad)*5 +
		20*math.Max(0, m.AvgRail-models.RailTargetLoad)*5 +
		15*m.AvgTraffic +
		15*math.Max(0, m.AvgLine-models.RailTargetLoad)*3
	liveability := 100 - penalty

	environment := 100 - (0.6*m.AvgTraffic*100 + 0.4*(100-m.AvgAir))

	cost := 100.0
	if c.CostThisHour > 0 {
		cost = 100 - (c.CostThisHour-100)*0.2
	}

	return models.Scores{
		Liveability: round1(models.Clamp(liveability, 0, 100)),
		Environment: round1(models.Clamp(environment, 0, 100)),
		Cost:        round1(models.Clamp(cost, 0, 100)),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
