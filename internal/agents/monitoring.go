// Package agents holds the hourly decision stages: monitoring, planning, policy,
// coordination and execution. Each stage reads the previous stage's output and returns its
// own, so the full decision trace of an hour can be captured stage by stage.
package agents

import (
	"fmt"

	"citypulse/internal/models"
)

const highCostThreshold = 500.0

type DistrictObservation struct {
	Name           string  `json:"name"`
	BusLoad        float64 `json:"bus_load_factor"`
	RailLoad       float64 `json:"rail_load_factor"`
	Crowding       float64 `json:"station_crowding"`
	Traffic        float64 `json:"road_traffic"`
	AirQuality     float64 `json:"air_quality"`
	BusCapacity    int     `json:"bus_capacity"`
	RailCapacity   int     `json:"rail_capacity"`
	AdvisoryActive bool    `json:"advisory_active"`
	RoadIncident   bool    `json:"road_incident"`
}

type LineObservation struct {
	ID         string  `json:"line_id"`
	Name       string  `json:"line_name"`
	Load       float64 `json:"line_load"`
	Disruption float64 `json:"disruption_level"`
	Frequency  int     `json:"frequency"`
}

// Observation is a flat, read-only snapshot of the city taken at the start of an hour.
type Observation struct {
	T                int                   `json:"t"`
	Hour             int                   `json:"hour"`
	Day              int                   `json:"day"`
	Peak             bool                  `json:"peak"`
	NoService        bool                  `json:"no_service"`
	Districts        []DistrictObservation `json:"districts"`
	Lines            []LineObservation     `json:"lines"`
	Weather          models.Weather        `json:"weather"`
	ActiveEvents     []string              `json:"active_events"`
	CostThisHour     float64               `json:"cost_this_hour"`
	BusUnitsActive   int                   `json:"bus_units_active"`
	TrainUnitsActive int                   `json:"train_units_active"`
}

func (o Observation) District(name string) (DistrictObservation, bool) {
	for _, d := range o.Districts {
		if d.Name == name {
			return d, true
		}
	}
	return DistrictObservation{}, false
}

func (o Observation) Line(id string) (LineObservation, bool) {
	for _, l := range o.Lines {
		if l.ID == id {
			return l, true
		}
	}
	return LineObservation{}, false
}

type Alert struct {
	Severity string             `json:"severity"`
	Scope    models.ActionScope `json:"type"`
	Target   string             `json:"target"`
	Message  string             `json:"message"`
}

type MonitoringReport struct {
	Observation Observation `json:"observation"`
	Alerts      []Alert     `json:"alerts"`
}

// Observe snapshots the city and derives the operator-facing alerts.
func Observe(c *models.CityState) MonitoringReport {
	incidents := c.RoadIncidentDistricts()
	obs := Observation{
		T:                c.T,
		Hour:             c.HourOfDay,
		Day:              c.DayIndex,
		Peak:             models.IsPeak(c.HourOfDay),
		NoService:        models.IsNoService(c.HourOfDay),
		Districts:        make([]DistrictObservation, 0, len(c.Districts)),
		Lines:            make([]LineObservation, 0, len(c.Lines)),
		Weather:          c.Weather,
		ActiveEvents:     make([]string, 0, len(c.ActiveEvents)),
		CostThisHour:     c.CostThisHour,
		BusUnitsActive:   c.BusUnitsActive,
		TrainUnitsActive: c.TrainUnitsActive,
	}
	for _, d := range c.Districts {
		obs.Districts = append(obs.Districts, DistrictObservation{
			Name:           d.Name,
			BusLoad:        d.BusLoad,
			RailLoad:       d.RailLoad,
			Crowding:       d.StationCrowding,
			Traffic:        d.RoadTraffic,
			AirQuality:     d.AirQuality,
			BusCapacity:    d.BusCapacity,
			RailCapacity:   d.RailCapacity,
			AdvisoryActive: d.AdvisoryActive,
			RoadIncident:   incidents[d.Name],
		})
	}
	for _, l := range c.Lines {
		obs.Lines = append(obs.Lines, LineObservation{
			ID:         l.ID,
			Name:       l.Name,
			Load:       l.Load,
			Disruption: l.Disruption,
			Frequency:  l.Frequency,
		})
	}
	for _, ev := range c.ActiveEvents {
		obs.ActiveEvents = append(obs.ActiveEvents, ev.ID)
	}
	return MonitoringReport{Observation: obs, Alerts: deriveAlerts(c, obs)}
}

func deriveAlerts(c *models.CityState, obs Observation) []Alert {
	alerts := []Alert{}
	add := func(sev string, scope models.ActionScope, target, format string, args ...any) {
		alerts = append(alerts, Alert{Severity: sev, Scope: scope, Target: target, Message: fmt.Sprintf(format, args...)})
	}
	for _, d := range obs.Districts {
		if d.BusLoad > models.BusTargetLoad {
			add("warning", models.ScopeDistrict, d.Name, "%s bus overload %.0f%%", d.Name, d.BusLoad*100)
		}
		if d.RailLoad > models.RailTargetLoad {
			add("warning", models.ScopeDistrict, d.Name, "%s rail overload %.0f%%", d.Name, d.RailLoad*100)
		}
		if d.Crowding > models.CrowdingCritical {
			add("critical", models.ScopeDistrict, d.Name, "%s station crowding critical %.0f%%", d.Name, d.Crowding*100)
		}
		if d.AirQuality < models.AirQualityPoor {
			add("warning", models.ScopeDistrict, d.Name, "%s poor air quality %.0f", d.Name, d.AirQuality)
		}
	}
	for _, l := range obs.Lines {
		if l.Load > models.RailTargetLoad {
			add("warning", models.ScopeRailLine, l.ID, "%s overloaded %.0f%%", l.Name, l.Load*100)
		}
		if l.Disruption > models.DelayThreshold {
			add("warning", models.ScopeRailLine, l.ID, "%s disrupted (level %.2f)", l.Name, l.Disruption)
		}
	}
	if obs.Weather.Severe() {
		add("warning", models.ScopeSystem, "weather", "severe weather: %s", obs.Weather.Condition)
	}
	if obs.CostThisHour > highCostThreshold {
		add("info", models.ScopeSystem, "cost", "high operating cost %.1f this hour", obs.CostThisHour)
	}
	for _, ev := range c.ActiveEvents {
		if ev.Kind == models.EventRailDisruption || ev.Kind == models.EventRoadIncident {
			add("warning", models.ScopeSystem, ev.ID, "incident active: %s (%dh left)", ev.Name, ev.RemainingHours)
		}
	}
	return alerts
}
