package engine

import (
	"math"

	"citypulse/internal/models"
	"citypulse/internal/sim"
)

type TimeBlock struct {
	T    int `json:"t"`
	Hour int `json:"hour_of_day"`
	Day  int `json:"day_index"`
}

type CapacityBlock struct {
	BusActive   int `json:"bus_service_units_active"`
	BusMax      int `json:"bus_service_units_max"`
	TrainActive int `json:"train_service_units_active"`
	TrainMax    int `json:"train_service_units_max"`
}

type EnvironmentBlock struct {
	CarbonEmissions     float64 `json:"carbon_emissions"`
	HourlyEmissions     float64 `json:"hourly_emissions"`
	SustainabilityScore float64 `json:"sustainability_score"`
}

type CostBlock struct {
	ThisHour float64   `json:"cost_this_hour"`
	Preview  float64   `json:"cost_preview"`
	Today    float64   `json:"cost_today"`
	History  []float64 `json:"cost_history"`
}

// Payload is the externally consumed snapshot of the city.
type Payload struct {
	RunID        string                     `json:"run_id"`
	Time         TimeBlock                  `json:"time"`
	Scores       models.Scores              `json:"scores"`
	Metrics      models.Metrics             `json:"metrics"`
	Weather      models.Weather             `json:"weather"`
	Districts    map[string]models.District `json:"districts"`
	Lines        map[string]models.RailLine `json:"lines"`
	Actions      []models.ActionRecord      `json:"actions"`
	Capacity     CapacityBlock              `json:"capacity"`
	Environment  EnvironmentBlock           `json:"environment"`
	Cost         CostBlock                  `json:"cost"`
	ActiveEvents []models.ActiveEvent       `json:"active_events"`
	EventLog     []models.EventLogEntry     `json:"event_log"`
	History      []models.HistorySnapshot   `json:"history"`
	Escalations  []models.Escalation        `json:"operator_escalations"`
	NoService    bool                       `json:"no_service"`
	Forecast     sim.Forecast               `json:"forecast"`
	Trace        *Trace                     `json:"agent_trace,omitempty"`
	Autoplay     AutoplayBlock              `json:"autoplay"`
}

type AutoplayBlock struct {
	Running bool `json:"is_running"`
	Speed   int  `json:"speed"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
