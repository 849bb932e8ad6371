package models

// Operating thresholds shared by the environment and the decision stages.
const (
	BusTargetLoad      = 0.85
	RailTargetLoad     = 0.80
	CrowdingCritical   = 0.90
	CrowdingWarning    = 0.70
	TrafficBusAddLimit = 0.80
	TrafficHigh        = 0.75
	AirQualityPoor     = 60.0
	NearSaturation     = 0.94
	LineEscalation     = 0.50
	DelayThreshold     = 0.30

	BusMaxExtra  = 10
	RailMaxExtra = 3

	ReserveFraction = 0.20

	LoadFloor   = 0.02
	LoadCeiling = 1.2
	AirFloor    = 20.0
	AirCeiling  = 100.0
	TrafficMin  = 0.05

	BusEmissions         = 50.0
	RailEmissions        = 10.0
	TrafficEmissionsRate = 100.0
	CapacityDecayRate    = 0.05

	CostBusActive       = 6.0
	CostTrainActive     = 12.0
	CostReserveIdle     = 1.5
	CostCrowdingPenalty = 40.0
	CostDelayPenalty    = 30.0
	CostEscalation      = 25.0

	AdvisoryHours     = 3
	AdvisoryReduction = 0.03

	BusUnitsMax   = 50
	TrainUnitsMax = 20

	maxActionLog   = 2000
	maxHistory     = 500
	maxEscalations = 50
	maxEventLog    = 200
	maxCostHistory = 50
)

type WeatherCondition string

const (
	WeatherClear        WeatherCondition = "Clear"
	WeatherLightRain    WeatherCondition = "Light Rain"
	WeatherHeavyRain    WeatherCondition = "Heavy Rain"
	WeatherThunderstorm WeatherCondition = "Thunderstorm"
	WeatherHaze         WeatherCondition = "Haze"
)

type Weather struct {
	Condition      WeatherCondition `json:"condition"`
	Intensity      float64          `json:"intensity"`
	Regions        []string         `json:"regions"`
	RemainingHours int              `json:"remaining_hours"`
}

// Severe reports whether the condition warrants a severe-weather alert.
func (w Weather) Severe() bool {
	return w.Condition == WeatherHeavyRain || w.Condition == WeatherThunderstorm
}

type District struct {
	Name             string  `json:"name"`
	Population       int     `json:"population"`
	BusCapacity      int     `json:"bus_capacity"`
	RailCapacity     int     `json:"rail_capacity"`
	BaseBusCapacity  int     `json:"base_bus_capacity"`
	BaseRailCapacity int     `json:"base_rail_capacity"`
	BusLoad          float64 `json:"bus_load_factor"`
	RailLoad         float64 `json:"rail_load_factor"`
	StationCrowding  float64 `json:"station_crowding"`
	RoadTraffic      float64 `json:"road_traffic"`
	AirQuality       float64 `json:"air_quality"`
	AdvisoryActive   bool    `json:"advisory_active"`
	AdvisoryTimer    int     `json:"advisory_timer"`
	EventDemandMult  float64 `json:"event_demand_mult"`
}

type RailLine struct {
	ID              string   `json:"line_id"`
	Name            string   `json:"line_name"`
	Color           string   `json:"color"`
	Frequency       int      `json:"frequency"`
	BaseFrequency   int      `json:"base_frequency"`
	Load            float64  `json:"line_load"`
	Disruption      float64  `json:"disruption_level"`
	ActionsThisHour []string `json:"actions_this_hour"`
}

type EventKind string

const (
	EventRegular        EventKind = "regular"
	EventWeather        EventKind = "weather"
	EventRailDisruption EventKind = "rail_disruption"
	EventRoadIncident   EventKind = "road_incident"
)

// EventDef is one immutable entry of the event catalog.
type EventDef struct {
	ID          string
	Name        string
	Icon        string
	Kind        EventKind
	Districts   []string
	Lines       []string
	DemandMult  float64
	Duration    int
	ReducesRail bool
	Severity    string
	Description string
}

type ActiveEvent struct {
	ID             string    `json:"event_id"`
	Name           string    `json:"name"`
	Icon           string    `json:"icon"`
	Kind           EventKind `json:"type"`
	Districts      []string  `json:"districts"`
	Lines          []string  `json:"lines,omitempty"`
	DemandMult     float64   `json:"demand_mult"`
	RemainingHours int       `json:"remaining_hours"`
	ReducesRail    bool      `json:"reduces_rail"`
	Severity       string    `json:"severity,omitempty"`
	Description    string    `json:"description,omitempty"`
}

type EventLogEntry struct {
	T       int    `json:"t"`
	Type    string `json:"type"`
	EventID string `json:"event_id"`
	Name    string `json:"name"`
}

type ActionScope string

const (
	ScopeDistrict ActionScope = "district"
	ScopeRailLine ActionScope = "rail_line"
	ScopeSystem   ActionScope = "system"
)

// ActionRecord is an immutable audit entry for one district or line in one hour.
type ActionRecord struct {
	T          int         `json:"t"`
	Hour       int         `json:"hour"`
	Scope      ActionScope `json:"type"`
	Target     string      `json:"target"`
	TargetName string      `json:"target_name,omitempty"`
	Actions    []string    `json:"actions"`
	Urgency    float64     `json:"urgency"`
}

type Escalation struct {
	T      int         `json:"t"`
	Hour   int         `json:"hour"`
	Scope  ActionScope `json:"type"`
	Target string      `json:"target"`
	Reason string      `json:"reason"`
}

type Metrics struct {
	AvgStation float64 `json:"avg_station"`
	AvgBusLoad float64 `json:"avg_bus_load"`
	AvgRail    float64 `json:"avg_rail_load"`
	AvgTraffic float64 `json:"avg_traffic"`
	AvgAir     float64 `json:"avg_air"`
	AvgLine    float64 `json:"avg_line_load"`
}

type Scores struct {
	Liveability float64 `json:"liveability_score"`
	Environment float64 `json:"environment_score"`
	Cost        float64 `json:"cost_score"`
}

type HistorySnapshot struct {
	T            int     `json:"t"`
	Hour         int     `json:"hour"`
	Day          int     `json:"day"`
	Scores       Scores  `json:"scores"`
	Metrics      Metrics `json:"metrics"`
	CostThisHour float64 `json:"cost_this_hour"`
	Emissions    float64 `json:"hourly_emissions"`
}

// CityState is the single mutable world passed through every stage of an hour.
type CityState struct {
	Districts []District `json:"districts"`
	Lines     []RailLine `json:"lines"`

	T         int `json:"t"`
	HourOfDay int `json:"hour_of_day"`
	DayIndex  int `json:"day_index"`

	BusUnitsMax      int `json:"bus_service_units_max"`
	BusUnitsActive   int `json:"bus_service_units_active"`
	TrainUnitsMax    int `json:"train_service_units_max"`
	TrainUnitsActive int `json:"train_service_units_active"`

	CostThisHour float64   `json:"cost_this_hour"`
	CostPreview  float64   `json:"cost_preview"`
	CostToday    float64   `json:"cost_today"`
	CostHistory  []float64 `json:"cost_history"`

	// PenaltyCost accumulates escalation penalties until the environment books the hour.
	PenaltyCost float64 `json:"penalty_cost"`

	CarbonEmissions     float64 `json:"carbon_emissions"`
	HourlyEmissions     float64 `json:"hourly_emissions"`
	SustainabilityScore float64 `json:"sustainability_score"`

	Weather      Weather           `json:"weather"`
	ActiveEvents []ActiveEvent     `json:"active_events"`
	EventLog     []EventLogEntry   `json:"event_log"`
	ActionLog    []ActionRecord    `json:"action_log"`
	History      []HistorySnapshot `json:"history"`
	Escalations  []Escalation      `json:"operator_escalations"`
}
