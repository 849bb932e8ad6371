package models

import (
	"math"
	"strings"
)

// NoServiceHours is the window with no scheduled bus or rail service.
var NoServiceHours = map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true}

// PeakHours are the commuter peaks during which advisories are not issued.
var PeakHours = map[int]bool{7: true, 8: true, 9: true, 17: true, 18: true, 19: true}

// HourScale is the fraction of the service-unit maximum scheduled for each hour.
var HourScale = [24]float64{
	0.15, 0, 0, 0, 0, 0,
	0.40, 0.65, 0.85, 0.80, 0.55, 0.50,
	0.55, 0.50, 0.50, 0.55, 0.60,
	0.80, 0.85, 0.70, 0.45, 0.35,
	0.25, 0.18,
}

func IsNoService(hour int) bool { return NoServiceHours[hour] }

func IsPeak(hour int) bool { return PeakHours[hour] }

type districtSeed struct {
	name              string
	population        int
	busCap, railCap   int
	busLoad, railLoad float64
	crowding, traffic float64
	airQuality        float64
}

var districtSeeds = []districtSeed{
	{"Central", 500000, 120, 40, 0.08, 0.06, 0.05, 0.12, 85},
	{"North", 350000, 80, 25, 0.05, 0.04, 0.03, 0.08, 88},
	{"East", 380000, 85, 28, 0.06, 0.05, 0.04, 0.09, 87},
	{"West", 320000, 75, 22, 0.05, 0.04, 0.03, 0.08, 86},
}

type lineSeed struct {
	id, name, color string
	frequency       int
	load            float64
}

var lineSeeds = []lineSeed{
	{"NSL", "North-South Line", "#d42e12", 12, 0.05},
	{"EWL", "East-West Line", "#009645", 12, 0.05},
	{"CCL", "Circle Line", "#fa9e0d", 10, 0.05},
	{"DTL", "Downtown Line", "#005ec4", 10, 0.05},
}

// NewCity builds the fixed initial city at midnight of day one.
func NewCity() *CityState {
	c := &CityState{
		Districts:           make([]District, 0, len(districtSeeds)),
		Lines:               make([]RailLine, 0, len(lineSeeds)),
		DayIndex:            1,
		BusUnitsMax:         BusUnitsMax,
		TrainUnitsMax:       TrainUnitsMax,
		SustainabilityScore: 100,
		Weather:             Weather{Condition: WeatherClear, RemainingHours: 3},
		CostHistory:         []float64{},
		ActiveEvents:        []ActiveEvent{},
		EventLog:            []EventLogEntry{},
		ActionLog:           []ActionRecord{},
		History:             []HistorySnapshot{},
		Escalations:         []Escalation{},
	}
	for _, s := range districtSeeds {
		c.Districts = append(c.Districts, District{
			Name:             s.name,
			Population:       s.population,
			BusCapacity:      s.busCap,
			RailCapacity:     s.railCap,
			BaseBusCapacity:  s.busCap,
			BaseRailCapacity: s.railCap,
			BusLoad:          s.busLoad,
			RailLoad:         s.railLoad,
			StationCrowding:  s.crowding,
			RoadTraffic:      s.traffic,
			AirQuality:       s.airQuality,
			EventDemandMult:  1,
		})
	}
	for _, s := range lineSeeds {
		c.Lines = append(c.Lines, RailLine{
			ID:              s.id,
			Name:            s.name,
			Color:           s.color,
			Frequency:       s.frequency,
			BaseFrequency:   s.frequency,
			Load:            s.load,
			ActionsThisHour: []string{},
		})
	}
	c.ScheduleServiceUnits()
	return c
}

// District returns the district with the given name, or nil.
func (c *CityState) District(name string) *District {
	for i := range c.Districts {
		if c.Districts[i].Name == name {
			return &c.Districts[i]
		}
	}
	return nil
}

// Line returns the rail line with the given id, or nil.
func (c *CityState) Line(id string) *RailLine {
	for i := range c.Lines {
		if strings.EqualFold(c.Lines[i].ID, id) {
			return &c.Lines[i]
		}
	}
	return nil
}

// ScheduleServiceUnits sets the active unit counters for the current hour.
func (c *CityState) ScheduleServiceUnits() {
	if IsNoService(c.HourOfDay) {
		c.BusUnitsActive = 0
		c.TrainUnitsActive = 0
		return
	}
	scale := HourScale[c.HourOfDay]
	c.BusUnitsActive = int(math.Round(float64(c.BusUnitsMax) * scale))
	c.TrainUnitsActive = int(math.Round(float64(c.TrainUnitsMax) * scale))
}

// ResetHourly clears per-hour bookkeeping before the pipeline runs.
func (c *CityState) ResetHourly() {
	for i := range c.Lines {
		c.Lines[i].ActionsThisHour = c.Lines[i].ActionsThisHour[:0]
	}
}

// AdvanceClock moves the clock one hour and handles the midnight rollover.
func (c *CityState) AdvanceClock() {
	c.T++
	c.HourOfDay = c.T % 24
	c.DayIndex = c.T/24 + 1
	if c.HourOfDay == 0 {
		c.CostToday = 0
	}
}

func (c *CityState) AddEmissions(amount float64) {
	c.CarbonEmissions += amount
	c.HourlyEmissions += amount
}

func (c *CityState) RecordCost(cost float64) {
	c.CostThisHour = round1(cost)
	c.CostToday += c.CostThisHour
	c.CostHistory = append(c.CostHistory, c.CostThisHour)
	if len(c.CostHistory) > maxCostHistory {
		c.CostHistory = c.CostHistory[len(c.CostHistory)-maxCostHistory:]
	}
}

func (c *CityState) AppendAction(rec ActionRecord) {
	c.ActionLog = append(c.ActionLog, rec)
	if len(c.ActionLog) > maxActionLog {
		c.ActionLog = c.ActionLog[len(c.ActionLog)-maxActionLog:]
	}
}

func (c *CityState) AppendEscalation(e Escalation) {
	c.Escalations = append(c.Escalations, e)
	if len(c.Escalations) > maxEscalations {
		c.Escalations = c.Escalations[len(c.Escalations)-maxEscalations:]
	}
}

func (c *CityState) AppendHistory(h HistorySnapshot) {
	c.History = append(c.History, h)
	if len(c.History) > maxHistory {
		c.History = c.History[len(c.History)-maxHistory:]
	}
}

// Clamp forces every ratio field of the district into its documented range.
func (d *District) Clamp() {
	d.BusLoad = Clamp(d.BusLoad, LoadFloor, LoadCeiling)
	d.RailLoad = Clamp(d.RailLoad, LoadFloor, LoadCeiling)
	d.StationCrowding = Clamp(d.StationCrowding, 0, 1)
	d.RoadTraffic = Clamp(d.RoadTraffic, 0, 1)
	d.AirQuality = Clamp(d.AirQuality, AirFloor, AirCeiling)
	if d.BusCapacity < 0 {
		d.BusCapacity = 0
	}
	if d.RailCapacity < 0 {
		d.RailCapacity = 0
	}
}

func (l *RailLine) Clamp() {
	l.Load = Clamp(l.Load, LoadFloor, LoadCeiling)
	l.Disruption = Clamp(l.Disruption, 0, 1)
	if l.Frequency < 0 {
		l.Frequency = 0
	}
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
