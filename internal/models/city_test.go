package models

import (
	"math/rand"
	"testing"
)

func TestNewCityInitialConfiguration(t *testing.T) {
	c := NewCity()
	if len(c.Districts) != 4 || len(c.Lines) != 4 {
		t.Fatalf("expected 4 districts and 4 lines, got %d/%d", len(c.Districts), len(c.Lines))
	}
	central := c.District("Central")
	if central == nil {
		t.Fatalf("Central district missing")
	}
	if central.BusLoad != 0.08 || central.BusCapacity != 120 || central.BaseBusCapacity != 120 {
		t.Fatalf("unexpected Central seed: %+v", *central)
	}
	if c.T != 0 || c.HourOfDay != 0 || c.DayIndex != 1 {
		t.Fatalf("expected midnight of day 1, got t=%d hour=%d day=%d", c.T, c.HourOfDay, c.DayIndex)
	}
	if c.Line("nsl") == nil || c.Line("XYZ") != nil {
		t.Fatalf("line lookup mismatch")
	}
	if c.Weather.Condition != WeatherClear || c.Weather.RemainingHours != 3 {
		t.Fatalf("unexpected initial weather %+v", c.Weather)
	}
	// hour 0 runs at 15% of maximum
	if c.BusUnitsActive != 8 || c.TrainUnitsActive != 3 {
		t.Fatalf("expected 8 bus / 3 train units at hour 0, got %d/%d", c.BusUnitsActive, c.TrainUnitsActive)
	}
}

func TestAdvanceClockRollsDayAndResetsDailyCost(t *testing.T) {
	c := NewCity()
	c.CostToday = 500
	for i := 0; i < 23; i++ {
		c.AdvanceClock()
	}
	if c.HourOfDay != 23 || c.DayIndex != 1 || c.CostToday != 500 {
		t.Fatalf("unexpected clock before wrap: hour=%d day=%d cost=%.1f", c.HourOfDay, c.DayIndex, c.CostToday)
	}
	c.AdvanceClock()
	if c.HourOfDay != 0 || c.DayIndex != 2 {
		t.Fatalf("expected hour 0 of day 2, got %d/%d", c.HourOfDay, c.DayIndex)
	}
	if c.CostToday != 0 {
		t.Fatalf("daily cost should reset at midnight, got %.1f", c.CostToday)
	}
}

func TestScheduleServiceUnitsNoServiceWindow(t *testing.T) {
	c := NewCity()
	for hour := 0; hour < 24; hour++ {
		c.HourOfDay = hour
		c.ScheduleServiceUnits()
		if IsNoService(hour) {
			if c.BusUnitsActive != 0 || c.TrainUnitsActive != 0 {
				t.Fatalf("hour %d: expected zero units, got %d/%d", hour, c.BusUnitsActive, c.TrainUnitsActive)
			}
			continue
		}
		if c.BusUnitsActive <= 0 {
			t.Fatalf("hour %d: expected bus units, got %d", hour, c.BusUnitsActive)
		}
	}
}

func TestEventLifecycleMultipliers(t *testing.T) {
	c := NewCity()
	var surge, storm EventDef
	for _, def := range EventCatalog {
		switch def.ID {
		case "rush_hour_surge":
			surge = def
		case "thunderstorm_warning":
			storm = def
		}
	}
	c.StartEvent(NewActiveEvent(surge))
	c.StartEvent(NewActiveEvent(storm))
	c.UpdateEvents()

	// the storm lasts one hour and expires on the first update
	if len(c.ActiveEvents) != 1 || c.ActiveEvents[0].ID != "rush_hour_surge" {
		t.Fatalf("unexpected active events %+v", c.ActiveEvents)
	}
	if got := c.District("Central").EventDemandMult; got != 1.3 {
		t.Fatalf("Central multiplier = %.3f, want 1.3", got)
	}
	if got := c.District("North").EventDemandMult; got != 1 {
		t.Fatalf("North multiplier = %.3f, want 1", got)
	}

	c.UpdateEvents()
	if len(c.ActiveEvents) != 0 {
		t.Fatalf("expected all events expired, got %d", len(c.ActiveEvents))
	}
	if got := c.District("Central").EventDemandMult; got != 1 {
		t.Fatalf("multiplier should return to 1 after expiry, got %.3f", got)
	}
	ends := 0
	for _, e := range c.EventLog {
		if e.Type == "event_end" {
			ends++
		}
	}
	if ends != 2 {
		t.Fatalf("expected 2 event_end log entries, got %d", ends)
	}
}

func TestEventChanceThrottle(t *testing.T) {
	if EventChance(8, 0) != 0.15 || EventChance(12, 0) != 0.08 || EventChance(2, 0) != 0.05 {
		t.Fatalf("unexpected hourly buckets")
	}
	if got := EventChance(8, 2); got < 0.0449 || got > 0.0451 {
		t.Fatalf("expected throttled chance 0.045, got %.4f", got)
	}
}

func TestRoadIncidentDistricts(t *testing.T) {
	c := NewCity()
	for _, def := range EventCatalog {
		if def.ID == "expressway_crash" {
			c.StartEvent(NewActiveEvent(def))
		}
	}
	got := c.RoadIncidentDistricts()
	if !got["East"] || got["Central"] {
		t.Fatalf("unexpected incident districts %v", got)
	}
}

func TestLogCaps(t *testing.T) {
	c := NewCity()
	for i := 0; i < maxEscalations+10; i++ {
		c.AppendEscalation(Escalation{T: i})
	}
	if len(c.Escalations) != maxEscalations || c.Escalations[0].T != 10 {
		t.Fatalf("escalations not capped: len=%d first=%d", len(c.Escalations), c.Escalations[0].T)
	}
	for i := 0; i < maxCostHistory+5; i++ {
		c.RecordCost(1.26)
	}
	if len(c.CostHistory) != maxCostHistory {
		t.Fatalf("cost history not capped: %d", len(c.CostHistory))
	}
	if c.CostThisHour != 1.3 {
		t.Fatalf("cost should round to one decimal, got %v", c.CostThisHour)
	}
}

func TestUpdateWeatherResamplesOnExpiry(t *testing.T) {
	c := NewCity()
	rng := rand.New(rand.NewSource(7))
	changed := 0
	for i := 0; i < 200; i++ {
		c.HourOfDay = i % 24
		if c.UpdateWeather(rng) {
			changed++
			w := c.Weather
			if w.RemainingHours < 2 || w.RemainingHours > 5 {
				t.Fatalf("duration out of range: %d", w.RemainingHours)
			}
			if w.Condition == WeatherClear && w.Intensity != 0 {
				t.Fatalf("clear weather must have zero intensity")
			}
			if w.Intensity < 0 || w.Intensity > 1 {
				t.Fatalf("intensity out of range: %v", w.Intensity)
			}
		}
	}
	if changed == 0 {
		t.Fatalf("weather never resampled")
	}
}

func TestWeatherTablesFollowTimeOfDay(t *testing.T) {
	sample := func(hour int) map[WeatherCondition]int {
		c := NewCity()
		c.HourOfDay = hour
		rng := rand.New(rand.NewSource(11))
		counts := map[WeatherCondition]int{}
		for i := 0; i < 2000; i++ {
			c.Weather.RemainingHours = 0
			if !c.UpdateWeather(rng) {
				t.Fatalf("hour %d: expired weather was not resampled", hour)
			}
			counts[c.Weather.Condition]++
		}
		return counts
	}
	wet := func(m map[WeatherCondition]int) int {
		return m[WeatherLightRain] + m[WeatherHeavyRain] + m[WeatherThunderstorm]
	}

	morning, afternoon := sample(8), sample(15)
	if morning[WeatherHaze] <= afternoon[WeatherHaze] {
		t.Fatalf("haze should dominate mornings: morning=%d afternoon=%d", morning[WeatherHaze], afternoon[WeatherHaze])
	}
	if wet(afternoon) <= wet(morning) {
		t.Fatalf("rain should dominate afternoons: morning=%d afternoon=%d", wet(morning), wet(afternoon))
	}
	if afternoon[WeatherThunderstorm] <= morning[WeatherThunderstorm] {
		t.Fatalf("thunderstorms should be more frequent in the afternoon: morning=%d afternoon=%d",
			morning[WeatherThunderstorm], afternoon[WeatherThunderstorm])
	}

	for hour, want := range map[int]float64{4: 0.12, 5: 0.38, 10: 0.38, 11: 0.15, 18: 0.05, 19: 0.12} {
		for _, w := range weatherWeightsFor(hour) {
			if w.condition == WeatherHaze && w.weight != want {
				t.Fatalf("hour %d haze weight = %v, want %v", hour, w.weight, want)
			}
		}
	}
}

func TestWeatherEffects(t *testing.T) {
	storm := Weather{Condition: WeatherThunderstorm, Intensity: 1}.Effects()
	if storm.Disruption != 0.15 || storm.Traffic != 0.15 {
		t.Fatalf("unexpected storm effects %+v", storm)
	}
	haze := Weather{Condition: WeatherHaze, Intensity: 0.5}.Effects()
	if haze.AirPenalty != 7.5 || haze.Traffic != 0 {
		t.Fatalf("unexpected haze effects %+v", haze)
	}
	if (Weather{Condition: WeatherClear}).Effects() != (WeatherEffects{}) {
		t.Fatalf("clear weather should have no effects")
	}
}

func TestClampDistrict(t *testing.T) {
	d := District{BusLoad: 3, RailLoad: -1, StationCrowding: 1.5, RoadTraffic: -0.2, AirQuality: 5, BusCapacity: -3}
	d.Clamp()
	if d.BusLoad != LoadCeiling || d.RailLoad != LoadFloor || d.StationCrowding != 1 ||
		d.RoadTraffic != 0 || d.AirQuality != AirFloor || d.BusCapacity != 0 {
		t.Fatalf("clamp failed: %+v", d)
	}
}
