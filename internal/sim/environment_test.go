package sim

import (
	"math/rand"
	"reflect"
	"testing"

	"citypulse/internal/models"
)

func TestWaveShape(t *testing.T) {
	if Wave(8) != 1 || Wave(18) != 1 {
		t.Fatalf("peaks should reach 1, got %.3f/%.3f", Wave(8), Wave(18))
	}
	for h := 1; h <= 4; h++ {
		if Wave(h) != 0.02 {
			t.Fatalf("hour %d should be near zero, got %.3f", h, Wave(h))
		}
	}
	for h := 6; h < 8; h++ {
		if Wave(h+1) <= Wave(h) {
			t.Fatalf("morning wave should rise between %d and %d", h, h+1)
		}
	}
	if Wave(13) != 0.4 {
		t.Fatalf("midday floor = %.3f, want 0.4", Wave(13))
	}
	if Wave(23) >= Wave(21) {
		t.Fatalf("late night should decline")
	}
}

func assertRanges(t *testing.T, c *models.CityState) {
	t.Helper()
	for _, d := range c.Districts {
		if d.BusLoad < models.LoadFloor || d.BusLoad > models.LoadCeiling ||
			d.RailLoad < models.LoadFloor || d.RailLoad > models.LoadCeiling {
			t.Fatalf("t=%d %s load out of range: %+v", c.T, d.Name, d)
		}
		if d.StationCrowding < 0 || d.StationCrowding > 1 || d.RoadTraffic < 0 || d.RoadTraffic > 1 {
			t.Fatalf("t=%d %s ratio out of range: %+v", c.T, d.Name, d)
		}
		if d.AirQuality < models.AirFloor || d.AirQuality > models.AirCeiling {
			t.Fatalf("t=%d %s air out of range: %.2f", c.T, d.Name, d.AirQuality)
		}
		if d.BusCapacity < 0 || d.RailCapacity < 0 {
			t.Fatalf("t=%d %s negative capacity", c.T, d.Name)
		}
	}
	for _, l := range c.Lines {
		if l.Load < models.LoadFloor || l.Load > models.LoadCeiling || l.Disruption < 0 || l.Disruption > 1 {
			t.Fatalf("t=%d %s out of range: %+v", c.T, l.ID, l)
		}
	}
}

func TestEnvironmentStepKeepsRanges(t *testing.T) {
	c := models.NewCity()
	env := NewEnvironment(rand.New(rand.NewSource(42)))
	for i := 0; i < 24*7; i++ {
		env.Step(c)
		assertRanges(t, c)
		if c.HourOfDay != c.T%24 || c.DayIndex != c.T/24+1 {
			t.Fatalf("clock invariant broken at t=%d", c.T)
		}
	}
}

func TestEnvironmentDeterministic(t *testing.T) {
	run := func() *models.CityState {
		c := models.NewCity()
		env := NewEnvironment(rand.New(rand.NewSource(99)))
		for i := 0; i < 72; i++ {
			env.Step(c)
		}
		return c
	}
	if a, b := run(), run(); !reflect.DeepEqual(a, b) {
		t.Fatalf("same seed produced different cities")
	}
}

func TestCapacityDecayConverges(t *testing.T) {
	c := models.NewCity()
	d := &c.Districts[0]
	d.BusCapacity = d.BaseBusCapacity + 30
	d.RailCapacity = d.BaseRailCapacity + 3
	env := NewEnvironment(rand.New(rand.NewSource(1)))

	prev := d.BusCapacity
	reached := false
	for i := 0; i < 60; i++ {
		env.Step(c)
		cur := c.Districts[0].BusCapacity
		if reached {
			if cur != c.Districts[0].BaseBusCapacity {
				t.Fatalf("capacity left baseline after converging: %d", cur)
			}
			continue
		}
		if cur >= prev {
			t.Fatalf("capacity did not strictly decrease: %d -> %d", prev, cur)
		}
		if cur == c.Districts[0].BaseBusCapacity {
			reached = true
		}
		prev = cur
	}
	if !reached {
		t.Fatalf("capacity never reached baseline")
	}
	if c.Districts[0].RailCapacity != c.Districts[0].BaseRailCapacity {
		t.Fatalf("rail capacity did not converge: %d", c.Districts[0].RailCapacity)
	}
}

func TestLineFrequencyDecaysToBaseline(t *testing.T) {
	c := models.NewCity()
	c.Lines[0].Frequency = c.Lines[0].BaseFrequency + 3
	env := NewEnvironment(rand.New(rand.NewSource(3)))
	for i := 0; i < 3; i++ {
		env.Step(c)
	}
	if c.Lines[0].Frequency != c.Lines[0].BaseFrequency {
		t.Fatalf("frequency = %d, want %d", c.Lines[0].Frequency, c.Lines[0].BaseFrequency)
	}
}

func TestCostIncludesPenalties(t *testing.T) {
	c := models.NewCity()
	c.HourOfDay = 8
	c.ScheduleServiceUnits()
	c.PenaltyCost = models.CostEscalation
	want := OperatingCost(c) + models.CostEscalation

	accountCost(c)
	if c.CostThisHour != want {
		t.Fatalf("cost = %.1f, want %.1f", c.CostThisHour, want)
	}
	if c.PenaltyCost != 0 {
		t.Fatalf("penalty should be consumed")
	}
	if len(c.CostHistory) != 1 || c.CostToday != want {
		t.Fatalf("cost accumulators not updated: %+v %.1f", c.CostHistory, c.CostToday)
	}
}

func TestPreviewCostIncludesServicePenalties(t *testing.T) {
	c := models.NewCity()
	c.HourOfDay = 8
	c.ScheduleServiceUnits()
	if got := PreviewCost(c); got != OperatingCost(c) {
		t.Fatalf("calm city preview = %.1f, want operating cost %.1f", got, OperatingCost(c))
	}

	c.Districts[0].StationCrowding = 0.95
	c.Lines[1].Disruption = 0.4
	c.Lines[2].Disruption = models.DelayThreshold
	want := OperatingCost(c) + models.CostCrowdingPenalty + models.CostDelayPenalty
	if got := PreviewCost(c); got != want {
		t.Fatalf("preview = %.1f, want %.1f", got, want)
	}

	accountCost(c)
	if d := c.CostThisHour - want; d > 0.05 || d < -0.05 {
		t.Fatalf("booked cost %.1f should match the preview %.1f", c.CostThisHour, want)
	}
}

func TestOperatingCostZeroWithoutService(t *testing.T) {
	c := models.NewCity()
	c.HourOfDay = 3
	c.ScheduleServiceUnits()
	if got := OperatingCost(c); got != 0 {
		t.Fatalf("no-service cost = %.1f, want 0", got)
	}
}

func TestRoadIncidentRaisesTraffic(t *testing.T) {
	base := models.NewCity()
	hit := models.NewCity()
	for _, def := range models.EventCatalog {
		if def.ID == "expressway_crash" {
			hit.StartEvent(models.NewActiveEvent(def))
		}
	}
	fx := models.WeatherEffects{}
	updateDistrict(base.District("East"), Wave(8), fx, false)
	updateDistrict(hit.District("East"), Wave(8), fx, true)
	if hit.District("East").RoadTraffic <= base.District("East").RoadTraffic {
		t.Fatalf("incident should raise traffic")
	}
}
