package sim

import (
	"math"
	"math/rand"

	"citypulse/internal/models"
)

const (
	busSmoothing      = 0.4
	railSmoothing     = 0.4
	crowdingSmoothing = 0.35
	trafficSmoothing  = 0.3
	airSmoothing      = 0.15
	lineSmoothing     = 0.4

	busReferenceCapacity  = 90.0
	railReferenceCapacity = 40.0

	incidentTraffic     = 0.15
	railEventLoadBoost  = 1.2
	railEventDisruption = 0.3
	disruptionDecay     = 0.05
)

// StepSummary describes what one environment hour did.
type StepSummary struct {
	Triggered      []models.ActiveEvent `json:"events_triggered"`
	Ended          []models.ActiveEvent `json:"events_ended"`
	WeatherChanged bool                 `json:"weather_changed"`
	Emissions      float64              `json:"emissions"`
	Cost           float64              `json:"cost"`
}

// Environment advances a city one hour at a time. It holds no city state of its own.
type Environment struct {
	rng *rand.Rand
}

func NewEnvironment(rng *rand.Rand) *Environment {
	return &Environment{rng: rng}
}

// Step advances the city by exactly one hour.
func (e *Environment) Step(c *models.CityState) StepSummary {
	var sum StepSummary
	c.HourlyEmissions = 0
	c.CostThisHour = 0

	sum.WeatherChanged = c.UpdateWeather(e.rng)

	if ev := c.TriggerRandomEvent(e.rng); ev != nil {
		sum.Triggered = append(sum.Triggered, *ev)
	}
	sum.Ended = c.UpdateEvents()

	wave := Wave(c.HourOfDay)
	fx := c.Weather.Effects()
	incidents := c.RoadIncidentDistricts()

	for i := range c.Districts {
		updateDistrict(&c.Districts[i], wave, fx, incidents[c.Districts[i].Name])
	}
	for i := range c.Lines {
		e.updateLine(c, &c.Lines[i], wave, fx)
	}

	sum.Emissions = accountEmissions(c)
	sum.Cost = accountCost(c)
	decayCapacity(c)
	c.AdvanceClock()
	return sum
}

func updateDistrict(d *models.District, wave float64, fx models.WeatherEffects, incident bool) {
	eff := EffectiveDemand(wave, d)
	nudge := 0.0
	if d.AdvisoryActive {
		nudge = models.AdvisoryReduction
	}

	busCap := math.Max(float64(d.BusCapacity), 1)
	busTarget := (eff*models.BusTargetLoad + 0.05 - nudge + fx.BusPenalty) * busReferenceCapacity / busCap
	d.BusLoad = smooth(d.BusLoad, busTarget, busSmoothing)

	railCap := math.Max(float64(d.RailCapacity), 1)
	railTarget := (eff*models.RailTargetLoad + 0.05 - nudge) * railReferenceCapacity / railCap
	d.RailLoad = smooth(d.RailLoad, railTarget, railSmoothing)

	crowdTarget := 0.5*d.RailLoad + 0.4*eff + fx.Crowding
	d.StationCrowding = smooth(d.StationCrowding, crowdTarget, crowdingSmoothing)

	// bus overload beyond 0.9 spills commuters onto the roads
	trafficTarget := 0.08 + 0.5*eff + math.Max(0, d.BusLoad-0.9)*0.5 + fx.Traffic
	if incident {
		trafficTarget += incidentTraffic
	}
	d.RoadTraffic = models.Clamp(smooth(d.RoadTraffic, trafficTarget, trafficSmoothing), models.TrafficMin, 1)

	airTarget := 90 - 40*d.RoadTraffic - fx.AirPenalty
	d.AirQuality = smooth(d.AirQuality, airTarget, airSmoothing)

	if d.AdvisoryActive {
		d.AdvisoryTimer--
		if d.AdvisoryTimer <= 0 {
			d.AdvisoryActive = false
			d.AdvisoryTimer = 0
		}
	}
	d.Clamp()
}

func (e *Environment) updateLine(c *models.CityState, l *models.RailLine, wave float64, fx models.WeatherEffects) {
	target := wave*0.85 + 0.05
	for _, ev := range c.ActiveEvents {
		if ev.ReducesRail && ev.AffectsLine(l.ID) {
			target *= railEventLoadBoost
			l.Disruption += railEventDisruption
		}
	}
	if fx.Disruption > 0 && e.rng.Float64() < fx.Disruption*0.3 {
		l.Disruption += 0.1
	}
	l.Disruption = models.Clamp(l.Disruption, 0, 1)

	target *= 1 + l.Disruption*0.3
	// frequency 0 only happens inside the no-service window; treat it as baseline
	if l.Frequency > 0 && l.BaseFrequency > 0 {
		target *= float64(l.BaseFrequency) / float64(l.Frequency)
	}
	target += fx.Crowding * 0.5
	l.Load = smooth(l.Load, target, lineSmoothing)

	l.Disruption = math.Max(0, l.Disruption-disruptionDecay)
	if excess := l.Frequency - l.BaseFrequency; excess > 0 {
		l.Frequency -= max(1, int(float64(excess)*models.CapacityDecayRate))
		if l.Frequency < l.BaseFrequency {
			l.Frequency = l.BaseFrequency
		}
	}
	l.Clamp()
}

func accountEmissions(c *models.CityState) float64 {
	total := 0.0
	for _, d := range c.Districts {
		total += float64(d.BusCapacity) * d.BusLoad * models.BusEmissions * 0.01
		total += d.RoadTraffic * models.TrafficEmissionsRate * 0.1
	}
	for _, l := range c.Lines {
		total += float64(l.Frequency) * l.Load * models.RailEmissions * 0.05
	}
	total = round2(total)
	c.AddEmissions(total)

	switch {
	case c.HourlyEmissions < 50:
		c.SustainabilityScore += 0.1
	case c.HourlyEmissions > 150:
		c.SustainabilityScore -= 0.2
	}
	c.SustainabilityScore = models.Clamp(c.SustainabilityScore, 0, 100)
	return total
}

// OperatingCost prices the scheduled service units of the current hour.
func OperatingCost(c *models.CityState) float64 {
	cost := float64(c.BusUnitsActive)*models.CostBusActive + float64(c.TrainUnitsActive)*models.CostTrainActive
	if c.BusUnitsActive > 0 {
		idle := (c.BusUnitsMax - c.BusUnitsActive) + (c.TrainUnitsMax - c.TrainUnitsActive)
		cost += float64(max(0, idle)) * models.CostReserveIdle
	}
	return cost
}

// ServicePenalties charges every critically crowded district and every delayed line.
func ServicePenalties(c *models.CityState) float64 {
	cost := 0.0
	for _, d := range c.Districts {
		if d.StationCrowding > models.CrowdingCritical {
			cost += models.CostCrowdingPenalty
		}
	}
	for _, l := range c.Lines {
		if l.Disruption > models.DelayThreshold {
			cost += models.CostDelayPenalty
		}
	}
	return cost
}

// PreviewCost is the cost of the coming hour if nothing changes.
func PreviewCost(c *models.CityState) float64 {
	return OperatingCost(c) + ServicePenalties(c)
}

func accountCost(c *models.CityState) float64 {
	cost := PreviewCost(c) + c.PenaltyCost
	c.PenaltyCost = 0
	c.RecordCost(cost)
	return c.CostThisHour
}

// decayCapacity pulls boosted capacity back toward baseline, at least one unit per hour.
func decayCapacity(c *models.CityState) {
	for i := range c.Districts {
		d := &c.Districts[i]
		d.BusCapacity = decayToward(d.BusCapacity, d.BaseBusCapacity)
		d.RailCapacity = decayToward(d.RailCapacity, d.BaseRailCapacity)
	}
}

func decayToward(current, base int) int {
	excess := current - base
	if excess <= 0 {
		return current
	}
	step := max(1, int(float64(excess)*models.CapacityDecayRate))
	return max(base, current-step)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
