package engine

import (
	"math/rand"

	"citypulse/internal/agents"
	"citypulse/internal/models"
	"citypulse/internal/sim"
)

const (
	idleLoadFactor     = 0.3
	idleCrowdingFactor = 0.4

	payloadHistory     = 50
	payloadEscalations = 10
	payloadEventLog    = 10
)

// Trace is the stage-by-stage record of one simulated hour.
type Trace struct {
	T           int                      `json:"t"`
	Hour        int                      `json:"hour"`
	NoService   bool                     `json:"no_service"`
	Monitoring  *agents.MonitoringReport `json:"monitoring,omitempty"`
	Forecast    *sim.Forecast            `json:"forecast,omitempty"`
	Plan        *agents.Plan             `json:"plan,omitempty"`
	Policy      *agents.PolicyResult     `json:"policy,omitempty"`
	Allocation  *agents.Allocation       `json:"allocation,omitempty"`
	Executed    []models.ActionRecord    `json:"executed"`
	Environment sim.StepSummary          `json:"environment"`
}

// Orchestrator runs the hourly control loop over a single city. It is not safe for
// concurrent use; Engine serializes access to it.
type Orchestrator struct {
	city       *models.CityState
	env        *sim.Environment
	forecaster *sim.Forecaster

	busMax          int
	trainMax        int
	reserveFraction float64

	lastActions  []models.ActionRecord
	lastTrace    *Trace
	lastForecast sim.Forecast
}

func NewOrchestrator(rng *rand.Rand, busMax, trainMax int, reserveFraction float64) *Orchestrator {
	o := &Orchestrator{
		busMax:          busMax,
		trainMax:        trainMax,
		reserveFraction: reserveFraction,
	}
	o.Reset(rng)
	return o
}

// Reset rebuilds the initial city and discards every piece of learned state.
func (o *Orchestrator) Reset(rng *rand.Rand) {
	c := models.NewCity()
	c.BusUnitsMax = o.busMax
	c.TrainUnitsMax = o.trainMax
	c.ScheduleServiceUnits()

	o.city = c
	o.env = sim.NewEnvironment(rng)
	o.forecaster = sim.NewForecaster()
	o.lastActions = []models.ActionRecord{}
	o.lastTrace = nil
	o.lastForecast = o.forecaster.Forecast(c)
}

// Restore continues from a previously exported city. The forecaster starts cold.
func (o *Orchestrator) Restore(c *models.CityState, rng *rand.Rand) {
	if c.BusUnitsMax <= 0 {
		c.BusUnitsMax = o.busMax
	}
	if c.TrainUnitsMax <= 0 {
		c.TrainUnitsMax = o.trainMax
	}
	c.ScheduleServiceUnits()

	o.city = c
	o.env = sim.NewEnvironment(rng)
	o.forecaster = sim.NewForecaster()
	o.lastActions = []models.ActionRecord{}
	o.lastTrace = nil
	o.lastForecast = o.forecaster.Forecast(c)
}

func (o *Orchestrator) City() *models.CityState { return o.city }

// Step advances the city exactly one hour and returns the resulting payload.
func (o *Orchestrator) Step() (Payload, *Trace) {
	c := o.city
	c.ResetHourly()
	c.ScheduleServiceUnits()

	trace := &Trace{T: c.T, Hour: c.HourOfDay}
	if models.IsNoService(c.HourOfDay) {
		trace.NoService = true
		trace.Executed = []models.ActionRecord{o.idle()}
	} else {
		report := agents.Observe(c)
		fc := o.forecaster.Forecast(c)
		plan := agents.Propose(report.Observation, fc)
		policy := agents.Sanitize(plan, report.Observation)
		alloc := agents.Allocate(c, policy.Plan, o.reserveFraction)
		trace.Monitoring = &report
		trace.Forecast = &fc
		trace.Plan = &plan
		trace.Policy = &policy
		trace.Allocation = &alloc
		trace.Executed = agents.Execute(c, alloc.Plan)
	}

	trace.Environment = o.env.Step(c)

	// the clock moved: schedule and price the new hour
	c.ScheduleServiceUnits()
	if models.IsNoService(c.HourOfDay) {
		c.CostPreview = 0
	} else {
		for i := range c.Lines {
			if c.Lines[i].Frequency < c.Lines[i].BaseFrequency {
				c.Lines[i].Frequency = c.Lines[i].BaseFrequency
			}
		}
		c.CostPreview = sim.PreviewCost(c)
	}

	o.lastForecast = o.forecaster.Forecast(c)
	metrics := sim.ComputeMetrics(c)
	scores := sim.ComputeScores(c, metrics)
	c.AppendHistory(models.HistorySnapshot{
		T:            c.T,
		Hour:         c.HourOfDay,
		Day:          c.DayIndex,
		Scores:       scores,
		Metrics:      metrics,
		CostThisHour: c.CostThisHour,
		Emissions:    c.HourlyEmissions,
	})

	o.lastActions = trace.Executed
	o.lastTrace = trace
	return o.payload(metrics, scores), trace
}

// idle winds the network down for an hour without scheduled service.
func (o *Orchestrator) idle() models.ActionRecord {
	c := o.city
	c.BusUnitsActive = 0
	c.TrainUnitsActive = 0
	for i := range c.Districts {
		d := &c.Districts[i]
		d.BusLoad *= idleLoadFactor
		d.RailLoad *= idleLoadFactor
		d.StationCrowding *= idleCrowdingFactor
		d.Clamp()
	}
	for i := range c.Lines {
		l := &c.Lines[i]
		l.Frequency = 0
		l.Load *= idleLoadFactor
		l.Clamp()
	}
	rec := models.ActionRecord{
		T:       c.T,
		Hour:    c.HourOfDay,
		Scope:   models.ScopeSystem,
		Target:  "network",
		Actions: []string{"OUT_OF_SERVICE"},
	}
	c.AppendAction(rec)
	return rec
}

// State returns the payload for the current hour without advancing time.
func (o *Orchestrator) State() Payload {
	metrics := sim.ComputeMetrics(o.city)
	return o.payload(metrics, sim.ComputeScores(o.city, metrics))
}

func (o *Orchestrator) Forecast() sim.Forecast { return o.lastForecast }

func (o *Orchestrator) payload(metrics models.Metrics, scores models.Scores) Payload {
	c := o.city
	p := Payload{
		Time:      TimeBlock{T: c.T, Hour: c.HourOfDay, Day: c.DayIndex},
		Scores:    scores,
		Metrics:   metrics,
		Weather:   c.Weather,
		Districts: make(map[string]models.District, len(c.Districts)),
		Lines:     make(map[string]models.RailLine, len(c.Lines)),
		Actions:   append([]models.ActionRecord{}, o.lastActions...),
		Capacity: CapacityBlock{
			BusActive:   c.BusUnitsActive,
			BusMax:      c.BusUnitsMax,
			TrainActive: c.TrainUnitsActive,
			TrainMax:    c.TrainUnitsMax,
		},
		Environment: EnvironmentBlock{
			CarbonEmissions:     round2(c.CarbonEmissions),
			HourlyEmissions:     c.HourlyEmissions,
			SustainabilityScore: round2(c.SustainabilityScore),
		},
		Cost: CostBlock{
			ThisHour: c.CostThisHour,
			Preview:  c.CostPreview,
			Today:    round2(c.CostToday),
			History:  tail(c.CostHistory, len(c.CostHistory)),
		},
		ActiveEvents: tail(c.ActiveEvents, len(c.ActiveEvents)),
		EventLog:     tail(c.EventLog, payloadEventLog),
		History:      tail(c.History, payloadHistory),
		Escalations:  tail(c.Escalations, payloadEscalations),
		NoService:    models.IsNoService(c.HourOfDay),
		Forecast:     o.lastForecast,
		Trace:        o.lastTrace,
	}
	for _, d := range c.Districts {
		p.Districts[d.Name] = d
	}
	for _, l := range c.Lines {
		l.ActionsThisHour = append([]string{}, l.ActionsThisHour...)
		p.Lines[l.ID] = l
	}
	return p
}

// tail copies the last n elements of s.
func tail[T any](s []T, n int) []T {
	if n > len(s) {
		n = len(s)
	}
	out := make([]T, n)
	copy(out, s[len(s)-n:])
	return out
}
