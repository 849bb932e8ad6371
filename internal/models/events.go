package models

import "math/rand"

// AllDistricts scopes an event to every district.
const AllDistricts = "all"

// EventCatalog is the static set of disruptions and demand surges.
var EventCatalog = []EventDef{
	{ID: "rush_hour_surge", Name: "Rush Hour Surge", Icon: "🚦", Kind: EventRegular,
		Districts: []string{"Central"}, DemandMult: 1.3, Duration: 2},
	{ID: "waterfront_concert", Name: "Concert at the Waterfront", Icon: "🎵", Kind: EventRegular,
		Districts: []string{"Central", "East"}, DemandMult: 1.4, Duration: 3},
	{ID: "airport_rush", Name: "Airport Arrivals Rush", Icon: "✈️", Kind: EventRegular,
		Districts: []string{"East"}, DemandMult: 1.5, Duration: 2},
	{ID: "industrial_event", Name: "Industrial Park Expo", Icon: "🏭", Kind: EventRegular,
		Districts: []string{"West"}, DemandMult: 1.35, Duration: 2},
	{ID: "stadium_match", Name: "Stadium Match Day", Icon: "🏟️", Kind: EventRegular,
		Districts: []string{"North"}, DemandMult: 1.4, Duration: 3},
	{ID: "rain_forecast", Name: "Heavy Rain Expected", Icon: "🌧️", Kind: EventWeather,
		Districts: []string{AllDistricts}, DemandMult: 1.25, Duration: 4,
		Description: "Slower bus speeds, higher congestion"},
	{ID: "thunderstorm_warning", Name: "Thunderstorm Warning", Icon: "⛈️", Kind: EventWeather,
		Districts: []string{AllDistricts}, DemandMult: 1.3, Duration: 1,
		Description: "Service delays, seek shelter"},
	{ID: "light_rain", Name: "Light Rain", Icon: "🌦️", Kind: EventWeather,
		Districts: []string{"North", "West"}, DemandMult: 1.1, Duration: 3,
		Description: "Minor delays expected"},
	{ID: "rail_maintenance", Name: "Rail Line Maintenance", Icon: "🔧", Kind: EventRailDisruption,
		Districts: []string{"North", "Central"}, Lines: []string{"NSL"}, DemandMult: 1.2, Duration: 2,
		ReducesRail: true, Severity: "low", Description: "Reduced frequency for track works"},
	{ID: "nsl_delay", Name: "NSL: Service Delay", Icon: "🚨", Kind: EventRailDisruption,
		Districts: []string{"North", "Central"}, Lines: []string{"NSL"}, DemandMult: 1.4, Duration: 2,
		ReducesRail: true, Severity: "medium", Description: "Signalling fault causing delays"},
	{ID: "ewl_breakdown", Name: "EWL: Train Breakdown", Icon: "⚠️", Kind: EventRailDisruption,
		Districts: []string{"East", "Central"}, Lines: []string{"EWL"}, DemandMult: 1.6, Duration: 3,
		ReducesRail: true, Severity: "high", Description: "Train fault, service disrupted"},
	{ID: "ccl_delay", Name: "CCL: Minor Delay", Icon: "⏰", Kind: EventRailDisruption,
		Districts: []string{"Central"}, Lines: []string{"CCL"}, DemandMult: 1.2, Duration: 1,
		ReducesRail: true, Severity: "low", Description: "Platform door issue"},
	{ID: "dtl_partial", Name: "DTL: Partial Closure", Icon: "🚧", Kind: EventRailDisruption,
		Districts: []string{"Central", "North"}, Lines: []string{"DTL"}, DemandMult: 1.5, Duration: 4,
		ReducesRail: true, Severity: "high", Description: "Track maintenance, partial service"},
	{ID: "expressway_crash", Name: "Expressway Collision", Icon: "🚗", Kind: EventRoadIncident,
		Districts: []string{"East"}, DemandMult: 1.1, Duration: 2,
		Severity: "medium", Description: "Two lanes closed eastbound"},
	{ID: "central_roadworks", Name: "Emergency Roadworks", Icon: "🚧", Kind: EventRoadIncident,
		Districts: []string{"Central"}, DemandMult: 1.05, Duration: 3,
		Severity: "low", Description: "Burst water main, lane closures"},
}

// NewActiveEvent instantiates a catalog entry with its full duration.
func NewActiveEvent(def EventDef) ActiveEvent {
	return ActiveEvent{
		ID:             def.ID,
		Name:           def.Name,
		Icon:           def.Icon,
		Kind:           def.Kind,
		Districts:      append([]string(nil), def.Districts...),
		Lines:          append([]string(nil), def.Lines...),
		DemandMult:     def.DemandMult,
		RemainingHours: def.Duration,
		ReducesRail:    def.ReducesRail,
		Severity:       def.Severity,
		Description:    def.Description,
	}
}

func (e ActiveEvent) RoadIncident() bool { return e.Kind == EventRoadIncident }

func (e ActiveEvent) AffectsDistrict(name string) bool {
	for _, d := range e.Districts {
		if d == AllDistricts || d == name {
			return true
		}
	}
	return false
}

func (e ActiveEvent) AffectsLine(id string) bool {
	for _, l := range e.Lines {
		if l == id {
			return true
		}
	}
	return false
}

// EventChance is the hourly trigger probability for the given hour and load of active events.
func EventChance(hour, active int) float64 {
	chance := 0.05
	switch {
	case (hour >= 7 && hour <= 9) || (hour >= 17 && hour <= 19):
		chance = 0.15
	case hour >= 10 && hour <= 16:
		chance = 0.08
	}
	if active >= 2 {
		chance *= 0.3
	}
	return chance
}

// TriggerRandomEvent possibly starts one catalog event. It returns nil when nothing fires.
func (c *CityState) TriggerRandomEvent(rng *rand.Rand) *ActiveEvent {
	if rng.Float64() >= EventChance(c.HourOfDay, len(c.ActiveEvents)) {
		return nil
	}
	ev := NewActiveEvent(EventCatalog[rng.Intn(len(EventCatalog))])
	c.StartEvent(ev)
	return &c.ActiveEvents[len(c.ActiveEvents)-1]
}

// StartEvent adds an event to the active set and logs its start.
func (c *CityState) StartEvent(ev ActiveEvent) {
	c.ActiveEvents = append(c.ActiveEvents, ev)
	c.appendEventLog(EventLogEntry{T: c.T, Type: "event_start", EventID: ev.ID, Name: ev.Name})
}

// UpdateEvents counts down every active event, evicts the expired ones and
// recomputes each district's multiplicative demand factor. It returns the ended events.
func (c *CityState) UpdateEvents() []ActiveEvent {
	var ended []ActiveEvent
	kept := c.ActiveEvents[:0]
	for _, ev := range c.ActiveEvents {
		ev.RemainingHours--
		if ev.RemainingHours <= 0 {
			ended = append(ended, ev)
			c.appendEventLog(EventLogEntry{T: c.T, Type: "event_end", EventID: ev.ID, Name: ev.Name})
			continue
		}
		kept = append(kept, ev)
	}
	c.ActiveEvents = kept

	for i := range c.Districts {
		d := &c.Districts[i]
		d.EventDemandMult = c.DistrictEventMult(d.Name)
	}
	return ended
}

// DistrictEventMult is the product of the multipliers of all events affecting the district.
func (c *CityState) DistrictEventMult(name string) float64 {
	mult := 1.0
	for _, ev := range c.ActiveEvents {
		if ev.AffectsDistrict(name) {
			mult *= ev.DemandMult
		}
	}
	return mult
}

// LineEventMult is the product of the multipliers of all events naming the line.
func (c *CityState) LineEventMult(id string) float64 {
	mult := 1.0
	for _, ev := range c.ActiveEvents {
		if ev.AffectsLine(id) {
			mult *= ev.DemandMult
		}
	}
	return mult
}

// RoadIncidentDistricts returns the set of districts with an active road incident.
func (c *CityState) RoadIncidentDistricts() map[string]bool {
	out := make(map[string]bool)
	for _, ev := range c.ActiveEvents {
		if !ev.RoadIncident() {
			continue
		}
		for _, d := range ev.Districts {
			if d == AllDistricts {
				for _, dist := range c.Districts {
					out[dist.Name] = true
				}
				continue
			}
			out[d] = true
		}
	}
	return out
}

func (c *CityState) appendEventLog(e EventLogEntry) {
	c.EventLog = append(c.EventLog, e)
	if len(c.EventLog) > maxEventLog {
		c.EventLog = c.EventLog[len(c.EventLog)-maxEventLog:]
	}
}
