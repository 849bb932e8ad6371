package agents

import (
	"fmt"

	"citypulse/internal/models"
	"citypulse/internal/sim"
)

const (
	proactiveBusThreshold  = 0.85
	proactiveLineThreshold = 0.80
	advisoryForecastStress = 0.75
	costHoldLevel          = 0.40
	lineLowLoad            = 0.30
	headwayBandLow         = 0.70
	lineHeadwayBandLow     = 0.60
)

type districtInput struct {
	obs  DistrictObservation
	fc   sim.EntityForecast
	peak bool
}

// districtRule is one guarded entry of a decision ladder. apply returns a reasoning line.
type districtRule struct {
	name  string
	when  func(in districtInput) bool
	apply func(in districtInput, p *DistrictProposal) string
}

// deploymentLadder is evaluated top to bottom and stops at the first rule that matches.
var deploymentLadder = []districtRule{
	{
		name: "proactive_deploy",
		when: func(in districtInput) bool {
			return in.fc.Peak > proactiveBusThreshold && in.obs.BusLoad <= models.BusTargetLoad
		},
		apply: func(in districtInput, p *DistrictProposal) string {
			p.Bus = BusDeployReserve
			p.BusExtra = min(5, max(1, int((in.fc.Peak-proactiveBusThreshold)*15)))
			return fmt.Sprintf("forecast peak %.2f ahead, pre-positioning %d reserve units", in.fc.Peak, p.BusExtra)
		},
	},
	{
		name: "reactive_reroute",
		when: func(in districtInput) bool {
			return in.obs.BusLoad > models.BusTargetLoad && in.obs.RoadIncident
		},
		apply: func(in districtInput, p *DistrictProposal) string {
			p.Reroute = true
			p.Bus = BusDeployReserve
			p.BusExtra = min(8, max(1, int((in.obs.BusLoad-models.BusTargetLoad)*20)))
			return fmt.Sprintf("bus load %.2f with road incident, rerouting and deploying %d units", in.obs.BusLoad, p.BusExtra)
		},
	},
	{
		name: "reactive_short_turn",
		when: func(in districtInput) bool {
			return in.obs.BusLoad > models.BusTargetLoad && in.obs.Traffic > models.TrafficBusAddLimit
		},
		apply: func(in districtInput, p *DistrictProposal) string {
			p.Bus = BusShortTurn
			p.BusExtra = 0
			return fmt.Sprintf("bus load %.2f but traffic %.2f, short-turning instead of adding buses", in.obs.BusLoad, in.obs.Traffic)
		},
	},
	{
		name: "reactive_deploy",
		when: func(in districtInput) bool {
			return in.obs.BusLoad > models.BusTargetLoad
		},
		apply: func(in districtInput, p *DistrictProposal) string {
			p.Bus = BusDeployReserve
			p.BusExtra = min(models.BusMaxExtra, max(1, int((in.obs.BusLoad-models.BusTargetLoad)*20)))
			return fmt.Sprintf("bus load %.2f over target, deploying %d reserve units", in.obs.BusLoad, p.BusExtra)
		},
	},
	{
		name: "cost_hold",
		when: func(in districtInput) bool {
			return in.fc.Values[0] < costHoldLevel && in.obs.BusLoad < costHoldLevel
		},
		apply: func(in districtInput, p *DistrictProposal) string {
			p.CostSaving = true
			return fmt.Sprintf("low demand (load %.2f, next hour %.2f), holding reserve", in.obs.BusLoad, in.fc.Values[0])
		},
	},
}

// districtExtras all apply independently of the ladder and of each other.
var districtExtras = []districtRule{
	{
		name: "hold_terminal",
		when: func(in districtInput) bool {
			return in.obs.BusLoad > headwayBandLow && in.obs.BusLoad <= models.BusTargetLoad
		},
		apply: func(in districtInput, p *DistrictProposal) string {
			p.HoldTerminal = true
			return "moderate bus load, holding at terminal to even headways"
		},
	},
	{
		name: "crowd_management",
		when: func(in districtInput) bool {
			return in.obs.Crowding > models.CrowdingCritical
		},
		apply: func(in districtInput, p *DistrictProposal) string {
			p.CrowdManagement = true
			return fmt.Sprintf("station crowding %.2f critical, crowd management", in.obs.Crowding)
		},
	},
	{
		name: "escalate",
		when: func(in districtInput) bool {
			return in.obs.Crowding > models.NearSaturation && in.obs.BusLoad > models.NearSaturation
		},
		apply: func(in districtInput, p *DistrictProposal) string {
			p.Escalate = true
			p.EscalationReason = fmt.Sprintf("crowding %.2f and bus load %.2f near saturation", in.obs.Crowding, in.obs.BusLoad)
			return "escalating to operator: " + p.EscalationReason
		},
	},
	{
		name: "travel_advisory",
		when: func(in districtInput) bool {
			stressed := in.obs.Crowding > models.CrowdingWarning || in.obs.Traffic > models.TrafficHigh
			return !in.peak && !in.obs.AdvisoryActive && stressed && in.fc.Peak > advisoryForecastStress
		},
		apply: func(in districtInput, p *DistrictProposal) string {
			p.Advisory = true
			return "issuing off-peak travel advisory"
		},
	},
	{
		name: "rail_deploy",
		when: func(in districtInput) bool {
			return in.obs.RailLoad > models.RailTargetLoad
		},
		apply: func(in districtInput, p *DistrictProposal) string {
			p.RailExtra = min(models.RailMaxExtra, max(1, int((in.obs.RailLoad-models.RailTargetLoad)*10)))
			return fmt.Sprintf("rail load %.2f over target, adding %d rail units", in.obs.RailLoad, p.RailExtra)
		},
	},
}

type lineInput struct {
	obs LineObservation
	fc  sim.EntityForecast
}

type lineRule struct {
	name  string
	when  func(in lineInput) bool
	apply func(in lineInput, p *LineProposal) string
}

var lineLadder = []lineRule{
	{
		name: "proactive_trains",
		when: func(in lineInput) bool {
			return in.fc.Peak > proactiveLineThreshold && in.obs.Load <= models.RailTargetLoad
		},
		apply: func(in lineInput, p *LineProposal) string {
			p.AddTrains = min(2, max(1, int((in.fc.Peak-proactiveLineThreshold)*8)))
			return fmt.Sprintf("forecast peak %.2f ahead, adding %d trains", in.fc.Peak, p.AddTrains)
		},
	},
	{
		name: "reactive_trains",
		when: func(in lineInput) bool {
			return in.obs.Load > models.RailTargetLoad
		},
		apply: func(in lineInput, p *LineProposal) string {
			p.AddTrains = min(models.RailMaxExtra, max(1, int((in.obs.Load-models.RailTargetLoad)*10)))
			return fmt.Sprintf("load %.2f over target, adding %d trains", in.obs.Load, p.AddTrains)
		},
	},
	{
		name: "cost_saving",
		when: func(in lineInput) bool {
			return in.obs.Load < lineLowLoad
		},
		apply: func(in lineInput, p *LineProposal) string {
			p.CostSaving = true
			return fmt.Sprintf("low load %.2f, running base frequency", in.obs.Load)
		},
	},
}

var lineExtras = []lineRule{
	{
		name: "hold_headway",
		when: func(in lineInput) bool {
			return in.obs.Load > lineHeadwayBandLow && in.obs.Load <= models.RailTargetLoad
		},
		apply: func(in lineInput, p *LineProposal) string {
			p.HoldHeadway = true
			return "holding headways"
		},
	},
	{
		name: "escalate",
		when: func(in lineInput) bool {
			return in.obs.Disruption > models.LineEscalation
		},
		apply: func(in lineInput, p *LineProposal) string {
			p.Escalate = true
			p.EscalationReason = fmt.Sprintf("disruption level %.2f", in.obs.Disruption)
			return "escalating to operator: " + p.EscalationReason
		},
	},
}

// Propose turns observations and the forecast into per-district and per-line proposals.
func Propose(obs Observation, fc sim.Forecast) Plan {
	plan := Plan{
		Districts:   make([]DistrictProposal, 0, len(obs.Districts)),
		Lines:       make([]LineProposal, 0, len(obs.Lines)),
		Reasoning:   []string{},
		Escalations: []string{},
	}
	for _, d := range obs.Districts {
		in := districtInput{obs: d, fc: fc.District(d.Name), peak: obs.Peak}
		p := DistrictProposal{District: d.Name, Bus: BusNoChange, Urgency: districtUrgency(d)}
		for _, rule := range deploymentLadder {
			if rule.when(in) {
				plan.Reasoning = append(plan.Reasoning, d.Name+": "+rule.apply(in, &p))
				break
			}
		}
		for _, rule := range districtExtras {
			if rule.when(in) {
				plan.Reasoning = append(plan.Reasoning, d.Name+": "+rule.apply(in, &p))
			}
		}
		if p.Escalate {
			plan.Escalations = append(plan.Escalations, d.Name)
		}
		plan.Districts = append(plan.Districts, p)
	}
	for _, l := range obs.Lines {
		in := lineInput{obs: l, fc: fc.Line(l.ID)}
		p := LineProposal{Line: l.ID, Urgency: lineUrgency(l)}
		for _, rule := range lineLadder {
			if rule.when(in) {
				plan.Reasoning = append(plan.Reasoning, l.ID+": "+rule.apply(in, &p))
				break
			}
		}
		for _, rule := range lineExtras {
			if rule.when(in) {
				plan.Reasoning = append(plan.Reasoning, l.ID+": "+rule.apply(in, &p))
			}
		}
		if p.Escalate {
			plan.Escalations = append(plan.Escalations, l.ID)
		}
		plan.Lines = append(plan.Lines, p)
	}
	return plan
}

func districtUrgency(d DistrictObservation) float64 {
	u := 0.0
	if d.Crowding > models.CrowdingCritical {
		u += 2
	}
	if d.BusLoad > models.BusTargetLoad {
		u++
	}
	if d.RailLoad > models.RailTargetLoad {
		u++
	}
	if d.Traffic > models.TrafficHigh {
		u += 0.5
	}
	if d.AirQuality < models.AirQualityPoor {
		u += 0.5
	}
	return u
}

func lineUrgency(l LineObservation) float64 {
	u := 0.0
	if l.Load > models.RailTargetLoad {
		u += 2
	}
	if l.Disruption > models.DelayThreshold {
		u += 1.5
	}
	if l.Load > lineHeadwayBandLow {
		u += 0.5
	}
	return u
}
