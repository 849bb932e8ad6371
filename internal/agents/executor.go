package agents

import (
	"fmt"

	"citypulse/internal/models"
)

const (
	crowdManagementFactor = 0.85
	deployLoadRelief      = 0.95
	shortTurnLoadFactor   = 0.94
	shortTurnTraffic      = 0.97
	holdTerminalFactor    = 0.98
	rerouteTraffic        = 0.95
	holdHeadwayFactor     = 0.98
)

// Execute applies the approved plan to the city and returns the action records it logged.
// Proposals naming an unknown district or line are skipped.
func Execute(c *models.CityState, plan Plan) []models.ActionRecord {
	records := []models.ActionRecord{}
	for _, p := range plan.Districts {
		d := c.District(p.District)
		if d == nil {
			continue
		}
		actions := applyDistrict(c, d, p)
		if len(actions) == 0 {
			continue
		}
		rec := models.ActionRecord{
			T:       c.T,
			Hour:    c.HourOfDay,
			Scope:   models.ScopeDistrict,
			Target:  d.Name,
			Actions: actions,
			Urgency: p.Urgency,
		}
		c.AppendAction(rec)
		records = append(records, rec)
	}
	for _, p := range plan.Lines {
		l := c.Line(p.Line)
		if l == nil {
			continue
		}
		actions := applyLine(c, l, p)
		if len(actions) == 0 {
			continue
		}
		l.ActionsThisHour = append(l.ActionsThisHour, actions...)
		rec := models.ActionRecord{
			T:          c.T,
			Hour:       c.HourOfDay,
			Scope:      models.ScopeRailLine,
			Target:     l.ID,
			TargetName: l.Name,
			Actions:    actions,
			Urgency:    p.Urgency,
		}
		c.AppendAction(rec)
		records = append(records, rec)
	}
	return records
}

func applyDistrict(c *models.CityState, d *models.District, p DistrictProposal) []string {
	var actions []string
	if p.CrowdManagement {
		d.StationCrowding *= crowdManagementFactor
		actions = append(actions, "CROWD_MANAGEMENT")
	}
	if p.RailExtra > 0 {
		d.RailCapacity += p.RailExtra
		d.RailLoad *= deployLoadRelief
		actions = append(actions, fmt.Sprintf("DEPLOY_RAIL +%d", p.RailExtra))
	}
	switch p.Bus {
	case BusDeployReserve:
		if p.BusExtra > 0 {
			d.BusCapacity += p.BusExtra
			d.BusLoad *= deployLoadRelief
			actions = append(actions, fmt.Sprintf("DEPLOY_RESERVE +%d", p.BusExtra))
		}
	case BusShortTurn:
		d.BusLoad *= shortTurnLoadFactor
		d.RoadTraffic *= shortTurnTraffic
		actions = append(actions, string(BusShortTurn))
	}
	if p.HoldTerminal {
		d.BusLoad *= holdTerminalFactor
		actions = append(actions, "HOLD_TERMINAL")
	}
	if p.Reroute {
		d.RoadTraffic *= rerouteTraffic
		actions = append(actions, "REROUTE")
	}
	if p.Advisory {
		d.AdvisoryActive = true
		d.AdvisoryTimer = models.AdvisoryHours
		actions = append(actions, "TRAVEL_ADVISORY")
	}
	if p.Escalate {
		escalate(c, models.ScopeDistrict, d.Name, p.EscalationReason)
		actions = append(actions, "ESCALATE")
	}
	d.Clamp()
	return actions
}

func applyLine(c *models.CityState, l *models.RailLine, p LineProposal) []string {
	var actions []string
	if p.AddTrains > 0 {
		l.Frequency += p.AddTrains
		l.Load *= deployLoadRelief
		actions = append(actions, fmt.Sprintf("ADD_TRAINS +%d", p.AddTrains))
	}
	if p.HoldHeadway {
		l.Load *= holdHeadwayFactor
		actions = append(actions, "HOLD_HEADWAY")
	}
	if p.Escalate {
		escalate(c, models.ScopeRailLine, l.ID, p.EscalationReason)
		actions = append(actions, "ESCALATE")
	}
	l.Clamp()
	return actions
}

func escalate(c *models.CityState, scope models.ActionScope, target, reason string) {
	c.AppendEscalation(models.Escalation{
		T:      c.T,
		Hour:   c.HourOfDay,
		Scope:  scope,
		Target: target,
		Reason: reason,
	})
	c.PenaltyCost += models.CostEscalation
}
