package agents

import (
	"fmt"

	"citypulse/internal/models"
)

// PolicyResult is the sanitized plan plus the audit of every change policy made.
type PolicyResult struct {
	Plan        Plan     `json:"plan"`
	Adjustments []string `json:"adjustments"`
	Blocks      []string `json:"blocks"`
}

// Sanitize restricts proposals to hard operating constraints. It never adds an action and
// is a fixed point: sanitizing its own output changes nothing.
func Sanitize(plan Plan, obs Observation) PolicyResult {
	res := PolicyResult{Plan: plan.Clone(), Adjustments: []string{}, Blocks: []string{}}
	adjust := func(format string, args ...any) { res.Adjustments = append(res.Adjustments, fmt.Sprintf(format, args...)) }
	block := func(format string, args ...any) { res.Blocks = append(res.Blocks, fmt.Sprintf(format, args...)) }

	for i := range res.Plan.Districts {
		p := &res.Plan.Districts[i]
		if c := clampInt(p.BusExtra, 0, models.BusMaxExtra); c != p.BusExtra {
			adjust("%s: bus extra %d clamped to %d", p.District, p.BusExtra, c)
			p.BusExtra = c
		}
		if c := clampInt(p.RailExtra, 0, models.RailMaxExtra); c != p.RailExtra {
			adjust("%s: rail extra %d clamped to %d", p.District, p.RailExtra, c)
			p.RailExtra = c
		}
		if p.Bus != BusDeployReserve && p.BusExtra != 0 {
			adjust("%s: %s carries no extra units", p.District, p.Bus)
			p.BusExtra = 0
		}

		// stale proposals keep only the magnitude caps; coordination drops them
		d, ok := obs.District(p.District)
		if !ok {
			continue
		}

		if d.Traffic > models.TrafficBusAddLimit && p.Bus == BusDeployReserve && !p.Reroute {
			block("%s: traffic %.2f too high to add %d buses, converted to %s", p.District, d.Traffic, p.BusExtra, BusShortTurn)
			p.Bus = BusShortTurn
			p.BusExtra = 0
		}

		if p.CrowdManagement && d.Crowding <= models.CrowdingCritical {
			adjust("%s: crowding %.2f not critical, crowd management removed", p.District, d.Crowding)
			p.CrowdManagement = false
		}

		if p.Advisory && obs.Peak {
			block("%s: travel advisory not allowed during peak hour %d", p.District, obs.Hour)
			p.Advisory = false
		}
		if p.Advisory && d.Crowding <= models.CrowdingWarning && d.Traffic <= models.TrafficHigh {
			adjust("%s: advisory conditions not met, advisory removed", p.District)
			p.Advisory = false
		}
	}

	for i := range res.Plan.Lines {
		p := &res.Plan.Lines[i]
		if c := clampInt(p.AddTrains, 0, models.RailMaxExtra); c != p.AddTrains {
			adjust("%s: add trains %d clamped to %d", p.Line, p.AddTrains, c)
			p.AddTrains = c
		}
	}
	return res
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
