package agents

import (
	"sort"

	"citypulse/internal/models"
)

type Resource string

const (
	ResourceBus   Resource = "bus"
	ResourceTrain Resource = "train"
)

type GrantStatus string

const (
	GrantFull    GrantStatus = "full"
	GrantPartial GrantStatus = "partial"
	GrantDenied  GrantStatus = "denied"
)

type Grant struct {
	Scope     models.ActionScope `json:"type"`
	Target    string             `json:"target"`
	Resource  Resource           `json:"resource"`
	Urgency   float64            `json:"urgency"`
	Requested int                `json:"requested"`
	Granted   int                `json:"granted"`
	Status    GrantStatus        `json:"status"`
}

// Allocation is the plan after sizing every request against the hour's capacity pools.
type Allocation struct {
	Plan           Plan    `json:"plan"`
	Grants         []Grant `json:"grants"`
	BusPool        int     `json:"bus_pool"`
	TrainPool      int     `json:"train_pool"`
	BusRemaining   int     `json:"bus_remaining"`
	TrainRemaining int     `json:"train_remaining"`
}

// Pool is the share of active units available for reallocation after holding back the reserve.
func Pool(active int, reserveFraction float64) int {
	if active <= 0 {
		return 0
	}
	reserve := int(float64(active) * reserveFraction)
	return max(0, active-reserve)
}

type request struct {
	scope    models.ActionScope
	index    int
	resource Resource
	amount   int
	urgency  float64
}

// Allocate greedily grants requests most-urgent first. Ties keep proposal order,
// districts before lines. Proposals for unknown districts or lines get nothing.
func Allocate(c *models.CityState, plan Plan, reserveFraction float64) Allocation {
	out := Allocation{
		Plan:      plan.Clone(),
		Grants:    []Grant{},
		BusPool:   Pool(c.BusUnitsActive, reserveFraction),
		TrainPool: Pool(c.TrainUnitsActive, reserveFraction),
	}

	var reqs []request
	for i := range out.Plan.Districts {
		p := &out.Plan.Districts[i]
		if c.District(p.District) == nil {
			p.BusExtra, p.RailExtra = 0, 0
			if p.Bus == BusDeployReserve {
				p.Bus = BusNoChange
			}
			continue
		}
		if p.Bus == BusDeployReserve && p.BusExtra > 0 {
			reqs = append(reqs, request{models.ScopeDistrict, i, ResourceBus, p.BusExtra, p.Urgency})
		}
		if p.RailExtra > 0 {
			reqs = append(reqs, request{models.ScopeDistrict, i, ResourceTrain, p.RailExtra, p.Urgency})
		}
	}
	for i := range out.Plan.Lines {
		p := &out.Plan.Lines[i]
		if c.Line(p.Line) == nil {
			p.AddTrains = 0
			continue
		}
		if p.AddTrains > 0 {
			reqs = append(reqs, request{models.ScopeRailLine, i, ResourceTrain, p.AddTrains, p.Urgency})
		}
	}
	sort.SliceStable(reqs, func(a, b int) bool { return reqs[a].urgency > reqs[b].urgency })

	remaining := map[Resource]int{ResourceBus: out.BusPool, ResourceTrain: out.TrainPool}
	for _, r := range reqs {
		granted := min(r.amount, remaining[r.resource])
		remaining[r.resource] -= granted
		status := GrantFull
		switch {
		case granted == 0:
			status = GrantDenied
		case granted < r.amount:
			status = GrantPartial
		}

		var target string
		switch r.scope {
		case models.ScopeDistrict:
			p := &out.Plan.Districts[r.index]
			target = p.District
			if r.resource == ResourceBus {
				p.BusExtra = granted
				if granted == 0 {
					p.Bus = BusNoChange
				}
			} else {
				p.RailExtra = granted
			}
		case models.ScopeRailLine:
			p := &out.Plan.Lines[r.index]
			target = p.Line
			p.AddTrains = granted
		}

		out.Grants = append(out.Grants, Grant{
			Scope:     r.scope,
			Target:    target,
			Resource:  r.resource,
			Urgency:   r.urgency,
			Requested: r.amount,
			Granted:   granted,
			Status:    status,
		})
	}
	out.BusRemaining = remaining[ResourceBus]
	out.TrainRemaining = remaining[ResourceTrain]
	return out
}
