package agents

// BusAction is the single bus-mode decision a district can take in an hour.
type BusAction string

const (
	BusNoChange      BusAction = "NO_CHANGE"
	BusDeployReserve BusAction = "DEPLOY_RESERVE"
	BusShortTurn     BusAction = "SHORT_TURN"
)

// DistrictProposal is what the pipeline intends to do for one district this hour.
// Planning creates it, policy restricts it, coordination sizes it and execution applies it.
type DistrictProposal struct {
	District         string    `json:"district"`
	Bus              BusAction `json:"bus_action"`
	BusExtra         int       `json:"bus_extra"`
	RailExtra        int       `json:"rail_extra"`
	Reroute          bool      `json:"reroute"`
	HoldTerminal     bool      `json:"hold_terminal"`
	CrowdManagement  bool      `json:"crowd_management"`
	Advisory         bool      `json:"advisory"`
	Escalate         bool      `json:"escalate"`
	EscalationReason string    `json:"escalation_reason,omitempty"`
	CostSaving       bool      `json:"cost_saving"`
	Urgency          float64   `json:"urgency"`
}

type LineProposal struct {
	Line             string  `json:"line_id"`
	AddTrains        int     `json:"add_trains"`
	HoldHeadway      bool    `json:"hold_headway"`
	Escalate         bool    `json:"escalate"`
	EscalationReason string  `json:"escalation_reason,omitempty"`
	CostSaving       bool    `json:"cost_saving"`
	Urgency          float64 `json:"urgency"`
}

// Plan is the ordered proposal set for one hour, in city order.
type Plan struct {
	Districts   []DistrictProposal `json:"districts"`
	Lines       []LineProposal     `json:"lines"`
	Reasoning   []string           `json:"reasoning"`
	Escalations []string           `json:"escalations"`
}

// Clone deep-copies the plan so a later stage never aliases an earlier stage's output.
func (p Plan) Clone() Plan {
	out := Plan{
		Districts:   append([]DistrictProposal(nil), p.Districts...),
		Lines:       append([]LineProposal(nil), p.Lines...),
		Reasoning:   append([]string(nil), p.Reasoning...),
		Escalations: append([]string(nil), p.Escalations...),
	}
	return out
}
