package events

import "time"

const PayrollRunStatusChangedTopic = "payroll.run.status.v1"

const (
	EventTypeRunInitiated       = "payroll_run.initiated"
	EventTypeRunPublished       = "payroll_run.published_for_review"
	EventTypeRunManagerApproved = "payroll_run.manager_approved"
	EventTypeRunFinanceApproved = "payroll_run.finance_approved"
	EventTypeRunRejected        = "payroll_run.rejected"
	EventTypeRunLocked          = "payroll_run.locked"
	EventTypeRunUnlocked        = "payroll_run.unlocked"
)

type PayrollRunStatusChangedEvent struct {
	EventType     string    `json:"event_type"`
	RunID         string    `json:"run_id"`
	RunNumber     string    `json:"run_number"`
	PayrollPeriod string    `json:"payroll_period"`
	Entity        string    `json:"entity"`
	FromStatus    string    `json:"from_status"`
	ToStatus      string    `json:"to_status"`
	ActorID       string    `json:"actor_id,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
