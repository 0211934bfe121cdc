package events

import "time"

const PayslipsGeneratedTopic = "payroll.payslip.generated.v1"

type PayslipsGeneratedEvent struct {
	EventType  string    `json:"event_type"`
	RunID      string    `json:"run_id"`
	RunNumber  string    `json:"run_number"`
	Count      int       `json:"count"`
	OccurredAt time.Time `json:"occurred_at"`
}
