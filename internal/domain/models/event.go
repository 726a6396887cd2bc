package models

import "time"

// EventTypeVaultRiskReport tags report events on the bus.
const EventTypeVaultRiskReport = "vault_risk_report"

// ReportEvent is the bus envelope for a scored report. EventID is unique per
// emission so consumers can deduplicate redeliveries.
type ReportEvent struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	EmittedAt time.Time        `json:"emitted_at"`
	Report    *VaultRiskReport `json:"report"`
}
