package agreement

import "time"

// Agreement mirrors the agreements table. Totals and the payment count are
// owned by the payment service; everything else is written once at creation
// apart from the status column.
type Agreement struct {
	ID              string
	LandlordID      string
	TenantID        string
	AgentID         *string
	MonthlyRent     int64
	SecurityDeposit int64
	StartDate       int64
	EndDate         int64
	CommissionBps   uint32
	Status          Status
	TotalRentPaid   int64
	PaymentCount    uint32
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateParams carries caller-supplied agreement fields. The id is chosen by
// the caller and must be globally unique.
type CreateParams struct {
	ID              string
	LandlordID      string
	TenantID        string
	AgentID         *string
	MonthlyRent     int64
	SecurityDeposit int64
	StartDate       int64
	EndDate         int64
	CommissionBps   uint32
}

// TransitionParams describes a requested status change.
type TransitionParams struct {
	AgreementID string
	ActorID     string
	NextStatus  Status
}

const (
	// OutboxTopicCreated is published once per successfully created agreement.
	OutboxTopicCreated = "agreement.created"
	// OutboxTopicStatusChanged is published on every status transition.
	OutboxTopicStatusChanged = "agreement.status_changed"
)
