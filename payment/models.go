package payment

import "time"

// Record is an immutable receipt of one settled rent payment. Sequence
// numbers are 1-based and contiguous within an agreement.
type Record struct {
	ID             string
	AgreementID    string
	Seq            uint32
	Amount         int64
	LandlordAmount int64
	AgentAmount    int64
	Asset          string
	PayerID        string
	PaidAt         time.Time
}

// PayRentParams carries one rent payment attempt. BearerToken must resolve to
// the agreement's tenant; Asset names the settlement asset handed to the
// transfer backend.
type PayRentParams struct {
	AgreementID string
	Asset       string
	Amount      int64
	BearerToken string
}

// OutboxTopicRentPaid is published once per settled payment, keyed by the
// agreement id in the payload.
const OutboxTopicRentPaid = "rent.paid"
