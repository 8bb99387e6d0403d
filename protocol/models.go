package protocol

import "time"

// Version is the protocol version reported to auditing and tooling.
const Version = "1.0.0"

// State mirrors the singleton protocol row.
type State struct {
	AdminID        string
	AgreementCount int64
	PaymentCount   int64
	DisputeCount   int64
	InitializedAt  time.Time
}

// Counters holds the protocol-wide tallies. Each counter only ever grows, one
// increment per successful create/pay/dispute operation.
type Counters struct {
	Agreements int64
	Payments   int64
	Disputes   int64
}
