package payment

// bpsScale is the denominator for commission rates: 1 basis point = 0.01%.
const bpsScale = 10000

// Split divides a payment between landlord and agent. The agent share is
// floor(amount*bps/10000); it rounds down and the landlord absorbs the
// remainder, so the two shares always sum to amount exactly.
//
// The division is folded into the quotient/remainder form so amount*bps
// cannot overflow int64 for any valid amount and rate.
func Split(amount int64, commissionBps uint32) (landlord, agent int64) {
	q, r := amount/bpsScale, amount%bpsScale
	agent = q*int64(commissionBps) + r*int64(commissionBps)/bpsScale
	landlord = amount - agent
	return landlord, agent
}
