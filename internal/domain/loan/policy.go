package loan

const (
	maxEMIToSalaryRatio = 0.5

	midTierMinRate   = 12.0
	midTierFloorRate = 12.1
	lowTierMinRate   = 16.0
	lowTierFloorRate = 16.1
)

const (
	MsgEMIExceedsSalary = "EMI exceeds 50% of monthly salary."
	MsgRateTooLow       = "Interest rate too low for this credit score."
	MsgScoreTooLow      = "Credit score too low."
	MsgLoanApproved     = "Loan approved."
)

type PolicyDecision struct {
	Approved      bool
	EffectiveRate float64
	// CorrectedRate is the suggested floor rate when a request is rejected
	// only because its rate is too low for the score tier. The caller may
	// resubmit at this rate; it is never auto-applied.
	CorrectedRate *float64
	Message       string
}

type tierRule struct {
	matches func(score int) bool
	decide  func(requestedRate float64) PolicyDecision
}

// Tiers are evaluated top to bottom; the first match wins. Boundaries are
// strict/non-strict exactly as written so score 50 lands in the second tier
// and score 51 in the first.
var tierRules = []tierRule{
	{
		matches: func(score int) bool { return score > 50 },
		decide: func(rate float64) PolicyDecision {
			return PolicyDecision{Approved: true, EffectiveRate: rate}
		},
	},
	{
		matches: func(score int) bool { return score > 30 },
		decide:  rateFloorRule(midTierMinRate, midTierFloorRate),
	},
	{
		matches: func(score int) bool { return score > 10 },
		decide:  rateFloorRule(lowTierMinRate, lowTierFloorRate),
	},
	{
		matches: func(score int) bool { return true },
		decide: func(rate float64) PolicyDecision {
			return PolicyDecision{Approved: false, EffectiveRate: rate, Message: MsgScoreTooLow}
		},
	},
}

func rateFloorRule(minRate, floorRate float64) func(float64) PolicyDecision {
	return func(rate float64) PolicyDecision {
		if rate > minRate {
			return PolicyDecision{Approved: true, EffectiveRate: rate}
		}
		corrected := floorRate
		return PolicyDecision{
			Approved:      false,
			EffectiveRate: rate,
			CorrectedRate: &corrected,
			Message:       MsgRateTooLow,
		}
	}
}

// Decide applies the affordability gate first, unconditionally, then the
// score tiers. It is shared by CheckEligibility and CreateLoan so the two
// operations can never diverge.
func Decide(creditScore int, requestedRate, totalActiveEMI, monthlySalary float64) PolicyDecision {
	if totalActiveEMI > maxEMIToSalaryRatio*monthlySalary {
		return PolicyDecision{
			Approved:      false,
			EffectiveRate: requestedRate,
			Message:       MsgEMIExceedsSalary,
		}
	}

	for _, rule := range tierRules {
		if rule.matches(creditScore) {
			return rule.decide(requestedRate)
		}
	}
	return PolicyDecision{Approved: false, EffectiveRate: requestedRate, Message: MsgScoreTooLow}
}
