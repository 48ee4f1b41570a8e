package loan

import "time"

const (
	maxScore = 100

	maxLoanCountBeforePenalty = 5
	loanCountPenalty          = 2

	maxCurrentYearLoans    = 2
	currentYearLoanPenalty = 5

	volumePenalty = 20
)

// CreditScore derives a [0,100] trustworthiness score from the customer's
// loan history. The score is recomputed on every decision and never stored.
// today is injected rather than read from the wall clock so decisions are
// reproducible in tests.
func CreditScore(approvedLimit float64, loans []Loan, today time.Time) int {
	if len(loans) == 0 {
		return maxScore
	}

	score := float64(maxScore)

	ratioSum := 0.0
	for i := range loans {
		ratioSum += loans[i].OnTimeRatio()
	}
	score *= ratioSum / float64(len(loans))

	if len(loans) > maxLoanCountBeforePenalty {
		score -= float64((len(loans) - maxLoanCountBeforePenalty) * loanCountPenalty)
	}

	currentYearLoans := 0
	for i := range loans {
		if loans[i].StartDate.Year() == today.Year() {
			currentYearLoans++
		}
	}
	if currentYearLoans > maxCurrentYearLoans {
		score -= float64((currentYearLoans - maxCurrentYearLoans) * currentYearLoanPenalty)
	}

	totalAmount := 0.0
	activeAmount := 0.0
	for i := range loans {
		totalAmount += loans[i].LoanAmount
		if loans[i].IsActive(today) {
			activeAmount += loans[i].LoanAmount
		}
	}
	if totalAmount > approvedLimit {
		score -= volumePenalty
	}

	// Active exposure above the approved limit overrides every other factor.
	if activeAmount > approvedLimit {
		return 0
	}

	if score < 0 {
		return 0
	}
	return int(score)
}

// TotalActiveEMI sums monthly repayments over loans still running as of today.
func TotalActiveEMI(loans []Loan, today time.Time) float64 {
	total := 0.0
	for i := range loans {
		if loans[i].IsActive(today) {
			total += loans[i].MonthlyRepayment
		}
	}
	return total
}
