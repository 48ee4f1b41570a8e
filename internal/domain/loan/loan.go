package loan

import (
	"credit-engine/internal/pkg/apperrors"
	"fmt"
	"time"
)

type Loan struct {
	LoanID           int64
	CustomerID       int64
	LoanAmount       float64
	TenureMonths     int
	InterestRate     float64
	MonthlyRepayment float64
	EMIsPaidOnTime   int
	StartDate        time.Time
	EndDate          time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func NewLoan(customerID int64, amount float64, tenureMonths int, interestRate float64, monthlyRepayment float64, startDate time.Time) (*Loan, error) {
	if customerID <= 0 {
		return nil, fmt.Errorf("%w: customer ID must be positive", apperrors.ErrInvalidArgument)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: loan amount must be positive", apperrors.ErrInvalidArgument)
	}
	if tenureMonths <= 0 {
		return nil, fmt.Errorf("%w: tenure must be positive", apperrors.ErrInvalidArgument)
	}
	if interestRate < 0 {
		return nil, fmt.Errorf("%w: interest rate cannot be negative", apperrors.ErrInvalidArgument)
	}
	if startDate.IsZero() {
		startDate = DateOf(time.Now())
	}

	return &Loan{
		CustomerID:       customerID,
		LoanAmount:       amount,
		TenureMonths:     tenureMonths,
		InterestRate:     interestRate,
		MonthlyRepayment: monthlyRepayment,
		EMIsPaidOnTime:   0,
		StartDate:        startDate,
		EndDate:          AddMonths(startDate, tenureMonths),
	}, nil
}

// AddMonths advances d by the given number of calendar months, rolling the
// year over as needed. Day overflow normalizes forward (Jan 31 + 1 month
// lands in early March).
func AddMonths(d time.Time, months int) time.Time {
	return d.AddDate(0, months, 0)
}

// DateOf strips the time-of-day from t. Loan start and end dates are
// date-granular, so activity is decided by comparing calendar days, never
// instants.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsActive reports whether the loan has not yet ended as of today
// (end_date >= today, inclusive of the final day).
func (l *Loan) IsActive(today time.Time) bool {
	return !DateOf(l.EndDate).Before(DateOf(today))
}

// OnTimeRatio is the fraction of EMIs paid on time, capped at 1 in case the
// ingested emis_paid_on_time exceeds the tenure.
func (l *Loan) OnTimeRatio() float64 {
	if l.TenureMonths <= 0 {
		return 0
	}
	ratio := float64(l.EMIsPaidOnTime) / float64(l.TenureMonths)
	if ratio > 1 {
		return 1
	}
	return ratio
}

// RepaymentsLeft never goes negative even when emis_paid_on_time exceeds the
// tenure in ingested data.
func (l *Loan) RepaymentsLeft() int {
	left := l.TenureMonths - l.EMIsPaidOnTime
	if left < 0 {
		return 0
	}
	return left
}
