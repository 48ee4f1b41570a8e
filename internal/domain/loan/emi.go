package loan

import (
	"credit-engine/internal/pkg/apperrors"
	"fmt"
	"math"
)

// EMI computes the equated monthly installment for a principal amortized over
// tenureMonths at an annual interest rate given in percent, rounded to two
// decimal places.
func EMI(principal float64, annualRatePercent float64, tenureMonths int) (float64, error) {
	if principal <= 0 {
		return 0, fmt.Errorf("%w: principal must be positive", apperrors.ErrInvalidArgument)
	}
	if tenureMonths <= 0 {
		return 0, fmt.Errorf("%w: tenure must be positive", apperrors.ErrInvalidArgument)
	}
	if annualRatePercent < 0 {
		return 0, fmt.Errorf("%w: interest rate cannot be negative", apperrors.ErrInvalidArgument)
	}

	if annualRatePercent == 0 {
		// The closed form divides by zero at rate 0; an interest-free loan is
		// just the principal split evenly across the tenure.
		return roundTo(principal/float64(tenureMonths), 2), nil
	}

	monthlyRate := annualRatePercent / 1200
	growth := math.Pow(1+monthlyRate, float64(tenureMonths))
	emi := principal * monthlyRate * growth / (growth - 1)
	return roundTo(emi, 2), nil
}

func roundTo(n float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(n*pow) / pow
}
