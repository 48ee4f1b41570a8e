package customer

import (
	"credit-engine/internal/pkg/apperrors"
	"math"
	"strings"
	"time"
)

const (
	// approved_limit = round(36 * monthly_salary, nearest 100,000)
	salaryMultiplier      = 36.0
	approvedLimitRounding = 100_000.0
)

type Customer struct {
	CustomerID    int64
	FirstName     string
	LastName      string
	Age           int
	PhoneNumber   string
	MonthlySalary float64
	ApprovedLimit float64
	CurrentDebt   float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func DeriveApprovedLimit(monthlySalary float64) float64 {
	return math.Round(salaryMultiplier*monthlySalary/approvedLimitRounding) * approvedLimitRounding
}

func NewCustomer(firstName, lastName string, age int, monthlySalary float64, phoneNumber string) (*Customer, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	phoneNumber = strings.TrimSpace(phoneNumber)

	if firstName == "" {
		return nil, apperrors.NewValidationError("first_name", "cannot be empty")
	}
	if lastName == "" {
		return nil, apperrors.NewValidationError("last_name", "cannot be empty")
	}
	if age <= 0 {
		return nil, apperrors.NewValidationError("age", "must be positive")
	}
	if monthlySalary <= 0 {
		return nil, apperrors.NewValidationError("monthly_income", "must be positive")
	}
	if phoneNumber == "" {
		return nil, apperrors.NewValidationError("phone_number", "cannot be empty")
	}

	now := time.Now()
	return &Customer{
		FirstName:     firstName,
		LastName:      lastName,
		Age:           age,
		PhoneNumber:   phoneNumber,
		MonthlySalary: monthlySalary,
		ApprovedLimit: DeriveApprovedLimit(monthlySalary),
		CurrentDebt:   0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (c *Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}
