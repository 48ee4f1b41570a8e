package dto

import (
	"fmt"
	"strconv"

	"credit-engine/internal/domain/loan"

	"github.com/shopspring/decimal"
)

// LoanRequest is the shared payload of check-eligibility and create-loan.
type LoanRequest struct {
	CustomerID   int64   `json:"customerId"`
	LoanAmount   float64 `json:"loanAmount"`
	InterestRate float64 `json:"interestRate"`
	Tenure       int     `json:"tenure"`
}

func (r *LoanRequest) Validate() error {
	if r.CustomerID <= 0 {
		return fmt.Errorf("customerId must be positive")
	}
	if r.LoanAmount <= 0 {
		return fmt.Errorf("loanAmount must be greater than zero")
	}
	if r.InterestRate < 0 {
		return fmt.Errorf("interestRate cannot be negative")
	}
	if r.Tenure <= 0 {
		return fmt.Errorf("tenure must be positive")
	}
	return nil
}

type EligibilityResponse struct {
	CustomerID            string  `json:"customerId"`
	Approval              bool    `json:"approval"`
	InterestRate          string  `json:"interestRate"`
	CorrectedInterestRate *string `json:"correctedInterestRate,omitempty"`
	Tenure                int     `json:"tenure"`
	MonthlyInstallment    *string `json:"monthlyInstallment,omitempty"`
	Message               string  `json:"message,omitempty"`
}

type CreateLoanResponse struct {
	LoanID             *string `json:"loanId"`
	CustomerID         string  `json:"customerId"`
	LoanApproved       bool    `json:"loanApproved"`
	Message            string  `json:"message,omitempty"`
	MonthlyInstallment *string `json:"monthlyInstallment"`
}

type LoanListItem struct {
	LoanID             string `json:"loanId"`
	LoanAmount         string `json:"loanAmount"`
	InterestRate       string `json:"interestRate"`
	MonthlyInstallment string `json:"monthlyInstallment"`
	RepaymentsLeft     int    `json:"repaymentsLeft"`
}

func formatRate(rate float64) string {
	return decimal.NewFromFloat(rate).String()
}

func formatMoney(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(2)
}

func NewEligibilityResponse(d *loan.Decision) EligibilityResponse {
	resp := EligibilityResponse{
		CustomerID:   strconv.FormatInt(d.CustomerID, 10),
		Approval:     d.Approved,
		InterestRate: formatRate(d.InterestRate),
		Tenure:       d.TenureMonths,
		Message:      d.Message,
	}
	if d.CorrectedRate != nil {
		s := formatRate(*d.CorrectedRate)
		resp.CorrectedInterestRate = &s
	}
	if d.MonthlyInstallment != nil {
		s := formatMoney(*d.MonthlyInstallment)
		resp.MonthlyInstallment = &s
	}
	return resp
}

func NewCreateLoanResponse(d *loan.Decision) CreateLoanResponse {
	resp := CreateLoanResponse{
		CustomerID:   strconv.FormatInt(d.CustomerID, 10),
		LoanApproved: d.Approved,
		Message:      d.Message,
	}
	if d.LoanID != nil {
		s := strconv.FormatInt(*d.LoanID, 10)
		resp.LoanID = &s
	}
	if d.MonthlyInstallment != nil {
		s := formatMoney(*d.MonthlyInstallment)
		resp.MonthlyInstallment = &s
	}
	return resp
}

func NewLoanListResponse(loans []loan.Loan) []LoanListItem {
	items := make([]LoanListItem, 0, len(loans))
	for i := range loans {
		l := &loans[i]
		items = append(items, LoanListItem{
			LoanID:             strconv.FormatInt(l.LoanID, 10),
			LoanAmount:         formatMoney(l.LoanAmount),
			InterestRate:       formatRate(l.InterestRate),
			MonthlyInstallment: formatMoney(l.MonthlyRepayment),
			RepaymentsLeft:     l.RepaymentsLeft(),
		})
	}
	return items
}
