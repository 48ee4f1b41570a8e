package dto

import (
	"fmt"
	"strconv"
	"strings"

	"credit-engine/internal/domain/customer"

	"github.com/shopspring/decimal"
)

type RegisterCustomerRequest struct {
	FirstName     string  `json:"firstName"`
	LastName      string  `json:"lastName"`
	Age           int     `json:"age"`
	MonthlyIncome float64 `json:"monthlyIncome"`
	PhoneNumber   string  `json:"phoneNumber"`
}

func (r *RegisterCustomerRequest) Validate() error {
	if strings.TrimSpace(r.FirstName) == "" {
		return fmt.Errorf("firstName cannot be empty")
	}
	if strings.TrimSpace(r.LastName) == "" {
		return fmt.Errorf("lastName cannot be empty")
	}
	if r.Age <= 0 {
		return fmt.Errorf("age must be positive")
	}
	if r.MonthlyIncome <= 0 {
		return fmt.Errorf("monthlyIncome must be positive")
	}
	if strings.TrimSpace(r.PhoneNumber) == "" {
		return fmt.Errorf("phoneNumber cannot be empty")
	}
	return nil
}

type CustomerResponse struct {
	CustomerID    string `json:"customerId"`
	Name          string `json:"name"`
	Age           int    `json:"age"`
	MonthlyIncome string `json:"monthlyIncome"`
	ApprovedLimit string `json:"approvedLimit"`
	PhoneNumber   string `json:"phoneNumber"`
}

func NewCustomerResponse(cust *customer.Customer) CustomerResponse {
	if cust == nil {
		return CustomerResponse{}
	}

	return CustomerResponse{
		CustomerID:    strconv.FormatInt(cust.CustomerID, 10),
		Name:          cust.FullName(),
		Age:           cust.Age,
		MonthlyIncome: decimal.NewFromFloat(cust.MonthlySalary).StringFixed(2),
		ApprovedLimit: decimal.NewFromFloat(cust.ApprovedLimit).StringFixed(2),
		PhoneNumber:   cust.PhoneNumber,
	}
}

type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type TokenRequest struct {
	Username string `json:"username"`
}
