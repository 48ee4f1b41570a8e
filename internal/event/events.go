package event

import (
	"context"
	"log/slog"
	"time"
)

type CustomerEventPayload struct {
	CustomerID    int64   `json:"customerId"`
	Name          string  `json:"name"`
	Age           int     `json:"age"`
	PhoneNumber   string  `json:"phoneNumber"`
	MonthlySalary float64 `json:"monthlySalary"`
	ApprovedLimit float64 `json:"approvedLimit"`
}

type CustomerRegisteredEvent struct {
	Timestamp time.Time            `json:"timestamp"`
	Payload   CustomerEventPayload `json:"payload"`
}

type LoanEventPayload struct {
	LoanID             int64   `json:"loanId"`
	CustomerID         int64   `json:"customerId"`
	LoanAmount         float64 `json:"loanAmount"`
	TenureMonths       int     `json:"tenureMonths"`
	InterestRate       float64 `json:"interestRate"`
	MonthlyInstallment float64 `json:"monthlyInstallment"`
}

type LoanApprovedEvent struct {
	Timestamp time.Time        `json:"timestamp"`
	Payload   LoanEventPayload `json:"payload"`
}

type Publisher interface {
	PublishCustomerRegistered(ctx context.Context, event CustomerRegisteredEvent) error
	PublishLoanApproved(ctx context.Context, event LoanApprovedEvent) error
}

// NoopPublisher is wired when the broker is disabled in config.
type NoopPublisher struct {
	logger *slog.Logger
}

func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger.With("component", "NoopPublisher")}
}

func (p *NoopPublisher) PublishCustomerRegistered(ctx context.Context, event CustomerRegisteredEvent) error {
	p.logger.DebugContext(ctx, "Event publishing disabled, dropping event", "routingKey", routingKeyCustomerRegistered)
	return nil
}

func (p *NoopPublisher) PublishLoanApproved(ctx context.Context, event LoanApprovedEvent) error {
	p.logger.DebugContext(ctx, "Event publishing disabled, dropping event", "routingKey", routingKeyLoanApproved)
	return nil
}
