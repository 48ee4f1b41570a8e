package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/event"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"
)

type Money = float64

// Decision is the transient outcome of a loan evaluation. It is returned per
// request and never stored.
type Decision struct {
	CustomerID         int64
	LoanID             *int64
	Approved           bool
	InterestRate       float64
	CorrectedRate      *float64
	TenureMonths       int
	MonthlyInstallment *float64
	Message            string
}

type LoanService interface {
	// CheckEligibility runs the scoring and policy pipeline without touching
	// storage.
	CheckEligibility(ctx context.Context, customerID int64, loanAmount Money, interestRate float64, tenureMonths int) (*Decision, error)

	// CreateLoan runs the same pipeline inside a single transaction and, on
	// approval, persists the loan and increments the customer's debt.
	CreateLoan(ctx context.Context, customerID int64, loanAmount Money, interestRate float64, tenureMonths int) (*Decision, error)

	ListCustomerLoans(ctx context.Context, customerID int64) ([]Loan, error)
}

type loanServiceImpl struct {
	repo         Repository
	customerRepo customer.CustomerRepository
	pub          event.Publisher
	logger       *slog.Logger
	now          func() time.Time
}

var _ LoanService = (*loanServiceImpl)(nil)

func NewLoanService(r Repository, cr customer.CustomerRepository, pub event.Publisher, logger *slog.Logger) LoanService {
	if r == nil || cr == nil {
		panic("loan service dependencies cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewLoanService, using default stderr handler")
	}
	if pub == nil {
		pub = event.NewNoopPublisher(logger)
	}
	return &loanServiceImpl{
		repo:         r,
		customerRepo: cr,
		pub:          pub,
		logger:       logger.With("component", "loanService"),
		now:          time.Now,
	}
}

func validateLoanRequest(loanAmount Money, interestRate float64, tenureMonths int) error {
	if loanAmount <= 0 {
		return apperrors.NewValidationError("loan_amount", "must be positive")
	}
	if interestRate < 0 {
		return apperrors.NewValidationError("interest_rate", "cannot be negative")
	}
	if tenureMonths <= 0 {
		return apperrors.NewValidationError("tenure", "must be positive")
	}
	return nil
}

// evaluate is the shared score -> policy -> EMI pipeline. today is fixed once
// per request so the scorer and the affordability gate agree on which loans
// are active.
func (s *loanServiceImpl) evaluate(ctx context.Context, cust *customer.Customer, loans []Loan, loanAmount Money, interestRate float64, tenureMonths int, today time.Time) (*Decision, error) {
	score := CreditScore(cust.ApprovedLimit, loans, today)
	monitoring.RecordCreditScore(score)

	totalActiveEMI := TotalActiveEMI(loans, today)
	pd := Decide(score, interestRate, totalActiveEMI, cust.MonthlySalary)

	s.logger.InfoContext(ctx, "Loan decision computed",
		slog.Int64("customerID", cust.CustomerID),
		slog.Int("creditScore", score),
		slog.Bool("approved", pd.Approved),
		slog.String("message", pd.Message))

	decision := &Decision{
		CustomerID:    cust.CustomerID,
		Approved:      pd.Approved,
		InterestRate:  interestRate,
		CorrectedRate: pd.CorrectedRate,
		TenureMonths:  tenureMonths,
		Message:       pd.Message,
	}

	if pd.Approved {
		installment, err := EMI(loanAmount, pd.EffectiveRate, tenureMonths)
		if err != nil {
			return nil, fmt.Errorf("%w: EMI computation failed: %w", apperrors.ErrComputation, err)
		}
		decision.MonthlyInstallment = &installment
	}

	return decision, nil
}

func (s *loanServiceImpl) CheckEligibility(ctx context.Context, customerID int64, loanAmount Money, interestRate float64, tenureMonths int) (*Decision, error) {
	s.logger.InfoContext(ctx, "Checking loan eligibility", slog.Int64("customerID", customerID))

	if err := validateLoanRequest(loanAmount, interestRate, tenureMonths); err != nil {
		return nil, err
	}

	cust, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) || errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: customer %d not found", apperrors.ErrNotFound, customerID)
		}
		return nil, fmt.Errorf("failed to load customer %d: %w", customerID, err)
	}

	loans, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load loans for customer %d: %w", customerID, err)
	}

	decision, err := s.evaluate(ctx, cust, loans, loanAmount, interestRate, tenureMonths, DateOf(s.now()))
	if err != nil {
		return nil, err
	}

	monitoring.RecordDecision("check_eligibility", outcomeLabel(decision.Approved))
	return decision, nil
}

func (s *loanServiceImpl) CreateLoan(ctx context.Context, customerID int64, loanAmount Money, interestRate float64, tenureMonths int) (decision *Decision, err error) {
	s.logger.InfoContext(ctx, "Creating loan", slog.Int64("customerID", customerID))

	if err := validateLoanRequest(loanAmount, interestRate, tenureMonths); err != nil {
		return nil, err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = s.repo.RollbackTx(ctx, tx)
			panic(p)
		} else if err != nil {
			s.logger.ErrorContext(ctx, "Rolling back loan creation", slog.Any("error", err))
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	// Row lock on the customer so the score and affordability check cannot
	// race a concurrent approval against a stale current_debt.
	cust, err := s.customerRepo.FindByIDForUpdate(ctx, tx, customerID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) || errors.Is(err, apperrors.ErrNotFound) {
			err = fmt.Errorf("%w: customer %d not found", apperrors.ErrNotFound, customerID)
			return nil, err
		}
		return nil, fmt.Errorf("failed to load customer %d: %w", customerID, err)
	}

	loans, err := s.repo.ListByCustomerInTx(ctx, tx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load loans for customer %d: %w", customerID, err)
	}

	today := DateOf(s.now())
	decision, err = s.evaluate(ctx, cust, loans, loanAmount, interestRate, tenureMonths, today)
	if err != nil {
		return nil, err
	}

	if !decision.Approved {
		// No storage mutation on rejection.
		_ = s.repo.RollbackTx(ctx, tx)
		monitoring.RecordDecision("create_loan", "rejected")
		return decision, nil
	}

	newLoan, err := NewLoan(customerID, loanAmount, tenureMonths, decision.InterestRate, *decision.MonthlyInstallment, today)
	if err != nil {
		return nil, fmt.Errorf("failed to build loan record: %w", err)
	}

	createdLoan, err := s.repo.CreateLoanInTx(ctx, tx, newLoan)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to save loan: %v", apperrors.ErrInternalServer, err)
	}

	if err = s.customerRepo.IncrementDebtInTx(ctx, tx, customerID, loanAmount); err != nil {
		return nil, fmt.Errorf("%w: failed to update customer debt: %v", apperrors.ErrInternalServer, err)
	}

	if err = s.repo.CommitTx(ctx, tx); err != nil {
		return nil, fmt.Errorf("%w: could not commit transaction: %v", apperrors.ErrInternalServer, err)
	}

	monitoring.RecordDecision("create_loan", "approved")
	decision.LoanID = &createdLoan.LoanID
	decision.Message = MsgLoanApproved

	approvedEvent := event.LoanApprovedEvent{
		Timestamp: time.Now(),
		Payload: event.LoanEventPayload{
			LoanID:             createdLoan.LoanID,
			CustomerID:         customerID,
			LoanAmount:         createdLoan.LoanAmount,
			TenureMonths:       createdLoan.TenureMonths,
			InterestRate:       createdLoan.InterestRate,
			MonthlyInstallment: createdLoan.MonthlyRepayment,
		},
	}
	if pubErr := s.pub.PublishLoanApproved(ctx, approvedEvent); pubErr != nil {
		s.logger.ErrorContext(ctx, "Loan created, but FAILED to publish approval event", slog.Any("error", pubErr))
	}

	s.logger.InfoContext(ctx, "Loan created successfully",
		slog.Int64("loanID", createdLoan.LoanID), slog.Int64("customerID", customerID))
	return decision, nil
}

func (s *loanServiceImpl) ListCustomerLoans(ctx context.Context, customerID int64) ([]Loan, error) {
	s.logger.InfoContext(ctx, "Listing loans for customer", slog.Int64("customerID", customerID))

	if _, err := s.customerRepo.FindByID(ctx, customerID); err != nil {
		if errors.Is(err, customer.ErrNotFound) || errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: customer %d not found", apperrors.ErrNotFound, customerID)
		}
		return nil, fmt.Errorf("failed to load customer %d: %w", customerID, err)
	}

	loans, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load loans for customer %d: %w", customerID, err)
	}
	return loans, nil
}

func outcomeLabel(approved bool) string {
	if approved {
		return "approved"
	}
	return "rejected"
}
