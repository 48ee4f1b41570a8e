package loan

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/event"
	"credit-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, nil))

type MockRepository struct {
	mock.Mock
}

func (_m *MockRepository) CreateLoanInTx(ctx context.Context, tx pgx.Tx, newLoan *Loan) (*Loan, error) {
	ret := _m.Called(ctx, tx, newLoan)

	var r0 *Loan
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*Loan)
	}
	return r0, ret.Error(1)
}

func (_m *MockRepository) ListByCustomer(ctx context.Context, customerID int64) ([]Loan, error) {
	ret := _m.Called(ctx, customerID)

	var r0 []Loan
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]Loan)
	}
	return r0, ret.Error(1)
}

func (_m *MockRepository) ListByCustomerInTx(ctx context.Context, tx pgx.Tx, customerID int64) ([]Loan, error) {
	ret := _m.Called(ctx, tx, customerID)

	var r0 []Loan
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]Loan)
	}
	return r0, ret.Error(1)
}

func (_m *MockRepository) Upsert(ctx context.Context, l *Loan) error {
	ret := _m.Called(ctx, l)
	return ret.Error(0)
}

func (_m *MockRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	ret := _m.Called(ctx)

	var r0 pgx.Tx
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(pgx.Tx)
	}
	return r0, ret.Error(1)
}

func (_m *MockRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	ret := _m.Called(ctx, tx)
	return ret.Error(0)
}

func (_m *MockRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	ret := _m.Called(ctx, tx)
	return ret.Error(0)
}

type MockCustomerRepository struct {
	mock.Mock
}

func (_m *MockCustomerRepository) Save(ctx context.Context, cust *customer.Customer) error {
	ret := _m.Called(ctx, cust)
	return ret.Error(0)
}

func (_m *MockCustomerRepository) Upsert(ctx context.Context, cust *customer.Customer) error {
	ret := _m.Called(ctx, cust)
	return ret.Error(0)
}

func (_m *MockCustomerRepository) FindByID(ctx context.Context, customerID int64) (*customer.Customer, error) {
	ret := _m.Called(ctx, customerID)

	var r0 *customer.Customer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*customer.Customer)
	}
	return r0, ret.Error(1)
}

func (_m *MockCustomerRepository) FindByIDForUpdate(ctx context.Context, tx pgx.Tx, customerID int64) (*customer.Customer, error) {
	ret := _m.Called(ctx, tx, customerID)

	var r0 *customer.Customer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*customer.Customer)
	}
	return r0, ret.Error(1)
}

func (_m *MockCustomerRepository) IncrementDebtInTx(ctx context.Context, tx pgx.Tx, customerID int64, amount float64) error {
	ret := _m.Called(ctx, tx, customerID, amount)
	return ret.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (_m *MockPublisher) PublishCustomerRegistered(ctx context.Context, e event.CustomerRegisteredEvent) error {
	ret := _m.Called(ctx, e)
	return ret.Error(0)
}

func (_m *MockPublisher) PublishLoanApproved(ctx context.Context, e event.LoanApprovedEvent) error {
	ret := _m.Called(ctx, e)
	return ret.Error(0)
}

type TxMock struct {
	pgx.Tx
}

func newTestService(repo *MockRepository, customerRepo *MockCustomerRepository, pub event.Publisher, today time.Time) *loanServiceImpl {
	svc := NewLoanService(repo, customerRepo, pub, logger).(*loanServiceImpl)
	svc.now = func() time.Time { return today }
	return svc
}

var serviceToday = time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

func freshCustomer() *customer.Customer {
	return &customer.Customer{
		CustomerID:    1,
		FirstName:     "Asha",
		LastName:      "Rao",
		Age:           31,
		MonthlySalary: 50000,
		ApprovedLimit: 1800000,
	}
}

func TestCheckEligibilityApprovesCleanCustomer(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCustomerRepo := new(MockCustomerRepository)
	service := newTestService(mockRepo, mockCustomerRepo, nil, serviceToday)

	ctx := context.Background()
	mockCustomerRepo.On("FindByID", ctx, int64(1)).Return(freshCustomer(), nil)
	mockRepo.On("ListByCustomer", ctx, int64(1)).Return([]Loan{}, nil)

	decision, err := service.CheckEligibility(ctx, 1, 100000, 15, 12)

	assert.NoError(t, err)
	assert.True(t, decision.Approved)
	assert.Equal(t, 15.0, decision.InterestRate)
	assert.Nil(t, decision.CorrectedRate)
	if assert.NotNil(t, decision.MonthlyInstallment) {
		assert.Greater(t, *decision.MonthlyInstallment, 0.0)
	}
	mockRepo.AssertExpectations(t)
	mockCustomerRepo.AssertExpectations(t)
}

func TestCheckEligibilitySuggestsCorrectedRate(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCustomerRepo := new(MockCustomerRepository)
	service := newTestService(mockRepo, mockCustomerRepo, nil, serviceToday)

	ctx := context.Background()
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	// Half the EMIs on time puts the score at 50, one tier down.
	history := []Loan{{
		LoanAmount:     100000,
		TenureMonths:   12,
		EMIsPaidOnTime: 6,
		StartDate:      start,
		EndDate:        AddMonths(start, 12),
	}}
	mockCustomerRepo.On("FindByID", ctx, int64(1)).Return(freshCustomer(), nil)
	mockRepo.On("ListByCustomer", ctx, int64(1)).Return(history, nil)

	decision, err := service.CheckEligibility(ctx, 1, 100000, 8, 12)

	assert.NoError(t, err)
	assert.False(t, decision.Approved)
	assert.Equal(t, MsgRateTooLow, decision.Message)
	if assert.NotNil(t, decision.CorrectedRate) {
		assert.Equal(t, 12.1, *decision.CorrectedRate)
	}
	assert.Nil(t, decision.MonthlyInstallment)
}

func TestCheckEligibilityCustomerNotFound(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCustomerRepo := new(MockCustomerRepository)
	service := newTestService(mockRepo, mockCustomerRepo, nil, serviceToday)

	ctx := context.Background()
	mockCustomerRepo.On("FindByID", ctx, int64(99)).Return(nil, customer.ErrNotFound)

	_, err := service.CheckEligibility(ctx, 99, 100000, 15, 12)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	mockRepo.AssertNotCalled(t, "ListByCustomer", mock.Anything, mock.Anything)
}

func TestCheckEligibilityRejectsInvalidRequest(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCustomerRepo := new(MockCustomerRepository)
	service := newTestService(mockRepo, mockCustomerRepo, nil, serviceToday)

	ctx := context.Background()

	_, err := service.CheckEligibility(ctx, 1, -100, 15, 12)
	assert.Error(t, err)

	_, err = service.CheckEligibility(ctx, 1, 100000, -1, 12)
	assert.Error(t, err)

	_, err = service.CheckEligibility(ctx, 1, 100000, 15, 0)
	assert.Error(t, err)

	mockCustomerRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestCreateLoanApprovedCommitsAtomically(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCustomerRepo := new(MockCustomerRepository)
	mockPub := new(MockPublisher)
	service := newTestService(mockRepo, mockCustomerRepo, mockPub, serviceToday)

	ctx := context.Background()
	tx := &TxMock{}
	created := &Loan{LoanID: 42, CustomerID: 1, LoanAmount: 100000, TenureMonths: 12, InterestRate: 15, MonthlyRepayment: 9025.83}

	mockRepo.On("BeginTx", ctx).Return(tx, nil)
	mockCustomerRepo.On("FindByIDForUpdate", ctx, tx, int64(1)).Return(freshCustomer(), nil)
	mockRepo.On("ListByCustomerInTx", ctx, tx, int64(1)).Return([]Loan{}, nil)
	mockRepo.On("CreateLoanInTx", ctx, tx, mock.Anything).Return(created, nil)
	mockCustomerRepo.On("IncrementDebtInTx", ctx, tx, int64(1), 100000.0).Return(nil)
	mockRepo.On("CommitTx", ctx, tx).Return(nil)
	mockPub.On("PublishLoanApproved", ctx, mock.Anything).Return(nil)

	decision, err := service.CreateLoan(ctx, 1, 100000, 15, 12)

	assert.NoError(t, err)
	assert.True(t, decision.Approved)
	assert.Equal(t, MsgLoanApproved, decision.Message)
	if assert.NotNil(t, decision.LoanID) {
		assert.Equal(t, int64(42), *decision.LoanID)
	}
	mockRepo.AssertExpectations(t)
	mockCustomerRepo.AssertExpectations(t)
	mockPub.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "RollbackTx", mock.Anything, mock.Anything)
}

func TestCreateLoanRejectionWritesNothing(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCustomerRepo := new(MockCustomerRepository)
	service := newTestService(mockRepo, mockCustomerRepo, nil, serviceToday)

	ctx := context.Background()
	tx := &TxMock{}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// An active loan eating 60% of the salary trips the affordability gate.
	history := []Loan{{
		LoanAmount:       500000,
		TenureMonths:     24,
		EMIsPaidOnTime:   5,
		MonthlyRepayment: 30000,
		StartDate:        start,
		EndDate:          AddMonths(start, 24),
	}}

	mockRepo.On("BeginTx", ctx).Return(tx, nil)
	mockCustomerRepo.On("FindByIDForUpdate", ctx, tx, int64(1)).Return(freshCustomer(), nil)
	mockRepo.On("ListByCustomerInTx", ctx, tx, int64(1)).Return(history, nil)
	mockRepo.On("RollbackTx", ctx, tx).Return(nil)

	decision, err := service.CreateLoan(ctx, 1, 100000, 15, 12)

	assert.NoError(t, err)
	assert.False(t, decision.Approved)
	assert.Equal(t, MsgEMIExceedsSalary, decision.Message)
	assert.Nil(t, decision.LoanID)
	mockRepo.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "CreateLoanInTx", mock.Anything, mock.Anything, mock.Anything)
	mockCustomerRepo.AssertNotCalled(t, "IncrementDebtInTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "CommitTx", mock.Anything, mock.Anything)
}

func TestCreateLoanCountsLoanEndingTodayAsActive(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCustomerRepo := new(MockCustomerRepository)
	// The clock reads mid-afternoon; a loan whose end date is today must still
	// count against the affordability gate for the whole day.
	afternoon := serviceToday.Add(14*time.Hour + 30*time.Minute)
	service := newTestService(mockRepo, mockCustomerRepo, nil, afternoon)

	ctx := context.Background()
	tx := &TxMock{}
	start := time.Date(2022, 6, 15, 0, 0, 0, 0, time.UTC)
	history := []Loan{{
		LoanAmount:       500000,
		TenureMonths:     24,
		EMIsPaidOnTime:   24,
		MonthlyRepayment: 30000,
		StartDate:        start,
		EndDate:          AddMonths(start, 24),
	}}

	mockRepo.On("BeginTx", ctx).Return(tx, nil)
	mockCustomerRepo.On("FindByIDForUpdate", ctx, tx, int64(1)).Return(freshCustomer(), nil)
	mockRepo.On("ListByCustomerInTx", ctx, tx, int64(1)).Return(history, nil)
	mockRepo.On("RollbackTx", ctx, tx).Return(nil)

	decision, err := service.CreateLoan(ctx, 1, 100000, 15, 12)

	assert.NoError(t, err)
	assert.False(t, decision.Approved)
	assert.Equal(t, MsgEMIExceedsSalary, decision.Message)
	mockRepo.AssertNotCalled(t, "CreateLoanInTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateLoanRollsBackOnInsertFailure(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCustomerRepo := new(MockCustomerRepository)
	service := newTestService(mockRepo, mockCustomerRepo, nil, serviceToday)

	ctx := context.Background()
	tx := &TxMock{}
	dbErr := errors.New("insert failed")

	mockRepo.On("BeginTx", ctx).Return(tx, nil)
	mockCustomerRepo.On("FindByIDForUpdate", ctx, tx, int64(1)).Return(freshCustomer(), nil)
	mockRepo.On("ListByCustomerInTx", ctx, tx, int64(1)).Return([]Loan{}, nil)
	mockRepo.On("CreateLoanInTx", ctx, tx, mock.Anything).Return(nil, dbErr)
	mockRepo.On("RollbackTx", ctx, tx).Return(nil)

	_, err := service.CreateLoan(ctx, 1, 100000, 15, 12)

	assert.Error(t, err)
	mockRepo.AssertCalled(t, "RollbackTx", ctx, tx)
	mockRepo.AssertNotCalled(t, "CommitTx", mock.Anything, mock.Anything)
}

func TestCreateLoanCustomerNotFound(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCustomerRepo := new(MockCustomerRepository)
	service := newTestService(mockRepo, mockCustomerRepo, nil, serviceToday)

	ctx := context.Background()
	tx := &TxMock{}

	mockRepo.On("BeginTx", ctx).Return(tx, nil)
	mockCustomerRepo.On("FindByIDForUpdate", ctx, tx, int64(99)).Return(nil, customer.ErrNotFound)
	mockRepo.On("RollbackTx", ctx, tx).Return(nil)

	_, err := service.CreateLoan(ctx, 99, 100000, 15, 12)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	mockRepo.AssertCalled(t, "RollbackTx", ctx, tx)
}

func TestListCustomerLoans(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCustomerRepo := new(MockCustomerRepository)
	service := newTestService(mockRepo, mockCustomerRepo, nil, serviceToday)

	ctx := context.Background()
	start := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	loans := []Loan{{LoanID: 7, CustomerID: 1, LoanAmount: 200000, TenureMonths: 24, StartDate: start, EndDate: AddMonths(start, 24)}}

	mockCustomerRepo.On("FindByID", ctx, int64(1)).Return(freshCustomer(), nil)
	mockRepo.On("ListByCustomer", ctx, int64(1)).Return(loans, nil)

	result, err := service.ListCustomerLoans(ctx, 1)

	assert.NoError(t, err)
	assert.Equal(t, loans, result)
}

func TestListCustomerLoansUnknownCustomer(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCustomerRepo := new(MockCustomerRepository)
	service := newTestService(mockRepo, mockCustomerRepo, nil, serviceToday)

	ctx := context.Background()
	mockCustomerRepo.On("FindByID", ctx, int64(99)).Return(nil, customer.ErrNotFound)

	_, err := service.ListCustomerLoans(ctx, 99)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	mockRepo.AssertNotCalled(t, "ListByCustomer", mock.Anything, mock.Anything)
}
