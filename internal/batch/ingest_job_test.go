package batch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"credit-engine/internal/config"
	"credit-engine/internal/domain/customer"
	"credit-engine/internal/domain/loan"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, nil))

type MockCustomerRepository struct {
	mock.Mock
}

func (_m *MockCustomerRepository) Save(ctx context.Context, cust *customer.Customer) error {
	return _m.Called(ctx, cust).Error(0)
}

func (_m *MockCustomerRepository) Upsert(ctx context.Context, cust *customer.Customer) error {
	return _m.Called(ctx, cust).Error(0)
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
	return _m.Called(ctx, tx, customerID, amount).Error(0)
}

type MockLoanRepository struct {
	mock.Mock
}

func (_m *MockLoanRepository) CreateLoanInTx(ctx context.Context, tx pgx.Tx, newLoan *loan.Loan) (*loan.Loan, error) {
	ret := _m.Called(ctx, tx, newLoan)

	var r0 *loan.Loan
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*loan.Loan)
	}
	return r0, ret.Error(1)
}

func (_m *MockLoanRepository) ListByCustomer(ctx context.Context, customerID int64) ([]loan.Loan, error) {
	ret := _m.Called(ctx, customerID)

	var r0 []loan.Loan
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]loan.Loan)
	}
	return r0, ret.Error(1)
}

func (_m *MockLoanRepository) ListByCustomerInTx(ctx context.Context, tx pgx.Tx, customerID int64) ([]loan.Loan, error) {
	ret := _m.Called(ctx, tx, customerID)

	var r0 []loan.Loan
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]loan.Loan)
	}
	return r0, ret.Error(1)
}

func (_m *MockLoanRepository) Upsert(ctx context.Context, l *loan.Loan) error {
	return _m.Called(ctx, l).Error(0)
}

func (_m *MockLoanRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	ret := _m.Called(ctx)

	var r0 pgx.Tx
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(pgx.Tx)
	}
	return r0, ret.Error(1)
}

func (_m *MockLoanRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	return _m.Called(ctx, tx).Error(0)
}

func (_m *MockLoanRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	return _m.Called(ctx, tx).Error(0)
}

func writeWorkbook(t *testing.T, path string, rows [][]interface{}) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

func writeCustomerWorkbook(t *testing.T, path string) {
	writeWorkbook(t, path, [][]interface{}{
		{"Customer ID", "First Name", "Last Name", "Age", "Phone Number", "Monthly Salary", "Approved Limit"},
		{1, "Asha", "Rao", 31, "9876543210", 50000, 1800000},
		{2, "Ravi", "Iyer", 40, "9123456780", 80000, 2900000},
	})
}

func writeLoanWorkbook(t *testing.T, path string) {
	writeWorkbook(t, path, [][]interface{}{
		{"Loan ID", "Customer ID", "Loan Amount", "Tenure", "Interest Rate", "Monthly payment", "EMIs paid on Time", "Date of Approval", "End Date"},
		{1001, 1, 100000, 12, 14.5, 9000.12, 6, "2023-01-15", "2024-01-15"},
	})
}

func ingestConfig(dir string) config.IngestionConfig {
	return config.IngestionConfig{
		Enabled:      true,
		CustomerFile: filepath.Join(dir, "customer_data.xlsx"),
		LoanFile:     filepath.Join(dir, "loan_data.xlsx"),
	}
}

func TestIngestJobRun(t *testing.T) {
	dir := t.TempDir()
	cfg := ingestConfig(dir)
	writeCustomerWorkbook(t, cfg.CustomerFile)
	writeLoanWorkbook(t, cfg.LoanFile)

	mockCustomerRepo := new(MockCustomerRepository)
	mockLoanRepo := new(MockLoanRepository)

	var customers []*customer.Customer
	mockCustomerRepo.On("Upsert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		customers = append(customers, args.Get(1).(*customer.Customer))
	}).Return(nil)

	var loans []*loan.Loan
	mockLoanRepo.On("Upsert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		loans = append(loans, args.Get(1).(*loan.Loan))
	}).Return(nil)

	job := NewIngestJob(mockCustomerRepo, mockLoanRepo, cfg, logger)
	err := job.Run(context.Background())

	assert.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Equal(t, int64(1), customers[0].CustomerID)
	assert.Equal(t, "Asha", customers[0].FirstName)
	assert.Equal(t, 1800000.0, customers[0].ApprovedLimit)
	assert.Equal(t, 0.0, customers[0].CurrentDebt)

	require.Len(t, loans, 1)
	assert.Equal(t, int64(1001), loans[0].LoanID)
	assert.Equal(t, int64(1), loans[0].CustomerID)
	assert.Equal(t, 12, loans[0].TenureMonths)
	assert.Equal(t, 14.5, loans[0].InterestRate)
	assert.Equal(t, 6, loans[0].EMIsPaidOnTime)
	assert.Equal(t, 2023, loans[0].StartDate.Year())
}

func TestIngestJobRunIsRepeatable(t *testing.T) {
	dir := t.TempDir()
	cfg := ingestConfig(dir)
	writeCustomerWorkbook(t, cfg.CustomerFile)
	writeLoanWorkbook(t, cfg.LoanFile)

	mockCustomerRepo := new(MockCustomerRepository)
	mockLoanRepo := new(MockLoanRepository)
	mockCustomerRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	mockLoanRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	job := NewIngestJob(mockCustomerRepo, mockLoanRepo, cfg, logger)
	assert.NoError(t, job.Run(context.Background()))
	assert.NoError(t, job.Run(context.Background()))

	mockCustomerRepo.AssertNumberOfCalls(t, "Upsert", 4)
	mockLoanRepo.AssertNumberOfCalls(t, "Upsert", 2)
}

func TestIngestJobCountsMalformedRows(t *testing.T) {
	dir := t.TempDir()
	cfg := ingestConfig(dir)
	writeWorkbook(t, cfg.CustomerFile, [][]interface{}{
		{"Customer ID", "First Name", "Last Name", "Age", "Phone Number", "Monthly Salary", "Approved Limit"},
		{1, "Asha", "Rao", 31, "9876543210", 50000, 1800000},
		{"not-a-number", "Broken", "Row", 20, "123", 1000, 36000},
	})
	writeLoanWorkbook(t, cfg.LoanFile)

	mockCustomerRepo := new(MockCustomerRepository)
	mockLoanRepo := new(MockLoanRepository)
	mockCustomerRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	mockLoanRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	job := NewIngestJob(mockCustomerRepo, mockLoanRepo, cfg, logger)
	err := job.Run(context.Background())

	// The good rows still land; the malformed one surfaces as an error.
	assert.Error(t, err)
	mockCustomerRepo.AssertNumberOfCalls(t, "Upsert", 1)
	mockLoanRepo.AssertNumberOfCalls(t, "Upsert", 1)
}

func TestIngestJobMissingCustomerFileSkipsLoans(t *testing.T) {
	dir := t.TempDir()
	cfg := ingestConfig(dir)
	writeLoanWorkbook(t, cfg.LoanFile)

	mockCustomerRepo := new(MockCustomerRepository)
	mockLoanRepo := new(MockLoanRepository)

	job := NewIngestJob(mockCustomerRepo, mockLoanRepo, cfg, logger)
	err := job.Run(context.Background())

	assert.Error(t, err)
	mockLoanRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}
