package batch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"credit-engine/internal/config"
	"credit-engine/internal/domain/customer"
	"credit-engine/internal/domain/loan"
	"credit-engine/internal/infrastructure/monitoring"

	"github.com/xuri/excelize/v2"
)

// IngestJob bulk-loads historical customer and loan records from the two
// Excel workbooks. Upserts are keyed by the external IDs in the files, so
// rerunning the job is idempotent. Customers load first since loans
// reference them.
type IngestJob struct {
	customerRepo customer.CustomerRepository
	loanRepo     loan.Repository
	cfg          config.IngestionConfig
	logger       *slog.Logger
}

func NewIngestJob(customerRepo customer.CustomerRepository, loanRepo loan.Repository, cfg config.IngestionConfig, logger *slog.Logger) *IngestJob {
	if customerRepo == nil || loanRepo == nil || logger == nil {
		panic("IngestJob dependencies cannot be nil")
	}
	return &IngestJob{
		customerRepo: customerRepo,
		loanRepo:     loanRepo,
		cfg:          cfg,
		logger:       logger.With("job", "Ingest"),
	}
}

func (j *IngestJob) Run(ctx context.Context) error {
	startTime := time.Now()
	j.logger.InfoContext(ctx, "Starting bulk data ingestion.")

	customerErrs, err := j.ingestCustomers(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Customer ingestion failed, skipping loan ingestion.", slog.Any("error", err))
		return fmt.Errorf("customer ingestion failed: %w", err)
	}

	loanErrs, err := j.ingestLoans(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Loan ingestion failed.", slog.Any("error", err))
		return fmt.Errorf("loan ingestion failed: %w", err)
	}

	totalErrs := customerErrs + loanErrs
	summaryLog := j.logger.With(
		slog.Duration("duration", time.Since(startTime)),
		slog.Int("row_errors", totalErrs),
	)
	if totalErrs > 0 {
		summaryLog.WarnContext(ctx, "Bulk data ingestion finished with row errors.")
		return fmt.Errorf("ingestion completed with %d row errors", totalErrs)
	}
	summaryLog.InfoContext(ctx, "Bulk data ingestion finished successfully.")
	return nil
}

func (j *IngestJob) ingestCustomers(ctx context.Context) (rowErrors int, err error) {
	rows, header, err := readSheet(j.cfg.CustomerFile)
	if err != nil {
		return 0, err
	}
	j.logger.InfoContext(ctx, "Ingesting customer records.", slog.Int("count", len(rows)), slog.String("file", j.cfg.CustomerFile))

	for i, row := range rows {
		cust, parseErr := parseCustomerRow(header, row)
		if parseErr != nil {
			j.logger.WarnContext(ctx, "Skipping malformed customer row", slog.Int("row", i+2), slog.Any("error", parseErr))
			rowErrors++
			continue
		}
		if upsertErr := j.customerRepo.Upsert(ctx, cust); upsertErr != nil {
			j.logger.ErrorContext(ctx, "Failed to upsert customer", slog.Int64("customerID", cust.CustomerID), slog.Any("error", upsertErr))
			rowErrors++
		}
	}
	return rowErrors, nil
}

func (j *IngestJob) ingestLoans(ctx context.Context) (rowErrors int, err error) {
	rows, header, err := readSheet(j.cfg.LoanFile)
	if err != nil {
		return 0, err
	}
	j.logger.InfoContext(ctx, "Ingesting loan records.", slog.Int("count", len(rows)), slog.String("file", j.cfg.LoanFile))

	for i, row := range rows {
		l, parseErr := parseLoanRow(header, row)
		if parseErr != nil {
			j.logger.WarnContext(ctx, "Skipping malformed loan row", slog.Int("row", i+2), slog.Any("error", parseErr))
			rowErrors++
			continue
		}
		if upsertErr := j.loanRepo.Upsert(ctx, l); upsertErr != nil {
			j.logger.ErrorContext(ctx, "Failed to upsert loan", slog.Int64("loanID", l.LoanID), slog.Any("error", upsertErr))
			rowErrors++
			continue
		}
		monitoring.RecordLoanIngested()
	}
	return rowErrors, nil
}

// readSheet returns the data rows of the first sheet plus a header-name ->
// column-index map.
func readSheet(path string) ([][]string, map[string]int, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook %s has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("workbook %s is empty", path)
	}

	header := make(map[string]int, len(rows[0]))
	for idx, name := range rows[0] {
		header[strings.TrimSpace(name)] = idx
	}
	return rows[1:], header, nil
}

func cell(header map[string]int, row []string, name string) (string, error) {
	idx, ok := header[name]
	if !ok {
		return "", fmt.Errorf("missing column %q", name)
	}
	if idx >= len(row) {
		return "", fmt.Errorf("row too short for column %q", name)
	}
	return strings.TrimSpace(row[idx]), nil
}

func cellInt(header map[string]int, row []string, name string) (int64, error) {
	s, err := cell(header, row, name)
	if err != nil {
		return 0, err
	}
	// Excel often renders integer cells as floats ("3.0").
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("column %q: %w", name, err)
	}
	return int64(f), nil
}

func cellFloat(header map[string]int, row []string, name string) (float64, error) {
	s, err := cell(header, row, name)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("column %q: %w", name, err)
	}
	return f, nil
}

var dateLayouts = []string{"2006-01-02", "01-02-06", "1/2/2006", "2006-01-02 15:04:05", time.RFC3339}

func cellDate(header map[string]int, row []string, name string) (time.Time, error) {
	s, err := cell(header, row, name)
	if err != nil {
		return time.Time{}, err
	}
	for _, layout := range dateLayouts {
		if t, parseErr := time.Parse(layout, s); parseErr == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("column %q: unrecognized date %q", name, s)
}

func parseCustomerRow(header map[string]int, row []string) (*customer.Customer, error) {
	id, err := cellInt(header, row, "Customer ID")
	if err != nil {
		return nil, err
	}
	firstName, err := cell(header, row, "First Name")
	if err != nil {
		return nil, err
	}
	lastName, err := cell(header, row, "Last Name")
	if err != nil {
		return nil, err
	}
	age, err := cellInt(header, row, "Age")
	if err != nil {
		return nil, err
	}
	phone, err := cell(header, row, "Phone Number")
	if err != nil {
		return nil, err
	}
	salary, err := cellFloat(header, row, "Monthly Salary")
	if err != nil {
		return nil, err
	}
	limit, err := cellFloat(header, row, "Approved Limit")
	if err != nil {
		return nil, err
	}

	return &customer.Customer{
		CustomerID:    id,
		FirstName:     firstName,
		LastName:      lastName,
		Age:           int(age),
		PhoneNumber:   phone,
		MonthlySalary: salary,
		ApprovedLimit: limit,
		// The workbook carries no debt column; ingested customers start clean.
		CurrentDebt: 0,
	}, nil
}

func parseLoanRow(header map[string]int, row []string) (*loan.Loan, error) {
	loanID, err := cellInt(header, row, "Loan ID")
	if err != nil {
		return nil, err
	}
	customerID, err := cellInt(header, row, "Customer ID")
	if err != nil {
		return nil, err
	}
	amount, err := cellFloat(header, row, "Loan Amount")
	if err != nil {
		return nil, err
	}
	tenure, err := cellInt(header, row, "Tenure")
	if err != nil {
		return nil, err
	}
	rate, err := cellFloat(header, row, "Interest Rate")
	if err != nil {
		return nil, err
	}
	repayment, err := cellFloat(header, row, "Monthly payment")
	if err != nil {
		return nil, err
	}
	paidOnTime, err := cellInt(header, row, "EMIs paid on Time")
	if err != nil {
		return nil, err
	}
	startDate, err := cellDate(header, row, "Date of Approval")
	if err != nil {
		return nil, err
	}
	endDate, err := cellDate(header, row, "End Date")
	if err != nil {
		return nil, err
	}

	return &loan.Loan{
		LoanID:           loanID,
		CustomerID:       customerID,
		LoanAmount:       amount,
		TenureMonths:     int(tenure),
		InterestRate:     rate,
		MonthlyRepayment: repayment,
		EMIsPaidOnTime:   int(paidOnTime),
		StartDate:        startDate,
		EndDate:          endDate,
	}, nil
}
