package loan

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type Repository interface {
	// CreateLoanInTx inserts an approved loan inside the caller's transaction
	// so the insert and the customer debt increment commit as one unit.
	CreateLoanInTx(ctx context.Context, tx pgx.Tx, newLoan *Loan) (*Loan, error)

	ListByCustomer(ctx context.Context, customerID int64) ([]Loan, error)

	ListByCustomerInTx(ctx context.Context, tx pgx.Tx, customerID int64) ([]Loan, error)

	// Upsert writes a loan keyed by its external LoanID, used by the bulk
	// ingestion job. Idempotent.
	Upsert(ctx context.Context, l *Loan) error

	BeginTx(ctx context.Context) (pgx.Tx, error)

	CommitTx(ctx context.Context, tx pgx.Tx) error

	RollbackTx(ctx context.Context, tx pgx.Tx) error
}
