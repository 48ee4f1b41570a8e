package customer

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound = errors.New("customer not found")

	ErrPhoneNumberTaken = errors.New("phone number already registered")
)

type CustomerRepository interface {
	Save(ctx context.Context, customer *Customer) error

	// Upsert writes a customer keyed by its external CustomerID, used by the
	// bulk ingestion job. Idempotent.
	Upsert(ctx context.Context, customer *Customer) error

	FindByID(ctx context.Context, customerID int64) (*Customer, error)

	// FindByIDForUpdate locks the customer row for the duration of tx so two
	// concurrent loan decisions cannot both read a stale current_debt.
	FindByIDForUpdate(ctx context.Context, tx pgx.Tx, customerID int64) (*Customer, error)

	IncrementDebtInTx(ctx context.Context, tx pgx.Tx, customerID int64, amount float64) error
}
