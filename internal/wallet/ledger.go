// Package wallet is the boundary to the platform's coin ledger. The
// arena only ever credits; debits and balance reads belong to the
// platform.
package wallet

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
)

// Ledger posts a coin credit and returns the resulting balance.
// Callers are responsible for at-most-once semantics.
type Ledger interface {
	Credit(ctx context.Context, userID string, amount int, reason, sourceTag string) (int, error)
}

// PostgresLedger credits the student balance and appends a matching
// coin_transactions row in one transaction.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) Credit(ctx context.Context, userID string, amount int, reason, sourceTag string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, fmt.Errorf("ledger credit: user id required")
	}
	if amount <= 0 {
		return 0, fmt.Errorf("ledger credit: non-positive amount %d", amount)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("ledger credit: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var balance int
	err = tx.QueryRowContext(ctx, `
		UPDATE students
		SET coin_balance = coin_balance + $2
		WHERE id = $1
		RETURNING coin_balance
	`, userID, amount).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("ledger credit: unknown student %s", userID)
	}
	if err != nil {
		return 0, fmt.Errorf("ledger credit: balance update: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO coin_transactions (student_id, amount, reason, source, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, userID, amount, reason, sourceTag)
	if err != nil {
		return 0, fmt.Errorf("ledger credit: transaction row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("ledger credit: commit: %w", err)
	}
	return balance, nil
}
