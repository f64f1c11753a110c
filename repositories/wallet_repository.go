package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// WalletRepository is the funds ledger. It is co-located with the rest of the
// tournament data, so debits and payouts join the engine's transaction and
// need no compensating actions.
type WalletRepository interface {
	// CheckAndDebit atomically verifies both balances cover the amounts and
	// debits them, or fails with ErrInsufficientFunds leaving the wallet
	// untouched.
	CheckAndDebit(ctx context.Context, exec SQLExecutor, participantID int, credits, premium int64, reference string) error
	Credit(ctx context.Context, exec SQLExecutor, participantID int, credits, premium int64, reference string) error
	Balance(ctx context.Context, participantID int) (credits, premium int64, err error)
}

type postgresWalletRepository struct {
	db *sql.DB
}

func NewPostgresWalletRepository(db *sql.DB) WalletRepository {
	return &postgresWalletRepository{db: db}
}

func (r *postgresWalletRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresWalletRepository) CheckAndDebit(ctx context.Context, exec SQLExecutor, participantID int, credits, premium int64, reference string) error {
	executor := r.getExecutor(exec)

	// The balance guard in the WHERE clause makes check-and-debit a single
	// atomic statement.
	query := `
		UPDATE wallets
		SET credits = credits - $1, premium = premium - $2
		WHERE participant_id = $3 AND credits >= $1 AND premium >= $2`
	result, err := executor.ExecContext(ctx, query, credits, premium, participantID)
	if err != nil {
		return fmt.Errorf("failed to debit wallet for participant %d: %w", participantID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := executor.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM wallets WHERE participant_id = $1)`, participantID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check wallet existence: %w", err)
		}
		if !exists {
			return ErrWalletNotFound
		}
		return ErrInsufficientFunds
	}

	return r.logTransaction(ctx, executor, participantID, -credits, -premium, reference)
}

func (r *postgresWalletRepository) Credit(ctx context.Context, exec SQLExecutor, participantID int, credits, premium int64, reference string) error {
	executor := r.getExecutor(exec)

	query := `UPDATE wallets SET credits = credits + $1, premium = premium + $2 WHERE participant_id = $3`
	result, err := executor.ExecContext(ctx, query, credits, premium, participantID)
	if err != nil {
		return fmt.Errorf("failed to credit wallet for participant %d: %w", participantID, err)
	}
	if err := checkAffectedRows(result, ErrWalletNotFound); err != nil {
		return err
	}

	return r.logTransaction(ctx, executor, participantID, credits, premium, reference)
}

func (r *postgresWalletRepository) Balance(ctx context.Context, participantID int) (int64, int64, error) {
	var credits, premium int64
	err := r.db.QueryRowContext(ctx,
		`SELECT credits, premium FROM wallets WHERE participant_id = $1`, participantID,
	).Scan(&credits, &premium)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, ErrWalletNotFound
		}
		return 0, 0, err
	}
	return credits, premium, nil
}

func (r *postgresWalletRepository) logTransaction(ctx context.Context, executor SQLExecutor, participantID int, creditsDelta, premiumDelta int64, reference string) error {
	_, err := executor.ExecContext(ctx, `
		INSERT INTO wallet_transactions (participant_id, credits_delta, premium_delta, reference)
		VALUES ($1, $2, $3, $4)`,
		participantID, creditsDelta, premiumDelta, reference,
	)
	if err != nil {
		return fmt.Errorf("failed to log wallet transaction: %w", err)
	}
	return nil
}
