package repositories

import (
	"context"
	"database/sql"
	"fmt"
)

// InventoryRepository grants item rewards to participant inventories.
type InventoryRepository interface {
	GrantItem(ctx context.Context, exec SQLExecutor, participantID int, itemID string, quantity int) error
}

type postgresInventoryRepository struct {
	db *sql.DB
}

func NewPostgresInventoryRepository(db *sql.DB) InventoryRepository {
	return &postgresInventoryRepository{db: db}
}

func (r *postgresInventoryRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresInventoryRepository) GrantItem(ctx context.Context, exec SQLExecutor, participantID int, itemID string, quantity int) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO inventory_items (participant_id, item_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (participant_id, item_id)
		DO UPDATE SET quantity = inventory_items.quantity + EXCLUDED.quantity`
	if _, err := executor.ExecContext(ctx, query, participantID, itemID, quantity); err != nil {
		return fmt.Errorf("failed to grant item %s to participant %d: %w", itemID, participantID, err)
	}
	return nil
}
