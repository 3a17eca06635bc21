package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/paybook/internal/model"
	"github.com/Freeeeeet/paybook/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DiscountRepository struct {
	*base.Repository
}

func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{Repository: base.NewRepository(pool)}
}

// GetByValue получает промокод по значению
func (r *DiscountRepository) GetByValue(ctx context.Context, value string) (*model.DiscountCode, error) {
	query := `
		SELECT id, value, percent, is_active, expires_at, max_uses, uses, created_at
		FROM discount_codes
		WHERE value = $1
	`

	var code model.DiscountCode
	err := r.Pool().QueryRow(ctx, query, value).Scan(
		&code.ID,
		&code.Value,
		&code.Percent,
		&code.IsActive,
		&code.ExpiresAt,
		&code.MaxUses,
		&code.Uses,
		&code.CreatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get discount code by value: %w", err)
	}

	return &code, nil
}

// incrementUses учитывает успешную оплату с промокодом внутри транзакции.
// Счётчик не превышает max_uses: если лимит уже выбран, возвращает false.
func incrementUses(ctx context.Context, tx pgx.Tx, value string) (bool, error) {
	query := `
		UPDATE discount_codes
		SET uses = uses + 1
		WHERE value = $1 AND (max_uses IS NULL OR uses < max_uses)
	`

	result, err := tx.Exec(ctx, query, value)
	if err != nil {
		return false, fmt.Errorf("increment discount uses: %w", err)
	}

	return result.RowsAffected() > 0, nil
}
