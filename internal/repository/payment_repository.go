package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/paybook/internal/model"
	"github.com/Freeeeeet/paybook/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrLiveSessionExists на слоте уже есть неистёкшая PENDING сессия
var ErrLiveSessionExists = errors.New("live payment session already exists for slot")

const liveSessionIndex = "ux_payment_sessions_live_slot"

type PaymentRepository struct {
	*base.Repository
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{Repository: base.NewRepository(pool)}
}

const paymentColumns = `id, slot_id, category, payer_email, amount, discount_code, status, due_date,
	success_code, fail_code, gateway_id, payment_url, created_at, updated_at`

func scanPayment(row pgx.Row) (*model.PaymentSession, error) {
	var p model.PaymentSession
	err := row.Scan(
		&p.ID,
		&p.SlotID,
		&p.Category,
		&p.PayerEmail,
		&p.Amount,
		&p.DiscountCode,
		&p.Status,
		&p.DueDate,
		&p.SuccessCode,
		&p.FailCode,
		&p.GatewayID,
		&p.PaymentURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPayments(rows pgx.Rows) ([]*model.PaymentSession, error) {
	defer rows.Close()

	var sessions []*model.PaymentSession
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment session: %w", err)
		}
		sessions = append(sessions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment sessions: %w", err)
	}

	return sessions, nil
}

// Create сохраняет новую PENDING сессию.
// Просроченные PENDING сессии слота в той же транзакции переводятся в EXPIRED,
// после чего уникальный индекс по живой сессии решает гонку двух вставок.
func (r *PaymentRepository) Create(ctx context.Context, p *model.PaymentSession, now time.Time) error {
	expire := `
		UPDATE payment_sessions
		SET status = 'EXPIRED', updated_at = now()
		WHERE slot_id = $1 AND status = 'PENDING' AND due_date < $2
	`

	insert := `
		INSERT INTO payment_sessions (id, slot_id, category, payer_email, amount, discount_code,
			status, due_date, success_code, fail_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err := r.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, expire, p.SlotID, now); err != nil {
			return fmt.Errorf("expire stale sessions: %w", err)
		}

		return tx.QueryRow(ctx, insert,
			p.ID,
			p.SlotID,
			p.Category,
			p.PayerEmail,
			p.Amount,
			p.DiscountCode,
			p.Status,
			p.DueDate,
			p.SuccessCode,
			p.FailCode,
		).Scan(&p.CreatedAt, &p.UpdatedAt)
	})

	if err != nil {
		if base.IsUniqueViolation(err, liveSessionIndex) {
			return ErrLiveSessionExists
		}
		return fmt.Errorf("create payment session: %w", err)
	}

	return nil
}

// GetByID получает сессию по ID
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PaymentSession, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_sessions WHERE id = $1`

	p, err := scanPayment(r.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment session by id: %w", err)
	}

	return p, nil
}

// ListBySlot получает все сессии слота
func (r *PaymentRepository) ListBySlot(ctx context.Context, slotID int64) ([]*model.PaymentSession, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payment_sessions
		WHERE slot_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.Pool().Query(ctx, query, slotID)
	if err != nil {
		return nil, fmt.Errorf("list payment sessions by slot: %w", err)
	}

	return collectPayments(rows)
}

// ListBySlotAndPayer получает сессии плательщика на слоте, новые первыми
func (r *PaymentRepository) ListBySlotAndPayer(ctx context.Context, slotID int64, email string) ([]*model.PaymentSession, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payment_sessions
		WHERE slot_id = $1 AND payer_email = $2
		ORDER BY created_at DESC
	`

	rows, err := r.Pool().Query(ctx, query, slotID, email)
	if err != nil {
		return nil, fmt.Errorf("list payment sessions by payer: %w", err)
	}

	return collectPayments(rows)
}

// AttachGateway сохраняет ответ шлюза: его id, итоговую сумму и ссылку на оплату
func (r *PaymentRepository) AttachGateway(ctx context.Context, id uuid.UUID, gatewayID string, amount int64, paymentURL string) error {
	query := `
		UPDATE payment_sessions
		SET gateway_id = $1, amount = $2, payment_url = $3, updated_at = now()
		WHERE id = $4
	`

	result, err := r.Pool().Exec(ctx, query, gatewayID, amount, paymentURL, id)
	if err != nil {
		return fmt.Errorf("attach gateway session: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("payment session not found")
	}

	return nil
}

// Resolution итог попытки записать терминальный статус
type Resolution struct {
	Status  model.PaymentStatus // статус после вызова
	Applied bool                // запись применилась
	// DiscountExhausted: промокод сессии к моменту оплаты уже выбрал max_uses
	DiscountExhausted bool
}

// ResolveStatus записывает терминальный статус, только если сессия ещё не завершена.
// Первый переход в SUCCESS в той же транзакции учитывает использование промокода.
func (r *PaymentRepository) ResolveStatus(ctx context.Context, id uuid.UUID, status model.PaymentStatus) (Resolution, error) {
	update := `
		UPDATE payment_sessions
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status IN ('PENDING', 'EXPIRED')
		RETURNING discount_code
	`

	var res Resolution

	err := r.InTx(ctx, func(tx pgx.Tx) error {
		var discount *string
		err := tx.QueryRow(ctx, update, status, id).Scan(&discount)
		if err == nil {
			res.Status, res.Applied = status, true
			if status == model.PaymentStatusSuccess && discount != nil {
				counted, err := incrementUses(ctx, tx, *discount)
				if err != nil {
					return err
				}
				res.DiscountExhausted = !counted
			}
			return nil
		}

		if !base.IsNotFound(err) {
			return fmt.Errorf("update payment status: %w", err)
		}

		err = tx.QueryRow(ctx, `SELECT status FROM payment_sessions WHERE id = $1`, id).Scan(&res.Status)
		if err != nil {
			return fmt.Errorf("read payment status: %w", err)
		}
		return nil
	})

	if err != nil {
		return Resolution{}, fmt.Errorf("resolve payment status: %w", err)
	}

	return res, nil
}

// ExpireOverdue переводит просроченные PENDING сессии в EXPIRED
func (r *PaymentRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE payment_sessions
		SET status = 'EXPIRED', updated_at = now()
		WHERE status = 'PENDING' AND due_date < $1
	`

	tag, err := r.Pool().Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("expire overdue sessions: %w", err)
	}

	return tag.RowsAffected(), nil
}

// ListUnresolved получает незавершённые сессии, уже открытые в шлюзе,
// с due date не раньше since
func (r *PaymentRepository) ListUnresolved(ctx context.Context, since time.Time, limit int) ([]*model.PaymentSession, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payment_sessions
		WHERE status IN ('PENDING', 'EXPIRED')
		  AND gateway_id IS NOT NULL
		  AND due_date >= $1
		ORDER BY due_date
		LIMIT $2
	`

	rows, err := r.Pool().Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list unresolved sessions: %w", err)
	}

	return collectPayments(rows)
}
