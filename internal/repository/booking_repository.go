package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/paybook/internal/model"
	"github.com/Freeeeeet/paybook/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSlotAlreadyBooked слот уже привязан к бронированию
var ErrSlotAlreadyBooked = errors.New("slot already booked")

type BookingRepository struct {
	*base.Repository
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{Repository: base.NewRepository(pool)}
}

// CreateForSlot создаёт бронирование и привязывает его к слоту одной транзакцией.
// Уникальность bookings.slot_id и условный UPDATE слота гарантируют,
// что из параллельных вызовов выигрывает только первый.
func (r *BookingRepository) CreateForSlot(ctx context.Context, booking *model.Booking) error {
	insert := `
		INSERT INTO bookings (slot_id, category, payer_email, payment_session_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
		RETURNING id, created_at
	`

	bind := `
		UPDATE slots
		SET booking_id = $1
		WHERE id = $2 AND booking_id IS NULL
	`

	err := r.InTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, insert,
			booking.SlotID,
			booking.Category,
			booking.PayerEmail,
			booking.PaymentSessionID,
		).Scan(&booking.ID, &booking.CreatedAt)
		if err != nil {
			if base.IsNotFound(err) {
				return ErrSlotAlreadyBooked
			}
			return fmt.Errorf("insert booking: %w", err)
		}

		result, err := tx.Exec(ctx, bind, booking.ID, booking.SlotID)
		if err != nil {
			return fmt.Errorf("bind slot: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrSlotAlreadyBooked
		}

		return nil
	})

	if err != nil {
		if errors.Is(err, ErrSlotAlreadyBooked) || base.IsUniqueViolation(err, "") {
			return ErrSlotAlreadyBooked
		}
		return fmt.Errorf("create booking: %w", err)
	}

	return nil
}

// GetBySlotID получает бронирование слота
func (r *BookingRepository) GetBySlotID(ctx context.Context, slotID int64) (*model.Booking, error) {
	query := `
		SELECT id, slot_id, category, payer_email, payment_session_id, created_at
		FROM bookings
		WHERE slot_id = $1
	`

	var booking model.Booking
	err := r.Pool().QueryRow(ctx, query, slotID).Scan(
		&booking.ID,
		&booking.SlotID,
		&booking.Category,
		&booking.PayerEmail,
		&booking.PaymentSessionID,
		&booking.CreatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by slot: %w", err)
	}

	return &booking, nil
}
