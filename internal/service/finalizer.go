package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/paybook/internal/apperrors"
	"github.com/Freeeeeet/paybook/internal/model"
	"github.com/Freeeeeet/paybook/internal/notify"
	"github.com/Freeeeeet/paybook/internal/repository"
	"go.uber.org/zap"
)

// FinalizeRequest запрос на закрепление оплаченного слота
type FinalizeRequest struct {
	SlotID   int64
	Category string
	Email    string
	Code     string
}

// Finalizer превращает успешную оплату в бронирование
type Finalizer struct {
	guard    *SlotGuard
	payments PaymentStore
	bookings BookingStore
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewFinalizer(guard *SlotGuard, payments PaymentStore, bookings BookingStore, notifier Notifier, logger *zap.Logger) *Finalizer {
	return &Finalizer{
		guard:    guard,
		payments: payments,
		bookings: bookings,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Finalize создаёт бронирование по коду успешной оплаты.
// Повторный вызов для той же сессии возвращает уже созданное бронирование.
func (f *Finalizer) Finalize(ctx context.Context, req FinalizeRequest) (*model.Booking, error) {
	email := normalizeEmail(req.Email)

	// Находим сессию плательщика по коду
	sessions, err := f.payments.ListBySlotAndPayer(ctx, req.SlotID, email)
	if err != nil {
		return nil, fmt.Errorf("list payer sessions: %w", err)
	}
	if len(sessions) == 0 {
		return nil, apperrors.NotFound("payment session")
	}

	session := matchSuccessCode(sessions, req.Code)
	if session == nil {
		f.logger.Warn("Invalid finalize code presented", zap.Int64("slot_id", req.SlotID))
		return nil, apperrors.Unauthorized("invalid code")
	}

	if session.Status != model.PaymentStatusSuccess {
		return nil, apperrors.Conflict("payment is not successful")
	}

	// Повторная финализация той же оплаты
	existing, err := f.bookings.GetBySlotID(ctx, req.SlotID)
	if err != nil {
		return nil, fmt.Errorf("get slot booking: %w", err)
	}
	if existing != nil && existing.PaymentSessionID == session.ID {
		return existing, nil
	}

	if now := f.now(); session.IsOverdue(now) {
		// Деньги списаны, а слот не продан: нужен ручной возврат
		f.logger.Error("Payment anomaly: paid session expired before finalize",
			zap.String("session_id", session.ID.String()),
			zap.Int64("slot_id", session.SlotID),
			zap.Time("due_date", session.DueDate),
		)
		f.notifier.Send(notify.Event{
			Kind: notify.KindLateSuccess,
			Text: fmt.Sprintf("Оплата слота #%d на %s прошла, но бронь не закреплена до окончания срока, требуется возврат",
				session.SlotID, notify.FormatPrice(session.Amount)),
			Email:      session.PayerEmail,
			Data:       sessionData(session),
			OccurredAt: now,
		})
		return nil, apperrors.Conflict("expired")
	}

	if req.Category != session.Category {
		return nil, apperrors.InvalidInput("category does not match payment")
	}

	slot, err := f.guard.AssertOpen(ctx, req.SlotID, session.Category)
	if err != nil {
		return nil, err
	}

	booking := &model.Booking{
		SlotID:           slot.ID,
		Category:         session.Category,
		PayerEmail:       email,
		PaymentSessionID: session.ID,
	}

	if err := f.bookings.CreateForSlot(ctx, booking); err != nil {
		if errors.Is(err, repository.ErrSlotAlreadyBooked) {
			return nil, apperrors.Conflict("already booked")
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}

	f.logger.Info("Slot booked",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("slot_id", booking.SlotID),
		zap.String("category", booking.Category),
		zap.String("session_id", session.ID.String()),
	)

	f.notifier.Send(notify.Event{
		Kind: notify.KindBookingConfirmed,
		Text: fmt.Sprintf("Слот #%d на %s забронирован (%s), оплачено %s",
			slot.ID, notify.FormatTime(slot.StartTime), booking.Category, notify.FormatPrice(session.Amount)),
		Email: email,
		Data: map[string]any{
			"booking_id": booking.ID,
			"slot_id":    slot.ID,
			"category":   booking.Category,
			"start_time": slot.StartTime,
		},
		OccurredAt: f.now(),
	})

	return booking, nil
}

func matchSuccessCode(sessions []*model.PaymentSession, code string) *model.PaymentSession {
	for _, s := range sessions {
		if codesEqual(s.SuccessCode, code) {
			return s
		}
	}
	return nil
}
