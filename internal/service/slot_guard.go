package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/paybook/internal/apperrors"
	"github.com/Freeeeeet/paybook/internal/model"
)

// SlotGuard проверяет, можно ли продавать слот.
// Проверка выполняется заново на каждом изменяющем шаге: между шагами проходит время
// и состояние могли поменять другие запросы.
type SlotGuard struct {
	slots    SlotStore
	payments PaymentStore
	now      func() time.Time
}

func NewSlotGuard(slots SlotStore, payments PaymentStore) *SlotGuard {
	return &SlotGuard{
		slots:    slots,
		payments: payments,
		now:      time.Now,
	}
}

// AssertBookable проверяет слот перед открытием оплаты
func (g *SlotGuard) AssertBookable(ctx context.Context, slotID int64, category, email string) (*model.Slot, error) {
	now := g.now()

	slot, err := g.loadFuture(ctx, slotID, now)
	if err != nil {
		return nil, err
	}

	if slot.IsBound() {
		return nil, apperrors.Conflict("already booked or paid")
	}

	sessions, err := g.payments.ListBySlot(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("list slot sessions: %w", err)
	}

	for _, p := range sessions {
		if p.Status == model.PaymentStatusSuccess && p.PayerEmail == email {
			return nil, apperrors.Conflict("already booked or paid")
		}
	}

	for _, p := range sessions {
		if p.IsLive(now) {
			return nil, apperrors.Conflict("pending payment exists")
		}
	}

	if !slot.Allows(category) {
		return nil, apperrors.Forbidden("category is not allowed for this slot")
	}

	return slot, nil
}

// AssertOpen проверяет слот без учёта платёжных сессий, используется при привязке бронирования
func (g *SlotGuard) AssertOpen(ctx context.Context, slotID int64, category string) (*model.Slot, error) {
	slot, err := g.loadFuture(ctx, slotID, g.now())
	if err != nil {
		return nil, err
	}

	if slot.IsBound() {
		return nil, apperrors.Conflict("already booked")
	}

	if !slot.Allows(category) {
		return nil, apperrors.Forbidden("category is not allowed for this slot")
	}

	return slot, nil
}

func (g *SlotGuard) loadFuture(ctx context.Context, slotID int64, now time.Time) (*model.Slot, error) {
	slot, err := g.slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}

	if slot == nil || slot.IsPast(now) {
		return nil, apperrors.NotFound("slot")
	}

	return slot, nil
}
