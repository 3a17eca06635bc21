package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/paybook/internal/acquiring"
	"github.com/Freeeeeet/paybook/internal/catalog"
	"github.com/Freeeeeet/paybook/internal/model"
	"github.com/Freeeeeet/paybook/internal/notify"
	"github.com/Freeeeeet/paybook/internal/repository"
	"github.com/google/uuid"
)

// SlotStore чтение слотов
type SlotStore interface {
	GetByID(ctx context.Context, id int64) (*model.Slot, error)
}

// PaymentStore хранилище платёжных сессий.
// Create возвращает repository.ErrLiveSessionExists, если на слоте уже есть живая сессия.
type PaymentStore interface {
	Create(ctx context.Context, p *model.PaymentSession, now time.Time) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.PaymentSession, error)
	ListBySlot(ctx context.Context, slotID int64) ([]*model.PaymentSession, error)
	ListBySlotAndPayer(ctx context.Context, slotID int64, email string) ([]*model.PaymentSession, error)
	AttachGateway(ctx context.Context, id uuid.UUID, gatewayID string, amount int64, paymentURL string) error
	ResolveStatus(ctx context.Context, id uuid.UUID, status model.PaymentStatus) (repository.Resolution, error)
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
	ListUnresolved(ctx context.Context, since time.Time, limit int) ([]*model.PaymentSession, error)
}

// DiscountStore чтение промокодов
type DiscountStore interface {
	GetByValue(ctx context.Context, value string) (*model.DiscountCode, error)
}

// BookingStore бронирования.
// CreateForSlot возвращает repository.ErrSlotAlreadyBooked, если слот уже продан.
type BookingStore interface {
	CreateForSlot(ctx context.Context, booking *model.Booking) error
	GetBySlotID(ctx context.Context, slotID int64) (*model.Booking, error)
}

// Gateway эквайринг
type Gateway interface {
	Init(ctx context.Context, req acquiring.InitRequest) (*acquiring.InitResult, error)
	GetState(ctx context.Context, paymentID string) (acquiring.Status, error)
	VerifyNotification(n *acquiring.Notification) bool
}

// Catalog прайс категорий
type Catalog interface {
	Lookup(name string) (catalog.Category, bool)
}

// Notifier фоновая доставка уведомлений
type Notifier interface {
	Send(e notify.Event)
}
