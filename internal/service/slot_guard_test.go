package service

import (
	"context"
	"testing"
	"time"

	"github.com/Freeeeeet/paybook/internal/apperrors"
	"github.com/Freeeeeet/paybook/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotGuard_AssertBookable(t *testing.T) {
	ctx := context.Background()

	t.Run("free slot", func(t *testing.T) {
		e := newEnv()
		slot, err := e.guard.AssertBookable(ctx, 1, "consultation", "a@example.com")
		require.NoError(t, err)
		assert.Equal(t, int64(1), slot.ID)
	})

	t.Run("missing slot", func(t *testing.T) {
		e := newEnv()
		_, err := e.guard.AssertBookable(ctx, 42, "consultation", "a@example.com")
		assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	})

	t.Run("slot in the past", func(t *testing.T) {
		e := newEnv()
		e.advance(48 * time.Hour)
		_, err := e.guard.AssertBookable(ctx, 1, "consultation", "a@example.com")
		assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	})

	t.Run("bound slot", func(t *testing.T) {
		e := newEnv()
		bookingID := int64(9)
		e.db.slots[1].BookingID = &bookingID
		_, err := e.guard.AssertBookable(ctx, 1, "consultation", "a@example.com")
		require.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
		assert.Contains(t, err.Error(), "already booked or paid")
	})

	t.Run("payer already paid", func(t *testing.T) {
		e := newEnv()
		e.db.addSession(&model.PaymentSession{
			ID: uuid.New(), SlotID: 1, PayerEmail: "a@example.com",
			Status: model.PaymentStatusSuccess, DueDate: e.now.Add(-time.Hour),
		})
		_, err := e.guard.AssertBookable(ctx, 1, "consultation", "a@example.com")
		require.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
		assert.Contains(t, err.Error(), "already booked or paid")
	})

	t.Run("live pending session", func(t *testing.T) {
		e := newEnv()
		e.db.addSession(&model.PaymentSession{
			ID: uuid.New(), SlotID: 1, PayerEmail: "other@example.com",
			Status: model.PaymentStatusPending, DueDate: e.now.Add(time.Minute),
		})
		_, err := e.guard.AssertBookable(ctx, 1, "consultation", "a@example.com")
		require.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
		assert.Contains(t, err.Error(), "pending payment exists")
	})

	t.Run("overdue pending session does not block", func(t *testing.T) {
		e := newEnv()
		e.db.addSession(&model.PaymentSession{
			ID: uuid.New(), SlotID: 1, PayerEmail: "other@example.com",
			Status: model.PaymentStatusPending, DueDate: e.now.Add(-time.Minute),
		})
		_, err := e.guard.AssertBookable(ctx, 1, "consultation", "a@example.com")
		assert.NoError(t, err)
	})

	t.Run("category not allowed", func(t *testing.T) {
		e := newEnv()
		_, err := e.guard.AssertBookable(ctx, 1, "mock_interview", "a@example.com")
		assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	})
}

func TestSlotGuard_AssertOpen(t *testing.T) {
	ctx := context.Background()
	e := newEnv()

	e.db.addSession(&model.PaymentSession{
		ID: uuid.New(), SlotID: 1, PayerEmail: "a@example.com",
		Status: model.PaymentStatusSuccess, DueDate: e.now.Add(time.Minute),
	})

	_, err := e.guard.AssertOpen(ctx, 1, "consultation")
	require.NoError(t, err)

	_, err = e.guard.AssertOpen(ctx, 1, "mock_interview")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	bookingID := int64(3)
	e.db.slots[1].BookingID = &bookingID
	_, err = e.guard.AssertOpen(ctx, 1, "consultation")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}
