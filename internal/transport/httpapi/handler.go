// Package httpapi содержит HTTP-интерфейс движка оплаты и бронирования
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Freeeeeet/paybook/internal/apperrors"
	"github.com/Freeeeeet/paybook/internal/model"
	"github.com/Freeeeeet/paybook/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultSlotsHorizon = 14 * 24 * time.Hour

type PaymentOpener interface {
	Open(ctx context.Context, req service.OpenRequest) (*model.PaymentSession, error)
}

type StatusReconciler interface {
	HandleNotification(ctx context.Context, body []byte) error
	Confirm(ctx context.Context, id uuid.UUID, claimed model.PaymentStatus, code string) (*model.PaymentSession, error)
	Status(ctx context.Context, id uuid.UUID, code string) (*model.PaymentSession, error)
}

type BookingFinalizer interface {
	Finalize(ctx context.Context, req service.FinalizeRequest) (*model.Booking, error)
}

type SlotLister interface {
	ListFree(ctx context.Context, category string, from, to time.Time) ([]*model.Slot, error)
}

// Handler содержит обработчики HTTP запросов
type Handler struct {
	payments  PaymentOpener
	reconcile StatusReconciler
	finalizer BookingFinalizer
	slots     SlotLister
	ping      func(ctx context.Context) error
	logger    *zap.Logger
	now       func() time.Time
}

func NewHandler(
	payments PaymentOpener,
	reconcile StatusReconciler,
	finalizer BookingFinalizer,
	slots SlotLister,
	ping func(ctx context.Context) error,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		payments:  payments,
		reconcile: reconcile,
		finalizer: finalizer,
		slots:     slots,
		ping:      ping,
		logger:    logger,
		now:       time.Now,
	}
}

type openPaymentBody struct {
	SlotID    int64  `json:"slot_id" binding:"required,gt=0"`
	Category  string `json:"category" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	PromoCode string `json:"promo_code"`
}

// openPaymentResponse не содержит кода успеха: плательщик получает его только из редиректа шлюза
type openPaymentResponse struct {
	ID         uuid.UUID           `json:"id"`
	Status     model.PaymentStatus `json:"status"`
	Amount     int64               `json:"amount"`
	DueDate    time.Time           `json:"due_date"`
	PaymentURL *string             `json:"payment_url"`
	FailCode   string              `json:"fail_code"`
}

// OpenPayment POST /payments
func (h *Handler) OpenPayment(c *gin.Context) {
	var body openPaymentBody
	if !h.bind(c, &body) {
		return
	}

	session, err := h.payments.Open(c.Request.Context(), service.OpenRequest{
		SlotID:    body.SlotID,
		Category:  body.Category,
		Email:     body.Email,
		PromoCode: body.PromoCode,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, openPaymentResponse{
		ID:         session.ID,
		Status:     session.Status,
		Amount:     session.Amount,
		DueDate:    session.DueDate,
		PaymentURL: session.PaymentURL,
		FailCode:   session.FailCode,
	})
}

// Webhook POST /payments/webhook принимает уведомление шлюза
func (h *Handler) Webhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.fail(c, apperrors.InvalidInput("cannot read body"))
		return
	}

	if err := h.reconcile.HandleNotification(c.Request.Context(), body); err != nil {
		h.fail(c, err)
		return
	}

	// Шлюз ждёт ровно OK, иначе повторяет уведомление
	c.String(http.StatusOK, "OK")
}

type confirmBody struct {
	Status string `json:"status" binding:"required,claimed_status"`
	Code   string `json:"code" binding:"required"`
}

// ConfirmPayment POST /payments/:id
func (h *Handler) ConfirmPayment(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	var body confirmBody
	if !h.bind(c, &body) {
		return
	}

	session, err := h.reconcile.Confirm(c.Request.Context(), id, model.PaymentStatus(body.Status), body.Code)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// PaymentStatus GET /payments/:id?code=
func (h *Handler) PaymentStatus(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	code := c.Query("code")
	if code == "" {
		h.fail(c, apperrors.InvalidInput("code is required"))
		return
	}

	session, err := h.reconcile.Status(c.Request.Context(), id, code)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

type finalizeBody struct {
	SlotID   int64  `json:"slot_id" binding:"required,gt=0"`
	Category string `json:"category" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Code     string `json:"code" binding:"required"`
}

// CreateBooking POST /bookings
func (h *Handler) CreateBooking(c *gin.Context) {
	var body finalizeBody
	if !h.bind(c, &body) {
		return
	}

	booking, err := h.finalizer.Finalize(c.Request.Context(), service.FinalizeRequest{
		SlotID:   body.SlotID,
		Category: body.Category,
		Email:    body.Email,
		Code:     body.Code,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, booking)
}

type listSlotsQuery struct {
	Category string    `form:"category" binding:"required"`
	From     time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To       time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

// ListSlots GET /slots?category=&from=&to=
func (h *Handler) ListSlots(c *gin.Context) {
	var q listSlotsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.fail(c, bindError(err))
		return
	}

	from := q.From
	if from.IsZero() || from.Before(h.now()) {
		from = h.now()
	}
	to := q.To
	if to.IsZero() {
		to = from.Add(defaultSlotsHorizon)
	}
	if !to.After(from) {
		h.fail(c, apperrors.InvalidInput("to must be after from"))
		return
	}

	slots, err := h.slots.ListFree(c.Request.Context(), strings.TrimSpace(q.Category), from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	if slots == nil {
		slots = []*model.Slot{}
	}

	c.JSON(http.StatusOK, gin.H{"slots": slots})
}

// Health GET /health
func (h *Handler) Health(c *gin.Context) {
	if h.ping != nil {
		if err := h.ping(c.Request.Context()); err != nil {
			h.logger.Error("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.fail(c, apperrors.InvalidInput("invalid payment id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) bind(c *gin.Context, body any) bool {
	if err := c.ShouldBindJSON(body); err != nil {
		h.fail(c, bindError(err))
		return false
	}
	return true
}
