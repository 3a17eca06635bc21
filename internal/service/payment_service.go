package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Freeeeeet/paybook/internal/acquiring"
	"github.com/Freeeeeet/paybook/internal/apperrors"
	"github.com/Freeeeeet/paybook/internal/model"
	"github.com/Freeeeeet/paybook/internal/notify"
	"github.com/Freeeeeet/paybook/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentConfig параметры открытия платежей
type PaymentConfig struct {
	ExpirationWindow time.Duration
	MinAmount        int64
	PublicBaseURL    string
}

// OpenRequest запрос на открытие оплаты слота
type OpenRequest struct {
	SlotID    int64
	Category  string
	Email     string
	PromoCode string
}

// PaymentService открывает платёжные сессии в эквайринге
type PaymentService struct {
	guard     *SlotGuard
	payments  PaymentStore
	discounts DiscountStore
	catalog   Catalog
	gateway   Gateway
	notifier  Notifier
	cfg       PaymentConfig
	logger    *zap.Logger
	now       func() time.Time
}

func NewPaymentService(
	guard *SlotGuard,
	payments PaymentStore,
	discounts DiscountStore,
	catalog Catalog,
	gateway Gateway,
	notifier Notifier,
	cfg PaymentConfig,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		guard:     guard,
		payments:  payments,
		discounts: discounts,
		catalog:   catalog,
		gateway:   gateway,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Open проверяет слот и промокод, сохраняет PENDING сессию и открывает её в шлюзе.
// При отказе шлюза строка остаётся и истекает по due date.
func (s *PaymentService) Open(ctx context.Context, req OpenRequest) (*model.PaymentSession, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}

	// Проверяем слот
	if _, err := s.guard.AssertBookable(ctx, req.SlotID, req.Category, email); err != nil {
		return nil, err
	}

	// Определяем цену категории
	category, ok := s.catalog.Lookup(req.Category)
	if !ok {
		return nil, apperrors.InvalidInput("unknown category")
	}
	if !category.RequiresPayment {
		return nil, apperrors.InvalidInput("category does not require payment")
	}

	// Проверяем промокод
	var (
		discountCode *string
		percent      int
	)
	if promo := strings.TrimSpace(req.PromoCode); promo != "" {
		code, err := s.discounts.GetByValue(ctx, promo)
		if err != nil {
			return nil, fmt.Errorf("get discount code: %w", err)
		}
		if code == nil {
			return nil, apperrors.NotFound("promo code")
		}
		if !IsEligible(code, s.now()) {
			return nil, apperrors.Conflict("promo code is not usable")
		}
		discountCode = &code.Value
		percent = code.Percent
	}

	successCode, failCode, err := newResultCodes()
	if err != nil {
		return nil, apperrors.Internal("failed to generate payment codes", err)
	}

	now := s.now()
	session := &model.PaymentSession{
		ID:           uuid.New(),
		SlotID:       req.SlotID,
		Category:     req.Category,
		PayerEmail:   email,
		Amount:       ApplyDiscount(category.Price, percent, s.cfg.MinAmount),
		DiscountCode: discountCode,
		Status:       model.PaymentStatusPending,
		DueDate:      now.Add(s.cfg.ExpirationWindow),
		SuccessCode:  successCode,
		FailCode:     failCode,
	}

	if err := s.payments.Create(ctx, session, now); err != nil {
		if errors.Is(err, repository.ErrLiveSessionExists) {
			return nil, apperrors.Conflict("pending payment exists")
		}
		return nil, fmt.Errorf("create payment session: %w", err)
	}

	// Открываем сессию в шлюзе, транзакция к этому моменту уже закрыта
	result, err := s.gateway.Init(ctx, acquiring.InitRequest{
		OrderID:     session.ID.String(),
		Amount:      session.Amount,
		Description: category.Title,
		SuccessURL:  s.resultURL(session.ID, model.PaymentStatusSuccess, successCode),
		FailURL:     s.resultURL(session.ID, model.PaymentStatusFail, failCode),
		DueDate:     session.DueDate,
		Email:       email,
	})
	if err != nil {
		s.logger.Error("Gateway init failed",
			zap.String("session_id", session.ID.String()),
			zap.Int64("slot_id", session.SlotID),
			zap.Error(err),
		)
		return nil, apperrors.Upstream("payment gateway is unavailable", err)
	}

	if result.Amount > 0 {
		session.Amount = result.Amount
	}
	if err := s.payments.AttachGateway(ctx, session.ID, result.PaymentID, session.Amount, result.PaymentURL); err != nil {
		return nil, fmt.Errorf("attach gateway session: %w", err)
	}
	session.GatewayID = &result.PaymentID
	session.PaymentURL = &result.PaymentURL

	s.logger.Info("Payment session opened",
		zap.String("session_id", session.ID.String()),
		zap.Int64("slot_id", session.SlotID),
		zap.String("category", session.Category),
		zap.Int64("amount", session.Amount),
	)

	s.notifier.Send(notify.Event{
		Kind: notify.KindPaymentOpened,
		Text: fmt.Sprintf("Открыта оплата слота #%d (%s), сумма %s",
			session.SlotID, category.Title, notify.FormatPrice(session.Amount)),
		Email: email,
		Data: map[string]any{
			"session_id": session.ID.String(),
			"slot_id":    session.SlotID,
			"amount":     session.Amount,
			"due_date":   session.DueDate,
		},
		OccurredAt: now,
	})

	return session, nil
}

// resultURL строит адрес возврата плательщика из шлюза с кодом исхода
func (s *PaymentService) resultURL(id uuid.UUID, status model.PaymentStatus, code string) string {
	if s.cfg.PublicBaseURL == "" {
		return ""
	}

	q := url.Values{}
	q.Set("session_id", id.String())
	q.Set("status", string(status))
	q.Set("code", code)

	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/payment/result?" + q.Encode()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
