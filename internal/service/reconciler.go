package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/paybook/internal/acquiring"
	"github.com/Freeeeeet/paybook/internal/apperrors"
	"github.com/Freeeeeet/paybook/internal/model"
	"github.com/Freeeeeet/paybook/internal/notify"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	pollLookback = 24 * time.Hour
	pollBatch    = 100
)

// source показывает, откуда пришёл терминальный статус
type source string

const (
	sourceWebhook source = "webhook"
	sourceClient  source = "client"
	sourcePoll    source = "poll"
)

// Reconciler сводит статус сессии из уведомлений шлюза, кодов плательщика и опроса шлюза.
// Терминальный статус пишется один раз, конфликтующие записи только логируются.
type Reconciler struct {
	payments PaymentStore
	gateway  Gateway
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewReconciler(payments PaymentStore, gateway Gateway, notifier Notifier, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		payments: payments,
		gateway:  gateway,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// HandleNotification обрабатывает подписанное уведомление шлюза
func (r *Reconciler) HandleNotification(ctx context.Context, body []byte) error {
	n, err := acquiring.ParseNotification(body)
	if err != nil {
		return apperrors.InvalidInput("malformed notification")
	}

	if !r.gateway.VerifyNotification(n) {
		r.logger.Warn("Notification signature rejected",
			zap.String("order_id", n.OrderID),
			zap.String("gateway_status", string(n.Status)),
		)
		return apperrors.Unauthorized("invalid signature")
	}

	// Повтор такого уведомления ничего не изменит, поэтому оно подтверждается шлюзу
	id, err := uuid.Parse(n.OrderID)
	if err != nil {
		r.logger.Warn("Notification with foreign order id acknowledged", zap.String("order_id", n.OrderID))
		return nil
	}

	session, err := r.payments.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get payment session: %w", err)
	}
	if session == nil {
		r.logger.Warn("Notification for unknown session", zap.String("order_id", n.OrderID))
		return apperrors.NotFound("payment session")
	}

	if n.Amount != 0 && n.Amount != session.Amount {
		r.logger.Error("Payment anomaly: notification amount mismatch",
			zap.String("session_id", session.ID.String()),
			zap.Int64("expected", session.Amount),
			zap.Int64("received", n.Amount),
		)
		r.anomaly(session, fmt.Sprintf("сумма в уведомлении %s не совпадает с суммой сессии %s",
			notify.FormatPrice(n.Amount), notify.FormatPrice(session.Amount)))
		return nil
	}

	target, ok := acquiring.MapStatus(n.Status)
	if !ok {
		r.logger.Error("Unmapped gateway status",
			zap.String("session_id", session.ID.String()),
			zap.String("gateway_status", string(n.Status)),
		)
		return apperrors.Internal("unmapped gateway status", nil)
	}

	if target == model.PaymentStatusPending {
		r.logger.Debug("Intermediate gateway status",
			zap.String("session_id", session.ID.String()),
			zap.String("gateway_status", string(n.Status)),
		)
		return nil
	}

	_, err = r.resolve(ctx, session, target, sourceWebhook)
	return err
}

// Confirm применяет исход, заявленный плательщиком, если предъявлен соответствующий код
func (r *Reconciler) Confirm(ctx context.Context, id uuid.UUID, claimed model.PaymentStatus, code string) (*model.PaymentSession, error) {
	if !claimed.IsTerminal() {
		return nil, apperrors.InvalidInput("status must be SUCCESS or FAIL")
	}

	session, err := r.payments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get payment session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("payment session")
	}

	expected := session.FailCode
	if claimed == model.PaymentStatusSuccess {
		expected = session.SuccessCode
	}
	if !codesEqual(expected, code) {
		r.logger.Warn("Invalid payment code presented", zap.String("session_id", session.ID.String()))
		return nil, apperrors.Unauthorized("invalid code")
	}

	if session.Status.IsTerminal() {
		if session.Status == claimed {
			return session, nil
		}
		r.conflict(session, session.Status, claimed, sourceClient)
		return nil, apperrors.Conflict("payment already resolved")
	}

	if session.IsOverdue(r.now()) {
		return nil, apperrors.Conflict("expired")
	}

	return r.resolve(ctx, session, claimed, sourceClient)
}

// Status отдаёт сессию по любому из двух кодов.
// PENDING после due date отдаётся как EXPIRED без записи.
func (r *Reconciler) Status(ctx context.Context, id uuid.UUID, code string) (*model.PaymentSession, error) {
	session, err := r.payments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get payment session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("payment session")
	}

	if !codesEqual(session.SuccessCode, code) && !codesEqual(session.FailCode, code) {
		return nil, apperrors.Unauthorized("invalid code")
	}

	view := *session
	view.Status = session.EffectiveStatus(r.now())
	return &view, nil
}

// ExpireStale сохраняет EXPIRED для просроченных PENDING сессий
func (r *Reconciler) ExpireStale(ctx context.Context) (int64, error) {
	expired, err := r.payments.ExpireOverdue(ctx, r.now())
	if err != nil {
		return 0, err
	}

	if expired > 0 {
		r.logger.Info("Expired stale payment sessions", zap.Int64("count", expired))
	}

	return expired, nil
}

// PollUnresolved опрашивает шлюз по незавершённым сессиям и применяет терминальные статусы.
// Возвращает количество сессий, получивших статус.
func (r *Reconciler) PollUnresolved(ctx context.Context) (int, error) {
	sessions, err := r.payments.ListUnresolved(ctx, r.now().Add(-pollLookback), pollBatch)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, session := range sessions {
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}
		if session.GatewayID == nil {
			continue
		}

		state, err := r.gateway.GetState(ctx, *session.GatewayID)
		if err != nil {
			r.logger.Warn("Failed to poll gateway state",
				zap.String("session_id", session.ID.String()),
				zap.Error(err),
			)
			continue
		}

		target, ok := acquiring.MapStatus(state)
		if !ok {
			r.logger.Error("Unmapped gateway status",
				zap.String("session_id", session.ID.String()),
				zap.String("gateway_status", string(state)),
			)
			continue
		}
		if target == model.PaymentStatusPending {
			continue
		}

		if _, err := r.resolve(ctx, session, target, sourcePoll); err != nil {
			r.logger.Warn("Failed to apply polled status",
				zap.String("session_id", session.ID.String()),
				zap.Error(err),
			)
			continue
		}
		resolved++
	}

	return resolved, nil
}

// resolve пишет терминальный статус. Для шлюза (уведомление и опрос) конфликт только логируется,
// для плательщика возвращается Conflict.
func (r *Reconciler) resolve(ctx context.Context, session *model.PaymentSession, target model.PaymentStatus, src source) (*model.PaymentSession, error) {
	res, err := r.payments.ResolveStatus(ctx, session.ID, target)
	if err != nil {
		return nil, fmt.Errorf("resolve payment status: %w", err)
	}

	if !res.Applied {
		if res.Status == target {
			session.Status = res.Status
			return session, nil
		}

		r.conflict(session, res.Status, target, src)
		if src == sourceClient {
			return nil, apperrors.Conflict("payment already resolved")
		}
		return session, nil
	}

	session.Status = target
	now := r.now()
	late := session.IsOverdue(now)

	if res.DiscountExhausted {
		r.logger.Error("Payment anomaly: discount code used over its limit",
			zap.String("session_id", session.ID.String()),
			zap.Stringp("discount_code", session.DiscountCode),
		)
		r.anomaly(session, "промокод оплачен сверх лимита использований")
	}

	r.logger.Info("Payment status resolved",
		zap.String("session_id", session.ID.String()),
		zap.Int64("slot_id", session.SlotID),
		zap.String("status", string(target)),
		zap.String("source", string(src)),
		zap.Bool("late", late),
	)

	switch {
	case target == model.PaymentStatusSuccess && late:
		r.logger.Warn("Payment anomaly: success after due date, manual refund required",
			zap.String("session_id", session.ID.String()),
			zap.Int64("slot_id", session.SlotID),
			zap.Time("due_date", session.DueDate),
		)
		r.notifier.Send(notify.Event{
			Kind: notify.KindLateSuccess,
			Text: fmt.Sprintf("Оплата слота #%d на %s пришла после окончания брони, требуется возврат",
				session.SlotID, notify.FormatPrice(session.Amount)),
			Email:      session.PayerEmail,
			Data:       sessionData(session),
			OccurredAt: now,
		})
	case target == model.PaymentStatusFail:
		r.notifier.Send(notify.Event{
			Kind:       notify.KindPaymentFailed,
			Text:       fmt.Sprintf("Оплата слота #%d не прошла", session.SlotID),
			Email:      session.PayerEmail,
			Data:       sessionData(session),
			OccurredAt: now,
		})
	}

	return session, nil
}

func (r *Reconciler) conflict(session *model.PaymentSession, current, attempted model.PaymentStatus, src source) {
	r.logger.Error("Payment anomaly: conflicting terminal status",
		zap.String("session_id", session.ID.String()),
		zap.String("current", string(current)),
		zap.String("attempted", string(attempted)),
		zap.String("source", string(src)),
	)
	r.anomaly(session, fmt.Sprintf("статус %s, попытка записать %s (%s)", current, attempted, src))
}

func (r *Reconciler) anomaly(session *model.PaymentSession, details string) {
	r.notifier.Send(notify.Event{
		Kind:       notify.KindAnomaly,
		Text:       fmt.Sprintf("Аномалия оплаты слота #%d: %s", session.SlotID, details),
		Data:       sessionData(session),
		OccurredAt: r.now(),
	})
}

func sessionData(session *model.PaymentSession) map[string]any {
	return map[string]any{
		"session_id": session.ID.String(),
		"slot_id":    session.SlotID,
		"amount":     session.Amount,
		"status":     string(session.Status),
	}
}
