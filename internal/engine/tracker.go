package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"liquidity/internal/models"
)

// Tracker опрашивает незавершённые ордера во внешних системах.
// Опрос идемпотентен: повторный тот же результат ничего не меняет,
// ордер в терминальном состоянии не трогается.
type Tracker struct {
	orders   OrderRepository
	actions  ActionRepository
	registry HandlerRegistry
	hub      Hub
	log      *zap.Logger

	pollTimeout time.Duration
}

// NewTracker создает Tracker
func NewTracker(orders OrderRepository, actions ActionRepository, registry HandlerRegistry, hub Hub, pollTimeout time.Duration, log *zap.Logger) *Tracker {
	return &Tracker{
		orders:      orders,
		actions:     actions,
		registry:    registry,
		hub:         hub,
		log:         log,
		pollTimeout: pollTimeout,
	}
}

// Poll обходит все ордера с correlation id, ожидающие завершения.
// Сетевые ошибки опроса не считаются сбоем ордера: статус останется
// прежним до следующего тика.
func (t *Tracker) Poll(ctx context.Context) {
	orders, err := t.orders.GetIncomplete()
	if err != nil {
		t.log.Error("list incomplete orders", zap.Error(err))
		return
	}

	for _, order := range orders {
		if ctx.Err() != nil {
			return
		}
		t.pollOrder(ctx, order)
	}
}

func (t *Tracker) pollOrder(ctx context.Context, order *models.Order) {
	if order.IsComplete {
		return
	}

	action, err := t.actions.GetByID(order.ActionID)
	if err != nil {
		t.log.Error("load action for order",
			zap.Int("order_id", order.ID),
			zap.Int("action_id", order.ActionID),
			zap.Error(err))
		return
	}

	handler, ok := t.registry.Get(action.System)
	if !ok {
		// обработчик пропал из конфигурации, ордер дальше не продвинется
		t.failOrder(order, action.System, "no handler registered for system "+action.System)
		return
	}

	pollCtx, cancel := context.WithTimeout(ctx, t.pollTimeout)
	started := time.Now()
	status, err := handler.CheckStatus(pollCtx, action.Command, order.CorrelationID)
	cancel()
	ExternalCallDuration.WithLabelValues(action.System, "check_status").Observe(time.Since(started).Seconds())

	if err != nil {
		t.log.Warn("order status poll failed",
			zap.Int("order_id", order.ID),
			zap.String("system", action.System),
			zap.Error(err))
		return
	}

	switch status.Status {
	case models.OrderStatusReady:
		if order.IsReady {
			return
		}
		if err := t.orders.MarkReady(order.ID, status.TxID); err != nil {
			t.log.Error("mark order ready", zap.Int("order_id", order.ID), zap.Error(err))
			return
		}
		order.IsReady = true
		order.TxID = status.TxID
		t.broadcast(order)

	case models.OrderStatusComplete:
		if err := t.orders.Complete(order.ID, status.TxID, status.FeeAmount, status.FeeAsset); err != nil {
			t.log.Error("complete order", zap.Int("order_id", order.ID), zap.Error(err))
			return
		}
		order.IsReady = true
		order.IsComplete = true
		order.TxID = status.TxID
		order.FeeAmount = status.FeeAmount
		order.FeeAsset = status.FeeAsset
		OrdersFinished.WithLabelValues(action.System, "success").Inc()
		t.log.Info("order completed",
			zap.Int("order_id", order.ID),
			zap.Int("pipeline_id", order.PipelineID),
			zap.String("system", action.System),
			zap.String("tx_id", status.TxID))
		t.broadcast(order)

	case models.OrderStatusFailed:
		t.failOrder(order, action.System, status.Error)
	}
	// pending: ждём следующего тика
}

func (t *Tracker) failOrder(order *models.Order, system, message string) {
	if message == "" {
		message = "external operation failed"
	}
	if err := t.orders.Fail(order.ID, message); err != nil {
		t.log.Error("fail order", zap.Int("order_id", order.ID), zap.Error(err))
		return
	}
	order.IsComplete = true
	order.ErrorMessage = message
	OrdersFinished.WithLabelValues(system, "failed").Inc()
	t.log.Warn("order failed",
		zap.Int("order_id", order.ID),
		zap.Int("pipeline_id", order.PipelineID),
		zap.String("system", system),
		zap.String("reason", message))
	t.broadcast(order)
}

func (t *Tracker) broadcast(order *models.Order) {
	if t.hub != nil {
		t.hub.BroadcastOrderUpdate(order)
	}
}
