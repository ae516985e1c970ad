package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"liquidity/internal/integration"
	"liquidity/internal/models"
	"liquidity/pkg/retry"
)

// Ошибки конфигурации действий. В отличие от внешних сбоев не
// записываются в Order, а валят pipeline с уведомлением CONFIG_ERROR.
var (
	ErrUnknownSystem  = errors.New("no handler registered for system")
	ErrUnknownCommand = errors.New("command not supported by system handler")
)

// Executor запускает действия во внешних системах и фиксирует
// результат в виде Order. Сбой внешней системы - это данные
// (is_complete + error_message на ордере), а не ошибка вызова.
type Executor struct {
	registry HandlerRegistry
	orders   OrderRepository
	log      *zap.Logger

	timeout      time.Duration
	maxRetries   int
	retryBackoff time.Duration
}

// NewExecutor создает Executor
func NewExecutor(registry HandlerRegistry, orders OrderRepository, timeout time.Duration, maxRetries int, retryBackoff time.Duration, log *zap.Logger) *Executor {
	return &Executor{
		registry:     registry,
		orders:       orders,
		log:          log,
		timeout:      timeout,
		maxRetries:   maxRetries,
		retryBackoff: retryBackoff,
	}
}

// Launch выполняет действие и создаёт Order в цепочке pipeline.
// Возвращает ошибку только при проблеме конфигурации или БД;
// отказ внешней системы приходит как уже проваленный Order.
func (x *Executor) Launch(ctx context.Context, rule *models.Rule, pipeline *models.Pipeline, action *models.Action, amount float64, previousOrderID *int) (*models.Order, error) {
	handler, ok := x.registry.Get(action.System)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSystem, action.System)
	}
	if !commandSupported(handler, action.Command) {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownCommand, action.System, action.Command)
	}

	order := &models.Order{
		PipelineID:      pipeline.ID,
		ActionID:        action.ID,
		PreviousOrderID: previousOrderID,
		Context:         rule.Context,
		ReferenceAsset:  rule.TargetAsset,
		ReferenceAmount: amount,
		InputAmount:     amount,
	}

	result, err := x.execute(ctx, handler, action, amount)
	if err != nil {
		// внешний сбой фиксируется на ордере и ведёт по fallback-цепочке
		order.IsComplete = true
		order.ErrorMessage = err.Error()
		x.log.Warn("action execution failed",
			zap.Int("pipeline_id", pipeline.ID),
			zap.String("system", action.System),
			zap.String("command", action.Command),
			zap.Error(err))
	} else {
		order.Type = result.OrderType
		order.CorrelationID = result.CorrelationID
		order.TxID = result.TxID
		order.FeeAmount = result.FeeAmount
		order.FeeAsset = result.FeeAsset
		if result.InputAsset != "" {
			order.InputAsset = result.InputAsset
		}
		order.OutputAsset = result.OutputAsset
		if result.Complete {
			// синхронная система: опрос не нужен
			order.IsReady = true
			order.IsComplete = true
		}
	}

	if err := x.orders.Create(order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	OrdersLaunched.WithLabelValues(action.System, action.Command).Inc()

	return order, nil
}

// execute вызывает внешнюю систему с таймаутом и retry.
// Повторяются только транспортные ошибки: отказ, зафиксированный
// обработчиком (HandlerError), означает что операция отклонена.
func (x *Executor) execute(ctx context.Context, handler integration.ActionHandler, action *models.Action, amount float64) (*integration.ExecutionResult, error) {
	cfg := retry.Config{
		MaxRetries:   x.maxRetries,
		InitialDelay: x.retryBackoff,
		RetryIf: func(err error) bool {
			var herr *integration.HandlerError
			if errors.As(err, &herr) {
				return false
			}
			return retry.RetryIfNotContext(err)
		},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			x.log.Debug("retrying action execution",
				zap.String("system", action.System),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err))
		},
	}

	started := time.Now()
	defer func() {
		ExternalCallDuration.WithLabelValues(action.System, "execute").Observe(time.Since(started).Seconds())
	}()

	return retry.DoWithResult(ctx, func() (*integration.ExecutionResult, error) {
		callCtx, cancel := context.WithTimeout(ctx, x.timeout)
		defer cancel()
		return handler.Execute(callCtx, action.Command, amount, action.Params)
	}, cfg)
}

func commandSupported(handler integration.ActionHandler, command string) bool {
	for _, c := range handler.Commands() {
		if c == command {
			return true
		}
	}
	return false
}
