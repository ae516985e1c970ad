package engine

import (
	"context"
	"time"

	"liquidity/internal/integration"
	"liquidity/internal/models"
	"liquidity/internal/repository"
)

// Интерфейсы зависимостей движка. Реализации - internal/repository
// и internal/service; в тестах подменяются in-memory моками.

// RuleRepository - доступ к правилам
type RuleRepository interface {
	GetActive() ([]*models.Rule, error)
	GetByID(id int) (*models.Rule, error)
}

// PipelineRepository - доступ к pipeline'ам
type PipelineRepository interface {
	Create(pipeline *models.Pipeline) error
	GetActive() ([]*models.Pipeline, error)
	GetActiveByRuleID(ruleID int) (*models.Pipeline, error)
	GetLastTerminalByRuleID(ruleID int) (*models.Pipeline, error)
	UpdateStatus(id int, status string) error
	SetCurrentAction(id int, actionID int) error
}

// OrderRepository - доступ к ордерам
type OrderRepository interface {
	Create(order *models.Order) error
	GetLastByPipelineID(pipelineID int) (*models.Order, error)
	GetIncomplete() ([]*models.Order, error)
	MarkReady(id int, txID string) error
	Complete(id int, txID string, feeAmount float64, feeAsset string) error
	Fail(id int, errorMessage string) error
}

// ActionRepository - доступ к действиям
type ActionRepository interface {
	GetByID(id int) (*models.Action, error)
}

// HandlerRegistry - реестр обработчиков внешних систем
type HandlerRegistry interface {
	Get(system string) (integration.ActionHandler, bool)
}

// BalanceSource - источник текущих балансов активов.
// Реализуется BalanceService (кэш liquidity_balance + провайдеры).
type BalanceSource interface {
	Current(ctx context.Context, asset string) (float64, time.Time, error)
}

// Notifier - приёмник событий движка. Реализуется NotificationService:
// записывает в журнал и рассылает через WebSocket hub.
type Notifier interface {
	Publish(notif *models.Notification)
}

// Hub - WebSocket hub для отправки real-time обновлений операторскому UI
type Hub interface {
	// BroadcastPipelineUpdate отправляет смену статуса pipeline
	BroadcastPipelineUpdate(pipeline *models.Pipeline)

	// BroadcastOrderUpdate отправляет смену состояния ордера
	BroadcastOrderUpdate(order *models.Order)

	// BroadcastBalanceUpdate отправляет обновление баланса актива
	BroadcastBalanceUpdate(asset string, amount float64)
}

// Проверки соответствия реализаций интерфейсам
var (
	_ RuleRepository     = (*repository.RuleRepository)(nil)
	_ PipelineRepository = (*repository.PipelineRepository)(nil)
	_ OrderRepository    = (*repository.OrderRepository)(nil)
	_ ActionRepository   = (*repository.ActionRepository)(nil)
	_ HandlerRegistry    = (*integration.Registry)(nil)
)
