package service

import (
	"context"
	"time"

	"liquidity/internal/models"
	"liquidity/internal/repository"
)

// RuleRepositoryInterface определяет интерфейс репозитория правил
type RuleRepositoryInterface interface {
	Create(rule *models.Rule) error
	GetByID(id int) (*models.Rule, error)
	GetAll() ([]*models.Rule, error)
	GetActive() ([]*models.Rule, error)
	Update(rule *models.Rule) error
	UpdateStatus(id int, status string) error
	ExistsByAsset(asset string) (bool, error)
	Count() (int, error)
}

// ActionRepositoryInterface определяет интерфейс репозитория действий
type ActionRepositoryInterface interface {
	Create(action *models.Action) error
	GetByID(id int) (*models.Action, error)
	GetAll() ([]*models.Action, error)
	FindMatching(system, command, params string, onSuccessID, onFailID *int) (*models.Action, error)
}

// PipelineRepositoryInterface определяет интерфейс репозитория pipeline
type PipelineRepositoryInterface interface {
	GetByID(id int) (*models.Pipeline, error)
	GetByRuleID(ruleID int, limit int) ([]*models.Pipeline, error)
	GetActive() ([]*models.Pipeline, error)
	GetActiveByRuleID(ruleID int) (*models.Pipeline, error)
}

// OrderRepositoryInterface определяет интерфейс репозитория ордеров
type OrderRepositoryInterface interface {
	GetByID(id int) (*models.Order, error)
	GetByPipelineID(pipelineID int) ([]*models.Order, error)
	CountByPipelineID(pipelineID int) (int, error)
}

// BalanceRepositoryInterface определяет интерфейс репозитория балансов
type BalanceRepositoryInterface interface {
	Upsert(asset string, amount float64) error
	GetByAsset(asset string) (*models.Balance, error)
	GetAll() ([]*models.Balance, error)
}

// NotificationRepositoryInterface определяет интерфейс репозитория уведомлений
type NotificationRepositoryInterface interface {
	Create(notif *models.Notification) error
	GetRecent(limit int) ([]*models.Notification, error)
	DeleteOlderThan(timestamp time.Time) (int64, error)
	Count() (int, error)
}

// Проверяем, что реальные репозитории реализуют интерфейсы
var _ RuleRepositoryInterface = (*repository.RuleRepository)(nil)
var _ ActionRepositoryInterface = (*repository.ActionRepository)(nil)
var _ PipelineRepositoryInterface = (*repository.PipelineRepository)(nil)
var _ OrderRepositoryInterface = (*repository.OrderRepository)(nil)
var _ BalanceRepositoryInterface = (*repository.BalanceRepository)(nil)
var _ NotificationRepositoryInterface = (*repository.NotificationRepository)(nil)

// ============ Интерфейсы внешних зависимостей сервисов ============

// BalanceProvider - внешний источник балансов (биржа, нода).
// Реализуется обработчиками интеграций, умеющими отдавать балансы.
type BalanceProvider interface {
	System() string
	Balances(ctx context.Context) (map[string]float64, error)
}

// NotificationHub - рассылка уведомлений подключённым операторам
type NotificationHub interface {
	BroadcastNotification(notif *models.Notification)
}

// TickRunner - ручной запуск цикла движка из операторского API
type TickRunner interface {
	RunTick(ctx context.Context)
}
