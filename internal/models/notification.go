package models

import "time"

// Notification представляет уведомление оператору о событии движка
type Notification struct {
	ID         int                    `json:"id" db:"id"`
	Timestamp  time.Time              `json:"timestamp" db:"timestamp"`
	Type       string                 `json:"type" db:"type"`         // PIPELINE_STARTED, PIPELINE_FAILED, ...
	Severity   string                 `json:"severity" db:"severity"` // info, warn, error
	RuleID     *int                   `json:"rule_id,omitempty" db:"rule_id"`
	PipelineID *int                   `json:"pipeline_id,omitempty" db:"pipeline_id"`
	Message    string                 `json:"message" db:"message"`
	Meta       map[string]interface{} `json:"meta,omitempty" db:"meta"` // дополнительные данные (JSON в БД)
}

// Типы уведомлений
const (
	NotificationTypePipelineStarted   = "PIPELINE_STARTED"   // запущен pipeline восстановления
	NotificationTypePipelineCompleted = "PIPELINE_COMPLETED" // pipeline успешно завершён
	NotificationTypePipelineFailed    = "PIPELINE_FAILED"    // исчерпана цепочка fallback
	NotificationTypeOrderFailed       = "ORDER_FAILED"       // один шаг завершился ошибкой
	NotificationTypeConfigError       = "CONFIG_ERROR"       // неизвестный обработчик, невалидные границы
	NotificationTypeRuleDeactivated   = "RULE_DEACTIVATED"   // правило отключено оператором
)

// Уровни важности
const (
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)
