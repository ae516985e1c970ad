package models

import "time"

// Pipeline - одна попытка восстановления баланса для правила.
// Состоит из одного или нескольких ордеров (по одному на шаг цепочки).
//
// Статусы монотонны: created -> in_progress -> {completed | failed},
// обратных переходов нет, completed/failed - терминальные.
type Pipeline struct {
	ID              int       `json:"id" db:"id"`
	RuleID          int       `json:"rule_id" db:"rule_id"`
	Type            string    `json:"type" db:"type"`     // deficit, redundancy
	Status          string    `json:"status" db:"status"` // created, in_progress, completed, failed
	TargetAmount    float64   `json:"target_amount" db:"target_amount"` // сколько нужно переместить
	OrdersProcessed int       `json:"orders_processed" db:"orders_processed"`
	CurrentActionID *int      `json:"current_action_id,omitempty" db:"current_action_id"` // последнее исполненное действие
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// Типы pipeline
const (
	PipelineTypeDeficit    = "deficit"    // баланс ниже minimal, нужно пополнение
	PipelineTypeRedundancy = "redundancy" // баланс выше maximal, нужен вывод излишка
)

// Статусы pipeline
const (
	PipelineStatusCreated    = "created"
	PipelineStatusInProgress = "in_progress"
	PipelineStatusCompleted  = "completed"
	PipelineStatusFailed     = "failed"
)

// ActivePipelineStatuses - статусы, при которых pipeline считается активным.
// Для одного правила одновременно допустим не более одного активного pipeline.
var ActivePipelineStatuses = []string{PipelineStatusCreated, PipelineStatusInProgress}

// IsTerminal возвращает true для завершённого pipeline
func (p *Pipeline) IsTerminal() bool {
	return p.Status == PipelineStatusCompleted || p.Status == PipelineStatusFailed
}
