package models

import (
	"fmt"
	"time"
)

// Rule представляет правило управления ликвидностью для одного актива.
// Пока баланс актива находится в диапазоне [Minimal, Maximal] - правило
// бездействует. Выход за границы запускает pipeline с цепочкой действий.
type Rule struct {
	ID                      int        `json:"id" db:"id"`
	Context                 string     `json:"context" db:"context"`                         // человеко-читаемая метка (treasury, trading, ...)
	TargetAsset             string     `json:"target_asset" db:"target_asset"`               // BTC, cBTC, EUR...
	Status                  string     `json:"status" db:"status"`                           // inactive, active
	Minimal                 float64    `json:"minimal" db:"minimal"`                         // нижняя граница баланса
	Optimal                 float64    `json:"optimal" db:"optimal"`                         // целевой баланс
	Maximal                 float64    `json:"maximal" db:"maximal"`                         // верхняя граница баланса
	ReactivationTime        int        `json:"reactivation_time" db:"reactivation_time"`     // cool-down в секундах после завершения pipeline
	DeficitStartActionID    *int       `json:"deficit_start_action_id,omitempty" db:"deficit_start_action_id"`
	RedundancyStartActionID *int       `json:"redundancy_start_action_id,omitempty" db:"redundancy_start_action_id"`
	SendNotifications       bool       `json:"send_notifications" db:"send_notifications"`
	CreatedAt               time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at" db:"updated_at"`
}

// Статусы правила
const (
	RuleStatusInactive = "inactive"
	RuleStatusActive   = "active"
)

// ValidateBounds проверяет упорядоченность границ: minimal <= optimal <= maximal.
// Нарушение - конфигурационная ошибка, правило не подлежит исполнению.
func (r *Rule) ValidateBounds() error {
	if r.Minimal < 0 || r.Optimal < 0 || r.Maximal < 0 {
		return fmt.Errorf("rule bounds cannot be negative: minimal=%v optimal=%v maximal=%v", r.Minimal, r.Optimal, r.Maximal)
	}
	if r.Minimal > r.Optimal || r.Optimal > r.Maximal {
		return fmt.Errorf("rule bounds must satisfy minimal <= optimal <= maximal: minimal=%v optimal=%v maximal=%v", r.Minimal, r.Optimal, r.Maximal)
	}
	return nil
}

// StartActionID возвращает стартовое действие для типа pipeline
func (r *Rule) StartActionID(pipelineType string) *int {
	switch pipelineType {
	case PipelineTypeDeficit:
		return r.DeficitStartActionID
	case PipelineTypeRedundancy:
		return r.RedundancyStartActionID
	default:
		return nil
	}
}

// IsActive возвращает true если правило подлежит периодической оценке
func (r *Rule) IsActive() bool {
	return r.Status == RuleStatusActive
}
