package engine

import (
	"time"

	"liquidity/internal/models"
)

// Decision - результат оценки правила на одном тике
type Decision struct {
	PipelineType string  // deficit, redundancy; пусто = действие не требуется
	TargetAmount float64 // сколько нужно переместить до optimal
}

// NoAction возвращает true если баланс в допустимых границах
func (d Decision) NoAction() bool {
	return d.PipelineType == ""
}

// Evaluator сравнивает баланс актива с границами правила.
// Границы включительные: баланс ровно на minimal или maximal не триггерит.
type Evaluator struct {
	now func() time.Time
}

// NewEvaluator создает Evaluator
func NewEvaluator() *Evaluator {
	return &Evaluator{now: time.Now}
}

// Evaluate вычисляет решение для правила.
// Цель всегда считается от optimal, а не от нарушенной границы:
// дефицит = optimal - balance, избыток = balance - optimal.
func (e *Evaluator) Evaluate(rule *models.Rule, balance float64) Decision {
	switch {
	case balance < rule.Minimal:
		return Decision{
			PipelineType: models.PipelineTypeDeficit,
			TargetAmount: rule.Optimal - balance,
		}
	case balance > rule.Maximal:
		return Decision{
			PipelineType: models.PipelineTypeRedundancy,
			TargetAmount: balance - rule.Optimal,
		}
	default:
		return Decision{}
	}
}

// CooledDown проверяет, прошёл ли период reactivation_time после
// последнего терминального pipeline. Правило без завершённых pipeline
// или без cool-down всегда готово.
func (e *Evaluator) CooledDown(rule *models.Rule, lastTerminal *models.Pipeline) bool {
	if lastTerminal == nil || rule.ReactivationTime <= 0 {
		return true
	}
	reactivateAt := lastTerminal.UpdatedAt.Add(time.Duration(rule.ReactivationTime) * time.Second)
	return !e.now().Before(reactivateAt)
}
