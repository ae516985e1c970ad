package engine

import "liquidity/internal/models"

// ValidTransitions определяет допустимые переходы статуса pipeline.
// Переходы монотонны: из терминального состояния выхода нет.
var ValidTransitions = map[string][]string{
	models.PipelineStatusCreated:    {models.PipelineStatusInProgress, models.PipelineStatusFailed},
	models.PipelineStatusInProgress: {models.PipelineStatusCompleted, models.PipelineStatusFailed},
	models.PipelineStatusCompleted:  {},
	models.PipelineStatusFailed:     {},
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// StatusInfo возвращает описание статуса для UI
func StatusInfo(s string) string {
	switch s {
	case models.PipelineStatusCreated:
		return "Pipeline создан (ожидание первого действия)"
	case models.PipelineStatusInProgress:
		return "Выполняется цепочка действий"
	case models.PipelineStatusCompleted:
		return "Балансировка завершена успешно"
	case models.PipelineStatusFailed:
		return "Исчерпана цепочка fallback, требуется вмешательство"
	default:
		return "Неизвестный статус"
	}
}
