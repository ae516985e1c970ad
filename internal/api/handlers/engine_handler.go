package handlers

import (
	"net/http"

	"liquidity/internal/service"
)

// EngineHandler отвечает за ручное управление движком
//
// Endpoints:
// - POST /api/v1/engine/tick - немедленно выполнить цикл оценки
//
// Ручной tick нужен оператору после изменения правил или балансов:
// вместо ожидания следующего интервала движок отрабатывает сразу.
type EngineHandler struct {
	engine service.TickRunner
}

// NewEngineHandler создает новый EngineHandler
func NewEngineHandler(engine service.TickRunner) *EngineHandler {
	return &EngineHandler{engine: engine}
}

// TriggerTick выполняет один цикл движка синхронно
// POST /api/v1/engine/tick
func (h *EngineHandler) TriggerTick(w http.ResponseWriter, r *http.Request) {
	h.engine.RunTick(r.Context())
	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "tick executed"})
}
