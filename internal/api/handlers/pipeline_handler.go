package handlers

import (
	"net/http"

	"liquidity/internal/service"
)

// PipelineHandler отвечает за просмотр pipeline и их ордеров
//
// Endpoints:
// - GET /api/v1/pipelines - активные pipeline
// - GET /api/v1/pipelines/{id} - получить pipeline
// - GET /api/v1/pipelines/{id}/orders - ордера pipeline
//
// Pipeline управляются движком, ручного создания и отмены нет:
// оператор влияет на них только через правила.
type PipelineHandler struct {
	ruleService *service.RuleService
}

// NewPipelineHandler создает новый PipelineHandler
func NewPipelineHandler(ruleService *service.RuleService) *PipelineHandler {
	return &PipelineHandler{ruleService: ruleService}
}

// GetActivePipelines возвращает незавершенные pipeline
// GET /api/v1/pipelines
func (h *PipelineHandler) GetActivePipelines(w http.ResponseWriter, r *http.Request) {
	pipelines, err := h.ruleService.GetActivePipelines()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, pipelines)
}

// GetPipeline возвращает pipeline по ID
// GET /api/v1/pipelines/{id}
func (h *PipelineHandler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	pipeline, err := h.ruleService.GetPipeline(id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, pipeline)
}

// GetPipelineOrders возвращает ордера pipeline в порядке создания
// GET /api/v1/pipelines/{id}/orders
func (h *PipelineHandler) GetPipelineOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	orders, err := h.ruleService.GetPipelineOrders(id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}
