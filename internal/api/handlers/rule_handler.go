package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"liquidity/internal/service"
)

// RuleHandler отвечает за управление правилами ликвидности
//
// Endpoints:
// - GET    /api/v1/rules - список правил
// - POST   /api/v1/rules - создать правило
// - GET    /api/v1/rules/{id} - получить правило
// - PATCH  /api/v1/rules/{id} - изменить правило
// - POST   /api/v1/rules/{id}/activate - включить правило
// - POST   /api/v1/rules/{id}/deactivate - выключить правило
// - GET    /api/v1/rules/{id}/pipelines - история pipeline правила
type RuleHandler struct {
	ruleService *service.RuleService
}

// NewRuleHandler создает новый RuleHandler
func NewRuleHandler(ruleService *service.RuleService) *RuleHandler {
	return &RuleHandler{ruleService: ruleService}
}

// GetRules возвращает все правила
// GET /api/v1/rules
func (h *RuleHandler) GetRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.ruleService.GetAllRules()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rules)
}

// CreateRule создает правило для актива
// POST /api/v1/rules
func (h *RuleHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	rule, err := h.ruleService.CreateRule(&req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, rule)
}

// GetRule возвращает правило по ID
// GET /api/v1/rules/{id}
func (h *RuleHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	rule, err := h.ruleService.GetRule(id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rule)
}

// UpdateRule изменяет правило
// PATCH /api/v1/rules/{id}
func (h *RuleHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req service.UpdateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	rule, err := h.ruleService.UpdateRule(id, &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rule)
}

// ActivateRule включает правило в периодическую оценку
// POST /api/v1/rules/{id}/activate
func (h *RuleHandler) ActivateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.ruleService.ActivateRule(id); err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "rule activated"})
}

// DeactivateRule выключает правило
// POST /api/v1/rules/{id}/deactivate
func (h *RuleHandler) DeactivateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.ruleService.DeactivateRule(id); err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "rule deactivated"})
}

// GetRulePipelines возвращает историю pipeline правила (новые первыми)
// GET /api/v1/rules/{id}/pipelines?limit=100
func (h *RuleHandler) GetRulePipelines(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	pipelines, err := h.ruleService.GetRulePipelines(id, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, pipelines)
}

// pathID извлекает числовой {id} из URL
func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
