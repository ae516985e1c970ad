package handlers

import (
	"net/http"

	"liquidity/internal/service"
)

// ActionHandler отвечает за каталог действий
//
// Endpoints:
// - GET  /api/v1/actions - список действий
// - POST /api/v1/actions - зарегистрировать действие
// - POST /api/v1/actions/tree - зарегистрировать дерево действий
// - GET  /api/v1/actions/{id} - получить действие
//
// Действия неизменяемы: PATCH и DELETE отсутствуют сознательно.
// Повторная регистрация той же конфигурации возвращает существующее
// действие, поэтому POST идемпотентен.
type ActionHandler struct {
	actionService *service.ActionService
}

// NewActionHandler создает новый ActionHandler
func NewActionHandler(actionService *service.ActionService) *ActionHandler {
	return &ActionHandler{actionService: actionService}
}

// GetActions возвращает все зарегистрированные действия
// GET /api/v1/actions
func (h *ActionHandler) GetActions(w http.ResponseWriter, r *http.Request) {
	actions, err := h.actionService.GetAllActions()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, actions)
}

// CreateAction регистрирует действие
// POST /api/v1/actions
func (h *ActionHandler) CreateAction(w http.ResponseWriter, r *http.Request) {
	var req service.CreateActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	action, err := h.actionService.CreateAction(&req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, action)
}

// CreateActionTree регистрирует дерево действий одним запросом.
// Узлы создаются от листьев к корню; ответ - корневое действие.
// POST /api/v1/actions/tree
func (h *ActionHandler) CreateActionTree(w http.ResponseWriter, r *http.Request) {
	var node service.ActionNode
	if err := json.NewDecoder(r.Body).Decode(&node); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	action, err := h.actionService.RegisterTree(&node)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, action)
}

// GetAction возвращает действие по ID
// GET /api/v1/actions/{id}
func (h *ActionHandler) GetAction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	action, err := h.actionService.GetAction(id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, action)
}
