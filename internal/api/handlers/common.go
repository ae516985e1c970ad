package handlers

import (
	"errors"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"liquidity/internal/repository"
	"liquidity/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrorResponse - стандартный формат ответа об ошибке
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse - стандартный формат успешного ответа без данных
type SuccessResponse struct {
	Message string `json:"message"`
}

// respondWithJSON отправляет JSON ответ
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

// respondWithError отправляет JSON ошибку
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

// respondServiceError транслирует ошибки сервисного слоя в HTTP коды
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrRuleNotFound),
		errors.Is(err, service.ErrActionNotFound),
		errors.Is(err, repository.ErrPipelineNotFound),
		errors.Is(err, service.ErrBalanceUnknown):
		respondWithError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, service.ErrRuleExists):
		respondWithError(w, http.StatusConflict, err.Error())

	case errors.Is(err, service.ErrPipelineRunning):
		respondWithError(w, http.StatusConflict, err.Error())

	case errors.Is(err, service.ErrInvalidBounds),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidActionParams),
		errors.Is(err, service.ErrSystemNotSupported),
		errors.Is(err, service.ErrCommandNotSupported),
		errors.Is(err, service.ErrChainCycle),
		errors.Is(err, service.ErrChainTooDeep):
		respondWithError(w, http.StatusBadRequest, err.Error())

	default:
		respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}
