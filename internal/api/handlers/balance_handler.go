package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"liquidity/internal/service"
)

// BalanceHandler отвечает за просмотр и ручную установку балансов
//
// Endpoints:
// - GET /api/v1/balances - все кэшированные балансы
// - PUT /api/v1/balances/{asset} - установить баланс вручную
// - GET /api/v1/balances/providers - ошибки провайдеров
type BalanceHandler struct {
	balanceService *service.BalanceService
}

// NewBalanceHandler создает новый BalanceHandler
func NewBalanceHandler(balanceService *service.BalanceService) *BalanceHandler {
	return &BalanceHandler{balanceService: balanceService}
}

// GetBalances возвращает все кэшированные балансы
// GET /api/v1/balances
func (h *BalanceHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.balanceService.GetAll()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, balances)
}

// SetBalanceRequest - тело запроса ручной установки баланса
type SetBalanceRequest struct {
	Amount float64 `json:"amount"`
}

// SetBalance записывает показание баланса вручную.
// Для активов без провайдера (холодные кошельки, внешние счета).
// PUT /api/v1/balances/{asset}
func (h *BalanceHandler) SetBalance(w http.ResponseWriter, r *http.Request) {
	asset := pathAsset(r)
	if asset == "" {
		respondWithError(w, http.StatusBadRequest, "asset is required")
		return
	}

	var req SetBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.balanceService.SetBalance(asset, req.Amount); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "balance updated"})
}

// GetProviderErrors возвращает последние ошибки провайдеров балансов
// GET /api/v1/balances/providers
func (h *BalanceHandler) GetProviderErrors(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.balanceService.ProviderErrors())
}

// pathAsset извлекает {asset} из URL
func pathAsset(r *http.Request) string {
	return mux.Vars(r)["asset"]
}
