package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"liquidity/internal/api/handlers"
	"liquidity/internal/api/middleware"
	"liquidity/internal/service"
	"liquidity/internal/websocket"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	RuleService         *service.RuleService
	ActionService       *service.ActionService
	BalanceService      *service.BalanceService
	NotificationService *service.NotificationService
	Engine              service.TickRunner
	Hub                 *websocket.Hub
	Log                 *zap.Logger

	// bcrypt-хэш операторского токена; пусто = auth выключен
	APITokenHash string
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /rules/
//	│   ├── GET  /                 - список правил
//	│   ├── POST /                 - создать правило
//	│   ├── GET  /{id}             - получить правило
//	│   ├── PATCH /{id}            - изменить правило
//	│   ├── POST /{id}/activate    - включить правило
//	│   ├── POST /{id}/deactivate  - выключить правило
//	│   └── GET  /{id}/pipelines   - история pipeline правила
//	├── /actions/
//	│   ├── GET  /       - список действий
//	│   ├── POST /       - зарегистрировать действие
//	│   ├── POST /tree   - зарегистрировать дерево действий
//	│   └── GET  /{id}   - получить действие
//	├── /pipelines/
//	│   ├── GET /             - активные pipeline
//	│   ├── GET /{id}         - получить pipeline
//	│   └── GET /{id}/orders  - ордера pipeline
//	├── /balances/
//	│   ├── GET /            - кэшированные балансы
//	│   ├── PUT /{asset}     - установить баланс вручную
//	│   └── GET /providers   - ошибки провайдеров
//	├── /notifications/
//	│   └── GET / - журнал уведомлений
//	└── /engine/
//	    └── POST /tick - выполнить цикл немедленно
//
// /ws/stream - WebSocket для real-time обновлений
// /metrics   - Prometheus метрики
// /health    - health check
//
// Middleware: Recovery -> Logging -> CORS для всех маршрутов,
// Auth (Bearer token против bcrypt-хэша) только для /api/v1.
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery(deps.Log))
	router.Use(middleware.Logging(deps.Log))
	router.Use(middleware.CORS)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Auth(deps.APITokenHash))

	if deps.RuleService != nil {
		ruleHandler := handlers.NewRuleHandler(deps.RuleService)
		api.HandleFunc("/rules", ruleHandler.GetRules).Methods("GET")
		api.HandleFunc("/rules", ruleHandler.CreateRule).Methods("POST")
		api.HandleFunc("/rules/{id}", ruleHandler.GetRule).Methods("GET")
		api.HandleFunc("/rules/{id}", ruleHandler.UpdateRule).Methods("PATCH")
		api.HandleFunc("/rules/{id}/activate", ruleHandler.ActivateRule).Methods("POST")
		api.HandleFunc("/rules/{id}/deactivate", ruleHandler.DeactivateRule).Methods("POST")
		api.HandleFunc("/rules/{id}/pipelines", ruleHandler.GetRulePipelines).Methods("GET")

		pipelineHandler := handlers.NewPipelineHandler(deps.RuleService)
		api.HandleFunc("/pipelines", pipelineHandler.GetActivePipelines).Methods("GET")
		api.HandleFunc("/pipelines/{id}", pipelineHandler.GetPipeline).Methods("GET")
		api.HandleFunc("/pipelines/{id}/orders", pipelineHandler.GetPipelineOrders).Methods("GET")
	}

	if deps.ActionService != nil {
		actionHandler := handlers.NewActionHandler(deps.ActionService)
		api.HandleFunc("/actions", actionHandler.GetActions).Methods("GET")
		api.HandleFunc("/actions", actionHandler.CreateAction).Methods("POST")
		api.HandleFunc("/actions/tree", actionHandler.CreateActionTree).Methods("POST")
		api.HandleFunc("/actions/{id}", actionHandler.GetAction).Methods("GET")
	}

	if deps.BalanceService != nil {
		balanceHandler := handlers.NewBalanceHandler(deps.BalanceService)
		api.HandleFunc("/balances", balanceHandler.GetBalances).Methods("GET")
		api.HandleFunc("/balances/providers", balanceHandler.GetProviderErrors).Methods("GET")
		api.HandleFunc("/balances/{asset}", balanceHandler.SetBalance).Methods("PUT")
	}

	if deps.NotificationService != nil {
		notificationHandler := handlers.NewNotificationHandler(deps.NotificationService)
		api.HandleFunc("/notifications", notificationHandler.GetNotifications).Methods("GET")
	}

	if deps.Engine != nil {
		engineHandler := handlers.NewEngineHandler(deps.Engine)
		api.HandleFunc("/engine/tick", engineHandler.TriggerTick).Methods("POST")
	}

	if deps.Hub != nil {
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(deps.Hub, w, r)
		})
	}

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
