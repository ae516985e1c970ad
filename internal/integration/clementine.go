package integration

import (
	"context"
	"fmt"
	"strings"

	"liquidity/internal/config"
	"liquidity/internal/models"
	"liquidity/pkg/ratelimit"
)

// Команды моста Clementine. Мост работает фиксированными партиями,
// поэтому сумма заявки приводится к ближайшему кратному партии на стороне API.
const (
	ClementineCommandDeposit  = "deposit"  // BTC -> cBTC
	ClementineCommandWithdraw = "withdraw" // cBTC -> BTC
)

const (
	clementineDepositPrefix  = "clementine:deposit:"
	clementineWithdrawPrefix = "clementine:withdraw:"
)

// Clementine - обработчик моста Clementine через его REST API.
// Депозит и вывод асинхронны: операция принимается мостом и проходит
// on-chain подтверждения, статус опрашивается по идентификатору операции.
type Clementine struct {
	cfg     config.ClementineConfig
	http    *HTTPClient
	limiter *ratelimit.Limiter
}

// NewClementine создает обработчик моста
func NewClementine(cfg config.ClementineConfig) *Clementine {
	return &Clementine{
		cfg:     cfg,
		http:    SharedHTTPClient(),
		limiter: ratelimit.New(2, 5),
	}
}

// System возвращает имя системы
func (c *Clementine) System() string { return "clementine" }

// Commands возвращает список поддерживаемых команд
func (c *Clementine) Commands() []string {
	return []string{ClementineCommandDeposit, ClementineCommandWithdraw}
}

// ValidateParams проверяет параметры команды при регистрации действия
func (c *Clementine) ValidateParams(command string, params map[string]interface{}) error {
	switch command {
	case ClementineCommandDeposit:
		if _, ok := stringParam(params, "recovery_address"); !ok {
			return fmt.Errorf("clementine deposit requires string param %q (dep-prefixed taproot address)", "recovery_address")
		}
	case ClementineCommandWithdraw:
		if _, ok := stringParam(params, "destination_address"); !ok {
			return fmt.Errorf("clementine withdraw requires string param %q", "destination_address")
		}
	default:
		return fmt.Errorf("unknown clementine command: %s", command)
	}
	return nil
}

// Execute запускает операцию на мосту
func (c *Clementine) Execute(ctx context.Context, command string, amount float64, params map[string]interface{}) (*ExecutionResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, newHandlerError("clementine", command, "rate limit wait cancelled", err)
	}

	switch command {
	case ClementineCommandDeposit:
		return c.submit(ctx, command, "/v1/deposits", map[string]interface{}{
			"amount":          amount,
			"recoveryAddress": mustString(params, "recovery_address"),
		}, clementineDepositPrefix, "deposit", "BTC", "cBTC")
	case ClementineCommandWithdraw:
		return c.submit(ctx, command, "/v1/withdrawals", map[string]interface{}{
			"amount":             amount,
			"destinationAddress": mustString(params, "destination_address"),
		}, clementineWithdrawPrefix, "withdrawal", "cBTC", "BTC")
	default:
		return nil, newHandlerError("clementine", command, "unknown command", nil)
	}
}

func (c *Clementine) submit(ctx context.Context, command, path string, body map[string]interface{}, prefix, orderType, inputAsset, outputAsset string) (*ExecutionResult, error) {
	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := c.http.PostJSON(ctx, c.cfg.BaseURL+path, c.headers(), body, &resp); err != nil {
		return nil, newHandlerError("clementine", command, err.Error(), err)
	}
	if resp.Error != "" {
		return nil, newHandlerError("clementine", command, "bridge rejected operation: "+resp.Error, nil)
	}
	if resp.ID == "" {
		return nil, newHandlerError("clementine", command, "no operation id in bridge response", nil)
	}

	return &ExecutionResult{
		CorrelationID: prefix + resp.ID,
		OrderType:     orderType,
		InputAsset:    inputAsset,
		OutputAsset:   outputAsset,
	}, nil
}

// CheckStatus опрашивает состояние операции на мосту
func (c *Clementine) CheckStatus(ctx context.Context, command, correlationID string) (*StatusResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, newHandlerError("clementine", command, "rate limit wait cancelled", err)
	}

	var path string
	switch {
	case strings.HasPrefix(correlationID, clementineDepositPrefix):
		path = "/v1/deposits/" + strings.TrimPrefix(correlationID, clementineDepositPrefix)
	case strings.HasPrefix(correlationID, clementineWithdrawPrefix):
		path = "/v1/withdrawals/" + strings.TrimPrefix(correlationID, clementineWithdrawPrefix)
	default:
		return nil, newHandlerError("clementine", command, "unknown correlation id format: "+correlationID, nil)
	}

	var resp struct {
		Status       string  `json:"status"`
		TxID         string  `json:"txId"`
		Fee          float64 `json:"fee"`
		FeeAsset     string  `json:"feeAsset"`
		ErrorMessage string  `json:"errorMessage"`
	}
	if err := c.http.GetJSON(ctx, c.cfg.BaseURL+path, c.headers(), &resp); err != nil {
		return nil, err
	}

	switch resp.Status {
	case "completed":
		return &StatusResult{
			Status:    models.OrderStatusComplete,
			TxID:      resp.TxID,
			FeeAmount: resp.Fee,
			FeeAsset:  resp.FeeAsset,
		}, nil
	case "failed":
		msg := resp.ErrorMessage
		if msg == "" {
			msg = "bridge operation failed"
		}
		return &StatusResult{Status: models.OrderStatusFailed, Error: msg}, nil
	case "confirming":
		// транзакция в сети, ждём требуемых подтверждений
		return &StatusResult{Status: models.OrderStatusReady, TxID: resp.TxID}, nil
	default:
		// pending, scanning
		return &StatusResult{Status: models.OrderStatusPending}, nil
	}
}

// Close закрывает соединения
func (c *Clementine) Close() error { return nil }

func (c *Clementine) headers() map[string]string {
	if c.cfg.APIKey == "" {
		return nil
	}
	return map[string]string{"X-API-Key": c.cfg.APIKey}
}

// mustString - параметр уже проверен ValidateParams, пустая строка
// здесь означает ошибку конфигурации и ловится на стороне API
func mustString(params map[string]interface{}, key string) string {
	s, _ := stringParam(params, key)
	return s
}
