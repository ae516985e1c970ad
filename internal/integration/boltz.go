package integration

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"liquidity/internal/config"
	"liquidity/internal/models"
	"liquidity/pkg/ratelimit"
)

// Команды Boltz
const (
	// BoltzCommandDeposit - пополнение через reverse swap:
	// создаётся swap, после оплаты Lightning-инвойса средства
	// отправляются на claim-адрес
	BoltzCommandDeposit = "deposit"
)

const boltzDepositPrefix = "boltz:deposit:"

var boltzJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// boltzCorrelation - данные swap'а, упакованные в correlation id.
// Кодируются в base64, чтобы переживать рестарты без отдельной таблицы.
type boltzCorrelation struct {
	SwapID            string `json:"swapId"`
	ClaimAddress      string `json:"claimAddress"`
	InvoiceAmountSats int64  `json:"invoiceAmountSats"`
}

// Терминальные статусы reverse swap
var (
	boltzSuccessStatuses = map[string]bool{
		"invoice.settled":        true,
		"transaction.claimed":    true,
		"transaction.confirmed":  true,
	}
	boltzFailedStatuses = map[string]bool{
		"swap.expired":         true,
		"invoice.expired":      true,
		"transaction.failed":   true,
		"transaction.refunded": true,
	}
)

// Boltz - обработчик reverse swap'ов через Boltz API
type Boltz struct {
	cfg     config.BoltzConfig
	http    *HTTPClient
	limiter *ratelimit.Limiter
}

// NewBoltz создает обработчик Boltz
func NewBoltz(cfg config.BoltzConfig) *Boltz {
	return &Boltz{
		cfg:     cfg,
		http:    SharedHTTPClient(),
		limiter: ratelimit.New(2, 5),
	}
}

// System возвращает имя системы
func (b *Boltz) System() string { return "boltz" }

// Commands возвращает список поддерживаемых команд
func (b *Boltz) Commands() []string { return []string{BoltzCommandDeposit} }

// ValidateParams проверяет параметры команды при регистрации действия.
// Claim-адрес берётся из конфигурации, дополнительных параметров не нужно.
func (b *Boltz) ValidateParams(command string, _ map[string]interface{}) error {
	if command != BoltzCommandDeposit {
		return fmt.Errorf("unknown boltz command: %s", command)
	}
	if b.cfg.ClaimAddress == "" {
		return fmt.Errorf("boltz claim address is not configured")
	}
	return nil
}

// Execute создаёт reverse swap на заданную сумму
func (b *Boltz) Execute(ctx context.Context, command string, amount float64, _ map[string]interface{}) (*ExecutionResult, error) {
	if command != BoltzCommandDeposit {
		return nil, newHandlerError("boltz", command, "unknown command", nil)
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, newHandlerError("boltz", command, "rate limit wait cancelled", err)
	}

	invoiceAmountSats := int64(math.Round(amount * 1e8))
	if invoiceAmountSats <= 0 {
		return nil, newHandlerError("boltz", command, fmt.Sprintf("amount too small: %f", amount), nil)
	}

	req := map[string]interface{}{
		"type":           "reversesubmarine",
		"pairId":         "BTC/BTC",
		"orderSide":      "buy",
		"claimAddress":   b.cfg.ClaimAddress,
		"invoiceAmount":  invoiceAmountSats,
	}

	var resp struct {
		ID      string `json:"id"`
		Invoice string `json:"invoice"`
		Error   string `json:"error"`
	}
	if err := b.http.PostJSON(ctx, b.cfg.BaseURL+"/v2/swap/reverse", nil, req, &resp); err != nil {
		return nil, newHandlerError("boltz", command, err.Error(), err)
	}
	if resp.Error != "" {
		return nil, newHandlerError("boltz", command, "swap creation rejected: "+resp.Error, nil)
	}
	if resp.ID == "" {
		return nil, newHandlerError("boltz", command, "no swap id in response", nil)
	}

	corr := boltzCorrelation{
		SwapID:            resp.ID,
		ClaimAddress:      b.cfg.ClaimAddress,
		InvoiceAmountSats: invoiceAmountSats,
	}
	encoded, err := encodeBoltzCorrelation(corr)
	if err != nil {
		return nil, newHandlerError("boltz", command, "encode correlation", err)
	}

	return &ExecutionResult{
		CorrelationID: boltzDepositPrefix + encoded,
		OrderType:     "deposit",
		InputAsset:    "BTC",
	}, nil
}

// CheckStatus опрашивает статус swap'а
func (b *Boltz) CheckStatus(ctx context.Context, command, correlationID string) (*StatusResult, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, newHandlerError("boltz", command, "rate limit wait cancelled", err)
	}

	corr, err := decodeBoltzCorrelation(strings.TrimPrefix(correlationID, boltzDepositPrefix))
	if err != nil {
		return nil, newHandlerError("boltz", command, "malformed correlation id: "+correlationID, err)
	}

	var resp struct {
		Status        string `json:"status"`
		FailureReason string `json:"failureReason"`
		Transaction   struct {
			ID string `json:"id"`
		} `json:"transaction"`
	}
	if err := b.http.GetJSON(ctx, b.cfg.BaseURL+"/v2/swap/"+corr.SwapID, nil, &resp); err != nil {
		return nil, err
	}

	switch {
	case boltzFailedStatuses[resp.Status]:
		msg := "boltz swap failed: " + resp.Status
		if resp.FailureReason != "" {
			msg += " (" + resp.FailureReason + ")"
		}
		return &StatusResult{Status: models.OrderStatusFailed, Error: msg}, nil
	case boltzSuccessStatuses[resp.Status]:
		return &StatusResult{Status: models.OrderStatusComplete, TxID: resp.Transaction.ID}, nil
	case resp.Status == "transaction.mempool":
		// средства отправлены, ждём подтверждения
		return &StatusResult{Status: models.OrderStatusReady, TxID: resp.Transaction.ID}, nil
	default:
		return &StatusResult{Status: models.OrderStatusPending}, nil
	}
}

// Close закрывает соединения
func (b *Boltz) Close() error { return nil }

func encodeBoltzCorrelation(c boltzCorrelation) (string, error) {
	raw, err := boltzJSON.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func decodeBoltzCorrelation(encoded string) (boltzCorrelation, error) {
	var c boltzCorrelation
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return c, err
	}
	if err := boltzJSON.Unmarshal(raw, &c); err != nil {
		return c, err
	}
	if c.SwapID == "" {
		return c, fmt.Errorf("empty swap id in correlation data")
	}
	return c, nil
}
