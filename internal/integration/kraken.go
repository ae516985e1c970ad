package integration

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"liquidity/internal/config"
	"liquidity/internal/models"
	"liquidity/pkg/ratelimit"
)

// Команды Kraken
const (
	KrakenCommandBuy      = "buy"      // купить целевой актив за котируемый
	KrakenCommandSell     = "sell"     // продать излишек целевого актива
	KrakenCommandWithdraw = "withdraw" // вывести актив на настроенный адрес
)

// Префиксы корреляционных ключей: по префиксу CheckStatus понимает,
// какой endpoint опрашивать
const (
	krakenTradePrefix    = "kraken:trade:"
	krakenWithdrawPrefix = "kraken:withdraw:"
)

// Kraken - обработчик биржи Kraken.
// Торговые команды асинхронны (ордер исполняется биржей), вывод асинхронен
// (требует on-chain подтверждения); обе ветки опрашиваются по correlationId.
type Kraken struct {
	cfg     config.KrakenConfig
	http    *HTTPClient
	limiter *ratelimit.Limiter
}

// NewKraken создает обработчик Kraken
func NewKraken(cfg config.KrakenConfig) *Kraken {
	return &Kraken{
		cfg:  cfg,
		http: SharedHTTPClient(),
		// Kraken tier-2: ~15 запросов в ведре, пополнение медленное
		limiter: ratelimit.New(1, 5),
	}
}

// System возвращает имя системы
func (k *Kraken) System() string { return "kraken" }

// Commands возвращает список поддерживаемых команд
func (k *Kraken) Commands() []string {
	return []string{KrakenCommandBuy, KrakenCommandSell, KrakenCommandWithdraw}
}

// ValidateParams проверяет параметры команды при регистрации действия
func (k *Kraken) ValidateParams(command string, params map[string]interface{}) error {
	switch command {
	case KrakenCommandBuy, KrakenCommandSell:
		if _, ok := stringParam(params, "pair"); !ok {
			return fmt.Errorf("kraken %s requires string param %q (e.g. XBTUSDT)", command, "pair")
		}
	case KrakenCommandWithdraw:
		if _, ok := stringParam(params, "asset"); !ok {
			return fmt.Errorf("kraken withdraw requires string param %q", "asset")
		}
		if _, ok := stringParam(params, "key"); !ok {
			return fmt.Errorf("kraken withdraw requires string param %q (withdrawal key name)", "key")
		}
	default:
		return fmt.Errorf("unknown kraken command: %s", command)
	}
	return nil
}

// Execute запускает команду на бирже
func (k *Kraken) Execute(ctx context.Context, command string, amount float64, params map[string]interface{}) (*ExecutionResult, error) {
	if err := k.limiter.Wait(ctx); err != nil {
		return nil, newHandlerError("kraken", command, "rate limit wait cancelled", err)
	}

	switch command {
	case KrakenCommandBuy, KrakenCommandSell:
		return k.placeOrder(ctx, command, amount, params)
	case KrakenCommandWithdraw:
		return k.withdraw(ctx, amount, params)
	default:
		return nil, newHandlerError("kraken", command, "unknown command", nil)
	}
}

// krakenResponse - общий конверт ответов Kraken API
type krakenResponse struct {
	Error  []string               `json:"error"`
	Result map[string]interface{} `json:"result"`
}

func (r *krakenResponse) err() error {
	if len(r.Error) == 0 {
		return nil
	}
	return fmt.Errorf("kraken api error: %s", strings.Join(r.Error, "; "))
}

// placeOrder размещает рыночный ордер
func (k *Kraken) placeOrder(ctx context.Context, side string, amount float64, params map[string]interface{}) (*ExecutionResult, error) {
	pair, _ := stringParam(params, "pair")

	form := url.Values{}
	form.Set("pair", pair)
	form.Set("type", side)
	form.Set("ordertype", "market")
	form.Set("volume", strconv.FormatFloat(amount, 'f', -1, 64))
	// клиентский идемпотентный ключ: повторная отправка не создаст дубль
	form.Set("cl_ord_id", uuid.NewString())

	var resp krakenResponse
	if err := k.signedPost(ctx, "/0/private/AddOrder", form, &resp); err != nil {
		return nil, newHandlerError("kraken", side, err.Error(), err)
	}
	if err := resp.err(); err != nil {
		return nil, newHandlerError("kraken", side, err.Error(), err)
	}

	txids, _ := resp.Result["txid"].([]interface{})
	if len(txids) == 0 {
		return nil, newHandlerError("kraken", side, "no txid in AddOrder response", nil)
	}
	orderID, _ := txids[0].(string)

	return &ExecutionResult{
		CorrelationID: krakenTradePrefix + orderID,
		OrderType:     "trade",
	}, nil
}

// withdraw выводит актив на предварительно настроенный адрес (withdrawal key)
func (k *Kraken) withdraw(ctx context.Context, amount float64, params map[string]interface{}) (*ExecutionResult, error) {
	asset, _ := stringParam(params, "asset")
	key, _ := stringParam(params, "key")

	form := url.Values{}
	form.Set("asset", asset)
	form.Set("key", key)
	form.Set("amount", strconv.FormatFloat(amount, 'f', -1, 64))

	var resp krakenResponse
	if err := k.signedPost(ctx, "/0/private/Withdraw", form, &resp); err != nil {
		return nil, newHandlerError("kraken", KrakenCommandWithdraw, err.Error(), err)
	}
	if err := resp.err(); err != nil {
		return nil, newHandlerError("kraken", KrakenCommandWithdraw, err.Error(), err)
	}

	refid, _ := resp.Result["refid"].(string)
	if refid == "" {
		return nil, newHandlerError("kraken", KrakenCommandWithdraw, "no refid in Withdraw response", nil)
	}

	return &ExecutionResult{
		CorrelationID: krakenWithdrawPrefix + asset + ":" + refid,
		OrderType:     "withdrawal",
		InputAsset:    asset,
	}, nil
}

// CheckStatus опрашивает состояние операции по корреляционному ключу
func (k *Kraken) CheckStatus(ctx context.Context, command, correlationID string) (*StatusResult, error) {
	if err := k.limiter.Wait(ctx); err != nil {
		return nil, newHandlerError("kraken", command, "rate limit wait cancelled", err)
	}

	switch {
	case strings.HasPrefix(correlationID, krakenTradePrefix):
		return k.checkOrder(ctx, strings.TrimPrefix(correlationID, krakenTradePrefix))
	case strings.HasPrefix(correlationID, krakenWithdrawPrefix):
		return k.checkWithdrawal(ctx, strings.TrimPrefix(correlationID, krakenWithdrawPrefix))
	default:
		return nil, newHandlerError("kraken", command, "unknown correlation id format: "+correlationID, nil)
	}
}

func (k *Kraken) checkOrder(ctx context.Context, orderID string) (*StatusResult, error) {
	form := url.Values{}
	form.Set("txid", orderID)

	var resp krakenResponse
	if err := k.signedPost(ctx, "/0/private/QueryOrders", form, &resp); err != nil {
		return nil, err
	}
	if err := resp.err(); err != nil {
		return nil, err
	}

	info, _ := resp.Result[orderID].(map[string]interface{})
	if info == nil {
		return nil, fmt.Errorf("order %s not found in QueryOrders response", orderID)
	}

	status, _ := info["status"].(string)
	switch status {
	case "closed":
		fee := floatField(info, "fee")
		return &StatusResult{Status: models.OrderStatusComplete, TxID: orderID, FeeAmount: fee}, nil
	case "canceled", "expired":
		reason, _ := info["reason"].(string)
		if reason == "" {
			reason = "order " + status + " on exchange"
		}
		return &StatusResult{Status: models.OrderStatusFailed, Error: reason}, nil
	default:
		// open, pending - ордер ещё в стакане
		return &StatusResult{Status: models.OrderStatusPending}, nil
	}
}

func (k *Kraken) checkWithdrawal(ctx context.Context, key string) (*StatusResult, error) {
	parts := strings.SplitN(key, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("malformed withdrawal correlation id: %s", key)
	}
	asset, refid := parts[0], parts[1]

	form := url.Values{}
	form.Set("asset", asset)

	var resp struct {
		Error  []string `json:"error"`
		Result []struct {
			Refid  string `json:"refid"`
			TxID   string `json:"txid"`
			Status string `json:"status"`
			Fee    string `json:"fee"`
		} `json:"result"`
	}
	if err := k.signedPost(ctx, "/0/private/WithdrawStatus", form, &resp); err != nil {
		return nil, err
	}
	if len(resp.Error) > 0 {
		return nil, fmt.Errorf("kraken api error: %s", strings.Join(resp.Error, "; "))
	}

	for _, w := range resp.Result {
		if w.Refid != refid {
			continue
		}
		fee, _ := strconv.ParseFloat(w.Fee, 64)
		switch w.Status {
		case "Success":
			return &StatusResult{Status: models.OrderStatusComplete, TxID: w.TxID, FeeAmount: fee, FeeAsset: asset}, nil
		case "Failure":
			return &StatusResult{Status: models.OrderStatusFailed, Error: "withdrawal failed on exchange"}, nil
		case "Settled":
			// сумма списана, ждём on-chain подтверждения
			return &StatusResult{Status: models.OrderStatusReady, TxID: w.TxID}, nil
		default:
			// Initial, Pending
			return &StatusResult{Status: models.OrderStatusPending}, nil
		}
	}

	return nil, fmt.Errorf("withdrawal %s not found in WithdrawStatus response", refid)
}

// Balances возвращает балансы аккаунта. Kraken отдаёт суммы строками
// и использует собственные тикеры (XXBT, ZEUR) - маппинг на операционные
// активы задаётся в конфигурации правил, здесь тикеры не переименовываются.
func (k *Kraken) Balances(ctx context.Context) (map[string]float64, error) {
	if err := k.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var resp struct {
		Error  []string          `json:"error"`
		Result map[string]string `json:"result"`
	}
	if err := k.signedPost(ctx, "/0/private/Balance", url.Values{}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Error) > 0 {
		return nil, fmt.Errorf("kraken api error: %s", strings.Join(resp.Error, "; "))
	}

	balances := make(map[string]float64, len(resp.Result))
	for asset, raw := range resp.Result {
		amount, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed balance for %s: %q", asset, raw)
		}
		balances[asset] = amount
	}
	return balances, nil
}

// Close закрывает соединения с биржей
func (k *Kraken) Close() error { return nil }

// signedPost выполняет подписанный приватный запрос.
// Подпись Kraken: HMAC-SHA512(path + SHA256(nonce + postdata), base64(secret))
func (k *Kraken) signedPost(ctx context.Context, path string, form url.Values, out interface{}) error {
	nonce := strconv.FormatInt(time.Now().UnixNano()/int64(time.Millisecond), 10)
	form.Set("nonce", nonce)
	postData := form.Encode()

	secret, err := base64.StdEncoding.DecodeString(k.cfg.APISecret)
	if err != nil {
		return fmt.Errorf("malformed kraken api secret: %w", err)
	}

	shaSum := sha256.Sum256([]byte(nonce + postData))
	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(path))
	mac.Write(shaSum[:])
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	headers := map[string]string{
		"API-Key":  k.cfg.APIKey,
		"API-Sign": signature,
	}

	return k.http.PostForm(ctx, k.cfg.BaseURL+path, headers, form, out)
}

// stringParam извлекает строковый параметр действия
func stringParam(params map[string]interface{}, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// floatField извлекает числовое поле из ответа API (число или строка)
func floatField(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}
