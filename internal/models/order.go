package models

import "time"

// Order - один вызов внешней операции (swap, вывод, bridge-перевод) и её
// отслеживаемый результат. Одна строка на каждый шаг цепочки действий.
//
// Жизненный цикл: создаётся при исполнении действия; изменяется только
// шагом опроса завершения; никогда не удаляется (audit trail).
// Ордера одного pipeline связаны через PreviousOrderID в причинную цепочку.
type Order struct {
	ID              int     `json:"id" db:"id"`
	PipelineID      int     `json:"pipeline_id" db:"pipeline_id"`
	ActionID        int     `json:"action_id" db:"action_id"`
	PreviousOrderID *int    `json:"previous_order_id,omitempty" db:"previous_order_id"`
	Type            string  `json:"type" db:"type"`       // withdrawal, trade, bridge...
	Context         string  `json:"context" db:"context"` // произвольный контекст интеграции
	CorrelationID   string  `json:"correlation_id" db:"correlation_id"` // ключ опроса во внешней системе
	Chain           string  `json:"chain,omitempty" db:"chain"`
	ReferenceAsset  string  `json:"reference_asset,omitempty" db:"reference_asset"`
	ReferenceAmount float64 `json:"reference_amount,omitempty" db:"reference_amount"`
	InputAmount     float64 `json:"input_amount" db:"input_amount"`
	InputAsset      string  `json:"input_asset" db:"input_asset"`
	OutputAsset     string  `json:"output_asset" db:"output_asset"`
	SwapAsset       string  `json:"swap_asset,omitempty" db:"swap_asset"`
	SwapAmount      float64 `json:"swap_amount,omitempty" db:"swap_amount"`
	Strategy        string  `json:"strategy,omitempty" db:"strategy"`
	TxID            string  `json:"tx_id,omitempty" db:"tx_id"` // on-chain или биржевой идентификатор
	FeeAmount       float64 `json:"fee_amount,omitempty" db:"fee_amount"`
	FeeAsset        string  `json:"fee_asset,omitempty" db:"fee_asset"`
	IsReady         bool    `json:"is_ready" db:"is_ready"`       // сумма подтверждена, но не рассчитана
	IsComplete      bool    `json:"is_complete" db:"is_complete"` // терминальное состояние
	ErrorMessage    string  `json:"error_message,omitempty" db:"error_message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Статусы опроса внешней системы (state machine одного ордера):
// pending -> {ready -> complete} | {failed}, ready опционален.
const (
	OrderStatusPending  = "pending"
	OrderStatusReady    = "ready"
	OrderStatusComplete = "complete"
	OrderStatusFailed   = "failed"
)

// Failed возвращает true если ордер завершился ошибкой
func (o *Order) Failed() bool {
	return o.IsComplete && o.ErrorMessage != ""
}

// Succeeded возвращает true если ордер успешно завершён
func (o *Order) Succeeded() bool {
	return o.IsComplete && o.ErrorMessage == ""
}
