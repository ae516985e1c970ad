package integration

import (
	"context"
	"fmt"

	"liquidity/internal/models"
)

// ActionHandler определяет унифицированный интерфейс одной внешней системы
// (биржа, bridge, кастодиан). Одна реализация на систему; команды внутри
// системы различаются аргументом command.
//
// Контракт:
// - Execute запускает операцию. Синхронные системы возвращают результат
//   с Complete=true; асинхронные - CorrelationID для последующего опроса.
// - CheckStatus опрашивает состояние ранее запущенной операции по
//   корреляционному ключу. Обязан быть безопасным для повторных вызовов.
// - ValidateParams проверяет параметры действия при его регистрации,
//   чтобы конфигурационные ошибки ловились до первого исполнения.
type ActionHandler interface {
	// System возвращает имя системы
	System() string

	// Commands возвращает список поддерживаемых команд
	Commands() []string

	// Execute запускает команду во внешней системе
	Execute(ctx context.Context, command string, amount float64, params map[string]interface{}) (*ExecutionResult, error)

	// CheckStatus опрашивает состояние операции по корреляционному ключу
	CheckStatus(ctx context.Context, command, correlationID string) (*StatusResult, error)

	// ValidateParams проверяет параметры команды (вызывается при регистрации действия)
	ValidateParams(command string, params map[string]interface{}) error

	// Close закрывает соединения с системой
	Close() error
}

// ExecutionResult - результат запуска команды
type ExecutionResult struct {
	Complete      bool    // синхронная система: операция завершена немедленно
	CorrelationID string  // ключ опроса (для асинхронных операций)
	TxID          string  // идентификатор транзакции, если уже известен
	OrderType     string  // trade, withdrawal, bridge... - записывается в Order.Type
	InputAsset    string
	OutputAsset   string
	FeeAmount     float64
	FeeAsset      string
}

// StatusResult - результат опроса состояния операции
type StatusResult struct {
	Status    string // pending, ready, complete, failed (models.OrderStatus*)
	TxID      string
	FeeAmount float64
	FeeAsset  string
	Error     string // текст ошибки при status=failed
}

// Terminal возвращает true для терминального состояния опроса
func (s *StatusResult) Terminal() bool {
	return s.Status == models.OrderStatusComplete || s.Status == models.OrderStatusFailed
}

// HandlerError представляет ошибку внешней системы.
// Это "внешний сбой" в терминах движка: записывается на ордер и
// потребляется логикой fallback, не прерывает tick.
type HandlerError struct {
	System   string
	Command  string
	Message  string
	Original error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s/%s: %s", e.System, e.Command, e.Message)
}

// Unwrap возвращает оригинальную ошибку для errors.Is() и errors.As()
func (e *HandlerError) Unwrap() error {
	return e.Original
}

// newHandlerError оборачивает ошибку внешнего вызова
func newHandlerError(system, command, message string, original error) *HandlerError {
	return &HandlerError{System: system, Command: command, Message: message, Original: original}
}
