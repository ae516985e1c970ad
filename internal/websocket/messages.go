package websocket

import (
	"time"

	"liquidity/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypePipelineUpdate - смена статуса или текущего действия pipeline
	MessageTypePipelineUpdate MessageType = "pipelineUpdate"

	// MessageTypeOrderUpdate - смена состояния ордера (запуск, ready, завершение)
	MessageTypeOrderUpdate MessageType = "orderUpdate"

	// MessageTypeBalanceUpdate - свежее показание баланса актива
	MessageTypeBalanceUpdate MessageType = "balanceUpdate"

	// MessageTypeNotification - новое уведомление
	MessageTypeNotification MessageType = "notification"
)

// BaseMessage - общая часть всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// PipelineUpdateMessage - сообщение о смене состояния pipeline
type PipelineUpdateMessage struct {
	BaseMessage
	Data *models.Pipeline `json:"data"`
}

// OrderUpdateMessage - сообщение о смене состояния ордера
type OrderUpdateMessage struct {
	BaseMessage
	Data *models.Order `json:"data"`
}

// BalanceUpdateMessage - сообщение об обновлении баланса актива
type BalanceUpdateMessage struct {
	BaseMessage
	Asset  string  `json:"asset"`
	Amount float64 `json:"amount"`
}

// NotificationMessage - сообщение о новом уведомлении
type NotificationMessage struct {
	BaseMessage
	Data *models.Notification `json:"data"`
}

// NewPipelineUpdateMessage создает сообщение обновления pipeline
func NewPipelineUpdateMessage(pipeline *models.Pipeline) *PipelineUpdateMessage {
	return &PipelineUpdateMessage{
		BaseMessage: BaseMessage{Type: MessageTypePipelineUpdate, Timestamp: time.Now()},
		Data:        pipeline,
	}
}

// NewOrderUpdateMessage создает сообщение обновления ордера
func NewOrderUpdateMessage(order *models.Order) *OrderUpdateMessage {
	return &OrderUpdateMessage{
		BaseMessage: BaseMessage{Type: MessageTypeOrderUpdate, Timestamp: time.Now()},
		Data:        order,
	}
}

// NewBalanceUpdateMessage создает сообщение обновления баланса
func NewBalanceUpdateMessage(asset string, amount float64) *BalanceUpdateMessage {
	return &BalanceUpdateMessage{
		BaseMessage: BaseMessage{Type: MessageTypeBalanceUpdate, Timestamp: time.Now()},
		Asset:       asset,
		Amount:      amount,
	}
}

// NewNotificationMessage создает сообщение уведомления
func NewNotificationMessage(notif *models.Notification) *NotificationMessage {
	return &NotificationMessage{
		BaseMessage: BaseMessage{Type: MessageTypeNotification, Timestamp: time.Now()},
		Data:        notif,
	}
}
