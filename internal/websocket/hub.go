package websocket

import (
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"liquidity/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Hub управляет всеми активными WebSocket соединениями.
//
// Центральный менеджер broadcast-рассылки операторскому UI:
// смена статусов pipeline и ордеров, обновления балансов и уведомления
// уходят всем подключённым клиентам без polling. Медленные клиенты
// (переполненный send-буфер) отключаются, чтобы не тормозить рассылку.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	log *zap.Logger
	mu  sync.RWMutex
}

// NewHub создает новый Hub
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log,
	}
}

// Run запускает главный цикл Hub.
// Должен запускаться в отдельной горутине: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("websocket client connected", zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("websocket client disconnected", zap.Int("total", total))

		case message := <-h.broadcast:
			// список копируется под коротким RLock, отправка идёт без блокировки
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				total := len(h.clients)
				h.mu.Unlock()
				h.log.Warn("slow websocket clients removed",
					zap.Int("removed", len(toRemove)),
					zap.Int("total", total),
				)
			}
		}
	}
}

// Broadcast сериализует сообщение и отправляет его всем клиентам
func (h *Hub) Broadcast(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error("failed to marshal broadcast message", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- data:
	default:
		// hub перегружен - теряем сообщение, UI догонит по REST
		h.log.Warn("broadcast channel full, message dropped")
	}
}

// BroadcastPipelineUpdate отправляет смену состояния pipeline
func (h *Hub) BroadcastPipelineUpdate(pipeline *models.Pipeline) {
	h.Broadcast(NewPipelineUpdateMessage(pipeline))
}

// BroadcastOrderUpdate отправляет смену состояния ордера
func (h *Hub) BroadcastOrderUpdate(order *models.Order) {
	h.Broadcast(NewOrderUpdateMessage(order))
}

// BroadcastBalanceUpdate отправляет обновление баланса актива
func (h *Hub) BroadcastBalanceUpdate(asset string, amount float64) {
	h.Broadcast(NewBalanceUpdateMessage(asset, amount))
}

// BroadcastNotification отправляет новое уведомление
func (h *Hub) BroadcastNotification(notif *models.Notification) {
	h.Broadcast(NewNotificationMessage(notif))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
