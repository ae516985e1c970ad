package integration

import (
	"fmt"
	"strings"
	"sync"

	"liquidity/internal/config"
)

// SupportedSystems - список поддерживаемых внешних систем
var SupportedSystems = []string{
	"kraken",
	"boltz",
	"clementine",
}

// NewHandler создает обработчик внешней системы по имени
func NewHandler(name string, cfg *config.Config) (ActionHandler, error) {
	name = strings.ToLower(name)

	switch name {
	case "kraken":
		return NewKraken(cfg.Integrations.Kraken), nil
	case "boltz":
		return NewBoltz(cfg.Integrations.Boltz), nil
	case "clementine":
		return NewClementine(cfg.Integrations.Clementine), nil
	default:
		return nil, fmt.Errorf("unsupported system: %s", name)
	}
}

// IsSupported проверяет, поддерживается ли система
func IsSupported(name string) bool {
	name = strings.ToLower(name)
	for _, supported := range SupportedSystems {
		if name == supported {
			return true
		}
	}
	return false
}

// Registry - каталог обработчиков внешних систем.
// Ядро движка резолвит обработчик по Action.System через Get;
// отсутствие обработчика - ошибка деплоя/конфигурации, не внешний сбой.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]ActionHandler
}

// NewRegistry создает пустой каталог
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]ActionHandler)}
}

// Register добавляет обработчик в каталог
func (r *Registry) Register(handler ActionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[strings.ToLower(handler.System())] = handler
}

// Get возвращает обработчик системы
func (r *Registry) Get(system string) (ActionHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[strings.ToLower(system)]
	return handler, ok
}

// Systems возвращает имена зарегистрированных систем
func (r *Registry) Systems() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	systems := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		systems = append(systems, name)
	}
	return systems
}

// Close закрывает все обработчики
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, handler := range r.handlers {
		if err := handler.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
