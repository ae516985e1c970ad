package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"liquidity/internal/models"
	"liquidity/internal/repository"

	"go.uber.org/zap"
)

// ErrBalanceUnknown возвращается, когда у актива ещё нет ни одного показания
var ErrBalanceUnknown = errors.New("balance is not known yet")

// BalanceService агрегирует показания провайдеров (биржи, блокчейн-ноды)
// в кэш операционных балансов. Движок читает только кэш: решение по
// правилу никогда не ждёт сетевого вызова к бирже.
type BalanceService struct {
	balanceRepo BalanceRepositoryInterface
	providers   []BalanceProvider
	log         *zap.Logger
	timeout     time.Duration

	mu        sync.RWMutex
	lastError map[string]error // последняя ошибка по провайдеру
}

// NewBalanceService создает новый экземпляр сервиса балансов
func NewBalanceService(balanceRepo BalanceRepositoryInterface, providers []BalanceProvider, timeout time.Duration, log *zap.Logger) *BalanceService {
	return &BalanceService{
		balanceRepo: balanceRepo,
		providers:   providers,
		log:         log,
		timeout:     timeout,
		lastError:   make(map[string]error),
	}
}

// Refresh опрашивает всех провайдеров и обновляет кэш.
// Ошибка одного провайдера не мешает остальным: его активы просто
// сохраняют прежнее показание и постепенно устаревают.
func (s *BalanceService) Refresh(ctx context.Context) {
	for _, provider := range s.providers {
		s.refreshProvider(ctx, provider)
	}
}

// Run периодически обновляет кэш балансов до отмены контекста
func (s *BalanceService) Run(ctx context.Context, interval time.Duration) {
	s.log.Info("balance refresh loop started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("balance refresh loop stopped")
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Current возвращает последнее известное показание баланса актива.
// Возраст показания оценивает вызывающая сторона.
func (s *BalanceService) Current(ctx context.Context, asset string) (float64, time.Time, error) {
	balance, err := s.balanceRepo.GetByAsset(asset)
	if err != nil {
		if errors.Is(err, repository.ErrBalanceNotFound) {
			return 0, time.Time{}, fmt.Errorf("%w: %s", ErrBalanceUnknown, asset)
		}
		return 0, time.Time{}, err
	}
	return balance.Amount, balance.UpdatedAt, nil
}

// GetAll возвращает все кэшированные балансы
func (s *BalanceService) GetAll() ([]*models.Balance, error) {
	return s.balanceRepo.GetAll()
}

// SetBalance записывает показание вручную. Операторский инструмент
// для активов без провайдера (холодные кошельки, внешние счета).
func (s *BalanceService) SetBalance(asset string, amount float64) error {
	if asset == "" {
		return errors.New("asset is required")
	}
	if amount < 0 {
		return fmt.Errorf("balance cannot be negative: %v", amount)
	}
	if err := s.balanceRepo.Upsert(asset, amount); err != nil {
		return err
	}
	s.log.Info("balance set manually", zap.String("asset", asset), zap.Float64("amount", amount))
	return nil
}

// ProviderErrors возвращает последние ошибки провайдеров для диагностики
func (s *BalanceService) ProviderErrors() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.lastError))
	for system, err := range s.lastError {
		if err != nil {
			out[system] = err.Error()
		}
	}
	return out
}

func (s *BalanceService) refreshProvider(ctx context.Context, provider BalanceProvider) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	balances, err := provider.Balances(callCtx)

	s.mu.Lock()
	s.lastError[provider.System()] = err
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("balance provider failed",
			zap.String("system", provider.System()),
			zap.Error(err),
		)
		return
	}

	for asset, amount := range balances {
		if err := s.balanceRepo.Upsert(asset, amount); err != nil {
			s.log.Error("failed to cache balance",
				zap.String("system", provider.System()),
				zap.String("asset", asset),
				zap.Error(err),
			)
			continue
		}
		s.log.Debug("balance refreshed",
			zap.String("system", provider.System()),
			zap.String("asset", asset),
			zap.Float64("amount", amount),
		)
	}
}
