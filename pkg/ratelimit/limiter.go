package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter - Token Bucket ограничитель частоты запросов к внешним системам.
//
// Ведро наполняется с постоянной скоростью (rate токенов/сек), ёмкость
// ограничена burst. Каждый запрос потребляет один токен; при пустом ведре
// Wait блокирует, Allow отклоняет.
//
// Использование:
//
//	limiter := ratelimit.New(1, 5) // 1 req/sec, всплеск до 5
//	if err := limiter.Wait(ctx); err != nil { ... }
type Limiter struct {
	rate       float64 // токенов в секунду
	burst      float64 // ёмкость ведра
	tokens     float64
	lastRefill time.Time
	mu         sync.Mutex
}

// New создаёт ограничитель с заданной скоростью и ёмкостью.
// Некорректные значения заменяются безопасными дефолтами.
func New(rate, burst float64) *Limiter {
	if rate <= 0 {
		rate = 1
	}
	if burst < rate {
		burst = rate
	}
	return &Limiter{
		rate:       rate,
		burst:      burst,
		tokens:     burst, // начинаем с полным ведром
		lastRefill: time.Now(),
	}
}

// refill пополняет токены по прошедшему времени. Вызывается под lock'ом.
func (l *Limiter) refill() {
	now := time.Now()
	l.tokens += now.Sub(l.lastRefill).Seconds() * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.lastRefill = now
}

// Wait блокирует до получения токена или отмены контекста
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		l.refill()
		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		waitTime := time.Duration((1 - l.tokens) / l.rate * float64(time.Second))
		l.mu.Unlock()

		select {
		case <-time.After(waitTime):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Allow проверяет доступность токена без блокировки
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// Tokens возвращает текущее количество токенов. Для мониторинга.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	return l.tokens
}

// SetRate меняет скорость пополнения. Потокобезопасно.
func (l *Limiter) SetRate(rate float64) {
	if rate <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill() // фиксируем текущие токены перед сменой скорости
	l.rate = rate
	if l.burst < l.rate {
		l.burst = l.rate
	}
}
