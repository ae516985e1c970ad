package models

import "time"

// Balance - последнее известное значение операционного баланса актива.
// Кэш показаний провайдеров (биржи, блокчейн-ноды), обновляется движком
// при каждом успешном чтении.
type Balance struct {
	ID        int       `json:"id" db:"id"`
	Asset     string    `json:"asset" db:"asset"`
	Amount    float64   `json:"amount" db:"amount"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Stale возвращает true если показание старше maxAge
func (b *Balance) Stale(maxAge time.Duration, now time.Time) bool {
	return now.Sub(b.UpdatedAt) > maxAge
}
