package repository

import (
	"database/sql"
	"errors"
	"time"

	"liquidity/internal/models"
)

// Ошибки репозитория балансов
var (
	ErrBalanceNotFound = errors.New("balance not found")
)

// BalanceRepository - работа с таблицей liquidity_balance.
// Хранит последнее известное показание баланса на актив.
type BalanceRepository struct {
	db *sql.DB
}

// NewBalanceRepository создает новый экземпляр репозитория
func NewBalanceRepository(db *sql.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// Upsert сохраняет показание баланса (одна строка на актив)
func (r *BalanceRepository) Upsert(asset string, amount float64) error {
	query := `
		INSERT INTO liquidity_balance (asset, amount, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (asset) DO UPDATE SET amount = $2, updated_at = $3`

	_, err := r.db.Exec(query, asset, amount, time.Now())
	return err
}

// GetByAsset возвращает последнее показание баланса актива
func (r *BalanceRepository) GetByAsset(asset string) (*models.Balance, error) {
	query := `SELECT id, asset, amount, updated_at FROM liquidity_balance WHERE asset = $1`

	balance := &models.Balance{}
	err := r.db.QueryRow(query, asset).Scan(
		&balance.ID,
		&balance.Asset,
		&balance.Amount,
		&balance.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBalanceNotFound
		}
		return nil, err
	}

	return balance, nil
}

// GetAll возвращает показания по всем активам
func (r *BalanceRepository) GetAll() ([]*models.Balance, error) {
	query := `SELECT id, asset, amount, updated_at FROM liquidity_balance ORDER BY asset`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []*models.Balance
	for rows.Next() {
		balance := &models.Balance{}
		err := rows.Scan(
			&balance.ID,
			&balance.Asset,
			&balance.Amount,
			&balance.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		balances = append(balances, balance)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return balances, nil
}
