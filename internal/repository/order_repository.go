package repository

import (
	"database/sql"
	"errors"
	"time"

	"liquidity/internal/models"
)

// Ошибки репозитория ордеров
var (
	ErrOrderNotFound = errors.New("order not found")
)

// OrderRepository - работа с таблицей liquidity_order.
// Ордера никогда не удаляются: таблица - audit trail всех внешних операций.
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository создает новый экземпляр репозитория
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, pipeline_id, action_id, previous_order_id, type, context, correlation_id, chain, reference_asset, reference_amount, input_amount, input_asset, output_asset, swap_asset, swap_amount, strategy, tx_id, fee_amount, fee_asset, is_ready, is_complete, error_message, created_at, updated_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (*models.Order, error) {
	o := &models.Order{}
	err := row.Scan(
		&o.ID,
		&o.PipelineID,
		&o.ActionID,
		&o.PreviousOrderID,
		&o.Type,
		&o.Context,
		&o.CorrelationID,
		&o.Chain,
		&o.ReferenceAsset,
		&o.ReferenceAmount,
		&o.InputAmount,
		&o.InputAsset,
		&o.OutputAsset,
		&o.SwapAsset,
		&o.SwapAmount,
		&o.Strategy,
		&o.TxID,
		&o.FeeAmount,
		&o.FeeAsset,
		&o.IsReady,
		&o.IsComplete,
		&o.ErrorMessage,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Create создает запись об ордере
func (r *OrderRepository) Create(order *models.Order) error {
	query := `
		INSERT INTO liquidity_order (pipeline_id, action_id, previous_order_id, type, context, correlation_id, chain, reference_asset, reference_amount, input_amount, input_asset, output_asset, swap_asset, swap_amount, strategy, tx_id, fee_amount, fee_asset, is_ready, is_complete, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $22)
		RETURNING id`

	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt

	return r.db.QueryRow(
		query,
		order.PipelineID,
		order.ActionID,
		order.PreviousOrderID,
		order.Type,
		order.Context,
		order.CorrelationID,
		order.Chain,
		order.ReferenceAsset,
		order.ReferenceAmount,
		order.InputAmount,
		order.InputAsset,
		order.OutputAsset,
		order.SwapAsset,
		order.SwapAmount,
		order.Strategy,
		order.TxID,
		order.FeeAmount,
		order.FeeAsset,
		order.IsReady,
		order.IsComplete,
		order.ErrorMessage,
		order.CreatedAt,
	).Scan(&order.ID)
}

// GetByID возвращает ордер по ID
func (r *OrderRepository) GetByID(id int) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM liquidity_order WHERE id = $1`

	order, err := scanOrder(r.db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	return order, nil
}

// GetLastByPipelineID возвращает последний (текущий) ордер pipeline
func (r *OrderRepository) GetLastByPipelineID(pipelineID int) (*models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM liquidity_order
		WHERE pipeline_id = $1
		ORDER BY id DESC
		LIMIT 1`

	order, err := scanOrder(r.db.QueryRow(query, pipelineID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	return order, nil
}

// GetByPipelineID возвращает все ордера pipeline в порядке исполнения
func (r *OrderRepository) GetByPipelineID(pipelineID int) ([]*models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM liquidity_order
		WHERE pipeline_id = $1
		ORDER BY id`

	return r.queryOrders(query, pipelineID)
}

// GetIncomplete возвращает все незавершённые ордера с корреляционным ключом.
// Используется фоновым опросом как страховочная выборка.
func (r *OrderRepository) GetIncomplete() ([]*models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM liquidity_order
		WHERE is_complete = FALSE AND correlation_id <> ''
		ORDER BY id`

	return r.queryOrders(query)
}

func (r *OrderRepository) queryOrders(query string, args ...interface{}) ([]*models.Order, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

// MarkReady отмечает подтверждение суммы без окончательного расчёта.
// Ссылка на транзакцию уже известна на этой стадии и сохраняется сразу.
func (r *OrderRepository) MarkReady(id int, txID string) error {
	query := `UPDATE liquidity_order SET is_ready = TRUE, tx_id = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.Exec(query, txID, time.Now(), id)
	if err != nil {
		return err
	}

	return checkAffected(result, ErrOrderNotFound)
}

// Complete отмечает успешное завершение ордера
func (r *OrderRepository) Complete(id int, txID string, feeAmount float64, feeAsset string) error {
	query := `
		UPDATE liquidity_order
		SET is_ready = TRUE, is_complete = TRUE, tx_id = $1, fee_amount = $2, fee_asset = $3, updated_at = $4
		WHERE id = $5`

	result, err := r.db.Exec(query, txID, feeAmount, feeAsset, time.Now(), id)
	if err != nil {
		return err
	}

	return checkAffected(result, ErrOrderNotFound)
}

// Fail отмечает завершение ордера с ошибкой
func (r *OrderRepository) Fail(id int, errorMessage string) error {
	query := `
		UPDATE liquidity_order
		SET is_complete = TRUE, error_message = $1, updated_at = $2
		WHERE id = $3`

	result, err := r.db.Exec(query, errorMessage, time.Now(), id)
	if err != nil {
		return err
	}

	return checkAffected(result, ErrOrderNotFound)
}

// CountByPipelineID возвращает количество ордеров pipeline
func (r *OrderRepository) CountByPipelineID(pipelineID int) (int, error) {
	query := `SELECT COUNT(*) FROM liquidity_order WHERE pipeline_id = $1`

	var count int
	err := r.db.QueryRow(query, pipelineID).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}
