package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"liquidity/internal/models"
)

// Ошибки репозитория pipeline
var (
	ErrPipelineNotFound = errors.New("pipeline not found")
	// ErrPipelineConflict - для правила уже существует активный pipeline.
	// Ожидаемая ситуация (admission control), не сбой.
	ErrPipelineConflict = errors.New("active pipeline already exists for rule")
)

// PipelineRepository - работа с таблицей liquidity_pipeline
type PipelineRepository struct {
	db *sql.DB
}

// NewPipelineRepository создает новый экземпляр репозитория
func NewPipelineRepository(db *sql.DB) *PipelineRepository {
	return &PipelineRepository{db: db}
}

const pipelineColumns = `id, rule_id, type, status, target_amount, orders_processed, current_action_id, created_at, updated_at`

func scanPipeline(row interface{ Scan(...interface{}) error }) (*models.Pipeline, error) {
	p := &models.Pipeline{}
	err := row.Scan(
		&p.ID,
		&p.RuleID,
		&p.Type,
		&p.Status,
		&p.TargetAmount,
		&p.OrdersProcessed,
		&p.CurrentActionID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create атомарно создает pipeline при отсутствии активного pipeline
// для правила: INSERT ... WHERE NOT EXISTS под тем же условием, что и
// частичный уникальный индекс в схеме. Индекс - страховка между процессами,
// условная вставка - обычный путь.
//
// Возвращает ErrPipelineConflict при нарушении инварианта.
func (r *PipelineRepository) Create(pipeline *models.Pipeline) error {
	query := `
		INSERT INTO liquidity_pipeline (rule_id, type, status, target_amount, orders_processed, current_action_id, created_at, updated_at)
		SELECT $1, $2, $3, $4, 0, $5, $6, $6
		WHERE NOT EXISTS (
			SELECT 1 FROM liquidity_pipeline
			WHERE rule_id = $1 AND status IN ('created', 'in_progress')
		)
		RETURNING id`

	if pipeline.Status == "" {
		pipeline.Status = models.PipelineStatusCreated
	}
	pipeline.CreatedAt = time.Now()
	pipeline.UpdatedAt = pipeline.CreatedAt

	err := r.db.QueryRow(
		query,
		pipeline.RuleID,
		pipeline.Type,
		pipeline.Status,
		pipeline.TargetAmount,
		pipeline.CurrentActionID,
		pipeline.CreatedAt,
	).Scan(&pipeline.ID)

	if err != nil {
		// Условие WHERE NOT EXISTS не выполнилось - вставка не произошла
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPipelineConflict
		}
		// Гонка двух процессов: вставку отклонил частичный уникальный индекс
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrPipelineConflict
		}
		return err
	}

	return nil
}

// GetByID возвращает pipeline по ID
func (r *PipelineRepository) GetByID(id int) (*models.Pipeline, error) {
	query := `SELECT ` + pipelineColumns + ` FROM liquidity_pipeline WHERE id = $1`

	pipeline, err := scanPipeline(r.db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPipelineNotFound
		}
		return nil, err
	}

	return pipeline, nil
}

// GetActiveByRuleID возвращает активный pipeline правила (или ErrPipelineNotFound)
func (r *PipelineRepository) GetActiveByRuleID(ruleID int) (*models.Pipeline, error) {
	query := `
		SELECT ` + pipelineColumns + `
		FROM liquidity_pipeline
		WHERE rule_id = $1 AND status IN ('created', 'in_progress')
		LIMIT 1`

	pipeline, err := scanPipeline(r.db.QueryRow(query, ruleID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPipelineNotFound
		}
		return nil, err
	}

	return pipeline, nil
}

// GetLastTerminalByRuleID возвращает последний завершённый pipeline правила.
// Используется для расчёта cool-down (reactivation_time).
func (r *PipelineRepository) GetLastTerminalByRuleID(ruleID int) (*models.Pipeline, error) {
	query := `
		SELECT ` + pipelineColumns + `
		FROM liquidity_pipeline
		WHERE rule_id = $1 AND status IN ('completed', 'failed')
		ORDER BY updated_at DESC
		LIMIT 1`

	pipeline, err := scanPipeline(r.db.QueryRow(query, ruleID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPipelineNotFound
		}
		return nil, err
	}

	return pipeline, nil
}

// GetByRuleID возвращает все pipeline правила, новые первыми
func (r *PipelineRepository) GetByRuleID(ruleID int, limit int) ([]*models.Pipeline, error) {
	query := `
		SELECT ` + pipelineColumns + `
		FROM liquidity_pipeline
		WHERE rule_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	return r.queryPipelines(query, ruleID, limit)
}

// GetActive возвращает все активные pipeline
func (r *PipelineRepository) GetActive() ([]*models.Pipeline, error) {
	query := `
		SELECT ` + pipelineColumns + `
		FROM liquidity_pipeline
		WHERE status IN ('created', 'in_progress')
		ORDER BY id`

	return r.queryPipelines(query)
}

func (r *PipelineRepository) queryPipelines(query string, args ...interface{}) ([]*models.Pipeline, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pipelines []*models.Pipeline
	for rows.Next() {
		pipeline, err := scanPipeline(rows)
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, pipeline)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return pipelines, nil
}

// UpdateStatus обновляет статус pipeline
func (r *PipelineRepository) UpdateStatus(id int, status string) error {
	query := `UPDATE liquidity_pipeline SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.Exec(query, status, time.Now(), id)
	if err != nil {
		return err
	}

	return checkAffected(result, ErrPipelineNotFound)
}

// SetCurrentAction фиксирует последнее исполненное действие и
// инкрементирует счётчик обработанных ордеров
func (r *PipelineRepository) SetCurrentAction(id int, actionID int) error {
	query := `
		UPDATE liquidity_pipeline
		SET current_action_id = $1, orders_processed = orders_processed + 1, updated_at = $2
		WHERE id = $3`

	result, err := r.db.Exec(query, actionID, time.Now(), id)
	if err != nil {
		return err
	}

	return checkAffected(result, ErrPipelineNotFound)
}
