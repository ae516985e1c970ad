package repository

import (
	"database/sql"
	"errors"
	"time"

	"liquidity/internal/models"
)

// Ошибки репозитория действий
var (
	ErrActionNotFound = errors.New("action not found")
)

// ActionRepository - работа с таблицей liquidity_action.
// Действия неизменяемы после создания: правки порождают новые строки,
// поэтому здесь нет Update/Delete.
type ActionRepository struct {
	db *sql.DB
}

// NewActionRepository создает новый экземпляр репозитория
func NewActionRepository(db *sql.DB) *ActionRepository {
	return &ActionRepository{db: db}
}

const actionColumns = `id, system, command, params, tag, on_success_id, on_fail_id, created_at, updated_at`

func scanAction(row interface{ Scan(...interface{}) error }) (*models.Action, error) {
	action := &models.Action{}
	var params sql.NullString
	err := row.Scan(
		&action.ID,
		&action.System,
		&action.Command,
		&params,
		&action.Tag,
		&action.OnSuccessID,
		&action.OnFailID,
		&action.CreatedAt,
		&action.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := action.SetParamsJSON(params.String); err != nil {
		return nil, err
	}
	return action, nil
}

// Create создает действие
func (r *ActionRepository) Create(action *models.Action) error {
	query := `
		INSERT INTO liquidity_action (system, command, params, tag, on_success_id, on_fail_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	params, err := action.ParamsJSON()
	if err != nil {
		return err
	}

	action.CreatedAt = time.Now()
	action.UpdatedAt = action.CreatedAt

	return r.db.QueryRow(
		query,
		action.System,
		action.Command,
		nullString(params),
		action.Tag,
		action.OnSuccessID,
		action.OnFailID,
		action.CreatedAt,
		action.UpdatedAt,
	).Scan(&action.ID)
}

// GetByID возвращает действие по ID
func (r *ActionRepository) GetByID(id int) (*models.Action, error) {
	query := `SELECT ` + actionColumns + ` FROM liquidity_action WHERE id = $1`

	action, err := scanAction(r.db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrActionNotFound
		}
		return nil, err
	}

	return action, nil
}

// GetAll возвращает все действия
func (r *ActionRepository) GetAll() ([]*models.Action, error) {
	query := `SELECT ` + actionColumns + ` FROM liquidity_action ORDER BY id`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []*models.Action
	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return actions, nil
}

// FindMatching ищет существующее действие с идентичным содержимым.
// Используется сервисом правил для дедупликации при регистрации дерева
// действий: идентичные шаги переиспользуются, а не дублируются.
func (r *ActionRepository) FindMatching(system, command, params string, onSuccessID, onFailID *int) (*models.Action, error) {
	query := `
		SELECT ` + actionColumns + `
		FROM liquidity_action
		WHERE system = $1 AND command = $2
		  AND params IS NOT DISTINCT FROM $3
		  AND on_success_id IS NOT DISTINCT FROM $4
		  AND on_fail_id IS NOT DISTINCT FROM $5
		LIMIT 1`

	action, err := scanAction(r.db.QueryRow(query, system, command, nullString(params), onSuccessID, onFailID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrActionNotFound
		}
		return nil, err
	}

	return action, nil
}

// nullString преобразует пустую строку в NULL
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
