package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"liquidity/internal/models"
)

// Ошибки репозитория правил
var (
	ErrRuleNotFound = errors.New("rule not found")
	ErrRuleExists   = errors.New("rule for asset already exists")
)

// RuleRepository - работа с таблицей liquidity_rule
type RuleRepository struct {
	db *sql.DB
}

// NewRuleRepository создает новый экземпляр репозитория
func NewRuleRepository(db *sql.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

const ruleColumns = `id, context, target_asset, status, minimal, optimal, maximal, reactivation_time, deficit_start_action_id, redundancy_start_action_id, send_notifications, created_at, updated_at`

func scanRule(row interface{ Scan(...interface{}) error }) (*models.Rule, error) {
	rule := &models.Rule{}
	err := row.Scan(
		&rule.ID,
		&rule.Context,
		&rule.TargetAsset,
		&rule.Status,
		&rule.Minimal,
		&rule.Optimal,
		&rule.Maximal,
		&rule.ReactivationTime,
		&rule.DeficitStartActionID,
		&rule.RedundancyStartActionID,
		&rule.SendNotifications,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// Create создает правило. На target_asset действует уникальный индекс:
// одно правило на актив.
func (r *RuleRepository) Create(rule *models.Rule) error {
	query := `
		INSERT INTO liquidity_rule (context, target_asset, status, minimal, optimal, maximal, reactivation_time, deficit_start_action_id, redundancy_start_action_id, send_notifications, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	if rule.Status == "" {
		rule.Status = models.RuleStatusInactive
	}
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = rule.CreatedAt

	err := r.db.QueryRow(
		query,
		rule.Context,
		rule.TargetAsset,
		rule.Status,
		rule.Minimal,
		rule.Optimal,
		rule.Maximal,
		rule.ReactivationTime,
		rule.DeficitStartActionID,
		rule.RedundancyStartActionID,
		rule.SendNotifications,
		rule.CreatedAt,
		rule.UpdatedAt,
	).Scan(&rule.ID)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrRuleExists
		}
		return err
	}

	return nil
}

// GetByID возвращает правило по ID
func (r *RuleRepository) GetByID(id int) (*models.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM liquidity_rule WHERE id = $1`

	rule, err := scanRule(r.db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}

	return rule, nil
}

// GetAll возвращает все правила
func (r *RuleRepository) GetAll() ([]*models.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM liquidity_rule ORDER BY id`

	return r.queryRules(query)
}

// GetActive возвращает правила, подлежащие периодической оценке
func (r *RuleRepository) GetActive() ([]*models.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM liquidity_rule WHERE status = $1 ORDER BY id`

	return r.queryRules(query, models.RuleStatusActive)
}

func (r *RuleRepository) queryRules(query string, args ...interface{}) ([]*models.Rule, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*models.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return rules, nil
}

// Update обновляет границы и настройки правила
func (r *RuleRepository) Update(rule *models.Rule) error {
	query := `
		UPDATE liquidity_rule
		SET context = $1, minimal = $2, optimal = $3, maximal = $4, reactivation_time = $5,
		    deficit_start_action_id = $6, redundancy_start_action_id = $7, send_notifications = $8, updated_at = $9
		WHERE id = $10`

	rule.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		query,
		rule.Context,
		rule.Minimal,
		rule.Optimal,
		rule.Maximal,
		rule.ReactivationTime,
		rule.DeficitStartActionID,
		rule.RedundancyStartActionID,
		rule.SendNotifications,
		rule.UpdatedAt,
		rule.ID,
	)
	if err != nil {
		return err
	}

	return checkAffected(result, ErrRuleNotFound)
}

// UpdateStatus переключает статус правила (активация/деактивация оператором)
func (r *RuleRepository) UpdateStatus(id int, status string) error {
	query := `UPDATE liquidity_rule SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.Exec(query, status, time.Now(), id)
	if err != nil {
		return err
	}

	return checkAffected(result, ErrRuleNotFound)
}

// ExistsByAsset проверяет наличие правила для актива
func (r *RuleRepository) ExistsByAsset(asset string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM liquidity_rule WHERE target_asset = $1)`

	var exists bool
	err := r.db.QueryRow(query, asset).Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}

// Count возвращает общее количество правил
func (r *RuleRepository) Count() (int, error) {
	query := `SELECT COUNT(*) FROM liquidity_rule`

	var count int
	err := r.db.QueryRow(query).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// checkAffected возвращает notFound если запрос не затронул ни одной строки
func checkAffected(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return notFound
	}

	return nil
}
