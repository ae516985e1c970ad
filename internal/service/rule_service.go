package service

import (
	"errors"
	"fmt"
	"time"

	"liquidity/internal/models"
	"liquidity/internal/repository"

	"go.uber.org/zap"
)

// Ошибки сервиса правил
var (
	ErrRuleNotFound    = errors.New("rule not found")
	ErrRuleExists      = errors.New("rule for asset already exists")
	ErrInvalidBounds   = errors.New("invalid rule bounds")
	ErrInvalidStatus   = errors.New("invalid rule status")
	ErrPipelineRunning = errors.New("rule has an active pipeline")
)

// Notifier - публикация уведомлений оператору
type Notifier interface {
	Publish(notif *models.Notification)
}

// RuleService - управление правилами ликвидности.
// Правило привязано к одному активу; границы minimal <= optimal <= maximal
// проверяются при каждом создании и изменении. Стартовые действия
// проверяются на существование и целостность цепочки.
type RuleService struct {
	ruleRepo     RuleRepositoryInterface
	pipelineRepo PipelineRepositoryInterface
	orderRepo    OrderRepositoryInterface
	actions      *ActionService
	notifier     Notifier
	log          *zap.Logger
}

// NewRuleService создает новый экземпляр сервиса правил
func NewRuleService(
	ruleRepo RuleRepositoryInterface,
	pipelineRepo PipelineRepositoryInterface,
	orderRepo OrderRepositoryInterface,
	actions *ActionService,
	notifier Notifier,
	log *zap.Logger,
) *RuleService {
	return &RuleService{
		ruleRepo:     ruleRepo,
		pipelineRepo: pipelineRepo,
		orderRepo:    orderRepo,
		actions:      actions,
		notifier:     notifier,
		log:          log,
	}
}

// CreateRuleRequest - параметры создания правила
type CreateRuleRequest struct {
	Context                 string  `json:"context"`
	TargetAsset             string  `json:"target_asset"`
	Minimal                 float64 `json:"minimal"`
	Optimal                 float64 `json:"optimal"`
	Maximal                 float64 `json:"maximal"`
	ReactivationTime        int     `json:"reactivation_time"`
	DeficitStartActionID    *int    `json:"deficit_start_action_id,omitempty"`
	RedundancyStartActionID *int    `json:"redundancy_start_action_id,omitempty"`
	SendNotifications       bool    `json:"send_notifications"`
}

// CreateRule создает правило для актива.
// На один актив допускается только одно правило. Правило создается
// неактивным: оператор включает его отдельным вызовом после проверки.
func (s *RuleService) CreateRule(req *CreateRuleRequest) (*models.Rule, error) {
	if req.TargetAsset == "" {
		return nil, fmt.Errorf("%w: target_asset is required", ErrInvalidBounds)
	}

	rule := &models.Rule{
		Context:                 req.Context,
		TargetAsset:             req.TargetAsset,
		Status:                  models.RuleStatusInactive,
		Minimal:                 req.Minimal,
		Optimal:                 req.Optimal,
		Maximal:                 req.Maximal,
		ReactivationTime:        req.ReactivationTime,
		DeficitStartActionID:    req.DeficitStartActionID,
		RedundancyStartActionID: req.RedundancyStartActionID,
		SendNotifications:       req.SendNotifications,
	}

	if err := rule.ValidateBounds(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBounds, err)
	}
	if rule.ReactivationTime < 0 {
		return nil, fmt.Errorf("%w: reactivation_time cannot be negative", ErrInvalidBounds)
	}

	if err := s.validateStartActions(rule); err != nil {
		return nil, err
	}

	exists, err := s.ruleRepo.ExistsByAsset(req.TargetAsset)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrRuleExists, req.TargetAsset)
	}

	if err := s.ruleRepo.Create(rule); err != nil {
		return nil, err
	}

	s.log.Info("rule created",
		zap.Int("rule_id", rule.ID),
		zap.String("asset", rule.TargetAsset),
		zap.Float64("minimal", rule.Minimal),
		zap.Float64("optimal", rule.Optimal),
		zap.Float64("maximal", rule.Maximal),
	)

	return rule, nil
}

// UpdateRuleRequest - параметры изменения правила.
// Актив правила не меняется: правило на другой актив - другое правило.
type UpdateRuleRequest struct {
	Context                 *string  `json:"context,omitempty"`
	Minimal                 *float64 `json:"minimal,omitempty"`
	Optimal                 *float64 `json:"optimal,omitempty"`
	Maximal                 *float64 `json:"maximal,omitempty"`
	ReactivationTime        *int     `json:"reactivation_time,omitempty"`
	DeficitStartActionID    *int     `json:"deficit_start_action_id,omitempty"`
	RedundancyStartActionID *int     `json:"redundancy_start_action_id,omitempty"`
	SendNotifications       *bool    `json:"send_notifications,omitempty"`
}

// UpdateRule изменяет правило. Изменение запрещено, пока по правилу
// выполняется pipeline: границы и стартовые действия активного цикла
// не должны меняться под ним.
func (s *RuleService) UpdateRule(id int, req *UpdateRuleRequest) (*models.Rule, error) {
	rule, err := s.GetRule(id)
	if err != nil {
		return nil, err
	}

	if err := s.ensureNoActivePipeline(id); err != nil {
		return nil, err
	}

	if req.Context != nil {
		rule.Context = *req.Context
	}
	if req.Minimal != nil {
		rule.Minimal = *req.Minimal
	}
	if req.Optimal != nil {
		rule.Optimal = *req.Optimal
	}
	if req.Maximal != nil {
		rule.Maximal = *req.Maximal
	}
	if req.ReactivationTime != nil {
		rule.ReactivationTime = *req.ReactivationTime
	}
	if req.DeficitStartActionID != nil {
		rule.DeficitStartActionID = req.DeficitStartActionID
	}
	if req.RedundancyStartActionID != nil {
		rule.RedundancyStartActionID = req.RedundancyStartActionID
	}
	if req.SendNotifications != nil {
		rule.SendNotifications = *req.SendNotifications
	}

	if err := rule.ValidateBounds(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBounds, err)
	}
	if rule.ReactivationTime < 0 {
		return nil, fmt.Errorf("%w: reactivation_time cannot be negative", ErrInvalidBounds)
	}
	if err := s.validateStartActions(rule); err != nil {
		return nil, err
	}

	if err := s.ruleRepo.Update(rule); err != nil {
		if errors.Is(err, repository.ErrRuleNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}

	s.log.Info("rule updated", zap.Int("rule_id", rule.ID), zap.String("asset", rule.TargetAsset))
	return rule, nil
}

// GetRule возвращает правило по ID
func (s *RuleService) GetRule(id int) (*models.Rule, error) {
	rule, err := s.ruleRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrRuleNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return rule, nil
}

// GetAllRules возвращает все правила
func (s *RuleService) GetAllRules() ([]*models.Rule, error) {
	return s.ruleRepo.GetAll()
}

// ActivateRule включает правило в периодическую оценку
func (s *RuleService) ActivateRule(id int) error {
	return s.setStatus(id, models.RuleStatusActive)
}

// DeactivateRule исключает правило из оценки. Активный pipeline
// правила продолжает выполняться до завершения - выключается только
// запуск новых.
func (s *RuleService) DeactivateRule(id int) error {
	if err := s.setStatus(id, models.RuleStatusInactive); err != nil {
		return err
	}

	rule, err := s.GetRule(id)
	if err != nil {
		return err
	}
	if s.notifier != nil && rule.SendNotifications {
		s.notifier.Publish(&models.Notification{
			Timestamp: time.Now(),
			Type:      models.NotificationTypeRuleDeactivated,
			Severity:  models.SeverityInfo,
			RuleID:    &rule.ID,
			Message:   fmt.Sprintf("rule for %s deactivated by operator", rule.TargetAsset),
		})
	}
	return nil
}

// GetRulePipelines возвращает историю pipeline по правилу (новые первыми)
func (s *RuleService) GetRulePipelines(ruleID int, limit int) ([]*models.Pipeline, error) {
	if _, err := s.GetRule(ruleID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.pipelineRepo.GetByRuleID(ruleID, limit)
}

// GetPipeline возвращает pipeline по ID
func (s *RuleService) GetPipeline(id int) (*models.Pipeline, error) {
	pipeline, err := s.pipelineRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrPipelineNotFound) {
			return nil, repository.ErrPipelineNotFound
		}
		return nil, err
	}
	return pipeline, nil
}

// GetActivePipelines возвращает незавершенные pipeline всех правил
func (s *RuleService) GetActivePipelines() ([]*models.Pipeline, error) {
	return s.pipelineRepo.GetActive()
}

// GetPipelineOrders возвращает ордера pipeline в порядке создания
func (s *RuleService) GetPipelineOrders(pipelineID int) ([]*models.Order, error) {
	if _, err := s.GetPipeline(pipelineID); err != nil {
		return nil, err
	}
	return s.orderRepo.GetByPipelineID(pipelineID)
}

func (s *RuleService) setStatus(id int, status string) error {
	if status != models.RuleStatusActive && status != models.RuleStatusInactive {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	if err := s.ruleRepo.UpdateStatus(id, status); err != nil {
		if errors.Is(err, repository.ErrRuleNotFound) {
			return ErrRuleNotFound
		}
		return err
	}
	s.log.Info("rule status changed", zap.Int("rule_id", id), zap.String("status", status))
	return nil
}

// validateStartActions проверяет, что стартовые действия существуют
// и их цепочки корректны. Правило без стартовых действий допустимо -
// оно только наблюдает за балансом.
func (s *RuleService) validateStartActions(rule *models.Rule) error {
	for _, startID := range []*int{rule.DeficitStartActionID, rule.RedundancyStartActionID} {
		if startID == nil {
			continue
		}
		if err := s.actions.ValidateChain(*startID); err != nil {
			return err
		}
	}
	return nil
}

func (s *RuleService) ensureNoActivePipeline(ruleID int) error {
	_, err := s.pipelineRepo.GetActiveByRuleID(ruleID)
	if err == nil {
		return ErrPipelineRunning
	}
	if errors.Is(err, repository.ErrPipelineNotFound) {
		return nil
	}
	return err
}
