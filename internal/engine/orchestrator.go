package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"liquidity/internal/models"
	"liquidity/internal/repository"
)

// Orchestrator управляет жизненным циклом pipeline:
// создание с контролем допуска (на правило максимум один активный
// pipeline) и пошаговое продвижение по цепочке действий.
type Orchestrator struct {
	rules     RuleRepository
	pipelines PipelineRepository
	orders    OrderRepository
	actions   ActionRepository
	executor  *Executor
	notifier  Notifier
	hub       Hub
	log       *zap.Logger
}

// NewOrchestrator создает Orchestrator
func NewOrchestrator(rules RuleRepository, pipelines PipelineRepository, orders OrderRepository, actions ActionRepository, executor *Executor, notifier Notifier, hub Hub, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		rules:     rules,
		pipelines: pipelines,
		orders:    orders,
		actions:   actions,
		executor:  executor,
		notifier:  notifier,
		hub:       hub,
		log:       log,
	}
}

// Start создаёт pipeline для правила по вынесенному решению.
// Возвращает repository.ErrPipelineConflict, если у правила уже есть
// активный pipeline (вставка с условием + частичный уникальный индекс).
// Правило без стартового действия в нужном направлении пропускается.
func (o *Orchestrator) Start(rule *models.Rule, decision Decision) (*models.Pipeline, error) {
	startActionID := rule.StartActionID(decision.PipelineType)
	if startActionID == nil {
		o.log.Debug("rule has no start action for direction",
			zap.Int("rule_id", rule.ID),
			zap.String("type", decision.PipelineType))
		return nil, nil
	}

	pipeline := &models.Pipeline{
		RuleID:          rule.ID,
		Type:            decision.PipelineType,
		Status:          models.PipelineStatusCreated,
		TargetAmount:    decision.TargetAmount,
		CurrentActionID: startActionID,
	}

	if err := o.pipelines.Create(pipeline); err != nil {
		return nil, err
	}

	PipelinesStarted.WithLabelValues(pipeline.Type).Inc()
	o.log.Info("pipeline started",
		zap.Int("pipeline_id", pipeline.ID),
		zap.Int("rule_id", rule.ID),
		zap.String("type", pipeline.Type),
		zap.Float64("target_amount", pipeline.TargetAmount))

	o.notify(rule, pipeline, models.NotificationTypePipelineStarted, models.SeverityInfo,
		fmt.Sprintf("%s pipeline started for %s, target %.8f", pipeline.Type, rule.TargetAsset, pipeline.TargetAmount))
	if o.hub != nil {
		o.hub.BroadcastPipelineUpdate(pipeline)
	}

	return pipeline, nil
}

// Advance продвигает pipeline на один шаг: запускает первое действие,
// либо реагирует на терминальный исход последнего ордера. Ордер в
// полёте оставляет pipeline без изменений до следующего тика.
func (o *Orchestrator) Advance(ctx context.Context, pipeline *models.Pipeline) error {
	if pipeline.IsTerminal() {
		return nil
	}

	rule, err := o.rules.GetByID(pipeline.RuleID)
	if err != nil {
		return fmt.Errorf("load rule %d: %w", pipeline.RuleID, err)
	}

	lastOrder, err := o.orders.GetLastByPipelineID(pipeline.ID)
	if err != nil && !errors.Is(err, repository.ErrOrderNotFound) {
		return fmt.Errorf("load last order: %w", err)
	}

	// Первый шаг: переход created -> in_progress и запуск стартового действия
	if lastOrder == nil {
		if pipeline.CurrentActionID == nil {
			o.failForConfig(rule, pipeline, "pipeline has no current action")
			return nil
		}
		if pipeline.Status == models.PipelineStatusCreated {
			if err := o.transition(pipeline, models.PipelineStatusInProgress); err != nil {
				return err
			}
		}
		return o.launch(ctx, rule, pipeline, *pipeline.CurrentActionID, nil)
	}

	if !lastOrder.IsComplete {
		return nil
	}

	action, err := o.actions.GetByID(lastOrder.ActionID)
	if err != nil {
		return fmt.Errorf("load action %d: %w", lastOrder.ActionID, err)
	}

	if lastOrder.Succeeded() {
		if action.OnSuccessID == nil {
			return o.finish(rule, pipeline, models.PipelineStatusCompleted)
		}
		return o.launch(ctx, rule, pipeline, *action.OnSuccessID, &lastOrder.ID)
	}

	// Ордер провален: уведомляем и идём по fallback-цепочке
	o.notify(rule, pipeline, models.NotificationTypeOrderFailed, models.SeverityWarn,
		fmt.Sprintf("order %d (%s/%s) failed: %s", lastOrder.ID, action.System, action.Command, lastOrder.ErrorMessage))

	if action.OnFailID == nil {
		return o.finish(rule, pipeline, models.PipelineStatusFailed)
	}
	return o.launch(ctx, rule, pipeline, *action.OnFailID, &lastOrder.ID)
}

// launch выполняет действие и делает его текущим для pipeline.
// Ошибка конфигурации (неизвестная система или команда) валит pipeline.
func (o *Orchestrator) launch(ctx context.Context, rule *models.Rule, pipeline *models.Pipeline, actionID int, previousOrderID *int) error {
	action, err := o.actions.GetByID(actionID)
	if err != nil {
		if errors.Is(err, repository.ErrActionNotFound) {
			o.failForConfig(rule, pipeline, fmt.Sprintf("action %d not found", actionID))
			return nil
		}
		return fmt.Errorf("load action %d: %w", actionID, err)
	}

	if err := o.pipelines.SetCurrentAction(pipeline.ID, action.ID); err != nil {
		return fmt.Errorf("set current action: %w", err)
	}
	pipeline.CurrentActionID = &action.ID
	pipeline.OrdersProcessed++

	order, err := o.executor.Launch(ctx, rule, pipeline, action, pipeline.TargetAmount, previousOrderID)
	if err != nil {
		if errors.Is(err, ErrUnknownSystem) || errors.Is(err, ErrUnknownCommand) {
			o.failForConfig(rule, pipeline, err.Error())
			return nil
		}
		return err
	}

	o.log.Info("order launched",
		zap.Int("pipeline_id", pipeline.ID),
		zap.Int("order_id", order.ID),
		zap.String("system", action.System),
		zap.String("command", action.Command),
		zap.Float64("amount", pipeline.TargetAmount))
	if o.hub != nil {
		o.hub.BroadcastOrderUpdate(order)
	}

	return nil
}

// finish переводит pipeline в терминальный статус
func (o *Orchestrator) finish(rule *models.Rule, pipeline *models.Pipeline, status string) error {
	if err := o.transition(pipeline, status); err != nil {
		return err
	}

	PipelinesFinished.WithLabelValues(pipeline.Type, status).Inc()

	if status == models.PipelineStatusCompleted {
		o.log.Info("pipeline completed",
			zap.Int("pipeline_id", pipeline.ID),
			zap.Int("rule_id", pipeline.RuleID),
			zap.Int("orders_processed", pipeline.OrdersProcessed))
		o.notify(rule, pipeline, models.NotificationTypePipelineCompleted, models.SeverityInfo,
			fmt.Sprintf("%s pipeline for %s completed after %d order(s)", pipeline.Type, rule.TargetAsset, pipeline.OrdersProcessed))
	} else {
		o.log.Warn("pipeline failed",
			zap.Int("pipeline_id", pipeline.ID),
			zap.Int("rule_id", pipeline.RuleID),
			zap.Int("orders_processed", pipeline.OrdersProcessed))
		o.notify(rule, pipeline, models.NotificationTypePipelineFailed, models.SeverityError,
			fmt.Sprintf("%s pipeline for %s failed, fallback chain exhausted", pipeline.Type, rule.TargetAsset))
	}

	if o.hub != nil {
		o.hub.BroadcastPipelineUpdate(pipeline)
	}
	return nil
}

// failForConfig валит pipeline из-за ошибки конфигурации.
// CONFIG_ERROR шлётся всегда, независимо от настроек правила.
func (o *Orchestrator) failForConfig(rule *models.Rule, pipeline *models.Pipeline, reason string) {
	o.log.Error("pipeline configuration error",
		zap.Int("pipeline_id", pipeline.ID),
		zap.Int("rule_id", pipeline.RuleID),
		zap.String("reason", reason))

	if o.notifier != nil {
		ruleID, pipelineID := pipeline.RuleID, pipeline.ID
		o.notifier.Publish(&models.Notification{
			Type:       models.NotificationTypeConfigError,
			Severity:   models.SeverityError,
			RuleID:     &ruleID,
			PipelineID: &pipelineID,
			Message:    reason,
		})
	}

	if err := o.finish(rule, pipeline, models.PipelineStatusFailed); err != nil {
		o.log.Error("finish misconfigured pipeline", zap.Int("pipeline_id", pipeline.ID), zap.Error(err))
	}
}

func (o *Orchestrator) transition(pipeline *models.Pipeline, to string) error {
	if !CanTransition(pipeline.Status, to) {
		return fmt.Errorf("invalid pipeline transition %s -> %s", pipeline.Status, to)
	}
	if err := o.pipelines.UpdateStatus(pipeline.ID, to); err != nil {
		return fmt.Errorf("update pipeline status: %w", err)
	}
	pipeline.Status = to
	return nil
}

// notify шлёт уведомление если правило их не отключило
func (o *Orchestrator) notify(rule *models.Rule, pipeline *models.Pipeline, notifType, severity, message string) {
	if o.notifier == nil || !rule.SendNotifications {
		return
	}
	ruleID, pipelineID := rule.ID, pipeline.ID
	o.notifier.Publish(&models.Notification{
		Type:       notifType,
		Severity:   severity,
		RuleID:     &ruleID,
		PipelineID: &pipelineID,
		Message:    message,
	})
}
