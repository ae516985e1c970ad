package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"liquidity/internal/config"
	"liquidity/internal/models"
	"liquidity/internal/repository"
)

// Engine - управляющий цикл ликвидности.
//
// Каждый тик:
//  1. Опрос незавершённых ордеров во внешних системах (Tracker)
//  2. Продвижение активных pipeline по цепочке действий (Orchestrator)
//  3. Оценка активных правил и запуск новых pipeline (Evaluator)
//
// Правила обрабатываются параллельно, по одному обработчику на правило
// (single-flight): долгий внешний вызов одного правила не задерживает
// остальные и не даёт второй конкурентной оценки того же правила.
// Тот же слот правила сериализует продвижение его pipeline: тик таймера
// и ручной RunTick не выполнят действие одного pipeline дважды.
type Engine struct {
	cfg *config.Config
	log *zap.Logger

	rules     RuleRepository
	pipelines PipelineRepository
	balances  BalanceSource

	evaluator    *Evaluator
	orchestrator *Orchestrator
	tracker      *Tracker
	hub          Hub

	// правила в обработке (оценка или продвижение pipeline): map[int]struct{}
	inFlight sync.Map
}

// NewEngine создает Engine
func NewEngine(cfg *config.Config, rules RuleRepository, pipelines PipelineRepository, balances BalanceSource, evaluator *Evaluator, orchestrator *Orchestrator, tracker *Tracker, hub Hub, log *zap.Logger) *Engine {
	return &Engine{
		cfg:          cfg,
		log:          log,
		rules:        rules,
		pipelines:    pipelines,
		balances:     balances,
		evaluator:    evaluator,
		orchestrator: orchestrator,
		tracker:      tracker,
		hub:          hub,
	}
}

// Run запускает периодический цикл до отмены контекста
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("engine started", zap.Duration("tick_interval", e.cfg.Engine.TickInterval))

	ticker := time.NewTicker(e.cfg.Engine.TickInterval)
	defer ticker.Stop()

	// первый тик сразу, не ждём интервала
	e.RunTick(ctx)

	for {
		select {
		case <-ctx.Done():
			e.log.Info("engine stopped")
			return ctx.Err()
		case <-ticker.C:
			e.RunTick(ctx)
		}
	}
}

// RunTick выполняет один полный цикл. Вызывается тикером и вручную
// через операторский API.
func (e *Engine) RunTick(ctx context.Context) {
	started := time.Now()
	defer func() {
		TickDuration.Observe(time.Since(started).Seconds())
	}()

	e.tracker.Poll(ctx)
	e.advancePipelines(ctx)
	e.evaluateRules(ctx)
}

// advancePipelines продвигает все активные pipeline.
// Продвижение идёт под слотом правила: конкурентный тик (таймер и
// ручной запуск через операторский API) не продвинет тот же pipeline
// дважды и не выполнит внешнее действие повторно. Занятое правило
// пропускается до следующего тика.
func (e *Engine) advancePipelines(ctx context.Context) {
	pipelines, err := e.pipelines.GetActive()
	if err != nil {
		e.log.Error("list active pipelines", zap.Error(err))
		return
	}
	ActivePipelines.Set(float64(len(pipelines)))

	for _, p := range pipelines {
		if ctx.Err() != nil {
			return
		}
		if _, loaded := e.inFlight.LoadOrStore(p.RuleID, struct{}{}); loaded {
			e.log.Debug("rule busy, pipeline advance deferred",
				zap.Int("pipeline_id", p.ID),
				zap.Int("rule_id", p.RuleID))
			continue
		}
		err := e.orchestrator.Advance(ctx, p)
		e.inFlight.Delete(p.RuleID)
		if err != nil {
			e.log.Error("advance pipeline",
				zap.Int("pipeline_id", p.ID),
				zap.Int("rule_id", p.RuleID),
				zap.Error(err))
		}
	}
}

// evaluateRules оценивает все активные правила параллельно
func (e *Engine) evaluateRules(ctx context.Context) {
	rules, err := e.rules.GetActive()
	if err != nil {
		e.log.Error("list active rules", zap.Error(err))
		return
	}

	var wg sync.WaitGroup
	for _, rule := range rules {
		// правило ещё обрабатывается с прошлого тика - пропускаем
		if _, loaded := e.inFlight.LoadOrStore(rule.ID, struct{}{}); loaded {
			continue
		}

		wg.Add(1)
		go func(rule *models.Rule) {
			defer wg.Done()
			defer e.inFlight.Delete(rule.ID)
			defer func() {
				if r := recover(); r != nil {
					TickPanics.Inc()
					e.log.Error("panic while processing rule",
						zap.Int("rule_id", rule.ID),
						zap.Any("panic", r))
				}
			}()
			e.processRule(ctx, rule)
		}(rule)
	}
	wg.Wait()
}

// processRule оценивает одно правило и при необходимости запускает pipeline
func (e *Engine) processRule(ctx context.Context, rule *models.Rule) {
	balanceCtx, cancel := context.WithTimeout(ctx, e.cfg.Engine.BalanceTimeout)
	balance, updatedAt, err := e.balances.Current(balanceCtx, rule.TargetAsset)
	cancel()
	if err != nil {
		e.log.Warn("balance unavailable",
			zap.Int("rule_id", rule.ID),
			zap.String("asset", rule.TargetAsset),
			zap.Error(err))
		return
	}

	// на устаревшем балансе решения не принимаем
	if time.Since(updatedAt) > e.cfg.Engine.BalanceMaxAge {
		e.log.Warn("balance too old, skipping rule",
			zap.Int("rule_id", rule.ID),
			zap.String("asset", rule.TargetAsset),
			zap.Time("updated_at", updatedAt))
		return
	}

	AssetBalance.WithLabelValues(rule.TargetAsset).Set(balance)
	if e.hub != nil {
		e.hub.BroadcastBalanceUpdate(rule.TargetAsset, balance)
	}

	decision := e.evaluator.Evaluate(rule, balance)
	if decision.NoAction() {
		RulesEvaluated.WithLabelValues("none").Inc()
		return
	}
	RulesEvaluated.WithLabelValues(decision.PipelineType).Inc()

	// активный pipeline уже есть - никаких новых до его завершения
	if _, err := e.pipelines.GetActiveByRuleID(rule.ID); err == nil {
		return
	} else if !errors.Is(err, repository.ErrPipelineNotFound) {
		e.log.Error("check active pipeline", zap.Int("rule_id", rule.ID), zap.Error(err))
		return
	}

	// cool-down после последнего завершённого pipeline
	lastTerminal, err := e.pipelines.GetLastTerminalByRuleID(rule.ID)
	if err != nil && !errors.Is(err, repository.ErrPipelineNotFound) {
		e.log.Error("check last terminal pipeline", zap.Int("rule_id", rule.ID), zap.Error(err))
		return
	}
	if !e.evaluator.CooledDown(rule, lastTerminal) {
		e.log.Debug("rule in cool-down",
			zap.Int("rule_id", rule.ID),
			zap.Int("reactivation_time", rule.ReactivationTime))
		return
	}

	pipeline, err := e.orchestrator.Start(rule, decision)
	if err != nil {
		if errors.Is(err, repository.ErrPipelineConflict) {
			// состязание с параллельным запуском, допустимо
			e.log.Debug("pipeline admission conflict", zap.Int("rule_id", rule.ID))
			return
		}
		e.log.Error("start pipeline", zap.Int("rule_id", rule.ID), zap.Error(err))
		return
	}
	if pipeline == nil {
		return
	}

	// первое действие запускаем сразу, не дожидаясь следующего тика
	if err := e.orchestrator.Advance(ctx, pipeline); err != nil {
		e.log.Error("advance new pipeline", zap.Int("pipeline_id", pipeline.ID), zap.Error(err))
	}
}
