package handlers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"liquidity/internal/integration"
	"liquidity/internal/models"
	"liquidity/internal/repository"
	"liquidity/internal/service"
)

// In-memory зависимости для тестов HTTP-слоя. Хендлеры работают
// с настоящими сервисами поверх моков репозиториев.

type memRules struct {
	mu     sync.Mutex
	nextID int
	rules  map[int]*models.Rule
}

func newMemRules() *memRules {
	return &memRules{nextID: 1, rules: make(map[int]*models.Rule)}
}

func (m *memRules) Create(rule *models.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule.ID = m.nextID
	m.nextID++
	cp := *rule
	m.rules[rule.ID] = &cp
	return nil
}

func (m *memRules) GetByID(id int) (*models.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return nil, repository.ErrRuleNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRules) GetAll() ([]*models.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Rule{}
	for _, r := range m.rules {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memRules) GetActive() ([]*models.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Rule{}
	for _, r := range m.rules {
		if r.IsActive() {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRules) Update(rule *models.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[rule.ID]; !ok {
		return repository.ErrRuleNotFound
	}
	cp := *rule
	m.rules[rule.ID] = &cp
	return nil
}

func (m *memRules) UpdateStatus(id int, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return repository.ErrRuleNotFound
	}
	r.Status = status
	return nil
}

func (m *memRules) ExistsByAsset(asset string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rules {
		if r.TargetAsset == asset {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRules) Count() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rules), nil
}

type memActions struct {
	mu      sync.Mutex
	nextID  int
	actions map[int]*models.Action
}

func newMemActions() *memActions {
	return &memActions{nextID: 1, actions: make(map[int]*models.Action)}
}

func (m *memActions) Create(action *models.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	action.ID = m.nextID
	m.nextID++
	cp := *action
	m.actions[action.ID] = &cp
	return nil
}

func (m *memActions) GetByID(id int) (*models.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actions[id]
	if !ok {
		return nil, repository.ErrActionNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memActions) GetAll() ([]*models.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Action{}
	for _, a := range m.actions {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memActions) FindMatching(system, command, params string, onSuccessID, onFailID *int) (*models.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.actions {
		aParams, err := a.ParamsJSON()
		if err != nil {
			continue
		}
		if a.System == system && a.Command == command && aParams == params &&
			ptrEq(a.OnSuccessID, onSuccessID) && ptrEq(a.OnFailID, onFailID) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrActionNotFound
}

func ptrEq(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type memPipelines struct {
	mu        sync.Mutex
	pipelines map[int]*models.Pipeline
}

func newMemPipelines() *memPipelines {
	return &memPipelines{pipelines: make(map[int]*models.Pipeline)}
}

func (m *memPipelines) add(p *models.Pipeline) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pipelines[p.ID] = p
}

func (m *memPipelines) GetByID(id int) (*models.Pipeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pipelines[id]
	if !ok {
		return nil, repository.ErrPipelineNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPipelines) GetByRuleID(ruleID int, limit int) ([]*models.Pipeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Pipeline{}
	for _, p := range m.pipelines {
		if p.RuleID == ruleID && len(out) < limit {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPipelines) GetActive() ([]*models.Pipeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Pipeline{}
	for _, p := range m.pipelines {
		if !p.IsTerminal() {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPipelines) GetActiveByRuleID(ruleID int) (*models.Pipeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pipelines {
		if p.RuleID == ruleID && !p.IsTerminal() {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrPipelineNotFound
}

type memOrders struct {
	mu     sync.Mutex
	orders map[int]*models.Order
}

func newMemOrders() *memOrders {
	return &memOrders{orders: make(map[int]*models.Order)}
}

func (m *memOrders) GetByID(id int) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) GetByPipelineID(pipelineID int) ([]*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Order{}
	for _, o := range m.orders {
		if o.PipelineID == pipelineID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memOrders) CountByPipelineID(pipelineID int) (int, error) {
	orders, _ := m.GetByPipelineID(pipelineID)
	return len(orders), nil
}

type memBalances struct {
	mu       sync.Mutex
	balances map[string]*models.Balance
}

func newMemBalances() *memBalances {
	return &memBalances{balances: make(map[string]*models.Balance)}
}

func (m *memBalances) Upsert(asset string, amount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[asset] = &models.Balance{Asset: asset, Amount: amount, UpdatedAt: time.Now()}
	return nil
}

func (m *memBalances) GetByAsset(asset string) (*models.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[asset]
	if !ok {
		return nil, repository.ErrBalanceNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memBalances) GetAll() ([]*models.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Balance{}
	for _, b := range m.balances {
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

// testHandler - обработчик внешней системы для валидации конфигурации
type testHandler struct {
	system   string
	commands []string
}

func (h *testHandler) System() string     { return h.system }
func (h *testHandler) Commands() []string { return h.commands }

func (h *testHandler) Execute(context.Context, string, float64, map[string]interface{}) (*integration.ExecutionResult, error) {
	return &integration.ExecutionResult{Complete: true}, nil
}

func (h *testHandler) CheckStatus(context.Context, string, string) (*integration.StatusResult, error) {
	return &integration.StatusResult{Status: models.OrderStatusComplete}, nil
}

func (h *testHandler) ValidateParams(string, map[string]interface{}) error { return nil }
func (h *testHandler) Close() error                                       { return nil }

type testRegistry struct {
	handlers map[string]integration.ActionHandler
}

func (r *testRegistry) Get(system string) (integration.ActionHandler, bool) {
	h, ok := r.handlers[system]
	return h, ok
}

type handlerFixture struct {
	rules     *memRules
	actions   *memActions
	pipelines *memPipelines
	orders    *memOrders

	actionService *service.ActionService
	ruleService   *service.RuleService
}

func newHandlerFixture() *handlerFixture {
	f := &handlerFixture{
		rules:     newMemRules(),
		actions:   newMemActions(),
		pipelines: newMemPipelines(),
		orders:    newMemOrders(),
	}

	registry := &testRegistry{handlers: map[string]integration.ActionHandler{
		"kraken": &testHandler{system: "kraken", commands: []string{"buy", "sell", "withdraw"}},
	}}

	f.actionService = service.NewActionService(f.actions, registry)
	f.ruleService = service.NewRuleService(f.rules, f.pipelines, f.orders, f.actionService, nil, zap.NewNop())
	return f
}
