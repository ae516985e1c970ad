package service

import (
	"context"
	"sync"
	"time"

	"liquidity/internal/integration"
	"liquidity/internal/models"
	"liquidity/internal/repository"
)

// In-memory моки репозиториев для тестов сервисного слоя

type mockRuleRepo struct {
	mu     sync.Mutex
	nextID int
	rules  map[int]*models.Rule
}

func newMockRuleRepo() *mockRuleRepo {
	return &mockRuleRepo{nextID: 1, rules: make(map[int]*models.Rule)}
}

func (m *mockRuleRepo) Create(rule *models.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rules {
		if r.TargetAsset == rule.TargetAsset {
			return repository.ErrRuleExists
		}
	}
	rule.ID = m.nextID
	m.nextID++
	cp := *rule
	m.rules[rule.ID] = &cp
	return nil
}

func (m *mockRuleRepo) GetByID(id int) (*models.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return nil, repository.ErrRuleNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRuleRepo) GetAll() ([]*models.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Rule
	for _, r := range m.rules {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockRuleRepo) GetActive() ([]*models.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Rule
	for _, r := range m.rules {
		if r.IsActive() {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRuleRepo) Update(rule *models.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[rule.ID]; !ok {
		return repository.ErrRuleNotFound
	}
	cp := *rule
	m.rules[rule.ID] = &cp
	return nil
}

func (m *mockRuleRepo) UpdateStatus(id int, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return repository.ErrRuleNotFound
	}
	r.Status = status
	return nil
}

func (m *mockRuleRepo) ExistsByAsset(asset string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rules {
		if r.TargetAsset == asset {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRuleRepo) Count() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rules), nil
}

type mockActionRepo struct {
	mu      sync.Mutex
	nextID  int
	actions map[int]*models.Action
}

func newMockActionRepo() *mockActionRepo {
	return &mockActionRepo{nextID: 1, actions: make(map[int]*models.Action)}
}

func (m *mockActionRepo) Create(action *models.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	action.ID = m.nextID
	m.nextID++
	cp := *action
	m.actions[action.ID] = &cp
	return nil
}

// add кладёт действие с заданным ID напрямую, в обход сервиса
func (m *mockActionRepo) add(action *models.Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[action.ID] = action
	if action.ID >= m.nextID {
		m.nextID = action.ID + 1
	}
}

func (m *mockActionRepo) GetByID(id int) (*models.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actions[id]
	if !ok {
		return nil, repository.ErrActionNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockActionRepo) GetAll() ([]*models.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Action
	for _, a := range m.actions {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockActionRepo) FindMatching(system, command, params string, onSuccessID, onFailID *int) (*models.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.actions {
		aParams, err := a.ParamsJSON()
		if err != nil {
			continue
		}
		if a.System == system && a.Command == command && aParams == params &&
			intPtrEqual(a.OnSuccessID, onSuccessID) && intPtrEqual(a.OnFailID, onFailID) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrActionNotFound
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type mockPipelineRepo struct {
	mu        sync.Mutex
	pipelines map[int]*models.Pipeline
}

func newMockPipelineRepo() *mockPipelineRepo {
	return &mockPipelineRepo{pipelines: make(map[int]*models.Pipeline)}
}

func (m *mockPipelineRepo) add(p *models.Pipeline) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pipelines[p.ID] = p
}

func (m *mockPipelineRepo) GetByID(id int) (*models.Pipeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pipelines[id]
	if !ok {
		return nil, repository.ErrPipelineNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPipelineRepo) GetByRuleID(ruleID int, limit int) ([]*models.Pipeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Pipeline
	for _, p := range m.pipelines {
		if p.RuleID == ruleID && len(out) < limit {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockPipelineRepo) GetActive() ([]*models.Pipeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Pipeline
	for _, p := range m.pipelines {
		if !p.IsTerminal() {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockPipelineRepo) GetActiveByRuleID(ruleID int) (*models.Pipeline, error) {
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

type mockOrderRepo struct {
	mu     sync.Mutex
	orders map[int]*models.Order
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[int]*models.Order)}
}

func (m *mockOrderRepo) GetByID(id int) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) GetByPipelineID(pipelineID int) ([]*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Order
	for _, o := range m.orders {
		if o.PipelineID == pipelineID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) CountByPipelineID(pipelineID int) (int, error) {
	orders, _ := m.GetByPipelineID(pipelineID)
	return len(orders), nil
}

type mockBalanceRepo struct {
	mu       sync.Mutex
	balances map[string]*models.Balance
}

func newMockBalanceRepo() *mockBalanceRepo {
	return &mockBalanceRepo{balances: make(map[string]*models.Balance)}
}

func (m *mockBalanceRepo) Upsert(asset string, amount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[asset] = &models.Balance{Asset: asset, Amount: amount, UpdatedAt: time.Now()}
	return nil
}

func (m *mockBalanceRepo) GetByAsset(asset string) (*models.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[asset]
	if !ok {
		return nil, repository.ErrBalanceNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *mockBalanceRepo) GetAll() ([]*models.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Balance
	for _, b := range m.balances {
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

type mockNotificationRepo struct {
	mu    sync.Mutex
	notes []*models.Notification
}

func (m *mockNotificationRepo) Create(notif *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	notif.ID = len(m.notes) + 1
	m.notes = append(m.notes, notif)
	return nil
}

func (m *mockNotificationRepo) GetRecent(limit int) ([]*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > len(m.notes) {
		limit = len(m.notes)
	}
	out := make([]*models.Notification, limit)
	copy(out, m.notes[len(m.notes)-limit:])
	return out, nil
}

func (m *mockNotificationRepo) DeleteOlderThan(timestamp time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*models.Notification
	var removed int64
	for _, n := range m.notes {
		if n.Timestamp.Before(timestamp) {
			removed++
			continue
		}
		kept = append(kept, n)
	}
	m.notes = kept
	return removed, nil
}

func (m *mockNotificationRepo) Count() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notes), nil
}

// mockNotifier собирает опубликованные уведомления
type mockNotifier struct {
	mu    sync.Mutex
	notes []*models.Notification
}

func (m *mockNotifier) Publish(notif *models.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes = append(m.notes, notif)
}

// stubHandler - минимальный обработчик для валидации конфигурации
type stubHandler struct {
	system   string
	commands []string

	balances    map[string]float64
	balancesErr error
}

func (h *stubHandler) System() string     { return h.system }
func (h *stubHandler) Commands() []string { return h.commands }

func (h *stubHandler) Execute(context.Context, string, float64, map[string]interface{}) (*integration.ExecutionResult, error) {
	return &integration.ExecutionResult{Complete: true}, nil
}

func (h *stubHandler) CheckStatus(context.Context, string, string) (*integration.StatusResult, error) {
	return &integration.StatusResult{Status: models.OrderStatusComplete}, nil
}

func (h *stubHandler) ValidateParams(command string, params map[string]interface{}) error {
	return nil
}

func (h *stubHandler) Close() error { return nil }

func (h *stubHandler) Balances(context.Context) (map[string]float64, error) {
	if h.balancesErr != nil {
		return nil, h.balancesErr
	}
	return h.balances, nil
}

type stubRegistry struct {
	handlers map[string]integration.ActionHandler
}

func newStubRegistry(handlers ...integration.ActionHandler) *stubRegistry {
	r := &stubRegistry{handlers: make(map[string]integration.ActionHandler)}
	for _, h := range handlers {
		r.handlers[h.System()] = h
	}
	return r
}

func (r *stubRegistry) Get(system string) (integration.ActionHandler, bool) {
	h, ok := r.handlers[system]
	return h, ok
}
