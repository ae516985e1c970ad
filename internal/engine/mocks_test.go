package engine

import (
	"context"
	"sync"
	"time"

	"liquidity/internal/integration"
	"liquidity/internal/models"
	"liquidity/internal/repository"
)

// In-memory реализации зависимостей движка для сценарных тестов.
// Повторяют семантику repository: sentinel-ошибки и контроль допуска
// pipeline (не более одного активного на правило).

type memRuleRepo struct {
	mu    sync.Mutex
	rules map[int]*models.Rule
}

func newMemRuleRepo(rules ...*models.Rule) *memRuleRepo {
	r := &memRuleRepo{rules: make(map[int]*models.Rule)}
	for _, rule := range rules {
		r.rules[rule.ID] = rule
	}
	return r
}

func (r *memRuleRepo) GetActive() ([]*models.Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Rule
	for _, rule := range r.rules {
		if rule.IsActive() {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r *memRuleRepo) GetByID(id int) (*models.Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[id]
	if !ok {
		return nil, repository.ErrRuleNotFound
	}
	return rule, nil
}

type memPipelineRepo struct {
	mu        sync.Mutex
	nextID    int
	pipelines map[int]*models.Pipeline
}

func newMemPipelineRepo() *memPipelineRepo {
	return &memPipelineRepo{nextID: 1, pipelines: make(map[int]*models.Pipeline)}
}

func (r *memPipelineRepo) Create(pipeline *models.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pipelines {
		if p.RuleID == pipeline.RuleID && !p.IsTerminal() {
			return repository.ErrPipelineConflict
		}
	}
	pipeline.ID = r.nextID
	r.nextID++
	pipeline.CreatedAt = time.Now()
	pipeline.UpdatedAt = pipeline.CreatedAt
	cp := *pipeline
	r.pipelines[pipeline.ID] = &cp
	return nil
}

func (r *memPipelineRepo) GetActive() ([]*models.Pipeline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Pipeline
	for _, p := range r.pipelines {
		if !p.IsTerminal() {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memPipelineRepo) GetActiveByRuleID(ruleID int) (*models.Pipeline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pipelines {
		if p.RuleID == ruleID && !p.IsTerminal() {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrPipelineNotFound
}

func (r *memPipelineRepo) GetLastTerminalByRuleID(ruleID int) (*models.Pipeline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var last *models.Pipeline
	for _, p := range r.pipelines {
		if p.RuleID == ruleID && p.IsTerminal() {
			if last == nil || p.UpdatedAt.After(last.UpdatedAt) {
				last = p
			}
		}
	}
	if last == nil {
		return nil, repository.ErrPipelineNotFound
	}
	cp := *last
	return &cp, nil
}

func (r *memPipelineRepo) UpdateStatus(id int, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pipelines[id]
	if !ok {
		return repository.ErrPipelineNotFound
	}
	p.Status = status
	p.UpdatedAt = time.Now()
	return nil
}

func (r *memPipelineRepo) SetCurrentAction(id int, actionID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pipelines[id]
	if !ok {
		return repository.ErrPipelineNotFound
	}
	aid := actionID
	p.CurrentActionID = &aid
	p.OrdersProcessed++
	p.UpdatedAt = time.Now()
	return nil
}

func (r *memPipelineRepo) get(id int) *models.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pipelines[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

type memOrderRepo struct {
	mu     sync.Mutex
	nextID int
	orders map[int]*models.Order
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{nextID: 1, orders: make(map[int]*models.Order)}
}

func (r *memOrderRepo) Create(order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order.ID = r.nextID
	r.nextID++
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *memOrderRepo) GetLastByPipelineID(pipelineID int) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var last *models.Order
	for _, o := range r.orders {
		if o.PipelineID == pipelineID {
			if last == nil || o.ID > last.ID {
				last = o
			}
		}
	}
	if last == nil {
		return nil, repository.ErrOrderNotFound
	}
	cp := *last
	return &cp, nil
}

func (r *memOrderRepo) GetIncomplete() ([]*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Order
	for _, o := range r.orders {
		if !o.IsComplete && o.CorrelationID != "" {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memOrderRepo) MarkReady(id int, txID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.IsReady = true
	o.TxID = txID
	o.UpdatedAt = time.Now()
	return nil
}

func (r *memOrderRepo) Complete(id int, txID string, feeAmount float64, feeAsset string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.IsReady = true
	o.IsComplete = true
	o.TxID = txID
	o.FeeAmount = feeAmount
	o.FeeAsset = feeAsset
	o.UpdatedAt = time.Now()
	return nil
}

func (r *memOrderRepo) Fail(id int, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.IsComplete = true
	o.ErrorMessage = errorMessage
	o.UpdatedAt = time.Now()
	return nil
}

func (r *memOrderRepo) byPipeline(pipelineID int) []*models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Order
	for id := 1; id < r.nextID; id++ {
		o, ok := r.orders[id]
		if ok && o.PipelineID == pipelineID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out
}

type memActionRepo struct {
	actions map[int]*models.Action
}

func newMemActionRepo(actions ...*models.Action) *memActionRepo {
	r := &memActionRepo{actions: make(map[int]*models.Action)}
	for _, a := range actions {
		r.actions[a.ID] = a
	}
	return r
}

func (r *memActionRepo) GetByID(id int) (*models.Action, error) {
	a, ok := r.actions[id]
	if !ok {
		return nil, repository.ErrActionNotFound
	}
	return a, nil
}

// fakeHandler - программируемый обработчик внешней системы.
// Execute и CheckStatus отвечают заранее заданными результатами.
type fakeHandler struct {
	system   string
	commands []string

	mu             sync.Mutex
	executeRes     map[string]*integration.ExecutionResult
	executeErr     map[string]error
	statusRes      map[string]*integration.StatusResult
	executeEntered map[string]chan struct{}
	executeRelease map[string]chan struct{}
	executeCalls   []string
	statusCalls    []string
}

func newFakeHandler(system string, commands ...string) *fakeHandler {
	return &fakeHandler{
		system:         system,
		commands:       commands,
		executeRes:     make(map[string]*integration.ExecutionResult),
		executeErr:     make(map[string]error),
		statusRes:      make(map[string]*integration.StatusResult),
		executeEntered: make(map[string]chan struct{}),
		executeRelease: make(map[string]chan struct{}),
	}
}

func (h *fakeHandler) System() string     { return h.system }
func (h *fakeHandler) Commands() []string { return h.commands }

func (h *fakeHandler) onExecute(command string, res *integration.ExecutionResult, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.executeRes[command] = res
	h.executeErr[command] = err
}

func (h *fakeHandler) onStatus(correlationID string, res *integration.StatusResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statusRes[correlationID] = res
}

// blockExecute задерживает Execute команды: при входе отправляет сигнал
// в entered и ждёт закрытия release. Для тестов конкурентных тиков.
func (h *fakeHandler) blockExecute(command string, entered, release chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.executeEntered[command] = entered
	h.executeRelease[command] = release
}

func (h *fakeHandler) Execute(_ context.Context, command string, _ float64, _ map[string]interface{}) (*integration.ExecutionResult, error) {
	h.mu.Lock()
	h.executeCalls = append(h.executeCalls, command)
	err := h.executeErr[command]
	res, scripted := h.executeRes[command]
	entered := h.executeEntered[command]
	release := h.executeRelease[command]
	h.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}
	if err != nil {
		return nil, err
	}
	if scripted {
		return res, nil
	}
	return &integration.ExecutionResult{Complete: true, OrderType: "trade"}, nil
}

func (h *fakeHandler) CheckStatus(_ context.Context, _ string, correlationID string) (*integration.StatusResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statusCalls = append(h.statusCalls, correlationID)
	if res, ok := h.statusRes[correlationID]; ok {
		return res, nil
	}
	return &integration.StatusResult{Status: models.OrderStatusPending}, nil
}

func (h *fakeHandler) ValidateParams(string, map[string]interface{}) error { return nil }
func (h *fakeHandler) Close() error                                       { return nil }

type fakeRegistry struct {
	handlers map[string]integration.ActionHandler
}

func newFakeRegistry(handlers ...integration.ActionHandler) *fakeRegistry {
	r := &fakeRegistry{handlers: make(map[string]integration.ActionHandler)}
	for _, h := range handlers {
		r.handlers[h.System()] = h
	}
	return r
}

func (r *fakeRegistry) Get(system string) (integration.ActionHandler, bool) {
	h, ok := r.handlers[system]
	return h, ok
}

// recordingNotifier накапливает опубликованные уведомления
type recordingNotifier struct {
	mu    sync.Mutex
	notes []*models.Notification
}

func (n *recordingNotifier) Publish(notif *models.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, notif)
}

func (n *recordingNotifier) byType(notifType string) []*models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []*models.Notification
	for _, notif := range n.notes {
		if notif.Type == notifType {
			out = append(out, notif)
		}
	}
	return out
}

// recordingHub считает broadcast-вызовы
type recordingHub struct {
	mu        sync.Mutex
	pipelines int
	orders    int
	balances  int
}

func (h *recordingHub) BroadcastPipelineUpdate(*models.Pipeline) {
	h.mu.Lock()
	h.pipelines++
	h.mu.Unlock()
}

func (h *recordingHub) BroadcastOrderUpdate(*models.Order) {
	h.mu.Lock()
	h.orders++
	h.mu.Unlock()
}

func (h *recordingHub) BroadcastBalanceUpdate(string, float64) {
	h.mu.Lock()
	h.balances++
	h.mu.Unlock()
}

// staticBalances - фиксированные балансы с управляемым временем обновления
type staticBalances struct {
	mu       sync.Mutex
	balances map[string]float64
	updated  map[string]time.Time
}

func newStaticBalances() *staticBalances {
	return &staticBalances{
		balances: make(map[string]float64),
		updated:  make(map[string]time.Time),
	}
}

func (b *staticBalances) set(asset string, amount float64, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[asset] = amount
	b.updated[asset] = at
}

func (b *staticBalances) Current(_ context.Context, asset string) (float64, time.Time, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	amount, ok := b.balances[asset]
	if !ok {
		return 0, time.Time{}, repository.ErrBalanceNotFound
	}
	return amount, b.updated[asset], nil
}
