package service

import (
	"errors"
	"fmt"

	"liquidity/internal/integration"
	"liquidity/internal/models"
	"liquidity/internal/repository"
)

// Ошибки сервиса действий
var (
	ErrActionNotFound      = errors.New("action not found")
	ErrSystemNotSupported  = errors.New("system is not supported")
	ErrCommandNotSupported = errors.New("command is not supported by system")
	ErrInvalidActionParams = errors.New("invalid action params")
	ErrChainCycle          = errors.New("action chain contains a cycle")
	ErrChainTooDeep        = errors.New("action chain is too deep")
)

// MaxChainDepth - предельная длина цепочки действий.
// Защита от бесконечного pipeline при испорченных данных.
const MaxChainDepth = 32

// HandlerRegistry - доступ к обработчикам для валидации конфигурации
type HandlerRegistry interface {
	Get(system string) (integration.ActionHandler, bool)
}

// ActionService - регистрация и каталог действий.
// Действия неизменяемы: один раз созданное действие навсегда сохраняет
// систему, команду, параметры и ссылки. Повторная регистрация той же
// конфигурации возвращает существующее действие (дедупликация).
type ActionService struct {
	actionRepo ActionRepositoryInterface
	registry   HandlerRegistry
}

// NewActionService создает новый экземпляр сервиса действий
func NewActionService(actionRepo ActionRepositoryInterface, registry HandlerRegistry) *ActionService {
	return &ActionService{
		actionRepo: actionRepo,
		registry:   registry,
	}
}

// CreateActionRequest - параметры регистрации действия
type CreateActionRequest struct {
	System      string                 `json:"system"`
	Command     string                 `json:"command"`
	Params      map[string]interface{} `json:"params,omitempty"`
	Tag         string                 `json:"tag,omitempty"`
	OnSuccessID *int                   `json:"on_success_id,omitempty"`
	OnFailID    *int                   `json:"on_fail_id,omitempty"`
}

// CreateAction регистрирует действие.
// Выполняет:
//  1. Проверку обработчика (система, команда, параметры)
//  2. Проверку существования связанных действий
//  3. Дедупликацию по полной конфигурации
//
// Цикл через ссылки невозможен: новое действие может ссылаться только
// на уже существующие, а существующие неизменяемы.
func (s *ActionService) CreateAction(req *CreateActionRequest) (*models.Action, error) {
	if err := s.validateHandler(req.System, req.Command, req.Params); err != nil {
		return nil, err
	}

	for _, linkID := range []*int{req.OnSuccessID, req.OnFailID} {
		if linkID == nil {
			continue
		}
		if _, err := s.actionRepo.GetByID(*linkID); err != nil {
			if errors.Is(err, repository.ErrActionNotFound) {
				return nil, fmt.Errorf("%w: linked action %d", ErrActionNotFound, *linkID)
			}
			return nil, err
		}
	}

	action := &models.Action{
		System:      req.System,
		Command:     req.Command,
		Params:      req.Params,
		Tag:         req.Tag,
		OnSuccessID: req.OnSuccessID,
		OnFailID:    req.OnFailID,
	}

	paramsJSON, err := action.ParamsJSON()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidActionParams, err)
	}

	// та же конфигурация уже зарегистрирована - возвращаем её
	existing, err := s.actionRepo.FindMatching(req.System, req.Command, paramsJSON, req.OnSuccessID, req.OnFailID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrActionNotFound) {
		return nil, err
	}

	if err := s.actionRepo.Create(action); err != nil {
		return nil, err
	}
	return action, nil
}

// ActionNode - узел дерева действий для регистрации одним запросом
type ActionNode struct {
	System    string                 `json:"system"`
	Command   string                 `json:"command"`
	Params    map[string]interface{} `json:"params,omitempty"`
	Tag       string                 `json:"tag,omitempty"`
	OnSuccess *ActionNode            `json:"on_success,omitempty"`
	OnFail    *ActionNode            `json:"on_fail,omitempty"`
}

// RegisterTree регистрирует дерево действий, листья первыми.
// Возвращает корневое действие. Общие поддеревья схлопываются
// дедупликацией в CreateAction.
func (s *ActionService) RegisterTree(node *ActionNode) (*models.Action, error) {
	return s.registerNode(node, 0)
}

func (s *ActionService) registerNode(node *ActionNode, depth int) (*models.Action, error) {
	if depth >= MaxChainDepth {
		return nil, ErrChainTooDeep
	}

	req := &CreateActionRequest{
		System:  node.System,
		Command: node.Command,
		Params:  node.Params,
		Tag:     node.Tag,
	}

	if node.OnSuccess != nil {
		child, err := s.registerNode(node.OnSuccess, depth+1)
		if err != nil {
			return nil, err
		}
		req.OnSuccessID = &child.ID
	}
	if node.OnFail != nil {
		child, err := s.registerNode(node.OnFail, depth+1)
		if err != nil {
			return nil, err
		}
		req.OnFailID = &child.ID
	}

	return s.CreateAction(req)
}

// GetAction возвращает действие по ID
func (s *ActionService) GetAction(id int) (*models.Action, error) {
	action, err := s.actionRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrActionNotFound) {
			return nil, ErrActionNotFound
		}
		return nil, err
	}
	return action, nil
}

// GetAllActions возвращает все зарегистрированные действия
func (s *ActionService) GetAllActions() ([]*models.Action, error) {
	return s.actionRepo.GetAll()
}

// ValidateChain проходит цепочку от стартового действия и проверяет,
// что каждое действие исполнимо текущей конфигурацией обработчиков.
// Цикл ловится по стеку обхода: общее fallback-действие, достижимое
// из обеих веток (ромб после дедупликации), циклом не считается.
func (s *ActionService) ValidateChain(startID int) error {
	onStack := make(map[int]bool)
	return s.walkChain(startID, onStack, 0)
}

func (s *ActionService) walkChain(id int, onStack map[int]bool, depth int) error {
	if depth >= MaxChainDepth {
		return ErrChainTooDeep
	}
	if onStack[id] {
		return fmt.Errorf("%w: action %d revisited", ErrChainCycle, id)
	}
	onStack[id] = true
	defer delete(onStack, id)

	action, err := s.actionRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrActionNotFound) {
			return fmt.Errorf("%w: action %d", ErrActionNotFound, id)
		}
		return err
	}

	if err := s.validateHandler(action.System, action.Command, action.Params); err != nil {
		return fmt.Errorf("action %d: %w", id, err)
	}

	if action.OnSuccessID != nil {
		if err := s.walkChain(*action.OnSuccessID, onStack, depth+1); err != nil {
			return err
		}
	}
	if action.OnFailID != nil {
		if err := s.walkChain(*action.OnFailID, onStack, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (s *ActionService) validateHandler(system, command string, params map[string]interface{}) error {
	handler, ok := s.registry.Get(system)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSystemNotSupported, system)
	}

	supported := false
	for _, c := range handler.Commands() {
		if c == command {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("%w: %s/%s", ErrCommandNotSupported, system, command)
	}

	if err := handler.ValidateParams(command, params); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidActionParams, err)
	}
	return nil
}
