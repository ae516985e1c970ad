package models

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

var paramsJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Action - примитив восстановления ликвидности: одна команда одной внешней
// системы (например system=kraken, command=withdraw). Параметры непрозрачны
// для ядра и интерпретируются обработчиком системы.
//
// Действия образуют направленный граф через OnSuccessID/OnFailID:
// - OnSuccessID - продолжение цепочки после успешного исполнения
// - OnFailID - запасное действие при ошибке исполнения
// Граф обязан быть ацикличным; проверяется при регистрации, не в runtime.
//
// Действие неизменяемо после того, как на него сослался хотя бы один Order:
// правки создают новые строки.
type Action struct {
	ID          int                    `json:"id" db:"id"`
	System      string                 `json:"system" db:"system"`   // имя внешней интеграции
	Command     string                 `json:"command" db:"command"` // имя операции (buy, sell, withdraw, deposit, bridge...)
	Params      map[string]interface{} `json:"params,omitempty" db:"-"`
	Tag         string                 `json:"tag" db:"tag"` // человеко-читаемая метка
	OnSuccessID *int                   `json:"on_success_id,omitempty" db:"on_success_id"`
	OnFailID    *int                   `json:"on_fail_id,omitempty" db:"on_fail_id"`
	CreatedAt   time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at" db:"updated_at"`
}

// ParamsJSON сериализует параметры для хранения в БД.
// Пустые параметры хранятся как NULL (пустая строка здесь).
func (a *Action) ParamsJSON() (string, error) {
	if len(a.Params) == 0 {
		return "", nil
	}
	raw, err := paramsJSON.MarshalToString(a.Params)
	if err != nil {
		return "", err
	}
	return raw, nil
}

// SetParamsJSON восстанавливает параметры из сериализованного вида
func (a *Action) SetParamsJSON(raw string) error {
	if raw == "" {
		a.Params = nil
		return nil
	}
	return paramsJSON.UnmarshalFromString(raw, &a.Params)
}

// ParamString возвращает строковый параметр действия
func (a *Action) ParamString(key string) (string, bool) {
	v, ok := a.Params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
