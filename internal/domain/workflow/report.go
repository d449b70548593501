// Пакет workflow — конечный автомат отчёта фискала и правила статусов
// обязательств.
//
// Жизненный цикл отчёта:
//   - отправка создаёт отчёт всегда в PendingAnalysis
//   - анализ администратора: любое состояние → Approved | Rejected
//   - повторная отправка: Rejected → PendingAnalysis
//
// Других состояний и переходов нет. Автомат не хранит состояние:
// текущее состояние отчёта читается из БД, здесь только проверка перехода.
package workflow

import (
	"fmt"
)

// ReportState — состояние отчёта. Значение совпадает с именем
// записи справочника statusrelatorio.
type ReportState string

const (
	// StatePendingAnalysis — отчёт ждёт анализа администратора.
	StatePendingAnalysis ReportState = "Pendente de Análise"
	// StateApproved — отчёт одобрен.
	StateApproved ReportState = "Aprovado"
	// StateRejected — отчёт отклонён, фискал должен отправить исправление.
	StateRejected ReportState = "Rejeitado com Pendência"
)

// Action — действие над отчётом.
type Action string

const (
	ActionAnalyze  Action = "analyze"
	ActionResubmit Action = "resubmit"
)

// Коды ошибок перехода.
const (
	CodeInvalidTarget     = "INVALID_TARGET"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeUnknownState      = "UNKNOWN_STATE"
)

// analyzeTargets — допустимые итоговые состояния анализа.
var analyzeTargets = map[ReportState]bool{
	StateApproved: true,
	StateRejected: true,
}

// validTransitions — матрица переходов по действиям.
// Ключ — действие, затем исходное состояние, значение — набор целевых состояний.
// Анализ допускается из любого состояния: повторный анализ перезаписывает
// предыдущий (последняя запись выигрывает).
var validTransitions = map[Action]map[ReportState]map[ReportState]bool{
	ActionAnalyze: {
		StatePendingAnalysis: analyzeTargets,
		StateApproved:        analyzeTargets,
		StateRejected:        analyzeTargets,
	},
	ActionResubmit: {
		StateRejected: {StatePendingAnalysis: true},
	},
}

// InitialState — состояние нового отчёта. Статус из запроса клиента
// при отправке игнорируется.
func InitialState() ReportState {
	return StatePendingAnalysis
}

// ResubmitTarget — состояние после повторной отправки.
func ResubmitTarget() ReportState {
	return StatePendingAnalysis
}

// Transition проверяет переход from → to для действия.
//
// Ошибки:
//   - UNKNOWN_STATE — состояние вне перечня
//   - INVALID_TARGET — целевое состояние недопустимо для действия
//   - INVALID_TRANSITION — из текущего состояния действие недоступно
func Transition(action Action, from, to ReportState) error {
	if !IsValidState(from) {
		return &TransitionError{
			Code:    CodeUnknownState,
			Message: fmt.Sprintf("неизвестное состояние отчёта: %q", from),
		}
	}
	if !IsValidState(to) {
		return &TransitionError{
			Code:    CodeUnknownState,
			Message: fmt.Sprintf("неизвестное состояние отчёта: %q", to),
		}
	}

	if action == ActionAnalyze && !analyzeTargets[to] {
		return &TransitionError{
			Code:    CodeInvalidTarget,
			Message: fmt.Sprintf("результат анализа должен быть %q или %q", StateApproved, StateRejected),
		}
	}

	transitions, ok := validTransitions[action]
	if !ok || !transitions[from][to] {
		return &TransitionError{
			Code:    CodeInvalidTransition,
			Message: fmt.Sprintf("действие %s недоступно: переход %q → %q недопустим", action, from, to),
		}
	}
	return nil
}

// NotifiesInspector сообщает, уведомляется ли фискал о переходе в состояние.
// Письмо отправляется только при отклонении.
func NotifiesInspector(state ReportState) bool {
	return state == StateRejected
}

// TransitionError — ошибка перехода отчёта.
type TransitionError struct {
	Code    string
	Message string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsValidState проверяет, является ли состояние допустимым.
func IsValidState(s ReportState) bool {
	switch s {
	case StatePendingAnalysis, StateApproved, StateRejected:
		return true
	default:
		return false
	}
}

// ParseState преобразует имя статуса в ReportState.
func ParseState(name string) (ReportState, error) {
	s := ReportState(name)
	if !IsValidState(s) {
		return "", fmt.Errorf("недопустимый статус отчёта: %q", name)
	}
	return s, nil
}
