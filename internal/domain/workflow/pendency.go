package workflow

// PendencyStatus — статус обязательства (значение справочника statuspendencia).
type PendencyStatus string

const (
	PendencyPending   PendencyStatus = "Pendente"
	PendencyConcluded PendencyStatus = "Concluída"
	PendencyCancelled PendencyStatus = "Cancelada"
)

// IsPendencyStatus проверяет, является ли имя статусом, на который
// опирается рабочий процесс.
func IsPendencyStatus(name string) bool {
	switch PendencyStatus(name) {
	case PendencyPending, PendencyConcluded, PendencyCancelled:
		return true
	default:
		return false
	}
}

// ReminderOffsets — за сколько дней до срока фискал получает напоминание.
var ReminderOffsets = []int{15, 5, 3, 0}

// InitialPendencyStatus — статус нового обязательства.
func InitialPendencyStatus() PendencyStatus {
	return PendencyPending
}

// AdminSettable сообщает, может ли администратор вручную выставить статус.
// Concluída выставляет только отправка отчёта.
func AdminSettable(status string) bool {
	return PendencyStatus(status) != PendencyConcluded
}

// ShouldRemind сообщает, нужно ли напоминание при daysRemaining днях до срока.
// Просроченные обязательства не напоминаются.
func ShouldRemind(daysRemaining int) bool {
	if daysRemaining < 0 {
		return false
	}
	for _, offset := range ReminderOffsets {
		if daysRemaining == offset {
			return true
		}
	}
	return false
}
