// Пакет rbac — профили пользователей SIGESCON и правила доступа.
// Профиль берётся из claim "perfil" токена, без обращения к БД:
// смена профиля вступает в силу после повторного входа.
package rbac

// Профили пользователей (значения справочника perfil).
const (
	RoleAdmin   = "Administrador"
	RoleManager = "Gestor"
	RoleFiscal  = "Fiscal"
)

// Группы профилей для маршрутов.
var (
	// AdminOnly — операции только для администратора.
	AdminOnly = []string{RoleAdmin}
	// FiscalOrAdmin — операции фискала; администратор допускается всегда.
	FiscalOrAdmin = []string{RoleFiscal, RoleAdmin}
	// AnyRole — любой аутентифицированный пользователь.
	AnyRole = []string{RoleAdmin, RoleManager, RoleFiscal}
)

// IsValidRole проверяет, является ли строка известным профилем.
func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleFiscal:
		return true
	default:
		return false
	}
}

// HasAnyRole проверяет, входит ли профиль в список допустимых.
func HasAnyRole(role string, allowed ...string) bool {
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}

// IsAdmin — сокращение для проверки профиля администратора.
func IsAdmin(role string) bool {
	return role == RoleAdmin
}

// CanActAsUser сообщает, может ли субъект выполнять действие от имени
// пользователя targetID: администратор — за любого, остальные — только за себя.
func CanActAsUser(role string, subjectID, targetID int64) bool {
	return IsAdmin(role) || subjectID == targetID
}
