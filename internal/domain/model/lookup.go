package model

import "time"

// LookupKind — вид справочника. Значение совпадает с именем таблицы.
type LookupKind string

const (
	// KindPerfil — профили пользователей.
	KindPerfil LookupKind = "perfil"
	// KindModalidade — модальности закупки.
	KindModalidade LookupKind = "modalidade"
	// KindStatus — статусы контрактов.
	KindStatus LookupKind = "status"
	// KindStatusRelatorio — статусы отчётов.
	KindStatusRelatorio LookupKind = "statusrelatorio"
	// KindStatusPendencia — статусы обязательств.
	KindStatusPendencia LookupKind = "statuspendencia"
)

// LookupKinds — все виды справочников.
var LookupKinds = []LookupKind{
	KindPerfil, KindModalidade, KindStatus, KindStatusRelatorio, KindStatusPendencia,
}

// Valid проверяет, что вид справочника известен.
func (k LookupKind) Valid() bool {
	for _, known := range LookupKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Lookup — запись справочника.
type Lookup struct {
	ID        int64     `json:"id"`
	Nome      string    `json:"nome"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
