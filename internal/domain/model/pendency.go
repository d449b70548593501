package model

import "time"

// Pendency — обязательство (pendência) по контракту со сроком исполнения.
type Pendency struct {
	ID                 int64     `json:"id"`
	ContratoID         int64     `json:"contrato_id"`
	Descricao          string    `json:"descricao"`
	DataPrazo          Date      `json:"data_prazo"`
	StatusPendenciaID  int64     `json:"status_pendencia_id"`
	CriadoPorUsuarioID int64     `json:"criado_por_usuario_id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`

	StatusNome    string `json:"status_nome,omitempty"`
	CriadoPorNome string `json:"criado_por_nome,omitempty"`
}

// PendencyReminder — открытое обязательство с данными для напоминания фискалу.
type PendencyReminder struct {
	PendenciaID int64
	Descricao   string
	DataPrazo   Date
	ContratoID  int64
	NrContrato  string
	FiscalNome  string
	FiscalEmail string
}
