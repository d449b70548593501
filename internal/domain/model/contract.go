package model

import "time"

// Contract — контракт, корневой агрегат для обязательств, отчётов и файлов.
type Contract struct {
	ID                 int64    `json:"id"`
	NrContrato         string   `json:"nr_contrato"`
	Objeto             string   `json:"objeto"`
	ValorAnual         *float64 `json:"valor_anual"`
	ValorGlobal        *float64 `json:"valor_global"`
	BaseLegal          *string  `json:"base_legal"`
	DataInicio         Date     `json:"data_inicio"`
	DataFim            Date     `json:"data_fim"`
	TermosContratuais  *string  `json:"termos_contratuais"`
	ContratadoID       int64    `json:"contratado_id"`
	ModalidadeID       int64    `json:"modalidade_id"`
	StatusID           int64    `json:"status_id"`
	GestorID           int64    `json:"gestor_id"`
	FiscalID           int64    `json:"fiscal_id"`
	FiscalSubstitutoID *int64   `json:"fiscal_substituto_id"`
	PAE                *string  `json:"pae"`
	DOE                *string  `json:"doe"`
	DataDOE            *Date    `json:"data_doe"`
	// Documento — id основного документа (arquivo), опционально.
	Documento *int64    `json:"documento"`
	Ativo     bool      `json:"ativo"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Поля из JOIN (заполняются при чтении).
	ContratadoNome       string  `json:"contratado_nome,omitempty"`
	ContratadoCNPJ       *string `json:"contratado_cnpj,omitempty"`
	ModalidadeNome       string  `json:"modalidade_nome,omitempty"`
	StatusNome           string  `json:"status_nome,omitempty"`
	GestorNome           string  `json:"gestor_nome,omitempty"`
	FiscalNome           string  `json:"fiscal_nome,omitempty"`
	FiscalSubstitutoNome *string `json:"fiscal_substituto_nome,omitempty"`

	Relatorios []*Report `json:"relatorios_fiscais,omitempty"`
}

// ContractSummary — строка списка контрактов.
type ContractSummary struct {
	ID             int64  `json:"id"`
	NrContrato     string `json:"nr_contrato"`
	Objeto         string `json:"objeto"`
	DataInicio     Date   `json:"data_inicio"`
	DataFim        Date   `json:"data_fim"`
	ContratadoNome string `json:"contratado_nome"`
	ModalidadeNome string `json:"modalidade_nome"`
	StatusNome     string `json:"status_nome"`
	GestorID       int64  `json:"gestor_id"`
	FiscalID       int64  `json:"fiscal_id"`
}

// ContractFilter — фильтры списка контрактов. nil — фильтр не применяется.
type ContractFilter struct {
	GestorID   *int64
	FiscalID   *int64
	Objeto     *string
	NrContrato *string
	StatusID   *int64
	PAE        *string
	Ano        *int
}

// ContractUpdate — разрешённые для изменения поля контракта.
// Гестор и фискал могут быть заменены, но не очищены.
type ContractUpdate struct {
	NrContrato         *string  `json:"nr_contrato"`
	Objeto             *string  `json:"objeto"`
	ValorAnual         *float64 `json:"valor_anual"`
	ValorGlobal        *float64 `json:"valor_global"`
	BaseLegal          *string  `json:"base_legal"`
	DataInicio         *Date    `json:"data_inicio"`
	DataFim            *Date    `json:"data_fim"`
	TermosContratuais  *string  `json:"termos_contratuais"`
	ContratadoID       *int64   `json:"contratado_id"`
	ModalidadeID       *int64   `json:"modalidade_id"`
	StatusID           *int64   `json:"status_id"`
	GestorID           *int64   `json:"gestor_id"`
	FiscalID           *int64   `json:"fiscal_id"`
	FiscalSubstitutoID *int64   `json:"fiscal_substituto_id"`
	PAE                *string  `json:"pae"`
	DOE                *string  `json:"doe"`
	DataDOE            *Date    `json:"data_doe"`
}

// IsEmpty сообщает, что ни одно поле не задано.
func (u ContractUpdate) IsEmpty() bool {
	return u == ContractUpdate{}
}
