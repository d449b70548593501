package model

import "time"

// Report — отчёт фискала (relatório fiscal) по контракту.
type Report struct {
	ID                   int64      `json:"id"`
	ContratoID           int64      `json:"contrato_id"`
	FiscalUsuarioID      int64      `json:"fiscal_usuario_id"`
	ArquivoID            int64      `json:"arquivo_id"`
	StatusID             int64      `json:"status_id"`
	MesCompetencia       Date       `json:"mes_competencia"`
	ObservacoesFiscal    *string    `json:"observacoes_fiscal"`
	AprovadorUsuarioID   *int64     `json:"aprovador_usuario_id"`
	ObservacoesAprovador *string    `json:"observacoes_aprovador"`
	DataAnalise          *time.Time `json:"data_analise"`
	// PendenciaID задаётся при первой отправке и больше не меняется.
	PendenciaID *int64    `json:"pendencia_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	EnviadoPor      string `json:"enviado_por,omitempty"`
	StatusRelatorio string `json:"status_relatorio,omitempty"`
	NomeArquivo     string `json:"nome_arquivo,omitempty"`
}
