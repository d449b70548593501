package model

import "time"

// File — метаданные загруженного файла. Файл всегда принадлежит контракту.
type File struct {
	ID          int64  `json:"id"`
	NomeArquivo string `json:"nome_arquivo"`
	// PathArmazenamento — относительный путь в хранилище, наружу не отдаётся.
	PathArmazenamento string    `json:"-"`
	TipoArquivo       string    `json:"tipo_arquivo"`
	TamanhoBytes      int64     `json:"tamanho_bytes"`
	Checksum          string    `json:"checksum"`
	ContratoID        int64     `json:"contrato_id"`
	CreatedAt         time.Time `json:"created_at"`
}
