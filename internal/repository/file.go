package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/sigescon/internal/domain/model"
)

// FileRepository — метаданные файлов (таблица arquivo).
type FileRepository interface {
	Create(ctx context.Context, f *model.File) error
	GetByID(ctx context.Context, id int64) (*model.File, error)
	ListByContract(ctx context.Context, contractID int64) ([]*model.File, error)
	// Delete удаляет строку физически. Ссылки на файл снимаются заранее.
	Delete(ctx context.Context, id int64) error
}

type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий файлов.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

const fileColumns = `id, nome_arquivo, path_armazenamento, COALESCE(tipo_arquivo, ''),
	tamanho_bytes, COALESCE(checksum, ''), contrato_id, created_at`

func scanFile(row pgx.Row) (*model.File, error) {
	f := &model.File{}
	err := row.Scan(&f.ID, &f.NomeArquivo, &f.PathArmazenamento, &f.TipoArquivo,
		&f.TamanhoBytes, &f.Checksum, &f.ContratoID, &f.CreatedAt)
	return f, err
}

func (r *fileRepo) Create(ctx context.Context, f *model.File) error {
	query := `
		INSERT INTO arquivo (nome_arquivo, path_armazenamento, tipo_arquivo, tamanho_bytes, checksum, contrato_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		f.NomeArquivo, f.PathArmazenamento, f.TipoArquivo, f.TamanhoBytes, f.Checksum, f.ContratoID,
	).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		return mapWriteError(err, "файл")
	}
	return nil
}

func (r *fileRepo) GetByID(ctx context.Context, id int64) (*model.File, error) {
	f, err := scanFile(r.db.QueryRow(ctx, `SELECT `+fileColumns+` FROM arquivo WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

func (r *fileRepo) ListByContract(ctx context.Context, contractID int64) ([]*model.File, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+fileColumns+` FROM arquivo WHERE contrato_id = $1 ORDER BY created_at DESC, id DESC`, contractID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения файлов контракта: %w", err)
	}
	defer rows.Close()

	result := []*model.File{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (r *fileRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM arquivo WHERE id = $1`, id)
	if err != nil {
		return mapWriteError(err, "файл")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
