package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/sigescon/internal/domain/model"
)

// LookupRepository — CRUD справочников. Вид справочника задаёт таблицу;
// имя таблицы берётся только из перечня model.LookupKinds.
type LookupRepository interface {
	Create(ctx context.Context, kind model.LookupKind, nome string) (*model.Lookup, error)
	List(ctx context.Context, kind model.LookupKind) ([]*model.Lookup, error)
	GetByID(ctx context.Context, kind model.LookupKind, id int64) (*model.Lookup, error)
	GetByName(ctx context.Context, kind model.LookupKind, nome string) (*model.Lookup, error)
	Update(ctx context.Context, kind model.LookupKind, id int64, nome string) (*model.Lookup, error)
	// Delete выполняет soft delete.
	Delete(ctx context.Context, kind model.LookupKind, id int64) error
	// InUse сообщает, ссылаются ли на запись активные строки.
	InUse(ctx context.Context, kind model.LookupKind, id int64) (bool, error)
}

// lookupUsage — запрос проверки использования записи справочника.
var lookupUsage = map[model.LookupKind]string{
	model.KindPerfil:          `SELECT EXISTS (SELECT 1 FROM usuario_ativo WHERE perfil_id = $1)`,
	model.KindModalidade:      `SELECT EXISTS (SELECT 1 FROM contrato_ativo WHERE modalidade_id = $1)`,
	model.KindStatus:          `SELECT EXISTS (SELECT 1 FROM contrato_ativo WHERE status_id = $1)`,
	model.KindStatusRelatorio: `SELECT EXISTS (SELECT 1 FROM relatoriofiscal WHERE status_id = $1)`,
	model.KindStatusPendencia: `SELECT EXISTS (SELECT 1 FROM pendenciarelatorio WHERE status_pendencia_id = $1)`,
}

type lookupRepo struct {
	db DBTX
}

// NewLookupRepository создаёт репозиторий справочников.
func NewLookupRepository(db DBTX) LookupRepository {
	return &lookupRepo{db: db}
}

func tableFor(kind model.LookupKind) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("неизвестный справочник: %q", kind)
	}
	return string(kind), nil
}

func (r *lookupRepo) Create(ctx context.Context, kind model.LookupKind, nome string) (*model.Lookup, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	l := &model.Lookup{Nome: nome}
	query := fmt.Sprintf(`INSERT INTO %s (nome) VALUES ($1) RETURNING id, created_at, updated_at`, table)
	if err := r.db.QueryRow(ctx, query, nome).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, mapWriteError(err, "запись справочника")
	}
	return l, nil
}

func (r *lookupRepo) List(ctx context.Context, kind model.LookupKind) ([]*model.Lookup, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, nome, created_at, updated_at FROM %s_ativo ORDER BY nome`, table)
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения справочника %s: %w", table, err)
	}
	defer rows.Close()

	var result []*model.Lookup
	for rows.Next() {
		l := &model.Lookup{}
		if err := rows.Scan(&l.ID, &l.Nome, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования справочника: %w", err)
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

func (r *lookupRepo) GetByID(ctx context.Context, kind model.LookupKind, id int64) (*model.Lookup, error) {
	return r.getOne(ctx, kind, "id = $1", id)
}

func (r *lookupRepo) GetByName(ctx context.Context, kind model.LookupKind, nome string) (*model.Lookup, error) {
	return r.getOne(ctx, kind, "nome = $1", nome)
}

func (r *lookupRepo) getOne(ctx context.Context, kind model.LookupKind, cond string, arg any) (*model.Lookup, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, nome, created_at, updated_at FROM %s_ativo WHERE %s`, table, cond)
	l := &model.Lookup{}
	err = r.db.QueryRow(ctx, query, arg).Scan(&l.ID, &l.Nome, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи справочника %s: %w", table, err)
	}
	return l, nil
}

func (r *lookupRepo) Update(ctx context.Context, kind model.LookupKind, id int64, nome string) (*model.Lookup, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	l := &model.Lookup{ID: id, Nome: nome}
	query := fmt.Sprintf(`
		UPDATE %s SET nome = $2, updated_at = now()
		WHERE id = $1 AND ativo
		RETURNING created_at, updated_at`, table)
	err = r.db.QueryRow(ctx, query, id, nome).Scan(&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, mapWriteError(err, "запись справочника")
	}
	return l, nil
}

func (r *lookupRepo) Delete(ctx context.Context, kind model.LookupKind, id int64) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET ativo = FALSE, updated_at = now() WHERE id = $1 AND ativo`, table)
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи справочника %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *lookupRepo) InUse(ctx context.Context, kind model.LookupKind, id int64) (bool, error) {
	query, ok := lookupUsage[kind]
	if !ok {
		return false, fmt.Errorf("неизвестный справочник: %q", kind)
	}

	var used bool
	if err := r.db.QueryRow(ctx, query, id).Scan(&used); err != nil {
		return false, fmt.Errorf("ошибка проверки использования справочника %s: %w", kind, err)
	}
	return used, nil
}
