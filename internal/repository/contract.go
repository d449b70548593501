package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/sigescon/internal/domain/model"
)

// ContractRepository — интерфейс CRUD и выборок для таблицы contrato.
type ContractRepository interface {
	Create(ctx context.Context, c *model.Contract) error
	// GetByID возвращает активный контракт с именами связанных сущностей.
	GetByID(ctx context.Context, id int64) (*model.Contract, error)
	List(ctx context.Context, filter model.ContractFilter, limit, offset int) ([]*model.ContractSummary, error)
	Count(ctx context.Context, filter model.ContractFilter) (int, error)
	Update(ctx context.Context, id int64, upd model.ContractUpdate) error
	// SetDocument задаёт основной документ контракта (nil — очистить).
	SetDocument(ctx context.Context, id int64, fileID *int64) error
	// UnlinkDocument снимает ссылку на файл со всех контрактов.
	UnlinkDocument(ctx context.Context, fileID int64) error
	// Delete выполняет soft delete.
	Delete(ctx context.Context, id int64) error
}

type contractRepo struct {
	db DBTX
}

// NewContractRepository создаёт репозиторий контрактов.
func NewContractRepository(db DBTX) ContractRepository {
	return &contractRepo{db: db}
}

func (r *contractRepo) Create(ctx context.Context, c *model.Contract) error {
	query := `
		INSERT INTO contrato (nr_contrato, objeto, valor_anual, valor_global, base_legal,
			data_inicio, data_fim, termos_contratuais, contratado_id, modalidade_id,
			status_id, gestor_id, fiscal_id, fiscal_substituto_id, pae, doe, data_doe, documento)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id, ativo, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		c.NrContrato, c.Objeto, c.ValorAnual, c.ValorGlobal, c.BaseLegal,
		c.DataInicio.Time, c.DataFim.Time, c.TermosContratuais, c.ContratadoID, c.ModalidadeID,
		c.StatusID, c.GestorID, c.FiscalID, c.FiscalSubstitutoID, c.PAE, c.DOE, c.DataDOE.TimePtr(), c.Documento,
	).Scan(&c.ID, &c.Ativo, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "контракт")
	}
	return nil
}

func (r *contractRepo) GetByID(ctx context.Context, id int64) (*model.Contract, error) {
	query := `
		SELECT c.id, c.nr_contrato, c.objeto, c.valor_anual, c.valor_global, c.base_legal,
			c.data_inicio, c.data_fim, c.termos_contratuais, c.contratado_id, c.modalidade_id,
			c.status_id, c.gestor_id, c.fiscal_id, c.fiscal_substituto_id, c.pae, c.doe,
			c.data_doe, c.documento, c.ativo, c.created_at, c.updated_at,
			ct.nome, ct.cnpj, m.nome, s.nome, g.nome, f.nome, fs.nome
		FROM contrato_ativo c
		JOIN contratado ct ON ct.id = c.contratado_id
		JOIN modalidade m ON m.id = c.modalidade_id
		JOIN status s ON s.id = c.status_id
		JOIN usuario g ON g.id = c.gestor_id
		JOIN usuario f ON f.id = c.fiscal_id
		LEFT JOIN usuario fs ON fs.id = c.fiscal_substituto_id
		WHERE c.id = $1`

	c := &model.Contract{}
	var dataDOE *time.Time
	err := r.db.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.NrContrato, &c.Objeto, &c.ValorAnual, &c.ValorGlobal, &c.BaseLegal,
		&c.DataInicio.Time, &c.DataFim.Time, &c.TermosContratuais, &c.ContratadoID, &c.ModalidadeID,
		&c.StatusID, &c.GestorID, &c.FiscalID, &c.FiscalSubstitutoID, &c.PAE, &c.DOE,
		&dataDOE, &c.Documento, &c.Ativo, &c.CreatedAt, &c.UpdatedAt,
		&c.ContratadoNome, &c.ContratadoCNPJ, &c.ModalidadeNome, &c.StatusNome,
		&c.GestorNome, &c.FiscalNome, &c.FiscalSubstitutoNome,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения контракта: %w", err)
	}
	c.DataDOE = model.DatePtr(dataDOE)
	return c, nil
}

// buildContractWhere строит WHERE-условие и аргументы для фильтрации контрактов.
func buildContractWhere(filter model.ContractFilter, startArg int) (string, []any) {
	var conditions []string
	var args []any
	argNum := startArg

	if filter.GestorID != nil {
		conditions = append(conditions, fmt.Sprintf("c.gestor_id = $%d", argNum))
		args = append(args, *filter.GestorID)
		argNum++
	}
	if filter.FiscalID != nil {
		conditions = append(conditions, fmt.Sprintf("c.fiscal_id = $%d", argNum))
		args = append(args, *filter.FiscalID)
		argNum++
	}
	if filter.Objeto != nil {
		conditions = append(conditions, fmt.Sprintf("c.objeto ILIKE '%%' || $%d || '%%'", argNum))
		args = append(args, *filter.Objeto)
		argNum++
	}
	if filter.NrContrato != nil {
		conditions = append(conditions, fmt.Sprintf("c.nr_contrato = $%d", argNum))
		args = append(args, *filter.NrContrato)
		argNum++
	}
	if filter.StatusID != nil {
		conditions = append(conditions, fmt.Sprintf("c.status_id = $%d", argNum))
		args = append(args, *filter.StatusID)
		argNum++
	}
	if filter.PAE != nil {
		conditions = append(conditions, fmt.Sprintf("c.pae = $%d", argNum))
		args = append(args, *filter.PAE)
		argNum++
	}
	if filter.Ano != nil {
		conditions = append(conditions, fmt.Sprintf("EXTRACT(YEAR FROM c.data_inicio) = $%d", argNum))
		args = append(args, *filter.Ano)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args
}

func (r *contractRepo) List(ctx context.Context, filter model.ContractFilter, limit, offset int) ([]*model.ContractSummary, error) {
	where, args := buildContractWhere(filter, 1)
	argNum := len(args) + 1

	query := fmt.Sprintf(`
		SELECT c.id, c.nr_contrato, c.objeto, c.data_inicio, c.data_fim,
			ct.nome, m.nome, s.nome, c.gestor_id, c.fiscal_id
		FROM contrato_ativo c
		JOIN contratado ct ON ct.id = c.contratado_id
		JOIN modalidade m ON m.id = c.modalidade_id
		JOIN status s ON s.id = c.status_id
		%s
		ORDER BY c.data_fim DESC, c.id DESC
		LIMIT $%d OFFSET $%d`, where, argNum, argNum+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка контрактов: %w", err)
	}
	defer rows.Close()

	var result []*model.ContractSummary
	for rows.Next() {
		s := &model.ContractSummary{}
		if err := rows.Scan(
			&s.ID, &s.NrContrato, &s.Objeto, &s.DataInicio.Time, &s.DataFim.Time,
			&s.ContratadoNome, &s.ModalidadeNome, &s.StatusNome, &s.GestorID, &s.FiscalID,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования контракта: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *contractRepo) Count(ctx context.Context, filter model.ContractFilter) (int, error) {
	where, args := buildContractWhere(filter, 1)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM contrato_ativo c %s`, where)

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта контрактов: %w", err)
	}
	return count, nil
}

func (r *contractRepo) Update(ctx context.Context, id int64, upd model.ContractUpdate) error {
	var b setBuilder
	if upd.NrContrato != nil {
		b.add("nr_contrato", *upd.NrContrato)
	}
	if upd.Objeto != nil {
		b.add("objeto", *upd.Objeto)
	}
	if upd.ValorAnual != nil {
		b.add("valor_anual", *upd.ValorAnual)
	}
	if upd.ValorGlobal != nil {
		b.add("valor_global", *upd.ValorGlobal)
	}
	if upd.BaseLegal != nil {
		b.add("base_legal", *upd.BaseLegal)
	}
	if upd.DataInicio != nil {
		b.add("data_inicio", upd.DataInicio.Time)
	}
	if upd.DataFim != nil {
		b.add("data_fim", upd.DataFim.Time)
	}
	if upd.TermosContratuais != nil {
		b.add("termos_contratuais", *upd.TermosContratuais)
	}
	if upd.ContratadoID != nil {
		b.add("contratado_id", *upd.ContratadoID)
	}
	if upd.ModalidadeID != nil {
		b.add("modalidade_id", *upd.ModalidadeID)
	}
	if upd.StatusID != nil {
		b.add("status_id", *upd.StatusID)
	}
	if upd.GestorID != nil {
		b.add("gestor_id", *upd.GestorID)
	}
	if upd.FiscalID != nil {
		b.add("fiscal_id", *upd.FiscalID)
	}
	if upd.FiscalSubstitutoID != nil {
		b.add("fiscal_substituto_id", *upd.FiscalSubstitutoID)
	}
	if upd.PAE != nil {
		b.add("pae", *upd.PAE)
	}
	if upd.DOE != nil {
		b.add("doe", *upd.DOE)
	}
	if upd.DataDOE != nil {
		b.add("data_doe", upd.DataDOE.Time)
	}
	if b.empty() {
		return nil
	}

	set, argNum := b.build()
	query := fmt.Sprintf(`UPDATE contrato SET %s WHERE id = $%d AND ativo`, set, argNum)
	tag, err := r.db.Exec(ctx, query, append(b.args, id)...)
	if err != nil {
		return mapWriteError(err, "контракт")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *contractRepo) SetDocument(ctx context.Context, id int64, fileID *int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE contrato SET documento = $2, updated_at = now() WHERE id = $1 AND ativo`, id, fileID)
	if err != nil {
		return mapWriteError(err, "документ контракта")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *contractRepo) UnlinkDocument(ctx context.Context, fileID int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE contrato SET documento = NULL, updated_at = now() WHERE documento = $1`, fileID)
	if err != nil {
		return fmt.Errorf("ошибка снятия ссылки на документ: %w", err)
	}
	return nil
}

func (r *contractRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE contrato SET ativo = FALSE, updated_at = now() WHERE id = $1 AND ativo`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления контракта: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
