package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/sigescon/internal/domain/model"
)

// ContractedPartyRepository — интерфейс CRUD для таблицы contratado.
type ContractedPartyRepository interface {
	Create(ctx context.Context, p *model.ContractedParty) error
	GetByID(ctx context.Context, id int64) (*model.ContractedParty, error)
	List(ctx context.Context, limit, offset int) ([]*model.ContractedParty, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, id int64, upd model.ContractedPartyUpdate) error
	Delete(ctx context.Context, id int64) error
	// InUse сообщает, есть ли активные контракты с этим контрагентом.
	InUse(ctx context.Context, id int64) (bool, error)
}

type contractedPartyRepo struct {
	db DBTX
}

// NewContractedPartyRepository создаёт репозиторий контрагентов.
func NewContractedPartyRepository(db DBTX) ContractedPartyRepository {
	return &contractedPartyRepo{db: db}
}

const partyColumns = `id, nome, email, cnpj, cpf, telefone, ativo, created_at, updated_at`

func scanParty(row pgx.Row) (*model.ContractedParty, error) {
	p := &model.ContractedParty{}
	err := row.Scan(&p.ID, &p.Nome, &p.Email, &p.CNPJ, &p.CPF, &p.Telefone, &p.Ativo, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *contractedPartyRepo) Create(ctx context.Context, p *model.ContractedParty) error {
	query := `
		INSERT INTO contratado (nome, email, cnpj, cpf, telefone)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, ativo, created_at, updated_at`

	err := r.db.QueryRow(ctx, query, p.Nome, p.Email, p.CNPJ, p.CPF, p.Telefone).
		Scan(&p.ID, &p.Ativo, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "контрагент")
	}
	return nil
}

func (r *contractedPartyRepo) GetByID(ctx context.Context, id int64) (*model.ContractedParty, error) {
	query := `SELECT ` + partyColumns + ` FROM contratado_ativo WHERE id = $1`

	p, err := scanParty(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения контрагента: %w", err)
	}
	return p, nil
}

func (r *contractedPartyRepo) List(ctx context.Context, limit, offset int) ([]*model.ContractedParty, error) {
	query := `SELECT ` + partyColumns + ` FROM contratado_ativo ORDER BY nome, id LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка контрагентов: %w", err)
	}
	defer rows.Close()

	var result []*model.ContractedParty
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования контрагента: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *contractedPartyRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM contratado_ativo`).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта контрагентов: %w", err)
	}
	return count, nil
}

func (r *contractedPartyRepo) Update(ctx context.Context, id int64, upd model.ContractedPartyUpdate) error {
	var b setBuilder
	if upd.Nome != nil {
		b.add("nome", *upd.Nome)
	}
	if upd.Email != nil {
		b.add("email", *upd.Email)
	}
	if upd.CNPJ != nil {
		b.add("cnpj", *upd.CNPJ)
	}
	if upd.CPF != nil {
		b.add("cpf", *upd.CPF)
	}
	if upd.Telefone != nil {
		b.add("telefone", *upd.Telefone)
	}
	if b.empty() {
		return nil
	}

	set, argNum := b.build()
	query := fmt.Sprintf(`UPDATE contratado SET %s WHERE id = $%d AND ativo`, set, argNum)
	tag, err := r.db.Exec(ctx, query, append(b.args, id)...)
	if err != nil {
		return mapWriteError(err, "контрагент")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *contractedPartyRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE contratado SET ativo = FALSE, updated_at = now() WHERE id = $1 AND ativo`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления контрагента: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *contractedPartyRepo) InUse(ctx context.Context, id int64) (bool, error) {
	var used bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM contrato_ativo WHERE contratado_id = $1)`, id).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки использования контрагента: %w", err)
	}
	return used, nil
}
