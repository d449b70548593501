package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/sigescon/internal/domain/model"
)

// PendencyRepository — доступ к таблице pendenciarelatorio.
type PendencyRepository interface {
	Create(ctx context.Context, p *model.Pendency) error
	GetByID(ctx context.Context, id int64) (*model.Pendency, error)
	// ListByContract возвращает обязательства контракта по возрастанию срока.
	ListByContract(ctx context.Context, contractID int64) ([]*model.Pendency, error)
	// SetStatus безусловно перезаписывает статус.
	SetStatus(ctx context.Context, id, statusID int64) error
	// ConcludeIfPending переводит обязательство из fromStatusID в toStatusID.
	// Возвращает false, если обязательство уже не в fromStatusID.
	ConcludeIfPending(ctx context.Context, id, fromStatusID, toStatusID int64) (bool, error)
	// ListRemindable возвращает обязательства со статусом statusName
	// по активным контрактам вместе с активным фискалом контракта.
	ListRemindable(ctx context.Context, statusName string) ([]*model.PendencyReminder, error)
}

type pendencyRepo struct {
	db DBTX
}

// NewPendencyRepository создаёт репозиторий обязательств.
func NewPendencyRepository(db DBTX) PendencyRepository {
	return &pendencyRepo{db: db}
}

const pendencySelect = `
	SELECT p.id, p.contrato_id, p.descricao, p.data_prazo, p.status_pendencia_id,
		p.criado_por_usuario_id, p.created_at, p.updated_at, s.nome, u.nome
	FROM pendenciarelatorio p
	JOIN statuspendencia s ON s.id = p.status_pendencia_id
	JOIN usuario u ON u.id = p.criado_por_usuario_id`

func scanPendency(row pgx.Row) (*model.Pendency, error) {
	p := &model.Pendency{}
	err := row.Scan(
		&p.ID, &p.ContratoID, &p.Descricao, &p.DataPrazo.Time, &p.StatusPendenciaID,
		&p.CriadoPorUsuarioID, &p.CreatedAt, &p.UpdatedAt, &p.StatusNome, &p.CriadoPorNome,
	)
	return p, err
}

func (r *pendencyRepo) Create(ctx context.Context, p *model.Pendency) error {
	query := `
		INSERT INTO pendenciarelatorio (contrato_id, descricao, data_prazo, status_pendencia_id, criado_por_usuario_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		p.ContratoID, p.Descricao, p.DataPrazo.Time, p.StatusPendenciaID, p.CriadoPorUsuarioID,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "обязательство")
	}
	return nil
}

func (r *pendencyRepo) GetByID(ctx context.Context, id int64) (*model.Pendency, error) {
	p, err := scanPendency(r.db.QueryRow(ctx, pendencySelect+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения обязательства: %w", err)
	}
	return p, nil
}

func (r *pendencyRepo) ListByContract(ctx context.Context, contractID int64) ([]*model.Pendency, error) {
	rows, err := r.db.Query(ctx,
		pendencySelect+` WHERE p.contrato_id = $1 ORDER BY p.data_prazo ASC, p.id ASC`, contractID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения обязательств контракта: %w", err)
	}
	defer rows.Close()

	result := []*model.Pendency{}
	for rows.Next() {
		p, err := scanPendency(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования обязательства: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *pendencyRepo) SetStatus(ctx context.Context, id, statusID int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE pendenciarelatorio SET status_pendencia_id = $2, updated_at = now() WHERE id = $1`,
		id, statusID)
	if err != nil {
		return mapWriteError(err, "статус обязательства")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pendencyRepo) ConcludeIfPending(ctx context.Context, id, fromStatusID, toStatusID int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE pendenciarelatorio SET status_pendencia_id = $3, updated_at = now()
		WHERE id = $1 AND status_pendencia_id = $2`,
		id, fromStatusID, toStatusID)
	if err != nil {
		return false, fmt.Errorf("ошибка завершения обязательства: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *pendencyRepo) ListRemindable(ctx context.Context, statusName string) ([]*model.PendencyReminder, error) {
	query := `
		SELECT p.id, p.descricao, p.data_prazo, c.id, c.nr_contrato, u.nome, u.email
		FROM pendenciarelatorio p
		JOIN statuspendencia s ON s.id = p.status_pendencia_id
		JOIN contrato_ativo c ON c.id = p.contrato_id
		JOIN usuario_ativo u ON u.id = c.fiscal_id
		WHERE s.nome = $1
		ORDER BY p.data_prazo ASC, p.id ASC`

	rows, err := r.db.Query(ctx, query, statusName)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки обязательств для напоминаний: %w", err)
	}
	defer rows.Close()

	var result []*model.PendencyReminder
	for rows.Next() {
		m := &model.PendencyReminder{}
		if err := rows.Scan(
			&m.PendenciaID, &m.Descricao, &m.DataPrazo.Time, &m.ContratoID,
			&m.NrContrato, &m.FiscalNome, &m.FiscalEmail,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования обязательства: %w", err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}
