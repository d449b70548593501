package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/sigescon/internal/domain/model"
)

// ReportRepository — доступ к таблице relatoriofiscal.
// Отчёты не удаляются.
type ReportRepository interface {
	Create(ctx context.Context, r *model.Report) error
	GetByID(ctx context.Context, id int64) (*model.Report, error)
	// ListByContract возвращает отчёты контракта, новые первыми.
	ListByContract(ctx context.Context, contractID int64) ([]*model.Report, error)
	// Analyze одной командой задаёт статус, утверждающего, замечания и дату анализа.
	Analyze(ctx context.Context, id, statusID, approverID int64, remarks *string) error
	// Resubmit перепривязывает файл, заменяет замечания фискала, задаёт статус
	// и очищает поля анализа.
	Resubmit(ctx context.Context, id, fileID, statusID int64, remarks *string) error
	// CountByFile — число отчётов, вложением которых является файл.
	CountByFile(ctx context.Context, fileID int64) (int, error)
}

type reportRepo struct {
	db DBTX
}

// NewReportRepository создаёт репозиторий отчётов.
func NewReportRepository(db DBTX) ReportRepository {
	return &reportRepo{db: db}
}

const reportSelect = `
	SELECT r.id, r.contrato_id, r.fiscal_usuario_id, r.arquivo_id, r.status_id,
		r.mes_competencia, r.observacoes_fiscal, r.aprovador_usuario_id,
		r.observacoes_aprovador, r.data_analise, r.pendencia_id, r.created_at, r.updated_at,
		u.nome, s.nome, a.nome_arquivo
	FROM relatoriofiscal r
	JOIN usuario u ON u.id = r.fiscal_usuario_id
	JOIN statusrelatorio s ON s.id = r.status_id
	JOIN arquivo a ON a.id = r.arquivo_id`

func scanReport(row pgx.Row) (*model.Report, error) {
	rep := &model.Report{}
	err := row.Scan(
		&rep.ID, &rep.ContratoID, &rep.FiscalUsuarioID, &rep.ArquivoID, &rep.StatusID,
		&rep.MesCompetencia.Time, &rep.ObservacoesFiscal, &rep.AprovadorUsuarioID,
		&rep.ObservacoesAprovador, &rep.DataAnalise, &rep.PendenciaID, &rep.CreatedAt, &rep.UpdatedAt,
		&rep.EnviadoPor, &rep.StatusRelatorio, &rep.NomeArquivo,
	)
	return rep, err
}

func (r *reportRepo) Create(ctx context.Context, rep *model.Report) error {
	query := `
		INSERT INTO relatoriofiscal (contrato_id, fiscal_usuario_id, arquivo_id, status_id,
			mes_competencia, observacoes_fiscal, pendencia_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		rep.ContratoID, rep.FiscalUsuarioID, rep.ArquivoID, rep.StatusID,
		rep.MesCompetencia.Time, rep.ObservacoesFiscal, rep.PendenciaID,
	).Scan(&rep.ID, &rep.CreatedAt, &rep.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "отчёт")
	}
	return nil
}

func (r *reportRepo) GetByID(ctx context.Context, id int64) (*model.Report, error) {
	rep, err := scanReport(r.db.QueryRow(ctx, reportSelect+` WHERE r.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения отчёта: %w", err)
	}
	return rep, nil
}

func (r *reportRepo) ListByContract(ctx context.Context, contractID int64) ([]*model.Report, error) {
	rows, err := r.db.Query(ctx,
		reportSelect+` WHERE r.contrato_id = $1 ORDER BY r.created_at DESC, r.id DESC`, contractID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения отчётов контракта: %w", err)
	}
	defer rows.Close()

	result := []*model.Report{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования отчёта: %w", err)
		}
		result = append(result, rep)
	}
	return result, rows.Err()
}

func (r *reportRepo) Analyze(ctx context.Context, id, statusID, approverID int64, remarks *string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE relatoriofiscal
		SET status_id = $2, aprovador_usuario_id = $3, observacoes_aprovador = $4,
			data_analise = now(), updated_at = now()
		WHERE id = $1`,
		id, statusID, approverID, remarks)
	if err != nil {
		return mapWriteError(err, "анализ отчёта")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *reportRepo) Resubmit(ctx context.Context, id, fileID, statusID int64, remarks *string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE relatoriofiscal
		SET arquivo_id = $2, status_id = $3, observacoes_fiscal = $4,
			aprovador_usuario_id = NULL, observacoes_aprovador = NULL, data_analise = NULL,
			updated_at = now()
		WHERE id = $1`,
		id, fileID, statusID, remarks)
	if err != nil {
		return mapWriteError(err, "повторная отправка отчёта")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *reportRepo) CountByFile(ctx context.Context, fileID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM relatoriofiscal WHERE arquivo_id = $1`, fileID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта отчётов по файлу: %w", err)
	}
	return count, nil
}
