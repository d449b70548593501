// reports.go — Report Workflow: отправка, анализ и повторная отправка отчётов.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/sigescon/internal/domain/model"
	"github.com/bigkaa/sigescon/internal/domain/rbac"
	"github.com/bigkaa/sigescon/internal/domain/workflow"
	"github.com/bigkaa/sigescon/internal/notify"
	"github.com/bigkaa/sigescon/internal/repository"
)

// SubmitReportInput — поля multipart-формы отправки отчёта.
// Статус от клиента не принимается.
type SubmitReportInput struct {
	MesCompetencia    *model.Date
	FiscalUsuarioID   int64
	PendenciaID       int64
	ObservacoesFiscal *string
	Arquivo           *Upload
}

// AnalyzeReportInput — решение администратора по отчёту.
type AnalyzeReportInput struct {
	AprovadorUsuarioID   int64   `json:"aprovador_usuario_id"`
	StatusID             int64   `json:"status_id"`
	ObservacoesAprovador *string `json:"observacoes_aprovador"`
}

// ResubmitReportInput — исправленная версия отчёта.
type ResubmitReportInput struct {
	ObservacoesFiscal *string
	Arquivo           *Upload
}

// ReportService реализует жизненный цикл отчёта фискала.
type ReportService struct {
	repos    *repository.Repositories
	tx       Transactor
	files    *FileService
	lookups  *LookupService
	notifier Notifier
	logger   *slog.Logger
}

// NewReportService создаёт сервис отчётов.
func NewReportService(repos *repository.Repositories, tx Transactor, files *FileService,
	lookups *LookupService, notifier Notifier, logger *slog.Logger,
) *ReportService {
	return &ReportService{
		repos:    repos,
		tx:       tx,
		files:    files,
		lookups:  lookups,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "report_service")),
	}
}

// Submit принимает отчёт по открытому обязательству. Файл, строка отчёта
// и завершение обязательства фиксируются одной транзакцией.
func (s *ReportService) Submit(ctx context.Context, caller Caller, contractID int64, in SubmitReportInput) (*model.Report, error) {
	if in.MesCompetencia == nil || in.FiscalUsuarioID == 0 {
		return nil, validationf("поля mes_competencia и fiscal_usuario_id обязательны")
	}
	if in.PendenciaID == 0 {
		return nil, validationf("поле pendencia_id обязательно: отчёт всегда отвечает на обязательство")
	}
	if err := in.Arquivo.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.repos.Contracts.GetByID(ctx, contractID); err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("контракт с id %d", contractID), "получение контракта")
	}
	if _, err := s.repos.Users.GetByID(ctx, in.FiscalUsuarioID); err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("пользователь с id %d", in.FiscalUsuarioID), "получение пользователя")
	}
	if caller.Perfil == rbac.RoleFiscal && caller.UserID != in.FiscalUsuarioID {
		return nil, fmt.Errorf("%w: фискал может отправлять отчёты только от своего имени", ErrForbidden)
	}
	p, err := s.repos.Pendencies.GetByID(ctx, in.PendenciaID)
	if err != nil || p.ContratoID != contractID {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("получение обязательства: %w", err)
		}
		return nil, notFoundf("обязательство с id %d не найдено в контракте %d", in.PendenciaID, contractID)
	}

	reportStatusID, err := s.lookups.IDByName(ctx, model.KindStatusRelatorio, string(workflow.InitialState()))
	if err != nil {
		return nil, err
	}
	pendingID, err := s.lookups.IDByName(ctx, model.KindStatusPendencia, string(workflow.PendencyPending))
	if err != nil {
		return nil, err
	}
	concludedID, err := s.lookups.IDByName(ctx, model.KindStatusPendencia, string(workflow.PendencyConcluded))
	if err != nil {
		return nil, err
	}

	pendenciaID := in.PendenciaID
	rep := &model.Report{
		ContratoID:        contractID,
		FiscalUsuarioID:   in.FiscalUsuarioID,
		StatusID:          reportStatusID,
		MesCompetencia:    in.MesCompetencia.FirstOfMonth(),
		ObservacoesFiscal: in.ObservacoesFiscal,
		PendenciaID:       &pendenciaID,
	}

	var cleanup func()
	err = s.tx.InTx(ctx, func(repos *repository.Repositories) error {
		f, c, err := s.files.Save(ctx, repos, in.Arquivo, contractID)
		if err != nil {
			return err
		}
		cleanup = c
		rep.ArquivoID = f.ID

		if err := repos.Reports.Create(ctx, rep); err != nil {
			return mapRepoError(err, "отчёт", "создание отчёта")
		}
		concluded, err := repos.Pendencies.ConcludeIfPending(ctx, pendenciaID, pendingID, concludedID)
		if err != nil {
			return err
		}
		if !concluded {
			return conflictf("обязательство с id %d уже не в статусе %q", pendenciaID, workflow.PendencyPending)
		}
		return nil
	})
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		return nil, err
	}

	s.logger.Info("Отчёт отправлен",
		slog.Int64("report_id", rep.ID),
		slog.Int64("contract_id", contractID),
		slog.Int64("pendency_id", pendenciaID),
		slog.Int64("fiscal_id", in.FiscalUsuarioID),
	)
	return s.get(ctx, rep.ID)
}

func (s *ReportService) get(ctx context.Context, id int64) (*model.Report, error) {
	rep, err := s.repos.Reports.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("отчёт с id %d", id), "получение отчёта")
	}
	return rep, nil
}

// Get возвращает отчёт контракта.
func (s *ReportService) Get(ctx context.Context, contractID, id int64) (*model.Report, error) {
	rep, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rep.ContratoID != contractID {
		return nil, notFoundf("отчёт с id %d не найден в контракте %d", id, contractID)
	}
	return rep, nil
}

// List возвращает отчёты контракта, новые первыми.
func (s *ReportService) List(ctx context.Context, contractID int64) ([]*model.Report, error) {
	if _, err := s.repos.Contracts.GetByID(ctx, contractID); err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("контракт с id %d", contractID), "получение контракта")
	}
	items, err := s.repos.Reports.ListByContract(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("получение отчётов: %w", err)
	}
	return items, nil
}

// Analyze фиксирует решение администратора. При отклонении фискал
// получает письмо; сбой отправки не отменяет решение.
func (s *ReportService) Analyze(ctx context.Context, contractID, id int64, in AnalyzeReportInput) (*model.Report, error) {
	if in.AprovadorUsuarioID == 0 || in.StatusID == 0 {
		return nil, validationf("поля aprovador_usuario_id и status_id обязательны")
	}
	rep, err := s.Get(ctx, contractID, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.repos.Users.GetByID(ctx, in.AprovadorUsuarioID); err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("пользователь с id %d", in.AprovadorUsuarioID), "получение пользователя")
	}
	status, err := s.lookups.Get(ctx, model.KindStatusRelatorio, in.StatusID)
	if err != nil {
		return nil, err
	}

	from, err := workflow.ParseState(rep.StatusRelatorio)
	if err != nil {
		return nil, fmt.Errorf("отчёт %d: %w", id, err)
	}
	to, err := workflow.ParseState(status.Nome)
	if err != nil {
		return nil, validationf("статус %q не является решением по отчёту", status.Nome)
	}
	if err := workflow.Transition(workflow.ActionAnalyze, from, to); err != nil {
		return nil, transitionError(err)
	}

	if err := s.repos.Reports.Analyze(ctx, id, in.StatusID, in.AprovadorUsuarioID, in.ObservacoesAprovador); err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("отчёт с id %d", id), "анализ отчёта")
	}
	s.logger.Info("Отчёт проанализирован",
		slog.Int64("report_id", id),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.Int64("aprovador_id", in.AprovadorUsuarioID),
	)

	updated, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if workflow.NotifiesInspector(to) {
		s.notifyRejection(ctx, updated, in.ObservacoesAprovador)
	}
	return updated, nil
}

func (s *ReportService) notifyRejection(ctx context.Context, rep *model.Report, remarks *string) {
	fiscal, err := s.repos.Users.GetByID(ctx, rep.FiscalUsuarioID)
	if err != nil {
		s.logger.Warn("Не удалось получить фискала для уведомления",
			slog.Int64("report_id", rep.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	contract, err := s.repos.Contracts.GetByID(ctx, rep.ContratoID)
	if err != nil {
		s.logger.Warn("Не удалось получить контракт для уведомления",
			slog.Int64("report_id", rep.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	obs := ""
	if remarks != nil {
		obs = *remarks
	}
	msg := notify.RejectionMessage(fiscal.Nome, contract.NrContrato, rep.MesCompetencia, obs)
	// Ошибка уже залогирована Notifier.
	_ = s.notifier.Notify(ctx, notify.KindRejection, fiscal.Email, msg)
}

// Resubmit заменяет файл отклонённого отчёта и возвращает его на анализ.
func (s *ReportService) Resubmit(ctx context.Context, caller Caller, contractID, id int64, in ResubmitReportInput) (*model.Report, error) {
	if err := in.Arquivo.Validate(); err != nil {
		return nil, err
	}
	rep, err := s.Get(ctx, contractID, id)
	if err != nil {
		return nil, err
	}
	if caller.Perfil == rbac.RoleFiscal && caller.UserID != rep.FiscalUsuarioID {
		return nil, fmt.Errorf("%w: повторно отправить отчёт может только его автор", ErrForbidden)
	}

	from, err := workflow.ParseState(rep.StatusRelatorio)
	if err != nil {
		return nil, fmt.Errorf("отчёт %d: %w", id, err)
	}
	if err := workflow.Transition(workflow.ActionResubmit, from, workflow.ResubmitTarget()); err != nil {
		return nil, transitionError(err)
	}
	statusID, err := s.lookups.IDByName(ctx, model.KindStatusRelatorio, string(workflow.ResubmitTarget()))
	if err != nil {
		return nil, err
	}

	var cleanup func()
	err = s.tx.InTx(ctx, func(repos *repository.Repositories) error {
		f, c, err := s.files.Save(ctx, repos, in.Arquivo, contractID)
		if err != nil {
			return err
		}
		cleanup = c
		if err := repos.Reports.Resubmit(ctx, id, f.ID, statusID, in.ObservacoesFiscal); err != nil {
			return mapRepoError(err, fmt.Sprintf("отчёт с id %d", id), "повторная отправка отчёта")
		}
		return nil
	})
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		return nil, err
	}

	s.logger.Info("Отчёт отправлен повторно",
		slog.Int64("report_id", id),
		slog.Int64("contract_id", contractID),
	)
	return s.get(ctx, id)
}

// transitionError переводит ошибку автомата отчёта в ошибку сервиса.
func transitionError(err error) error {
	var te *workflow.TransitionError
	if !errors.As(err, &te) {
		return err
	}
	switch te.Code {
	case workflow.CodeInvalidTarget:
		return fmt.Errorf("%w: %s", ErrValidation, te.Message)
	case workflow.CodeInvalidTransition:
		return fmt.Errorf("%w: %s", ErrConflict, te.Message)
	default:
		return err
	}
}
