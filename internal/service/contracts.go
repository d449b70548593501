// contracts.go — контракты: создание с основным документом, выборки, изменение.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bigkaa/sigescon/internal/domain/model"
	"github.com/bigkaa/sigescon/internal/notify"
	"github.com/bigkaa/sigescon/internal/repository"
)

// ContractService — CRUD контрактов.
type ContractService struct {
	repos    *repository.Repositories
	tx       Transactor
	files    *FileService
	lookups  *LookupService
	notifier Notifier
	logger   *slog.Logger
}

// NewContractService создаёт сервис контрактов.
func NewContractService(repos *repository.Repositories, tx Transactor, files *FileService,
	lookups *LookupService, notifier Notifier, logger *slog.Logger,
) *ContractService {
	return &ContractService{
		repos:    repos,
		tx:       tx,
		files:    files,
		lookups:  lookups,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "contract_service")),
	}
}

func validateContract(c *model.Contract) error {
	c.NrContrato = strings.TrimSpace(c.NrContrato)
	c.Objeto = strings.TrimSpace(c.Objeto)
	var missing []string
	if c.NrContrato == "" {
		missing = append(missing, "nr_contrato")
	}
	if c.Objeto == "" {
		missing = append(missing, "objeto")
	}
	if c.DataInicio.IsZero() {
		missing = append(missing, "data_inicio")
	}
	if c.DataFim.IsZero() {
		missing = append(missing, "data_fim")
	}
	if c.ContratadoID == 0 {
		missing = append(missing, "contratado_id")
	}
	if c.ModalidadeID == 0 {
		missing = append(missing, "modalidade_id")
	}
	if c.StatusID == 0 {
		missing = append(missing, "status_id")
	}
	if c.GestorID == 0 {
		missing = append(missing, "gestor_id")
	}
	if c.FiscalID == 0 {
		missing = append(missing, "fiscal_id")
	}
	if len(missing) > 0 {
		return validationf("обязательные поля не заданы: %s", strings.Join(missing, ", "))
	}
	return validatePeriod(c.DataInicio, c.DataFim)
}

func validatePeriod(inicio, fim model.Date) error {
	if fim.Before(inicio.Time) {
		return validationf("data_fim (%s) не может предшествовать data_inicio (%s)", fim, inicio)
	}
	return nil
}

// contractRefs — ссылки контракта для проверки существования.
type contractRefs struct {
	contratadoID, modalidadeID, statusID *int64
	userIDs                              []int64
}

func (s *ContractService) checkRefs(ctx context.Context, refs contractRefs) error {
	if refs.contratadoID != nil {
		if _, err := s.repos.Parties.GetByID(ctx, *refs.contratadoID); err != nil {
			return mapRepoError(err, fmt.Sprintf("контрагент с id %d", *refs.contratadoID), "получение контрагента")
		}
	}
	if refs.modalidadeID != nil {
		if _, err := s.lookups.Get(ctx, model.KindModalidade, *refs.modalidadeID); err != nil {
			return err
		}
	}
	if refs.statusID != nil {
		if _, err := s.lookups.Get(ctx, model.KindStatus, *refs.statusID); err != nil {
			return err
		}
	}
	for _, id := range refs.userIDs {
		if _, err := s.repos.Users.GetByID(ctx, id); err != nil {
			return mapRepoError(err, fmt.Sprintf("пользователь с id %d", id), "получение пользователя")
		}
	}
	return nil
}

// Create создаёт контракт и, если передан, его основной документ.
// Гестор и фискал получают письмо о назначении.
func (s *ContractService) Create(ctx context.Context, c *model.Contract, documento *Upload) (*model.Contract, error) {
	if err := validateContract(c); err != nil {
		return nil, err
	}
	if documento != nil {
		if err := documento.Validate(); err != nil {
			return nil, err
		}
	}
	users := []int64{c.GestorID, c.FiscalID}
	if c.FiscalSubstitutoID != nil {
		users = append(users, *c.FiscalSubstitutoID)
	}
	if err := s.checkRefs(ctx, contractRefs{
		contratadoID: &c.ContratadoID,
		modalidadeID: &c.ModalidadeID,
		statusID:     &c.StatusID,
		userIDs:      users,
	}); err != nil {
		return nil, err
	}

	c.Documento = nil
	var cleanup func()
	err := s.tx.InTx(ctx, func(repos *repository.Repositories) error {
		if err := repos.Contracts.Create(ctx, c); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return conflictf("контракт с номером %q уже существует", c.NrContrato)
			}
			return fmt.Errorf("создание контракта: %w", err)
		}
		if documento == nil {
			return nil
		}
		f, cl, err := s.files.Save(ctx, repos, documento, c.ID)
		if err != nil {
			return err
		}
		cleanup = cl
		c.Documento = &f.ID
		return repos.Contracts.SetDocument(ctx, c.ID, &f.ID)
	})
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		return nil, err
	}

	s.logger.Info("Контракт создан",
		slog.Int64("contract_id", c.ID),
		slog.String("nr_contrato", c.NrContrato),
		slog.Bool("documento", c.Documento != nil),
	)

	created, err := s.Get(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	s.notifyAssignment(ctx, created.GestorID, "Gestor", created)
	s.notifyAssignment(ctx, created.FiscalID, "Fiscal", created)
	return created, nil
}

func (s *ContractService) notifyAssignment(ctx context.Context, userID int64, papel string, c *model.Contract) {
	u, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		s.logger.Warn("Не удалось получить пользователя для уведомления о назначении",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}
	_ = s.notifier.Notify(ctx, notify.KindAssignment, u.Email,
		notify.AssignmentMessage(u.Nome, papel, c.NrContrato, c.Objeto))
}

// Get возвращает контракт вместе с его отчётами.
func (s *ContractService) Get(ctx context.Context, id int64) (*model.Contract, error) {
	c, err := s.repos.Contracts.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("контракт с id %d", id), "получение контракта")
	}
	reports, err := s.repos.Reports.ListByContract(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("получение отчётов контракта: %w", err)
	}
	c.Relatorios = reports
	return c, nil
}

// List возвращает страницу контрактов по фильтру.
func (s *ContractService) List(ctx context.Context, filter model.ContractFilter, limit, offset int) (*ListResult[*model.ContractSummary], error) {
	items, err := s.repos.Contracts.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("получение списка контрактов: %w", err)
	}
	total, err := s.repos.Contracts.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("подсчёт контрактов: %w", err)
	}
	return newListResult(items, total, limit, offset), nil
}

// Update меняет разрешённые поля контракта.
func (s *ContractService) Update(ctx context.Context, id int64, upd model.ContractUpdate) (*model.Contract, error) {
	if upd.IsEmpty() {
		return nil, validationf("не задано ни одного поля для обновления")
	}
	if upd.NrContrato != nil && strings.TrimSpace(*upd.NrContrato) == "" {
		return nil, validationf("поле nr_contrato не может быть пустым")
	}
	if upd.Objeto != nil && strings.TrimSpace(*upd.Objeto) == "" {
		return nil, validationf("поле objeto не может быть пустым")
	}

	current, err := s.repos.Contracts.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("контракт с id %d", id), "получение контракта")
	}
	inicio, fim := current.DataInicio, current.DataFim
	if upd.DataInicio != nil {
		inicio = *upd.DataInicio
	}
	if upd.DataFim != nil {
		fim = *upd.DataFim
	}
	if err := validatePeriod(inicio, fim); err != nil {
		return nil, err
	}

	var users []int64
	for _, ref := range []*int64{upd.GestorID, upd.FiscalID, upd.FiscalSubstitutoID} {
		if ref != nil {
			users = append(users, *ref)
		}
	}
	if err := s.checkRefs(ctx, contractRefs{
		contratadoID: upd.ContratadoID,
		modalidadeID: upd.ModalidadeID,
		statusID:     upd.StatusID,
		userIDs:      users,
	}); err != nil {
		return nil, err
	}

	if err := s.repos.Contracts.Update(ctx, id, upd); err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("контракт с id %d", id), "обновление контракта")
	}
	s.logger.Info("Контракт обновлён", slog.Int64("contract_id", id))
	return s.Get(ctx, id)
}

// Delete логически удаляет контракт.
func (s *ContractService) Delete(ctx context.Context, id int64) error {
	if err := s.repos.Contracts.Delete(ctx, id); err != nil {
		return mapRepoError(err, fmt.Sprintf("контракт с id %d", id), "удаление контракта")
	}
	s.logger.Info("Контракт удалён", slog.Int64("contract_id", id))
	return nil
}
