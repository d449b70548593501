// pendencies.go — Pendency Manager: обязательства по контрактам.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bigkaa/sigescon/internal/domain/model"
	"github.com/bigkaa/sigescon/internal/domain/rbac"
	"github.com/bigkaa/sigescon/internal/domain/workflow"
	"github.com/bigkaa/sigescon/internal/repository"
)

// CreatePendencyInput — данные нового обязательства.
// StatusPendenciaID принимается, но статус всегда «Pendente».
type CreatePendencyInput struct {
	Descricao          string      `json:"descricao"`
	DataPrazo          *model.Date `json:"data_prazo"`
	StatusPendenciaID  *int64      `json:"status_pendencia_id"`
	CriadoPorUsuarioID int64       `json:"criado_por_usuario_id"`
}

// PendencyService управляет обязательствами.
type PendencyService struct {
	repos   *repository.Repositories
	lookups *LookupService
	logger  *slog.Logger
}

// NewPendencyService создаёт сервис обязательств.
func NewPendencyService(repos *repository.Repositories, lookups *LookupService, logger *slog.Logger) *PendencyService {
	return &PendencyService{
		repos:   repos,
		lookups: lookups,
		logger:  logger.With(slog.String("component", "pendency_service")),
	}
}

// Create открывает обязательство по активному контракту.
func (s *PendencyService) Create(ctx context.Context, contractID int64, in CreatePendencyInput) (*model.Pendency, error) {
	in.Descricao = strings.TrimSpace(in.Descricao)
	if in.Descricao == "" || in.DataPrazo == nil {
		return nil, validationf("поля descricao и data_prazo обязательны")
	}
	if in.CriadoPorUsuarioID == 0 {
		return nil, validationf("поле criado_por_usuario_id обязательно")
	}

	if _, err := s.repos.Contracts.GetByID(ctx, contractID); err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("контракт с id %d", contractID), "получение контракта")
	}
	creator, err := s.repos.Users.GetByID(ctx, in.CriadoPorUsuarioID)
	if err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("пользователь с id %d", in.CriadoPorUsuarioID), "получение пользователя")
	}
	if !rbac.IsAdmin(creator.PerfilNome) {
		return nil, validationf("обязательство может создать только администратор")
	}
	if in.StatusPendenciaID != nil {
		if _, err := s.lookups.Get(ctx, model.KindStatusPendencia, *in.StatusPendenciaID); err != nil {
			return nil, err
		}
	}

	statusID, err := s.lookups.IDByName(ctx, model.KindStatusPendencia, string(workflow.InitialPendencyStatus()))
	if err != nil {
		return nil, err
	}

	p := &model.Pendency{
		ContratoID:         contractID,
		Descricao:          in.Descricao,
		DataPrazo:          *in.DataPrazo,
		StatusPendenciaID:  statusID,
		CriadoPorUsuarioID: creator.ID,
	}
	if err := s.repos.Pendencies.Create(ctx, p); err != nil {
		return nil, mapRepoError(err, "обязательство", "создание обязательства")
	}

	s.logger.Info("Обязательство создано",
		slog.Int64("pendency_id", p.ID),
		slog.Int64("contract_id", contractID),
		slog.String("data_prazo", p.DataPrazo.String()),
	)
	return s.get(ctx, p.ID)
}

func (s *PendencyService) get(ctx context.Context, id int64) (*model.Pendency, error) {
	p, err := s.repos.Pendencies.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("обязательство с id %d", id), "получение обязательства")
	}
	return p, nil
}

// List возвращает обязательства контракта по возрастанию срока.
func (s *PendencyService) List(ctx context.Context, contractID int64) ([]*model.Pendency, error) {
	if _, err := s.repos.Contracts.GetByID(ctx, contractID); err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("контракт с id %d", contractID), "получение контракта")
	}
	items, err := s.repos.Pendencies.ListByContract(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("получение обязательств: %w", err)
	}
	return items, nil
}

// SetStatus безусловно перезаписывает статус обязательства.
func (s *PendencyService) SetStatus(ctx context.Context, id, statusID int64) error {
	if _, err := s.lookups.Get(ctx, model.KindStatusPendencia, statusID); err != nil {
		return err
	}
	if err := s.repos.Pendencies.SetStatus(ctx, id, statusID); err != nil {
		return mapRepoError(err, fmt.Sprintf("обязательство с id %d", id), "смена статуса обязательства")
	}
	s.logger.Info("Статус обязательства изменён",
		slog.Int64("pendency_id", id),
		slog.Int64("status_id", statusID),
	)
	return nil
}

// UpdateStatus — административная корректировка статуса.
// Завершить обязательство может только отправка отчёта.
func (s *PendencyService) UpdateStatus(ctx context.Context, contractID, id, statusID int64) (*model.Pendency, error) {
	if statusID == 0 {
		return nil, validationf("поле status_pendencia_id обязательно")
	}
	p, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.ContratoID != contractID {
		return nil, notFoundf("обязательство с id %d не найдено в контракте %d", id, contractID)
	}
	status, err := s.lookups.Get(ctx, model.KindStatusPendencia, statusID)
	if err != nil {
		return nil, err
	}
	if !workflow.AdminSettable(status.Nome) {
		return nil, validationf("статус %q устанавливается только при отправке отчёта", status.Nome)
	}
	if err := s.SetStatus(ctx, id, statusID); err != nil {
		return nil, err
	}
	return s.get(ctx, id)
}
