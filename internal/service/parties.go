// parties.go — контрагенты (contratados).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bigkaa/sigescon/internal/domain/model"
	"github.com/bigkaa/sigescon/internal/repository"
)

// ContractedPartyService — CRUD контрагентов.
type ContractedPartyService struct {
	repo   repository.ContractedPartyRepository
	logger *slog.Logger
}

// NewContractedPartyService создаёт сервис контрагентов.
func NewContractedPartyService(repo repository.ContractedPartyRepository, logger *slog.Logger) *ContractedPartyService {
	return &ContractedPartyService{
		repo:   repo,
		logger: logger.With(slog.String("component", "party_service")),
	}
}

// Create регистрирует контрагента.
func (s *ContractedPartyService) Create(ctx context.Context, p *model.ContractedParty) (*model.ContractedParty, error) {
	p.Nome = strings.TrimSpace(p.Nome)
	p.Email = strings.TrimSpace(p.Email)
	if p.Nome == "" || p.Email == "" {
		return nil, validationf("поля nome и email обязательны")
	}
	if err := validateEmail(p.Email); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, conflictf("контрагент с таким email, CNPJ или CPF уже существует")
		}
		return nil, fmt.Errorf("создание контрагента: %w", err)
	}
	s.logger.Info("Контрагент создан", slog.Int64("party_id", p.ID))
	return s.Get(ctx, p.ID)
}

// Get возвращает активного контрагента.
func (s *ContractedPartyService) Get(ctx context.Context, id int64) (*model.ContractedParty, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("контрагент с id %d", id), "получение контрагента")
	}
	return p, nil
}

// List возвращает страницу контрагентов.
func (s *ContractedPartyService) List(ctx context.Context, limit, offset int) (*ListResult[*model.ContractedParty], error) {
	items, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("получение списка контрагентов: %w", err)
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("подсчёт контрагентов: %w", err)
	}
	return newListResult(items, total, limit, offset), nil
}

// Update меняет разрешённые поля контрагента.
func (s *ContractedPartyService) Update(ctx context.Context, id int64, upd model.ContractedPartyUpdate) (*model.ContractedParty, error) {
	if upd.IsEmpty() {
		return nil, validationf("не задано ни одного поля для обновления")
	}
	if upd.Nome != nil && strings.TrimSpace(*upd.Nome) == "" {
		return nil, validationf("поле nome не может быть пустым")
	}
	if upd.Email != nil {
		if err := validateEmail(*upd.Email); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Update(ctx, id, upd); err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("контрагент с id %d", id), "обновление контрагента")
	}
	return s.Get(ctx, id)
}

// Delete логически удаляет контрагента без активных контрактов.
func (s *ContractedPartyService) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	used, err := s.repo.InUse(ctx, id)
	if err != nil {
		return fmt.Errorf("проверка контрактов контрагента: %w", err)
	}
	if used {
		return conflictf("контрагент с id %d указан в активных контрактах", id)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoError(err, fmt.Sprintf("контрагент с id %d", id), "удаление контрагента")
	}
	s.logger.Info("Контрагент удалён", slog.Int64("party_id", id))
	return nil
}
