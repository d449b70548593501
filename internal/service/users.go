// users.go — управление пользователями и паролями.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/bigkaa/sigescon/internal/domain/model"
	"github.com/bigkaa/sigescon/internal/domain/rbac"
	"github.com/bigkaa/sigescon/internal/repository"
)

// minPasswordLen — минимальная длина пароля.
const minPasswordLen = 6

// CreateUserInput — данные нового пользователя.
type CreateUserInput struct {
	Nome      string  `json:"nome"`
	Email     string  `json:"email"`
	Senha     string  `json:"senha"`
	CPF       *string `json:"cpf"`
	Matricula *string `json:"matricula"`
	PerfilID  int64   `json:"perfil_id"`
}

// UserService — CRUD пользователей.
type UserService struct {
	users   repository.UserRepository
	lookups *LookupService
	logger  *slog.Logger
}

// NewUserService создаёт сервис пользователей.
func NewUserService(users repository.UserRepository, lookups *LookupService, logger *slog.Logger) *UserService {
	return &UserService{
		users:   users,
		lookups: lookups,
		logger:  logger.With(slog.String("component", "user_service")),
	}
}

func validateEmail(email string) error {
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return validationf("некорректный email %q", email)
	}
	return nil
}

func hashPassword(senha string) (string, error) {
	if len(senha) < minPasswordLen {
		return "", validationf("пароль должен содержать не менее %d символов", minPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(senha), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("ошибка хэширования пароля: %w", err)
	}
	return string(hash), nil
}

func (s *UserService) checkPerfil(ctx context.Context, perfilID int64) error {
	if _, err := s.lookups.Get(ctx, model.KindPerfil, perfilID); err != nil {
		return err
	}
	return nil
}

// Create создаёт пользователя. Пароль сохраняется только в виде bcrypt-хэша.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*model.User, error) {
	in.Nome = strings.TrimSpace(in.Nome)
	in.Email = strings.TrimSpace(in.Email)
	if in.Nome == "" || in.Email == "" || in.Senha == "" || in.PerfilID == 0 {
		return nil, validationf("поля nome, email, senha и perfil_id обязательны")
	}
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}
	if err := s.checkPerfil(ctx, in.PerfilID); err != nil {
		return nil, err
	}
	hash, err := hashPassword(in.Senha)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		Nome: in.Nome, Email: in.Email, CPF: in.CPF, Matricula: in.Matricula,
		PerfilID: in.PerfilID, SenhaHash: hash,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, conflictf("пользователь с email %q или таким CPF уже существует", in.Email)
		}
		return nil, fmt.Errorf("создание пользователя: %w", err)
	}

	s.logger.Info("Пользователь создан", slog.Int64("user_id", u.ID), slog.Int64("perfil_id", u.PerfilID))
	return s.Get(ctx, u.ID)
}

// Get возвращает пользователя по id.
func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("пользователь с id %d", id), "получение пользователя")
	}
	return u, nil
}

// GetAs возвращает пользователя, если вызывающий — администратор или сам пользователь.
func (s *UserService) GetAs(ctx context.Context, caller Caller, id int64) (*model.User, error) {
	if !rbac.CanActAsUser(caller.Perfil, caller.UserID, id) {
		return nil, fmt.Errorf("%w: просмотр чужого профиля доступен только администратору", ErrForbidden)
	}
	return s.Get(ctx, id)
}

// List возвращает страницу пользователей.
func (s *UserService) List(ctx context.Context, filter repository.UserFilter, limit, offset int) (*ListResult[*model.User], error) {
	items, err := s.users.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("получение списка пользователей: %w", err)
	}
	total, err := s.users.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("подсчёт пользователей: %w", err)
	}
	return newListResult(items, total, limit, offset), nil
}

// Update меняет разрешённые поля пользователя.
func (s *UserService) Update(ctx context.Context, id int64, upd model.UserUpdate) (*model.User, error) {
	if upd.IsEmpty() {
		return nil, validationf("не задано ни одного поля для обновления")
	}
	if upd.Nome != nil {
		trimmed := strings.TrimSpace(*upd.Nome)
		if trimmed == "" {
			return nil, validationf("поле nome не может быть пустым")
		}
		upd.Nome = &trimmed
	}
	if upd.Email != nil {
		if err := validateEmail(*upd.Email); err != nil {
			return nil, err
		}
	}
	if upd.PerfilID != nil {
		if err := s.checkPerfil(ctx, *upd.PerfilID); err != nil {
			return nil, err
		}
	}

	if err := s.users.Update(ctx, id, upd); err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("пользователь с id %d", id), "обновление пользователя")
	}
	s.logger.Info("Пользователь обновлён", slog.Int64("user_id", id))
	return s.Get(ctx, id)
}

// Delete логически удаляет пользователя, если он не назначен на активные контракты.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	n, err := s.users.CountActiveContracts(ctx, id)
	if err != nil {
		return fmt.Errorf("проверка контрактов пользователя: %w", err)
	}
	if n > 0 {
		return conflictf("пользователь назначен на %d активных контракт(ов)", n)
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return mapRepoError(err, fmt.Sprintf("пользователь с id %d", id), "удаление пользователя")
	}
	s.logger.Info("Пользователь удалён", slog.Int64("user_id", id))
	return nil
}

// ResetPassword задаёт новый пароль без проверки старого (администратор).
func (s *UserService) ResetPassword(ctx context.Context, id int64, novaSenha string) error {
	hash, err := hashPassword(novaSenha)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, id, hash); err != nil {
		return mapRepoError(err, fmt.Sprintf("пользователь с id %d", id), "сброс пароля")
	}
	s.logger.Info("Пароль сброшен администратором", slog.Int64("user_id", id))
	return nil
}

// ChangePassword меняет пароль после проверки старого.
// Доступно самому пользователю и администратору.
func (s *UserService) ChangePassword(ctx context.Context, caller Caller, id int64, senhaAntiga, novaSenha string) error {
	if !rbac.CanActAsUser(caller.Perfil, caller.UserID, id) {
		return fmt.Errorf("%w: смена чужого пароля доступна только администратору", ErrForbidden)
	}
	if senhaAntiga == "" || novaSenha == "" {
		return validationf("поля senha_antiga и nova_senha обязательны")
	}

	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.SenhaHash), []byte(senhaAntiga)); err != nil {
		return fmt.Errorf("%w: Senha antiga incorreta", ErrInvalidCredentials)
	}

	hash, err := hashPassword(novaSenha)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, id, hash); err != nil {
		return mapRepoError(err, fmt.Sprintf("пользователь с id %d", id), "смена пароля")
	}
	s.logger.Info("Пароль изменён", slog.Int64("user_id", id))
	return nil
}
