// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"

	"github.com/bigkaa/sigescon/internal/repository"
)

var (
	// ErrNotFound — ресурс не найден или логически удалён.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — конфликт уникальности, ссылок или состояния.
	ErrConflict = errors.New("конфликт")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrForbidden — у вызывающего нет прав на операцию с этим ресурсом.
	ErrForbidden = errors.New("доступ запрещён")
	// ErrInvalidCredentials — неверный email или пароль.
	ErrInvalidCredentials = errors.New("неверные учётные данные")
)

// validationf формирует ErrValidation с сообщением.
func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// notFoundf формирует ErrNotFound с сообщением.
func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}

// conflictf формирует ErrConflict с сообщением.
func conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConflict}, args...)...)
}

// mapRepoError переводит ошибки репозитория в ошибки сервиса.
// what — описание сущности для сообщения NotFound; op — контекст прочих ошибок.
func mapRepoError(err error, what, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return notFoundf("%s не найден(а)", what)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %w", ErrConflict, err) //nolint:errorlint // намеренный двойной wrap
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
