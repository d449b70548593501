// auth.go — вход и выход пользователей.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/bigkaa/sigescon/internal/auth"
	"github.com/bigkaa/sigescon/internal/repository"
)

// LoginResult — ответ на успешный вход.
type LoginResult struct {
	Token   string       `json:"token"`
	Usuario LoginUsuario `json:"usuario"`
}

// LoginUsuario — краткие данные вошедшего пользователя.
type LoginUsuario struct {
	ID     int64  `json:"id"`
	Nome   string `json:"nome"`
	Perfil string `json:"perfil"`
}

// AuthService — аутентификация по email и паролю.
type AuthService struct {
	users       repository.UserRepository
	tokens      *auth.TokenManager
	revocations auth.RevocationStore
	logger      *slog.Logger
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(users repository.UserRepository, tokens *auth.TokenManager, revocations auth.RevocationStore, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:       users,
		tokens:      tokens,
		revocations: revocations,
		logger:      logger.With(slog.String("component", "auth_service")),
	}
}

// Login проверяет учётные данные и выпускает токен.
// Неактивный или несуществующий пользователь неотличим от неверного пароля.
func (s *AuthService) Login(ctx context.Context, email, senha string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || senha == "" {
		return nil, validationf("поля email и senha обязательны")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("Вход отклонён: пользователь не найден", slog.String("email", email))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("получение пользователя: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.SenhaHash), []byte(senha)); err != nil {
		s.logger.Info("Вход отклонён: неверный пароль", slog.Int64("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}

	token, _, err := s.tokens.Issue(user.ID, user.PerfilNome)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Пользователь вошёл в систему",
		slog.Int64("user_id", user.ID),
		slog.String("perfil", user.PerfilNome),
	)
	return &LoginResult{
		Token:   token,
		Usuario: LoginUsuario{ID: user.ID, Nome: user.Nome, Perfil: user.PerfilNome},
	}, nil
}

// Logout отзывает токен до истечения его срока.
func (s *AuthService) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if err := s.revocations.Revoke(ctx, jti, expiresAt); err != nil {
		return fmt.Errorf("отзыв токена: %w", err)
	}
	s.logger.Debug("Токен отозван", slog.String("jti", jti))
	return nil
}
