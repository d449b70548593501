package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// SeedAdmin создаёт начального администратора, если пользователя
// с таким email ещё нет. Пустой email — ничего не делает.
func SeedAdmin(ctx context.Context, pool *pgxpool.Pool, name, email, password string, logger *slog.Logger) error {
	if email == "" {
		return nil
	}

	var exists bool
	err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM usuario WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return fmt.Errorf("ошибка проверки администратора: %w", err)
	}
	if exists {
		logger.Debug("Начальный администратор уже существует", slog.String("email", email))
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("ошибка хэширования пароля: %w", err)
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO usuario (nome, email, senha, perfil_id)
		SELECT $1, $2, $3, p.id FROM perfil p WHERE p.nome = 'Administrador'`,
		name, email, string(hash),
	)
	if err != nil {
		return fmt.Errorf("ошибка создания администратора: %w", err)
	}

	logger.Info("Начальный администратор создан", slog.String("email", email))
	return nil
}
