package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/sigescon/internal/domain/model"
)

// UserRepository — интерфейс CRUD для таблицы usuario.
type UserRepository interface {
	// Create создаёт пользователя. SenhaHash должен быть уже вычислен.
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	// GetByEmail возвращает активного пользователя вместе с хэшем пароля.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, filter UserFilter, limit, offset int) ([]*model.User, error)
	Count(ctx context.Context, filter UserFilter) (int, error)
	Update(ctx context.Context, id int64, upd model.UserUpdate) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	// Delete выполняет soft delete.
	Delete(ctx context.Context, id int64) error
	// CountActiveContracts — число активных контрактов, где пользователь
	// гестор, фискал или замещающий фискал.
	CountActiveContracts(ctx context.Context, id int64) (int, error)
}

// UserFilter — фильтры списка пользователей.
type UserFilter struct {
	PerfilID *int64
}

type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `
	u.id, u.nome, u.email, u.cpf, u.matricula, u.perfil_id, p.nome,
	u.senha, u.ativo, u.created_at, u.updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(
		&u.ID, &u.Nome, &u.Email, &u.CPF, &u.Matricula, &u.PerfilID, &u.PerfilNome,
		&u.SenhaHash, &u.Ativo, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO usuario (nome, email, cpf, matricula, senha, perfil_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, ativo, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		u.Nome, u.Email, u.CPF, u.Matricula, u.SenhaHash, u.PerfilID,
	).Scan(&u.ID, &u.Ativo, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "пользователь")
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getOne(ctx, "u.id = $1", id)
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, "u.email = $1", email)
}

func (r *userRepo) getOne(ctx context.Context, cond string, arg any) (*model.User, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM usuario_ativo u
		JOIN perfil p ON p.id = u.perfil_id
		WHERE %s`, userColumns, cond)

	u, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}

func buildUserWhere(filter UserFilter) (string, []any) {
	if filter.PerfilID == nil {
		return "", nil
	}
	return "WHERE u.perfil_id = $1", []any{*filter.PerfilID}
}

func (r *userRepo) List(ctx context.Context, filter UserFilter, limit, offset int) ([]*model.User, error) {
	where, args := buildUserWhere(filter)
	argNum := len(args) + 1

	query := fmt.Sprintf(`
		SELECT %s
		FROM usuario_ativo u
		JOIN perfil p ON p.id = u.perfil_id
		%s
		ORDER BY u.nome, u.id
		LIMIT $%d OFFSET $%d`, userColumns, where, argNum, argNum+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка пользователей: %w", err)
	}
	defer rows.Close()

	var result []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования пользователя: %w", err)
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (r *userRepo) Count(ctx context.Context, filter UserFilter) (int, error) {
	where, args := buildUserWhere(filter)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM usuario_ativo u %s`, where)

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта пользователей: %w", err)
	}
	return count, nil
}

func (r *userRepo) Update(ctx context.Context, id int64, upd model.UserUpdate) error {
	var b setBuilder
	if upd.Nome != nil {
		b.add("nome", *upd.Nome)
	}
	if upd.Email != nil {
		b.add("email", *upd.Email)
	}
	if upd.CPF != nil {
		b.add("cpf", *upd.CPF)
	}
	if upd.Matricula != nil {
		b.add("matricula", *upd.Matricula)
	}
	if upd.PerfilID != nil {
		b.add("perfil_id", *upd.PerfilID)
	}
	if b.empty() {
		return nil
	}

	set, argNum := b.build()
	query := fmt.Sprintf(`UPDATE usuario SET %s WHERE id = $%d AND ativo`, set, argNum)
	tag, err := r.db.Exec(ctx, query, append(b.args, id)...)
	if err != nil {
		return mapWriteError(err, "пользователь")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE usuario SET senha = $2, updated_at = now() WHERE id = $1 AND ativo`, id, hash)
	if err != nil {
		return fmt.Errorf("ошибка смены пароля: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE usuario SET ativo = FALSE, updated_at = now() WHERE id = $1 AND ativo`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления пользователя: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) CountActiveContracts(ctx context.Context, id int64) (int, error) {
	query := `
		SELECT COUNT(*) FROM contrato_ativo
		WHERE gestor_id = $1 OR fiscal_id = $1 OR fiscal_substituto_id = $1`

	var count int
	if err := r.db.QueryRow(ctx, query, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта контрактов пользователя: %w", err)
	}
	return count, nil
}
