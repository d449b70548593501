// Пакет repository — слой доступа к данным PostgreSQL.
// Все запросы — чистый SQL через pgx, без ORM.
//
// Чтения основных сущностей идут через представления *_ativo,
// поэтому логически удалённые записи не видны ни одному запросу.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности или ссылочной целостности.
	ErrConflict = errors.New("конфликт — запись уже существует или используется")
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories — набор репозиториев поверх одного DBTX.
type Repositories struct {
	Lookups    LookupRepository
	Users      UserRepository
	Parties    ContractedPartyRepository
	Contracts  ContractRepository
	Pendencies PendencyRepository
	Reports    ReportRepository
	Files      FileRepository
}

// New создаёт набор репозиториев поверх пула или транзакции.
func New(db DBTX) *Repositories {
	return &Repositories{
		Lookups:    NewLookupRepository(db),
		Users:      NewUserRepository(db),
		Parties:    NewContractedPartyRepository(db),
		Contracts:  NewContractRepository(db),
		Pendencies: NewPendencyRepository(db),
		Reports:    NewReportRepository(db),
		Files:      NewFileRepository(db),
	}
}

// TxRunner позволяет выполнять операции в транзакции.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner создаёт TxRunner для управления транзакциями.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunInTx выполняет fn внутри транзакции.
// При ошибке fn — транзакция откатывается.
// При успехе — коммитится.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// InTx выполняет fn с набором репозиториев, привязанных к одной транзакции.
func (r *TxRunner) InTx(ctx context.Context, fn func(repos *Repositories) error) error {
	return r.RunInTx(ctx, func(tx pgx.Tx) error {
		return fn(New(tx))
	})
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == "23505" // unique_violation
}

// isForeignKeyViolation проверяет нарушение внешнего ключа.
func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == "23503" // foreign_key_violation
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// mapWriteError преобразует ошибки записи в ошибки слоя.
func mapWriteError(err error, what string) error {
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %s с такими данными уже существует", ErrConflict, what)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%w: %s ссылается на несуществующую запись или используется", ErrConflict, what)
	default:
		return fmt.Errorf("ошибка записи (%s): %w", what, err)
	}
}

// setBuilder собирает SET-часть UPDATE только из заданных полей.
type setBuilder struct {
	parts []string
	args  []any
}

func (b *setBuilder) add(column string, value any) {
	b.args = append(b.args, value)
	b.parts = append(b.parts, fmt.Sprintf("%s = $%d", column, len(b.args)))
}

func (b *setBuilder) empty() bool {
	return len(b.parts) == 0
}

// build возвращает SET-выражение с updated_at и номер следующего аргумента.
func (b *setBuilder) build() (string, int) {
	parts := append(b.parts, "updated_at = now()")
	return strings.Join(parts, ", "), len(b.args) + 1
}
