// Пакет service — бизнес-логика SIGESCON: аутентификация, справочники,
// пользователи, контрагенты, контракты, обязательства, отчёты фискалов,
// приём файлов и ежедневная рассылка напоминаний о сроках.
package service

import (
	"context"
	"io"
	"os"

	"github.com/bigkaa/sigescon/internal/domain/rbac"
	"github.com/bigkaa/sigescon/internal/notify"
	"github.com/bigkaa/sigescon/internal/repository"
	"github.com/bigkaa/sigescon/internal/storage/filestore"
)

// Transactor выполняет fn с репозиториями одной транзакции.
// Реализуется repository.TxRunner.
type Transactor interface {
	InTx(ctx context.Context, fn func(repos *repository.Repositories) error) error
}

// Notifier отправляет письмо. Реализуется notify.Notifier.
type Notifier interface {
	Notify(ctx context.Context, kind, to string, msg notify.Message) error
}

// FileStorage — физическое хранилище файлов. Реализуется filestore.FileStore.
type FileStorage interface {
	SaveFile(reader io.Reader, originalFilename string, contractID int64) (*filestore.SaveResult, error)
	ReadFile(storagePath string) (*os.File, error)
	DeleteFile(storagePath string) error
}

// Caller — аутентифицированный пользователь, выполняющий операцию.
type Caller struct {
	UserID int64
	Perfil string
}

// IsAdmin сообщает, что вызывающий — администратор.
func (c Caller) IsAdmin() bool {
	return rbac.IsAdmin(c.Perfil)
}

// ListResult — страница списка.
type ListResult[T any] struct {
	Items   []T  `json:"items"`
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

func newListResult[T any](items []T, total, limit, offset int) *ListResult[T] {
	if items == nil {
		items = []T{}
	}
	return &ListResult[T]{
		Items:   items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+len(items) < total,
	}
}
