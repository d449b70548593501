// files.go — приём, выдача и удаление файлов контрактов.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/bigkaa/sigescon/internal/domain/model"
	"github.com/bigkaa/sigescon/internal/repository"
	"github.com/bigkaa/sigescon/internal/storage/filestore"
)

// allowedExtensions — допустимые расширения загружаемых файлов (без учёта регистра).
var allowedExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".xls":  true,
	".xlsx": true,
	".txt":  true,
}

// Upload — загружаемый файл.
type Upload struct {
	Filename    string
	ContentType string
	Reader      io.Reader
}

// Validate проверяет имя и расширение файла.
func (u *Upload) Validate() error {
	if u == nil || u.Reader == nil {
		return validationf("файл обязателен")
	}
	if strings.TrimSpace(u.Filename) == "" {
		return validationf("имя файла не может быть пустым")
	}
	ext := strings.ToLower(filepath.Ext(u.Filename))
	if !allowedExtensions[ext] {
		return validationf("недопустимый тип файла %q, разрешены: pdf, doc, docx, xls, xlsx, txt", ext)
	}
	return nil
}

func (u *Upload) contentType() string {
	if u.ContentType != "" && u.ContentType != "application/octet-stream" {
		return u.ContentType
	}
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(u.Filename))); t != "" {
		return t
	}
	return "application/octet-stream"
}

// FileService — File Intake: физическое хранение и метаданные файлов.
type FileService struct {
	repos  *repository.Repositories
	tx     Transactor
	store  FileStorage
	logger *slog.Logger
}

// NewFileService создаёт сервис файлов.
func NewFileService(repos *repository.Repositories, tx Transactor, store FileStorage, logger *slog.Logger) *FileService {
	return &FileService{
		repos:  repos,
		tx:     tx,
		store:  store,
		logger: logger.With(slog.String("component", "file_service")),
	}
}

// Save записывает байты в хранилище и создаёт строку arquivo через repos.
// Возвращённая cleanup удаляет записанные байты; вызывающий выполняет её,
// если транзакция, в которой создана строка, не была зафиксирована.
func (s *FileService) Save(ctx context.Context, repos *repository.Repositories, upload *Upload, contractID int64) (*model.File, func(), error) {
	if err := upload.Validate(); err != nil {
		return nil, nil, err
	}

	res, err := s.store.SaveFile(upload.Reader, upload.Filename, contractID)
	if err != nil {
		return nil, nil, fmt.Errorf("сохранение файла: %w", err)
	}
	cleanup := func() {
		if err := s.store.DeleteFile(res.StoragePath); err != nil {
			s.logger.Error("Не удалось удалить файл после сбоя",
				slog.String("path", res.StoragePath),
				slog.String("error", err.Error()),
			)
			return
		}
		s.logger.Info("Файл удалён после сбоя", slog.String("path", res.StoragePath))
	}

	f := &model.File{
		NomeArquivo:       filepath.Base(upload.Filename),
		PathArmazenamento: res.StoragePath,
		TipoArquivo:       upload.contentType(),
		TamanhoBytes:      res.Size,
		Checksum:          res.Checksum,
		ContratoID:        contractID,
	}
	if err := repos.Files.Create(ctx, f); err != nil {
		cleanup()
		return nil, nil, mapRepoError(err, "файл", "создание записи файла")
	}

	s.logger.Debug("Файл сохранён",
		slog.Int64("file_id", f.ID),
		slog.Int64("contract_id", contractID),
		slog.Int64("size", f.TamanhoBytes),
	)
	return f, cleanup, nil
}

// Get возвращает метаданные файла.
func (s *FileService) Get(ctx context.Context, id int64) (*model.File, error) {
	f, err := s.repos.Files.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("файл с id %d", id), "получение файла")
	}
	return f, nil
}

// Open возвращает метаданные и открытый файл для скачивания.
// Вызывающий закрывает *os.File.
func (s *FileService) Open(ctx context.Context, id int64) (*model.File, *os.File, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	fh, err := s.store.ReadFile(f.PathArmazenamento)
	if err != nil {
		if errors.Is(err, filestore.ErrNotExist) {
			s.logger.Warn("Файл отсутствует в хранилище",
				slog.Int64("file_id", id),
				slog.String("path", f.PathArmazenamento),
			)
			return nil, nil, notFoundf("файл с id %d отсутствует в хранилище", id)
		}
		return nil, nil, fmt.Errorf("чтение файла: %w", err)
	}
	return f, fh, nil
}

// ListByContract возвращает файлы контракта.
func (s *FileService) ListByContract(ctx context.Context, contractID int64) ([]*model.File, error) {
	if _, err := s.repos.Contracts.GetByID(ctx, contractID); err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("контракт с id %d", contractID), "получение контракта")
	}
	files, err := s.repos.Files.ListByContract(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("получение файлов контракта: %w", err)
	}
	return files, nil
}

// Delete удаляет файл. Файл, приложенный к отчёту, удалить нельзя;
// ссылка на основной документ контракта снимается.
func (s *FileService) Delete(ctx context.Context, id int64) error {
	var storagePath string
	err := s.tx.InTx(ctx, func(repos *repository.Repositories) error {
		f, err := repos.Files.GetByID(ctx, id)
		if err != nil {
			return mapRepoError(err, fmt.Sprintf("файл с id %d", id), "получение файла")
		}
		n, err := repos.Reports.CountByFile(ctx, id)
		if err != nil {
			return fmt.Errorf("проверка использования файла: %w", err)
		}
		if n > 0 {
			return conflictf("файл с id %d приложен к %d отчёт(ам)", id, n)
		}
		if err := repos.Contracts.UnlinkDocument(ctx, id); err != nil {
			return err
		}
		if err := repos.Files.Delete(ctx, id); err != nil {
			return mapRepoError(err, fmt.Sprintf("файл с id %d", id), "удаление файла")
		}
		storagePath = f.PathArmazenamento
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.store.DeleteFile(storagePath); err != nil {
		// Строка уже удалена; осиротевшие байты только логируются.
		s.logger.Error("Ошибка удаления файла из хранилища",
			slog.Int64("file_id", id),
			slog.String("path", storagePath),
			slog.String("error", err.Error()),
		)
	}
	s.logger.Info("Файл удалён", slog.Int64("file_id", id))
	return nil
}
