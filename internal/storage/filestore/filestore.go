// Пакет filestore — операции с физическими файлами на диске.
// Файлы раскладываются по подкаталогам контрактов; запись потоковая
// с подсчётом SHA-256 на лету и атомарным переименованием.
package filestore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// ErrNotExist — файла нет на диске.
var ErrNotExist = errors.New("файл отсутствует в хранилище")

// FileStore — управление физическими файлами на диске.
type FileStore struct {
	// dataDir — корневая директория хранения файлов (SG_UPLOAD_DIR)
	dataDir string
}

// SaveResult — результат сохранения файла на диск.
type SaveResult struct {
	// StoragePath — относительный путь файла в dataDir
	StoragePath string
	// FullPath — абсолютный путь файла на диске
	FullPath string
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 хэш содержимого файла
	Checksum string
}

// New создаёт новый FileStore. Проверяет и создаёт директорию
// если она не существует.
func New(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}

	return &FileStore{dataDir: dataDir}, nil
}

// SaveFile записывает данные из reader в каталог контракта.
// Формат пути: contrato_{id}/{name}_{timestamp}_{uuid}.{ext}
//
// Паттерн: temp файл → запись + SHA-256 → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (fs *FileStore) SaveFile(reader io.Reader, originalFilename string, contractID int64) (*SaveResult, error) {
	dir := fmt.Sprintf("contrato_%d", contractID)
	if err := os.MkdirAll(filepath.Join(fs.dataDir, dir), 0o750); err != nil {
		return nil, fmt.Errorf("ошибка создания каталога контракта: %w", err)
	}

	storagePath := filepath.Join(dir, generateStorageName(originalFilename))
	fullPath := filepath.Join(fs.dataDir, storagePath)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	hasher := sha256.New()
	tee := io.TeeReader(reader, hasher)

	size, err := io.Copy(f, tee)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		StoragePath: filepath.ToSlash(storagePath),
		FullPath:    fullPath,
		Size:        size,
		Checksum:    hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// ReadFile открывает файл для чтения.
// Вызывающий код обязан закрыть файл.
func (fs *FileStore) ReadFile(storagePath string) (*os.File, error) {
	fullPath, err := fs.resolve(storagePath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, storagePath)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", storagePath, err)
	}

	return f, nil
}

// DeleteFile удаляет файл с диска.
// Возвращает nil если файл уже не существует.
func (fs *FileStore) DeleteFile(storagePath string) error {
	fullPath, err := fs.resolve(storagePath)
	if err != nil {
		return err
	}

	err = os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", storagePath, err)
	}
	return nil
}

// FileExists проверяет существование файла на диске.
func (fs *FileStore) FileExists(storagePath string) bool {
	fullPath, err := fs.resolve(storagePath)
	if err != nil {
		return false
	}
	_, err = os.Stat(fullPath)
	return err == nil
}

// DataDir возвращает путь к директории данных.
func (fs *FileStore) DataDir() string {
	return fs.dataDir
}

// CheckReady проверяет, что каталог хранения доступен на запись.
func (fs *FileStore) CheckReady() (status string, message string) {
	probe, err := os.CreateTemp(fs.dataDir, ".ready-*")
	if err != nil {
		return "fail", fmt.Sprintf("каталог %s недоступен на запись: %v", fs.dataDir, err)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return "ok", "каталог хранения доступен"
}

// resolve возвращает абсолютный путь, не выходящий за dataDir.
func (fs *FileStore) resolve(storagePath string) (string, error) {
	local := filepath.FromSlash(storagePath)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("недопустимый путь хранения: %q", storagePath)
	}
	return filepath.Join(fs.dataDir, local), nil
}

// generateStorageName генерирует имя файла для хранения на диске.
// Формат: {name}_{timestamp}_{uuid}.{ext}
// Пример: relatorio_janeiro_20250221150405_a1b2c3d4.pdf
func generateStorageName(originalFilename string) string {
	base := filepath.Base(filepath.FromSlash(originalFilename))
	ext := strings.ToLower(filepath.Ext(base))
	name := Sanitize(strings.TrimSuffix(base, filepath.Ext(base)))

	// Ограничиваем длину имени для предотвращения проблем с FS
	if r := []rune(name); len(r) > 50 {
		name = string(r[:50])
	}

	ts := time.Now().UTC().Format("20060102150405")
	uid := uuid.New().String()[:8]

	if ext != "" && Sanitize(ext[1:]) == ext[1:] {
		return fmt.Sprintf("%s_%s_%s%s", name, ts, uid, ext)
	}
	return fmt.Sprintf("%s_%s_%s", name, ts, uid)
}

// Sanitize убирает небезопасные символы из строки для использования в имени файла.
// Оставляет буквы (включая акцентированные), цифры, дефис и подчёркивание;
// пробелы заменяются подчёркиванием.
func Sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			result.WriteRune(r)
		case unicode.IsSpace(r):
			result.WriteRune('_')
		}
	}
	if result.Len() == 0 {
		return "file"
	}
	return result.String()
}
