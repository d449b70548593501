// lookups.go — справочники и кэш «имя → id» для статусов рабочего процесса.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/sigescon/internal/domain/model"
	"github.com/bigkaa/sigescon/internal/domain/rbac"
	"github.com/bigkaa/sigescon/internal/domain/workflow"
	"github.com/bigkaa/sigescon/internal/repository"
)

// Prometheus-метрики кэша справочников.
var (
	lookupCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sg_lookup_cache_hits_total",
		Help: "Попадания в кэш справочников (имя → id).",
	})
	lookupCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sg_lookup_cache_misses_total",
		Help: "Промахи кэша справочников (имя → id).",
	})
)

// LookupService — CRUD справочников.
type LookupService struct {
	repo   repository.LookupRepository
	cache  *expirable.LRU[string, int64]
	logger *slog.Logger
}

// NewLookupService создаёт сервис справочников с кэшем имён.
func NewLookupService(repo repository.LookupRepository, cacheSize int, cacheTTL time.Duration, logger *slog.Logger) *LookupService {
	return &LookupService{
		repo:   repo,
		cache:  expirable.NewLRU[string, int64](cacheSize, nil, cacheTTL),
		logger: logger.With(slog.String("component", "lookup_service")),
	}
}

func cacheKey(kind model.LookupKind, nome string) string {
	return string(kind) + ":" + nome
}

func lookupNome(nome string) (string, error) {
	nome = strings.TrimSpace(nome)
	if nome == "" {
		return "", validationf("поле nome обязательно")
	}
	if len([]rune(nome)) > 100 {
		return "", validationf("поле nome не длиннее 100 символов")
	}
	return nome, nil
}

// reservedLookup сообщает, ищет ли рабочий процесс запись по имени.
// Такие записи нельзя переименовать или удалить.
func reservedLookup(kind model.LookupKind, nome string) bool {
	switch kind {
	case model.KindPerfil:
		return rbac.IsValidRole(nome)
	case model.KindStatusRelatorio:
		return workflow.IsValidState(workflow.ReportState(nome))
	case model.KindStatusPendencia:
		return workflow.IsPendencyStatus(nome)
	default:
		return false
	}
}

// Create создаёт запись справочника.
func (s *LookupService) Create(ctx context.Context, kind model.LookupKind, nome string) (*model.Lookup, error) {
	nome, err := lookupNome(nome)
	if err != nil {
		return nil, err
	}
	l, err := s.repo.Create(ctx, kind, nome)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, conflictf("запись %q уже существует", nome)
		}
		return nil, fmt.Errorf("создание записи справочника: %w", err)
	}
	s.logger.Info("Запись справочника создана",
		slog.String("kind", string(kind)),
		slog.Int64("id", l.ID),
		slog.String("nome", l.Nome),
	)
	return l, nil
}

// List возвращает активные записи справочника.
func (s *LookupService) List(ctx context.Context, kind model.LookupKind) ([]*model.Lookup, error) {
	items, err := s.repo.List(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("получение справочника: %w", err)
	}
	if items == nil {
		items = []*model.Lookup{}
	}
	return items, nil
}

// Get возвращает запись справочника по id.
func (s *LookupService) Get(ctx context.Context, kind model.LookupKind, id int64) (*model.Lookup, error) {
	l, err := s.repo.GetByID(ctx, kind, id)
	if err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("запись справочника %s с id %d", kind, id), "получение записи справочника")
	}
	return l, nil
}

// Update переименовывает запись справочника.
func (s *LookupService) Update(ctx context.Context, kind model.LookupKind, id int64, nome string) (*model.Lookup, error) {
	nome, err := lookupNome(nome)
	if err != nil {
		return nil, err
	}
	current, err := s.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if current.Nome != nome && reservedLookup(kind, current.Nome) {
		return nil, conflictf("запись %q используется рабочим процессом и не может быть переименована", current.Nome)
	}
	l, err := s.repo.Update(ctx, kind, id, nome)
	if err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("запись справочника %s с id %d", kind, id), "обновление записи справочника")
	}
	s.cache.Purge()
	return l, nil
}

// Delete логически удаляет запись, если на неё не ссылаются активные строки.
func (s *LookupService) Delete(ctx context.Context, kind model.LookupKind, id int64) error {
	current, err := s.Get(ctx, kind, id)
	if err != nil {
		return err
	}
	if reservedLookup(kind, current.Nome) {
		return conflictf("запись %q используется рабочим процессом и не может быть удалена", current.Nome)
	}
	used, err := s.repo.InUse(ctx, kind, id)
	if err != nil {
		return fmt.Errorf("проверка использования записи справочника: %w", err)
	}
	if used {
		return conflictf("запись справочника %s с id %d используется", kind, id)
	}
	if err := s.repo.Delete(ctx, kind, id); err != nil {
		return mapRepoError(err, fmt.Sprintf("запись справочника %s с id %d", kind, id), "удаление записи справочника")
	}
	s.cache.Purge()
	s.logger.Info("Запись справочника удалена",
		slog.String("kind", string(kind)),
		slog.Int64("id", id),
	)
	return nil
}

// IDByName возвращает id записи по имени, используя кэш.
// Отсутствие записи — ошибка конфигурации справочников, а не клиента.
func (s *LookupService) IDByName(ctx context.Context, kind model.LookupKind, nome string) (int64, error) {
	key := cacheKey(kind, nome)
	if id, ok := s.cache.Get(key); ok {
		lookupCacheHits.Inc()
		return id, nil
	}
	lookupCacheMisses.Inc()

	l, err := s.repo.GetByName(ctx, kind, nome)
	if err != nil {
		return 0, fmt.Errorf("справочник %s не содержит обязательную запись %q: %w", kind, nome, err)
	}
	s.cache.Add(key, l.ID)
	return l.ID, nil
}
