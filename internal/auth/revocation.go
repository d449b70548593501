package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"github.com/bigkaa/sigescon/internal/config"
)

// memoryRevocationSize — ёмкость локального хранилища отзывов.
const memoryRevocationSize = 10000

// ReadyRevocationStore — хранилище отзывов с проверкой готовности.
type ReadyRevocationStore interface {
	RevocationStore
	CheckReady() (status string, message string)
}

// NewRevocationStore выбирает хранилище по конфигурации: Redis при заданном
// SG_REDIS_ADDR, иначе локальное в памяти. Возвращает функцию закрытия.
func NewRevocationStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ReadyRevocationStore, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Warn("SG_REDIS_ADDR не задан, отзыв токенов хранится в памяти процесса")
		return NewMemoryRevocationStore(memoryRevocationSize, cfg.JWTTTL), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.Ping(pingCtx).Result(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("ошибка подключения к Redis %s: %w", cfg.RedisAddr, err)
	}

	logger.Info("Подключение к Redis установлено", slog.String("addr", cfg.RedisAddr))
	return NewRedisRevocationStore(client), func() { client.Close() }, nil
}

// RevocationStore — хранилище отозванных токенов (по jti).
// Запись живёт до истечения срока самого токена.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

const revokedKeyPrefix = "sigescon:revoked:"

// RedisRevocationStore — общее для всех экземпляров хранилище в Redis.
type RedisRevocationStore struct {
	client *redis.Client
}

// NewRedisRevocationStore создаёт хранилище поверх клиента Redis.
func NewRedisRevocationStore(client *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{client: client}
}

// Revoke помечает jti отозванным до expiresAt. Истёкший токен не записывается.
func (s *RedisRevocationStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revokedKeyPrefix+jti, 1, ttl).Err(); err != nil {
		return fmt.Errorf("ошибка записи отзыва токена в Redis: %w", err)
	}
	return nil
}

// IsRevoked проверяет, отозван ли jti.
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := s.client.Get(ctx, revokedKeyPrefix+jti).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ошибка проверки отзыва токена в Redis: %w", err)
	}
	return true, nil
}

// CheckReady проверяет доступность Redis.
func (s *RedisRevocationStore) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		return "fail", fmt.Sprintf("Redis недоступен: %v", err)
	}
	return "ok", "Redis доступен"
}

// MemoryRevocationStore — хранилище в памяти процесса.
// Подходит только для одного экземпляра сервера.
type MemoryRevocationStore struct {
	cache *expirable.LRU[string, time.Time]
}

// NewMemoryRevocationStore создаёт хранилище на size записей.
// Записи вытесняются не позже чем через maxTTL.
func NewMemoryRevocationStore(size int, maxTTL time.Duration) *MemoryRevocationStore {
	return &MemoryRevocationStore{
		cache: expirable.NewLRU[string, time.Time](size, nil, maxTTL),
	}
}

// Revoke помечает jti отозванным до expiresAt.
func (s *MemoryRevocationStore) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	if time.Until(expiresAt) <= 0 {
		return nil
	}
	s.cache.Add(jti, expiresAt)
	return nil
}

// IsRevoked проверяет, отозван ли jti.
func (s *MemoryRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	expiresAt, ok := s.cache.Get(jti)
	if !ok {
		return false, nil
	}
	if time.Now().After(expiresAt) {
		s.cache.Remove(jti)
		return false, nil
	}
	return true, nil
}

// CheckReady — хранилище в памяти всегда готово.
func (s *MemoryRevocationStore) CheckReady() (status string, message string) {
	return "ok", fmt.Sprintf("локальное хранилище отзывов, записей: %d", s.cache.Len())
}
