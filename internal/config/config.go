// Пакет config — загрузка и валидация конфигурации SIGESCON
// из переменных окружения (с поддержкой .env файла).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload" // .env в рабочей директории
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации SIGESCON.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Максимальный размер multipart-запроса в байтах
	MaxUploadSize int64

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string
	// Минимальное и максимальное число соединений в пуле
	DBMinConns int
	DBMaxConns int

	// --- JWT ---

	// Секрет подписи HS256
	JWTSecret string
	// Время жизни токена
	JWTTTL time.Duration
	// Issuer токенов
	JWTIssuer string

	// --- Redis (хранилище отозванных токенов) ---

	// Адрес Redis; пустой — отзыв хранится в памяти процесса
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// --- SMTP ---

	// Хост SMTP; пустой — письма только логируются
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	// --- Файлы ---

	// Корневая директория хранения загруженных файлов
	UploadDir string

	// --- Начальный администратор ---

	AdminName     string
	AdminEmail    string
	AdminPassword string

	// --- Проверка сроков ---

	// Запускать ежедневную проверку сроков внутри процесса сервера
	SweepEnabled bool
	// Cron-выражение запуска проверки
	SweepSchedule string
	// Часовой пояс для календарных дат и расписания
	Location *time.Location

	// --- Кэш справочников ---

	LookupCacheSize int
	LookupCacheTTL  time.Duration

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает полную конфигурацию API-сервера из переменных окружения,
// валидирует обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	for _, load := range []func(*Config) error{loadLogging, loadDatabase, loadMail, loadSweep, loadServer} {
		if err := load(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadSweep загружает только то, что нужно однократной проверке сроков:
// логирование, PostgreSQL, SMTP и часовой пояс. SG_JWT_SECRET не требуется.
func LoadSweep() (*Config, error) {
	cfg := &Config{}
	for _, load := range []func(*Config) error{loadLogging, loadDatabase, loadMail, loadSweep} {
		if err := load(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// loadLogging читает уровень и формат логов.
func loadLogging(cfg *Config) error {
	var err error

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("SG_LOG_LEVEL", "info"))
	if err != nil {
		return fmt.Errorf("SG_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("SG_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return fmt.Errorf("SG_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	return nil
}

// loadDatabase читает параметры PostgreSQL.
func loadDatabase(cfg *Config) error {
	var err error

	if cfg.DBHost, err = getEnvRequired("SG_DB_HOST"); err != nil {
		return err
	}
	cfg.DBPort, err = getEnvInt("SG_DB_PORT", 5432)
	if err != nil {
		return fmt.Errorf("SG_DB_PORT: %w", err)
	}
	if cfg.DBName, err = getEnvRequired("SG_DB_NAME"); err != nil {
		return err
	}
	if cfg.DBUser, err = getEnvRequired("SG_DB_USER"); err != nil {
		return err
	}
	if cfg.DBPassword, err = getEnvRequired("SG_DB_PASSWORD"); err != nil {
		return err
	}

	cfg.DBSSLMode = getEnvDefault("SG_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return fmt.Errorf("SG_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	cfg.DBMinConns, err = getEnvInt("SG_DB_MIN_CONNS", 1)
	if err != nil {
		return fmt.Errorf("SG_DB_MIN_CONNS: %w", err)
	}
	cfg.DBMaxConns, err = getEnvInt("SG_DB_MAX_CONNS", 10)
	if err != nil {
		return fmt.Errorf("SG_DB_MAX_CONNS: %w", err)
	}
	if cfg.DBMinConns < 0 || cfg.DBMaxConns < 1 || cfg.DBMinConns > cfg.DBMaxConns {
		return fmt.Errorf("SG_DB_MIN_CONNS/SG_DB_MAX_CONNS: некорректный диапазон %d..%d", cfg.DBMinConns, cfg.DBMaxConns)
	}

	return nil
}

// loadMail читает параметры SMTP.
func loadMail(cfg *Config) error {
	var err error

	cfg.SMTPHost = getEnvDefault("SG_SMTP_HOST", "")
	cfg.SMTPPort, err = getEnvInt("SG_SMTP_PORT", 587)
	if err != nil {
		return fmt.Errorf("SG_SMTP_PORT: %w", err)
	}
	cfg.SMTPUsername = getEnvDefault("SG_SMTP_USERNAME", "")
	cfg.SMTPPassword = getEnvDefault("SG_SMTP_PASSWORD", "")
	cfg.SMTPFrom = getEnvDefault("SG_SMTP_FROM", cfg.SMTPUsername)
	if cfg.SMTPHost != "" && cfg.SMTPFrom == "" {
		return fmt.Errorf("SG_SMTP_FROM: обязателен при заданном SG_SMTP_HOST")
	}

	return nil
}

// loadSweep читает расписание и часовой пояс проверки сроков.
func loadSweep(cfg *Config) error {
	var err error

	cfg.SweepEnabled, err = getEnvBool("SG_SWEEP_ENABLED", false)
	if err != nil {
		return fmt.Errorf("SG_SWEEP_ENABLED: %w", err)
	}
	cfg.SweepSchedule = getEnvDefault("SG_SWEEP_SCHEDULE", "0 8 * * *")

	tz := getEnvDefault("SG_TIMEZONE", "America/Sao_Paulo")
	cfg.Location, err = time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("SG_TIMEZONE: неизвестный часовой пояс %q", tz)
	}

	return nil
}

// loadServer читает параметры HTTP-сервера, JWT, Redis, файлов и кэша.
func loadServer(cfg *Config) error {
	var err error

	cfg.Port, err = getEnvInt("SG_PORT", 8000)
	if err != nil {
		return fmt.Errorf("SG_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("SG_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	maxUpload, err := getEnvInt("SG_MAX_UPLOAD_SIZE", 32<<20)
	if err != nil {
		return fmt.Errorf("SG_MAX_UPLOAD_SIZE: %w", err)
	}
	if maxUpload < 1 {
		return fmt.Errorf("SG_MAX_UPLOAD_SIZE: значение должно быть положительным")
	}
	cfg.MaxUploadSize = int64(maxUpload)

	// --- JWT ---

	if cfg.JWTSecret, err = getEnvRequired("SG_JWT_SECRET"); err != nil {
		return err
	}
	if len(cfg.JWTSecret) < 32 {
		return fmt.Errorf("SG_JWT_SECRET: секрет должен быть не короче 32 байт")
	}
	cfg.JWTTTL, err = getEnvDuration("SG_JWT_TTL", 12*time.Hour)
	if err != nil {
		return fmt.Errorf("SG_JWT_TTL: %w", err)
	}
	cfg.JWTIssuer = getEnvDefault("SG_JWT_ISSUER", "sigescon")

	// --- Redis ---

	cfg.RedisAddr = getEnvDefault("SG_REDIS_ADDR", "")
	cfg.RedisPassword = getEnvDefault("SG_REDIS_PASSWORD", "")
	cfg.RedisDB, err = getEnvInt("SG_REDIS_DB", 0)
	if err != nil {
		return fmt.Errorf("SG_REDIS_DB: %w", err)
	}

	// --- Файлы ---

	cfg.UploadDir = getEnvDefault("SG_UPLOAD_DIR", "./uploads")

	// --- Начальный администратор ---

	cfg.AdminName = getEnvDefault("SG_ADMIN_NAME", "Administrador")
	cfg.AdminEmail = getEnvDefault("SG_ADMIN_EMAIL", "")
	cfg.AdminPassword = getEnvDefault("SG_ADMIN_PASSWORD", "")
	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		return fmt.Errorf("SG_ADMIN_EMAIL и SG_ADMIN_PASSWORD задаются только вместе")
	}

	// --- Кэш справочников ---

	cfg.LookupCacheSize, err = getEnvInt("SG_LOOKUP_CACHE_SIZE", 256)
	if err != nil {
		return fmt.Errorf("SG_LOOKUP_CACHE_SIZE: %w", err)
	}
	if cfg.LookupCacheSize < 1 {
		return fmt.Errorf("SG_LOOKUP_CACHE_SIZE: значение должно быть положительным")
	}
	cfg.LookupCacheTTL, err = getEnvDuration("SG_LOOKUP_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return fmt.Errorf("SG_LOOKUP_CACHE_TTL: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("SG_DEPHEALTH_GROUP", "sigescon")
	cfg.DephealthCheckInterval, err = getEnvDuration("SG_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return fmt.Errorf("SG_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("SG_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return fmt.Errorf("SG_SHUTDOWN_TIMEOUT: %w", err)
	}

	return nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов метрик).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// SMTPEnabled сообщает, настроена ли отправка почты.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
