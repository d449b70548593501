// Точка входа SIGESCON — API управления контрактами.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// создаёт начального администратора, сервисный слой и API handlers,
// запускает фоновые задачи (проверка сроков, topologymetrics)
// и HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/sigescon/internal/api/handlers"
	"github.com/bigkaa/sigescon/internal/api/middleware"
	"github.com/bigkaa/sigescon/internal/api/openapi"
	"github.com/bigkaa/sigescon/internal/auth"
	"github.com/bigkaa/sigescon/internal/config"
	"github.com/bigkaa/sigescon/internal/database"
	"github.com/bigkaa/sigescon/internal/notify"
	"github.com/bigkaa/sigescon/internal/repository"
	"github.com/bigkaa/sigescon/internal/server"
	"github.com/bigkaa/sigescon/internal/service"
	"github.com/bigkaa/sigescon/internal/storage/filestore"
)

//nolint:funlen // последовательная инициализация компонентов
func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("SIGESCON запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. OpenAPI контракт (валидируется при старте)
	doc, err := openapi.Load(ctx)
	if err != nil {
		fatal(logger, "Ошибка загрузки OpenAPI контракта", err)
	}
	specHandler, err := openapi.Handler(doc)
	if err != nil {
		fatal(logger, "Ошибка подготовки OpenAPI контракта", err)
	}

	// 4. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		fatal(logger, "Ошибка миграций БД", err)
	}

	// 5. Подключение к PostgreSQL (pgxpool)
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		fatal(logger, "Ошибка подключения к PostgreSQL", err)
	}
	defer pool.Close()

	// 5.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 6. Начальный администратор
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := database.SeedAdmin(ctx, pool, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword, logger); err != nil {
			fatal(logger, "Ошибка создания начального администратора", err)
		}
	}

	// 7. Хранилище файлов
	store, err := filestore.New(cfg.UploadDir)
	if err != nil {
		fatal(logger, "Ошибка инициализации хранилища файлов", err)
	}
	logger.Info("Хранилище файлов готово", slog.String("dir", store.DataDir()))

	// 8. Хранилище отозванных токенов (Redis или память процесса)
	revocations, closeRevocations, err := auth.NewRevocationStore(ctx, cfg, logger)
	if err != nil {
		fatal(logger, "Ошибка инициализации хранилища отзывов", err)
	}
	defer closeRevocations()

	// 9. Почта
	notifier := notify.NewNotifier(notify.NewMailer(cfg, logger), logger)

	// 10. Repositories и services
	repos := repository.New(pool)
	tx := repository.NewTxRunner(pool)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)

	lookupsSvc := service.NewLookupService(repos.Lookups, cfg.LookupCacheSize, cfg.LookupCacheTTL, logger)
	filesSvc := service.NewFileService(repos, tx, store, logger)
	svc := handlers.Services{
		Auth:       service.NewAuthService(repos.Users, tokens, revocations, logger),
		Lookups:    lookupsSvc,
		Users:      service.NewUserService(repos.Users, lookupsSvc, logger),
		Parties:    service.NewContractedPartyService(repos.Parties, logger),
		Contracts:  service.NewContractService(repos, tx, filesSvc, lookupsSvc, notifier, logger),
		Pendencies: service.NewPendencyService(repos, lookupsSvc, logger),
		Reports:    service.NewReportService(repos, tx, filesSvc, lookupsSvc, notifier, logger),
		Files:      filesSvc,
	}

	// 11. Ежедневная проверка сроков внутри процесса (опционально)
	if cfg.SweepEnabled {
		sweep := service.NewDeadlineSweep(repos.Pendencies, notifier, cfg.Location, logger)
		if err := sweep.Start(ctx, cfg.SweepSchedule); err != nil {
			fatal(logger, "Ошибка запуска проверки сроков", err)
		}
		defer sweep.Stop()
	}

	// 12. topologymetrics — мониторинг зависимостей (PostgreSQL)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"sigescon",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
			defer dephealthSvc.Stop()
		}
	}

	// 13. Health и API handlers
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(pool), store, revocations)
	apiHandler := handlers.NewAPIHandler(healthHandler, svc, cfg.MaxUploadSize, logger)
	jwtAuth := middleware.NewJWTAuth(tokens, revocations, logger)

	// 14. HTTP-сервер (блокирующий вызов с graceful shutdown)
	srv := server.New(cfg, logger, apiHandler, jwtAuth, specHandler)
	if err := srv.Run(ctx); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		cancel()
		os.Exit(1) //nolint:gocritic // defer-ы не критичны при аварийном завершении
	}

	logger.Info("SIGESCON остановлен")
}

// fatal логирует ошибку и завершает процесс с кодом 1.
func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, slog.String("error", err.Error()))
	os.Exit(1)
}
