// Точка входа deadline-sweep — однократная проверка сроков обязательств.
// Предназначен для внешнего планировщика (cron, Kubernetes CronJob):
// рассылает напоминания фискалам за 15, 5, 3 и 0 дней до срока и завершается.
// Код выхода 1 — ошибка конфигурации, подключения или выборки.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bigkaa/sigescon/internal/config"
	"github.com/bigkaa/sigescon/internal/database"
	"github.com/bigkaa/sigescon/internal/notify"
	"github.com/bigkaa/sigescon/internal/repository"
	"github.com/bigkaa/sigescon/internal/service"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadSweep()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		return 1
	}

	logger := config.SetupLogger(cfg)
	logger.Info("Проверка сроков запускается", slog.String("version", config.Version))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		return 1
	}
	defer pool.Close()

	repos := repository.New(pool)
	notifier := notify.NewNotifier(notify.NewMailer(cfg, logger), logger)
	sweep := service.NewDeadlineSweep(repos.Pendencies, notifier, cfg.Location, logger)

	if _, err := sweep.Run(ctx, sweep.Today()); err != nil {
		logger.Error("Проверка сроков завершилась с ошибкой", slog.String("error", err.Error()))
		return 1
	}
	return 0
}
