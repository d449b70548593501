// sweep.go — Deadline Sweep: ежедневные напоминания фискалам о сроках обязательств.
//
// Sweep только читает БД и отправляет письма. Отметок «уже напомнили»
// нет: повторный запуск в тот же день отправит письма повторно.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"

	"github.com/bigkaa/sigescon/internal/domain/model"
	"github.com/bigkaa/sigescon/internal/domain/workflow"
	"github.com/bigkaa/sigescon/internal/notify"
	"github.com/bigkaa/sigescon/internal/repository"
)

// Prometheus-метрики sweep.
var (
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sg_sweep_runs_total",
		Help: "Общее количество запусков рассылки напоминаний",
	})

	sweepNotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sg_sweep_notifications_total",
			Help: "Напоминания о сроках по результату отправки",
		},
		[]string{"result"},
	)
)

// SweepResult — результат одного запуска.
type SweepResult struct {
	// Scanned — количество просмотренных открытых обязательств
	Scanned int
	// Sent — количество успешно отправленных напоминаний
	Sent int
	// Failed — количество ошибок отправки
	Failed int
	// Duration — длительность выполнения
	Duration time.Duration
}

// DeadlineSweep рассылает напоминания за 15, 5, 3 и 0 дней до срока.
type DeadlineSweep struct {
	pendencies repository.PendencyRepository
	notifier   Notifier
	loc        *time.Location
	logger     *slog.Logger

	mu   sync.Mutex // защита от параллельного запуска Run
	cron *cron.Cron
}

// NewDeadlineSweep создаёт sweep. loc задаёт часовой пояс календарных дат.
func NewDeadlineSweep(pendencies repository.PendencyRepository, notifier Notifier, loc *time.Location, logger *slog.Logger) *DeadlineSweep {
	if loc == nil {
		loc = time.UTC
	}
	return &DeadlineSweep{
		pendencies: pendencies,
		notifier:   notifier,
		loc:        loc,
		logger:     logger.With(slog.String("component", "deadline_sweep")),
	}
}

// Today возвращает текущую календарную дату в часовом поясе sweep.
func (s *DeadlineSweep) Today() model.Date {
	return model.DateOf(time.Now().In(s.loc))
}

// Run выполняет один проход для даты today.
// Ошибка возвращается только при сбое выборки; сбой письма
// для одного обязательства не прерывает обработку остальных.
func (s *DeadlineSweep) Run(ctx context.Context, today model.Date) (*SweepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	sweepRunsTotal.Inc()

	items, err := s.pendencies.ListRemindable(ctx, string(workflow.PendencyPending))
	if err != nil {
		s.logger.Error("Ошибка выборки обязательств", slog.String("error", err.Error()))
		return nil, fmt.Errorf("выборка обязательств: %w", err)
	}

	result := &SweepResult{Scanned: len(items)}
	for _, item := range items {
		days := today.DaysUntil(item.DataPrazo)
		if !workflow.ShouldRemind(days) {
			continue
		}
		msg := notify.ReminderMessage(item, days)
		if err := s.notifier.Notify(ctx, notify.KindReminder, item.FiscalEmail, msg); err != nil {
			result.Failed++
			sweepNotificationsTotal.WithLabelValues("error").Inc()
			continue
		}
		result.Sent++
		sweepNotificationsTotal.WithLabelValues("sent").Inc()
		s.logger.Debug("Напоминание отправлено",
			slog.Int64("pendency_id", item.PendenciaID),
			slog.Int("days_remaining", days),
		)
	}

	result.Duration = time.Since(start)
	s.logger.Info("Рассылка напоминаний завершена",
		slog.String("today", today.String()),
		slog.Int("scanned", result.Scanned),
		slog.Int("sent", result.Sent),
		slog.Int("failed", result.Failed),
		slog.String("duration", result.Duration.String()),
	)
	return result, nil
}

// Start планирует ежедневный запуск по cron-выражению в часовом поясе sweep.
func (s *DeadlineSweep) Start(ctx context.Context, schedule string) error {
	c := cron.New(cron.WithLocation(s.loc))
	_, err := c.AddFunc(schedule, func() {
		if _, err := s.Run(ctx, s.Today()); err != nil {
			s.logger.Error("Рассылка напоминаний не выполнена", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("некорректное расписание %q: %w", schedule, err)
	}
	s.cron = c
	c.Start()

	s.logger.Info("Рассылка напоминаний запланирована",
		slog.String("schedule", schedule),
		slog.String("timezone", s.loc.String()),
	)
	return nil
}

// Stop останавливает планировщик и ждёт завершения текущего запуска.
func (s *DeadlineSweep) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("Рассылка напоминаний остановлена")
}
