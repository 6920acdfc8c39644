// Relay Worker — процесс фоновых задач.
//
// Worker:
//   - По одному циклу опроса на каждый kind (expand-series, notify,
//     settle-payments); захват job атомарный, несколько процессов
//     безопасно делят одну таблицу jobs
//   - Retry с фиксированным backoff до потолка попыток
//   - Sweep'ы (ежемесячное и pre-event напоминания) запускает только
//     лидер — процесс, удерживающий advisory lock в Postgres
//
// Worker-процессы масштабируются горизонтально.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Relay/internal/config"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/gateway"
	"github.com/shaiso/Relay/internal/repo"
	"github.com/shaiso/Relay/internal/sweep"
	"github.com/shaiso/Relay/internal/telemetry"
	"github.com/shaiso/Relay/internal/worker"
)

// sweepLockKey — ключ advisory lock лидерства sweep'ов.
const sweepLockKey int64 = 770412

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting relay-worker")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// DB pool
	pool, err := repo.NewPool(ctx, cfg.DBURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Репозитории
	jobRepo := repo.NewJobRepo(pool)
	eventRepo := repo.NewEventRepo(pool)
	memberRepo := repo.NewMemberRepo(pool)
	paymentRepo := repo.NewPaymentRepo(pool)

	// Шлюз уведомлений
	conn, err := gateway.NewConnection(cfg.AMQPURL, logger)
	if err != nil {
		logger.Error("failed to connect to notification gateway", "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	logger.Info("notification gateway connected")

	gw, err := gateway.NewAMQPGateway(conn, logger)
	if err != nil {
		logger.Error("failed to setup gateway topology", "error", err)
		os.Exit(1)
	}

	// Реестр обработчиков
	registry := worker.NewRegistry()
	registry.Register(worker.NewExpandHandler(eventRepo, logger))
	registry.Register(worker.NewNotifyHandler(eventRepo, memberRepo, gw, cfg.PushBatchSize, logger))
	registry.Register(worker.NewSettleHandler(paymentRepo, gw, logger))

	// Worker
	w := worker.New(worker.Config{
		Jobs:     jobRepo,
		Registry: registry,
		Intervals: map[domain.JobKind]time.Duration{
			domain.KindExpandSeries:   cfg.ExpandInterval,
			domain.KindNotifyEvent:    cfg.NotifyInterval,
			domain.KindSettlePayments: cfg.SettleInterval,
		},
		MaxAttempts:  cfg.MaxAttempts,
		RetryBackoff: cfg.RetryBackoff,
		ExecTimeout:  cfg.ExecTimeout,
		Logger:       logger,
	})
	w.Start(ctx)

	// Sweep'ы
	monthly, err := sweep.NewMonthlySweeper(sweep.MonthlyConfig{
		Members:   memberRepo,
		Gateway:   gw,
		Day:       cfg.MonthlySweepDay,
		Hour:      cfg.MonthlySweepHour,
		BatchSize: cfg.PushBatchSize,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to create monthly sweeper", "error", err)
		os.Exit(1)
	}

	preEvent := sweep.NewPreEventSweeper(sweep.PreEventConfig{
		Events:     eventRepo,
		Recipients: memberRepo,
		Gateway:    gw,
		Lookahead:  cfg.PreEventLookahead,
		Tick:       cfg.PreEventInterval,
		BatchSize:  cfg.PushBatchSize,
		Logger:     logger,
	})

	// Sweep'ы идемпотентны по-разному (флаг в базе / сторож в памяти),
	// поэтому в многопроцессной развёртке их запускает только лидер.
	go runSweepsAsLeader(ctx, pool, logger, monthly, preEvent)

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":" + cfg.MetricsPort
	go func() {
		logger.Info("listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	w.Stop()
	logger.Info("relay-worker stopped")
}

// runSweepsAsLeader запускает sweep'ы после захвата advisory lock.
//
// Лок сессионный и принадлежит конкретному соединению, поэтому его
// берём на выделенном соединении (pool.Acquire) и удерживаем это
// соединение до конца лидерства: лок на соединении из общего пула
// Postgres молча снял бы при его пересоздании. При падении лидера
// Postgres освобождает лок, и лидерство подхватывает другой процесс
// на очередной попытке.
func runSweepsAsLeader(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger, monthly *sweep.MonthlySweeper, preEvent *sweep.PreEventSweeper) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn, err := pool.Acquire(ctx)
			if err != nil {
				logger.Error("sweep leadership check failed", "error", err)
				continue
			}

			var acquired bool
			if err := conn.QueryRow(ctx, "select pg_try_advisory_lock($1)", sweepLockKey).Scan(&acquired); err != nil {
				conn.Release()
				logger.Error("sweep leadership check failed", "error", err)
				continue
			}
			if !acquired {
				conn.Release()
				continue
			}

			logger.Info("sweep leadership acquired")
			go monthly.Start(ctx)
			preEvent.Start(ctx)

			// Сюда приходим только на shutdown. Лок снимаем на отвязанном
			// от отмены контексте, чтобы соединение вернулось в пул чистым.
			unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			if _, err := conn.Exec(unlockCtx, "select pg_advisory_unlock($1)", sweepLockKey); err != nil {
				logger.Error("sweep leadership release failed", "error", err)
			}
			cancel()
			conn.Release()
			return
		}
	}
}
