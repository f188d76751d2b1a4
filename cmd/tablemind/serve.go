package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tablemind/internal/config"
	"tablemind/internal/database"
	"tablemind/internal/events"
	"tablemind/internal/metrics"
	"tablemind/internal/monitor"
	"tablemind/internal/notify"
	"tablemind/internal/report"
	"tablemind/internal/reservation"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the background monitor, periodic reports, backups and the ops endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, app.cfg, app.logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	st, err := openStores(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := seedRestaurants(ctx, st.main, cfg.Restaurants, &logger); err != nil {
		return err
	}

	checks := []readinessCheck{{name: "store", check: st.main.Ping}}

	bus := events.NewEventBus()
	if cfg.NATS.URL != "" {
		bridge, err := events.NewNATSBridge(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			return err
		}
		defer bridge.Close()
		bridge.Attach(bus)
		checks = append(checks, readinessCheck{name: "nats", check: func(context.Context) error {
			if !bridge.Connected() {
				return errors.New("disconnected")
			}
			return nil
		}})
	}

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		checks = append(checks, readinessCheck{name: "redis", check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	eng := newEngine(cfg, st.main, bus, logger)
	reconcileAll(ctx, st, eng.reservations, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
	}

	if cfg.Monitor.Enabled {
		mon, err := newMonitor(cfg, st, eng.reservations, bus, rdb, logger)
		if err != nil {
			return err
		}
		mon.Start()
		defer mon.Stop()
	}

	if cfg.Report.Enabled {
		reports, err := newReportService(ctx, cfg, st, logger)
		if err != nil {
			return err
		}
		reports.Start()
		defer reports.Stop()
	}

	if cfg.Backup.Enabled {
		if st.sqlite == nil {
			logger.Warn().Str("driver", cfg.Database.Driver).Msg("Backups need a sqlite database, skipping")
		} else {
			backups, err := newBackupService(ctx, cfg, st, &logger)
			if err != nil {
				return err
			}
			go backups.Start(ctx)
		}
	}

	healthPort := cfg.Monitoring.HealthCheckPort
	if healthPort == 0 {
		healthPort = 8090
	}
	promPort := cfg.Monitoring.PrometheusPort
	if promPort == 0 {
		promPort = 9090
	}
	sharedPort := cfg.Monitoring.PrometheusEnabled && promPort == healthPort
	go serveHTTP(ctx, "ops", healthPort, newOpsRouter(checks, sharedPort), &logger)
	if cfg.Monitoring.PrometheusEnabled && !sharedPort {
		go serveHTTP(ctx, "metrics", promPort, metricsRouter(), &logger)
	}

	logger.Info().Str("driver", cfg.Database.Driver).Msg("tablemind started")
	<-ctx.Done()
	logger.Info().Msg("Shutting down")
	return nil
}

// reconcileAll repairs waiter load counts left behind by partial writes.
func reconcileAll(ctx context.Context, st *stores, svc *reservation.Service, logger *zerolog.Logger) {
	restaurants, err := st.main.ListRestaurants(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list restaurants for reconciliation")
		return
	}
	for _, r := range restaurants {
		if _, err := svc.Reconcile(ctx, r.ID); err != nil {
			logger.Error().Err(err).Str("restaurant_id", r.ID).Msg("Reconciliation failed")
		}
	}
}

func newMonitor(
	cfg *config.Config,
	st *stores,
	assigner monitor.Assigner,
	bus *events.EventBus,
	rdb *redis.Client,
	logger zerolog.Logger,
) (*monitor.Service, error) {
	sinks := []notify.Sink{notify.NewLogSink(logger), notify.NewEventSink(bus)}
	if cfg.Telegram.BotToken != "" && len(cfg.Telegram.ChatIDs) > 0 {
		bot, err := notify.NewTelegramBot(cfg.Telegram.BotToken, cfg.Telegram.Debug)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, notify.NewTelegramSink(bot, cfg.Telegram.ChatIDs))
	}
	retry := notify.DefaultRetryConfig()
	retry.MaxRetries = cfg.NotifyMaxRetries()
	dispatcher := notify.NewDispatcher(notify.Config{
		Rate:  cfg.NotifyRate(),
		Burst: cfg.NotifyBurst(),
		Retry: retry,
	}, logger, sinks...)

	var cooldowns monitor.CooldownStore
	if cfg.Monitor.SharedCooldowns && rdb != nil {
		cooldowns = monitor.NewRedisCooldowns(rdb, "")
	}

	return monitor.NewService(&monitor.Config{
		Interval:            cfg.MonitorInterval(),
		Lookahead:           cfg.MonitorLookahead(),
		UpcomingCooldown:    cfg.UpcomingCooldown(),
		CleaningCooldown:    cfg.CleaningCooldown(),
		StaffingCooldown:    cfg.StaffingCooldown(),
		StaffingMinUpcoming: cfg.StaffingMinUpcoming(),
		StaffingMinOnShift:  cfg.StaffingMinOnShift(),
		AutoAssign:          cfg.AutoAssign(),
	}, st.main, assigner, dispatcher, cooldowns, monitor.NewMetrics("tablemind", prometheus.DefaultRegisterer), logger), nil
}

func newReportService(ctx context.Context, cfg *config.Config, st *stores, logger zerolog.Logger) (*report.Service, error) {
	exporters, err := reportExporters(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return report.NewService(report.Config{Interval: cfg.ReportInterval()}, st.main, logger, exporters...), nil
}

func reportExporters(ctx context.Context, cfg *config.Config) ([]report.Exporter, error) {
	exporters := []report.Exporter{report.NewExcelExporter(cfg.ReportDir(), nil)}
	if cfg.Report.Sheets.SpreadsheetID != "" {
		sheets, err := report.NewSheetsExporter(ctx, cfg.Report.Sheets.CredentialsFile, cfg.Report.Sheets.SpreadsheetID)
		if err != nil {
			return nil, err
		}
		exporters = append(exporters, sheets)
	}
	return exporters, nil
}

func newBackupService(ctx context.Context, cfg *config.Config, st *stores, logger *zerolog.Logger) (*database.BackupService, error) {
	var uploader database.Uploader
	if cfg.Backup.S3.Bucket != "" {
		s3, err := database.NewS3Uploader(ctx, cfg.Backup.S3.Region, cfg.Backup.S3.Bucket, cfg.Backup.S3.Prefix)
		if err != nil {
			return nil, err
		}
		uploader = s3
	}
	return database.NewBackupService(st.sqlite, uploader, database.BackupConfig{
		Dir:       cfg.BackupDir(),
		Interval:  cfg.BackupInterval(),
		Retention: cfg.BackupRetention(),
	}, logger), nil
}
