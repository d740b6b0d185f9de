package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"gym-access-backend/config"
	"gym-access-backend/internal/access"
	"gym-access-backend/internal/analytics"
	"gym-access-backend/internal/clock"
	"gym-access-backend/internal/db"
	"gym-access-backend/internal/lock"
	"gym-access-backend/internal/metrics"
	"gym-access-backend/internal/notification"
	"gym-access-backend/internal/queuecache"
	"gym-access-backend/internal/rewards"
	"gym-access-backend/internal/store"
)

// app holds the wired components shared by every command.
type app struct {
	db          *gorm.DB
	coordinator *access.Coordinator
	dispatcher  *notification.Dispatcher
	hub         *notification.Hub
	webpush     *webpush.Options
	metrics     *metrics.Metrics
	closers     []func()
}

func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := &app{
		db:      gormDB,
		hub:     notification.NewHub(),
		metrics: metrics.New(),
	}
	clk := clock.NewSystem()
	appStore := store.NewGormStore(gormDB)

	sinks := []notification.Sink{a.hub}
	if cfg.Push.Enabled() {
		a.webpush = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		sinks = append(sinks, notification.NewPushSink(gormDB, a.webpush, logger))
	} else {
		logger.Warn("VAPID keys not configured; web push disabled")
	}
	if len(cfg.Events.Kafka.Brokers) > 0 {
		k := notification.NewKafkaSink(cfg.Events.Kafka.Brokers, cfg.Events.Kafka.Topic)
		a.closers = append(a.closers, func() { _ = k.Close() })
		sinks = append(sinks, k)
		logger.Info("kafka sink enabled", "topic", cfg.Events.Kafka.Topic)
	}
	if cfg.Events.MQTT.Broker != "" {
		m, client, err := notification.ConnectMQTT(notification.MQTTOptions{
			Broker:      cfg.Events.MQTT.Broker,
			ClientID:    cfg.Events.MQTT.ClientID,
			TopicPrefix: cfg.Events.MQTT.TopicPrefix,
			Logger:      logger,
		})
		if err != nil {
			logger.Error("mqtt sink disabled", "broker", cfg.Events.MQTT.Broker, "error", err)
		} else {
			a.closers = append(a.closers, func() { client.Disconnect(250) })
			sinks = append(sinks, m)
		}
	}

	a.dispatcher = notification.NewDispatcher(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize,
		notification.WithLogger(logger),
		notification.WithClock(clk),
		notification.WithObserver(a.metrics),
		notification.WithSinks(sinks...),
	)

	locker := lock.New(ctx, lock.Config{
		Strategy: cfg.Lock.Strategy,
		TTL:      time.Duration(cfg.Lock.TTLSeconds) * time.Second,
		Wait:     time.Duration(cfg.Lock.WaitMillis) * time.Millisecond,
		Clock:    clk,
		Logger:   logger,
	}, gormDB)

	estimator := analytics.NewEstimator(appStore,
		analytics.WithClock(clk),
		analytics.WithHistorySize(cfg.Analytics.HistorySize),
		analytics.WithDefaultSession(time.Duration(cfg.Analytics.DefaultSessionMinutes)*time.Minute),
		analytics.WithWaitLookback(time.Duration(cfg.Analytics.WaitLookbackDays)*24*time.Hour),
	)

	opts := []access.Option{
		access.WithClock(clk),
		access.WithLogger(logger),
		access.WithLocker(locker),
		access.WithNotifier(a.dispatcher),
		access.WithMetrics(a.metrics),
		access.WithQueueCache(queuecache.New(cfg.Cache.QueueTTL, a.metrics)),
		access.WithEstimator(estimator),
		access.WithMaxSessionDuration(cfg.Access.MaxSession),
		access.WithClaimWindow(cfg.Access.ClaimWindow),
		access.WithCalorieRates(cfg.Access.CalorieRates),
	}
	if cfg.Rewards.BaseURL != "" {
		opts = append(opts, access.WithRewards(
			rewards.New(cfg.Rewards.BaseURL, time.Duration(cfg.Rewards.TimeoutSeconds)*time.Second, logger)))
	}
	a.coordinator = access.New(appStore, opts...)

	logger.Info("services initialized", "sinks", len(sinks), "lock_strategy", cfg.Lock.Strategy)
	return a, nil
}

// Close releases external connections.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
