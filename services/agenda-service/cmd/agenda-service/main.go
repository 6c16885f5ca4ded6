package main

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/clinicagenda/agenda/libs/config"
	"github.com/clinicagenda/agenda/libs/db"
	"github.com/clinicagenda/agenda/libs/httpx"
	"github.com/clinicagenda/agenda/libs/kafkax"
	otelx "github.com/clinicagenda/agenda/libs/otel"
	"github.com/clinicagenda/agenda/libs/redisx"
	"github.com/clinicagenda/agenda/libs/runtime"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/booking"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/handlers"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/metrics"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/model"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/outbox"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/policy"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/readstate"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/reminders"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/storage"
)

func parseLeadHours(raw string, logger *slog.Logger) []int {
	var hours []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		h, err := strconv.Atoi(part)
		if err != nil || h <= 0 {
			logger.Warn("invalid reminder lead hours", "value", part)
			continue
		}
		hours = append(hours, h)
	}
	return model.NormalizeLeadHours(hours)
}

func main() {
	// .env is optional outside development.
	_ = godotenv.Load()

	service := config.String("SERVICE_NAME", "agenda-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	loc, err := config.Location("CLINIC_TIMEZONE", "America/Sao_Paulo")
	if err != nil {
		logger.Error("invalid clinic timezone", "err", err)
		panic(err)
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
		MinConns: int32(config.Int("DB_MIN_CONNS", 1)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	rdb, err := redisx.Open(ctx, redisx.Options{
		Addr:     config.String("REDIS_ADDR", ""),
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       config.Int("REDIS_DB", 0),
		TLS:      config.Bool("REDIS_TLS", false),
	})
	if err != nil {
		logger.Error("redis connection failed", "err", err)
		panic(err)
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	agendaMetrics := metrics.NewAgendaMetrics(prometheus.DefaultRegisterer)
	onReadChange := func(professionalID, op string, n int) {
		agendaMetrics.ObserveReadStateChange(op, n)
	}
	var readStore readstate.Store
	if rdb != nil {
		readStore = readstate.NewRedisStore(rdb, readstate.WithRedisOnChange(onReadChange))
	} else {
		logger.Warn("REDIS_ADDR not set; read-state kept in memory")
		readStore = readstate.NewMemoryStore(onReadChange)
	}

	defaults := policy.DefaultSettings(parseLeadHours(config.String("DEFAULT_REMINDER_HOURS", "24"), logger))
	settings := policy.WithFallback(policy.NewPostgresProvider(pool), defaults, logger)

	appointments := storage.NewAppointmentRepository(pool)
	outboxRepo := outbox.NewRepository()
	brokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
		OnPublish: agendaMetrics.ObservePublished,
	})
	go outboxPublisher.Run(ctx)

	bookingService := booking.NewService(appointments, outboxRepo, settings, logger, agendaMetrics, booking.Config{Location: loc})
	feed := reminders.NewFeed(appointments, settings, readStore, logger, agendaMetrics, reminders.FeedConfig{
		Location: loc,
		GC:       config.Bool("READSTATE_GC", true),
	})

	pollInterval := config.Duration("REMINDER_POLL_INTERVAL", time.Minute)
	presence := reminders.NewPresence(2*pollInterval, nil)
	for _, professionalID := range config.List("REMINDER_WATCH_PROFESSIONALS") {
		poller := &reminders.Poller{
			Interval: pollInterval,
			Visible:  presence.VisibleFunc(professionalID),
			Logger:   logger.With("professional_id", professionalID),
			Check: func(ctx context.Context) ([]model.DerivedNotification, error) {
				return feed.Notifications(ctx, professionalID)
			},
			Deliver: func(ctx context.Context, ns []model.DerivedNotification) {
				for _, n := range ns {
					evt, err := outbox.NewEvent("notification", n.ID.String(), outbox.EventReminderSurfaced, n)
					if err == nil {
						err = outboxRepo.Insert(ctx, pool, evt)
					}
					if err != nil {
						logger.Error("reminder delivery failed", "professional_id", professionalID, "id", n.ID.String(), "err", err)
					}
				}
			},
		}
		go poller.Run(ctx)
	}

	availabilityHandler := handlers.NewAvailabilityHandler(appointments, settings, logger, loc, nil)
	appointmentHandler := handlers.NewAppointmentHandler(bookingService, appointments, logger)
	notificationHandler := handlers.NewNotificationHandler(feed, readStore, presence, logger)

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	}
	if rdb != nil {
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: redisx.ReadyCheck(rdb)})
	}
	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/metrics", metrics.Handler(prometheus.DefaultGatherer))
	mux.HandleFunc("/api/v1/slots", availabilityHandler.Slots)
	mux.HandleFunc("/api/v1/slots/first-available", availabilityHandler.FirstAvailable)
	mux.HandleFunc("/api/v1/holidays", availabilityHandler.Holidays)
	mux.HandleFunc("/api/v1/appointments", appointmentHandler.List)
	mux.HandleFunc("/api/v1/appointments/book", appointmentHandler.Book)
	mux.HandleFunc("/api/v1/appointments/update", appointmentHandler.Update)
	mux.HandleFunc("/api/v1/notifications", notificationHandler.List)
	mux.HandleFunc("/api/v1/notifications/read", notificationHandler.MarkRead)
	mux.HandleFunc("/api/v1/notifications/read-all", notificationHandler.MarkAllRead)
	mux.HandleFunc("/api/v1/notifications/clear", notificationHandler.Clear)

	rateLimit := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	var limiter httpx.Middleware
	if rdb != nil {
		limiter = httpx.NewRedisRateLimiter(rdb, rateLimit, time.Minute, "agenda:ratelimit", httpx.ProfessionalKey).Middleware(logger, true)
	} else {
		limiter = httpx.NewRateLimiter(rateLimit, time.Minute, httpx.ProfessionalKey).Middleware()
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.DefaultCORSPolicy(config.List("CORS_ALLOWED_ORIGINS"))),
		limiter,
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(config.Duration("HTTP_HANDLER_TIMEOUT", 15*time.Second)),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "agenda")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
