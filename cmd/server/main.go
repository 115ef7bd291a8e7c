package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/trainer-booking/internal/config"
	"github.com/iliyamo/trainer-booking/internal/database"
	"github.com/iliyamo/trainer-booking/internal/handler"
	"github.com/iliyamo/trainer-booking/internal/logger"
	"github.com/iliyamo/trainer-booking/internal/middleware"
	"github.com/iliyamo/trainer-booking/internal/payment"
	"github.com/iliyamo/trainer-booking/internal/queue"
	"github.com/iliyamo/trainer-booking/internal/repository"
	"github.com/iliyamo/trainer-booking/internal/router"
	"github.com/iliyamo/trainer-booking/internal/service"
	"github.com/iliyamo/trainer-booking/internal/tasks"
)

func main() {
	cfg := config.Load() // Load environment config
	log := logger.New(cfg.LogLevel, cfg.Env)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	// ---- Repositories ----
	txr := repository.NewTxRunner(db)
	bookings := repository.NewBookingRepo(db)
	credits := repository.NewCreditRepo(db)
	studios := repository.NewStudioRepo(db)
	clients := repository.NewClientRepo(db)

	// ---- Notification emitter ----
	var emitter service.Emitter
	if cfg.RabbitURL != "" {
		pub, err := queue.NewPublisher(cfg.RabbitURL, cfg.BookingExchange)
		if err != nil {
			// bookings keep working without notifications
			log.Warn("notification publisher unavailable", zap.Error(err))
		} else {
			defer pub.Close()
			emitter = pub
		}
	}

	// ---- Delayed tasks ----
	redisCfg := config.LoadRedisConfig()
	redisOpt := asynq.RedisClientOpt{Addr: redisCfg.Addr, Password: redisCfg.Password, DB: redisCfg.DB, TLSConfig: redisCfg.TLS}
	var reminders service.ReminderScheduler
	if cfg.TasksEnabled {
		hours, err := tasks.ParseHours(cfg.ReminderHours)
		if err != nil {
			log.Fatal("invalid REMINDER_HOURS", zap.Error(err))
		}
		client := asynq.NewClient(redisOpt)
		defer client.Close()
		reminders = tasks.NewReminderScheduler(client, hours, log, time.Now)
	}

	// ---- Services ----
	ledger := service.NewLedger(txr, credits, log.Named("ledger"), time.Now)
	reservations := service.NewReservations(service.Deps{
		Tx:        txr,
		Bookings:  bookings,
		Studios:   studios,
		Clients:   clients,
		Ledger:    ledger,
		Emitter:   emitter,
		Reminders: reminders,
		Log:       log.Named("reservations"),
		Now:       time.Now,
	})
	availability := service.NewAvailability(studios, bookings, time.Now)
	identity := service.NewIdentityResolver(clients, log.Named("identity"), time.Now)
	payments := service.NewPayments(repository.NewPaymentEventRepo(db), reservations, log.Named("payments"))

	if cfg.TasksEnabled {
		worker := tasks.NewWorker(redisOpt, cfg.WorkerConcurrency, cfg.HoldSweepInterval, log)
		if err := worker.Start(tasks.NewMux(reservations, reservations, ledger, log)); err != nil {
			log.Error("task worker not started", zap.Error(err))
		} else {
			defer worker.Shutdown()
		}
	}

	// ---- Consumers ----
	var webhookSink queue.PaymentProcessor = payments
	if cfg.RabbitURL != "" {
		if cfg.NotifyConsumer {
			sink := queue.NewNotificationSink(cfg.NotifyLogDir)
			go runConsumer(ctx, log, cfg.RabbitURL, queue.Binding{
				Exchange: cfg.BookingExchange,
				Queue:    "booking.notifications",
				Keys:     []string{queue.KeyBookingConfirmed, queue.KeyBookingCancelled, queue.KeyReminderDue, queue.KeyLowCredits},
			}, sink.Handle)
		}
		if cfg.PaymentConsumer {
			go runConsumer(ctx, log, cfg.RabbitURL, queue.Binding{
				Exchange: cfg.PaymentExchange,
				Queue:    "booking.payments",
				Keys:     []string{queue.PaymentCheckoutCompleted, queue.PaymentFailed, queue.PaymentChargeRefunded},
			}, queue.PaymentHandler(payments))
			if fwd, err := queue.NewPublisher(cfg.RabbitURL, cfg.PaymentExchange); err != nil {
				log.Warn("payment forwarder unavailable, applying webhooks in-process", zap.Error(err))
			} else {
				defer fwd.Close()
				webhookSink = queue.PaymentForwarder{Pub: fwd}
			}
		}
	}

	// ---- HTTP ----
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable: rate limiting and caching disabled")
	} else {
		defer rdb.Close()
	}

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(middleware.RequestLogger(log.Named("http")))

	h := router.Handlers{
		Auth:     handler.NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db), log.Named("auth")),
		Bookings: handler.NewBookingHandler(reservations, availability, log.Named("http")),
		Credits:  handler.NewCreditHandler(ledger, clients, log.Named("http")),
		Public:   handler.NewPublicHandler(reservations, identity, availability, log.Named("http")),
		Health:   handler.Health(db),
	}
	if cfg.StripeWebhookSecret != "" {
		h.Webhooks = handler.NewWebhookHandler(payment.NewStripeWebhook(cfg.StripeWebhookSecret), webhookSink, log.Named("webhook"))
	}
	router.Register(e, h, router.Options{
		JWTSecret: cfg.JWTSecret,
		Redis:     rdb,
		Cache:     config.LoadCacheConfig(),
		RateLimit: config.LoadRateLimitConfig(),
		Log:       log.Named("http"),
	})

	addr := ":" + cfg.Port // Address string with port
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
}

// runConsumer feeds b to h until ctx is cancelled.
func runConsumer(ctx context.Context, log *zap.Logger, url string, b queue.Binding, h queue.Handler) {
	if err := queue.Consume(ctx, url, b, h, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("consumer stopped", zap.String("queue", b.Queue), zap.Error(err))
	}
}
