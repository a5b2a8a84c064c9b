package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	bookinghandler "expatdesk/internal/booking/handler"
	bookingmetrics "expatdesk/internal/booking/metrics"
	bookingservice "expatdesk/internal/booking/service"
	bookingstore "expatdesk/internal/booking/store"
	checkouthandler "expatdesk/internal/checkout/handler"
	checkoutservice "expatdesk/internal/checkout/service"
	"expatdesk/internal/checkout/verifier"
	jwttoken "expatdesk/internal/jwt_token"
	"expatdesk/internal/platform/config"
	"expatdesk/internal/platform/kafka"
	"expatdesk/internal/platform/logger"
	"expatdesk/internal/platform/metrics"
	"expatdesk/internal/platform/postgres"
	"expatdesk/internal/platform/redis"
	ratelimitmw "expatdesk/internal/ratelimit/middleware"
	ratelimitmodels "expatdesk/internal/ratelimit/models"
	ratelimitstore "expatdesk/internal/ratelimit/store"
	reviewhandler "expatdesk/internal/review/handler"
	reviewmetrics "expatdesk/internal/review/metrics"
	reviewservice "expatdesk/internal/review/service"
	reviewstore "expatdesk/internal/review/store"
	"expatdesk/pkg/platform/audit"
	"expatdesk/pkg/platform/audit/publisher"
	auditmemory "expatdesk/pkg/platform/audit/store/memory"
	auditpostgres "expatdesk/pkg/platform/audit/store/postgres"
	"expatdesk/pkg/platform/audit/worker"
	"expatdesk/pkg/platform/middleware/metadata"
	"expatdesk/pkg/platform/tx"
)

// main wires dependencies and runs the HTTP server and the audit relay
// until a shutdown signal arrives.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("expatdesk stopped", zap.Error(err))
	}
}

type stores struct {
	reviews      reviewservice.Store
	appointments bookingservice.AppointmentStore
	users        bookingservice.UserDirectory
	audit        audit.Store
	outbox       *auditpostgres.Store
	tx           tx.Runner
	db           *sql.DB
}

func openStores(ctx context.Context, cfg config.Server, log *zap.Logger) (*stores, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		return &stores{
			reviews:      reviewstore.NewInMemory(),
			appointments: bookingstore.NewInMemoryAppointments(),
			users:        bookingstore.NewInMemoryUsers(),
			audit:        auditmemory.NewInMemoryStore(),
			tx:           tx.NoopRunner{},
		}, nil
	}
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	outbox := auditpostgres.New(db)
	return &stores{
		reviews:      reviewstore.NewPostgres(db),
		appointments: bookingstore.NewPostgresAppointments(db),
		users:        bookingstore.NewPostgresUsers(db),
		audit:        outbox,
		outbox:       outbox,
		tx:           newTimeoutRunner(tx.NewSQLRunner(db)),
		db:           db,
	}, nil
}

func run(ctx context.Context, cfg config.Server, log *zap.Logger) error {
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	if st.db != nil {
		defer st.db.Close()
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	reviewMetrics := reviewmetrics.New()
	reviews := st.reviews
	if redisClient != nil {
		defer redisClient.Close()
		reviews = reviewstore.NewCached(st.reviews, redisClient.Client, cfg.ReviewCacheTTL,
			reviewstore.WithCacheLogger(log),
			reviewstore.WithCacheMetrics(reviewMetrics),
		)
	}

	auditPublisher := publisher.NewPublisher(st.audit, publisher.WithLogger(log))
	reviewSvc := reviewservice.New(reviews,
		reviewservice.WithLogger(log),
		reviewservice.WithMetrics(reviewMetrics),
		reviewservice.WithAuditPublisher(auditPublisher),
		reviewservice.WithTx(st.tx),
	)
	projector := bookingservice.NewProjector(st.appointments, st.users,
		bookingservice.WithLogger(log),
		bookingservice.WithMetrics(bookingmetrics.New()),
		bookingservice.WithAuditPublisher(auditPublisher),
		bookingservice.WithTx(st.tx),
	)
	jwtService := jwttoken.NewJWTService(cfg.Operator.SigningKey, cfg.Operator.Issuer, cfg.Operator.Audience,
		jwttoken.WithDefaultTTL(cfg.Operator.TokenTTL))

	var limiter ratelimitmw.Limiter = ratelimitstore.NewInMemoryBucketStore()
	if redisClient != nil {
		limiter = ratelimitstore.NewRedisBucketStore(redisClient.Client)
	}
	limits := ratelimitmw.New(limiter, log, ratelimitmw.WithDisabled(cfg.RateLimit.Disabled))

	modules := []registrar{
		limited{
			registrar: reviewhandler.New(reviewSvc, log, jwtService),
			mw:        limits.RateLimit(ratelimitmodels.ClassToken, ratelimitmodels.PerMinute(cfg.RateLimit.TokenPerMinute)),
		},
		bookinghandler.New(projector, log, cfg.CalWebhookSecret),
	}
	if cfg.Stripe.SecretKey != "" {
		checkoutSvc := checkoutservice.New(reviewSvc, verifier.NewStripeVerifier(cfg.Stripe.SecretKey, nil),
			checkoutservice.WithLogger(log),
			checkoutservice.WithAuditPublisher(auditPublisher),
		)
		modules = append(modules, limited{
			registrar: checkouthandler.New(checkoutSvc, log, cfg.Stripe.WebhookSecret),
			mw:        limits.RateLimit(ratelimitmodels.ClassCheckout, ratelimitmodels.PerMinute(cfg.RateLimit.CheckoutPerMinute)),
		})
	} else {
		log.Warn("STRIPE_SECRET_KEY not set, checkout routes disabled")
	}

	health := func(r *http.Request) error {
		if st.db != nil {
			if err := st.db.PingContext(r.Context()); err != nil {
				return err
			}
		}
		if redisClient != nil {
			return redisClient.Health(r.Context())
		}
		return nil
	}
	clients, err := metadata.NewResolver(cfg.TrustedProxies...)
	if err != nil {
		return err
	}
	router := newRouter(log, metrics.New(), clients, health, modules...)
	srv := newHTTPServer(cfg.Addr, router)

	relay, closeRelay, err := newRelay(ctx, cfg, st, log)
	if err != nil {
		return err
	}
	if closeRelay != nil {
		defer closeRelay()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting expatdesk", zap.String("addr", cfg.Addr), zap.String("env", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if relay != nil {
		g.Go(func() error { return relay.Run(gctx) })
	}
	return g.Wait()
}

// newHTTPServer bounds every phase of a connection. The write timeout leaves
// room for the 30s handler timeout to answer first.
func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       90 * time.Second,
	}
}

// newRelay starts the outbox relay when both Postgres and Kafka are
// configured.
func newRelay(ctx context.Context, cfg config.Server, st *stores, log *zap.Logger) (*worker.Relay, func(), error) {
	if st.outbox == nil || len(cfg.Kafka.Brokers) == 0 {
		return nil, nil, nil
	}
	client, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		return nil, nil, err
	}
	if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.AuditTopic, 3, 1); err != nil {
		client.Close()
		return nil, nil, err
	}
	relay := worker.NewRelay(st.outbox, worker.NewKafkaProducer(client, cfg.Kafka.AuditTopic),
		worker.WithLogger(log),
		worker.WithInterval(cfg.Kafka.PollInterval),
		worker.WithBatchSize(cfg.Kafka.BatchSize),
	)
	return relay, client.Close, nil
}
