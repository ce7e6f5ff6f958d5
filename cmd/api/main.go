package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"slices"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"

	"github.com/foodshed/market-api/internal/app"
	"github.com/foodshed/market-api/internal/audit"
	"github.com/foodshed/market-api/internal/auth"
	"github.com/foodshed/market-api/internal/cache"
	"github.com/foodshed/market-api/internal/catalog"
	"github.com/foodshed/market-api/internal/common"
	"github.com/foodshed/market-api/internal/config"
	"github.com/foodshed/market-api/internal/distribution"
	"github.com/foodshed/market-api/internal/enterprise"
	"github.com/foodshed/market-api/internal/events"
	"github.com/foodshed/market-api/internal/health"
	"github.com/foodshed/market-api/internal/lock"
	"github.com/foodshed/market-api/internal/obs"
	"github.com/foodshed/market-api/internal/order"
	"github.com/foodshed/market-api/internal/queue"
	"github.com/foodshed/market-api/internal/ratelimit"
	"github.com/foodshed/market-api/internal/security"
	"github.com/foodshed/market-api/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "market-api",
			Endpoint:      cfg.TracingEndpoint,
			Exporter:      "otlp",
			SamplingRatio: cfg.TracingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bootCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if cfg.AutoMigrate {
		if err := app.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
	}

	pool, err := app.OpenPostgres(bootCtx, cfg, "market-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("open postgres")
	}
	defer pool.Close()

	redisClient, err := app.OpenRedis(bootCtx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("open redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}

	st := store.New(pool)

	locker := lock.Locker{
		R:              redisClient,
		RetryBackoff:   50 * time.Millisecond,
		AcquireTimeout: cfg.RecomputeLockAcquire,
	}
	distSvc := &distribution.Service{
		Store:        st,
		Locker:       locker,
		LockTTL:      cfg.RecomputeLockTTL,
		LockAttempts: cfg.RecomputeAttempts,
		Cfg:          distribution.Config{Currency: cfg.Currency},
		Log:          logger,
	}

	enqueuer := queue.Enqueuer{
		R:           redisClient,
		Prefix:      cfg.QueuePrefix,
		DedupTTL:    cfg.QueueDedupTTL,
		MaxAttempts: cfg.QueueMaxAttempts,
	}

	catalogSvc := &catalog.Service{
		Store: st,
		Cache: catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
		Log:   logger,
	}

	bus := &events.Bus{
		Store:     st,
		Scheduler: queue.RecomputeScheduler{Enqueuer: enqueuer, Log: logger},
		Notifiers: []events.Notifier{catalog.ShopfrontNotifier{Svc: catalogSvc}},
	}

	enterpriseSvc := &enterprise.Service{Store: st, Log: logger}
	enterpriseHandler := &enterprise.Handler{Svc: enterpriseSvc}
	enterpriseAdmin := &enterprise.AdminHandler{
		Store:       st,
		Events:      bus,
		Invalidator: cache.ShopfrontInvalidator{R: redisClient},
		Log:         logger,
	}

	catalogHandler := &catalog.Handler{Service: catalogSvc, Tags: enterpriseSvc}

	orderSvc := &order.Service{Store: st, Events: bus, Currency: cfg.Currency, Log: logger}
	orderHandler := &order.Handler{Svc: orderSvc}
	orderAdmin := &order.AdminHandler{Svc: orderSvc, Recompute: distSvc, Events: st}

	queueAdmin := &queue.AdminHandler{
		Store:             queue.NewStore(pool),
		Queue:             enqueuer,
		Logger:            logger,
		VisibilityTimeout: cfg.QueueVisibilityTimeout,
	}

	authSvc, err := auth.NewService(auth.Config{
		Store:           st,
		Secret:          cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandler := &auth.Handler{
		Service:           authSvc,
		AccessCookieName:  "at",
		RefreshCookieName: "rt",
		CookieSecure:      cfg.AppEnv == "production",
		CookieSameSite:    http.SameSiteLaxMode,
	}
	authMiddleware := auth.Middleware{Service: authSvc, AccessCookie: "at"}

	auditSvc := audit.Service{Store: st, Enabled: cfg.AuditEnabled, SamplingRate: cfg.AuditSamplingRate}
	auditRecorder := audit.HTTPRecorder{
		Service: &auditSvc,
		OnError: func(err error) { logger.Error().Err(err).Msg("record audit entry") },
	}
	auditHandler := audit.Handler{Store: st}

	globalLimiter, err := app.NewIPRateLimiter(redisClient, cfg.RateLimitPerMinute)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}
	loginLimiter := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "ratelimit:login"},
		Config: ratelimit.Config{
			Key:    common.ClientIP,
			Window: time.Minute,
			Max:    10,
		},
		OnError: func(err error) { logger.Error().Err(err).Msg("login rate limit") },
	}

	httpMetrics := obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBuckets), nil)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.BodyLimit{Max: 1 << 20}.Middleware)
	r.Use(rateLimitMiddleware(globalLimiter, logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    500 * time.Millisecond,
		RedisTimeout: 300 * time.Millisecond,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/auth", func(a chi.Router) {
			a.Post("/register", authHandler.Register)
			a.With(loginLimiter.Middleware).Post("/login", authHandler.Login)
			a.Post("/refresh", authHandler.Refresh)
			a.Post("/logout", authHandler.Logout)
			a.Post("/password/forgot", authHandler.ForgotPassword)
			a.Post("/password/reset", authHandler.ResetPassword)

			a.Group(func(protected chi.Router) {
				protected.Use(authMiddleware.RequireAuth)
				protected.Get("/me", authHandler.Me)
			})
		})

		v.Group(func(public chi.Router) {
			public.Use(authMiddleware.Authenticate)
			public.Get("/shops", enterpriseHandler.ListDistributors)
			public.Get("/shops/{distributorID}", enterpriseHandler.Profile)
			public.Get("/shops/{distributorID}/products", catalogHandler.Shopfront)
			public.Get("/shops/{distributorID}/shipping-methods", enterpriseHandler.ShippingMethods)
			public.Get("/shops/{distributorID}/payment-methods", enterpriseHandler.PaymentMethods)
			public.Get("/shops/{distributorID}/order-cycles", enterpriseHandler.OrderCycles)
			public.Get("/products/{slug}", catalogHandler.ProductDetail)
		})

		v.Route("/orders", func(o chi.Router) {
			o.Use(authMiddleware.RequireAuth)
			o.Post("/", orderHandler.Create)
			o.Get("/", orderHandler.List)
			o.Route("/{orderID}", func(one chi.Router) {
				one.Get("/", orderHandler.Get)
				one.Put("/distribution", orderHandler.SetDistribution)
				one.Post("/line-items", orderHandler.AddLineItem)
				one.Delete("/line-items/{lineItemID}", orderHandler.RemoveLineItem)
				one.Post("/complete", orderHandler.Complete)
				one.Post("/cancel", orderHandler.Cancel)
			})
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireAuth)

			admin.Route("/enterprises/{enterpriseID}", func(e chi.Router) {
				e.Use(auditRecorder.Middleware(audit.HTTPConfig{ResourceIDParam: "enterpriseID"}))
				e.Get("/tag-rules", enterpriseAdmin.ListTagRules)
				e.Post("/tag-rules", enterpriseAdmin.CreateTagRule)
				e.Put("/tag-rules/{ruleID}", enterpriseAdmin.UpdateTagRule)
				e.Delete("/tag-rules/{ruleID}", enterpriseAdmin.DeleteTagRule)
				e.Get("/fees", enterpriseAdmin.ListFees)
				e.Post("/fees", enterpriseAdmin.CreateFee)
			})

			admin.Group(func(platform chi.Router) {
				platform.Use(requireRole(st, "admin"))
				platform.Use(auditRecorder.Middleware(audit.HTTPConfig{ResourceIDParam: "orderID"}))
				platform.Get("/orders/{orderID}", orderAdmin.Get)
				platform.Post("/orders/{orderID}/recompute", orderAdmin.ForceRecompute)
				platform.Get("/orders/{orderID}/events", orderAdmin.ListEvents)
				platform.Post("/orders/{orderID}/cancel", orderAdmin.Cancel)
				platform.Get("/audit-logs", auditHandler.List)
				platform.Get("/queue/dlq", queueAdmin.ListDLQ)
				platform.Post("/queue/dlq/replay", queueAdmin.ReplayDLQ)
				platform.Get("/queue/stats", queueAdmin.Stats)
			})
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown http server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server shutdown complete")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type roleSource interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (auth.Account, error)
}

func requireRole(src roleSource, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := common.UserID(r.Context())
			if !ok {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "forbidden", nil)
				return
			}
			uid, err := uuid.Parse(userID)
			if err != nil {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "forbidden", nil)
				return
			}
			account, err := src.GetUserByID(r.Context(), uid)
			if err != nil {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "forbidden", nil)
				return
			}
			if !slices.Contains(account.Roles, role) {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitMiddleware(l *limiter.Limiter, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lctx, err := l.Get(r.Context(), common.ClientIP(r))
			if err != nil {
				logger.Error().Err(err).Msg("rate limit check")
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))
			if lctx.Reached {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}
