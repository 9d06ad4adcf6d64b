package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limitermw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/printworks/storefront-api/internal/cart"
	"github.com/printworks/storefront-api/internal/common"
	"github.com/printworks/storefront-api/internal/config"
	"github.com/printworks/storefront-api/internal/events"
	"github.com/printworks/storefront-api/internal/health"
	"github.com/printworks/storefront-api/internal/loyalty"
	"github.com/printworks/storefront-api/internal/markup"
	"github.com/printworks/storefront-api/internal/migrate"
	"github.com/printworks/storefront-api/internal/obs"
	"github.com/printworks/storefront-api/internal/order"
	"github.com/printworks/storefront-api/internal/payment"
	"github.com/printworks/storefront-api/internal/principal"
	"github.com/printworks/storefront-api/internal/printvendor"
	"github.com/printworks/storefront-api/internal/resilience"
	"github.com/printworks/storefront-api/internal/store"
	"github.com/printworks/storefront-api/internal/tax"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "storefront")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "storefront-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if cfg.MigrateOnStart {
		if err := migrate.Up(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "storefront-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	st := store.NewStore(pool)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	outboundHTTP := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}

	vendorClient := &printvendor.Client{
		BaseURL:   cfg.VendorBaseURL,
		StoreCode: cfg.StoreCode,
		HTTP: resilience.Client{
			HTTP:        outboundHTTP,
			Breaker:     resilience.NewBreaker("print-vendor", 5, 30*time.Second, logger),
			MaxAttempts: cfg.VendorMaxAttempts,
			BaseBackoff: 200 * time.Millisecond,
			Jitter:      0.2,
			Timeout:     cfg.VendorTimeout,
		},
		Logger: logger,
	}

	markupCfg := markup.Config{
		DefaultMultiplier: cfg.MarkupDefaultMultiplier,
		MarginFloorPct:    cfg.MarkupMarginFloorPct,
		ApplyPerUnit:      cfg.MarkupApplyPerUnit,
		CharmPricing:      cfg.MarkupCharmPricing,
	}
	for _, t := range cfg.MarkupTiers {
		markupCfg.Tiers = append(markupCfg.Tiers, markup.Tier{
			MinQty:     t.MinQty,
			MaxQty:     t.MaxQty,
			Multiplier: t.Multiplier,
			FloorPct:   t.FloorPct,
		})
	}

	loyaltySvc := &loyalty.Service{
		Cfg: loyalty.Config{
			EarnPerDollar:         int64(cfg.LoyaltyEarnPerUnit),
			RedeemMinPoints:       int64(cfg.LoyaltyRedeemMinPoints),
			RedeemIncrement:       int64(cfg.LoyaltyRedeemIncrement),
			CentsPerHundredPoints: int64(cfg.LoyaltyCentsPer100Points),
		},
		S:   loyalty.NewPgStore(st),
		Log: logger,
	}
	loyaltyHandler := &loyalty.Handler{Svc: loyaltySvc, Log: logger}

	cartSvc := &cart.Service{
		Q:        st.Queries,
		Vendor:   vendorClient,
		Markup:   markupCfg,
		Loyalty:  loyaltySvc,
		Currency: cfg.Currency,
		Logger:   logger,
	}
	cartHandler := &cart.Handler{Svc: cartSvc, Validate: validator.New(), Log: logger}

	stripe := &payment.Stripe{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		Tolerance:     cfg.StripeWebhookTolerance,
		HTTP: resilience.Client{
			HTTP:        outboundHTTP,
			Breaker:     resilience.NewBreaker("stripe", 5, 30*time.Second, logger),
			MaxAttempts: 3,
			BaseBackoff: 200 * time.Millisecond,
			Jitter:      0.2,
			Timeout:     10 * time.Second,
		},
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisOpts.Addr,
		Username: redisOpts.Username,
		Password: redisOpts.Password,
		DB:       redisOpts.DB,
	})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	finalizer := &order.Finalizer{
		S:       order.NewPgStore(st),
		Tax:     tax.Reconciler{Calc: stripe, Timeout: cfg.TaxFetchTimeout, Logger: logger},
		Journal: events.NewJournal(st.Queries, logger),
		EnqueueAccrual: func(ctx context.Context, p loyalty.AccruePayload) error {
			task, err := loyalty.NewAccrueTask(p)
			if err != nil {
				return err
			}
			_, err = asynqClient.EnqueueContext(ctx, task)
			return err
		},
		Log: logger,
	}

	webhookHandler := &payment.WebhookHandler{
		Providers: map[string]payment.Provider{"stripe": stripe},
		R:         redisClient,
		ReplayTTL: cfg.WebhookReplayTTL,
		Finalizer: finalizer,
		Log:       logger,
	}
	checkoutHandler := &payment.CheckoutHandler{
		Svc: &payment.CheckoutService{
			Provider:   stripe,
			Carts:      cartSvc,
			SuccessURL: cfg.CheckoutSuccessURL,
			CancelURL:  cfg.CheckoutCancelURL,
			Log:        logger,
		},
		Log: logger,
	}

	orderHandler := &order.Handler{Q: st.Queries, Log: logger}
	healthHandler := &health.Handler{Pool: pool, R: redisClient}
	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	principalMW := &principal.Middleware{JWTSecret: []byte(cfg.JWTSecret), Log: logger}

	limiterStore, err := limiterredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "ratelimit"})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter store")
	}
	webhookLimiter := limitermw.NewMiddleware(limiter.New(limiterStore, limiter.Rate{
		Period: time.Minute,
		Limit:  int64(cfg.WebhookRatePerMin),
	}))
	cartWriteLimiter := limitermw.NewMiddleware(limiter.New(limiterStore, limiter.Rate{
		Period: time.Minute,
		Limit:  int64(cfg.CartWriteRatePerMin),
	}))

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Session-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(principalMW.Handler)

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", true) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/carts", func(c chi.Router) {
			c.Get("/{cartID}", cartHandler.Get)
			c.Group(func(g chi.Router) {
				g.Use(cartWriteLimiter.Handler)
				g.Use(idem.Middleware)
				g.Post("/", cartHandler.Ensure)
				g.Post("/{cartID}/lines", cartHandler.AddItem)
				g.Patch("/{cartID}/lines/{lineID}", cartHandler.UpdateLine)
				g.Delete("/{cartID}/lines/{lineID}", cartHandler.RemoveLine)
				g.Post("/{cartID}/shipping/quote", cartHandler.QuoteShipping)
				g.Put("/{cartID}/shipping", cartHandler.SelectShipping)
				g.Put("/{cartID}/credit", cartHandler.ApplyCredit)
			})
		})

		v.With(idem.Middleware).Post("/checkout/session", checkoutHandler.Start)

		v.Get("/orders", orderHandler.List)
		v.Get("/orders/{orderID}", orderHandler.Get)

		v.Get("/loyalty/wallet", loyaltyHandler.Wallet)
		v.Get("/loyalty/transactions", loyaltyHandler.Transactions)

		v.With(webhookLimiter.Handler).Post("/webhooks/payment/{provider}", webhookHandler.Handle)
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		graceCtx, graceCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer graceCancel()
		if err := srv.Shutdown(graceCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
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

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
