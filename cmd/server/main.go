package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zzpfin/api/internal/auth"
	"github.com/zzpfin/api/internal/btw"
	"github.com/zzpfin/api/internal/config"
	"github.com/zzpfin/api/internal/country"
	"github.com/zzpfin/api/internal/database"
	apihandlers "github.com/zzpfin/api/internal/handlers/api"
	"github.com/zzpfin/api/internal/icp"
	"github.com/zzpfin/api/internal/invoice"
	"github.com/zzpfin/api/internal/middleware"
	"github.com/zzpfin/api/internal/services/client"
	"github.com/zzpfin/api/internal/services/expense"
	"github.com/zzpfin/api/internal/services/timeentry"
	"github.com/zzpfin/api/internal/vat"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.LoadDev()

	// Connect to database
	pool, err := database.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	slog.Info("database connected")

	// Run migrations
	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	slog.Info("migrations complete")

	// Country registry and VAT engine
	registry, err := country.Load(cfg.VAT.CountryTablePath)
	if err != nil {
		slog.Error("failed to load country table", "error", err)
		os.Exit(1)
	}
	if err := registry.CheckHomeCountry(cfg.VAT.HomeCountry); err != nil {
		slog.Error("country table mismatch", "error", err)
		os.Exit(1)
	}

	rateCache := vat.NewRateCache(
		decimal.NewFromFloat(cfg.VAT.DefaultStandard),
		decimal.NewFromFloat(cfg.VAT.DefaultReduced),
	)
	vatSvc := vat.NewService(pool, registry, rateCache, logger)
	if err := vatSvc.LoadRates(context.Background()); err != nil {
		slog.Error("failed to load VAT rates", "error", err)
		os.Exit(1)
	}
	vatSvc.StartReloader(context.Background(), cfg.VAT.RateReloadEvery)

	// Auth
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret)
	authSvc := auth.NewService(pool, jwtMgr, logger, cfg.TOTPIssuer)

	// Domain services
	invoiceSvc := invoice.NewService(pool, vatSvc, logger)
	clientSvc := client.NewService(pool, registry, logger)
	expenseSvc := expense.NewService(pool, vatSvc, logger)
	entrySvc := timeentry.NewService(pool, logger)
	icpSvc := icp.NewService(pool, logger)
	btwSvc := btw.NewService(pool, logger)

	// Handlers
	authHandler := apihandlers.NewAuthHandler(authSvc, logger)
	vatHandler := apihandlers.NewVATHandler(vatSvc, logger)
	invoiceHandler := apihandlers.NewInvoiceHandler(invoiceSvc, logger)
	clientHandler := apihandlers.NewClientHandler(clientSvc, logger)
	expenseHandler := apihandlers.NewExpenseHandler(expenseSvc, logger)
	entryHandler := apihandlers.NewTimeEntryHandler(entrySvc, logger)
	reportHandler := apihandlers.NewReportHandler(icpSvc, btwSvc, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{"status":"ok"}`)
	})

	// Public routes (no token needed), with tighter rate limiting on login
	publicMux := http.NewServeMux()
	authHandler.RegisterPublicRoutes(publicMux)
	mux.Handle("/api/v1/auth/register", middleware.LoginRateLimiter()(publicMux))
	mux.Handle("/api/v1/auth/login", middleware.LoginRateLimiter()(publicMux))
	mux.Handle("/api/v1/auth/refresh", publicMux)

	// Protected routes, all tenant-scoped via the JWT claims
	protectedMux := http.NewServeMux()
	authHandler.RegisterRoutes(protectedMux)
	vatHandler.RegisterRoutes(protectedMux)
	invoiceHandler.RegisterRoutes(protectedMux)
	clientHandler.RegisterRoutes(protectedMux)
	expenseHandler.RegisterRoutes(protectedMux)
	entryHandler.RegisterRoutes(protectedMux)
	reportHandler.RegisterRoutes(protectedMux)
	protected := middleware.RequireAuth(jwtMgr)(protectedMux)
	for _, prefix := range []string{
		"/api/v1/auth/totp/",
		"/api/v1/vat/",
		"/api/v1/invoices",
		"/api/v1/invoices/",
		"/api/v1/clients",
		"/api/v1/clients/",
		"/api/v1/expenses",
		"/api/v1/expenses/",
		"/api/v1/time-entries",
		"/api/v1/time-entries/",
		"/api/v1/reports/",
	} {
		mux.Handle(prefix, protected)
	}

	// Global middleware stack
	var chain http.Handler = mux
	chain = middleware.CORS(cfg.BaseURL)(chain)
	chain = middleware.RateLimiter(20, 40)(chain) // 20 req/s, burst 40 per IP
	chain = middleware.SecurityHeaders(chain)
	chain = middleware.Recover(logger)(chain)
	chain = middleware.RequestLogger(logger)(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      chain,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		slog.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
