// Package main starts the GophBank API server: it loads configuration,
// sets up logging, the store, services, handlers and the soft-delete
// cleaner, and serves HTTP or HTTPS until interrupted.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/atinyakov/GophBank/internal/config"
	"github.com/atinyakov/GophBank/internal/db"
	"github.com/atinyakov/GophBank/internal/logger"
	"github.com/atinyakov/GophBank/internal/repository"
	"github.com/atinyakov/GophBank/internal/repository/memory"
	"github.com/atinyakov/GophBank/internal/server/handler/http"
	"github.com/atinyakov/GophBank/internal/service"
	"github.com/atinyakov/GophBank/internal/session"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const shutdownTimeout = 10 * time.Second

func main() {
	options, err := config.Parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, options, zapLogger); err != nil {
		zapLogger.Fatal("server stopped with error", zap.Error(err))
	}
	zapLogger.Info("server stopped")
}

// stores bundles the repositories of one backing store.
type stores struct {
	users interface {
		service.AuthRepository
		service.UserDirectory
	}
	banks     service.BankRepository
	roles     service.RoleRepository
	passwords service.PasswordRepository
	purger    db.Purger
	pinger    http.Pinger
	close     func() error
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// openStores connects to PostgreSQL, or falls back to the in-memory store
// when no DSN is configured.
func openStores(options *config.Options, log *zap.Logger) (*stores, error) {
	if options.DatabaseDSN == "" {
		log.Warn("no database configured, data is kept in memory only")
		store := memory.New()
		return &stores{
			users:     store,
			banks:     store,
			roles:     store,
			passwords: store,
			purger:    store,
			pinger:    store,
			close:     func() error { return nil },
		}, nil
	}

	sqlDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	return &stores{
		users:     repository.NewPostgresUserRepository(sqlDB, options.StoreTimeout),
		banks:     repository.NewPostgresBankRepository(sqlDB, options.StoreTimeout),
		roles:     repository.NewPostgresRoleRepository(sqlDB, options.StoreTimeout),
		passwords: repository.NewPostgresPasswordRepository(sqlDB, options.StoreTimeout),
		purger:    db.NewPostgresPurger(sqlDB),
		pinger:    pingFunc(sqlDB.PingContext),
		close:     sqlDB.Close,
	}, nil
}

func run(ctx context.Context, options *config.Options, log *zap.Logger) error {
	st, err := openStores(options, log)
	if err != nil {
		return fmt.Errorf("cannot init store: %w", err)
	}
	defer func() {
		if err := st.close(); err != nil {
			log.Error("failed to close store", zap.Error(err))
		}
	}()

	tokens, err := session.NewManager(options.JWTSecret, options.TokenTTL)
	if err != nil {
		return err
	}

	authService := service.NewAuthService(st.users, tokens, bcrypt.DefaultCost)
	bankService := service.NewBankService(st.banks, st.roles, st.users, st.passwords)
	roleService := service.NewRoleService(st.banks, st.roles)
	passwordService := service.NewPasswordService(st.banks, st.roles, st.passwords)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router := http.NewRouter(http.Handlers{
		Auth:      &http.AuthHandler{AuthService: authService, Log: log},
		Banks:     &http.BankHandler{BankService: bankService, Log: log},
		Roles:     &http.RoleHandler{RoleService: roleService, Log: log},
		Passwords: &http.PasswordHandler{PasswordService: passwordService, Log: log},
	}, http.RouterOptions{
		Authenticator: authService,
		Store:         st.pinger,
		Registry:      registry,
		AuthRateLimit: options.AuthRateLimit,
		Logger:        log,
	})

	server := &nethttp.Server{
		Addr:              options.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
	}

	g, gctx := errgroup.WithContext(ctx)

	db.StartSoftDeleteCleaner(gctx, st.purger, options.CleanerInterval, options.Retention, log)

	g.Go(func() error {
		log.Info("starting server",
			zap.String("addr", options.Address),
			zap.Bool("tls", options.TLSEnabled()),
		)
		var err error
		if options.TLSEnabled() {
			err = server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
