// Copyright 2026 The Credentia Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/credentia/credentia/internal/authz"
	"github.com/credentia/credentia/internal/config"
	"github.com/credentia/credentia/internal/identity"
	"github.com/credentia/credentia/internal/notify"
	"github.com/credentia/credentia/internal/observability/logger"
	"github.com/credentia/credentia/internal/observability/metrics"
	"github.com/credentia/credentia/internal/observability/tracing"
	"github.com/credentia/credentia/internal/session"
	"github.com/credentia/credentia/internal/store/memory"
	"github.com/credentia/credentia/internal/store/postgres"
	"github.com/credentia/credentia/internal/store/redis"
	transportHTTP "github.com/credentia/credentia/internal/transport/http"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) > 1 {
		if err := runCommand(ctx, cfg, os.Args[1], os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "%s failed: %v\n", os.Args[1], err)
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, cfg, log); err != nil {
		slog.Error("server exited", logger.Error(err))
		os.Exit(1)
	}
}

// runCommand dispatches the administrative subcommands
func runCommand(ctx context.Context, cfg *config.Config, name string, args []string) error {
	switch name {
	case "migrate":
		return runMigrate(ctx, cfg, os.Stdout)
	case "grant-role":
		if len(args) != 2 {
			return errors.New("usage: grant-role <email> <role>")
		}
		return runGrantRole(ctx, cfg, args[0], args[1])
	default:
		return fmt.Errorf("unknown command %q", name)
	}
}

// stores bundles the persistence chosen by configuration
type stores struct {
	users    identity.UserRepository
	roles    authz.RoleRepository
	sessions session.Store
	checks   map[string]transportHTTP.HealthCheck
	closers  []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	st := &stores{checks: map[string]transportHTTP.HealthCheck{}}

	if cfg.Session.Store == config.StoreMemory {
		slog.Warn("using in-memory stores; state is lost on restart")
		st.users = memory.NewUserRepository()
		st.roles = memory.NewRoleRepository(
			&authz.Role{ID: authz.RoleAdministrator, Name: authz.RoleAdministrator},
			&authz.Role{ID: authz.RoleStaff, Name: authz.RoleStaff},
			&authz.Role{ID: authz.RoleMember, Name: authz.RoleMember},
		)
		st.sessions = memory.NewSessionStore()
		return st, nil
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	st.closers = append(st.closers, db.Close)
	st.checks["database"] = db.Ping
	slog.Info("connected to database")

	st.users = postgres.NewUserRepository(db)
	st.roles = postgres.NewRoleRepository(db)

	switch cfg.Session.Store {
	case config.StoreRedis:
		client, err := redis.NewClient(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			st.Close()
			return nil, err
		}
		st.closers = append(st.closers, func() { _ = client.Close() })
		st.checks["sessions"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		st.sessions = redis.NewSessionStore(client)
		slog.Info("connected to redis", slog.String("addr", cfg.Redis.Addr))
	default:
		st.sessions = postgres.NewSessionRepository(db)
	}

	return st, nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*postgres.DB, error) {
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func newNotifier(cfg *config.Config, log *slog.Logger) (notify.Notifier, error) {
	if cfg.Mail.Driver == config.MailSMTP {
		return notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
			FromName: cfg.Mail.FromName,
			Timeout:  cfg.Mail.Timeout,
		})
	}
	slog.Warn("mail driver is log; notifications are not delivered")
	return notify.NewLogNotifier(log, cfg.Mail.LogBody), nil
}

func sameSiteMode(v string) http.SameSite {
	switch v {
	case "Strict":
		return http.SameSiteStrictMode
	case "None":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	slog.Info("starting credentia account authority",
		slog.String("session_store", cfg.Session.Store),
		slog.String("mail_driver", cfg.Mail.Driver),
	)

	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   cfg.Observability.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", logger.Error(err))
		}
	}()

	accountMetrics, err := metrics.NewAccountMetrics(metrics.New(metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName))
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	notifier, err := newNotifier(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize notifier: %w", err)
	}

	issuer := session.NewIssuer(st.sessions, []byte(cfg.Session.SigningKey), cfg.Session.Lifetime)

	passwordHasher := identity.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)

	accounts := identity.NewService(
		st.users,
		passwordHasher,
		authz.NewService(st.roles),
		issuer,
		notifier,
		identity.Config{
			SiteName:           cfg.Mail.SiteName,
			LockoutMaxAttempts: cfg.Security.LockoutMaxAttempts,
			CodeLength:         cfg.Security.CodeLength,
			NotifyTimeout:      cfg.Mail.NotifyTimeout,
			MaxUpdateRetries:   cfg.Security.MaxUpdateRetries,
		},
		identity.WithMetrics(accountMetrics),
		identity.WithTracer(tracer.Tracer()),
		identity.WithLogger(log),
	)

	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer rateLimiter.Stop()

	handler := transportHTTP.NewHandler(
		accounts,
		issuer,
		transportHTTP.SessionConfig{
			CookieName:     cfg.Session.CookieName,
			CookieDomain:   cfg.Session.CookieDomain,
			CookiePath:     cfg.Session.CookiePath,
			CookieSecure:   cfg.Session.CookieSecure,
			CookieSameSite: sameSiteMode(cfg.Session.CookieSameSite),
		},
		st.checks,
	)

	router := transportHTTP.NewRouter(handler, transportHTTP.RouterConfig{
		RateLimiter:    rateLimiter,
		RequestTimeout: cfg.Server.RequestTimeout,
		TrustProxy:     cfg.Server.TrustProxy,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	janitor, err := session.NewJanitor(issuer, cfg.Session.CleanupInterval, log)
	if err != nil {
		return err
	}
	janitor.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"), slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		janitor.Stop(shutdownCtx)
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}

func runMigrate(ctx context.Context, cfg *config.Config, out io.Writer) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := db.Migrate(ctx)
	if err != nil {
		return err
	}
	for _, name := range applied {
		fmt.Fprintf(out, "applied %s\n", name)
	}
	fmt.Fprintln(out, "Migration successful.")
	return nil
}

// runGrantRole assigns a role to an existing account. Role assignment is an
// administrative act outside the account authority.
func runGrantRole(ctx context.Context, cfg *config.Config, email, role string) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := postgres.NewUserRepository(db).FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if err := postgres.NewRoleRepository(db).Assign(ctx, user.ID, role, "cli"); err != nil {
		return err
	}
	slog.Info("role granted", logger.UserID(user.ID), slog.String("role", role))
	return nil
}
