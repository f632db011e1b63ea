package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/shelfguard/internal/audit"
	"github.com/dropDatabas3/shelfguard/internal/auth"
	"github.com/dropDatabas3/shelfguard/internal/cache"
	"github.com/dropDatabas3/shelfguard/internal/config"
	shelfhttp "github.com/dropDatabas3/shelfguard/internal/http"
	auditctl "github.com/dropDatabas3/shelfguard/internal/http/controllers/audit"
	healthctl "github.com/dropDatabas3/shelfguard/internal/http/controllers/health"
	mfactl "github.com/dropDatabas3/shelfguard/internal/http/controllers/mfa"
	securityctl "github.com/dropDatabas3/shelfguard/internal/http/controllers/security"
	sessionctl "github.com/dropDatabas3/shelfguard/internal/http/controllers/session"
	"github.com/dropDatabas3/shelfguard/internal/http/helpers"
	"github.com/dropDatabas3/shelfguard/internal/observability/logger"
	"github.com/dropDatabas3/shelfguard/internal/rate"
	"github.com/dropDatabas3/shelfguard/internal/security/backup"
	"github.com/dropDatabas3/shelfguard/internal/security/csrf"
	"github.com/dropDatabas3/shelfguard/internal/security/password"
	"github.com/dropDatabas3/shelfguard/internal/session"
	"github.com/dropDatabas3/shelfguard/internal/store/pg"
	pgmigrations "github.com/dropDatabas3/shelfguard/migrations/postgres"
)

var (
	flagConfigPath string
	flagEnvOnly    bool
	flagEnvFile    string
)

func main() {
	root := &cobra.Command{
		Use:   "shelfguard",
		Short: "Servicio de autenticación de ShelfGuard",
	}
	root.PersistentFlags().StringVar(&flagConfigPath, "config", "", "ruta a config.yaml (fallback: $CONFIG_PATH o configs/config.yaml)")
	root.PersistentFlags().BoolVar(&flagEnvOnly, "env", false, "usar SOLO env (y .env si existe)")
	root.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "ruta a .env (si existe, se carga)")

	root.AddCommand(serveCmd(), migrateCmd(), createAccountCmd(), genCodesCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

func loadConfig() (*config.Config, error) {
	if flagEnvFile != "" && (fileExists(flagEnvFile) || flagEnvOnly) {
		if err := godotenv.Load(flagEnvFile); err == nil {
			log.Printf("dotenv: cargado %s", flagEnvFile)
		}
	}
	if flagEnvOnly {
		return config.FromEnv()
	}
	path := flagConfigPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		if fileExists("configs/config.yaml") {
			path = "configs/config.yaml"
		} else {
			path = "configs/config.example.yaml"
		}
	}
	return config.Load(path)
}

func openStore(ctx context.Context, cfg *config.Config) (*pg.Store, error) {
	return pg.New(ctx, cfg.Storage.DSN, pg.Options{
		MaxConns:        cfg.Storage.Postgres.MaxOpenConns,
		MinConns:        cfg.Storage.Postgres.MaxIdleConns,
		ConnMaxLifetime: config.Dur(cfg.Storage.Postgres.ConnMaxLifetime),
	})
}

func serveCmd() *cobra.Command {
	var runMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			logger.Init(logger.Config{
				Env:         cfg.App.Env,
				Level:       os.Getenv("LOG_LEVEL"),
				ServiceName: "shelfguard",
			})
			defer func() { _ = logger.Sync() }()
			lg := logger.L()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := openStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			defer store.Close()

			if runMigrations {
				res, err := pg.NewMigrator(pgmigrations.FS, pgmigrations.Dir).Run(ctx, store)
				if err != nil {
					return fmt.Errorf("migrations: %w", err)
				}
				lg.Info("migrations done",
					logger.Count(len(res.Applied)), logger.DurationMs(res.Duration.Milliseconds()))
			}

			cc, err := cache.New(cache.Config{
				Kind:       cfg.Cache.Kind,
				RedisAddr:  cfg.Cache.Redis.Addr,
				RedisDB:    cfg.Cache.Redis.DB,
				Prefix:     cfg.Cache.Redis.Prefix,
				DefaultTTL: config.Dur(cfg.Cache.Memory.DefaultTTL),
			})
			if err != nil {
				return fmt.Errorf("cache: %w", err)
			}
			defer func() { _ = cc.Close() }()

			var auditLog *audit.Log
			switch cfg.Audit.Sink {
			case "memory":
				auditLog = audit.New(audit.NewMemoryStore(cfg.Audit.MemoryCapacity))
			default:
				auditLog = audit.New(store)
			}

			// Con redis de por medio los contadores van ahí; si no, postgres
			// (tabla login_attempts) que sobrevive reinicios.
			var rateStore rate.Store = store
			if rc, ok := cc.(*cache.Redis); ok {
				rateStore = rate.NewRedisStore(rc.Client(), cfg.Cache.Redis.Prefix+"rl:")
			}
			limiter := rate.New(rateStore, rate.Config{
				MaxAttempts:      cfg.Rate.MaxAttempts,
				Window:           config.Dur(cfg.Rate.Window),
				LockoutThreshold: cfg.Rate.LockoutThreshold,
				LockoutDuration:  config.Dur(cfg.Rate.LockoutDuration),
			})

			sessions := session.NewGuard(cc, auditLog, session.Config{
				IdleTimeout:      config.Dur(cfg.Auth.Session.IdleTimeout),
				RotationInterval: config.Dur(cfg.Auth.Session.RotationInterval),
				MaxLifetime:      config.Dur(cfg.Auth.Session.MaxLifetime),
			})
			csrfGuard := csrf.NewGuard(cc, auditLog, config.Dur(cfg.Auth.Csrf.TTL))
			vault := backup.New(store)

			orch := auth.NewOrchestrator(store, limiter, vault, sessions, auditLog, auth.Config{
				TotpWindow: cfg.Auth.TotpWindow,
				Issuer:     cfg.Auth.Issuer,
			})

			cookie := helpers.CookieConfig{
				Name:     cfg.Auth.Session.CookieName,
				Domain:   cfg.Auth.Session.Domain,
				SameSite: cfg.Auth.Session.SameSite,
				Secure:   cfg.Auth.Session.Secure,
				TTL:      config.Dur(cfg.Auth.Session.MaxLifetime),
			}

			router := shelfhttp.NewRouter(shelfhttp.RouterDeps{
				Login:    sessionctl.NewLoginController(orch, cookie),
				Logout:   sessionctl.NewLogoutController(orch, cookie),
				Csrf:     securityctl.NewCsrfController(csrfGuard),
				MFA:      mfactl.New(orch),
				Audit:    auditctl.New(auditLog),
				Health:   healthctl.New(map[string]healthctl.Pinger{"postgres": store, "cache": cc}),
				Sessions: sessions,
				CsrfG:    csrfGuard,
				Users:    store,
				Cookie:   cookie,
			})

			srv := shelfhttp.NewServer(shelfhttp.ServerConfig{
				Addr:         cfg.Server.Addr,
				ReadTimeout:  config.Dur(cfg.Server.ReadTimeout),
				WriteTimeout: config.Dur(cfg.Server.WriteTimeout),
			}, router)

			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				lg.Info("server up", logger.String("addr", cfg.Server.Addr), logger.String("env", cfg.App.Env))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})

			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Dur(cfg.Server.ShutdownTimeout))
				defer cancel()
				lg.Info("shutting down")
				return srv.Shutdown(shutdownCtx)
			})

			// Limpieza periódica de intentos viejos (solo aplica al store pg;
			// en redis expiran solos).
			if _, usesPG := rateStore.(*pg.Store); usesPG {
				g.Go(func() error {
					ticker := time.NewTicker(time.Hour)
					defer ticker.Stop()
					retention := 2 * config.Dur(cfg.Rate.Window)
					if retention < 24*time.Hour {
						retention = 24 * time.Hour
					}
					for {
						select {
						case <-gctx.Done():
							return nil
						case <-ticker.C:
							n, err := store.PruneAttempts(gctx, time.Now().Add(-retention))
							if err != nil {
								lg.Warn("attempt prune failed", logger.Err(err))
								continue
							}
							if n > 0 {
								lg.Debug("attempts pruned", logger.Count(int(n)))
							}
						}
					}
				})
			}

			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&runMigrations, "migrate", true, "aplicar migraciones pendientes al arrancar")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones pendientes y termina",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			logger.Init(logger.Config{Env: cfg.App.Env, ServiceName: "shelfguard"})
			defer func() { _ = logger.Sync() }()

			ctx := context.Background()
			store, err := openStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			defer store.Close()

			res, err := pg.NewMigrator(pgmigrations.FS, pgmigrations.Dir).Run(ctx, store)
			if err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			fmt.Printf("applied=%d skipped=%d (%s)\n",
				len(res.Applied), len(res.Skipped), res.Duration.Truncate(time.Millisecond))
			return nil
		},
	}
}

func createAccountCmd() *cobra.Command {
	var identifier, pass string
	var admin bool

	cmd := &cobra.Command{
		Use:   "create-account",
		Short: "Crea una cuenta (para seed y desarrollo)",
		RunE: func(cmd *cobra.Command, args []string) error {
			identifier = strings.TrimSpace(identifier)
			if identifier == "" {
				return fmt.Errorf("--identifier es requerido")
			}
			if pass == "" {
				return fmt.Errorf("--password es requerido")
			}

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			logger.Init(logger.Config{Env: cfg.App.Env, ServiceName: "shelfguard"})
			defer func() { _ = logger.Sync() }()

			ctx := context.Background()
			store, err := openStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			defer store.Close()

			phc, err := password.Hash(password.Default, pass)
			if err != nil {
				return fmt.Errorf("hash: %w", err)
			}
			id, err := store.CreateAccount(ctx, identifier, phc, admin)
			if err != nil {
				return fmt.Errorf("create: %w", err)
			}
			fmt.Printf("account %s creada (id=%s)\n", identifier, id)
			return nil
		},
	}
	cmd.Flags().StringVar(&identifier, "identifier", "", "email o username de la cuenta")
	cmd.Flags().StringVar(&pass, "password", "", "contraseña inicial")
	cmd.Flags().BoolVar(&admin, "admin", false, "habilita los endpoints de operación")
	return cmd
}

func genCodesCmd() *cobra.Command {
	var accountID string
	var count int

	cmd := &cobra.Command{
		Use:   "gen-codes",
		Short: "Regenera los backup codes de una cuenta e imprime la tanda nueva",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(accountID) == "" {
				return fmt.Errorf("--account es requerido")
			}

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			logger.Init(logger.Config{Env: cfg.App.Env, ServiceName: "shelfguard"})
			defer func() { _ = logger.Sync() }()

			ctx := context.Background()
			store, err := openStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			defer store.Close()

			if _, err := store.FindByID(ctx, accountID); err != nil {
				return fmt.Errorf("account: %w", err)
			}

			codes, err := backup.New(store).Generate(ctx, accountID, count)
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}
			fmt.Println("Backup codes (guardalos ahora, no se vuelven a mostrar):")
			for _, c := range codes {
				fmt.Println("  " + c)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "ID de la cuenta")
	cmd.Flags().IntVar(&count, "count", 0, "cantidad de códigos (default 10)")
	return cmd
}
