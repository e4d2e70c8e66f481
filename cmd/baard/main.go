package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/baard/baard/internal/config"
	"github.com/baard/baard/internal/domain/mastersheet"
	"github.com/baard/baard/internal/domain/sheet"
	"github.com/baard/baard/internal/platform/auth"
	"github.com/baard/baard/internal/platform/db"
	"github.com/baard/baard/internal/platform/middleware"
)

const (
	version         = "0.1.0"
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
	rebuildPath     = "/api/v1/sheet/rebuild"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "baard",
		Short:        "BAARD master sheet builder",
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.String("baard-dir", "", "BAARD data root (overrides BAARD_DIR)")
	pf.String("sources", "", "YAML source manifest (overrides SOURCES_FILE)")
	pf.String("output-dir", "", "Directory for written CSV files (overrides OUTPUT_DIR)")
	pf.String("sheet-name", "", "Master sheet name (overrides SHEET_NAME)")

	rootCmd.AddCommand(buildCmd())
	rootCmd.AddCommand(idsCmd())
	rootCmd.AddCommand(modelCmd("features", "Write the feature view of a model", featuresTable))
	rootCmd.AddCommand(modelCmd("issues", "Write the missing-data issues list of a model", mastersheet.IssuesList))
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())
	return rootCmd
}

// newLogger writes JSON lines, or human-readable output in development.
func newLogger(env string, out io.Writer) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// setup loads and validates the configuration shared by every command.
func setup(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("invalid config: %w", err)
	}
	return cfg, newLogger(cfg.Env, os.Stderr), nil
}

func loadSources(cfg *config.Config) ([]mastersheet.Source, error) {
	if cfg.SourcesFile == "" {
		return mastersheet.DefaultSources(), nil
	}
	return mastersheet.LoadSources(cfg.SourcesFile)
}

func newBuilder(cfg *config.Config, logger zerolog.Logger) (*mastersheet.Builder, error) {
	sources, err := loadSources(cfg)
	if err != nil {
		return nil, err
	}
	return mastersheet.NewBuilder(mastersheet.Options{
		Root:        cfg.BaardDir,
		Name:        cfg.SheetName,
		Sources:     sources,
		Concurrency: cfg.LoadConcurrency,
	}, logger), nil
}

func connect(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*pgxpool.Pool, error) {
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBSchema, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info().Str("schema", cfg.DBSchema).Msg("connected to database")
	return pool, nil
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

func buildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the master sheet and write it to every configured sink",
		RunE: func(cmd *cobra.Command, args []string) error {
			noDB, _ := cmd.Flags().GetBool("no-db")

			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd)
			defer stop()

			builder, err := newBuilder(cfg, logger)
			if err != nil {
				return err
			}

			csvSink := mastersheet.NewCSVSink(cfg.OutputDir)
			sinks := []mastersheet.Sink{csvSink}
			if cfg.HasDatabase() && !noDB {
				pool, err := connect(ctx, cfg, logger)
				if err != nil {
					return err
				}
				defer pool.Close()
				sinks = append(sinks, mastersheet.NewPGSink(pool))
			}

			svc := mastersheet.NewService(builder, mastersheet.NewStore(), sinks...)
			res, err := svc.Rebuild(ctx)
			if errors.Is(err, mastersheet.ErrNoRecordIDs) {
				logger.Warn().Str("baard_dir", cfg.BaardDir).Msg("no record ids found; nothing written")
				return nil
			}
			if err != nil {
				return err
			}

			logger.Info().
				Str("run_id", res.RunID.String()).
				Str("path", csvSink.Path(res.Name)).
				Int("rows", res.Sheet.Len()).
				Int("columns", res.Stats.Columns).
				Msg("master sheet written")
			return nil
		},
	}
	cmd.Flags().Bool("no-db", false, "Skip the PostgreSQL sink even when DATABASE_URL is set")
	return cmd
}

func idsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ids",
		Short: "Print the record-id universe",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			builder, err := newBuilder(cfg, logger)
			if err != nil {
				return err
			}

			ids, err := builder.RecordIDs(cmd.Context())
			if errors.Is(err, mastersheet.ErrNoRecordIDs) {
				logger.Warn().Str("baard_dir", cfg.BaardDir).Msg("no record ids found")
				return nil
			}
			if err != nil {
				return err
			}
			return printIDs(cmd.OutOrStdout(), ids)
		},
	}
}

func printIDs(w io.Writer, ids []string) error {
	for _, id := range ids {
		if _, err := fmt.Fprintln(w, id); err != nil {
			return err
		}
	}
	return nil
}

// modelView derives a per-model table from the master sheet.
type modelView func(t *sheet.Table, model string) (*sheet.Table, error)

func featuresTable(t *sheet.Table, model string) (*sheet.Table, error) {
	view, _, err := mastersheet.FeatureView(t, model)
	return view, err
}

func modelCmd(use, short string, view modelView) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			model, _ := cmd.Flags().GetString("model")
			if _, err := mastersheet.ModelVariables(model); err != nil {
				return err
			}

			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd)
			defer stop()

			builder, err := newBuilder(cfg, logger)
			if err != nil {
				return err
			}
			res, err := builder.Build(ctx)
			if errors.Is(err, mastersheet.ErrNoRecordIDs) {
				logger.Warn().Str("baard_dir", cfg.BaardDir).Msg("no record ids found; nothing written")
				return nil
			}
			if err != nil {
				return err
			}

			out, err := view(res.Sheet, model)
			if err != nil {
				return err
			}
			sink := mastersheet.NewCSVSink(cfg.OutputDir)
			if err := sink.WriteTable(out); err != nil {
				return err
			}
			logger.Info().
				Str("model", model).
				Str("path", sink.Path(out.Name)).
				Int("rows", out.Len()).
				Msg(use + " written")
			return nil
		},
	}
	cmd.Flags().String("model", mastersheet.ModelBupropion,
		"Model name ("+strings.Join(mastersheet.Models(), ", ")+")")
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Build the master sheet once and serve the read-only API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd)
		},
	}
}

func runServer(cmd *cobra.Command) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx := cmd.Context()
	builder, err := newBuilder(cfg, logger)
	if err != nil {
		return err
	}

	var pool *pgxpool.Pool
	sinks := []mastersheet.Sink{}
	if cfg.HasDatabase() {
		pool, err = connect(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer pool.Close()
		sinks = append(sinks, mastersheet.NewPGSink(pool))
	}
	svc := mastersheet.NewService(builder, mastersheet.NewStore(), sinks...)

	// The API stays up without a sheet; reads answer 503 until a rebuild succeeds.
	if _, err := svc.Rebuild(ctx); err != nil {
		if errors.Is(err, mastersheet.ErrNoRecordIDs) {
			logger.Warn().Str("baard_dir", cfg.BaardDir).Msg("no record ids found; serving without a sheet")
		} else {
			logger.Error().Err(err).Msg("initial build failed; serving without a sheet")
		}
	}

	e := newServer(cfg, logger, svc, pool)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer wires middleware and routes. pool may be nil.
func newServer(cfg *config.Config, logger zerolog.Logger, svc *mastersheet.Service, pool *pgxpool.Pool) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(requestTimeout, rebuildPath))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if pool != nil {
		e.GET("/health/db", db.PoolHealthHandler(pool))
	}

	apiV1 := e.Group("/api/v1")
	mastersheet.NewHandler(svc).RegisterRoutes(apiV1)
	return e
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			roles, _ := cmd.Flags().GetStringSlice("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if subject == "" {
				return fmt.Errorf("--subject is required")
			}
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be positive, got %s", ttl)
			}
			for _, r := range roles {
				if r != mastersheet.RoleAnalyst && r != mastersheet.RoleAdmin {
					return fmt.Errorf("unknown role %q", r)
				}
			}

			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			if err := cfg.ValidateServer(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if cfg.AuthSigningKey == "" {
				return fmt.Errorf("AUTH_SIGNING_KEY is required to issue tokens")
			}

			now := time.Now().UTC()
			token, err := auth.IssueToken(auth.JWTConfig{
				Issuer:     cfg.AuthIssuer,
				Audience:   cfg.AuthAudience,
				SigningKey: []byte(cfg.AuthSigningKey),
			}, subject, roles, jwt.RegisteredClaims{
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			})
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			logger.Info().Str("subject", subject).Strs("roles", roles).Dur("ttl", ttl).Msg("token issued")
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().String("subject", "", "Token subject")
	cmd.Flags().StringSlice("role", []string{mastersheet.RoleAnalyst}, "Granted role (analyst or admin), repeatable")
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations for the PostgreSQL sink",
	}

	// migrate up
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, migrator, closeFn, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Running migrations on schema: %s\n", cfg.DBSchema)
			count, err := migrator.Up(cmd.Context(), cfg.DBSchema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(out, "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	// migrate status
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, migrator, closeFn, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(cmd.Context(), cfg.DBSchema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatuses(cmd.OutOrStdout(), cfg.DBSchema, statuses)
			return nil
		},
	})

	return cmd
}

func openMigrator(cmd *cobra.Command) (*config.Config, *db.Migrator, func(), error) {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	if !cfg.HasDatabase() {
		return nil, nil, nil, errors.New("DATABASE_URL is required for migrations")
	}
	pool, err := connect(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, db.NewMigrator(pool, os.DirFS(cfg.MigrationsDir)), pool.Close, nil
}

func printStatuses(w io.Writer, schema string, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "Migration status for schema: %s\n", schema)
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}
