package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/dentflow/clinic/internal/config"
	"github.com/dentflow/clinic/internal/domain/dashboard"
	"github.com/dentflow/clinic/internal/domain/patient"
	"github.com/dentflow/clinic/internal/domain/scheduling"
	"github.com/dentflow/clinic/internal/platform/auth"
	"github.com/dentflow/clinic/internal/platform/db"
	"github.com/dentflow/clinic/internal/platform/events"
	"github.com/dentflow/clinic/internal/platform/middleware"
)

const requestTimeout = 30 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:          "clinic-server",
		Short:        "DentFlow clinic scheduling server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(clinicCmd())
	rootCmd.AddCommand(remindersCmd())
	rootCmd.AddCommand(agendaCmd())
	rootCmd.AddCommand(bookCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// newPublisher returns a Kafka publisher when brokers are configured and a
// log-only publisher otherwise.
func newPublisher(cfg *config.Config, logger zerolog.Logger) (events.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NewLogPublisher(logger), nil
	}
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
}

// stores is everything the HTTP server needs from the database.
type stores struct {
	clinic       echo.MiddlewareFunc
	dbHealth     echo.HandlerFunc
	appointments scheduling.AppointmentRepository
	patients     patient.Repository
	publisher    events.Publisher
}

// newServer wires the middleware chain and routes. The returned func
// releases background resources.
func newServer(cfg *config.Config, logger zerolog.Logger, st stores) (*echo.Echo, func(), error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	signingKey, err := cfg.SigningKey()
	if err != nil {
		return nil, nil, err
	}
	issuer, err := auth.NewIssuer(signingKey, cfg.SessionTTL)
	if err != nil {
		return nil, nil, err
	}
	if signingKey == nil {
		logger.Warn().Msg("SESSION_SIGNING_KEY not set; sessions will not survive a restart")
	}
	cost := bcrypt.DefaultCost
	if cfg.IsDev() {
		cost = bcrypt.MinCost
	}
	dir, err := auth.NewDirectory(auth.DefaultCredentials(), cost)
	if err != nil {
		return nil, nil, err
	}
	revoked := auth.NewRevocationStore(10 * time.Minute)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:  []string{"Authorization", "Content-Type", middleware.RequestIDHeader, db.HeaderClinicID},
		ExposeHeaders: []string{echo.HeaderLocation, middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(requestTimeout))

	// Health endpoints
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if st.dbHealth != nil {
		e.GET("/health/db", st.dbHealth)
	}

	// API group
	api := e.Group("/api")
	if st.clinic != nil {
		api.Use(st.clinic)
	}
	api.Use(auth.SessionMiddleware(issuer, revoked))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           middleware.DefaultRateLimitConfig().IdleTTL,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rateLimitCfg))

	var scheduleGate, patientGate []echo.MiddlewareFunc
	if cfg.EnforceCapabilities {
		scheduleGate = append(scheduleGate, auth.RequireCapability("schedule", auth.Role.CanSchedule))
		patientGate = append(patientGate, auth.RequireCapability("edit patients", auth.Role.CanEditPatients))
	}

	apptSvc := scheduling.NewService(st.appointments, st.publisher)
	patientSvc := patient.NewService(st.patients)

	auth.NewHandler(dir, issuer, revoked).RegisterRoutes(api)
	scheduling.NewHandler(apptSvc).RegisterRoutes(api, scheduleGate...)
	patient.NewHandler(patientSvc).RegisterRoutes(api, patientGate...)
	dashboard.NewHandler(dashboard.NewService(apptSvc, patientSvc, loc)).RegisterRoutes(api)

	return e, revoked.Close, nil
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := newLogger(cfg)

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Events
	pub, err := newPublisher(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create event publisher")
	}
	defer pub.Close()

	appointments := scheduling.NewAppointmentRepoPG(pool)
	e, cleanup, err := newServer(cfg, logger, stores{
		clinic:       db.ClinicMiddleware(pool, cfg.DefaultClinic, auth.PublicSkipper),
		dbHealth:     db.HealthHandler(pool, cfg.DefaultClinic),
		appointments: appointments,
		patients:     patient.NewRepoPG(pool),
		publisher:    pub,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}
	defer cleanup()

	// Reminders
	if cfg.RemindersEnabled {
		sched, err := newReminderScheduler(cfg, pool, appointments, pub, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create reminder scheduler")
		}
		sched.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			sched.Stop(stopCtx)
		}()
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
