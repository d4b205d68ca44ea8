package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clubtrack/attendance-backend-go/internal/config"
	"github.com/clubtrack/attendance-backend-go/internal/domain/attendance"
	"github.com/clubtrack/attendance-backend-go/internal/domain/tracking"
	appHTTP "github.com/clubtrack/attendance-backend-go/internal/handler/http"
	"github.com/clubtrack/attendance-backend-go/internal/pkg/cache"
	"github.com/clubtrack/attendance-backend-go/internal/pkg/cron"
	"github.com/clubtrack/attendance-backend-go/internal/pkg/database"
	"github.com/clubtrack/attendance-backend-go/internal/pkg/events"
	"github.com/clubtrack/attendance-backend-go/internal/pkg/feed"
	"github.com/clubtrack/attendance-backend-go/internal/pkg/jwt"
	"github.com/clubtrack/attendance-backend-go/internal/pkg/logging"
	"github.com/clubtrack/attendance-backend-go/internal/pkg/sse"
	cachedRepo "github.com/clubtrack/attendance-backend-go/internal/repository/cache"
	"github.com/clubtrack/attendance-backend-go/internal/repository/inmem"
	"github.com/clubtrack/attendance-backend-go/internal/repository/postgresql"
	attendanceService "github.com/clubtrack/attendance-backend-go/internal/service/attendance"
	trackingService "github.com/clubtrack/attendance-backend-go/internal/service/tracking"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"
)

const (
	version         = "v1.0.0"
	shutdownTimeout = 15 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Setup(os.Stdout, cfg.App.LogLevel, cfg.App.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		sessionRepo attendance.SessionRepository
		clubRepo    attendance.ClubRepository
		dayRepo     attendance.DayStatusRepository
	)

	switch cfg.Tracking.Storage {
	case config.StorageMemory:
		slog.Warn("Using in-memory storage; sessions are lost on restart")
		db := inmem.Open()
		sessionRepo = inmem.NewSessionRepository(db)
		clubRepo = inmem.NewClubRepository(db)
		dayRepo = inmem.NewDayStatusRepository(db)
	default:
		db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolConfig{MaxConns: cfg.Database.MaxConns})
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()

		if cfg.Database.AutoMigrate {
			if err := db.Migrate(ctx); err != nil {
				return err
			}
		}
		sessionRepo = postgresql.NewSessionRepository(db)
		clubRepo = postgresql.NewClubRepository(db)
		dayRepo = postgresql.NewDayStatusRepository(db)
	}

	// Cache
	var invalidator *cachedRepo.Invalidator
	if cfg.Cache.ValkeyAddr != "" {
		store, err := cache.NewValkey(cfg.Cache.ValkeyAddr)
		if err != nil {
			slog.Warn("Valkey unavailable, club lookups are not cached", "error", err)
		} else {
			defer store.Close()
			if err := store.Ping(ctx); err != nil {
				slog.Warn("Valkey ping failed", "error", err)
			}
			clubRepo = cachedRepo.NewClubRepository(clubRepo, store, cfg.Cache.TTL)
			dayRepo = cachedRepo.NewDayStatusRepository(dayRepo, store, cfg.Cache.TTL)
			invalidator = cachedRepo.NewInvalidator(store)
		}
	}

	// NATS
	var publisher tracking.EventPublisher
	var natsConn *nats.Conn
	if cfg.Events.NatsURL != "" {
		natsConn, err = events.Connect(cfg.Events.NatsURL)
		if err != nil {
			slog.Warn("NATS unavailable, session events are not published", "error", err)
		} else {
			defer func() { _ = natsConn.Drain() }()
			publisher = events.NewPublisher(natsConn)
		}
	}

	broker := feed.NewBroker(0)
	hub := sse.NewHub()

	trackingSvc := trackingService.NewTrackingService(sessionRepo, clubRepo, dayRepo, broker, hub, publisher, trackingService.Config{
		Location: cfg.Tracking.Location,
		Subscribe: tracking.SubscribeOptions{
			HighAccuracy: cfg.Tracking.HighAccuracy,
			Timeout:      cfg.Tracking.FeedTimeout,
			MaxCacheAge:  cfg.Tracking.MaxCacheAge,
		},
		Retries:       cfg.Tracking.Retries,
		RetryInterval: cfg.Tracking.RetryInterval,
		ActionTimeout: cfg.Tracking.ActionTimeout,
	})
	attendanceSvc := attendanceService.NewAttendanceService(sessionRepo, cfg.Tracking.Location, nil)

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)

	router := appHTTP.NewRouter(
		appHTTP.RouterOptions{
			AllowedOrigins: cfg.App.AllowedOrigins,
			Env:            cfg.App.Env,
			Version:        version,
			LogLevel:       logging.ParseLevel(cfg.App.LogLevel),
		},
		JWTService,
		appHTTP.NewTrackingHandler(trackingSvc, JWTService, hub),
		appHTTP.NewSessionHandler(attendanceSvc),
	)

	scheduler := cron.NewScheduler()
	cron.NewTrackingJobs(trackingSvc, cfg.Tracking.SyncInterval).RegisterJobs(scheduler)

	g, gctx := errgroup.WithContext(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts end with the process so open SSE streams return on shutdown
		BaseContext: func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		slog.Info("Server starting", "addr", server.Addr, "env", cfg.App.Env, "storage", cfg.Tracking.Storage)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		scheduler.Start(gctx)
		<-gctx.Done()
		scheduler.Stop()
		return nil
	})

	if natsConn != nil {
		listener := events.NewListener(natsConn, func(ctx context.Context, update events.ClubUpdate) error {
			if err := invalidator.InvalidateClub(ctx, update.ClubID, today(cfg.Tracking.Location)); err != nil {
				slog.Warn("Failed to invalidate club cache", "club_id", update.ClubID, "error", err)
			}
			return trackingSvc.RefreshClub(ctx, update.ClubID)
		})
		g.Go(func() error {
			return listener.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("HTTP shutdown incomplete", "error", err)
		}
		return trackingSvc.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// today is the current calendar date in loc, as stored in day_status.
func today(loc *time.Location) time.Time {
	local := time.Now().In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}
