package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/jikoent/cipher-squad-backend/internal/auth"
	"github.com/jikoent/cipher-squad-backend/internal/config"
	"github.com/jikoent/cipher-squad-backend/internal/httpapi"
	"github.com/jikoent/cipher-squad-backend/internal/hub"
	"github.com/jikoent/cipher-squad-backend/internal/seed"
	"github.com/jikoent/cipher-squad-backend/internal/stats"
	"github.com/jikoent/cipher-squad-backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logger.Fatal("database connect failed", zap.Error(err))
	}

	st := store.New(db, logger)
	if err := st.AutoMigrate(); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	seeder := seed.New(st, logger)
	if _, err := seeder.SeedToday(ctx, time.Now()); err != nil {
		logger.Fatal("initial seed failed", zap.Error(err))
	}

	h := hub.NewHub(ctx)

	// Build the router *with* the dependencies injected
	handler := httpapi.SetupRoutes(httpapi.Deps{
		Store:    st,
		Hub:      h,
		Seeder:   seeder,
		AdminKey: cfg.AdminKey,
		Log:      logger,
	}, auth.Middleware(cfg.TelegramBotToken, cfg.AllowMockAuth, logger))

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: handler}
	reporter := stats.NewReporter(st, cfg.StatsURL, cfg.StatsKey, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return reporter.Run(gctx)
	})

	// Reseed shortly after each UTC midnight so the new day's vault exists
	// before the first player arrives.
	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		lastDay := ""
		for {
			select {
			case <-gctx.Done():
				return nil
			case now := <-ticker.C:
				day := now.UTC().Format("2006-01-02")
				if day == lastDay {
					continue
				}
				if _, err := seeder.SeedToday(gctx, now); err != nil {
					logger.Warn("daily reseed failed", zap.Error(err))
					continue
				}
				lastDay = day
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
