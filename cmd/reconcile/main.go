package main

import (
	"context"
	"flag"
	"os"

	"github.com/stocky-project/backend/internal/calendar"
	"github.com/stocky-project/backend/internal/config"
	"github.com/stocky-project/backend/internal/db"
	"github.com/stocky-project/backend/internal/ledger"
	"github.com/stocky-project/backend/internal/logger"
	"github.com/stocky-project/backend/internal/services"
)

// reconcile compares the user_holdings projection with the reward event log
// and, with -repair, rebuilds drifted projections from the log.
func main() {
	repair := flag.Bool("repair", false, "rewrite drifted projections from the event log")
	only := flag.String("user", "", "reconcile a single user")
	flag.Parse()

	logger.Info("🚀 Starting holdings reconciliation...")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config: %v", err)
	}
	logger.SetLevel(cfg.Log.Level)

	pgDB, err := db.ConnectPostgres(cfg)
	if err != nil {
		logger.Fatal("failed to connect to postgres: %v", err)
	}

	store := ledger.NewGormStore(pgDB)
	service := services.NewHoldingsService(store, calendar.New(cfg.Rewards.Location))
	ctx := context.Background()

	users := []string{*only}
	if *only == "" {
		users, err = store.DistinctUsers(ctx)
		if err != nil {
			logger.Fatal("failed to list users: %v", err)
		}
	}

	drifted, failed := 0, 0
	for _, userID := range users {
		report, err := service.Reconcile(ctx, userID, *repair)
		if err != nil {
			logger.Error("reconcile %s failed: %v", userID, err)
			failed++
			continue
		}
		if len(report.Drift) == 0 {
			continue
		}
		drifted++
		for _, d := range report.Drift {
			logger.WithFields(logger.Fields{
				"user_id":   userID,
				"symbol":    d.Symbol,
				"projected": d.Projected.String(),
				"actual":    d.Actual.String(),
				"repaired":  report.Repaired,
			}).Warn("holding drift")
		}
	}

	logger.Info("✅ Checked %d users: %d drifted, %d failed", len(users), drifted, failed)
	if failed > 0 || (drifted > 0 && !*repair) {
		os.Exit(1)
	}
}
