package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"github.com/fincore/ledger-engine/internal/accounts"
	"github.com/fincore/ledger-engine/internal/config"
	"github.com/fincore/ledger-engine/internal/engine"
	"github.com/fincore/ledger-engine/internal/errs"
	kafkaevents "github.com/fincore/ledger-engine/internal/events/kafka"
	"github.com/fincore/ledger-engine/internal/gateway"
	"github.com/fincore/ledger-engine/internal/interfaces"
	"github.com/fincore/ledger-engine/internal/ledger"
	"github.com/fincore/ledger-engine/internal/models"
	"github.com/fincore/ledger-engine/internal/storage/memory"
	"github.com/fincore/ledger-engine/internal/storage/postgres"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	_ "github.com/lib/pq"
)

func main() {
	cfg := config.Load()

	var log *zap.Logger
	var err error
	if cfg.Env == "production" {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	var accountStore interfaces.AccountStore
	var ledgerStore interfaces.LedgerStore
	var scheduleStore interfaces.ScheduleStore

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatal("opening database", zap.Error(err))
		}
		if err := db.Ping(); err != nil {
			log.Fatal("pinging database", zap.Error(err))
		}
		defer db.Close()
		accountStore = postgres.NewAccountStore(db)
		ledgerStore = postgres.NewLedgerStore(db)
		scheduleStore = postgres.NewScheduleStore(db)
		log.Info("using postgres storage")
	} else {
		accountStore = memory.NewAccountStore()
		ledgerStore = memory.NewLedgerStore()
		scheduleStore = memory.NewScheduleStore()
		log.Info("using in-memory storage")
	}

	var publisher interfaces.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := kafkaevents.NewPublisher(cfg.KafkaBrokers)
		defer kp.Close()
		publisher = kp
		log.Info("kafka publisher enabled", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	accountSvc := accounts.NewService(accountStore, log)
	ledgerSvc := ledger.NewService(ledgerStore, log)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	feeAccountID, err := ensureFeeAccount(ctx, accountSvc, cfg.FeeAccountID)
	if err != nil {
		log.Fatal("preparing fee collection account", zap.Error(err))
	}

	eng := engine.New(accountSvc, ledgerSvc, scheduleStore, publisher, engine.Config{
		FeeAccountID: feeAccountID,
		LockTimeout:  cfg.LockTimeout,
	}, log)
	eng.StartScheduler(ctx, cfg.SchedulerInterval)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	gateway.NewHandler(eng, accountSvc, ledgerSvc, log).Register(app)

	go func() {
		log.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	stop()
	if err := app.Shutdown(); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}
}

// ensureFeeAccount resolves the configured fee-collection account, creating
// one when the configured ID is absent or unset.
func ensureFeeAccount(ctx context.Context, svc *accounts.Service, configured string) (string, error) {
	if configured != "" {
		_, err := svc.Get(ctx, configured)
		if err == nil {
			return configured, nil
		}
		if errs.KindOf(err) != errs.KindNotFound {
			return "", err
		}
	}
	account, err := svc.Create(ctx, "system", models.AccountChecking, "fee collection")
	if err != nil {
		return "", err
	}
	return account.ID, nil
}
