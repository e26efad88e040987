package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"custos/internal/account"
	"custos/internal/enforcement"
	enforcementmetrics "custos/internal/enforcement/metrics"
	"custos/internal/flagging"
	flaggingmetrics "custos/internal/flagging/metrics"
	"custos/internal/notify"
	"custos/internal/platform/config"
	"custos/internal/platform/httpserver"
	"custos/internal/platform/logger"
	platformmetrics "custos/internal/platform/metrics"
	platformredis "custos/internal/platform/redis"
	"custos/internal/policy"
	"custos/internal/prediction"
	predictionmetrics "custos/internal/prediction/metrics"
	"custos/internal/risk"
	riskmetrics "custos/internal/risk/metrics"
	"custos/internal/transaction"
	httptransport "custos/internal/transport/http"
	"custos/pkg/platform/audit"
	auditmem "custos/pkg/platform/audit/store/memory"
	auditpg "custos/pkg/platform/audit/store/postgres"
	"custos/pkg/platform/sentinel"
)

// main wires stores, services, and the HTTP surface. Persistence is
// in-memory by default and postgres when DATABASE_URL is set; redis and
// kafka are optional in the same way. Business logic lives in the internal
// packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx := context.Background()

	// Stores: one bundle, memory or postgres.
	stores, cleanup, err := buildStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	// Optional redis cache in front of the policy reader.
	var policyReader policy.Reader = stores.policies
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		policyReader = policy.NewCachedReader(stores.policies, redisClient.Client, cfg.Redis.PolicyTTL, log)
		log.Info("policy cache enabled", "ttl", cfg.Redis.PolicyTTL.String())
	}

	// Optional kafka notifier, logging sink otherwise.
	var notifier notify.Notifier = notify.NewLogNotifier(log)
	if len(cfg.KafkaBrokers) > 0 {
		kafkaNotifier, err := notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.NotifyTopic, log)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := kafkaNotifier.Close(closeCtx); err != nil {
				log.Warn("kafka notifier close", "error", err)
			}
		}()
		notifier = kafkaNotifier
		log.Info("kafka notifier enabled", "topic", cfg.NotifyTopic)
	}

	// Services.
	riskOpts := []risk.Option{
		risk.WithLogger(log),
		risk.WithMetrics(riskmetrics.New()),
	}
	if cfg.AdvisorURL != "" {
		advisor, err := risk.NewHTTPAdvisor(cfg.AdvisorURL, risk.WithAdvisorLogger(log))
		if err != nil {
			return err
		}
		riskOpts = append(riskOpts, risk.WithAdvisor(advisor))
		log.Info("risk advisor enabled", "url", cfg.AdvisorURL)
	}
	riskSvc, err := risk.New(stores.accounts, stores.txs, riskOpts...)
	if err != nil {
		return err
	}

	flaggingSvc, err := flagging.New(stores.rules, stores.flags, stores.accounts, stores.txs,
		flagging.WithLogger(log),
		flagging.WithMetrics(flaggingmetrics.New()),
	)
	if err != nil {
		return err
	}

	enforcementSvc, err := enforcement.New(stores.accounts, stores.assets, policyReader, stores.audits,
		enforcement.WithLogger(log),
		enforcement.WithMetrics(enforcementmetrics.New()),
		enforcement.WithNotifier(notifier),
	)
	if err != nil {
		return err
	}
	scheduler := enforcement.NewScheduler(enforcementSvc, cfg.EnforcementInterval, log)
	if cfg.SchedulerAutostart {
		if err := scheduler.Start(); err != nil {
			return err
		}
		defer func() { _ = scheduler.Stop() }()
	}

	predictionSvc, err := prediction.New(stores.accounts, stores.txs, policyReader,
		prediction.WithLogger(log),
		prediction.WithMetrics(predictionmetrics.New()),
	)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.Services{
		Risk:       riskSvc,
		Flagging:   flaggingSvc,
		Reinstater: enforcementSvc,
		Scheduler:  scheduler,
		Prediction: predictionSvc,
	}, log, platformmetrics.New())

	srv := httpserver.New(cfg.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("custos listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// storeBundle groups every persistence port main needs to wire.
type storeBundle struct {
	accounts account.Store
	assets   account.AssetStore
	txs      transaction.Store
	rules    flagging.RuleStore
	flags    flagging.FlagStore
	policies policy.Store
	audits   audit.Store
}

func buildStores(ctx context.Context, cfg config.Config, log *slog.Logger) (*storeBundle, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Info("using in-memory stores")
		accounts := account.NewInMemoryStore()
		flaggingStore := flagging.NewInMemoryStore()
		return &storeBundle{
			accounts: accounts,
			assets:   accounts,
			txs:      transaction.NewInMemoryStore(),
			rules:    flaggingStore,
			flags:    flaggingStore,
			policies: policy.NewInMemoryStore(),
			audits:   auditmem.NewInMemoryStore(),
		}, func() {}, nil
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}

	accounts := account.NewPostgres(db)
	txs := transaction.NewPostgres(db)
	flaggingStore := flagging.NewPostgres(db)
	policies := policy.NewPostgres(db)
	audits := auditpg.New(db)

	for _, m := range []interface {
		Migrate(context.Context) error
	}{accounts, txs, flaggingStore, policies, audits} {
		if err := m.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
	}

	// First boot: seed the default policy so enforcement has something to
	// run against before an admin activates a real one.
	if _, err := policies.GetActivePolicy(ctx); errors.Is(err, sentinel.ErrUnavailable) {
		if err := policies.SetActivePolicy(ctx, policy.Default()); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info("seeded default policy")
	}

	log.Info("using postgres stores")
	return &storeBundle{
		accounts: accounts,
		assets:   accounts,
		txs:      txs,
		rules:    flaggingStore,
		flags:    flaggingStore,
		policies: policies,
		audits:   audits,
	}, func() { db.Close() }, nil
}
