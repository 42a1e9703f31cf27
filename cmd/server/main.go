package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	jwttoken "kycgate/internal/jwt_token"
	"kycgate/internal/kyc/artifacts"
	"kycgate/internal/kyc/events"
	"kycgate/internal/kyc/guard"
	"kycgate/internal/kyc/handler"
	kycmetrics "kycgate/internal/kyc/metrics"
	"kycgate/internal/kyc/ports"
	"kycgate/internal/kyc/providers"
	"kycgate/internal/kyc/providers/ai"
	"kycgate/internal/kyc/providers/aries"
	"kycgate/internal/kyc/providers/ipfs"
	"kycgate/internal/kyc/providers/ledger"
	"kycgate/internal/kyc/service"
	"kycgate/internal/kyc/store"
	"kycgate/internal/platform/config"
	"kycgate/internal/platform/httpserver"
	"kycgate/internal/platform/kafka"
	"kycgate/internal/platform/logger"
	"kycgate/internal/platform/metrics"
	"kycgate/internal/platform/postgres"
	"kycgate/internal/platform/redis"
	httptransport "kycgate/internal/transport/http"
	"kycgate/pkg/platform/circuit"
)

// infra holds the optional backing services. Nil fields are not configured.
type infra struct {
	db    *sql.DB
	redis *redis.Client
	kafka *kafka.Client
}

func (i *infra) close(log *slog.Logger) {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Warn("redis close failed", "error", err)
		}
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			log.Warn("postgres close failed", "error", err)
		}
	}
}

// healthChecker is satisfied by every provider client that can be probed.
type healthChecker interface {
	Health(ctx context.Context) error
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}
	cfg := config.FromEnv()
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("kycgate stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer in.close(log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	health := map[string]httptransport.HealthCheck{}
	svc, err := buildService(cfg, log, in, reg, health)
	if err != nil {
		return err
	}

	jwt := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience,
		jwttoken.WithLeeway(cfg.Server.JWTLeeway))
	router := httptransport.NewRouter(httptransport.Deps{
		Logger:       log,
		JWTValidator: jwttoken.NewJWTServiceAdapter(jwt),
		KYC:          handler.New(svc, log, cfg.KYC.MaxFileBytes),
		Metrics:      metrics.New(reg),
		Gatherer:     reg,
		Health:       health,
	})
	srv := httpserver.New(cfg.Server, router, log)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting kycgate", "addr", cfg.Server.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	// running pipelines get the remaining budget, then are cancelled
	if err := svc.Shutdown(shutdownCtx); err != nil {
		log.Warn("pipelines cancelled at shutdown", "error", err)
	}
	return nil
}

func connect(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	in := &infra{}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if db != nil {
		in.db = db
		if err := store.Migrate(ctx, db); err != nil {
			in.close(log)
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("using postgres record store")
	} else {
		log.Warn("DATABASE_URL not set, using in-memory record store")
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		in.close(log)
		return nil, err
	}
	in.redis = rc

	kc, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		in.close(log)
		return nil, err
	}
	in.kafka = kc

	return in, nil
}

func buildService(
	cfg config.Config,
	log *slog.Logger,
	in *infra,
	reg prometheus.Registerer,
	health map[string]httptransport.HealthCheck,
) (*service.Service, error) {
	var (
		records service.Store
		users   ports.UserStatusStore
	)
	if in.db != nil {
		records = store.NewPostgres(in.db)
		users = store.NewPostgresUserStatusStore(in.db)
		health["database"] = in.db.PingContext
	} else {
		records = store.NewInMemoryStore()
		users = store.NewInMemoryUserStatusStore()
	}

	var submissionGuard ports.SubmissionGuard = guard.NewInMemory()
	if in.redis != nil {
		submissionGuard = guard.NewRedis(in.redis.Client, cfg.KYC.GuardTTL)
		health["redis"] = in.redis.Health
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(kycmetrics.New(reg)),
	}
	if in.kafka != nil {
		opts = append(opts, service.WithPublisher(events.NewKafkaPublisher(in.kafka, in.kafka.Topic(), log)))
		health["kafka"] = in.kafka.Health
	}

	disk, err := artifacts.NewDisk(cfg.KYC.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("artifact store: %w", err)
	}

	provs, err := buildProviders(cfg, log)
	if err != nil {
		return nil, err
	}
	if h, ok := provs.Verifier.(healthChecker); ok {
		health["ai"] = h.Health
	}
	health["ledger"] = provs.Ledger.Health

	return service.New(records, users, disk, submissionGuard, provs, service.Config{
		StaleAfter:      cfg.KYC.StaleAfter,
		PipelineTimeout: cfg.KYC.PipelineTimeout,
		SkipCredential:  cfg.KYC.SkipCredential,
		Production:      cfg.IsProduction(),
		MaxFileBytes:    cfg.KYC.MaxFileBytes,
	}, opts...), nil
}

func buildProviders(cfg config.Config, log *slog.Logger) (service.Providers, error) {
	p := cfg.Providers
	var out service.Providers

	content, err := ipfs.New(p.IPFS)
	if err != nil {
		return out, err
	}
	out.Content = content

	if p.AI.UseStub {
		log.Warn("using stub verifier; every submission is approved")
		out.Verifier = ai.NewStub()
	} else {
		policy := providers.DefaultRetryPolicy
		policy.MaxRetries = p.AI.MaxRetries
		out.Verifier = ai.New(p.AI.URL, p.AI.Timeout,
			ai.WithRetryPolicy(policy),
			ai.WithBreaker(circuit.New("ai")),
		)
	}

	if cfg.IsProduction() && !cfg.KYC.SkipCredential {
		out.Issuer = aries.New(p.Aries.AdminURL, p.Aries.APIKey, p.Aries.ConnectionID, p.Aries.CredDefID, p.Aries.Timeout)
	}

	if p.Ledger.UseStub {
		log.Warn("using stub ledger; registrations are not anchored")
		out.Ledger = ledger.NewStub()
	} else {
		client, err := ledger.New(p.Ledger.RPCURL, p.Ledger.ContractAddress, p.Ledger.FromAddress, p.Ledger.Timeout,
			ledger.WithReceiptPolling(p.Ledger.ReceiptPoll, p.Ledger.ReceiptTimeout),
			ledger.WithBreaker(circuit.New("ledger")),
		)
		if err != nil {
			return out, fmt.Errorf("ledger client: %w", err)
		}
		out.Ledger = client
	}
	return out, nil
}
