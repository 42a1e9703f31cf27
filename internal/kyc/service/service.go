// Package service is the KYC submission orchestrator. It validates and
// accepts submissions, runs the verification pipeline in the background and
// serves status, admin and repair operations.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"kycgate/internal/kyc/metrics"
	"kycgate/internal/kyc/models"
	"kycgate/internal/kyc/ports"
	"kycgate/internal/kyc/tasks"
	id "kycgate/pkg/domain"
)

//go:generate mockgen -source=service.go -destination=../mocks/store.go -package=mocks

// Store persists verification records. Update must apply fn atomically with
// respect to other updates of the same record.
type Store interface {
	CreateIfNoneActive(ctx context.Context, record *models.VerificationRecord) error
	FindByID(ctx context.Context, recordID id.RecordID) (*models.VerificationRecord, error)
	FindLatestByUser(ctx context.Context, userID id.UserID) (*models.VerificationRecord, error)
	FindActiveByUser(ctx context.Context, userID id.UserID) (*models.VerificationRecord, error)
	Update(ctx context.Context, recordID id.RecordID, fn func(r *models.VerificationRecord) error) (*models.VerificationRecord, error)
	List(ctx context.Context, filter models.ListFilter, page models.Page) ([]*models.VerificationRecord, int, error)
	CountByStatus(ctx context.Context) (map[models.Status]int, error)
	ListByStatus(ctx context.Context, statuses []models.Status, limit int) ([]*models.VerificationRecord, error)
}

// Config is the orchestrator's explicit configuration; nothing is read from the environment.
type Config struct {
	// StaleAfter is how old an in-flight record must be before a new
	// submission may replace it.
	StaleAfter time.Duration
	// PipelineTimeout bounds a single pipeline run.
	PipelineTimeout time.Duration
	// SkipCredential always issues synthetic credentials.
	SkipCredential bool
	// Production enables the real credential issuer.
	Production   bool
	MaxFileBytes int64
	// RepairBatch caps how many stuck records one repair call handles.
	RepairBatch int
}

const (
	defaultStaleAfter      = 10 * time.Minute
	defaultPipelineTimeout = 5 * time.Minute
	defaultRepairBatch     = 100
	detachedWriteTimeout   = 10 * time.Second
)

// Providers groups the external collaborators. Issuer may be nil outside production.
type Providers struct {
	Content  ports.ContentStore
	Verifier ports.Verifier
	Issuer   ports.CredentialIssuer
	Ledger   ports.Ledger
}

// Service coordinates submission acceptance and the background pipeline.
type Service struct {
	store     Store
	users     ports.UserStatusStore
	artifacts ports.ArtifactStore
	guard     ports.SubmissionGuard
	providers Providers
	cfg       Config

	publisher ports.StatusPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
	clock     func() time.Time

	tasks    *tasks.Registry
	timeouts sync.WaitGroup
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPublisher announces every persisted status transition.
func WithPublisher(p ports.StatusPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

func New(
	store Store,
	users ports.UserStatusStore,
	artifacts ports.ArtifactStore,
	guard ports.SubmissionGuard,
	providers Providers,
	cfg Config,
	opts ...Option,
) *Service {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaultStaleAfter
	}
	if cfg.PipelineTimeout <= 0 {
		cfg.PipelineTimeout = defaultPipelineTimeout
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = models.DefaultMaxFileBytes
	}
	if cfg.RepairBatch <= 0 {
		cfg.RepairBatch = defaultRepairBatch
	}

	s := &Service{
		store:     store,
		users:     users,
		artifacts: artifacts,
		guard:     guard,
		providers: providers,
		cfg:       cfg,
		logger:    slog.Default(),
		tracer:    otel.Tracer("kycgate/internal/kyc/service"),
		clock:     time.Now,
		tasks:     tasks.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Shutdown stops accepting pipelines and waits for running ones (and any
// timeout writes) until ctx expires, then cancels the rest.
func (s *Service) Shutdown(ctx context.Context) error {
	err := s.tasks.Shutdown(ctx)
	s.timeouts.Wait()
	return err
}

// Wait blocks until every pipeline started so far has returned.
func (s *Service) Wait() {
	s.tasks.Wait()
	s.timeouts.Wait()
}

// PipelineRunning reports whether a background task currently owns the record.
func (s *Service) PipelineRunning(recordID id.RecordID) bool {
	return s.tasks.Running(recordID)
}
