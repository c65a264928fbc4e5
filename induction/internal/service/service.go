package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/metro-depot/fleet/induction/internal/cache"
	"github.com/metro-depot/fleet/induction/internal/planner"
	"github.com/metro-depot/fleet/induction/internal/store"
)

// ErrInvalidDate is returned for planning dates that are not YYYY-MM-DD.
var ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")

const dateLayout = "2006-01-02"

// Publisher emits plan events. publish.KafkaPublisher satisfies it.
type Publisher interface {
	PublishPlan(ctx context.Context, fs planner.FleetStatus) error
}

// Archiver persists plans out of band. archive.S3Archiver satisfies it.
type Archiver interface {
	ArchivePlan(ctx context.Context, fs planner.FleetStatus) (string, error)
}

// Attester signs plans. attest.Signer satisfies it.
type Attester interface {
	Sign(fs planner.FleetStatus) (string, error)
}

// Config carries the planning settings resolved from the environment and
// the rules file.
type Config struct {
	Location        *time.Location
	LoadConcurrency int
	Thresholds      planner.Thresholds
	WatchRules      []planner.Rule
}

// Deps are the optional collaborators. Any nil field disables that side
// effect.
type Deps struct {
	Cache     cache.Cache
	Attester  Attester
	Publisher Publisher
	Archiver  Archiver
	Logger    *slog.Logger
}

// Service runs plans for the HTTP API and the nightly planner.
type Service struct {
	planner   *planner.Planner
	cache     cache.Cache
	attester  Attester
	publisher Publisher
	archiver  Archiver
	loc       *time.Location
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// New builds a Service over st. Zero thresholds mean the defaults.
func New(st store.Store, cfg Config, deps Deps) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	thresholds := cfg.Thresholds
	if thresholds == (planner.Thresholds{}) {
		thresholds = planner.DefaultThresholds()
	}
	p := planner.New(NewStoreSource(st),
		planner.WithRules(cfg.WatchRules...),
		planner.WithThresholds(thresholds),
		planner.WithLoadConcurrency(cfg.LoadConcurrency),
		planner.WithLogger(logger),
	)
	return &Service{
		planner:   p,
		cache:     deps.Cache,
		attester:  deps.Attester,
		publisher: deps.Publisher,
		archiver:  deps.Archiver,
		loc:       loc,
		logger:    logger.With("component", "induction-service"),
		tracer:    otel.Tracer("github.com/metro-depot/fleet/induction/service"),
		now:       time.Now,
	}
}

// ParseDate reads a YYYY-MM-DD planning date as midnight in the service
// timezone. An empty string means today.
func (s *Service) ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		y, m, d := s.now().In(s.loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, s.loc), nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return t, nil
}

// GeneratePlan computes a fresh plan and fans it out to the cache, the
// event stream and the archive. Side-effect failures are logged only.
func (s *Service) GeneratePlan(ctx context.Context, rawDate string) (planner.FleetStatus, error) {
	date, err := s.ParseDate(rawDate)
	if err != nil {
		return planner.FleetStatus{}, err
	}
	ctx, span := s.tracer.Start(ctx, "service.GeneratePlan",
		trace.WithAttributes(attribute.String("induction.date", date.Format(dateLayout))))
	defer span.End()

	gen, cacheable := s.generation(ctx)
	fs, err := s.compute(ctx, date)
	if err != nil {
		return planner.FleetStatus{}, err
	}
	if cacheable {
		s.cachePut(ctx, gen, fs)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishPlan(ctx, fs); err != nil {
			s.logger.WarnContext(ctx, "plan publish failed", "plan_id", fs.PlanID, "error", err)
		}
	}
	if s.archiver != nil {
		key, err := s.archiver.ArchivePlan(ctx, fs)
		if err != nil {
			s.logger.WarnContext(ctx, "plan archive failed", "plan_id", fs.PlanID, "error", err)
		} else {
			s.logger.InfoContext(ctx, "plan archived", "plan_id", fs.PlanID, "key", key)
		}
	}
	return fs, nil
}

// FleetStatus returns the cached plan for the date, computing it on a miss.
func (s *Service) FleetStatus(ctx context.Context, rawDate string) (planner.FleetStatus, error) {
	date, err := s.ParseDate(rawDate)
	if err != nil {
		return planner.FleetStatus{}, err
	}
	key := date.Format(dateLayout)
	gen, cacheable := s.generation(ctx)
	if cacheable {
		fs, ok, err := s.cache.Get(ctx, gen, key)
		if err != nil {
			s.logger.WarnContext(ctx, "cache read failed", "date", key, "error", err)
		} else if ok {
			return fs, nil
		}
	}
	fs, err := s.compute(ctx, date)
	if err != nil {
		return planner.FleetStatus{}, err
	}
	if cacheable {
		s.cachePut(ctx, gen, fs)
	}
	return fs, nil
}

// EvaluateTrainset returns one trainset's verdict.
func (s *Service) EvaluateTrainset(ctx context.Context, number, rawDate string) (planner.Verdict, error) {
	date, err := s.ParseDate(rawDate)
	if err != nil {
		return planner.Verdict{}, err
	}
	return s.planner.EvaluateTrainset(ctx, number, date)
}

// Invalidate drops every cached plan. Called after any write.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "cache invalidate failed", "error", err)
	}
}

func (s *Service) compute(ctx context.Context, date time.Time) (planner.FleetStatus, error) {
	plan, err := s.planner.PlanForDate(ctx, date)
	if err != nil {
		return planner.FleetStatus{}, err
	}
	fs := plan.Status()
	if s.attester != nil {
		token, err := s.attester.Sign(fs)
		if err != nil {
			s.logger.WarnContext(ctx, "plan attestation failed", "plan_id", fs.PlanID, "error", err)
		} else {
			fs.Attestation = token
		}
	}
	return fs, nil
}

// generation is read before computing. When it cannot be read the plan is
// neither looked up nor stored.
func (s *Service) generation(ctx context.Context) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	gen, err := s.cache.Generation(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "cache generation read failed", "error", err)
		return 0, false
	}
	return gen, true
}

// cachePut caches fs unless the fleet listing failed, so the next read retries.
func (s *Service) cachePut(ctx context.Context, gen int64, fs planner.FleetStatus) {
	if fs.SourceError != "" {
		return
	}
	if err := s.cache.Put(ctx, gen, fs.Summary.PlanningDate, fs); err != nil {
		s.logger.WarnContext(ctx, "cache write failed", "date", fs.Summary.PlanningDate, "error", err)
	}
}
