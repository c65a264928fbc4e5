// Package planner implements the induction planner: a rule-based evaluator
// that classifies every trainset as Unfit, Fit or Standby for a planning date
// and explains each decision.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrTrainsetNotFound is returned by EvaluateTrainset for unknown numbers.
var ErrTrainsetNotFound = errors.New("trainset not found")

// Metadata holds the per-rule summaries of a verdict.
type Metadata struct {
	FitnessCertificate string `json:"fitness_certificate"`
	JobCards           string `json:"job_cards"`
	Mileage            string `json:"mileage"`
	BrandingPriority   string `json:"branding_priority"`
	CleaningSlot       string `json:"cleaning_slot"`
	StablingBay        string `json:"stabling_bay"`
	Error              string `json:"error,omitempty"`
}

func (m *Metadata) set(key MetaKey, summary string) {
	switch key {
	case MetaFitnessCertificate:
		m.FitnessCertificate = summary
	case MetaJobCards:
		m.JobCards = summary
	case MetaMileage:
		m.Mileage = summary
	case MetaBrandingPriority:
		m.BrandingPriority = summary
	case MetaCleaningSlot:
		m.CleaningSlot = summary
	case MetaStablingBay:
		m.StablingBay = summary
	}
}

// Verdict is the recommendation for one trainset. It is built once and not
// mutated afterwards.
type Verdict struct {
	TrainsetID     string   `json:"trainset_id"`
	Status         Status   `json:"status"`
	Reason         string   `json:"reason"`
	ConflictAlerts []string `json:"conflict_alerts"`
	Metadata       Metadata `json:"metadata"`
}

// Degraded reports whether the verdict records a load or evaluation fault
// rather than an evaluated status.
func (v Verdict) Degraded() bool {
	return v.Metadata.Error != ""
}

// Plan is the sorted fleet-wide result of one planning run.
type Plan struct {
	ID           uuid.UUID
	Date         time.Time
	Verdicts     []Verdict
	FleetAverage float64
	// SourceError is set when the fleet could not be enumerated at all.
	SourceError string
	GeneratedAt time.Time
}

// Planner evaluates the fleet. It holds no per-run state, so one Planner may
// serve concurrent runs.
type Planner struct {
	source      FleetSource
	rules       []Rule
	thresholds  Thresholds
	concurrency int
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// Option configures a Planner.
type Option func(*Planner)

// WithRules appends rules evaluated after the built-in ones.
func WithRules(rules ...Rule) Option {
	return func(p *Planner) { p.rules = append(p.rules, rules...) }
}

// WithThresholds replaces the default expiry and mileage thresholds.
func WithThresholds(t Thresholds) Option {
	return func(p *Planner) { p.thresholds = t }
}

// WithLoadConcurrency bounds how many snapshots are loaded at once.
func WithLoadConcurrency(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithLogger sets the logger; nil keeps the default.
func WithLogger(l *slog.Logger) Option {
	return func(p *Planner) {
		if l != nil {
			p.logger = l.With("component", "planner")
		}
	}
}

// WithClock sets the clock used for GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

// New returns a Planner reading from source with the built-in rules.
func New(source FleetSource, opts ...Option) *Planner {
	p := &Planner{
		source:      source,
		rules:       DefaultRules(),
		thresholds:  DefaultThresholds(),
		concurrency: 1,
		logger:      slog.Default().With("component", "planner"),
		tracer:      otel.Tracer("github.com/metro-depot/fleet/induction/planner"),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type loadResult struct {
	snap Snapshot
	err  error
}

// PlanForDate evaluates every trainset for date. Load and evaluation faults
// degrade single verdicts and a failed fleet listing yields an empty plan;
// the only error returned is the context's.
func (p *Planner) PlanForDate(ctx context.Context, date time.Time) (Plan, error) {
	ctx, span := p.tracer.Start(ctx, "planner.PlanForDate",
		trace.WithAttributes(attribute.String("induction.date", date.Format(dateLayout))))
	defer span.End()

	started := time.Now()
	plan := Plan{
		ID:          uuid.New(),
		Date:        date,
		Verdicts:    []Verdict{},
		GeneratedAt: p.now(),
	}

	refs, err := p.source.ListTrainsets(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Plan{}, ctxErr
		}
		p.logger.ErrorContext(ctx, "list trainsets failed, returning empty plan",
			"date", date.Format(dateLayout), "error", err)
		span.RecordError(err)
		plan.SourceError = err.Error()
		return plan, nil
	}

	plan.FleetAverage = fleetAverage(refs)
	env := Env{Date: date, FleetAverage: plan.FleetAverage, Thresholds: p.thresholds}

	loaded, err := p.loadAll(ctx, refs)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Plan{}, err
	}

	verdicts := make([]Verdict, 0, len(refs))
	for i, ref := range refs {
		res := loaded[i]
		if res.err != nil {
			p.logger.WarnContext(ctx, "snapshot load failed", "trainset", ref.Number, "error", res.err)
			verdicts = append(verdicts, degradedVerdict(ref.Number, "Snapshot load failed", res.err))
			continue
		}
		v := p.Evaluate(res.snap, env)
		if v.Degraded() {
			p.logger.WarnContext(ctx, "trainset evaluation failed", "trainset", ref.Number, "error", v.Metadata.Error)
		}
		verdicts = append(verdicts, v)
	}
	sortVerdicts(verdicts)
	plan.Verdicts = verdicts

	sum := Summarize(verdicts, date)
	span.SetAttributes(
		attribute.Int("induction.trainsets", sum.TotalTrainsets),
		attribute.Int("induction.unfit", sum.Unfit),
		attribute.Int("induction.alerts", sum.TotalAlerts),
	)
	p.logger.InfoContext(ctx, "induction plan generated",
		"plan_id", plan.ID, "date", sum.PlanningDate,
		"trainsets", sum.TotalTrainsets, "fit", sum.Fit, "unfit", sum.Unfit, "standby", sum.Standby,
		"alerts", sum.TotalAlerts, "duration", time.Since(started))
	return plan, nil
}

// EvaluateTrainset evaluates a single trainset against the current fleet
// average. Unlike PlanForDate, source failures are returned to the caller.
func (p *Planner) EvaluateTrainset(ctx context.Context, number string, date time.Time) (Verdict, error) {
	ctx, span := p.tracer.Start(ctx, "planner.EvaluateTrainset",
		trace.WithAttributes(attribute.String("induction.trainset", number)))
	defer span.End()

	refs, err := p.source.ListTrainsets(ctx)
	if err != nil {
		return Verdict{}, fmt.Errorf("list trainsets: %w", err)
	}
	found := false
	for _, ref := range refs {
		if ref.Number == number {
			found = true
			break
		}
	}
	if !found {
		return Verdict{}, ErrTrainsetNotFound
	}
	snap, err := p.source.LoadSnapshot(ctx, number)
	if err != nil {
		return Verdict{}, fmt.Errorf("load snapshot %s: %w", number, err)
	}
	env := Env{Date: date, FleetAverage: fleetAverage(refs), Thresholds: p.thresholds}
	return p.Evaluate(snap, env), nil
}

// Evaluate runs every rule against one snapshot. A rule error or panic
// degrades this verdict only.
func (p *Planner) Evaluate(s Snapshot, env Env) (v Verdict) {
	defer func() {
		if r := recover(); r != nil {
			v = degradedVerdict(s.Number, "Evaluation failed", fmt.Errorf("panic: %v", r))
		}
	}()

	findings := make([]Finding, 0, len(p.rules))
	for _, rule := range p.rules {
		f, err := rule.Evaluate(s, env)
		if err != nil {
			return degradedVerdict(s.Number, "Evaluation failed", fmt.Errorf("%s: %w", rule.Name(), err))
		}
		findings = append(findings, f)
	}

	var meta Metadata
	reasons := []string{}
	alerts := []string{}
	for _, f := range findings {
		reasons = append(reasons, f.Reasons...)
		alerts = append(alerts, f.Alerts...)
		if f.Key != "" {
			meta.set(f.Key, f.Summary)
		}
	}
	status := Resolve(findings)
	return Verdict{
		TrainsetID:     s.Number,
		Status:         status,
		Reason:         Compose(s.Number, status, reasons, alerts),
		ConflictAlerts: alerts,
		Metadata:       meta,
	}
}

func (p *Planner) loadAll(ctx context.Context, refs []TrainsetRef) ([]loadResult, error) {
	results := make([]loadResult, len(refs))
	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup

	for i, ref := range refs {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int, number string) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					results[i] = loadResult{err: fmt.Errorf("panic: %v", r)}
				}
			}()
			snap, err := p.source.LoadSnapshot(ctx, number)
			results[i] = loadResult{snap: snap, err: err}
		}(i, ref.Number)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func degradedVerdict(number, what string, err error) Verdict {
	return Verdict{
		TrainsetID:     number,
		Status:         StatusStandby,
		Reason:         fmt.Sprintf("%s: %v", what, err),
		ConflictAlerts: []string{fmt.Sprintf("Evaluation error: %v", err)},
		Metadata:       Metadata{Error: err.Error()},
	}
}

func fleetAverage(refs []TrainsetRef) float64 {
	if len(refs) == 0 {
		return 0
	}
	var total float64
	for _, r := range refs {
		total += r.Mileage
	}
	return total / float64(len(refs))
}

func sortVerdicts(vs []Verdict) {
	sort.SliceStable(vs, func(i, j int) bool {
		return vs[i].Status.rank() < vs[j].Status.rank()
	})
}
