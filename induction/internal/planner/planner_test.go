package planner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metro-depot/fleet/induction/internal/models"
)

var planDate = time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

type fakeSource struct {
	mu      sync.Mutex
	snaps   []Snapshot
	listErr error
	loadErr map[string]error
	loads   int
}

func (f *fakeSource) ListTrainsets(ctx context.Context) ([]TrainsetRef, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	refs := make([]TrainsetRef, 0, len(f.snaps))
	for _, s := range f.snaps {
		refs = append(refs, TrainsetRef{Number: s.Number, Mileage: s.Mileage})
	}
	return refs, nil
}

func (f *fakeSource) LoadSnapshot(ctx context.Context, number string) (Snapshot, error) {
	f.mu.Lock()
	f.loads++
	f.mu.Unlock()
	if err := f.loadErr[number]; err != nil {
		return Snapshot{}, err
	}
	for _, s := range f.snaps {
		if s.Number == number {
			return s, nil
		}
	}
	return Snapshot{}, errors.New("no such trainset")
}

func validCert(kind string, expires time.Time) models.FitnessCertificate {
	return models.FitnessCertificate{
		CertificateType: kind,
		Status:          models.CertificateValid,
		IssueDate:       expires.AddDate(-1, 0, 0),
		ExpiryDate:      expires,
	}
}

func okBay(number string) *models.StablingBay {
	return &models.StablingBay{BayNumber: number, IsAvailable: true}
}

// healthy has a long-valid certificate and an available bay, so it resolves
// to Standby with no alerts.
func healthy(number string, mileage float64) Snapshot {
	return Snapshot{
		Number:       number,
		Mileage:      mileage,
		StablingBay:  "Bay-01",
		Certificates: []models.FitnessCertificate{validCert("Rolling-Stock", planDate.AddDate(0, 6, 0))},
		Bay:          okBay("Bay-01"),
	}
}

func TestPlanScenarioStandbyWithExpiringCertificate(t *testing.T) {
	ts2010 := Snapshot{
		Number:       "TS-2010",
		Mileage:      120000,
		StablingBay:  "Bay-04",
		Certificates: []models.FitnessCertificate{validCert("Signalling", planDate.AddDate(0, 0, 3))},
		Branding: []models.BrandingContract{{
			BrandName:     "MetroMart",
			PriorityLevel: models.PriorityMedium,
			ContractStart: planDate.AddDate(0, -1, 0),
			ContractEnd:   planDate.AddDate(0, 1, 0),
		}},
		Bay: okBay("Bay-04"),
	}
	src := &fakeSource{snaps: []Snapshot{ts2010, healthy("TS-2012", 80000)}}

	plan, err := New(src).PlanForDate(context.Background(), planDate)
	require.NoError(t, err)
	assert.Equal(t, 100000.0, plan.FleetAverage)
	require.Len(t, plan.Verdicts, 2)

	v := plan.Verdicts[0]
	assert.Equal(t, "TS-2010", v.TrainsetID)
	assert.Equal(t, StatusStandby, v.Status)
	assert.Equal(t, "120,000 km", v.Metadata.Mileage)
	assert.Empty(t, v.ConflictAlerts)
	assert.NotNil(t, v.ConflictAlerts)
	assert.Equal(t, "Medium (MetroMart)", v.Metadata.BrandingPriority)
	assert.Equal(t, "Bay-04 (available)", v.Metadata.StablingBay)
	assert.Equal(t, "Available", v.Metadata.CleaningSlot)

	reason := strings.ToLower(v.Reason)
	assert.True(t, strings.HasPrefix(v.Reason, "Trainset TS-2010 marked Standby because fitness certificates expiring soon"), v.Reason)
	assert.Contains(t, reason, "expiring soon")
	assert.Contains(t, reason, "medium priority branding")
	assert.Contains(t, v.Reason, "High mileage trainset (120,000 km, +20000 km from average)")
}

func TestPlanScenarioUnfitExpiredAndCritical(t *testing.T) {
	ts2011 := Snapshot{
		Number:       "TS-2011",
		Mileage:      90000,
		StablingBay:  "Bay-02",
		Certificates: []models.FitnessCertificate{validCert("Telecom", planDate.AddDate(0, 0, -1))},
		JobCards: []models.JobCard{{
			JobCardNumber: "JC-7781",
			Description:   "Brake pad replacement",
			Status:        models.JobCardOpen,
			Priority:      models.PriorityHigh,
		}},
		Bay: okBay("Bay-02"),
	}
	src := &fakeSource{snaps: []Snapshot{healthy("TS-2001", 90000), ts2011}}

	plan, err := New(src).PlanForDate(context.Background(), planDate)
	require.NoError(t, err)
	require.Len(t, plan.Verdicts, 2)

	v := plan.Verdicts[0]
	assert.Equal(t, "TS-2011", v.TrainsetID)
	assert.Equal(t, StatusUnfit, v.Status)
	assert.Equal(t, []string{"Expired Telecom Certificate", "Critical maintenance: JC-7781"}, v.ConflictAlerts)
	assert.Equal(t, "Trainset TS-2011 marked Unfit because Expired Telecom Certificate and Critical maintenance: JC-7781. "+
		"Additional considerations: Critical maintenance pending: JC-7781 (Brake pad replacement)", v.Reason)
	assert.Equal(t, "Expired certificates: Telecom (expired 2025-03-13)", v.Metadata.FitnessCertificate)
	assert.Equal(t, "Open jobs: JC-7781 (Brake pad replacement)", v.Metadata.JobCards)
}

func TestPlanEmptyFleet(t *testing.T) {
	plan, err := New(&fakeSource{}).PlanForDate(context.Background(), planDate)
	require.NoError(t, err)
	assert.Empty(t, plan.Verdicts)
	assert.NotNil(t, plan.Verdicts)
	assert.Equal(t, 0.0, plan.FleetAverage)

	status := plan.Status()
	assert.Equal(t, Summary{PlanningDate: "2025-03-14"}, status.Summary)
	assert.Equal(t, plan.ID, status.PlanID)
}

func TestPlanListFailureReturnsEmptyPlan(t *testing.T) {
	src := &fakeSource{listErr: errors.New("connection refused")}
	plan, err := New(src).PlanForDate(context.Background(), planDate)
	require.NoError(t, err)
	assert.Empty(t, plan.Verdicts)
	assert.Equal(t, "connection refused", plan.SourceError)
	assert.Equal(t, 0, src.loads)
}

func TestPlanLoadFailureDegradesOneTrainset(t *testing.T) {
	src := &fakeSource{
		snaps:   []Snapshot{healthy("TS-1", 1000), healthy("TS-2", 1000), healthy("TS-3", 1000)},
		loadErr: map[string]error{"TS-2": errors.New("relation unreadable")},
	}
	plan, err := New(src, WithLoadConcurrency(3)).PlanForDate(context.Background(), planDate)
	require.NoError(t, err)
	require.Len(t, plan.Verdicts, 3)

	ids := []string{plan.Verdicts[0].TrainsetID, plan.Verdicts[1].TrainsetID, plan.Verdicts[2].TrainsetID}
	assert.Equal(t, []string{"TS-1", "TS-2", "TS-3"}, ids)

	bad := plan.Verdicts[1]
	assert.Equal(t, StatusStandby, bad.Status)
	assert.True(t, bad.Degraded())
	assert.Equal(t, []string{"Evaluation error: relation unreadable"}, bad.ConflictAlerts)
	assert.Equal(t, "Snapshot load failed: relation unreadable", bad.Reason)

	assert.False(t, plan.Verdicts[0].Degraded())
	assert.False(t, plan.Verdicts[2].Degraded())
}

type panicRule struct{ target string }

func (panicRule) Name() string { return "panics" }

func (r panicRule) Evaluate(s Snapshot, _ Env) (Finding, error) {
	if s.Number == r.target {
		panic("nil relation")
	}
	return Finding{}, nil
}

type errRule struct{ target string }

func (errRule) Name() string { return "flaky" }

func (r errRule) Evaluate(s Snapshot, _ Env) (Finding, error) {
	if s.Number == r.target {
		return Finding{}, errors.New("bad data")
	}
	return Finding{}, nil
}

func TestPlanIsolatesEvaluationFailures(t *testing.T) {
	a := healthy("TS-A", 50000)
	a.JobCards = []models.JobCard{{JobCardNumber: "JC-1", Description: "HVAC", Status: models.JobCardOpen, Priority: models.PriorityHigh}}
	b := healthy("TS-B", 50000)
	c := healthy("TS-C", 50000)
	src := &fakeSource{snaps: []Snapshot{a, b, c}}

	baseline, err := New(src).PlanForDate(context.Background(), planDate)
	require.NoError(t, err)

	plan, err := New(src, WithRules(panicRule{target: "TS-B"}, errRule{target: "TS-C"})).
		PlanForDate(context.Background(), planDate)
	require.NoError(t, err)
	require.Len(t, plan.Verdicts, 3)

	assert.Equal(t, baseline.Verdicts[0], plan.Verdicts[0])

	assert.Equal(t, "TS-B", plan.Verdicts[1].TrainsetID)
	assert.Equal(t, StatusStandby, plan.Verdicts[1].Status)
	assert.Equal(t, []string{"Evaluation error: panic: nil relation"}, plan.Verdicts[1].ConflictAlerts)

	assert.Equal(t, "TS-C", plan.Verdicts[2].TrainsetID)
	assert.Equal(t, "flaky: bad data", plan.Verdicts[2].Metadata.Error)
}

func TestPlanSortsByStatusAndKeepsOrder(t *testing.T) {
	fit := func(n string) Snapshot {
		s := healthy(n, 1000)
		s.Branding = []models.BrandingContract{{
			BrandName: "Aqua", PriorityLevel: models.PriorityHigh,
			ContractStart: planDate, ContractEnd: planDate,
		}}
		return s
	}
	unfit := func(n string) Snapshot {
		s := healthy(n, 1000)
		s.Certificates = nil
		return s
	}
	src := &fakeSource{snaps: []Snapshot{
		healthy("S1", 1000), fit("F1"), unfit("U1"), healthy("S2", 1000), fit("F2"), unfit("U2"),
	}}
	plan, err := New(src, WithLoadConcurrency(2)).PlanForDate(context.Background(), planDate)
	require.NoError(t, err)

	var got []string
	for _, v := range plan.Verdicts {
		got = append(got, v.TrainsetID)
	}
	assert.Equal(t, []string{"U1", "U2", "F1", "F2", "S1", "S2"}, got)

	sum := plan.Status().Summary
	assert.Equal(t, 6, sum.TotalTrainsets)
	assert.Equal(t, 2, sum.Fit)
	assert.Equal(t, 2, sum.Unfit)
	assert.Equal(t, 2, sum.Standby)
	assert.Equal(t, 2, sum.TotalAlerts)
}

func TestPlanCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &fakeSource{snaps: []Snapshot{healthy("TS-1", 1)}}
	_, err := New(src).PlanForDate(ctx, planDate)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPlanUsesClock(t *testing.T) {
	at := time.Date(2025, 3, 13, 23, 0, 0, 0, time.UTC)
	plan, err := New(&fakeSource{}, WithClock(func() time.Time { return at })).PlanForDate(context.Background(), planDate)
	require.NoError(t, err)
	assert.Equal(t, at, plan.GeneratedAt)
}

func TestEvaluateTrainset(t *testing.T) {
	src := &fakeSource{snaps: []Snapshot{healthy("TS-1", 10000), healthy("TS-2", 30000)}}
	p := New(src)

	v, err := p.EvaluateTrainset(context.Background(), "TS-2", planDate)
	require.NoError(t, err)
	assert.Equal(t, "TS-2", v.TrainsetID)
	assert.Contains(t, v.Reason, "High mileage trainset (30,000 km, +10000 km from average)")

	_, err = p.EvaluateTrainset(context.Background(), "TS-9", planDate)
	assert.ErrorIs(t, err, ErrTrainsetNotFound)

	src.loadErr = map[string]error{"TS-1": errors.New("boom")}
	_, err = p.EvaluateTrainset(context.Background(), "TS-1", planDate)
	assert.Error(t, err)
}
