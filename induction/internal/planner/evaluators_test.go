package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/metro-depot/fleet/induction/internal/models"
)

func testEnv() Env {
	return Env{Date: planDate, FleetAverage: 100000, Thresholds: DefaultThresholds()}
}

func TestFitnessCertificateExpiryBoundary(t *testing.T) {
	s := Snapshot{Certificates: []models.FitnessCertificate{validCert("Rolling-Stock", planDate)}}
	f := checkFitnessCertificates(s, testEnv())
	assert.Equal(t, Blocking, f.Severity)
	assert.Equal(t, []string{"Expired Rolling-Stock Certificate"}, f.Alerts)
	assert.Equal(t, []string{"Fitness certificates expired: Rolling-Stock (expired 2025-03-14)"}, f.Reasons)
}

func TestFitnessCertificateExpiredTakesPrecedence(t *testing.T) {
	s := Snapshot{Certificates: []models.FitnessCertificate{
		validCert("Telecom", planDate.AddDate(0, 0, 2)),
		validCert("Signalling", planDate.AddDate(0, 0, -10)),
	}}
	f := checkFitnessCertificates(s, testEnv())
	assert.Equal(t, Blocking, f.Severity)
	assert.Len(t, f.Reasons, 1)
	assert.Equal(t, []string{"Expired Signalling Certificate"}, f.Alerts)
	assert.Equal(t, "Expired certificates: Signalling (expired 2025-03-04)", f.Summary)
}

func TestFitnessCertificateWindow(t *testing.T) {
	cases := []struct {
		name    string
		expires time.Time
		summary string
	}{
		{"seven days out warns", planDate.AddDate(0, 0, 7), "Expiring soon: Telecom (expires 2025-03-21)"},
		{"eight days out is valid", planDate.AddDate(0, 0, 8), "All certificates valid"},
		{"one day out warns", planDate.AddDate(0, 0, 1), "Expiring soon: Telecom (expires 2025-03-15)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Snapshot{Certificates: []models.FitnessCertificate{validCert("Telecom", tc.expires)}}
			f := checkFitnessCertificates(s, testEnv())
			assert.Equal(t, Informational, f.Severity)
			assert.Empty(t, f.Alerts)
			assert.Equal(t, tc.summary, f.Summary)
		})
	}
}

func TestFitnessCertificateMissing(t *testing.T) {
	f := checkFitnessCertificates(Snapshot{}, testEnv())
	assert.Equal(t, Blocking, f.Severity)
	assert.Equal(t, []string{"Missing fitness certificates"}, f.Alerts)
	assert.Equal(t, []string{"No fitness certificates found"}, f.Reasons)
}

func TestJobCards(t *testing.T) {
	s := Snapshot{JobCards: []models.JobCard{
		{JobCardNumber: "JC-1", Description: "Door sensor", Status: models.JobCardOpen, Priority: models.PriorityLow},
		{JobCardNumber: "JC-2", Description: "Pantograph", Status: models.JobCardOpen, Priority: models.PriorityHigh},
		{JobCardNumber: "JC-3", Description: "Wheel profile", Status: models.JobCardInProgress, Priority: models.PriorityHigh},
		{JobCardNumber: "JC-4", Description: "Seat repair", Status: models.JobCardClosed, Priority: models.PriorityMedium},
	}}
	f := checkJobCards(s, testEnv())
	assert.Equal(t, Blocking, f.Severity)
	assert.Equal(t, []string{"Critical maintenance: JC-2"}, f.Alerts)
	assert.Equal(t, []string{
		"Critical maintenance pending: JC-2 (Pantograph)",
		"Regular maintenance pending: JC-1 (Door sensor)",
	}, f.Reasons)
	assert.Equal(t, "Open jobs: JC-2 (Pantograph), JC-1 (Door sensor)", f.Summary)
}

func TestJobCardsRegularOnlyStillBlocks(t *testing.T) {
	s := Snapshot{JobCards: []models.JobCard{
		{JobCardNumber: "JC-9", Description: "Lighting", Status: models.JobCardOpen, Priority: models.PriorityMedium},
	}}
	f := checkJobCards(s, testEnv())
	assert.Equal(t, Blocking, f.Severity)
	assert.Empty(t, f.Alerts)
	assert.Equal(t, StatusUnfit, Resolve([]Finding{f}))
}

func TestJobCardsNoneOpen(t *testing.T) {
	f := checkJobCards(Snapshot{}, testEnv())
	assert.Equal(t, Informational, f.Severity)
	assert.Equal(t, "No pending maintenance", f.Summary)
	assert.Empty(t, f.Reasons)
}

func contract(brand string, level models.Priority, start, end time.Time) models.BrandingContract {
	return models.BrandingContract{BrandName: brand, PriorityLevel: level, ContractStart: start, ContractEnd: end}
}

func TestBrandingPicksHighestActive(t *testing.T) {
	from, to := planDate.AddDate(0, 0, -5), planDate.AddDate(0, 0, 5)
	s := Snapshot{Branding: []models.BrandingContract{
		contract("Medium Co", models.PriorityMedium, from, to),
		contract("High Co", models.PriorityHigh, from, to),
		contract("Later High", models.PriorityHigh, from, to),
		contract("Expired High", models.PriorityHigh, from, planDate.AddDate(0, 0, -1)),
	}}
	f := checkBrandingPriority(s, testEnv())
	assert.Equal(t, Preferred, f.Severity)
	assert.Equal(t, "High (High Co)", f.Summary)
	assert.Equal(t, []string{"High priority branding commitment: High Co"}, f.Reasons)
}

func TestBrandingActiveBoundaries(t *testing.T) {
	s := Snapshot{Branding: []models.BrandingContract{contract("Edge", models.PriorityLow, planDate, planDate)}}
	f := checkBrandingPriority(s, testEnv())
	assert.Equal(t, "Low (Edge)", f.Summary)
	assert.Empty(t, f.Reasons)

	s.Branding[0].ContractStart = planDate.AddDate(0, 0, 1)
	s.Branding[0].ContractEnd = planDate.AddDate(0, 0, 10)
	f = checkBrandingPriority(s, testEnv())
	assert.Equal(t, "Low", f.Summary)
}

func TestMileageBalance(t *testing.T) {
	f := checkMileageBalance(Snapshot{Mileage: 94000}, testEnv())
	assert.Equal(t, "94,000 km", f.Summary)
	assert.Equal(t, []string{"Low mileage trainset preferred for service (94,000 km, -6000 km from average)"}, f.Reasons)
	assert.Equal(t, Informational, f.Severity)

	f = checkMileageBalance(Snapshot{Mileage: 105000}, testEnv())
	assert.Empty(t, f.Reasons)
}

func TestCleaningSlot(t *testing.T) {
	s := Snapshot{CleaningSlots: []models.CleaningSlot{
		{SlotDate: planDate.AddDate(0, 0, -1), CleaningType: "Deep", BayNumber: "C-1", Status: models.CleaningScheduled},
		{SlotDate: planDate.Add(2 * time.Hour), CleaningType: "Basic", BayNumber: "C-2", Status: models.CleaningCompleted},
		{SlotDate: planDate.Add(20 * time.Hour), CleaningType: "Detailing", BayNumber: "C-3", Status: models.CleaningScheduled},
		{SlotDate: planDate.Add(21 * time.Hour), CleaningType: "Deep", BayNumber: "C-4", Status: models.CleaningScheduled},
	}}
	f := checkCleaningSlot(s, testEnv())
	assert.Equal(t, "Scheduled (Detailing, C-3)", f.Summary)
	assert.Equal(t, []string{"Scheduled for cleaning: Detailing in C-3"}, f.Reasons)

	f = checkCleaningSlot(Snapshot{}, testEnv())
	assert.Equal(t, "Available", f.Summary)
}

func TestStablingBay(t *testing.T) {
	cases := []struct {
		name    string
		snap    Snapshot
		summary string
		reason  string
	}{
		{"unassigned", Snapshot{}, "Not assigned", "No stabling bay assigned"},
		{"unknown", Snapshot{StablingBay: "B-9"}, "B-9 (not found)", "Assigned bay B-9 not found"},
		{"unavailable", Snapshot{StablingBay: "B-1", Bay: &models.StablingBay{BayNumber: "B-1"}}, "B-1 (unavailable)", "Assigned bay B-1 unavailable"},
		{"maintenance", Snapshot{StablingBay: "B-2", Bay: &models.StablingBay{BayNumber: "B-2", IsAvailable: true, MaintenanceRequired: true}},
			"B-2 (maintenance required)", "Assigned bay B-2 requires maintenance"},
		{"available", Snapshot{StablingBay: "B-3", Bay: okBay("B-3")}, "B-3 (available)", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := checkStablingBay(tc.snap, testEnv())
			assert.Equal(t, tc.summary, f.Summary)
			if tc.reason == "" {
				assert.Empty(t, f.Reasons)
			} else {
				assert.Equal(t, []string{tc.reason}, f.Reasons)
			}
			assert.Equal(t, Informational, f.Severity)
		})
	}
}

func TestResolvePrecedence(t *testing.T) {
	assert.Equal(t, StatusStandby, Resolve(nil))
	assert.Equal(t, StatusFit, Resolve([]Finding{{Severity: Informational}, {Severity: Preferred}}))
	assert.Equal(t, StatusUnfit, Resolve([]Finding{{Severity: Preferred}, {Severity: Blocking}}))
}

func TestExpiredCertificateBeatsHighBranding(t *testing.T) {
	s := Snapshot{
		Number:       "TS-3",
		Certificates: []models.FitnessCertificate{validCert("Telecom", planDate.AddDate(0, 0, -3))},
		Branding:     []models.BrandingContract{contract("Aqua", models.PriorityHigh, planDate, planDate)},
	}
	v := New(&fakeSource{}).Evaluate(s, testEnv())
	assert.Equal(t, StatusUnfit, v.Status)
	assert.Equal(t, "High (Aqua)", v.Metadata.BrandingPriority)
}

func TestCompose(t *testing.T) {
	assert.Equal(t, "Trainset TS-1 marked Standby based on standard operating parameters",
		Compose("TS-1", StatusStandby, nil, nil))
	assert.Equal(t, "Trainset TS-1 marked Fit because high priority branding commitment: aqua",
		Compose("TS-1", StatusFit, []string{"High priority branding commitment: Aqua"}, nil))
	assert.Equal(t, "Trainset TS-1 marked Unfit because A and B. Additional considerations: r2; r3",
		Compose("TS-1", StatusUnfit, []string{"r1", "r2", "r3"}, []string{"A", "B"}))
}

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "blocking", Blocking.String())
	assert.Equal(t, "preferred", Preferred.String())
	assert.Equal(t, "informational", Informational.String())
}

func TestRecordDatesCompareByCalendarDay(t *testing.T) {
	zones := []*time.Location{
		time.UTC,
		time.FixedZone("IST", 5*3600+30*60),
		time.FixedZone("EST", -5*3600),
	}
	for _, loc := range zones {
		t.Run(loc.String(), func(t *testing.T) {
			env := testEnv()
			env.Date = time.Date(2025, 3, 14, 0, 0, 0, 0, loc)

			s := Snapshot{
				Certificates: []models.FitnessCertificate{
					validCert("Signalling", planDate),
					validCert("Telecom", planDate.AddDate(0, 0, 1)),
				},
				CleaningSlots: []models.CleaningSlot{
					{SlotDate: planDate, CleaningType: "Deep", BayNumber: "Bay-03", Status: models.CleaningScheduled},
				},
				Branding: []models.BrandingContract{
					{BrandName: "Expired", PriorityLevel: models.PriorityHigh, ContractStart: planDate.AddDate(0, -1, 0), ContractEnd: planDate.AddDate(0, 0, -1)},
					{BrandName: "Starts", PriorityLevel: models.PriorityMedium, ContractStart: planDate, ContractEnd: planDate.AddDate(0, 1, 0)},
				},
			}

			cert := checkFitnessCertificates(s, env)
			assert.Equal(t, Blocking, cert.Severity)
			assert.Equal(t, []string{"Expired Signalling Certificate"}, cert.Alerts)
			assert.Equal(t, "Expired certificates: Signalling (expired 2025-03-14)", cert.Summary)

			s.Certificates = s.Certificates[1:]
			cert = checkFitnessCertificates(s, env)
			assert.Equal(t, "Expiring soon: Telecom (expires 2025-03-15)", cert.Summary)

			assert.Equal(t, "Scheduled (Deep, Bay-03)", checkCleaningSlot(s, env).Summary)
			assert.Equal(t, "Medium (Starts)", checkBrandingPriority(s, env).Summary)
		})
	}
}
