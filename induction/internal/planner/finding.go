package planner

import (
	"time"
)

// Severity is how a finding weighs on the resolved status.
type Severity int

const (
	// Informational findings only contribute reasoning text.
	Informational Severity = iota
	// Preferred findings pull a trainset into revenue service.
	Preferred
	// Blocking findings keep a trainset out of service.
	Blocking
)

func (s Severity) String() string {
	switch s {
	case Blocking:
		return "blocking"
	case Preferred:
		return "preferred"
	default:
		return "informational"
	}
}

// MetaKey names the metadata field a finding summarises.
type MetaKey string

const (
	MetaFitnessCertificate MetaKey = "fitness_certificate"
	MetaJobCards           MetaKey = "job_cards"
	MetaMileage            MetaKey = "mileage"
	MetaBrandingPriority   MetaKey = "branding_priority"
	MetaCleaningSlot       MetaKey = "cleaning_slot"
	MetaStablingBay        MetaKey = "stabling_bay"
)

// Finding is the partial verdict of one rule for one trainset.
type Finding struct {
	Key      MetaKey
	Severity Severity
	Reasons  []string
	Alerts   []string
	Summary  string
}

// Thresholds are the tunable limits used by the built-in rules.
type Thresholds struct {
	ExpiryWarning    time.Duration
	MileageDeviation float64
}

// DefaultThresholds: certificates expiring within 7 days warn, and mileage
// more than 5000 km from the fleet average is called out.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ExpiryWarning:    7 * 24 * time.Hour,
		MileageDeviation: 5000,
	}
}

// Env is the run-level input shared by every rule evaluation.
type Env struct {
	Date         time.Time
	FleetAverage float64
	Thresholds   Thresholds
}

// Rule inspects one snapshot and returns a partial verdict.
type Rule interface {
	Name() string
	Evaluate(s Snapshot, env Env) (Finding, error)
}

type ruleFunc struct {
	name string
	fn   func(Snapshot, Env) Finding
}

func (r ruleFunc) Name() string { return r.name }

func (r ruleFunc) Evaluate(s Snapshot, env Env) (Finding, error) {
	return r.fn(s, env), nil
}

// DefaultRules returns the six built-in rules in evaluation order. Alert and
// reason order in a verdict follows this order.
func DefaultRules() []Rule {
	return []Rule{
		ruleFunc{name: "fitness_certificate", fn: checkFitnessCertificates},
		ruleFunc{name: "job_cards", fn: checkJobCards},
		ruleFunc{name: "branding_priority", fn: checkBrandingPriority},
		ruleFunc{name: "mileage", fn: checkMileageBalance},
		ruleFunc{name: "cleaning_slot", fn: checkCleaningSlot},
		ruleFunc{name: "stabling_bay", fn: checkStablingBay},
	}
}
