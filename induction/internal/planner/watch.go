package planner

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/cel-go/cel"

	"github.com/metro-depot/fleet/induction/internal/models"
)

// WatchSpec is an operator-defined CEL condition. When Expression evaluates
// to true for a trainset, Alert is added to its conflict alerts.
type WatchSpec struct {
	Name       string `yaml:"name" json:"name"`
	Expression string `yaml:"expression" json:"expression"`
	Alert      string `yaml:"alert" json:"alert"`
}

// WatchRule is a compiled WatchSpec. Matches are informational and never
// change the resolved status.
type WatchRule struct {
	spec WatchSpec
	prg  cel.Program
}

func newWatchEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("trainset", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return env, nil
}

// CompileWatchRules compiles every spec up front so that a bad expression
// fails at startup rather than during a planning run.
func CompileWatchRules(specs []WatchSpec) ([]Rule, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	env, err := newWatchEnv()
	if err != nil {
		return nil, err
	}
	rules := make([]Rule, 0, len(specs))
	for i, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("watch rule %d: name is required", i)
		}
		if spec.Expression == "" || spec.Alert == "" {
			return nil, fmt.Errorf("watch rule %s: expression and alert are required", spec.Name)
		}
		ast, issues := env.Compile(spec.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("watch rule %s: CEL compile error: %w", spec.Name, issues.Err())
		}
		if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
			return nil, fmt.Errorf("watch rule %s: expression must return bool, got %s", spec.Name, ast.OutputType())
		}
		prg, err := env.Program(ast,
			cel.InterruptCheckFrequency(100),
			cel.CostLimit(10000),
		)
		if err != nil {
			return nil, fmt.Errorf("watch rule %s: CEL program error: %w", spec.Name, err)
		}
		rules = append(rules, &WatchRule{spec: spec, prg: prg})
	}
	return rules, nil
}

func (w *WatchRule) Name() string { return "watch:" + w.spec.Name }

func (w *WatchRule) Evaluate(s Snapshot, env Env) (Finding, error) {
	out, _, err := w.prg.Eval(map[string]any{"trainset": watchInput(s, env)})
	if err != nil {
		return Finding{}, fmt.Errorf("CEL eval error: %w", err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return Finding{}, errors.New("result not boolean")
	}
	if !matched {
		return Finding{}, nil
	}
	return Finding{Severity: Informational, Alerts: []string{w.spec.Alert}}, nil
}

// watchInput flattens a snapshot into the variables visible to watch
// expressions. days_to_next_expiry is negative once a certificate has
// expired and -1 when none are on file.
func watchInput(s Snapshot, env Env) map[string]any {
	var open, critical int64
	for _, jc := range s.JobCards {
		if jc.Status != models.JobCardOpen {
			continue
		}
		open++
		if jc.Priority == models.PriorityHigh {
			critical++
		}
	}

	types := make([]string, 0, len(s.Certificates))
	nextExpiry := int64(-1)
	for i, c := range s.Certificates {
		types = append(types, c.CertificateType)
		days := int64(math.Floor(recordDay(c.ExpiryDate).Sub(planDay(env.Date)).Hours() / 24))
		if i == 0 || days < nextExpiry {
			nextExpiry = days
		}
	}

	cleaningToday := false
	for _, slot := range s.CleaningSlots {
		if slot.Status == models.CleaningScheduled && sameDay(slot.SlotDate, env.Date) {
			cleaningToday = true
			break
		}
	}

	return map[string]any{
		"number":              s.Number,
		"mileage":             s.Mileage,
		"fleet_average":       env.FleetAverage,
		"stabling_bay":        s.StablingBay,
		"open_job_cards":      open,
		"critical_job_cards":  critical,
		"certificate_types":   types,
		"days_to_next_expiry": nextExpiry,
		"cleaning_today":      cleaningToday,
	}
}
