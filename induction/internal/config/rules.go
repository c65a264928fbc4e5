package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/metro-depot/fleet/induction/internal/planner"
)

// RulesFile is the optional YAML document named by INDUCTION_RULES_FILE.
//
//	thresholds:
//	  expiry_warning: 168h
//	  mileage_deviation: 5000
//	watch:
//	  - name: bay-less-heavy
//	    expression: trainset.stabling_bay == "" && trainset.mileage > 150000.0
//	    alert: Heavy trainset without bay
type RulesFile struct {
	Thresholds struct {
		ExpiryWarning    string  `yaml:"expiry_warning"`
		MileageDeviation float64 `yaml:"mileage_deviation"`
	} `yaml:"thresholds"`
	Watch []planner.WatchSpec `yaml:"watch"`
}

// Rules are the planner tunables after parsing and compilation.
type Rules struct {
	Thresholds planner.Thresholds
	Watch      []planner.Rule
}

// LoadRules reads and compiles the rules file. An empty path yields the
// defaults and no watch rules.
func LoadRules(path string) (Rules, error) {
	rules := Rules{Thresholds: planner.DefaultThresholds()}
	if path == "" {
		return rules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("load rules %q: %w", path, err)
	}
	return ParseRules(data)
}

func ParseRules(data []byte) (Rules, error) {
	rules := Rules{Thresholds: planner.DefaultThresholds()}
	var file RulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Rules{}, fmt.Errorf("parse rules: %w", err)
	}
	if v := file.Thresholds.ExpiryWarning; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Rules{}, fmt.Errorf("thresholds.expiry_warning %q: must be a non-negative duration", v)
		}
		rules.Thresholds.ExpiryWarning = d
	}
	if v := file.Thresholds.MileageDeviation; v != 0 {
		if v < 0 {
			return Rules{}, fmt.Errorf("thresholds.mileage_deviation must be positive")
		}
		rules.Thresholds.MileageDeviation = v
	}
	watch, err := planner.CompileWatchRules(file.Watch)
	if err != nil {
		return Rules{}, err
	}
	rules.Watch = watch
	return rules, nil
}
