package planner

// Status is the terminal recommendation for one trainset.
type Status string

const (
	StatusUnfit   Status = "Unfit"
	StatusFit     Status = "Fit"
	StatusStandby Status = "Standby"
)

// rank orders statuses within a plan: Unfit, then Fit, then Standby.
func (s Status) rank() int {
	switch s {
	case StatusUnfit:
		return 0
	case StatusFit:
		return 1
	case StatusStandby:
		return 2
	}
	return 3
}

// Resolve picks the status for a set of findings. Any blocking finding wins
// over any preferred one; with neither the trainset stays on standby.
func Resolve(findings []Finding) Status {
	preferred := false
	for _, f := range findings {
		switch f.Severity {
		case Blocking:
			return StatusUnfit
		case Preferred:
			preferred = true
		}
	}
	if preferred {
		return StatusFit
	}
	return StatusStandby
}
