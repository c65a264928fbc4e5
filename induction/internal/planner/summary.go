package planner

import (
	"time"

	"github.com/google/uuid"
)

// Summary is the run-level reduction over a verdict list.
type Summary struct {
	TotalTrainsets int    `json:"total_trainsets"`
	Fit            int    `json:"fit"`
	Unfit          int    `json:"unfit"`
	Standby        int    `json:"standby"`
	TotalAlerts    int    `json:"total_alerts"`
	PlanningDate   string `json:"planning_date"`
}

// Summarize counts verdicts by status and totals their alerts.
func Summarize(verdicts []Verdict, date time.Time) Summary {
	s := Summary{TotalTrainsets: len(verdicts), PlanningDate: date.Format(dateLayout)}
	for _, v := range verdicts {
		switch v.Status {
		case StatusFit:
			s.Fit++
		case StatusUnfit:
			s.Unfit++
		case StatusStandby:
			s.Standby++
		}
		s.TotalAlerts += len(v.ConflictAlerts)
	}
	return s
}

// FleetStatus is the wire shape returned by the plan and fleet status
// endpoints.
type FleetStatus struct {
	PlanID      uuid.UUID `json:"plan_id"`
	Trainsets   []Verdict `json:"trainsets"`
	Summary     Summary   `json:"summary"`
	GeneratedAt time.Time `json:"generated_at"`
	SourceError string    `json:"source_error,omitempty"`
	Attestation string    `json:"attestation,omitempty"`
}

func (p Plan) Status() FleetStatus {
	verdicts := p.Verdicts
	if verdicts == nil {
		verdicts = []Verdict{}
	}
	return FleetStatus{
		PlanID:      p.ID,
		Trainsets:   verdicts,
		Summary:     Summarize(verdicts, p.Date),
		GeneratedAt: p.GeneratedAt,
		SourceError: p.SourceError,
	}
}
