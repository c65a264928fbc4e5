package planner

import (
	"context"

	"github.com/metro-depot/fleet/induction/internal/models"
)

// Snapshot is a read-only view of one trainset as of an evaluation run.
// Bay is the registry record for StablingBay, nil when unassigned or unregistered.
type Snapshot struct {
	Number        string
	Mileage       float64
	StablingBay   string
	Certificates  []models.FitnessCertificate
	JobCards      []models.JobCard
	Branding      []models.BrandingContract
	CleaningSlots []models.CleaningSlot
	Bay           *models.StablingBay
}

// SnapshotFromDetail builds a snapshot from a persisted trainset and its relations.
func SnapshotFromDetail(d models.TrainsetDetail) Snapshot {
	s := Snapshot{
		Number:        d.Number,
		Mileage:       d.CurrentMileage,
		Certificates:  d.Certificates,
		JobCards:      d.JobCards,
		Branding:      d.Branding,
		CleaningSlots: d.CleaningSlots,
		Bay:           d.Bay,
	}
	if d.StablingBay != nil {
		s.StablingBay = *d.StablingBay
	}
	return s
}

// TrainsetRef is the cheap per-trainset row used to enumerate the fleet and
// compute the fleet-wide mileage average.
type TrainsetRef struct {
	Number  string
	Mileage float64
}

// FleetSource is the persistence collaborator the planner reads from. It is
// never written to.
type FleetSource interface {
	ListTrainsets(ctx context.Context) ([]TrainsetRef, error)
	LoadSnapshot(ctx context.Context, number string) (Snapshot, error)
}
