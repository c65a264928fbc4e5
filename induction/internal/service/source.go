package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/metro-depot/fleet/induction/internal/planner"
	"github.com/metro-depot/fleet/induction/internal/store"
)

// StoreSource exposes a store.Store as the planner's read-only fleet source.
type StoreSource struct {
	store store.Store
}

func NewStoreSource(st store.Store) *StoreSource {
	return &StoreSource{store: st}
}

func (s *StoreSource) ListTrainsets(ctx context.Context) ([]planner.TrainsetRef, error) {
	trainsets, err := s.store.ListTrainsets(ctx)
	if err != nil {
		return nil, err
	}
	refs := make([]planner.TrainsetRef, 0, len(trainsets))
	for _, t := range trainsets {
		refs = append(refs, planner.TrainsetRef{Number: t.Number, Mileage: t.CurrentMileage})
	}
	return refs, nil
}

func (s *StoreSource) LoadSnapshot(ctx context.Context, number string) (planner.Snapshot, error) {
	detail, err := s.store.GetTrainsetDetail(ctx, number)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return planner.Snapshot{}, fmt.Errorf("%w: %s", planner.ErrTrainsetNotFound, number)
		}
		return planner.Snapshot{}, err
	}
	return planner.SnapshotFromDetail(detail), nil
}
