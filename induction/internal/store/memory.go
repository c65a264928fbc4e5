package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/metro-depot/fleet/induction/internal/models"
)

// MemoryStore is an in-process Store for tests and local runs. Child records
// are kept in insertion order so results match SQLStore ordering.
type MemoryStore struct {
	mu           sync.RWMutex
	trainsets    map[string]models.Trainset
	certificates []models.FitnessCertificate
	jobCards     []models.JobCard
	branding     []models.BrandingContract
	cleaning     []models.CleaningSlot
	mileage      []models.MileageRecord
	bays         map[string]models.StablingBay
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trainsets: map[string]models.Trainset{},
		bays:      map[string]models.StablingBay{},
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) CreateTrainset(ctx context.Context, in TrainsetInput) (models.Trainset, error) {
	if err := in.Validate(); err != nil {
		return models.Trainset{}, err
	}
	number := strings.TrimSpace(in.Number)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trainsets[number]; ok {
		return models.Trainset{}, fmt.Errorf("trainset %s: %w", number, ErrConflict)
	}
	now := m.now()
	ts := models.Trainset{
		ID:             uuid.New(),
		Number:         number,
		CurrentMileage: in.CurrentMileage,
		StablingBay:    copyString(in.StablingBay),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.trainsets[number] = ts
	return ts, nil
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func (m *MemoryStore) GetTrainset(ctx context.Context, number string) (models.Trainset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ts, ok := m.trainsets[number]
	if !ok {
		return models.Trainset{}, ErrNotFound
	}
	return ts, nil
}

func (m *MemoryStore) ListTrainsets(ctx context.Context) ([]models.Trainset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Trainset, 0, len(m.trainsets))
	for _, ts := range m.trainsets {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *MemoryStore) UpdateTrainset(ctx context.Context, number string, in TrainsetUpdate) (models.Trainset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts, ok := m.trainsets[number]
	if !ok {
		return models.Trainset{}, ErrNotFound
	}
	if in.CurrentMileage != nil {
		if *in.CurrentMileage < 0 {
			return models.Trainset{}, fmt.Errorf("%w: current_mileage must not be negative", ErrInvalid)
		}
		ts.CurrentMileage = *in.CurrentMileage
	}
	if in.StablingBay != nil {
		ts.StablingBay = copyString(in.StablingBay)
	}
	if in.ClearStablingBay {
		ts.StablingBay = nil
	}
	ts.UpdatedAt = m.now()
	m.trainsets[number] = ts
	return ts, nil
}

func (m *MemoryStore) DeleteTrainset(ctx context.Context, number string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts, ok := m.trainsets[number]
	if !ok {
		return ErrNotFound
	}
	delete(m.trainsets, number)
	keep := func(id uuid.UUID) bool { return id != ts.ID }
	m.certificates = filter(m.certificates, func(c models.FitnessCertificate) bool { return keep(c.TrainsetID) })
	m.jobCards = filter(m.jobCards, func(j models.JobCard) bool { return keep(j.TrainsetID) })
	m.branding = filter(m.branding, func(b models.BrandingContract) bool { return keep(b.TrainsetID) })
	m.cleaning = filter(m.cleaning, func(c models.CleaningSlot) bool { return keep(c.TrainsetID) })
	m.mileage = filter(m.mileage, func(r models.MileageRecord) bool { return keep(r.TrainsetID) })
	return nil
}

func filter[T any](in []T, keep func(T) bool) []T {
	out := in[:0]
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func (m *MemoryStore) GetTrainsetDetail(ctx context.Context, number string) (models.TrainsetDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ts, ok := m.trainsets[number]
	if !ok {
		return models.TrainsetDetail{}, ErrNotFound
	}
	mine := func(id uuid.UUID) bool { return id == ts.ID }
	d := models.TrainsetDetail{
		Trainset:       ts,
		Certificates:   collect(m.certificates, func(c models.FitnessCertificate) bool { return mine(c.TrainsetID) }),
		JobCards:       collect(m.jobCards, func(j models.JobCard) bool { return mine(j.TrainsetID) }),
		Branding:       collect(m.branding, func(b models.BrandingContract) bool { return mine(b.TrainsetID) }),
		CleaningSlots:  collect(m.cleaning, func(c models.CleaningSlot) bool { return mine(c.TrainsetID) }),
		MileageRecords: collect(m.mileage, func(r models.MileageRecord) bool { return mine(r.TrainsetID) }),
	}
	sort.SliceStable(d.CleaningSlots, func(i, j int) bool {
		return d.CleaningSlots[i].SlotDate.Before(d.CleaningSlots[j].SlotDate)
	})
	sort.SliceStable(d.MileageRecords, func(i, j int) bool {
		return d.MileageRecords[i].Date.Before(d.MileageRecords[j].Date)
	})
	if ts.StablingBay != nil {
		if bay, ok := m.bays[*ts.StablingBay]; ok {
			d.Bay = &bay
		}
	}
	return d, nil
}

func collect[T any](in []T, match func(T) bool) []T {
	out := []T{}
	for _, v := range in {
		if match(v) {
			out = append(out, v)
		}
	}
	return out
}

func (m *MemoryStore) AddCertificate(ctx context.Context, number string, in CertificateInput) (models.FitnessCertificate, error) {
	if err := in.Validate(); err != nil {
		return models.FitnessCertificate{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ts, ok := m.trainsets[number]
	if !ok {
		return models.FitnessCertificate{}, ErrNotFound
	}
	for _, c := range m.certificates {
		if c.CertificateNumber == in.CertificateNumber {
			return models.FitnessCertificate{}, fmt.Errorf("certificate %s: %w", in.CertificateNumber, ErrConflict)
		}
	}
	c := models.FitnessCertificate{
		ID: uuid.New(), TrainsetID: ts.ID, CertificateType: in.CertificateType, Status: in.Status,
		CertificateNumber: in.CertificateNumber, IssuingAuthority: in.IssuingAuthority,
		IssueDate: in.IssueDate, ExpiryDate: in.ExpiryDate, Notes: copyString(in.Notes), CreatedAt: m.now(),
	}
	m.certificates = append(m.certificates, c)
	return c, nil
}

func (m *MemoryStore) AddJobCard(ctx context.Context, number string, in JobCardInput) (models.JobCard, error) {
	if err := in.Validate(); err != nil {
		return models.JobCard{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ts, ok := m.trainsets[number]
	if !ok {
		return models.JobCard{}, ErrNotFound
	}
	for _, jc := range m.jobCards {
		if jc.JobCardNumber == in.JobCardNumber {
			return models.JobCard{}, fmt.Errorf("job card %s: %w", in.JobCardNumber, ErrConflict)
		}
	}
	jc := models.JobCard{
		ID: uuid.New(), TrainsetID: ts.ID, JobCardNumber: in.JobCardNumber, Description: in.Description,
		Status: in.Status, Priority: in.Priority, CreatedDate: in.CreatedDate, DueDate: in.DueDate,
		AssignedTo: copyString(in.AssignedTo), CreatedAt: m.now(),
	}
	m.jobCards = append(m.jobCards, jc)
	return jc, nil
}

func (m *MemoryStore) UpdateJobCardStatus(ctx context.Context, id uuid.UUID, status models.JobCardStatus) (models.JobCard, error) {
	if !validJobCardStatus(status) {
		return models.JobCard{}, fmt.Errorf("%w: unknown job card status %q", ErrInvalid, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.jobCards {
		if m.jobCards[i].ID == id {
			m.jobCards[i].Status = status
			return m.jobCards[i], nil
		}
	}
	return models.JobCard{}, ErrNotFound
}

func (m *MemoryStore) AddBrandingContract(ctx context.Context, number string, in BrandingInput) (models.BrandingContract, error) {
	if err := in.Validate(); err != nil {
		return models.BrandingContract{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ts, ok := m.trainsets[number]
	if !ok {
		return models.BrandingContract{}, ErrNotFound
	}
	bc := models.BrandingContract{
		ID: uuid.New(), TrainsetID: ts.ID, PriorityLevel: in.PriorityLevel, BrandName: in.BrandName,
		CampaignName: copyString(in.CampaignName), ContractStart: in.ContractStart, ContractEnd: in.ContractEnd,
		RevenueImpact: in.RevenueImpact, CreatedAt: m.now(),
	}
	m.branding = append(m.branding, bc)
	return bc, nil
}

func (m *MemoryStore) AddCleaningSlot(ctx context.Context, number string, in CleaningSlotInput) (models.CleaningSlot, error) {
	if err := in.Validate(); err != nil {
		return models.CleaningSlot{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ts, ok := m.trainsets[number]
	if !ok {
		return models.CleaningSlot{}, ErrNotFound
	}
	cs := models.CleaningSlot{
		ID: uuid.New(), TrainsetID: ts.ID, SlotDate: in.SlotDate, CleaningType: in.CleaningType,
		BayNumber: in.BayNumber, Status: in.Status, AssignedCrew: copyString(in.AssignedCrew), CreatedAt: m.now(),
	}
	m.cleaning = append(m.cleaning, cs)
	return cs, nil
}

func (m *MemoryStore) UpdateCleaningSlotStatus(ctx context.Context, id uuid.UUID, status models.CleaningStatus) (models.CleaningSlot, error) {
	if !validCleaningStatus(status) {
		return models.CleaningSlot{}, fmt.Errorf("%w: unknown cleaning status %q", ErrInvalid, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.cleaning {
		if m.cleaning[i].ID == id {
			m.cleaning[i].Status = status
			return m.cleaning[i], nil
		}
	}
	return models.CleaningSlot{}, ErrNotFound
}

func (m *MemoryStore) RecordMileage(ctx context.Context, number string, in MileageInput) (models.MileageRecord, error) {
	if err := in.Validate(); err != nil {
		return models.MileageRecord{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ts, ok := m.trainsets[number]
	if !ok {
		return models.MileageRecord{}, ErrNotFound
	}
	now := m.now()
	mr := models.MileageRecord{
		ID: uuid.New(), TrainsetID: ts.ID, Date: in.Date, DailyMileage: in.DailyMileage,
		CumulativeMileage: in.CumulativeMileage, Route: copyString(in.Route), CreatedAt: now,
	}
	m.mileage = append(m.mileage, mr)
	ts.CurrentMileage = in.CumulativeMileage
	ts.UpdatedAt = now
	m.trainsets[number] = ts
	return mr, nil
}

func (m *MemoryStore) DeleteRecord(ctx context.Context, kind RecordKind, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed bool
	switch kind {
	case KindCertificate:
		m.certificates, removed = removeByID(m.certificates, func(c models.FitnessCertificate) bool { return c.ID == id })
	case KindJobCard:
		m.jobCards, removed = removeByID(m.jobCards, func(j models.JobCard) bool { return j.ID == id })
	case KindBranding:
		m.branding, removed = removeByID(m.branding, func(b models.BrandingContract) bool { return b.ID == id })
	case KindCleaningSlot:
		m.cleaning, removed = removeByID(m.cleaning, func(c models.CleaningSlot) bool { return c.ID == id })
	default:
		return fmt.Errorf("%w: unknown record kind %q", ErrInvalid, kind)
	}
	if !removed {
		return ErrNotFound
	}
	return nil
}

func removeByID[T any](in []T, match func(T) bool) ([]T, bool) {
	for i, v := range in {
		if match(v) {
			return append(in[:i], in[i+1:]...), true
		}
	}
	return in, false
}

func (m *MemoryStore) UpsertStablingBay(ctx context.Context, in StablingBayInput) (models.StablingBay, error) {
	if err := in.Validate(); err != nil {
		return models.StablingBay{}, err
	}
	b := models.StablingBay{
		BayNumber: in.BayNumber, BayType: in.BayType, Capacity: in.Capacity, IsAvailable: in.IsAvailable,
		MaintenanceRequired: in.MaintenanceRequired, Location: copyString(in.Location), UpdatedAt: m.now(),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bays[b.BayNumber] = b
	return b, nil
}

func (m *MemoryStore) GetStablingBay(ctx context.Context, bayNumber string) (models.StablingBay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bays[bayNumber]
	if !ok {
		return models.StablingBay{}, ErrNotFound
	}
	return b, nil
}

func (m *MemoryStore) ListStablingBays(ctx context.Context) ([]models.StablingBay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.StablingBay, 0, len(m.bays))
	for _, b := range m.bays {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BayNumber < out[j].BayNumber })
	return out, nil
}

func (m *MemoryStore) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainsets = map[string]models.Trainset{}
	m.bays = map[string]models.StablingBay{}
	m.certificates, m.jobCards, m.branding, m.cleaning, m.mileage = nil, nil, nil, nil, nil
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }
